package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/api"
	"github.com/tracedive/tracedive/internal/config"
	"github.com/tracedive/tracedive/internal/diag"
	"github.com/tracedive/tracedive/internal/observability"
	"github.com/tracedive/tracedive/internal/trace"
	"github.com/tracedive/tracedive/internal/version"
)

const defaultConfigPath = "tracedive.yaml"

const otelShutdownTimeout = 5 * time.Second
const serverReadHeaderTimeout = 10 * time.Second
const serverReadTimeout = 30 * time.Second
const serverIdleTimeout = 2 * time.Minute
const serverShutdownTimeout = 5 * time.Second

var signalNotifyContext = signal.NotifyContext

type configStage int

const (
	configStageLoad configStage = iota
	configStageValidate
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runServe(nil)
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return 0
	case "serve":
		return runServe(args[1:])
	case "fetch":
		return runFetch(args[1:], os.Stdout, os.Stderr)
	case "config":
		return runConfig(args[1:], os.Stdout, os.Stderr)
	default:
		printUsage(os.Stderr)
		return 2
	}
}

func runConfig(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printConfigUsage(errOut)
		return 2
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], out, errOut)
	default:
		printConfigUsage(errOut)
		return 2
	}
}

func runConfigValidate(args []string, out io.Writer, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("config validate", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "config validate does not accept positional arguments")
		return 2
	}

	_, _, err := loadAndValidateConfig(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config is invalid: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "config is valid: %s\n", *configPath)
	return 0
}

func runServe(args []string) int {
	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	cfg, stage, err := loadAndValidateConfig(*configPath)
	if err != nil {
		if stage == configStageLoad {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "config is invalid: %v\n", err)
		}
		return 1
	}

	logger := slog.New(observability.NewTraceLogHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	))

	otelRuntime, otelErr := observability.Setup(context.Background(), cfg.Observability.OTel, version.String(), logger)
	if otelErr != nil {
		logger.Error("failed to initialize opentelemetry; continuing with instrumentation disabled", "error", otelErr)
	}
	if otelRuntime != nil {
		defer shutdownOpenTelemetry(logger, otelRuntime, otelShutdownTimeout)
	}

	executor, closeExecutor, err := newDiagExecutor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize diagnostic storage: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeExecutor(); err != nil {
			logger.Error("failed to close diagnostic storage", "error", err)
		}
	}()

	registry := trace.NewRegistry(executor, handleOptions(cfg, logger, otelRuntime)...)

	apiHandler := api.NewRouter(api.RouterOptions{
		AppVersion:    version.String(),
		Registry:      registry,
		StorageDriver: cfg.Storage.Driver,
		StoragePath:   cfg.Storage.Path,
		Logger:        logger,
	})
	serverHandler := apiHandler
	if otelRuntime != nil {
		serverHandler = otelRuntime.WrapHTTPHandler(serverHandler)
	}

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           serverHandler,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       serverReadTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	logger.Info(
		"startup banner",
		"version", version.String(),
		"addr", server.Addr,
		"port", cfg.Server.Port,
		"storage_driver", cfg.Storage.Driver,
		"fetch_max_attempts", cfg.Fetch.MaxAttempts,
		"config_path", *configPath,
	)

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown", "error", err)
			return 1
		}
		logger.Info("tracedive stopped")
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error("tracedive failed", "error", err)
			return 1
		}
		return 0
	}
}

func loadAndValidateConfig(path string) (config.Config, configStage, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, configStageLoad, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, configStageValidate, err
	}
	return cfg, configStageValidate, nil
}

func newDiagExecutor(cfg config.Config) (diag.Executor, func() error, error) {
	switch strings.TrimSpace(cfg.Storage.Driver) {
	case "sqlite":
		executor, err := diag.NewSQLiteExecutor(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return executor, executor.Close, nil
	case "postgres":
		executor, err := diag.NewPostgresExecutor(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		return executor, executor.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage.driver %q", cfg.Storage.Driver)
	}
}

func handleOptions(cfg config.Config, logger *slog.Logger, otelRuntime *observability.Runtime) []trace.Option {
	opts := []trace.Option{trace.WithLogger(logger)}
	if cfg.Fetch.MaxAttempts > 0 {
		opts = append(opts, trace.WithMaxAttempts(cfg.Fetch.MaxAttempts))
	}
	if otelRuntime != nil && otelRuntime.Enabled() {
		opts = append(opts, trace.WithMetrics(trace.Metrics{
			OnFetch: func(_ uuid.UUID, complete bool, err error) {
				otelRuntime.RecordFetchAttempt(complete, err != nil)
			},
		}))
	}
	return opts
}

func shutdownOpenTelemetry(logger *slog.Logger, runtime *observability.Runtime, timeout time.Duration) {
	if runtime == nil || !runtime.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := runtime.Shutdown(ctx); err != nil {
		if logger != nil {
			logger.Error("failed to shutdown opentelemetry providers", "error", err, "timeout", timeout.String())
		}
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  tracedive serve [--config path/to/tracedive.yaml]")
	fmt.Fprintln(out, "  tracedive fetch --id TRACE_UUID [--config path/to/tracedive.yaml] [--wait] [--timeout DURATION]")
	fmt.Fprintln(out, "  tracedive config validate [--config path/to/tracedive.yaml]")
	fmt.Fprintln(out, "  tracedive version")
}

func printConfigUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  tracedive config validate [--config path/to/tracedive.yaml]")
}
