package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/trace"
)

// runFetch looks up a single trace from the command line. Without --wait it
// performs one fetch attempt and prints whatever the store has written so
// far; with --wait it polls at the configured interval until the trace
// completes or the timeout expires.
func runFetch(args []string, out io.Writer, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("fetch", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	rawID := flagSet.String("id", "", "Trace identifier (uuid)")
	wait := flagSet.Bool("wait", false, "Poll until the trace completes")
	timeout := flagSet.Duration("timeout", 30*time.Second, "Give up waiting after this long")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "fetch does not accept positional arguments")
		return 2
	}

	id, err := uuid.Parse(*rawID)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}

	cfg, stage, err := loadAndValidateConfig(*configPath)
	if err != nil {
		if stage == configStageLoad {
			fmt.Fprintf(errOut, "failed to load config: %v\n", err)
		} else {
			fmt.Fprintf(errOut, "config is invalid: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	executor, closeExecutor, err := newDiagExecutor(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "failed to initialize diagnostic storage: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeExecutor(); err != nil {
			logger.Error("failed to close diagnostic storage", "error", err)
		}
	}()

	handle := trace.NewHandle(id, executor, trace.WithLogger(logger))

	ctx := context.Background()
	if *wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	state, err := pollTrace(ctx, handle, *wait, time.Duration(cfg.Fetch.PollIntervalMS)*time.Millisecond)
	if err != nil {
		fmt.Fprintf(errOut, "failed to fetch trace: %v\n", err)
		return 1
	}

	printTrace(out, handle)
	if *wait && state != trace.StateComplete {
		fmt.Fprintf(errOut, "trace %s did not complete within %s\n", id, *timeout)
		return 1
	}
	return 0
}

// pollTrace fetches once, then keeps re-fetching at the given interval while
// the trace is incomplete and waiting was requested. A fetch error before any
// snapshot is published is fatal; afterwards polling continues on whatever
// was already fetched.
func pollTrace(ctx context.Context, handle *trace.Handle, wait bool, interval time.Duration) (trace.State, error) {
	for {
		state, err := handle.Fetch(ctx)
		if err != nil && state == trace.StateUnfetched {
			return state, err
		}
		if state == trace.StateComplete || !wait {
			return state, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return state, nil
			}
			return state, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func printTrace(out io.Writer, handle *trace.Handle) {
	snap := handle.Snapshot()
	state := handle.State()

	fmt.Fprintf(out, "trace:    %s\n", handle.TraceID())
	fmt.Fprintf(out, "state:    %s\n", state)
	if snap == nil {
		return
	}

	if requestType := snap.RequestType(); requestType != "" {
		fmt.Fprintf(out, "request:  %s\n", requestType)
	}
	if snap.Complete() {
		fmt.Fprintf(out, "duration: %dµs\n", snap.DurationMicros())
	}
	if coordinator := snap.Coordinator(); coordinator != nil {
		fmt.Fprintf(out, "coord:    %s\n", coordinator)
	}
	if startedAt := snap.StartedAt(); !startedAt.IsZero() {
		fmt.Fprintf(out, "started:  %s\n", startedAt.UTC().Format(time.RFC3339Nano))
	}
	for key, value := range snap.Parameters() {
		fmt.Fprintf(out, "param:    %s=%s\n", key, value)
	}

	events := snap.Events()
	if len(events) == 0 {
		return
	}

	fmt.Fprintln(out)
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "TIMESTAMP\tELAPSED\tSOURCE\tTHREAD\tACTIVITY")
	for _, event := range events {
		source := ""
		if event.Source != nil {
			source = event.Source.String()
		}
		fmt.Fprintf(
			writer,
			"%s\t%dµs\t%s\t%s\t%s\n",
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			event.SourceElapsedMicros,
			source,
			event.Thread,
			event.Description,
		)
	}
	_ = writer.Flush()
}
