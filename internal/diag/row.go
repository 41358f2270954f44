package diag

import (
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Row is one decoded diagnostic table row. Accessors are nullable-aware:
// a NULL or absent column yields the type's zero value, and the accessors
// for columns whose absence is meaningful also report presence.
type Row struct {
	columns map[string]any
}

func NewRow(columns map[string]any) Row {
	return Row{columns: columns}
}

// String returns the named column as a string, or "" when NULL or absent.
func (r Row) String(name string) string {
	switch v := r.columns[name].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int32 returns the named column as a 32-bit integer. The second return is
// false when the column is NULL or absent.
func (r Row) Int32(name string) (int32, bool) {
	switch v := r.columns[name].(type) {
	case int32:
		return v, true
	case int64:
		return int32(v), true
	case int:
		return int32(v), true
	case float64:
		return int32(v), true
	default:
		return 0, false
	}
}

// Inet returns the named column as a network address, or nil when NULL,
// absent, or unparseable.
func (r Row) Inet(name string) net.IP {
	switch v := r.columns[name].(type) {
	case net.IP:
		return v
	case string:
		return parseInet(v)
	case []byte:
		return parseInet(string(v))
	default:
		return nil
	}
}

// StringMap returns the named column as a string-to-string mapping. SQL
// backends store the mapping as a JSON object. The second return is false
// when the column is NULL, absent, or not decodable as an object.
func (r Row) StringMap(name string) (map[string]string, bool) {
	switch v := r.columns[name].(type) {
	case map[string]string:
		return v, true
	case string:
		return decodeStringMap([]byte(v))
	case []byte:
		return decodeStringMap(v)
	default:
		return nil, false
	}
}

// Time returns the named column as a timestamp, or the zero time when NULL,
// absent, or unparseable.
func (r Row) Time(name string) time.Time {
	switch v := r.columns[name].(type) {
	case time.Time:
		return v
	case string:
		return parseTimestamp(v)
	case []byte:
		return parseTimestamp(string(v))
	default:
		return time.Time{}
	}
}

// UUID returns the named column as a unique identifier, or the nil UUID
// when NULL, absent, or unparseable.
func (r Row) UUID(name string) uuid.UUID {
	switch v := r.columns[name].(type) {
	case uuid.UUID:
		return v
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return uuid.Nil
		}
		return parsed
	case []byte:
		if len(v) == 16 {
			parsed, err := uuid.FromBytes(v)
			if err != nil {
				return uuid.Nil
			}
			return parsed
		}
		parsed, err := uuid.Parse(strings.TrimSpace(string(v)))
		if err != nil {
			return uuid.Nil
		}
		return parsed
	default:
		return uuid.Nil
	}
}

func parseInet(raw string) net.IP {
	value := strings.TrimSpace(raw)
	// Postgres inet values may carry a netmask suffix.
	if idx := strings.IndexByte(value, '/'); idx >= 0 {
		value = value[:idx]
	}
	return net.ParseIP(value)
}

func decodeStringMap(raw []byte) (map[string]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	decoded := make(map[string]string)
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
