package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/clock"
)

// TimestampLayout is the persisted layout of record timestamps (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a UTC instant with second precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC and drops sub-second precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: clock.TruncateUTC(t)}
}

// String formats the timestamp with TimestampLayout.
func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts TimestampLayout and RFC 3339.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339} {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			*t = NewTimestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", raw)
}
