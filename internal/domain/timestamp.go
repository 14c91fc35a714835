package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp decodes the platform's ISO-8601 timestamps. The server
// emits `datetime.isoformat()` values without a timezone suffix, which
// plain time.Time refuses.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(raw []byte) error {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if value == "" {
		t.Time = time.Time{}

		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed

			return nil
		}
	}

	return fmt.Errorf("unrecognized timestamp: %q", value)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal("")
	}

	return json.Marshal(t.Format(time.RFC3339Nano))
}

// OrNow returns the parsed time, falling back to arrival time for
// frames that omit or zero the timestamp.
func (t Timestamp) OrNow() time.Time {
	if t.IsZero() {
		return time.Now()
	}

	return t.Time
}
