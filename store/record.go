package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampFormat is the ISO-8601 layout used on the wire.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FailureRecord is the durable trail of one execution that gave up.
//
// Records are created once and never mutated afterward.
type FailureRecord struct {
	ID            string
	URL           string
	Method        string
	Headers       map[string]string
	Body          any
	Error         string
	StatusCode    *int
	Attempts      int
	TotalDuration time.Duration
	Timestamp     time.Time
}

// NewID returns a fresh globally unique record id.
func NewID() string {
	return uuid.NewString()
}

type wireRecord struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          any               `json:"body,omitempty"`
	Error         string            `json:"error"`
	StatusCode    *int              `json:"statusCode,omitempty"`
	Attempts      int               `json:"attempts"`
	TotalDuration int64             `json:"totalDuration"`
	Timestamp     string            `json:"timestamp"`
}

// MarshalJSON encodes the record with millisecond durations and an ISO-8601
// UTC timestamp.
func (r FailureRecord) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		ID:            r.ID,
		URL:           r.URL,
		Method:        r.Method,
		Headers:       r.Headers,
		Body:          r.Body,
		Error:         r.Error,
		StatusCode:    r.StatusCode,
		Attempts:      r.Attempts,
		TotalDuration: r.TotalDuration.Milliseconds(),
	}
	if !r.Timestamp.IsZero() {
		w.Timestamp = r.Timestamp.UTC().Format(TimestampFormat)
	}
	return json.Marshal(w)
}

func (r *FailureRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var ts time.Time
	if w.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return fmt.Errorf("smartretry: invalid record timestamp %q: %w", w.Timestamp, err)
		}
		ts = parsed.UTC()
	}

	*r = FailureRecord{
		ID:            w.ID,
		URL:           w.URL,
		Method:        w.Method,
		Headers:       w.Headers,
		Body:          w.Body,
		Error:         w.Error,
		StatusCode:    w.StatusCode,
		Attempts:      w.Attempts,
		TotalDuration: time.Duration(w.TotalDuration) * time.Millisecond,
		Timestamp:     ts,
	}
	return nil
}
