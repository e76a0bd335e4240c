package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ReportedTime is an execution time decoded from a JSON request body. It
// tells an absent field apart from an explicit null: the executor reports a
// timeout as "execution_time": null.
type ReportedTime struct {
	// Set is true when the field was present, null included.
	Set     bool
	Seconds *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ReportedTime) UnmarshalJSON(data []byte) error {
	t.Set = true
	t.Seconds = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s float64
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("execution_time: %w", err)
	}
	t.Seconds = &s
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t ReportedTime) MarshalJSON() ([]byte, error) {
	if t.Seconds == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*t.Seconds)
}

// Resolve returns the execution time to analyse with. An explicit null or
// timedOut means the run timed out; an absent field is a completed 0s run.
func (t ReportedTime) Resolve(timedOut bool) *float64 {
	if t.Set && t.Seconds == nil {
		return nil
	}
	return Timing(t.Seconds, timedOut)
}
