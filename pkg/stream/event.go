package stream

import (
	"bytes"
	"errors"
	"time"

	json "github.com/json-iterator/go"
)

// Job statuses reported by the pipeline. Intermediate events are usually
// "running"; only completed and failed end a stream.
const (
	StatusQueued     = "queued"
	StatusRunning    = "running"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRolledBack = "rolled_back"
)

// ErrMalformedFrame is returned by ParseEvent for frames that are not a
// JSON object with a status.
var ErrMalformedFrame = errors.New("malformed frame")

// Event is one progress report for a job.
type Event struct {
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
	Stage     string  `json:"stage,omitempty"`
	Message   string  `json:"message"`
	Progress  float64 `json:"progress"`
}

// Terminal reports whether the event ends the job.
func (e Event) Terminal() bool {
	return IsTerminal(e.Status)
}

// Time parses Timestamp. The backend sends ISO-8601, usually without a zone,
// in which case UTC is assumed.
func (e Event) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsTerminal reports whether status ends a stream. rolled_back is a job
// status but is never streamed as an end event.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// ParseEvent decodes one frame. Progress is clamped to [0, 100].
func ParseEvent(data []byte) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, ErrMalformedFrame
	}

	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return Event{}, ErrMalformedFrame
	}
	if ev.Status == "" {
		return Event{}, ErrMalformedFrame
	}

	switch {
	case ev.Progress < 0:
		ev.Progress = 0
	case ev.Progress > 100:
		ev.Progress = 100
	}
	return ev, nil
}
