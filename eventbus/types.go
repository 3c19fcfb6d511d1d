package eventbus

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Event types published while a scenario runs.
const (
	RunStarted    = "run.started"
	StepSucceeded = "step.succeeded"
	StepFailed    = "step.failed"
	RunFinished   = "run.finished"
)

// Event is the envelope every run event travels in.
type Event struct {
	EventID   string            `json:"event_id"`
	RunID     string            `json:"run_id"`
	Type      string            `json:"type"`
	Step      string            `json:"step,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Error     string            `json:"error,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// NewEventID generates a compact unique event id with a date prefix.
func NewEventID(prefix string, t time.Time) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + t.UTC().Format("20060102") + "_" + hex.EncodeToString(b)
}

// NewEvent stamps an event of type typ for run.
func NewEvent(runID, typ string, now time.Time) Event {
	return Event{
		EventID:   NewEventID("evt_", now),
		RunID:     runID,
		Type:      typ,
		Timestamp: now,
	}
}

// Valid checks required fields.
func (e *Event) Valid() bool {
	return e.EventID != "" && e.RunID != "" && e.Type != "" && !e.Timestamp.IsZero()
}
