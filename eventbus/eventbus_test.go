package eventbus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventID(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a, b := NewEventID("evt_", now), NewEventID("evt_", now)

	assert.True(t, strings.HasPrefix(a, "evt_20240501_"))
	assert.Len(t, a, len("evt_20240501_")+16)
	assert.NotEqual(t, a, b)
}

func TestNewEvent(t *testing.T) {
	now := time.Now()
	evt := NewEvent("run-1", StepFailed, now)
	assert.True(t, evt.Valid())
	assert.Equal(t, "run-1", evt.RunID)
	assert.Equal(t, StepFailed, evt.Type)

	evt.RunID = ""
	assert.False(t, evt.Valid())
	assert.False(t, (&Event{EventID: "x", RunID: "r", Type: RunStarted}).Valid())
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "tbreport.runs", SubjectPrefix(""))
	assert.Equal(t, "qa.runs", SubjectPrefix("qa.runs"))
	assert.Equal(t, "tbreport.runs.step.succeeded", Subject("tbreport.runs", StepSucceeded))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
}
