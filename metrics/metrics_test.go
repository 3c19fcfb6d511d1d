package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbreport/match"
	"tbreport/selector"
)

// gather returns each series of reg keyed by name and label values, labels in
// name order.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveStep("login", "passed", 300*time.Millisecond)
	m.ObserveStep("login", "failed", time.Second)
	m.ObserveSelection(selector.SelectionOutcome{Kind: match.Exact, Interaction: "click"})
	m.ObserveSelection(selector.SelectionOutcome{Kind: match.Exact, Interaction: "click"})
	m.ObserveVerification(true)
	m.ObserveVerification(false)
	m.ObserveRun("passed", time.Minute)
	m.QueueDepth.Set(3)

	got := gather(t, reg)
	assert.InDelta(t, 1, got["tbreport_scenario_steps_total/failed/login"], 0)
	assert.InDelta(t, 2, got["tbreport_scenario_step_duration_seconds/login"], 0)
	assert.InDelta(t, 2, got["tbreport_scenario_selections_total/click/"+match.Exact.String()], 0)
	assert.InDelta(t, 1, got["tbreport_scenario_verifications_total/mismatch"], 0)
	assert.InDelta(t, 1, got["tbreport_scenario_runs_total/passed"], 0)
	assert.InDelta(t, 1, got["tbreport_scenario_run_duration_seconds"], 0)
	assert.InDelta(t, 3, got["tbreport_scenario_queue_depth"], 0)
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
