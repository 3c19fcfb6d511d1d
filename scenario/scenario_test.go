package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tbreport/browser/browsertest"
	"tbreport/config"
	"tbreport/eventbus"
	"tbreport/logger"
	"tbreport/pages"
	"tbreport/poll"
	"tbreport/randdata"
	"tbreport/report"
	"tbreport/selector"
)

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(_ context.Context, evt eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type counts struct {
	steps      map[string]int
	selections int
	verified   []bool
	runs       map[string]int
}

func (c *counts) ObserveStep(step, status string, _ time.Duration) { c.steps[step+"/"+status]++ }
func (c *counts) ObserveSelection(selector.SelectionOutcome)       { c.selections++ }
func (c *counts) ObserveVerification(m bool)                       { c.verified = append(c.verified, m) }
func (c *counts) ObserveRun(status string, _ time.Duration)        { c.runs[status]++ }

func testEnv(t *testing.T, log logger.Logger) (pages.Env, *browsertest.Page) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Email, cfg.Password = "qa@example.org", "secret"
	fast := poll.Options{Interval: time.Millisecond, Timeout: 50 * time.Millisecond, MinStableRounds: 2}
	cfg.Poll = config.PollConfig{Resolve: fast, Stability: fast, Close: fast}
	cfg.Timeouts = config.Timeouts{Short: 50 * time.Millisecond, Medium: 50 * time.Millisecond, Long: 50 * time.Millisecond, Navigation: 50 * time.Millisecond}
	cfg.Retry.InitialDelay, cfg.Retry.MaxDelay = time.Millisecond, time.Millisecond
	cfg.Browser.ScreenshotDir = t.TempDir()

	page := browsertest.NewPage()
	env, err := pages.NewEnv(page, cfg, randdata.New(1), log)
	require.NoError(t, err)
	return env, page
}

func TestRunPassed(t *testing.T) {
	env, page := testEnv(t, nil)
	pub := &recorder{}
	obs := &counts{steps: map[string]int{}, runs: map[string]int{}}

	var order []string
	step := func(name string) Step {
		return Step{Name: name, Do: func(_ context.Context, st *State) error {
			order = append(order, name)
			st.Result.Selections.Profile.AgeGroup = "25 - 34 years"
			st.record(selector.SelectionOutcome{Field: name})
			return nil
		}}
	}
	r := NewRunner(env, WithPublisher(pub), WithObserver(obs), WithSteps(step("a"), step("b")))

	res, err := r.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"a", "b"}, order)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, StatusPassed, res.Steps[1].Status)
	assert.Equal(t, "25 - 34 years", res.Selections.Profile.AgeGroup)
	assert.Empty(t, res.Screenshot)
	assert.Empty(t, page.Screenshots())

	assert.Equal(t, []string{
		eventbus.RunStarted, eventbus.StepSucceeded, eventbus.StepSucceeded, eventbus.RunFinished,
	}, pub.types())
	assert.Equal(t, 1, obs.steps["a/passed"])
	assert.Equal(t, 1, obs.runs[StatusPassed])
	assert.Equal(t, 2, obs.selections)
	assert.Len(t, res.Outcomes, 2)
}

func TestRunStopsAtFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env, page := testEnv(t, logger.FromZap(zap.New(core)))
	pub := &recorder{}
	boom := errors.New("boom")

	var ran []string
	r := NewRunner(env, WithPublisher(pub), WithSteps(
		Step{"first", func(context.Context, *State) error { ran = append(ran, "first"); return nil }},
		Step{"second step", func(context.Context, *State) error { ran = append(ran, "second"); return boom }},
		Step{"third", func(context.Context, *State) error { ran = append(ran, "third"); return nil }},
	))

	res, err := r.Run(context.Background(), "")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second step")
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"first", "second"}, ran)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "boom", res.Steps[1].Error)

	require.Len(t, page.Screenshots(), 1)
	assert.Contains(t, res.Screenshot, res.RunID+"-second-step.png")

	types := pub.types()
	assert.Equal(t, eventbus.StepFailed, types[2])
	assert.Equal(t, eventbus.RunFinished, types[3])

	failed := logs.FilterMessage("step failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "second step", failed[0].ContextMap()["step"])
	assert.Equal(t, 1, logs.FilterMessage("step succeeded").Len())
}

func TestNavigateRetries(t *testing.T) {
	env, page := testEnv(t, nil)
	page.GotoErr = errors.New("net::ERR_CONNECTION_REFUSED")

	res, err := NewRunner(env, WithSteps(Step{"navigate", navigate})).Run(context.Background(), "nav")
	require.Error(t, err)
	assert.Len(t, page.Visits(), env.Config.Retry.MaxAttempts)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestVerifyLoginFails(t *testing.T) {
	env, _ := testEnv(t, nil)
	_, err := NewRunner(env, WithSteps(Step{"verify login", verifyLogin})).Run(context.Background(), "")
	assert.ErrorIs(t, err, poll.ErrStabilityTimeout)
}

func TestSelectionsCriteria(t *testing.T) {
	s := Selections{
		Profile:  pages.Profile{TypeOfUser: "Medical worker", Identity: "Refugee", AgeGroup: "25 - 34 years"},
		FromDate: "05/01/2024",
	}
	assert.Equal(t, report.FilterCriteria{
		"typeOfUser":    "Medical worker",
		"keyPopulation": "Refugee",
		"age":           "25 - 34 years",
		"date":          "05/01/2024",
	}, s.Criteria())
}

func TestVerifyReportRejectsUnknownValues(t *testing.T) {
	env, page := testEnv(t, nil)
	st := &State{Env: env, Now: time.Now, Result: &Result{}}
	st.Result.Selections.Profile.AgeGroup = "12 - 17 years"

	err := verifyReport(context.Background(), st)
	assert.ErrorIs(t, err, report.ErrInvalidCriteria)
	assert.Nil(t, st.Result.Verification)
	assert.Empty(t, page.Visits())
}

func TestDefaultSteps(t *testing.T) {
	var names []string
	for _, s := range DefaultSteps() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"navigate", "login", "verify login", "set language", "open anonymous reporting",
		"start report", "fill profile", "submit barriers", "open report panel",
		"apply filters", "read report", "set from date", "verify report",
	}, names)
}
