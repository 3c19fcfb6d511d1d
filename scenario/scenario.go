// Package scenario runs the end-to-end reporting flow: log in, file an anonymous
// barrier report, then find it again through the demographic report filters.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tbreport/eventbus"
	"tbreport/logger"
	"tbreport/pages"
	"tbreport/report"
	"tbreport/retry"
	"tbreport/selector"
)

var (
	ErrNotLoggedIn      = errors.New("user menu does not show the configured email")
	ErrEmptyReport      = errors.New("report grid has no rows")
	ErrNoMatchingRecord = errors.New("no report row matches the applied filters")
)

// Run and step statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Selections is the value bag steps fill in and later steps read from.
type Selections struct {
	Profile  pages.Profile               `json:"profile"`
	Barriers []selector.SelectionOutcome `json:"barriers,omitempty"`
	Filters  []selector.SelectionOutcome `json:"filters,omitempty"`
	FromDate string                      `json:"from_date,omitempty"`
}

// Criteria are the report filters the saved profile should satisfy.
func (s Selections) Criteria() report.FilterCriteria {
	return report.FilterCriteria{
		"typeOfUser":    s.Profile.TypeOfUser,
		"keyPopulation": s.Profile.Identity,
		"age":           s.Profile.AgeGroup,
		"date":          s.FromDate,
	}
}

// StepResult is one executed step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is everything a run produced.
type Result struct {
	RunID        string                      `json:"run_id"`
	Status       string                      `json:"status"`
	StartedAt    time.Time                   `json:"started_at"`
	FinishedAt   time.Time                   `json:"finished_at"`
	Steps        []StepResult                `json:"steps"`
	Selections   Selections                  `json:"selections"`
	Outcomes     []selector.SelectionOutcome `json:"outcomes,omitempty"`
	Verification *report.Verification        `json:"verification,omitempty"`
	Error        string                      `json:"error,omitempty"`
	Screenshot   string                      `json:"screenshot,omitempty"`
}

// Passed reports whether every step succeeded.
func (r Result) Passed() bool { return r.Status == StatusPassed }

// Duration is the wall time of the run.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Observer receives run measurements.
type Observer interface {
	ObserveStep(step, status string, d time.Duration)
	ObserveSelection(out selector.SelectionOutcome)
	ObserveVerification(matched bool)
	ObserveRun(status string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveStep(string, string, time.Duration)  {}
func (nopObserver) ObserveSelection(selector.SelectionOutcome) {}
func (nopObserver) ObserveVerification(bool)                   {}
func (nopObserver) ObserveRun(string, time.Duration)           {}

// Runner executes the scenario against one page.
type Runner struct {
	env   pages.Env
	log   logger.Logger
	pub   eventbus.Publisher
	obs   Observer
	now   func() time.Time
	steps []Step
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher publishes run events.
func WithPublisher(p eventbus.Publisher) Option { return func(r *Runner) { r.pub = p } }

// WithObserver records metrics.
func WithObserver(o Observer) Option { return func(r *Runner) { r.obs = o } }

// WithClock overrides time.Now, which also decides the report date.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithSteps replaces the default step list.
func WithSteps(steps ...Step) Option { return func(r *Runner) { r.steps = steps } }

// NewRunner returns a Runner running DefaultSteps.
func NewRunner(env pages.Env, opts ...Option) *Runner {
	r := &Runner{
		env:   env,
		log:   env.Log,
		pub:   eventbus.Nop{},
		obs:   nopObserver{},
		now:   time.Now,
		steps: DefaultSteps(),
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes every step in order and stops at the first failure. An empty runID
// gets a fresh UUID. The returned error is the failing step's.
func (r *Runner) Run(ctx context.Context, runID string) (Result, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	log := r.log.With(logger.String("run_id", runID))
	res := Result{RunID: runID, StartedAt: r.now()}
	r.publish(ctx, eventbus.NewEvent(runID, eventbus.RunStarted, res.StartedAt))
	log.Info("run started", logger.Int("steps", len(r.steps)))

	st := &State{Env: r.env, Now: r.now, Result: &res, obs: r.obs}
	var runErr error
	for _, step := range r.steps {
		if runErr = r.runStep(ctx, log, st, step); runErr != nil {
			break
		}
	}

	res.FinishedAt = r.now()
	res.Status = StatusPassed
	if runErr != nil {
		res.Status = StatusFailed
		res.Error = runErr.Error()
	}
	r.obs.ObserveRun(res.Status, res.Duration())

	done := eventbus.NewEvent(runID, eventbus.RunFinished, res.FinishedAt)
	done.Duration = res.Duration()
	done.Data = map[string]string{"status": res.Status}
	done.Error = res.Error
	r.publish(ctx, done)
	log.Info("run finished", logger.String("status", res.Status), logger.Duration("duration", res.Duration()))
	return res, runErr
}

func (r *Runner) runStep(ctx context.Context, log logger.Logger, st *State, step Step) error {
	log = log.With(logger.String("step", step.Name))
	log.Info("step started")
	start := r.now()
	err := step.Do(ctx, st)
	d := r.now().Sub(start)

	sr := StepResult{Name: step.Name, Status: StatusPassed, Duration: d}
	evt := eventbus.NewEvent(st.Result.RunID, eventbus.StepSucceeded, r.now())
	if err != nil {
		sr.Status, sr.Error = StatusFailed, err.Error()
		evt.Type, evt.Error = eventbus.StepFailed, err.Error()
		log.Error("step failed", logger.Duration("duration", d), logger.Error(err))
		st.Result.Screenshot = r.screenshot(ctx, log, st.Result.RunID, step.Name)
	} else {
		log.Info("step succeeded", logger.Duration("duration", d))
	}
	evt.Step, evt.Duration = step.Name, d
	st.Result.Steps = append(st.Result.Steps, sr)
	r.obs.ObserveStep(step.Name, sr.Status, d)
	r.publish(ctx, evt)
	if err != nil {
		return fmt.Errorf("%s: %w", step.Name, err)
	}
	return nil
}

func (r *Runner) screenshot(ctx context.Context, log logger.Logger, runID, step string) string {
	dir := r.env.Config.Browser.ScreenshotDir
	if dir == "" {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("screenshot dir", logger.Error(err))
		return ""
	}
	name := runID + "-" + strings.ReplaceAll(step, " ", "-") + ".png"
	path := filepath.Join(dir, name)
	// the page may be the reason the step failed; use a fresh context
	timeout := r.env.Config.Timeouts.Short
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := r.env.Page.Screenshot(sctx, path); err != nil {
		log.Warn("screenshot failed", logger.Error(err))
		return ""
	}
	return path
}

func (r *Runner) publish(ctx context.Context, evt eventbus.Event) {
	if err := r.pub.Publish(ctx, evt); err != nil {
		r.log.Warn("publish event", logger.String("type", evt.Type), logger.Error(err))
	}
}

// State is shared by the steps of one run.
type State struct {
	pages.Env
	Now    func() time.Time
	Result *Result
	obs    Observer
}

func (s *State) observer() Observer {
	if s.obs == nil {
		return nopObserver{}
	}
	return s.obs
}

func (s *State) record(out selector.SelectionOutcome) {
	s.Result.Outcomes = append(s.Result.Outcomes, out)
	s.observer().ObserveSelection(out)
}

// Step is one named part of the scenario.
type Step struct {
	Name string
	Do   func(ctx context.Context, st *State) error
}

// DefaultSteps is the full reporting flow.
func DefaultSteps() []Step {
	return []Step{
		{"navigate", navigate},
		{"login", login},
		{"verify login", verifyLogin},
		{"set language", func(ctx context.Context, st *State) error {
			return st.SetLanguage(ctx, st.Config.Language)
		}},
		{"open anonymous reporting", func(ctx context.Context, st *State) error {
			return pages.NewBarrierForm(st.Env).OpenAnonymousReporting(ctx)
		}},
		{"start report", func(ctx context.Context, st *State) error {
			return pages.NewBarrierForm(st.Env).StartReport(ctx)
		}},
		{"fill profile", fillProfile},
		{"submit barriers", submitBarriers},
		{"open report panel", func(ctx context.Context, st *State) error {
			return pages.NewReportPanel(st.Env, nil).OpenDemographic(ctx)
		}},
		{"apply filters", applyFilters},
		{"read report", readReport},
		{"set from date", setFromDate},
		{"verify report", verifyReport},
	}
}

func navigate(ctx context.Context, st *State) error {
	cfg := st.Config.Retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		st.Log.Warn("navigation failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err))
	}
	lp := pages.NewLogin(st.Env)
	return retry.Do(ctx, cfg, lp.Open)
}

func login(ctx context.Context, st *State) error {
	return pages.NewLogin(st.Env).Login(ctx, st.Config.Email, st.Config.Password)
}

func verifyLogin(ctx context.Context, st *State) error {
	ok, err := pages.NewLogin(st.Env).IsLoggedIn(ctx, st.Config.Email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotLoggedIn
	}
	return nil
}

func fillProfile(ctx context.Context, st *State) error {
	prof, err := pages.NewBarrierForm(st.Env).FillProfile(ctx, st.record)
	st.Result.Selections.Profile = prof
	return err
}

func submitBarriers(ctx context.Context, st *State) error {
	outs, err := pages.NewBarrierForm(st.Env).SubmitBarriers(ctx, st.record)
	st.Result.Selections.Barriers = outs
	return err
}

func applyFilters(ctx context.Context, st *State) error {
	prof := st.Result.Selections.Profile
	panel := pages.NewReportPanel(st.Env, nil)
	for _, f := range []struct{ filter, value string }{
		{pages.FilterTypeOfUser, prof.TypeOfUser},
		{pages.FilterKeyPopulation, prof.Identity},
		{pages.FilterAge, prof.AgeGroup},
	} {
		out, err := panel.ApplyFilter(ctx, f.filter, f.value)
		if err != nil {
			return err
		}
		st.record(out)
		st.Result.Selections.Filters = append(st.Result.Selections.Filters, out)
	}
	return nil
}

func readReport(ctx context.Context, st *State) error {
	g, err := pages.NewReportPanel(st.Env, nil).ReadGrid(ctx)
	if err != nil {
		return err
	}
	if len(g.Rows) == 0 {
		return ErrEmptyReport
	}
	return nil
}

func setFromDate(ctx context.Context, st *State) error {
	date, err := pages.NewReportPanel(st.Env, nil).InputFromDate(ctx, st.Now())
	st.Result.Selections.FromDate = date
	return err
}

func verifyReport(ctx context.Context, st *State) error {
	criteria := st.Result.Selections.Criteria()
	if err := report.CheckCriteria(criteria, st.Config.Vocabulary.Criteria()); err != nil {
		return err
	}
	res, err := pages.NewReportPanel(st.Env, nil).VerifyFilters(ctx, criteria)
	if err != nil {
		return err
	}
	st.Result.Verification = &res
	st.observer().ObserveVerification(res.Matched)
	if !res.Matched {
		return ErrNoMatchingRecord
	}
	return nil
}
