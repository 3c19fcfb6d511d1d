package pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tbreport/browser"
	"tbreport/logger"
	"tbreport/poll"
	"tbreport/report"
	"tbreport/selector"
)

// ErrEmptyDate is returned when the From box does not keep the typed date.
var ErrEmptyDate = errors.New("date input is empty after typing")

// ReportPanel drives the demographic communities report.
type ReportPanel struct {
	Env
	verifier *report.Verifier
}

// NewReportPanel returns the report panel page. A nil verifier uses the default
// column resolution.
func NewReportPanel(env Env, v *report.Verifier) *ReportPanel {
	if v == nil {
		v = report.NewVerifier(env.Log, nil)
	}
	return &ReportPanel{Env: env, verifier: v}
}

// OpenDemographic follows the report menu to the demographic communities report.
func (p *ReportPanel) OpenDemographic(ctx context.Context) error {
	if err := p.click(ctx, ReportMenu); err != nil {
		return fmt.Errorf("report menu: %w", err)
	}
	if err := p.click(ctx, DemographicMenu); err != nil {
		return fmt.Errorf("demographic report: %w", err)
	}
	if err := p.waitVisible(ctx, reportToolbar, p.Config.Timeouts.Medium); err != nil {
		return fmt.Errorf("report toolbar: %w", err)
	}
	return nil
}

// waitIdle waits for the toolbar and for the load panel to go away.
func (p *ReportPanel) waitIdle(ctx context.Context) error {
	t := p.Config.Timeouts.Medium
	if err := p.waitVisible(ctx, reportToolbar, t); err != nil {
		return err
	}
	return p.waitHidden(ctx, loadPanel, t)
}

// ApplyFilter selects value in the filter with the given placeholder.
func (p *ReportPanel) ApplyFilter(ctx context.Context, filter, value string) (selector.SelectionOutcome, error) {
	if err := p.waitIdle(ctx); err != nil {
		return selector.SelectionOutcome{}, fmt.Errorf("report not ready for %s: %w", filter, err)
	}
	d, err := p.field(filter)
	if err != nil {
		return selector.SelectionOutcome{}, err
	}
	return p.Selector.SelectOption(ctx, d, value)
}

// InputFromDate replaces the From date with day and returns the typed text.
func (p *ReportPanel) InputFromDate(ctx context.Context, day time.Time) (string, error) {
	date := report.FormatDate(day)
	el, err := p.resolve(ctx, FromDate)
	if err != nil {
		return "", err
	}
	if err := el.Click(ctx); err != nil {
		return "", fmt.Errorf("focus date: %w", err)
	}
	for _, k := range []string{"Control+a", "Backspace"} {
		if err := el.Press(ctx, k); err != nil {
			return "", fmt.Errorf("clear date: %w", err)
		}
	}
	if err := el.Type(ctx, date, p.Config.Browser.TypeDelay); err != nil {
		return "", fmt.Errorf("type date: %w", err)
	}
	if err := el.Press(ctx, "Tab"); err != nil {
		return "", fmt.Errorf("commit date: %w", err)
	}

	var value string
	err = poll.Until(ctx, "date committed", p.pollOptions(p.Config.Timeouts.Short), func(ctx context.Context) (bool, error) {
		v, err := el.Value(ctx)
		value = v
		return v != "", err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmptyDate, err)
	}
	p.Log.Info("from date set", logger.String("date", date), logger.String("value", value))
	return date, nil
}

// ReadGrid scrapes the report grid once the load panel is gone.
func (p *ReportPanel) ReadGrid(ctx context.Context) (report.Grid, error) {
	t := p.Config.Timeouts.Medium
	if err := p.waitVisible(ctx, reportGrid, t); err != nil {
		return report.Grid{}, fmt.Errorf("report grid: %w", err)
	}
	if err := p.waitHidden(ctx, loadPanel, t); err != nil {
		return report.Grid{}, fmt.Errorf("report loading: %w", err)
	}
	el, err := browser.FirstVisible(ctx, p.Page, reportGrid)
	if err != nil {
		return report.Grid{}, err
	}
	if el == nil {
		return report.Grid{}, fmt.Errorf("report grid: %w", browser.ErrNotFound)
	}
	html, err := el.HTML(ctx)
	if err != nil {
		return report.Grid{}, fmt.Errorf("read grid: %w", err)
	}
	g, err := report.ParseGrid(html)
	if err != nil {
		return report.Grid{}, err
	}
	p.Log.Debug("grid read", logger.Int("columns", len(g.Headers)), logger.Int("rows", len(g.Rows)))
	return g, nil
}

// VerifyFilters reads the grid and checks for a row matching criteria.
func (p *ReportPanel) VerifyFilters(ctx context.Context, criteria report.FilterCriteria) (report.Verification, error) {
	g, err := p.ReadGrid(ctx)
	if err != nil {
		return report.Verification{}, err
	}
	res := p.verifier.Explain(g.Rows, g.Headers, criteria)
	p.Log.Info("report verified",
		logger.Bool("matched", res.Matched),
		logger.Int("rows", len(g.Rows)),
		logger.Int("matching", len(res.MatchingRows)),
		logger.Int("malformed", res.Malformed))
	return res, nil
}
