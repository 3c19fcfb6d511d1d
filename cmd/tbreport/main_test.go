package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbreport/eventbus"
	"tbreport/pages"
	"tbreport/report"
	"tbreport/scenario"
	"tbreport/selector"
)

const gridHTML = `<div role="grid"><table>
<tr role="row"><td role="columnheader">Type of User</td><td role="columnheader">Key population</td><td role="columnheader">Age</td><td role="columnheader">Date</td></tr>
<tr role="row"><td role="gridcell">Medical worker</td><td role="gridcell">Refugee</td><td role="gridcell">25 - 34 years</td><td role="gridcell">05/01/2024</td></tr>
</table></div>`

// execute runs the CLI in an empty directory with defaults only.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV_FILE", "")
	cfgFile, debug = "", false

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeGrid(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.html")
	require.NoError(t, os.WriteFile(path, []byte(gridHTML), 0o600))
	return path
}

func TestVerifyCommand(t *testing.T) {
	grid := writeGrid(t)

	out, err := execute(t, "verify", "--grid", grid, "--show",
		"-c", "typeOfUser=Medical worker", "-c", "keyPopulation=Refugee", "-c", "date=05/01/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Medical worker")
	assert.Contains(t, out, "typeOfUser")
	assert.Contains(t, out, "match (rows [0])")

	_, err = execute(t, "verify", "--grid", grid, "-c", "typeOfUser=Social worker")
	assert.ErrorIs(t, err, errNoMatch)

	_, err = execute(t, "verify", "--grid", grid, "-c", "age=12 - 17 years")
	assert.ErrorIs(t, err, report.ErrInvalidCriteria)

	_, err = execute(t, "verify", "--grid", grid, "-c", "novalue")
	assert.Error(t, err)

	_, err = execute(t, "verify")
	assert.Error(t, err)
}

func TestFieldsCommand(t *testing.T) {
	out, err := execute(t, "fields")
	require.NoError(t, err)
	assert.Contains(t, out, pages.FieldAgeGroup)
	assert.Contains(t, out, pages.FilterTypeOfUser)
	assert.Contains(t, out, "xpath=")
}

func TestRunRequiresCredentials(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestWatchRequiresNATS(t *testing.T) {
	t.Setenv("NATS_URL", "")
	_, err := execute(t, "watch")
	assert.EqualError(t, err, "nats.url is not configured")
}

func TestHistoryRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	_, err := execute(t, "history")
	assert.EqualError(t, err, "redis.addr is not configured")
}

func TestParseCriteria(t *testing.T) {
	c, err := parseCriteria([]string{"age = 25 - 34", "date=05/01/2024", "empty="})
	require.NoError(t, err)
	assert.Equal(t, report.FilterCriteria{"age": "25 - 34", "date": "05/01/2024", "empty": ""}, c)

	_, err = parseCriteria([]string{"=x"})
	assert.Error(t, err)
}

func TestRenderResult(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	res := scenario.Result{
		RunID:      "run-1",
		Status:     scenario.StatusFailed,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Steps: []scenario.StepResult{
			{Name: "login", Status: scenario.StatusPassed, Duration: time.Second},
			{Name: "fill profile", Status: scenario.StatusFailed, Duration: 2 * time.Second, Error: "option not found"},
		},
		Outcomes:     []selector.SelectionOutcome{{Field: pages.FieldGender, Requested: "Female", Selected: "Female", Interaction: "click"}},
		Verification: &report.Verification{Columns: map[string]int{"age": 2}, Ignored: []string{"gender"}},
		Screenshot:   "artifacts/run-1-fill-profile.png",
	}

	var buf bytes.Buffer
	renderResult(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "fill profile")
	assert.Contains(t, out, "option not found")
	assert.Contains(t, out, "Female")
	assert.Contains(t, out, "ignored")
	assert.Contains(t, out, "no match")
	assert.Contains(t, out, "screenshot: artifacts/run-1-fill-profile.png")

	buf.Reset()
	renderRuns(&buf, []scenario.Result{res})
	assert.Contains(t, buf.String(), "fill profile")
}

func TestPrintEvent(t *testing.T) {
	evt := eventbus.NewEvent("run-1", eventbus.StepFailed, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	evt.Step, evt.Duration, evt.Error = "login", 1500*time.Millisecond, "timeout"

	var buf bytes.Buffer
	printEvent(&buf, evt)
	out := buf.String()
	assert.Contains(t, out, "10:00:00 run-1")
	assert.Contains(t, out, "login (1.5s): timeout")
}

func TestPrintEventAlignsTypes(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var lines []string
	for _, typ := range []string{eventbus.RunStarted, eventbus.StepFailed, "custom"} {
		evt := eventbus.NewEvent("run-1", typ, at)
		evt.Step = "login"
		var buf bytes.Buffer
		printEvent(&buf, evt)
		lines = append(lines, stripANSI(buf.String()))
	}
	col := strings.Index(lines[0], "login")
	require.Positive(t, col)
	for _, l := range lines[1:] {
		assert.Equal(t, col, strings.Index(l, "login"), l)
	}
}

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string { return ansi.ReplaceAllString(s, "") }
