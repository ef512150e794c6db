package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMixedSuite(t *testing.T) *SuiteResult {
	t.Helper()
	pass := mustParse(t, `
id: R-PASS
name: Passing
steps:
  - action: attach_bus
    description: Bring up the bus
    expect:
      number: 0
`)
	fail := mustParse(t, `
id: R-FAIL
name: Failing
steps:
  - action: attach_bus
  - action: read
    params: {address: 0, offset: 0, length: 1}
    expect:
      data: [9]
`)
	skip := mustParse(t, `
id: R-SKIP
name: Skipped
skip: true
skip_reason: hardware only
steps:
  - action: attach_bus
`)
	return NewRunner(DefaultConfig()).RunSuite(context.Background(), "report", []*Scenario{pass, fail, skip})
}

func TestTextReporter(t *testing.T) {
	suite := runMixedSuite(t)

	var buf bytes.Buffer
	NewTextReporter(&buf, false).ReportSuite(suite)
	out := buf.String()

	assert.Contains(t, out, "=== Suite: report ===")
	assert.Contains(t, out, "[PASS] R-PASS - Passing")
	assert.Contains(t, out, "[FAIL] R-FAIL - Failing")
	assert.Contains(t, out, "Error: step 2 (read) failed")
	assert.Contains(t, out, "[SKIP] R-SKIP - Skipped")
	assert.Contains(t, out, "Skip reason: hardware only")
	assert.Contains(t, out, "Total:   3")
	assert.Contains(t, out, "Failed:  1")
	assert.NotContains(t, out, "Step 1")
}

func TestTextReporterVerbose(t *testing.T) {
	suite := runMixedSuite(t)

	var buf bytes.Buffer
	NewTextReporter(&buf, true).ReportSuite(suite)
	out := buf.String()

	assert.Contains(t, out, "    [PASS] Step 1: attach_bus")
	assert.Contains(t, out, "Bring up the bus")
	assert.Contains(t, out, "[OK] number = 0")
	assert.Contains(t, out, "    [FAIL] Step 2: read")
	assert.Contains(t, out, "[FAILED] data: expected [9], got [0]")
}

func TestJSONReporter(t *testing.T) {
	suite := runMixedSuite(t)

	var buf bytes.Buffer
	NewJSONReporter(&buf, false).ReportSuite(suite)

	var js JSONSuite
	require.NoError(t, json.Unmarshal(buf.Bytes(), &js))
	assert.Equal(t, "report", js.Name)
	assert.Equal(t, 3, js.Total)
	assert.Equal(t, 1, js.Passed)
	assert.Equal(t, 1, js.Failed)
	assert.Equal(t, 1, js.Skipped)
	require.Len(t, js.Scenarios, 3)

	failed := js.Scenarios[1]
	assert.Equal(t, "FAIL", failed.Status)
	assert.Contains(t, failed.Error, "data: expected [9]")
	require.Len(t, failed.Steps, 2)
	assert.False(t, failed.Steps[1].Passed)
	assert.Equal(t, "none", failed.Steps[1].Outputs["error"])

	assert.Equal(t, "hardware only", js.Scenarios[2].SkipReason)
}

func TestJSONReporterScenario(t *testing.T) {
	suite := runMixedSuite(t)

	var buf bytes.Buffer
	NewJSONReporter(&buf, true).ReportScenario(suite.Results[0])

	var js JSONScenario
	require.NoError(t, json.Unmarshal(buf.Bytes(), &js))
	assert.Equal(t, "R-PASS", js.ID)
	assert.Equal(t, "PASS", js.Status)
	assert.Contains(t, buf.String(), "\n  \"id\"")
}
