package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regsim/regsim-go/internal/scenario"
)

const scenarioDir = "../../testdata/scenarios"

func TestLoadScenariosDirectory(t *testing.T) {
	all, err := loadScenarios(scenarioDir, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	life, err := loadScenarios(scenarioDir, "^SC-LIFE-")
	require.NoError(t, err)
	assert.Len(t, life, 2)

	byName, err := loadScenarios(scenarioDir, "round trip")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "SC-XFER-001", byName[0].ID)
}

func TestLoadScenariosFile(t *testing.T) {
	got, err := loadScenarios(filepath.Join(scenarioDir, "oom.yaml"), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SC-LIFE-002", got[0].ID)
}

func TestLoadScenariosErrors(t *testing.T) {
	_, err := loadScenarios(filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = loadScenarios(scenarioDir, "([")
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestReport(t *testing.T) {
	scenarios, err := loadScenarios(scenarioDir, "SC-XFER-001")
	require.NoError(t, err)
	suite := scenario.NewRunner(scenario.DefaultConfig()).RunSuite(context.Background(), "xfer", scenarios)

	var text bytes.Buffer
	report(&text, suite, false, false, false)
	assert.Contains(t, text.String(), "[PASS] SC-XFER-001 - Write then read round trip")
	assert.Contains(t, text.String(), "Passed:  1")
	assert.NotContains(t, text.String(), "\033[")

	var colored bytes.Buffer
	report(&colored, suite, false, false, true)
	assert.Contains(t, colored.String(), "[\033[32mPASS\033[0m] SC-XFER-001")

	var js bytes.Buffer
	report(&js, suite, true, false, false)
	var decoded scenario.JSONSuite
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Passed)
	assert.Equal(t, "PASS", decoded.Scenarios[0].Status)
}
