package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Reporter formats scenario results.
type Reporter interface {
	// ReportSuite reports results for a whole suite.
	ReportSuite(result *SuiteResult)

	// ReportScenario reports results for a single scenario.
	ReportScenario(result *Result)
}

var (
	_ Reporter = (*TextReporter)(nil)
	_ Reporter = (*JSONReporter)(nil)
)

// ANSI colors for status tags.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// TextReporter writes a human-readable report.
type TextReporter struct {
	w       io.Writer
	verbose bool
	color   bool
}

// NewTextReporter creates a text reporter. Verbose adds per-step lines.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{w: w, verbose: verbose}
}

// SetColor enables ANSI colors for status tags.
func (r *TextReporter) SetColor(on bool) {
	r.color = on
}

func (r *TextReporter) tag(st string) string {
	if !r.color {
		return st
	}
	switch st {
	case "PASS":
		return colorGreen + st + colorReset
	case "FAIL":
		return colorRed + st + colorReset
	default:
		return colorYellow + st + colorReset
	}
}

// ReportSuite writes every scenario line followed by a summary.
func (r *TextReporter) ReportSuite(result *SuiteResult) {
	fmt.Fprintf(r.w, "\n=== Suite: %s ===\n\n", result.Name)

	for _, res := range result.Results {
		r.ReportScenario(res)
	}

	fmt.Fprintf(r.w, "\n--- Summary ---\n")
	fmt.Fprintf(r.w, "Total:   %d\n", len(result.Results))
	fmt.Fprintf(r.w, "Passed:  %d\n", result.PassCount)
	fmt.Fprintf(r.w, "Failed:  %d\n", result.FailCount)
	fmt.Fprintf(r.w, "Skipped: %d\n", result.SkipCount)
	fmt.Fprintf(r.w, "Duration: %s\n", result.Duration.Round(time.Millisecond))
}

// ReportScenario writes one status line and, when verbose, its steps.
func (r *TextReporter) ReportScenario(result *Result) {
	sc := result.Scenario
	fmt.Fprintf(r.w, "[%s] %s - %s (%s)\n",
		r.tag(status(result)), sc.ID, sc.Name, result.Duration.Round(time.Millisecond))

	if result.Skipped && result.SkipReason != "" {
		fmt.Fprintf(r.w, "       Skip reason: %s\n", result.SkipReason)
	}
	if !result.Passed && result.Error != nil {
		fmt.Fprintf(r.w, "       Error: %v\n", result.Error)
	}

	if !r.verbose {
		return
	}
	for _, sr := range result.Steps {
		stepStatus := "PASS"
		if !sr.Passed {
			stepStatus = "FAIL"
		}
		fmt.Fprintf(r.w, "    [%s] Step %d: %s\n", r.tag(stepStatus), sr.Index+1, sr.Step.Action)
		if sr.Step.Description != "" {
			fmt.Fprintf(r.w, "           %s\n", sr.Step.Description)
		}
		for _, key := range sortedKeys(sr.Expects) {
			er := sr.Expects[key]
			if er.Passed {
				fmt.Fprintf(r.w, "           [OK] %s = %v\n", key, er.Actual)
			} else {
				fmt.Fprintf(r.w, "           [FAILED] %s\n", er.Message)
			}
		}
	}
}

func status(result *Result) string {
	switch {
	case result.Skipped:
		return "SKIP"
	case result.Passed:
		return "PASS"
	default:
		return "FAIL"
	}
}

func sortedKeys(m map[string]*ExpectResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JSONReporter writes machine-readable reports.
type JSONReporter struct {
	w      io.Writer
	pretty bool
}

// NewJSONReporter creates a JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{w: w, pretty: pretty}
}

// JSONSuite is the JSON form of a SuiteResult.
type JSONSuite struct {
	Name      string         `json:"name"`
	Duration  string         `json:"duration"`
	Total     int            `json:"total"`
	Passed    int            `json:"passed"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Scenarios []JSONScenario `json:"scenarios"`
}

// JSONScenario is the JSON form of a Result.
type JSONScenario struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Duration   string     `json:"duration"`
	Error      string     `json:"error,omitempty"`
	SkipReason string     `json:"skip_reason,omitempty"`
	Steps      []JSONStep `json:"steps,omitempty"`
}

// JSONStep is the JSON form of a StepResult.
type JSONStep struct {
	Index   int            `json:"index"`
	Action  string         `json:"action"`
	Passed  bool           `json:"passed"`
	Error   string         `json:"error,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

// ReportSuite writes the suite as one JSON document.
func (r *JSONReporter) ReportSuite(result *SuiteResult) {
	js := JSONSuite{
		Name:      result.Name,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Total:     len(result.Results),
		Passed:    result.PassCount,
		Failed:    result.FailCount,
		Skipped:   result.SkipCount,
		Scenarios: make([]JSONScenario, 0, len(result.Results)),
	}
	for _, res := range result.Results {
		js.Scenarios = append(js.Scenarios, scenarioToJSON(res))
	}
	r.write(js)
}

// ReportScenario writes one scenario as a JSON document.
func (r *JSONReporter) ReportScenario(result *Result) {
	r.write(scenarioToJSON(result))
}

func scenarioToJSON(result *Result) JSONScenario {
	js := JSONScenario{
		ID:         result.Scenario.ID,
		Name:       result.Scenario.Name,
		Status:     status(result),
		Duration:   result.Duration.Round(time.Millisecond).String(),
		SkipReason: result.SkipReason,
	}
	if result.Error != nil {
		js.Error = result.Error.Error()
	}
	for _, sr := range result.Steps {
		step := JSONStep{
			Index:   sr.Index,
			Action:  sr.Step.Action,
			Passed:  sr.Passed,
			Outputs: sr.Outputs,
		}
		if sr.Error != nil {
			step.Error = sr.Error.Error()
		}
		js.Steps = append(js.Steps, step)
	}
	return js
}

func (r *JSONReporter) write(v any) {
	enc := json.NewEncoder(r.w)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.w, `{"error": %q}`+"\n", err.Error())
	}
}
