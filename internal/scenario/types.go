// Package scenario runs YAML-described register scenarios against a
// simulated bus.
//
// A scenario brings up its own bus.Host, executes its steps in order and
// checks each step's expectations against the step outputs. Scenarios are
// how client-software behavior is pinned down without hardware: attach and
// detach sequences, bounds violations, accessor isolation.
package scenario

import (
	"fmt"
	"time"

	"github.com/regsim/regsim-go/pkg/bus"
)

// Scenario represents a single scenario loaded from YAML.
type Scenario struct {
	// ID is the unique scenario identifier (e.g., "SC-XFER-001").
	ID string `yaml:"id"`

	// Name is a human-readable name for the scenario.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Geometry overrides the default store geometry.
	Geometry *bus.Geometry `yaml:"geometry,omitempty"`

	// MaxStoreBytes overrides the default store budget.
	MaxStoreBytes int64 `yaml:"max_store_bytes,omitempty"`

	// DeviceIDs overrides the client driver's ID table.
	DeviceIDs []string `yaml:"device_ids,omitempty"`

	// Steps are the actions to execute in order.
	Steps []Step `yaml:"steps"`

	// Tags for categorizing scenarios.
	Tags []string `yaml:"tags,omitempty"`

	// Skip marks the scenario as not runnable.
	Skip bool `yaml:"skip,omitempty"`

	// SkipReason explains why the scenario is skipped.
	SkipReason string `yaml:"skip_reason,omitempty"`
}

// Step represents a single action in a scenario.
type Step struct {
	// Action is the action to perform (e.g., "attach_bus", "transfer").
	Action string `yaml:"action"`

	// Params are parameters for the action.
	Params map[string]any `yaml:"params,omitempty"`

	// Expect defines expected outcomes after the action.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Save copies outputs into variables for later steps, keyed by
	// variable name. Params reference them as {{ name }}.
	Save map[string]string `yaml:"save,omitempty"`

	// Description explains what this step does.
	Description string `yaml:"description,omitempty"`
}

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Result represents the outcome of a single scenario.
type Result struct {
	// Scenario is the scenario that was executed.
	Scenario *Scenario

	// Passed indicates if all steps passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	// Steps contains results for each executed step.
	Steps []*StepResult

	// Duration is how long the scenario took.
	Duration time.Duration

	// Skipped indicates if the scenario was skipped.
	Skipped bool

	// SkipReason explains why the scenario was skipped.
	SkipReason string
}

// StepResult represents the outcome of a single step.
type StepResult struct {
	// Step is the step that was executed.
	Step *Step

	// Index is the index of this step (0-based).
	Index int

	// Passed indicates if the step passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	// Outputs are the values the action produced.
	Outputs map[string]any

	// Expects maps expectation keys to their results.
	Expects map[string]*ExpectResult

	// Duration is how long the step took.
	Duration time.Duration
}

// ExpectResult represents the result of checking an expectation.
type ExpectResult struct {
	Key      string
	Expected any
	Actual   any
	Passed   bool
	Message  string
}

// SuiteResult represents the outcome of running several scenarios.
type SuiteResult struct {
	// Name identifies the suite.
	Name string

	// Results contains results for each scenario.
	Results []*Result

	PassCount int
	FailCount int
	SkipCount int

	// Duration is the total time for all scenarios.
	Duration time.Duration
}
