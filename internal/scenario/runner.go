package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/log"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// Expectation keys the runner evaluates itself.
const (
	// ExpectError names the sentinel the action must fail with, or "none".
	ExpectError = "error"

	// ExpectStoreUnchanged compares the store image before and after the step.
	ExpectStoreUnchanged = "store_unchanged"
)

// ActionHandler executes one step against the scenario state and returns
// the step outputs.
type ActionHandler func(ctx context.Context, step *Step, state *State) (map[string]any, error)

// Config configures a Runner.
type Config struct {
	// StopOnFirstFailure stops a suite at the first failing scenario.
	StopOnFirstFailure bool

	// StepTimeout bounds a single step. A step whose handler returns after
	// the deadline fails. Zero means no timeout.
	StepTimeout time.Duration

	// TraceLogger receives bus events for every scenario (optional).
	TraceLogger log.Logger

	// Logger for debug output (optional).
	Logger *slog.Logger
}

// DefaultConfig returns a Config with no trace and no timeout.
func DefaultConfig() Config {
	return Config{}
}

// Runner executes scenarios.
type Runner struct {
	config   Config
	handlers map[string]ActionHandler
}

// NewRunner creates a runner with the built-in actions registered.
func NewRunner(config Config) *Runner {
	r := &Runner{
		config:   config,
		handlers: make(map[string]ActionHandler),
	}
	r.registerActions()
	return r
}

// RegisterHandler registers or replaces the handler for an action.
func (r *Runner) RegisterHandler(action string, handler ActionHandler) {
	r.handlers[action] = handler
}

// Actions returns the registered action names.
func (r *Runner) Actions() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Run executes a single scenario on a fresh host.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Result {
	result := &Result{
		Scenario: sc,
		Steps:    make([]*StepResult, 0, len(sc.Steps)),
	}
	if sc.Skip {
		result.Skipped = true
		result.SkipReason = sc.SkipReason
		return result
	}

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	state, err := r.newState(sc)
	if err != nil {
		result.Error = err
		return result
	}
	defer state.Close()

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			result.Error = err
			return result
		}

		sr := r.executeStep(ctx, &sc.Steps[i], i, state)
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Error = fmt.Errorf("step %d (%s) failed: %w", i+1, sr.Step.Action, sr.Error)
			return result
		}
	}

	result.Passed = true
	return result
}

// RunSuite executes scenarios in order and aggregates the results.
func (r *Runner) RunSuite(ctx context.Context, name string, scenarios []*Scenario) *SuiteResult {
	suite := &SuiteResult{
		Name:    name,
		Results: make([]*Result, 0, len(scenarios)),
	}

	start := time.Now()
	for _, sc := range scenarios {
		res := r.Run(ctx, sc)
		suite.Results = append(suite.Results, res)

		switch {
		case res.Skipped:
			suite.SkipCount++
		case res.Passed:
			suite.PassCount++
		default:
			suite.FailCount++
			if r.config.StopOnFirstFailure {
				suite.Duration = time.Since(start)
				return suite
			}
		}
	}
	suite.Duration = time.Since(start)
	return suite
}

func (r *Runner) newState(sc *Scenario) (*State, error) {
	cfg := bus.DefaultConfig()
	if sc.Geometry != nil {
		cfg.Geometry = *sc.Geometry
	}
	if sc.MaxStoreBytes != 0 {
		cfg.MaxStoreBytes = sc.MaxStoreBytes
	}
	cfg.Logger = r.config.Logger
	cfg.TraceLogger = r.config.TraceLogger

	host, err := bus.NewHost(cfg)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}

	return &State{
		host: host,
		treeConfig: regfs.Config{
			DeviceIDs: sc.DeviceIDs,
			Logger:    r.config.Logger,
		},
		clients: make(map[string]*regfs.Client),
		vars:    make(map[string]any),
	}, nil
}

func (r *Runner) executeStep(ctx context.Context, step *Step, index int, state *State) *StepResult {
	sr := &StepResult{
		Step:    step,
		Index:   index,
		Expects: make(map[string]*ExpectResult),
	}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	handler, ok := r.handlers[step.Action]
	if !ok {
		sr.Error = fmt.Errorf("unknown action: %s", step.Action)
		return sr
	}

	if r.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.StepTimeout)
		defer cancel()
	}

	_, watchStore := step.Expect[ExpectStoreUnchanged]
	var before []byte
	if watchStore {
		before = state.image()
	}

	resolved := *step
	resolved.Params = InterpolateParams(step.Params, state.vars)

	outputs, err := handler(ctx, &resolved, state)
	if ctxErr := ctx.Err(); ctxErr != nil {
		sr.Outputs = outputs
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			sr.Error = fmt.Errorf("step exceeded timeout %s: %w", r.config.StepTimeout, ctxErr)
		} else {
			sr.Error = ctxErr
		}
		return sr
	}
	if outputs == nil {
		outputs = make(map[string]any)
	}
	outputs[ExpectError] = ErrorName(err)
	if watchStore {
		outputs[ExpectStoreUnchanged] = bytes.Equal(before, state.image())
	}
	sr.Outputs = outputs

	if _, expectsErr := step.Expect[ExpectError]; !expectsErr && err != nil {
		sr.Error = err
		return sr
	}

	for name, key := range step.Save {
		v, ok := outputs[key]
		if !ok {
			sr.Error = fmt.Errorf("save %s: no output %q", name, key)
			return sr
		}
		state.vars[name] = v
	}

	sr.Passed = true
	for key, expected := range step.Expect {
		er := checkExpect(key, interpolateValue(expected, state.vars), outputs)
		sr.Expects[key] = er
		if !er.Passed && sr.Passed {
			sr.Passed = false
			sr.Error = errors.New(er.Message)
		}
	}
	return sr
}

func checkExpect(key string, expected any, outputs map[string]any) *ExpectResult {
	er := &ExpectResult{Key: key, Expected: expected}

	actual, ok := outputs[key]
	if !ok {
		er.Message = fmt.Sprintf("%s: no such output", key)
		return er
	}
	er.Actual = actual

	if equalValues(expected, actual) {
		er.Passed = true
		return er
	}
	er.Message = fmt.Sprintf("%s: expected %v, got %v", key, expected, actual)
	return er
}

// equalValues compares a YAML-decoded expectation with an action output.
// Numbers compare by value and sequences element-wise.
func equalValues(expected, actual any) bool {
	if en, ok := toInt64(expected); ok {
		an, ok := toInt64(actual)
		return ok && en == an
	}

	ev := reflect.ValueOf(expected)
	av := reflect.ValueOf(actual)
	if ev.Kind() == reflect.Slice && av.Kind() == reflect.Slice {
		if ev.Len() != av.Len() {
			return false
		}
		for i := 0; i < ev.Len(); i++ {
			if !equalValues(ev.Index(i).Interface(), av.Index(i).Interface()) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(expected, actual)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

// ErrorName maps an error to the name scenarios use in expect.error.
func ErrorName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, regfs.ErrClientDetached):
		return "client_detached"
	case errors.Is(err, regfs.ErrUnsupportedDevice):
		return "unsupported_device"
	case errors.Is(err, regfs.ErrNotFound):
		return "not_found"
	case errors.Is(err, regfs.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, bus.ErrDuplicateRegistration):
		return "duplicate_registration"
	case errors.Is(err, bus.ErrOutOfMemory):
		return "out_of_memory"
	case errors.Is(err, bus.ErrDetached):
		return "detached"
	case errors.Is(err, bus.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
