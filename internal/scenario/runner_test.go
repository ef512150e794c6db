package scenario

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/log"
	"github.com/regsim/regsim-go/pkg/regfs"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	sc, err := Parse([]byte(yaml))
	require.NoError(t, err)
	return sc
}

func TestRunScenarioFiles(t *testing.T) {
	scenarios, err := LoadDirectory(scenarioDir)
	require.NoError(t, err)

	r := NewRunner(DefaultConfig())
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			res := r.Run(context.Background(), sc)
			require.True(t, res.Passed, "scenario failed: %v", res.Error)
			assert.Len(t, res.Steps, len(sc.Steps))
		})
	}
}

func TestRunFailedExpectation(t *testing.T) {
	sc := mustParse(t, `
id: F-1
steps:
  - action: attach_bus
  - action: read
    params: {address: 0, offset: 0, length: 1}
    expect:
      data: [1]
  - action: detach_bus
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "step 2 (read) failed")
	assert.Contains(t, res.Error.Error(), "data: expected [1], got [0]")
	assert.Len(t, res.Steps, 2, "execution stops at the failing step")

	er := res.Steps[1].Expects["data"]
	require.NotNil(t, er)
	assert.False(t, er.Passed)
}

func TestRunUnexpectedError(t *testing.T) {
	sc := mustParse(t, `
id: F-2
steps:
  - action: attach_bus
  - action: write
    params: {address: 300, offset: 0, data: [1]}
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Error, bus.ErrInvalidArgument)
}

func TestRunWrongErrorName(t *testing.T) {
	sc := mustParse(t, `
id: F-3
steps:
  - action: attach_bus
  - action: write
    params: {address: 1, offset: 0, data: [1]}
    expect:
      error: invalid_argument
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.Contains(t, res.Error.Error(), "error: expected invalid_argument, got none")
}

func TestRunUnknownAction(t *testing.T) {
	sc := mustParse(t, "id: F-4\nsteps:\n  - action: reboot\n")
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.Contains(t, res.Error.Error(), "unknown action: reboot")
}

func TestRunMissingOutput(t *testing.T) {
	sc := mustParse(t, `
id: F-5
steps:
  - action: attach_bus
    expect:
      colour: blue
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.Contains(t, res.Error.Error(), "colour: no such output")
}

func TestRunBadParams(t *testing.T) {
	tests := []struct {
		name   string
		params string
		msg    string
	}{
		{"missing address", "{offset: 0, length: 1}", `missing parameter "address"`},
		{"bad address", "{address: zz, offset: 0, length: 1}", "invalid numeric value"},
		{"negative", "{address: -1, offset: 0, length: 1}", "out of range"},
		{"bad direction", "{direction: sideways, address: 0, offset: 0, length: 1}", "invalid direction"},
		{"bad mode", "{mode: word, address: 0, offset: 0, length: 1}", "invalid mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := mustParse(t, fmt.Sprintf(`
id: P
steps:
  - action: attach_bus
  - action: transfer
    params: %s
`, tt.params))
			res := NewRunner(DefaultConfig()).Run(context.Background(), sc)
			assert.False(t, res.Passed)
			assert.Contains(t, res.Error.Error(), tt.msg)
		})
	}
}

func TestRunSkipped(t *testing.T) {
	sc := mustParse(t, `
id: S-1
skip: true
skip_reason: not yet
steps:
  - action: reboot
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)

	assert.True(t, res.Skipped)
	assert.Equal(t, "not yet", res.SkipReason)
	assert.Empty(t, res.Steps)
}

func TestRunCancelledContext(t *testing.T) {
	sc := mustParse(t, "id: C-1\nsteps:\n  - action: attach_bus\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewRunner(DefaultConfig()).Run(ctx, sc)
	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Error, context.Canceled)
}

func TestRunInvalidGeometry(t *testing.T) {
	sc := mustParse(t, `
id: G-1
geometry: {max_devices: 0, max_registers: 16}
steps:
  - action: attach_bus
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)
	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Error, bus.ErrInvalidArgument)
}

func TestRunCustomGeometry(t *testing.T) {
	sc := mustParse(t, `
id: G-2
geometry: {max_devices: 4, max_registers: 8}
device_ids: [sensor]
steps:
  - action: attach_bus
    expect:
      geometry: 4x8
  - action: attach_client
    params: {name: sensor, address: 3}
    expect:
      dir: sensor-03
      registers: 8
  - action: write
    params: {address: 3, offset: 0, data: [1, 2, 3, 4, 5, 6, 7]}
    expect:
      moved: 7
  - action: write
    params: {address: 4, offset: 0, data: [1]}
    expect:
      error: invalid_argument
  - action: attach_client
    params: {name: i2c_dummy_device, address: 1}
    expect:
      error: unsupported_device
  - action: check_store
    params: {address: 3}
    expect:
      size: 8
      non_zero: 7
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)
	require.True(t, res.Passed, "%v", res.Error)
}

func TestRunLeavesNoBusAttached(t *testing.T) {
	var state *State
	r := NewRunner(DefaultConfig())
	r.RegisterHandler("capture", func(_ context.Context, _ *Step, s *State) (map[string]any, error) {
		state = s
		return nil, nil
	})

	sc := mustParse(t, "id: L-1\nsteps:\n  - action: attach_bus\n  - action: capture\n")
	res := r.Run(context.Background(), sc)
	require.True(t, res.Passed, "%v", res.Error)

	require.NotNil(t, state)
	assert.Nil(t, state.Host().Current())
	assert.False(t, state.Instance().Attached())
}

func TestRegisterHandler(t *testing.T) {
	r := NewRunner(DefaultConfig())
	r.RegisterHandler("answer", func(_ context.Context, step *Step, _ *State) (map[string]any, error) {
		return map[string]any{"value": 42, "echo": step.Params["say"]}, nil
	})
	assert.Contains(t, r.Actions(), "answer")
	assert.Contains(t, r.Actions(), ActionTransfer)

	sc := mustParse(t, `
id: H-1
steps:
  - action: answer
    params: {say: hi}
    expect:
      value: 42
      echo: hi
`)
	res := r.Run(context.Background(), sc)
	assert.True(t, res.Passed, "%v", res.Error)
}

func TestRunSuite(t *testing.T) {
	pass := mustParse(t, "id: A\nsteps:\n  - action: attach_bus\n")
	fail := mustParse(t, "id: B\nsteps:\n  - action: reboot\n")
	skip := mustParse(t, "id: C\nskip: true\nsteps:\n  - action: attach_bus\n")

	suite := NewRunner(DefaultConfig()).RunSuite(context.Background(), "mixed", []*Scenario{pass, fail, skip, pass})
	assert.Equal(t, "mixed", suite.Name)
	assert.Len(t, suite.Results, 4)
	assert.Equal(t, 2, suite.PassCount)
	assert.Equal(t, 1, suite.FailCount)
	assert.Equal(t, 1, suite.SkipCount)

	cfg := DefaultConfig()
	cfg.StopOnFirstFailure = true
	suite = NewRunner(cfg).RunSuite(context.Background(), "stop", []*Scenario{pass, fail, pass})
	assert.Len(t, suite.Results, 2)
	assert.Equal(t, 1, suite.FailCount)
}

func TestRunWithTrace(t *testing.T) {
	var events []log.Event
	cfg := DefaultConfig()
	cfg.TraceLogger = loggerFunc(func(e log.Event) { events = append(events, e) })

	sc := mustParse(t, `
id: T-1
steps:
  - action: attach_bus
  - action: write
    params: {address: 0, offset: 0, data: [1]}
`)
	res := NewRunner(cfg).Run(context.Background(), sc)
	require.True(t, res.Passed, "%v", res.Error)

	var transfers int
	for _, e := range events {
		if e.Category == log.CategoryTransfer {
			transfers++
		}
	}
	assert.Equal(t, 1, transfers)
}

type loggerFunc func(log.Event)

func (f loggerFunc) Log(e log.Event) { f(e) }

func TestErrorName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{bus.ErrInvalidArgument, "invalid_argument"},
		{fmt.Errorf("wrap: %w", bus.ErrOutOfMemory), "out_of_memory"},
		{bus.ErrDuplicateRegistration, "duplicate_registration"},
		{bus.ErrDetached, "detached"},
		{regfs.ErrClientDetached, "client_detached"},
		{regfs.ErrNotFound, "not_found"},
		{regfs.ErrUnsupportedDevice, "unsupported_device"},
		{regfs.ErrInvalidPath, "invalid_path"},
		{errors.New("other"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorName(tt.err))
	}
}

func TestEqualValues(t *testing.T) {
	assert.True(t, equalValues(171, uint64(171)))
	assert.True(t, equalValues(3, uint32(3)))
	assert.True(t, equalValues([]any{0xab, 0}, []any{171, 0}))
	assert.True(t, equalValues("a", "a"))
	assert.True(t, equalValues(true, true))
	assert.False(t, equalValues(1, "1"))
	assert.False(t, equalValues([]any{1}, []any{1, 2}))
	assert.False(t, equalValues(true, false))
}

func TestRunStepTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepTimeout = 10 * time.Millisecond
	r := NewRunner(cfg)
	r.RegisterHandler("stall", func(ctx context.Context, _ *Step, _ *State) (map[string]any, error) {
		<-ctx.Done()
		return map[string]any{"done": true}, nil
	})

	sc := mustParse(t, `
id: TO-1
steps:
  - action: attach_bus
  - action: stall
  - action: detach_bus
`)
	res := r.Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Error, context.DeadlineExceeded)
	assert.Contains(t, res.Error.Error(), "step 2 (stall) failed: step exceeded timeout 10ms")
	require.Len(t, res.Steps, 2)
	assert.True(t, res.Steps[0].Passed, "fast steps finish inside the timeout")
}

func TestRunStepTimeoutNotReached(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepTimeout = time.Minute
	sc := mustParse(t, `
id: TO-2
steps:
  - action: attach_bus
  - action: write
    params: {address: 0, offset: 0, data: [1]}
    expect:
      moved: 1
`)
	res := NewRunner(cfg).Run(context.Background(), sc)
	assert.True(t, res.Passed, "%v", res.Error)
}

func TestRunDetachBusBeforeAttach(t *testing.T) {
	sc := mustParse(t, `
id: D-1
steps:
  - action: detach_bus
    expect:
      error: none
      attached: false
  - action: attach_bus
    expect:
      number: 0
  - action: detach_bus
    expect:
      attached: false
  - action: detach_bus
    expect:
      error: none
      attached: false
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)
	assert.True(t, res.Passed, "%v", res.Error)
}
