package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	vars := map[string]any{"dir": "i2c_dummy_device-50", "n": 3}

	assert.Equal(t, "i2c_dummy_device-50/0a", Interpolate("{{ dir }}/0a", vars))
	assert.Equal(t, "n=3", Interpolate("n={{n}}", vars))
	assert.Equal(t, "{{ missing }}", Interpolate("{{ missing }}", vars))
	assert.Equal(t, "plain", Interpolate("plain", vars))
}

func TestInterpolateParams(t *testing.T) {
	vars := map[string]any{"addr": 80, "dir": "d-50"}
	params := map[string]any{
		"address": "{{ addr }}",
		"path":    "{{ dir }}/01",
		"data":    []any{"{{ addr }}", 1},
		"nested":  map[string]any{"x": "{{ dir }}"},
		"count":   4,
	}

	got := InterpolateParams(params, vars)
	assert.Equal(t, 80, got["address"], "pure reference keeps its type")
	assert.Equal(t, "d-50/01", got["path"])
	assert.Equal(t, []any{80, 1}, got["data"])
	assert.Equal(t, map[string]any{"x": "d-50"}, got["nested"])
	assert.Equal(t, 4, got["count"])

	assert.Equal(t, "{{ addr }}", params["address"], "input is not modified")
	assert.Nil(t, InterpolateParams(nil, vars))
}

func TestRunSaveAndReuse(t *testing.T) {
	sc := mustParse(t, `
id: V-1
steps:
  - action: attach_bus
    save:
      bus: number
  - action: attach_client
    params: {name: i2c_dummy_dev, address: 0x21}
    save:
      dir: dir
  - action: set
    params:
      path: "{{ dir }}/04"
      value: 9
  - action: get
    params:
      path: "{{ dir }}/04"
    expect:
      value: 9
  - action: list
    expect:
      dirs: ["{{ dir }}"]
`)
	var captured *State
	r := NewRunner(DefaultConfig())
	r.RegisterHandler("noop", func(_ context.Context, _ *Step, s *State) (map[string]any, error) {
		captured = s
		return nil, nil
	})
	sc.Steps = append(sc.Steps, Step{Action: "noop"})

	res := r.Run(context.Background(), sc)
	require.True(t, res.Passed, "%v", res.Error)

	dir, ok := captured.Var("dir")
	require.True(t, ok)
	assert.Equal(t, "i2c_dummy_dev-21", dir)
	bus, ok := captured.Var("bus")
	require.True(t, ok)
	assert.Equal(t, 0, bus)
}

func TestRunSaveMissingOutput(t *testing.T) {
	sc := mustParse(t, `
id: V-2
steps:
  - action: attach_bus
    save:
      x: nothing
`)
	res := NewRunner(DefaultConfig()).Run(context.Background(), sc)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error.Error(), `save x: no output "nothing"`)
}
