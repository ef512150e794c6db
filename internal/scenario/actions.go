package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/inspect"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// Built-in action names.
const (
	ActionAttachBus    = "attach_bus"
	ActionDetachBus    = "detach_bus"
	ActionAttachClient = "attach_client"
	ActionDetachClient = "detach_client"
	ActionTransfer     = "transfer"
	ActionRead         = "read"
	ActionWrite        = "write"
	ActionGet          = "get"
	ActionSet          = "set"
	ActionCapabilities = "capabilities"
	ActionList         = "list"
	ActionCheckStore   = "check_store"
)

func (r *Runner) registerActions() {
	r.handlers[ActionAttachBus] = handleAttachBus
	r.handlers[ActionDetachBus] = handleDetachBus
	r.handlers[ActionAttachClient] = handleAttachClient
	r.handlers[ActionDetachClient] = handleDetachClient
	r.handlers[ActionTransfer] = handleTransfer
	r.handlers[ActionRead] = handleRead
	r.handlers[ActionWrite] = handleWrite
	r.handlers[ActionGet] = handleGet
	r.handlers[ActionSet] = handleSet
	r.handlers[ActionCapabilities] = handleCapabilities
	r.handlers[ActionList] = handleList
	r.handlers[ActionCheckStore] = handleCheckStore
}

func handleAttachBus(_ context.Context, step *Step, state *State) (map[string]any, error) {
	name := stringParam(step.Params, "name", "I2C Dummy Adapter")

	inst, err := state.host.Attach(name)
	if err != nil {
		return nil, err
	}
	tree, err := regfs.NewTree(inst, state.treeConfig)
	if err != nil {
		state.host.Detach(inst)
		return nil, err
	}

	state.inst = inst
	state.tree = tree
	return map[string]any{
		"number":   inst.Number(),
		"geometry": inst.Geometry().String(),
		"attached": true,
	}, nil
}

// handleDetachBus detaches the current bus. Like Host.Detach it is a no-op
// when nothing is attached.
func handleDetachBus(_ context.Context, _ *Step, state *State) (map[string]any, error) {
	if state.inst == nil {
		return map[string]any{"attached": false}, nil
	}
	state.host.Detach(state.inst)
	state.tree = nil
	return map[string]any{"attached": state.inst.Attached()}, nil
}

func handleAttachClient(_ context.Context, step *Step, state *State) (map[string]any, error) {
	if state.tree == nil {
		return nil, bus.ErrDetached
	}
	name := stringParam(step.Params, "name", "")
	addr, err := numberParam(step.Params, "address", 16)
	if err != nil {
		return nil, err
	}

	c, err := state.tree.AttachClient(name, uint16(addr))
	if err != nil {
		return nil, err
	}
	state.clients[c.Dir()] = c
	return map[string]any{
		"dir":       c.Dir(),
		"registers": c.Len(),
	}, nil
}

func handleDetachClient(_ context.Context, step *Step, state *State) (map[string]any, error) {
	dir := stringParam(step.Params, "dir", "")
	c, ok := state.clients[dir]
	if !ok {
		return nil, fmt.Errorf("%w: %s", regfs.ErrNotFound, dir)
	}
	if state.tree != nil {
		state.tree.DetachClient(c)
	}
	return map[string]any{"attached": c.Attached()}, nil
}

// handleTransfer issues one raw or byte transfer. Reads take "length";
// writes take "data".
func handleTransfer(_ context.Context, step *Step, state *State) (map[string]any, error) {
	eng, err := state.engine()
	if err != nil {
		return nil, err
	}

	req := bus.Request{Mode: bus.FuncRawTransfer}
	switch strings.ToLower(stringParam(step.Params, "direction", "read")) {
	case "read", "r":
		req.Direction = bus.Read
	case "write", "w":
		req.Direction = bus.Write
	default:
		return nil, fmt.Errorf("invalid direction %q", step.Params["direction"])
	}
	switch strings.ToLower(stringParam(step.Params, "mode", "raw")) {
	case "raw":
	case "byte":
		req.Mode = bus.FuncByteTransfer
	default:
		return nil, fmt.Errorf("invalid mode %q", step.Params["mode"])
	}

	addr, err := numberParam(step.Params, "address", 16)
	if err != nil {
		return nil, err
	}
	off, err := numberParam(step.Params, "offset", 16)
	if err != nil {
		return nil, err
	}
	req.Address, req.Offset = uint16(addr), uint16(off)

	if req.Direction == bus.Write {
		req.Buf, err = bytesParam(step.Params, "data")
	} else {
		var n uint64
		n, err = numberParam(step.Params, "length", 32)
		req.Buf = make([]byte, n)
	}
	if err != nil {
		return nil, err
	}

	moved, err := eng.Transfer(req)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"moved": moved}
	if req.Direction == bus.Read {
		out["data"] = byteList(req.Buf[:moved])
	}
	return out, nil
}

func handleRead(ctx context.Context, step *Step, state *State) (map[string]any, error) {
	return handleTransfer(ctx, withParam(step, "direction", "read"), state)
}

func handleWrite(ctx context.Context, step *Step, state *State) (map[string]any, error) {
	return handleTransfer(ctx, withParam(step, "direction", "write"), state)
}

func handleGet(_ context.Context, step *Step, state *State) (map[string]any, error) {
	acc, err := lookupAccessor(step, state)
	if err != nil {
		return nil, err
	}
	v, err := acc.Get()
	if err != nil {
		return nil, err
	}
	return map[string]any{"value": v}, nil
}

func handleSet(_ context.Context, step *Step, state *State) (map[string]any, error) {
	acc, err := lookupAccessor(step, state)
	if err != nil {
		return nil, err
	}
	v, err := numberParam(step.Params, "value", 64)
	if err != nil {
		return nil, err
	}
	if err := acc.Set(v); err != nil {
		return nil, err
	}
	return map[string]any{"value": v & 0xff}, nil
}

func handleCapabilities(_ context.Context, _ *Step, state *State) (map[string]any, error) {
	if state.inst == nil {
		return nil, bus.ErrDetached
	}
	caps := state.inst.Capabilities()
	return map[string]any{
		"caps":  uint32(caps),
		"names": caps.String(),
		"raw":   caps.Has(bus.FuncRawTransfer),
		"byte":  caps.Has(bus.FuncByteTransfer),
	}, nil
}

func handleList(_ context.Context, _ *Step, state *State) (map[string]any, error) {
	if state.tree == nil {
		return nil, bus.ErrDetached
	}
	dirs := state.tree.List()
	list := make([]any, len(dirs))
	for i, d := range dirs {
		list[i] = d
	}
	return map[string]any{"dirs": list, "count": len(dirs)}, nil
}

// handleCheckStore reports on the whole store, or one row when "address"
// is given.
func handleCheckStore(_ context.Context, step *Step, state *State) (map[string]any, error) {
	eng, err := state.engine()
	if err != nil {
		return nil, err
	}

	var data []byte
	if _, ok := step.Params["address"]; ok {
		addr, err := numberParam(step.Params, "address", 16)
		if err != nil {
			return nil, err
		}
		data, err = eng.Row(uint16(addr))
		if err != nil {
			return nil, err
		}
	} else {
		data, err = eng.Image()
		if err != nil {
			return nil, err
		}
	}

	nonZero := 0
	for _, b := range data {
		if b != 0 {
			nonZero++
		}
	}
	return map[string]any{
		"size":     len(data),
		"non_zero": nonZero,
		"all_zero": nonZero == 0,
	}, nil
}

func lookupAccessor(step *Step, state *State) (regfs.Accessor, error) {
	path := stringParam(step.Params, "path", "")

	// A stale handle is resolved through the scenario's own client map so
	// detached accessors can still be exercised.
	dir, reg, ok := strings.Cut(path, "/")
	if ok {
		if c, found := state.clients[dir]; found && !c.Attached() {
			off, err := inspect.ParseNumber("0x"+reg, 16)
			if err != nil {
				return regfs.Accessor{}, fmt.Errorf("%w: %s", regfs.ErrInvalidPath, path)
			}
			return c.Accessor(uint16(off))
		}
	}

	if state.tree == nil {
		return regfs.Accessor{}, bus.ErrDetached
	}
	return state.tree.Lookup(path)
}

func withParam(step *Step, key string, value any) *Step {
	params := make(map[string]any, len(step.Params)+1)
	for k, v := range step.Params {
		params[k] = v
	}
	params[key] = value
	cp := *step
	cp.Params = params
	return &cp
}

func stringParam(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// numberParam accepts YAML integers and numeric strings such as "0x50".
func numberParam(params map[string]any, key string, bits int) (uint64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	if n, ok := toInt64(v); ok {
		if n < 0 || (bits < 64 && uint64(n) >= 1<<bits) {
			return 0, fmt.Errorf("parameter %q out of range: %d", key, n)
		}
		return uint64(n), nil
	}
	if s, ok := v.(string); ok {
		return inspect.ParseNumber(s, bits)
	}
	return 0, fmt.Errorf("parameter %q: not a number: %v", key, v)
}

func bytesParam(params map[string]any, key string) ([]byte, error) {
	v, ok := params[key]
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q: expected a list of bytes", key)
	}
	out := make([]byte, len(list))
	for i, item := range list {
		n, err := numberParam(map[string]any{key: item}, key, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(n)
	}
	return out, nil
}

func byteList(b []byte) []any {
	out := make([]any, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
