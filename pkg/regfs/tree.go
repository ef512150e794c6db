package regfs

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/log"
)

// DefaultDeviceIDs is the device ID table of the dummy client driver.
var DefaultDeviceIDs = []string{"i2c_dummy_device", "i2c_dummy_dev"}

// Config configures a Tree.
type Config struct {
	// DeviceIDs lists the client names the driver binds to.
	// Empty means DefaultDeviceIDs.
	DeviceIDs []string

	// Logger for debug output (optional).
	Logger *slog.Logger
}

// Tree is the accessor namespace of one bus instance.
type Tree struct {
	mu      sync.RWMutex
	inst    *bus.Instance
	ids     map[string]struct{}
	clients map[string]*Client
	logger  *slog.Logger
}

// NewTree creates an empty namespace bound to inst. When inst is detached,
// every client in the tree is detached with it.
func NewTree(inst *bus.Instance, config Config) (*Tree, error) {
	if inst == nil {
		return nil, fmt.Errorf("%w: nil bus instance", bus.ErrInvalidArgument)
	}

	ids := config.DeviceIDs
	if len(ids) == 0 {
		ids = DefaultDeviceIDs
	}

	t := &Tree{
		inst:    inst,
		ids:     make(map[string]struct{}, len(ids)),
		clients: make(map[string]*Client),
		logger:  config.Logger,
	}
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}

	if err := inst.OnDetach(func() { t.detachAll("bus detached") }); err != nil {
		return nil, err
	}
	return t, nil
}

// Instance returns the bus instance the tree is bound to.
func (t *Tree) Instance() *bus.Instance {
	return t.inst
}

// DirName returns the directory name of a client: "<name>-<addr %02x>".
func DirName(name string, addr uint16) string {
	return fmt.Sprintf("%s-%02x", name, addr)
}

// Supports returns true if name is in the device ID table.
func (t *Tree) Supports(name string) bool {
	_, ok := t.ids[name]
	return ok
}

// AttachClient binds a client device at addr and exposes its registers.
func (t *Tree) AttachClient(name string, addr uint16) (*Client, error) {
	if !t.Supports(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDevice, name)
	}
	if int(addr) >= t.inst.Geometry().MaxDev {
		return nil, fmt.Errorf("%w: address 0x%02x >= %d", bus.ErrInvalidArgument, addr, t.inst.Geometry().MaxDev)
	}

	dir := DirName(name, addr)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.inst.Attached() {
		return nil, bus.ErrDetached
	}
	if _, exists := t.clients[dir]; exists {
		return nil, fmt.Errorf("%w: %s", bus.ErrDuplicateRegistration, dir)
	}

	c := &Client{
		tree:    t,
		name:    name,
		address: addr,
		dir:     dir,
		regs:    t.inst.Geometry().MaxReg,
	}
	t.clients[dir] = c

	t.inst.TraceClient(dir, log.StateDetached, log.StateAttached, "probe")
	t.debugLog("client attached", "dir", dir, "registers", c.regs)
	return c, nil
}

// DetachClient removes c and all of its accessors. Detaching a client that
// is already gone is a no-op.
func (t *Tree) DetachClient(c *Client) {
	if c == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.detachLocked(c, "remove")
}

func (t *Tree) detachLocked(c *Client, reason string) {
	if t.clients[c.dir] != c {
		return
	}
	delete(t.clients, c.dir)
	c.detached = true

	t.inst.TraceClient(c.dir, log.StateAttached, log.StateDetached, reason)
	t.debugLog("client detached", "dir", c.dir, "reason", reason)
}

func (t *Tree) detachAll(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, dir := range t.listLocked() {
		t.detachLocked(t.clients[dir], reason)
	}
}

// Client returns the client with the given directory name.
func (t *Tree) Client(dir string) (*Client, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.clients[dir]
	return c, ok
}

// List returns the directory names in sorted order.
func (t *Tree) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.listLocked()
}

func (t *Tree) listLocked() []string {
	dirs := make([]string, 0, len(t.clients))
	for dir := range t.clients {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	return dirs
}

// Lookup resolves "<dir>/<reg>" to an accessor. The register is the
// two-digit hex accessor name; a "0x" prefix is tolerated.
func (t *Tree) Lookup(path string) (Accessor, error) {
	dir, reg, ok := strings.Cut(strings.Trim(path, "/"), "/")
	if !ok || dir == "" || reg == "" || strings.Contains(reg, "/") {
		return Accessor{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	off, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(reg), "0x"), 16, 16)
	if err != nil {
		return Accessor{}, fmt.Errorf("%w: register %q", ErrInvalidPath, reg)
	}

	c, found := t.Client(dir)
	if !found {
		return Accessor{}, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	return c.Accessor(uint16(off))
}

func (t *Tree) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}
