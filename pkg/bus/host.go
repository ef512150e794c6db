package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regsim/regsim-go/pkg/log"
)

// DefaultMaxStoreBytes is the default memory budget for one store.
const DefaultMaxStoreBytes = 64 << 20

// Config configures a Host.
type Config struct {
	// Geometry is the store capacity of every instance the host creates.
	Geometry Geometry

	// MaxStoreBytes caps the store size. Attach fails with ErrOutOfMemory
	// when Geometry needs more. Zero means DefaultMaxStoreBytes.
	MaxStoreBytes int64

	// Logger for debug output (optional).
	Logger *slog.Logger

	// TraceLogger receives transfer and lifecycle events (optional).
	TraceLogger log.Logger
}

// DefaultConfig returns a Config with the default geometry and budget.
func DefaultConfig() Config {
	return Config{
		Geometry:      DefaultGeometry(),
		MaxStoreBytes: DefaultMaxStoreBytes,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if c.MaxStoreBytes < 0 {
		return fmt.Errorf("%w: negative memory budget %d", ErrInvalidArgument, c.MaxStoreBytes)
	}
	return nil
}

// Host is the discovery slot for bus instances. At most one instance is
// registered at a time.
type Host struct {
	mu      sync.Mutex
	config  Config
	current *Instance
	nextNum int
}

// NewHost creates a host with no registered instance.
func NewHost(config Config) (*Host, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxStoreBytes == 0 {
		config.MaxStoreBytes = DefaultMaxStoreBytes
	}
	return &Host{config: config}, nil
}

// Geometry returns the geometry used for new instances.
func (h *Host) Geometry() Geometry {
	return h.config.Geometry
}

// Attach creates an instance with a zeroed store and registers it.
// It fails with ErrDuplicateRegistration while another instance is
// registered, and with ErrOutOfMemory when the store exceeds the budget.
// On failure nothing is registered.
func (h *Host) Attach(name string) (*Instance, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty bus name", ErrInvalidArgument)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		return nil, fmt.Errorf("%w: bus %q already attached as bus %d", ErrDuplicateRegistration, h.current.name, h.current.number)
	}

	size := h.config.Geometry.Size()
	if size > h.config.MaxStoreBytes {
		return nil, fmt.Errorf("%w: store %s needs %d bytes, budget is %d", ErrOutOfMemory, h.config.Geometry, size, h.config.MaxStoreBytes)
	}

	trace := &tracer{
		logger:     h.config.TraceLogger,
		instanceID: uuid.New().String(),
		bus:        name,
	}

	inst := &Instance{
		id:         trace.instanceID,
		name:       name,
		number:     h.nextNum,
		attachedAt: time.Now(),
		trace:      trace,
		logger:     h.config.Logger,
	}
	inst.engine = newEngine(newStore(h.config.Geometry), trace, h.config.Logger)

	h.nextNum++
	h.current = inst

	trace.state(log.StateEntityBus, "", log.StateDetached, log.StateAttached, fmt.Sprintf("bus %d", inst.number))
	inst.debugLog("bus attached", "name", name, "bus", inst.number, "geometry", h.config.Geometry.String())

	return inst, nil
}

// Detach releases the instance's store and clears the slot. Detaching nil,
// an instance that is not registered, or an empty slot is a no-op.
// Detach hooks run while the slot is locked and must not call back into h.
func (h *Host) Detach(inst *Instance) {
	if inst == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != inst {
		return
	}
	h.current = nil
	inst.release()
}

// Current returns the registered instance, or nil.
func (h *Host) Current() *Instance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Instance is one attached simulated bus together with its store.
type Instance struct {
	id         string
	name       string
	number     int
	attachedAt time.Time

	engine *Engine
	trace  *tracer
	logger *slog.Logger

	mu       sync.Mutex
	hooks    []func()
	detached bool
}

// ID returns the instance UUID used in trace events.
func (i *Instance) ID() string { return i.id }

// Name returns the bus name given to Attach.
func (i *Instance) Name() string { return i.name }

// Number returns the bus number assigned at attach time.
func (i *Instance) Number() int { return i.number }

// AttachedAt returns when the instance was attached.
func (i *Instance) AttachedAt() time.Time { return i.attachedAt }

// Engine returns the transfer engine of the instance.
func (i *Instance) Engine() *Engine { return i.engine }

// Geometry returns the store geometry.
func (i *Instance) Geometry() Geometry { return i.engine.geometry }

// Capabilities returns the transfer modes the bus supports.
func (i *Instance) Capabilities() Functionality { return Capabilities() }

// Attached returns false once the instance has been detached.
func (i *Instance) Attached() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.detached
}

// OnDetach registers fn to run when the instance is detached, before the
// store is released. Hooks run in reverse registration order.
func (i *Instance) OnDetach(fn func()) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.detached {
		return ErrDetached
	}
	i.hooks = append(i.hooks, fn)
	return nil
}

// TraceClient records a client lifecycle change in the instance trace.
func (i *Instance) TraceClient(client, oldState, newState, reason string) {
	i.trace.state(log.StateEntityClient, client, oldState, newState, reason)
}

func (i *Instance) release() {
	i.mu.Lock()
	if i.detached {
		i.mu.Unlock()
		return
	}
	i.detached = true
	hooks := i.hooks
	i.hooks = nil
	i.mu.Unlock()

	for j := len(hooks) - 1; j >= 0; j-- {
		hooks[j]()
	}
	i.engine.release()

	i.trace.state(log.StateEntityBus, "", log.StateAttached, log.StateDetached, fmt.Sprintf("bus %d", i.number))
	i.debugLog("bus detached", "name", i.name, "bus", i.number)
}

func (i *Instance) debugLog(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}
