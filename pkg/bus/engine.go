package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Direction is the direction of a transfer relative to the store.
type Direction uint8

const (
	// Read copies registers out of the store into the caller's buffer.
	Read Direction = iota
	// Write copies the caller's buffer into the store.
	Write
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Request is a single transfer. The transfer length is len(Buf).
type Request struct {
	Direction Direction
	Address   uint16
	Offset    uint16

	// Mode is the transfer shape. Zero means FuncRawTransfer;
	// FuncByteTransfer requires a one-byte buffer.
	Mode Functionality

	// Buf is the source (write) or destination (read) of the transfer.
	Buf []byte

	// Client labels the trace event with the accessor directory, if any.
	Client string
}

// Engine performs bounds-checked transfers against one Store.
// It is the only code that touches the store's cells.
type Engine struct {
	mu       sync.RWMutex
	store    *Store // nil once released
	geometry Geometry

	trace  *tracer
	logger *slog.Logger
}

func newEngine(store *Store, trace *tracer, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		geometry: store.geometry,
		trace:    trace,
		logger:   logger,
	}
}

// Geometry returns the dimensions of the engine's store.
func (e *Engine) Geometry() Geometry {
	return e.geometry
}

// Check reports whether req is a legal transfer shape for this engine
// without performing it.
func (e *Engine) Check(req Request) error {
	switch req.Direction {
	case Read, Write:
	default:
		return fmt.Errorf("%w: direction %d", ErrInvalidArgument, req.Direction)
	}

	mode := req.Mode
	if mode == 0 {
		mode = FuncRawTransfer
	}
	if !Capabilities().Has(mode) {
		return fmt.Errorf("%w: unsupported transfer mode %s", ErrInvalidArgument, mode)
	}

	n := len(req.Buf)
	if n == 0 {
		return fmt.Errorf("%w: zero-length transfer", ErrInvalidArgument)
	}
	if mode == FuncByteTransfer && n != 1 {
		return fmt.Errorf("%w: byte transfer of %d bytes", ErrInvalidArgument, n)
	}
	if int(req.Address) >= e.geometry.MaxDev {
		return fmt.Errorf("%w: address 0x%02x >= %d", ErrInvalidArgument, req.Address, e.geometry.MaxDev)
	}
	if int(req.Offset)+n >= e.geometry.MaxReg {
		return fmt.Errorf("%w: offset 0x%02x + length %d >= %d", ErrInvalidArgument, req.Offset, n, e.geometry.MaxReg)
	}
	return nil
}

// Transfer validates req and moves its bytes. It returns the number of bytes
// moved. On error nothing in the store has changed.
func (e *Engine) Transfer(req Request) (int, error) {
	if err := e.Check(req); err != nil {
		e.trace.rejected(req, err)
		e.debugLog("transfer rejected", "direction", req.Direction, "address", req.Address, "offset", req.Offset, "length", len(req.Buf), "error", err)
		return 0, err
	}

	var n int
	if req.Direction == Write {
		e.mu.Lock()
		if e.store == nil {
			e.mu.Unlock()
			e.trace.rejected(req, ErrDetached)
			return 0, ErrDetached
		}
		row := e.store.row(req.Address)
		n = copy(row[req.Offset:int(req.Offset)+len(req.Buf)], req.Buf)
		e.mu.Unlock()
	} else {
		e.mu.RLock()
		if e.store == nil {
			e.mu.RUnlock()
			e.trace.rejected(req, ErrDetached)
			return 0, ErrDetached
		}
		row := e.store.row(req.Address)
		n = copy(req.Buf, row[req.Offset:int(req.Offset)+len(req.Buf)])
		e.mu.RUnlock()
	}

	e.trace.transfer(req, n)
	return n, nil
}

// Read fills buf from registers of addr starting at off.
func (e *Engine) Read(addr, off uint16, buf []byte) (int, error) {
	return e.Transfer(Request{Direction: Read, Address: addr, Offset: off, Buf: buf})
}

// Write stores data into registers of addr starting at off.
func (e *Engine) Write(addr, off uint16, data []byte) (int, error) {
	return e.Transfer(Request{Direction: Write, Address: addr, Offset: off, Buf: data})
}

// ReadRegister reads a single register with a byte transfer.
func (e *Engine) ReadRegister(addr, off uint16) (byte, error) {
	var buf [1]byte
	if _, err := e.Transfer(Request{Direction: Read, Address: addr, Offset: off, Mode: FuncByteTransfer, Buf: buf[:]}); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteRegister writes a single register with a byte transfer.
func (e *Engine) WriteRegister(addr, off uint16, value byte) error {
	_, err := e.Transfer(Request{Direction: Write, Address: addr, Offset: off, Mode: FuncByteTransfer, Buf: []byte{value}})
	return err
}

// Row returns a copy of every register of addr, including the last one,
// which transfers cannot reach. It does not emit trace events.
func (e *Engine) Row(addr uint16) ([]byte, error) {
	if int(addr) >= e.geometry.MaxDev {
		return nil, fmt.Errorf("%w: address 0x%02x >= %d", ErrInvalidArgument, addr, e.geometry.MaxDev)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.store == nil {
		return nil, ErrDetached
	}
	return append([]byte(nil), e.store.row(addr)...), nil
}

// Image returns a copy of the whole store, row after row.
func (e *Engine) Image() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.store == nil {
		return nil, ErrDetached
	}
	return append([]byte(nil), e.store.cells...), nil
}

// release drops the store. Later transfers fail with ErrDetached.
func (e *Engine) release() {
	e.mu.Lock()
	e.store = nil
	e.mu.Unlock()
}

// Attached returns false once the owning instance has been detached.
func (e *Engine) Attached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store != nil
}

func (e *Engine) debugLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
