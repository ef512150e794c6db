package regfs

import (
	"fmt"
	"path"

	"github.com/regsim/regsim-go/pkg/bus"
)

// Client is one device attached to a Tree. Its accessors share the bus
// instance's engine.
type Client struct {
	tree    *Tree
	name    string
	address uint16
	dir     string
	regs    int

	detached bool // guarded by tree.mu
}

// Name returns the device name the client was attached with.
func (c *Client) Name() string { return c.name }

// Address returns the device address on the bus.
func (c *Client) Address() uint16 { return c.address }

// Dir returns the accessor directory name.
func (c *Client) Dir() string { return c.dir }

// Len returns the number of accessors in the directory.
func (c *Client) Len() int { return c.regs }

// Attached returns false once the client or its bus has been detached.
func (c *Client) Attached() bool {
	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()
	return !c.detached
}

// Accessor returns the accessor for register offset off.
func (c *Client) Accessor(off uint16) (Accessor, error) {
	if int(off) >= c.regs {
		return Accessor{}, fmt.Errorf("%w: register 0x%02x in %s", ErrNotFound, off, c.dir)
	}
	if !c.Attached() {
		return Accessor{}, ErrClientDetached
	}
	return Accessor{client: c, offset: off}, nil
}

// Accessors returns every accessor of the client in offset order.
func (c *Client) Accessors() []Accessor {
	out := make([]Accessor, c.regs)
	for i := range out {
		out[i] = Accessor{client: c, offset: uint16(i)}
	}
	return out
}

// Accessor is a handle on one register of one client.
// The zero Accessor is not usable.
type Accessor struct {
	client *Client
	offset uint16
}

// Offset returns the register offset.
func (a Accessor) Offset() uint16 { return a.offset }

// Name returns the accessor name, the offset as two hex digits.
func (a Accessor) Name() string { return fmt.Sprintf("%02x", a.offset) }

// Path returns "<dir>/<name>".
func (a Accessor) Path() string { return path.Join(a.client.dir, a.Name()) }

// Client returns the owning client.
func (a Accessor) Client() *Client { return a.client }

// Read performs a one-byte read of the register.
func (a Accessor) Read() (byte, error) {
	var buf [1]byte
	err := a.transfer(bus.Read, buf[:])
	return buf[0], err
}

// Write performs a one-byte write of the register.
func (a Accessor) Write(value byte) error {
	return a.transfer(bus.Write, []byte{value})
}

// Get returns the register value widened to uint64.
func (a Accessor) Get() (uint64, error) {
	v, err := a.Read()
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// Set stores the low byte of value in the register.
func (a Accessor) Set(value uint64) error {
	return a.Write(byte(value))
}

// transfer runs under the tree read lock so a concurrent detach either
// happens entirely before or entirely after it.
func (a Accessor) transfer(dir bus.Direction, buf []byte) error {
	c := a.client
	if c == nil {
		return ErrNotFound
	}

	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	if c.detached {
		return ErrClientDetached
	}

	_, err := c.tree.inst.Engine().Transfer(bus.Request{
		Direction: dir,
		Address:   c.address,
		Offset:    a.offset,
		Mode:      bus.FuncByteTransfer,
		Buf:       buf,
		Client:    c.dir,
	})
	return err
}
