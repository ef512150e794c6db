package inspect

import (
	"errors"
	"fmt"
	"time"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// Inspector errors.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrPartialPath    = errors.New("path names a directory, not a register")
)

// Inspector provides inspection and mutation of one bus and its clients.
type Inspector struct {
	tree *regfs.Tree
}

// NewInspector creates a new Inspector for the given accessor tree.
func NewInspector(tree *regfs.Tree) *Inspector {
	return &Inspector{tree: tree}
}

// Tree returns the underlying accessor tree.
func (i *Inspector) Tree() *regfs.Tree {
	return i.tree
}

// BusInfo represents a bus instance for display.
type BusInfo struct {
	ID           string
	Name         string
	Number       int
	Geometry     bus.Geometry
	Capabilities bus.Functionality
	AttachedAt   time.Time
	Clients      []ClientInfo
}

// ClientInfo represents an attached client for display.
type ClientInfo struct {
	Dir       string
	Name      string
	Address   uint16
	Registers int
	NonZero   int
}

// InspectBus returns the bus and every attached client.
func (i *Inspector) InspectBus() (*BusInfo, error) {
	inst := i.tree.Instance()
	info := &BusInfo{
		ID:           inst.ID(),
		Name:         inst.Name(),
		Number:       inst.Number(),
		Geometry:     inst.Geometry(),
		Capabilities: inst.Capabilities(),
		AttachedAt:   inst.AttachedAt(),
	}

	for _, dir := range i.tree.List() {
		ci, _, err := i.InspectClient(dir)
		if errors.Is(err, ErrClientNotFound) {
			// Detached between List and lookup.
			continue
		}
		if err != nil {
			return nil, err
		}
		info.Clients = append(info.Clients, *ci)
	}
	return info, nil
}

// InspectClient returns a client's details and a copy of its registers.
func (i *Inspector) InspectClient(dir string) (*ClientInfo, []byte, error) {
	c, ok := i.tree.Client(dir)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrClientNotFound, dir)
	}

	row, err := i.tree.Instance().Engine().Row(c.Address())
	if err != nil {
		return nil, nil, err
	}

	ci := &ClientInfo{
		Dir:       c.Dir(),
		Name:      c.Name(),
		Address:   c.Address(),
		Registers: c.Len(),
	}
	for _, b := range row {
		if b != 0 {
			ci.NonZero++
		}
	}
	return ci, row, nil
}

// Read reads one register. Accessor paths go through the client's accessor,
// raw paths through a byte transfer on the engine.
func (i *Inspector) Read(p *Path) (uint64, error) {
	if p.IsRaw {
		v, err := i.tree.Instance().Engine().ReadRegister(p.Address, p.Offset)
		return uint64(v), err
	}

	a, err := i.accessor(p)
	if err != nil {
		return 0, err
	}
	return a.Get()
}

// Write stores the low byte of value in one register.
func (i *Inspector) Write(p *Path, value uint64) error {
	if p.IsRaw {
		return i.tree.Instance().Engine().WriteRegister(p.Address, p.Offset, byte(value))
	}

	a, err := i.accessor(p)
	if err != nil {
		return err
	}
	return a.Set(value)
}

// Dump returns every register of the device the path refers to.
func (i *Inspector) Dump(p *Path) ([]byte, error) {
	if p.IsRaw {
		return i.tree.Instance().Engine().Row(p.Address)
	}
	_, row, err := i.InspectClient(p.Dir)
	return row, err
}

func (i *Inspector) accessor(p *Path) (regfs.Accessor, error) {
	if p.IsPartial {
		return regfs.Accessor{}, ErrPartialPath
	}
	c, ok := i.tree.Client(p.Dir)
	if !ok {
		return regfs.Accessor{}, fmt.Errorf("%w: %s", ErrClientNotFound, p.Dir)
	}
	return c.Accessor(p.Offset)
}
