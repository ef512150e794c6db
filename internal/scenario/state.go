package scenario

import (
	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// State is the live system a scenario's steps operate on.
type State struct {
	host       *bus.Host
	inst       *bus.Instance
	tree       *regfs.Tree
	treeConfig regfs.Config

	// clients keeps handles across detach so later steps can observe
	// stale-handle behavior.
	clients map[string]*regfs.Client

	// vars holds values saved by earlier steps.
	vars map[string]any
}

// Host returns the scenario's host.
func (s *State) Host() *bus.Host { return s.host }

// Instance returns the attached bus instance, or nil.
func (s *State) Instance() *bus.Instance { return s.inst }

// Tree returns the accessor tree of the attached instance, or nil.
func (s *State) Tree() *regfs.Tree { return s.tree }

// Client returns a client handle by directory name, attached or not.
func (s *State) Client(dir string) (*regfs.Client, bool) {
	c, ok := s.clients[dir]
	return c, ok
}

// engine returns the engine of the current instance. After a detach it
// returns the released engine so transfers report ErrDetached.
func (s *State) engine() (*bus.Engine, error) {
	if s.inst == nil {
		return nil, bus.ErrDetached
	}
	return s.inst.Engine(), nil
}

func (s *State) image() []byte {
	if s.inst == nil {
		return nil
	}
	img, err := s.inst.Engine().Image()
	if err != nil {
		return nil
	}
	return img
}

// Var returns a saved variable.
func (s *State) Var(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Close detaches the bus if a scenario left it attached.
func (s *State) Close() {
	if s.inst != nil && s.inst.Attached() {
		s.host.Detach(s.inst)
	}
}
