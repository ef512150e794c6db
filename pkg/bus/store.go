package bus

// Store is the register matrix of one bus instance.
// It is zero-filled on creation and performs no locking or bounds checks;
// the Engine owns both.
type Store struct {
	geometry Geometry
	cells    []byte
}

// newStore allocates a zeroed store for g. The caller validates g.
func newStore(g Geometry) *Store {
	return &Store{
		geometry: g,
		cells:    make([]byte, g.Size()),
	}
}

// row returns the slice of registers belonging to addr.
func (s *Store) row(addr uint16) []byte {
	start := int(addr) * s.geometry.MaxReg
	return s.cells[start : start+s.geometry.MaxReg]
}
