package bus

import "fmt"

// Default store dimensions.
const (
	DefaultMaxDev = 256
	DefaultMaxReg = 256
)

// Geometry is the capacity of a register store.
type Geometry struct {
	// MaxDev is the number of device addresses (rows).
	MaxDev int `yaml:"max_devices" json:"max_devices"`

	// MaxReg is the number of registers per device (columns).
	MaxReg int `yaml:"max_registers" json:"max_registers"`
}

// DefaultGeometry returns the 256 x 256 geometry.
func DefaultGeometry() Geometry {
	return Geometry{MaxDev: DefaultMaxDev, MaxReg: DefaultMaxReg}
}

// Validate checks that both dimensions are usable.
// Addresses and offsets are carried as uint16, which caps each dimension.
func (g Geometry) Validate() error {
	if g.MaxDev <= 0 || g.MaxDev > 1<<16 {
		return fmt.Errorf("%w: max devices must be 1-%d, got %d", ErrInvalidArgument, 1<<16, g.MaxDev)
	}
	if g.MaxReg <= 0 || g.MaxReg > 1<<16 {
		return fmt.Errorf("%w: max registers must be 1-%d, got %d", ErrInvalidArgument, 1<<16, g.MaxReg)
	}
	return nil
}

// Size returns the number of bytes the store needs.
func (g Geometry) Size() int64 {
	return int64(g.MaxDev) * int64(g.MaxReg)
}

// String returns the geometry as "DEVxREG".
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.MaxDev, g.MaxReg)
}
