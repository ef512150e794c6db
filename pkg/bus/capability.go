package bus

import "strings"

// Functionality is a bitmask of transfer modes a bus supports.
type Functionality uint32

const (
	// FuncRawTransfer allows plain multi-byte transfers.
	FuncRawTransfer Functionality = 1 << iota

	// FuncByteTransfer allows single-byte register transfers.
	FuncByteTransfer
)

// supported is the fixed capability set of the simulated bus.
const supported = FuncRawTransfer | FuncByteTransfer

// Capabilities returns the transfer modes of the simulated bus.
// The value is the same for the lifetime of the process.
func Capabilities() Functionality {
	return supported
}

// Has returns true if every bit of f is set.
func (c Functionality) Has(f Functionality) bool {
	return f != 0 && c&f == f
}

// String returns the set bits as "BYTE|RAW".
func (c Functionality) String() string {
	var parts []string
	if c.Has(FuncByteTransfer) {
		parts = append(parts, "BYTE")
	}
	if c.Has(FuncRawTransfer) {
		parts = append(parts, "RAW")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}
