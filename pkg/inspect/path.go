// Package inspect provides bus inspection and register manipulation utilities.
//
// The inspect package offers a unified interface for:
//   - Parsing path expressions (e.g., "i2c_dummy_device-50/0a" or "0x50:0x0a")
//   - Reading and writing registers through accessors or raw transfers
//   - Formatting output for display
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrEmptyPath     = errors.New("empty path")
	ErrInvalidPath   = errors.New("invalid path format")
	ErrInvalidNumber = errors.New("invalid numeric value")
)

// Path represents a parsed inspection path.
// Format: dir[/reg] for accessors, or address:offset for raw store locations.
type Path struct {
	// Dir is the accessor directory (empty for raw paths).
	Dir string

	// Address is the device address (raw paths only).
	Address uint16

	// Offset is the register offset.
	Offset uint16

	// IsRaw indicates an address:offset path that bypasses the accessors.
	IsRaw bool

	// IsPartial indicates the path names a directory, not a register.
	IsPartial bool

	// Raw stores the original input string.
	Raw string
}

// ParsePath parses a path string into a Path struct.
//
// Supported formats:
//   - "dir/reg" - one accessor; reg is its hex name ("0a")
//   - "dir" - partial, the whole directory
//   - "addr:off" - raw location; numbers are decimal or hex (0x prefix)
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}

	p := &Path{Raw: input}

	if addrStr, offStr, ok := strings.Cut(input, ":"); ok {
		addr, err := ParseNumber(addrStr, 16)
		if err != nil {
			return nil, err
		}
		off, err := ParseNumber(offStr, 16)
		if err != nil {
			return nil, err
		}
		p.IsRaw = true
		p.Address = uint16(addr)
		p.Offset = uint16(off)
		return p, nil
	}

	input = strings.Trim(input, "/")
	if input == "" || strings.Contains(input, "//") {
		return nil, ErrInvalidPath
	}

	parts := strings.Split(input, "/")
	switch len(parts) {
	case 1:
		p.Dir = parts[0]
		p.IsPartial = true
	case 2:
		off, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(parts[1]), "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: register %q", ErrInvalidNumber, parts[1])
		}
		p.Dir = parts[0]
		p.Offset = uint16(off)
	default:
		return nil, ErrInvalidPath
	}

	return p, nil
}

// String returns the canonical form of the path.
func (p *Path) String() string {
	switch {
	case p.IsRaw:
		return fmt.Sprintf("0x%02x:0x%02x", p.Address, p.Offset)
	case p.IsPartial:
		return p.Dir
	default:
		return fmt.Sprintf("%s/%02x", p.Dir, p.Offset)
	}
}

// ParseNumber parses a decimal or 0x-prefixed hex number that fits in bits.
func ParseNumber(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	base := 10
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return v, nil
}

// ParseBytes parses each argument as one byte value.
func ParseBytes(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no bytes", ErrInvalidNumber)
	}
	out := make([]byte, len(args))
	for i, a := range args {
		v, err := ParseNumber(a, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}
