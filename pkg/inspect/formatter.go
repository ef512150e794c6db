package inspect

import (
	"fmt"
	"strings"

	"github.com/regsim/regsim-go/pkg/bus"
)

// Formatter formats inspection output.
type Formatter struct {
	// BytesPerLine is the width of a hex dump line.
	BytesPerLine int

	// ShowASCII appends a printable-character column to dumps.
	ShowASCII bool

	// SkipZeroLines drops all-zero lines from dumps.
	SkipZeroLines bool
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		BytesPerLine: 16,
		ShowASCII:    true,
	}
}

// FormatValue formats a register value as hex and decimal.
func (f *Formatter) FormatValue(v uint64) string {
	return fmt.Sprintf("0x%02x (%d)", v, v)
}

// HexDump formats data as offset-prefixed hex lines, i2cdump style.
func (f *Formatter) HexDump(data []byte) string {
	width := f.BytesPerLine
	if width <= 0 {
		width = 16
	}

	var sb strings.Builder

	sb.WriteString("    ")
	for i := 0; i < width; i++ {
		fmt.Fprintf(&sb, "%2x ", i%16)
	}
	sb.WriteString("\n")

	skipped := false
	for start := 0; start < len(data); start += width {
		end := min(start+width, len(data))
		line := data[start:end]

		if f.SkipZeroLines && isZero(line) {
			skipped = true
			continue
		}

		fmt.Fprintf(&sb, "%02x: ", start)
		for _, b := range line {
			fmt.Fprintf(&sb, "%02x ", b)
		}
		if f.ShowASCII {
			sb.WriteString(strings.Repeat("   ", width-len(line)))
			sb.WriteString(" ")
			for _, b := range line {
				if b >= 0x20 && b < 0x7f {
					sb.WriteByte(b)
				} else {
					sb.WriteByte('.')
				}
			}
		}
		sb.WriteString("\n")
	}

	if skipped {
		sb.WriteString("(zero lines omitted)\n")
	}
	return sb.String()
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// FormatCapabilities formats a capability mask as "0x00000003 (BYTE|RAW)".
func FormatCapabilities(c bus.Functionality) string {
	return fmt.Sprintf("0x%08x (%s)", uint32(c), c)
}

// FormatBus formats bus information for display.
func (f *Formatter) FormatBus(info *BusInfo) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Bus %d: %s\n", info.Number, info.Name)
	fmt.Fprintf(&sb, "  ID:           %s\n", info.ID)
	fmt.Fprintf(&sb, "  Geometry:     %s\n", info.Geometry)
	fmt.Fprintf(&sb, "  Capabilities: %s\n", FormatCapabilities(info.Capabilities))
	fmt.Fprintf(&sb, "  Attached:     %s\n", info.AttachedAt.Format("2006-01-02 15:04:05"))

	if len(info.Clients) == 0 {
		sb.WriteString("  (no clients)\n")
		return sb.String()
	}

	sb.WriteString("  Clients:\n")
	for _, c := range info.Clients {
		fmt.Fprintf(&sb, "    %-24s addr=0x%02x registers=%d non-zero=%d\n", c.Dir, c.Address, c.Registers, c.NonZero)
	}
	return sb.String()
}
