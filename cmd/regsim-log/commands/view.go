// Package commands implements the regsim-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/regsim/regsim-go/pkg/inspect"
	"github.com/regsim/regsim-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Direction *log.Direction
	Category  *log.Category
	Address   *uint16
	Client    string
}

func (f ViewFilter) filter() log.Filter {
	return log.Filter{
		Direction: f.Direction,
		Category:  f.Category,
		Address:   f.Address,
		Client:    f.Client,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [bus:id] CATEGORY Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	id := shortenID(event.InstanceID)

	var typeLabel string
	switch {
	case event.Transfer != nil:
		typeLabel = event.Transfer.Direction.String()
	case event.StateChange != nil:
		typeLabel = event.StateChange.Entity.String()
	case event.Error != nil:
		typeLabel = "Rejected"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [bus:%s] %-8s %s", ts, id, event.Category.String(), typeLabel)
	if event.Client != "" {
		fmt.Fprintf(w, " (%s)", event.Client)
	}
	fmt.Fprintln(w)

	switch {
	case event.Transfer != nil:
		formatTransferDetails(w, event.Transfer)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of the instance ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatTransferDetails writes transfer-specific details.
func formatTransferDetails(w io.Writer, t *log.TransferEvent) {
	fmt.Fprintf(w, "  Location: 0x%02x:0x%02x\n", t.Address, t.Offset)
	fmt.Fprintf(w, "  Size: %d bytes (moved %d)\n", t.Length, t.Moved)
	if len(t.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(t.Data))
		if t.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
	if err.Transfer != nil {
		fmt.Fprintf(w, "  Request: %s 0x%02x:0x%02x len=%d\n",
			err.Transfer.Direction, err.Transfer.Address, err.Transfer.Offset, err.Transfer.Length)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "read", "r":
		return log.DirectionRead, nil
	case "write", "w":
		return log.DirectionWrite, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be read or write)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "transfer":
		return log.CategoryTransfer, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be transfer, state, or error)", s)
	}
}

// ParseAddressFlag parses a device address (decimal or 0x hex).
func ParseAddressFlag(s string) (uint16, error) {
	v, err := inspect.ParseNumber(s, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return uint16(v), nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.filter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		formatEvent(output, event)
	}

	return nil
}
