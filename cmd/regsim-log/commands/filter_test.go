package commands

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/regsim/regsim-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterByAddress(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, FilterOptions{Output: outPath, Address: "0x50"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}

	for _, e := range readAll(t, outPath) {
		xfer := e.Transfer
		if xfer == nil && e.Error != nil {
			xfer = e.Error.Transfer
		}
		if xfer == nil || xfer.Address != 0x50 {
			t.Errorf("unexpected event: %+v", e)
		}
	}
}

func TestFilterByCategoryAndDirection(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, FilterOptions{Output: outPath, Category: "transfer", Direction: "read"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}

	events := readAll(t, outPath)
	if len(events) != 1 || events[0].Transfer.Address != 0x05 {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: "2026-01-28T10:15:33Z",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 events after the trace, got %d", n)
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, testEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.cbor")

	tests := []FilterOptions{
		{Output: outPath, TimeStart: "yesterday"},
		{Output: outPath, TimeEnd: "tomorrow"},
		{Output: outPath, Direction: "sideways"},
		{Output: outPath, Category: "message"},
		{Output: outPath, Address: "zz"},
	}
	for _, opts := range tests {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
