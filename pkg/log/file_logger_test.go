package log

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("trace file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	event := Event{
		Timestamp:  time.Now(),
		InstanceID: "inst-123",
		Bus:        "I2C Dummy Adapter",
		Category:   CategoryTransfer,
		Transfer: &TransferEvent{
			Direction: DirectionWrite,
			Address:   5,
			Offset:    10,
			Length:    1,
			Moved:     1,
			Data:      []byte{0xAB},
		},
	}

	logger.Log(event)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("trace file is empty")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}

	if decoded.InstanceID != event.InstanceID {
		t.Errorf("InstanceID: got %q, want %q", decoded.InstanceID, event.InstanceID)
	}
	if decoded.Transfer == nil {
		t.Fatal("Transfer is nil")
	}
	if decoded.Transfer.Address != 5 || decoded.Transfer.Offset != 10 {
		t.Errorf("Transfer at %d:%d, want 5:10", decoded.Transfer.Address, decoded.Transfer.Offset)
	}
	if !bytes.Equal(decoded.Transfer.Data, []byte{0xAB}) {
		t.Errorf("Transfer.Data: got %x, want ab", decoded.Transfer.Data)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, event.Timestamp)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rlog")

	logger1, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger1.Log(Event{Timestamp: time.Now(), InstanceID: "inst-1", Category: CategoryState})
	logger1.Close()

	info1, _ := os.Stat(path)
	size1 := info1.Size()

	logger2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger second open failed: %v", err)
	}
	logger2.Log(Event{Timestamp: time.Now(), InstanceID: "inst-2", Category: CategoryState})
	logger2.Close()

	info2, _ := os.Stat(path)
	if info2.Size() <= size1 {
		t.Errorf("file did not grow: size before=%d, size after=%d", size1, info2.Size())
	}

	events := decodeAll(t, path)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].InstanceID != "inst-1" {
		t.Errorf("first event InstanceID: got %q, want %q", events[0].InstanceID, "inst-1")
	}
	if events[1].InstanceID != "inst-2" {
		t.Errorf("second event InstanceID: got %q, want %q", events[1].InstanceID, "inst-2")
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.Log(Event{
					Timestamp:  time.Now(),
					InstanceID: "inst-" + string(rune('A'+id)),
					Category:   CategoryTransfer,
					Transfer:   &TransferEvent{Direction: DirectionRead, Address: uint16(id), Offset: uint16(j), Length: 1, Moved: 1},
				})
			}
		}(i)
	}

	wg.Wait()
	logger.Close()

	count := len(decodeAll(t, path))
	if count != numGoroutines*eventsPerGoroutine {
		t.Errorf("event count: got %d, want %d", count, numGoroutines*eventsPerGoroutine)
	}
}

func TestFileLoggerClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(Event{Timestamp: time.Now(), InstanceID: "inst-123"})

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Double close should not panic or error
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close should not panic
	logger.Log(Event{Timestamp: time.Now(), InstanceID: "inst-456"})
}

func TestFileLoggerOpenFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "test.rlog")

	if _, err := NewFileLogger(path); err == nil {
		t.Error("expected error for missing parent directory")
	}
}

func decodeAll(t *testing.T, path string) []Event {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace file: %v", err)
	}

	decoder := NewDecoder(bytes.NewReader(data))
	var events []Event
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			break
		}
		events = append(events, event)
	}
	return events
}
