package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func decodeSlogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func newJSONAdapter(buf *bytes.Buffer) *SlogAdapter {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(handler))
}

func TestSlogAdapterLogsTransferEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf)

	adapter.Log(Event{
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
	})

	entry := decodeSlogEntry(t, &buf)

	if entry["instance_id"] != "inst-123" {
		t.Errorf("instance_id: got %v, want %q", entry["instance_id"], "inst-123")
	}
	if entry["direction"] != "WRITE" {
		t.Errorf("direction: got %v, want %q", entry["direction"], "WRITE")
	}
	if entry["address"] != float64(5) {
		t.Errorf("address: got %v, want 5", entry["address"])
	}
	if entry["data"] != "ab" {
		t.Errorf("data: got %v, want %q", entry["data"], "ab")
	}
	if entry["bus"] != "I2C Dummy Adapter" {
		t.Errorf("bus: got %v", entry["bus"])
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf)

	adapter.Log(Event{
		InstanceID: "inst-1",
		Category:   CategoryState,
		Client:     "i2c_dummy_device-50",
		StateChange: &StateChangeEvent{
			Entity:   StateEntityClient,
			OldState: StateDetached,
			NewState: StateAttached,
			Reason:   "probe",
		},
	})

	entry := decodeSlogEntry(t, &buf)

	if entry["entity"] != "CLIENT" {
		t.Errorf("entity: got %v, want CLIENT", entry["entity"])
	}
	if entry["new_state"] != StateAttached {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
	if entry["client"] != "i2c_dummy_device-50" {
		t.Errorf("client: got %v", entry["client"])
	}
	if entry["reason"] != "probe" {
		t.Errorf("reason: got %v", entry["reason"])
	}
}

func TestSlogAdapterLogsRejectedTransfer(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf)

	adapter.Log(Event{
		InstanceID: "inst-1",
		Category:   CategoryError,
		Error: &ErrorEventData{
			Message:  "invalid argument",
			Context:  "transfer",
			Transfer: &TransferEvent{Direction: DirectionWrite, Address: 256, Length: 1},
		},
	})

	entry := decodeSlogEntry(t, &buf)

	if entry["error_msg"] != "invalid argument" {
		t.Errorf("error_msg: got %v", entry["error_msg"])
	}
	if entry["address"] != float64(256) {
		t.Errorf("address: got %v, want 256", entry["address"])
	}
}

func TestSlogAdapterInterfaceSatisfaction(t *testing.T) {
	var _ Logger = (*SlogAdapter)(nil)
}
