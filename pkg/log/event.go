package log

import (
	"time"
)

// Event represents a trace event captured by a bus instance.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// InstanceID uniquely identifies the bus instance (UUID).
	InstanceID string `cbor:"2,keyasint"`

	// Bus is the bus instance name.
	Bus string `cbor:"3,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Client is the accessor directory name, when the event came through one.
	Client string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Transfer    *TransferEvent    `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates whether data moved into or out of the store.
type Direction uint8

const (
	// DirectionRead indicates data copied out of the store.
	DirectionRead Direction = 0
	// DirectionWrite indicates data copied into the store.
	DirectionWrite Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "READ"
	case DirectionWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryTransfer indicates a completed transfer.
	CategoryTransfer Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransfer:
		return "TRANSFER"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// TransferEvent captures one register transfer.
type TransferEvent struct {
	// Direction of the transfer.
	Direction Direction `cbor:"1,keyasint"`

	// Address is the device address (row of the store).
	Address uint16 `cbor:"2,keyasint"`

	// Offset is the first register offset.
	Offset uint16 `cbor:"3,keyasint"`

	// Length is the requested length in bytes.
	Length int `cbor:"4,keyasint"`

	// Moved is the number of bytes actually moved.
	Moved int `cbor:"5,keyasint"`

	// Data is the transferred bytes (may be truncated for long transfers).
	Data []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`
}

// MaxTraceData is the number of transfer bytes kept in a TransferEvent.
const MaxTraceData = 64

// StateChangeEvent captures bus and client lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityBus indicates a bus instance state change.
	StateEntityBus StateEntity = 0
	// StateEntityClient indicates a client device state change.
	StateEntityClient StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityBus:
		return "BUS"
	case StateEntityClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Lifecycle state names used in StateChangeEvent.
const (
	StateAttached = "ATTACHED"
	StateDetached = "DETACHED"
)

// ErrorEventData captures a rejected request.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`

	// Transfer is the rejected transfer request, if any.
	Transfer *TransferEvent `cbor:"3,keyasint,omitempty"`
}
