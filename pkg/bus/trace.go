package bus

import (
	"time"

	"github.com/regsim/regsim-go/pkg/log"
)

// tracer turns bus activity into trace events. A nil tracer or a tracer
// without a logger drops everything.
type tracer struct {
	logger     log.Logger
	instanceID string
	bus        string
}

func (t *tracer) enabled() bool {
	return t != nil && t.logger != nil
}

func (t *tracer) event(cat log.Category, client string) log.Event {
	return log.Event{
		Timestamp:  time.Now(),
		InstanceID: t.instanceID,
		Bus:        t.bus,
		Category:   cat,
		Client:     client,
	}
}

func traceTransfer(req Request, moved int) *log.TransferEvent {
	dir := log.DirectionRead
	if req.Direction == Write {
		dir = log.DirectionWrite
	}

	ev := &log.TransferEvent{
		Direction: dir,
		Address:   req.Address,
		Offset:    req.Offset,
		Length:    len(req.Buf),
		Moved:     moved,
	}
	if moved > 0 {
		data := req.Buf[:moved]
		if len(data) > log.MaxTraceData {
			data = data[:log.MaxTraceData]
			ev.Truncated = true
		}
		ev.Data = append([]byte(nil), data...)
	}
	return ev
}

// transfer records a completed transfer.
func (t *tracer) transfer(req Request, moved int) {
	if !t.enabled() {
		return
	}
	ev := t.event(log.CategoryTransfer, req.Client)
	ev.Transfer = traceTransfer(req, moved)
	t.logger.Log(ev)
}

// rejected records a transfer that failed validation.
func (t *tracer) rejected(req Request, err error) {
	if !t.enabled() {
		return
	}
	ev := t.event(log.CategoryError, req.Client)
	ev.Error = &log.ErrorEventData{
		Message:  err.Error(),
		Context:  "transfer",
		Transfer: traceTransfer(req, 0),
	}
	t.logger.Log(ev)
}

// state records a lifecycle change of the bus or one of its clients.
func (t *tracer) state(entity log.StateEntity, client, oldState, newState, reason string) {
	if !t.enabled() {
		return
	}
	ev := t.event(log.CategoryState, client)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	t.logger.Log(ev)
}
