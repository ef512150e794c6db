package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/regsim/regsim-go/pkg/log"
	"github.com/regsim/regsim-go/pkg/log/mocks"
)

func TestAttachDetachAttachYieldsZeroStore(t *testing.T) {
	host, err := NewHost(DefaultConfig())
	require.NoError(t, err)

	inst, err := host.Attach("bus")
	require.NoError(t, err)
	_, err = inst.Engine().Write(5, 10, []byte{0xAB, 0xCD})
	require.NoError(t, err)

	host.Detach(inst)
	assert.Nil(t, host.Current())

	inst2, err := host.Attach("bus")
	require.NoError(t, err)
	defer host.Detach(inst2)

	img, err := inst2.Engine().Image()
	require.NoError(t, err)
	for i, b := range img {
		if b != 0 {
			t.Fatalf("byte %d = %#x after re-attach, want 0", i, b)
		}
	}
	assert.NotEqual(t, inst.ID(), inst2.ID())
	assert.Equal(t, inst.Number()+1, inst2.Number())
}

func TestAttachDuplicateRegistration(t *testing.T) {
	host, err := NewHost(DefaultConfig())
	require.NoError(t, err)

	first, err := host.Attach("first")
	require.NoError(t, err)
	defer host.Detach(first)

	second, err := host.Attach("second")
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.Nil(t, second)

	// The first instance is untouched.
	assert.Same(t, first, host.Current())
	assert.True(t, first.Attached())
}

func TestAttachOutOfMemory(t *testing.T) {
	host, err := NewHost(Config{
		Geometry:      DefaultGeometry(),
		MaxStoreBytes: 1024,
	})
	require.NoError(t, err)

	inst, err := host.Attach("bus")
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Nil(t, inst)
	assert.Nil(t, host.Current(), "failed attach must not register anything")

	// A fitting geometry on a new host works.
	host2, err := NewHost(Config{Geometry: Geometry{MaxDev: 4, MaxReg: 256}, MaxStoreBytes: 1024})
	require.NoError(t, err)
	inst, err = host2.Attach("bus")
	require.NoError(t, err)
	host2.Detach(inst)
}

func TestAttachEmptyName(t *testing.T) {
	host, err := NewHost(DefaultConfig())
	require.NoError(t, err)

	_, err = host.Attach("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, host.Current())
}

func TestNewHostRejectsBadConfig(t *testing.T) {
	_, err := NewHost(Config{Geometry: Geometry{MaxDev: 0, MaxReg: 1}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewHost(Config{Geometry: DefaultGeometry(), MaxStoreBytes: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDetachIsIdempotent(t *testing.T) {
	host, err := NewHost(DefaultConfig())
	require.NoError(t, err)

	// Nothing registered.
	host.Detach(nil)

	inst, err := host.Attach("bus")
	require.NoError(t, err)

	host.Detach(inst)
	host.Detach(inst)
	assert.False(t, inst.Attached())

	// A stale handle must not detach the next instance.
	next, err := host.Attach("bus")
	require.NoError(t, err)
	host.Detach(inst)
	assert.Same(t, next, host.Current())
	host.Detach(next)
}

func TestOnDetachHooks(t *testing.T) {
	host, err := NewHost(DefaultConfig())
	require.NoError(t, err)

	inst, err := host.Attach("bus")
	require.NoError(t, err)

	var order []int
	var storeLiveInHook bool
	require.NoError(t, inst.OnDetach(func() { order = append(order, 1) }))
	require.NoError(t, inst.OnDetach(func() {
		order = append(order, 2)
		storeLiveInHook = inst.Engine().Attached()
	}))

	host.Detach(inst)

	assert.Equal(t, []int{2, 1}, order)
	assert.True(t, storeLiveInHook, "hooks run before the store is released")
	assert.ErrorIs(t, inst.OnDetach(func() {}), ErrDetached)
}

func TestInstanceAccessors(t *testing.T) {
	inst := newTestInstance(t)

	assert.Equal(t, "I2C Dummy Adapter", inst.Name())
	assert.NotEmpty(t, inst.ID())
	assert.Equal(t, DefaultGeometry(), inst.Geometry())
	assert.Equal(t, Capabilities(), inst.Capabilities())
	assert.False(t, inst.AttachedAt().IsZero())
}

func TestTraceEvents(t *testing.T) {
	trace := mocks.NewMockLogger(t)

	var events []log.Event
	trace.EXPECT().Log(mock.Anything).Run(func(ev log.Event) {
		events = append(events, ev)
	}).Return()

	cfg := DefaultConfig()
	cfg.TraceLogger = trace
	host, err := NewHost(cfg)
	require.NoError(t, err)

	inst, err := host.Attach("traced")
	require.NoError(t, err)

	_, err = inst.Engine().Write(5, 10, []byte{0xAB})
	require.NoError(t, err)
	_, err = inst.Engine().Write(256, 0, []byte{0x01})
	require.Error(t, err)
	inst.TraceClient("i2c_dummy_device-05", log.StateDetached, log.StateAttached, "probe")

	host.Detach(inst)

	require.Len(t, events, 5)

	assert.Equal(t, log.CategoryState, events[0].Category)
	assert.Equal(t, log.StateEntityBus, events[0].StateChange.Entity)
	assert.Equal(t, log.StateAttached, events[0].StateChange.NewState)

	assert.Equal(t, log.CategoryTransfer, events[1].Category)
	require.NotNil(t, events[1].Transfer)
	assert.Equal(t, log.DirectionWrite, events[1].Transfer.Direction)
	assert.Equal(t, uint16(5), events[1].Transfer.Address)
	assert.Equal(t, uint16(10), events[1].Transfer.Offset)
	assert.Equal(t, []byte{0xAB}, events[1].Transfer.Data)
	assert.Equal(t, 1, events[1].Transfer.Moved)

	assert.Equal(t, log.CategoryError, events[2].Category)
	require.NotNil(t, events[2].Error)
	assert.Equal(t, uint16(256), events[2].Error.Transfer.Address)

	assert.Equal(t, log.StateEntityClient, events[3].StateChange.Entity)
	assert.Equal(t, "i2c_dummy_device-05", events[3].Client)

	assert.Equal(t, log.StateDetached, events[4].StateChange.NewState)

	for _, ev := range events {
		assert.Equal(t, inst.ID(), ev.InstanceID)
		assert.Equal(t, "traced", ev.Bus)
	}
}

func TestTraceTruncatesLongTransfers(t *testing.T) {
	var got *log.TransferEvent
	trace := mocks.NewMockLogger(t)
	trace.EXPECT().Log(mock.MatchedBy(func(ev log.Event) bool {
		return ev.Category == log.CategoryTransfer
	})).Run(func(ev log.Event) { got = ev.Transfer }).Return().Once()
	trace.EXPECT().Log(mock.Anything).Return().Maybe()

	cfg := DefaultConfig()
	cfg.TraceLogger = trace
	host, err := NewHost(cfg)
	require.NoError(t, err)
	inst, err := host.Attach("bus")
	require.NoError(t, err)
	defer host.Detach(inst)

	_, err = inst.Engine().Write(0, 0, make([]byte, 200))
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, 200, got.Length)
	assert.Equal(t, 200, got.Moved)
	assert.Len(t, got.Data, log.MaxTraceData)
	assert.True(t, got.Truncated)
}
