// Package bus implements the simulated register bus.
//
// # Layout
//
// A bus instance owns one register Store: a MaxDev x MaxReg byte matrix
// indexed by (device address, register offset). All access goes through the
// instance's Engine, which bounds-checks every transfer before touching the
// store:
//
//	Host (one discoverable slot)
//	└── Instance "I2C Dummy Adapter" (bus 0)
//	    └── Engine
//	        └── Store [MaxDev][MaxReg]byte
//
// # Transfers
//
// A transfer moves len(buf) contiguous bytes between the caller's buffer and
// one device row. It is valid only when
//
//	address < MaxDev && offset+length < MaxReg
//
// Invalid transfers fail with ErrInvalidArgument and leave the store as it
// was. Both directions return the number of bytes moved. One RWMutex guards
// the whole store, so every transfer is atomic with respect to the others.
//
// # Lifecycle
//
// Host.Attach creates an instance with a zeroed store and registers it in the
// host's slot. A second Attach fails with ErrDuplicateRegistration until the
// first instance is detached. Detach is idempotent; after it, the old engine
// rejects transfers with ErrDetached.
package bus
