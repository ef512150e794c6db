// Package regfs exposes the registers of attached client devices as
// individually addressable accessors, laid out like a debug filesystem:
//
//	i2c_dummy_device-50/
//	├── 00
//	├── 01
//	│   ...
//	└── ff
//
// A Tree is bound to one bus instance. Attaching a client at address A
// creates the directory "<name>-<A as %02x>" holding one accessor per register
// offset, named by the offset as "%02x". Accessors own no data; each Read or
// Write is a one-byte transfer on the instance's engine.
//
// Accessors are cheap values produced on demand, so attaching a client does
// not allocate one handle per register. Detaching a client, or detaching the
// bus instance, removes the whole directory at once.
package regfs
