// Package persistence saves and restores the register image of a bus
// instance so a simulated device can keep its contents across restarts.
//
// Snapshots are JSON files. Only device rows holding a non-zero byte are
// stored, each as a hex string keyed by the two-digit device address.
package persistence
