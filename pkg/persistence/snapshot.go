package persistence

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// ErrGeometryMismatch is returned when a snapshot does not fit the instance.
var ErrGeometryMismatch = errors.New("snapshot geometry mismatch")

// Snapshot is the saved register image of one bus instance.
type Snapshot struct {
	// Version is the snapshot file format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`

	// Bus is the name of the instance the snapshot was taken from.
	Bus string `json:"bus"`

	// Geometry is the store geometry; restore requires the same one.
	Geometry bus.Geometry `json:"geometry"`

	// Devices maps "%02x" device addresses to hex-encoded rows.
	// All-zero rows are omitted.
	Devices map[string]string `json:"devices,omitempty"`

	// Clients lists the accessor directories attached at capture time.
	Clients []ClientEntry `json:"clients,omitempty"`
}

// ClientEntry records one attached client.
type ClientEntry struct {
	Name    string `json:"name"`
	Address uint16 `json:"address"`
}

// Capture copies the store of inst into a snapshot. tree may be nil.
func Capture(inst *bus.Instance, tree *regfs.Tree) (*Snapshot, error) {
	img, err := inst.Engine().Image()
	if err != nil {
		return nil, err
	}

	g := inst.Geometry()
	snap := &Snapshot{
		Version:  SnapshotVersion,
		SavedAt:  time.Now(),
		Bus:      inst.Name(),
		Geometry: g,
		Devices:  make(map[string]string),
	}

	for addr := 0; addr < g.MaxDev; addr++ {
		row := img[addr*g.MaxReg : (addr+1)*g.MaxReg]
		if slices.ContainsFunc(row, func(b byte) bool { return b != 0 }) {
			snap.Devices[fmt.Sprintf("%02x", addr)] = hex.EncodeToString(row)
		}
	}

	if tree != nil {
		for _, dir := range tree.List() {
			if c, ok := tree.Client(dir); ok {
				snap.Clients = append(snap.Clients, ClientEntry{Name: c.Name(), Address: c.Address()})
			}
		}
	}

	return snap, nil
}

type decodedRow struct {
	addr uint16
	data []byte
}

// Restore writes the rows of snap into inst through its engine and attaches
// any missing clients to tree (which may be nil). Every row is decoded and
// checked before the first write. Rows absent from the snapshot are left as
// they are.
func Restore(inst *bus.Instance, tree *regfs.Tree, snap *Snapshot) error {
	g := inst.Geometry()
	if snap.Geometry != g {
		return fmt.Errorf("%w: snapshot %s, bus %s", ErrGeometryMismatch, snap.Geometry, g)
	}

	rows := make([]decodedRow, 0, len(snap.Devices))
	for key, value := range snap.Devices {
		addr, err := strconv.ParseUint(key, 16, 16)
		if err != nil || int(addr) >= g.MaxDev {
			return fmt.Errorf("%w: device key %q", bus.ErrInvalidArgument, key)
		}
		data, err := hex.DecodeString(value)
		if err != nil {
			return fmt.Errorf("device %s: %w", key, err)
		}
		if len(data) != g.MaxReg {
			return fmt.Errorf("%w: device %s has %d registers, want %d", ErrGeometryMismatch, key, len(data), g.MaxReg)
		}
		// The last register is outside the transfer window and stays zero.
		if data[len(data)-1] != 0 {
			return fmt.Errorf("%w: device %s sets the last register", bus.ErrInvalidArgument, key)
		}
		rows = append(rows, decodedRow{addr: uint16(addr), data: data[:len(data)-1]})
	}

	slices.SortFunc(rows, func(a, b decodedRow) int { return int(a.addr) - int(b.addr) })

	for _, r := range rows {
		if len(r.data) == 0 {
			continue
		}
		if _, err := inst.Engine().Write(r.addr, 0, r.data); err != nil {
			return fmt.Errorf("restore device %02x: %w", r.addr, err)
		}
	}

	if tree == nil {
		return nil
	}
	for _, ce := range snap.Clients {
		if _, exists := tree.Client(regfs.DirName(ce.Name, ce.Address)); exists {
			continue
		}
		if _, err := tree.AttachClient(ce.Name, ce.Address); err != nil {
			return fmt.Errorf("restore client %s: %w", regfs.DirName(ce.Name, ce.Address), err)
		}
	}
	return nil
}

// SnapshotStore manages persistence of snapshots to a JSON file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a new snapshot store.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save persists the snapshot to disk.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the snapshot from disk.
// Returns nil, nil if the file doesn't exist.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}

	return snap, nil
}

// Clear removes the snapshot file.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
