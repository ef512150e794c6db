// Command regsim-device runs a simulated byte-addressable bus.
//
// This command brings up one bus instance with:
//   - CLI argument parsing
//   - Configuration file support
//   - Client devices attached and preloaded from the configuration
//   - Optional CBOR transfer trace
//   - Optional register snapshot restored at startup and saved at exit
//   - An interactive shell for inspecting and driving the bus
//
// Usage:
//
//	regsim-device [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-bus string           Bus adapter name (default "I2C Dummy Adapter")
//	-max-devices int      Number of device addresses
//	-max-registers int    Number of registers per device
//	-trace string         CBOR trace file path
//	-snapshot string      Snapshot file path
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-version              Print the version and exit
//	-interactive          Start the interactive shell
//
// Examples:
//
//	# Start with defaults and a shell
//	regsim-device -interactive
//
//	# Start from a config file, tracing every transfer
//	regsim-device -config regsim.yaml -trace /tmp/regsim.cbor
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/regsim/regsim-go/cmd/regsim-device/interactive"
	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/config"
	tracelog "github.com/regsim/regsim-go/pkg/log"
	"github.com/regsim/regsim-go/pkg/persistence"
	"github.com/regsim/regsim-go/pkg/regfs"
	"github.com/regsim/regsim-go/pkg/version"
)

// Flags holds the command-line settings. Set flags override the file.
type Flags struct {
	ConfigFile   string
	Bus          string
	MaxDevices   int
	MaxRegisters int
	TraceFile    string
	SnapshotFile string
	LogLevel     string
	Interactive  bool
	Version      bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Bus, "bus", config.DefaultBusName, "Bus adapter name")
	flag.IntVar(&flags.MaxDevices, "max-devices", bus.DefaultMaxDev, "Number of device addresses")
	flag.IntVar(&flags.MaxRegisters, "max-registers", bus.DefaultMaxReg, "Number of registers per device")
	flag.StringVar(&flags.TraceFile, "trace", "", "CBOR trace file path")
	flag.StringVar(&flags.SnapshotFile, "snapshot", "", "Snapshot file path")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive shell")
	flag.BoolVar(&flags.Version, "version", false, "Print the version and exit")
}

func main() {
	flag.Parse()

	if flags.Version {
		fmt.Println(version.Banner("regsim-device"))
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	setupLogging(cfg.LogLevel)

	log.Printf("Register Simulator %s", version.Current)
	log.Println("==================")
	log.Printf("Bus: %s", cfg.Bus)
	log.Printf("Geometry: %s", cfg.Geometry)

	// Debug output goes through a writer that the shell can redirect.
	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	trace, closeTrace, err := setupTrace(cfg.TraceFile, logger)
	if err != nil {
		log.Fatalf("Failed to open trace file: %v", err)
	}
	defer closeTrace()

	busCfg := cfg.BusConfig(logger)
	busCfg.TraceLogger = trace

	host, err := bus.NewHost(busCfg)
	if err != nil {
		log.Fatalf("Failed to create bus host: %v", err)
	}

	inst, err := host.Attach(cfg.Bus)
	if err != nil {
		log.Fatalf("Failed to attach bus: %v", err)
	}
	log.Printf("Bus %d attached (id %s)", inst.Number(), inst.ID())

	treeCfg := cfg.TreeConfig(logger)
	tree, err := regfs.NewTree(inst, treeCfg)
	if err != nil {
		log.Fatalf("Failed to create accessor tree: %v", err)
	}

	var snapshots *persistence.SnapshotStore
	restored := false
	if cfg.SnapshotFile != "" {
		snapshots = persistence.NewSnapshotStore(cfg.SnapshotFile)
		restored, err = restoreSnapshot(snapshots, tree)
		if err != nil {
			log.Fatalf("Failed to restore snapshot: %v", err)
		}
	}

	if err := attachClients(tree, cfg.Clients, !restored); err != nil {
		log.Fatalf("Failed to attach clients: %v", err)
	}
	for _, dir := range tree.List() {
		log.Printf("  %s", dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	current := func() *regfs.Tree { return tree }

	if flags.Interactive {
		sh, err := interactive.New(tree, interactive.Options{
			Host:       host,
			BusName:    cfg.Bus,
			TreeConfig: treeCfg,
			Snapshots:  snapshots,
		})
		if err != nil {
			log.Fatalf("Failed to start shell: %v", err)
		}
		log.SetOutput(sh.Stderr())
		logOut.Set(sh.Stderr())
		current = sh.Tree

		go sh.Run(ctx, cancel)
	}

	// Wait for shutdown signal or shell exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.SetOutput(os.Stderr)
	logOut.Set(os.Stderr)
	log.Println("Shutting down...")

	if t := current(); t != nil {
		if snapshots != nil {
			if err := saveSnapshot(snapshots, t); err != nil {
				log.Printf("Error saving snapshot: %v", err)
			}
		}
		host.Detach(t.Instance())
	}

	log.Println("Goodbye!")
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

// loadConfig reads the config file (if any) and applies explicitly set flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(flags.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus":
			cfg.Bus = flags.Bus
		case "max-devices":
			cfg.Geometry.MaxDev = flags.MaxDevices
		case "max-registers":
			cfg.Geometry.MaxReg = flags.MaxRegisters
		case "trace":
			cfg.TraceFile = flags.TraceFile
		case "snapshot":
			cfg.SnapshotFile = flags.SnapshotFile
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupTrace returns the trace logger for the bus. Events always reach the
// debug log; with a path they are also appended to a CBOR file.
func setupTrace(path string, logger *slog.Logger) (tracelog.Logger, func(), error) {
	adapter := tracelog.NewSlogAdapter(logger)
	if path == "" {
		return adapter, func() {}, nil
	}

	file, err := tracelog.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Tracing to %s", path)

	closeFn := func() {
		if err := file.Close(); err != nil {
			log.Printf("Error closing trace file: %v", err)
		}
	}
	return tracelog.NewMultiLogger(adapter, file), closeFn, nil
}

// attachClients attaches the configured clients, skipping ones that already
// exist. With preload set, initial register values are written.
func attachClients(tree *regfs.Tree, clients []config.Client, preload bool) error {
	for _, cc := range clients {
		c, ok := tree.Client(regfs.DirName(cc.Name, cc.Address))
		if !ok {
			var err error
			if c, err = tree.AttachClient(cc.Name, cc.Address); err != nil {
				return err
			}
		}

		if !preload {
			continue
		}
		for off, value := range cc.Registers {
			a, err := c.Accessor(off)
			if err != nil {
				return err
			}
			if err := a.Write(value); err != nil {
				return fmt.Errorf("preload %s: %w", a.Path(), err)
			}
		}
	}
	return nil
}

func restoreSnapshot(store *persistence.SnapshotStore, tree *regfs.Tree) (bool, error) {
	snap, err := store.Load()
	if err != nil {
		return false, err
	}
	if snap == nil {
		log.Printf("No snapshot at %s", store.Path())
		return false, nil
	}

	if err := persistence.Restore(tree.Instance(), tree, snap); err != nil {
		return false, err
	}
	log.Printf("Restored %d devices from %s (saved %s)", len(snap.Devices), store.Path(), snap.SavedAt.Format("2006-01-02 15:04:05"))
	return true, nil
}

func saveSnapshot(store *persistence.SnapshotStore, tree *regfs.Tree) error {
	snap, err := persistence.Capture(tree.Instance(), tree)
	if err != nil {
		return err
	}
	if err := store.Save(snap); err != nil {
		return err
	}
	log.Printf("Saved %d devices to %s", len(snap.Devices), store.Path())
	return nil
}

// switchWriter is an io.Writer whose target can be replaced at runtime.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Set replaces the target writer.
func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}
