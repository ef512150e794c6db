// Package interactive provides the interactive command-line interface
// for regsim-device.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/regsim/regsim-go/pkg/bus"
	"github.com/regsim/regsim-go/pkg/inspect"
	"github.com/regsim/regsim-go/pkg/persistence"
	"github.com/regsim/regsim-go/pkg/regfs"
)

// Options configures a Shell.
type Options struct {
	// Host owns the bus slot. Required for bus attach/detach.
	Host *bus.Host

	// BusName is used when the shell re-attaches the bus.
	BusName string

	// TreeConfig is used for the tree of a re-attached bus.
	TreeConfig regfs.Config

	// Snapshots is the default store for save/load (optional).
	Snapshots *persistence.SnapshotStore
}

// Shell handles interactive mode for regsim-device.
type Shell struct {
	opts Options

	// mu guards tree and inspector against readers outside the shell
	// goroutine. Only setTree writes them.
	mu        sync.RWMutex
	tree      *regfs.Tree
	inspector *inspect.Inspector
	formatter *inspect.Formatter
	rl        *readline.Instance
	out       io.Writer
}

// New creates a shell reading commands from the terminal.
func New(tree *regfs.Tree, opts Options) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "regsim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := NewWithWriter(tree, opts, rl.Stdout())
	s.rl = rl
	return s, nil
}

// NewWithWriter creates a shell without a terminal. Commands are passed to
// Execute and their output goes to w.
func NewWithWriter(tree *regfs.Tree, opts Options, w io.Writer) *Shell {
	s := &Shell{
		opts:      opts,
		formatter: inspect.NewFormatter(),
		out:       w,
	}
	s.setTree(tree)
	return s
}

func (s *Shell) setTree(tree *regfs.Tree) {
	var insp *inspect.Inspector
	if tree != nil {
		insp = inspect.NewInspector(tree)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	s.inspector = insp
}

// Tree returns the accessor tree of the current bus, or nil while the bus
// is detached.
// It is safe to call while Run is executing commands.
func (s *Shell) Tree() *regfs.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	if s.rl != nil {
		return s.rl.Stdout()
	}
	return s.out
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Shell) Stderr() io.Writer {
	if s.rl != nil {
		return s.rl.Stderr()
	}
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Execute(line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the shell should exit.
func (s *Shell) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" || strings.HasPrefix(input, "#") {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "ls", "l":
		s.cmdList(args)

	case "get", "g":
		s.cmdGet(args)

	case "set", "s":
		s.cmdSet(args)

	case "read", "r":
		s.cmdRead(args)

	case "write", "w":
		s.cmdWrite(args)

	case "xfer", "x":
		s.cmdXfer(args)

	case "dump", "d":
		s.cmdDump(args)

	case "caps":
		s.cmdCaps()

	case "attach":
		s.cmdAttach(args)

	case "detach":
		s.cmdDetach(args)

	case "save":
		s.cmdSave(args)

	case "load":
		s.cmdLoad(args)

	case "status":
		s.cmdStatus()

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Register Simulator Commands:
  Accessors:
    ls [dir]                  - List client directories (or the accessors of one)
    get <dir/reg>             - Read one register through its accessor
    set <dir/reg> <value>     - Write one register through its accessor
    dump <dir|addr:off>       - Hex dump all registers of a device

  Raw transfers:
    read <addr:off> [len]     - Read len bytes (default 1)
    write <addr:off> <b>...   - Write bytes
    xfer <r|w> <byte|raw> <addr:off> <len|b...>
                              - Transfer with an explicit mode
    caps                      - Show adapter capabilities

  Lifecycle:
    attach <name> <addr>      - Attach a client device
    detach <dir>              - Detach a client device
    attach                    - Attach the bus (when detached)
    detach                    - Detach the bus

  Persistence:
    save [file]               - Save a register snapshot
    load [file]               - Restore a register snapshot

  General:
    status                    - Show bus status
    help                      - Show this help
    quit                      - Exit

  Numbers are decimal or hex with a 0x prefix. Register names are hex.`)
}

func (s *Shell) requireBus() bool {
	if s.tree == nil {
		fmt.Fprintln(s.out, "Bus is detached (use 'attach')")
		return false
	}
	return true
}

// cmdList handles the ls command.
func (s *Shell) cmdList(args []string) {
	if !s.requireBus() {
		return
	}

	if len(args) == 0 {
		dirs := s.tree.List()
		if len(dirs) == 0 {
			fmt.Fprintln(s.out, "No clients attached")
			return
		}
		for _, dir := range dirs {
			fmt.Fprintln(s.out, dir)
		}
		return
	}

	c, ok := s.tree.Client(strings.Trim(args[0], "/"))
	if !ok {
		fmt.Fprintf(s.out, "Error: %v: %s\n", inspect.ErrClientNotFound, args[0])
		return
	}

	names := make([]string, 0, c.Len())
	for _, a := range c.Accessors() {
		names = append(names, a.Name())
	}
	for i := 0; i < len(names); i += 16 {
		fmt.Fprintln(s.out, strings.Join(names[i:min(i+16, len(names))], " "))
	}
}

// cmdGet handles the get command.
func (s *Shell) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: get <dir/reg>")
		fmt.Fprintln(s.out, "  Example: get i2c_dummy_device-50/0a")
		return
	}
	if !s.requireBus() {
		return
	}

	path, err := inspect.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid path: %v\n", err)
		return
	}

	value, err := s.inspector.Read(path)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s = %s\n", path, s.formatter.FormatValue(value))
}

// cmdSet handles the set command.
func (s *Shell) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: set <dir/reg> <value>")
		fmt.Fprintln(s.out, "  Example: set i2c_dummy_device-50/0a 0xab")
		return
	}
	if !s.requireBus() {
		return
	}

	path, err := inspect.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid path: %v\n", err)
		return
	}
	value, err := inspect.ParseNumber(args[1], 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid value: %v\n", err)
		return
	}

	if err := s.inspector.Write(path, value); err != nil {
		fmt.Fprintf(s.out, "Write failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "OK")
}

func (s *Shell) rawPath(arg string) (*inspect.Path, bool) {
	path, err := inspect.ParsePath(arg)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid path: %v\n", err)
		return nil, false
	}
	if !path.IsRaw {
		fmt.Fprintf(s.out, "Invalid path: %s is not an addr:off location\n", arg)
		return nil, false
	}
	return path, true
}

// cmdRead handles the read command.
func (s *Shell) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: read <addr:off> [len]")
		fmt.Fprintln(s.out, "  Example: read 0x50:0x00 16")
		return
	}

	length := uint64(1)
	if len(args) > 1 {
		n, err := inspect.ParseNumber(args[1], 16)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid length: %v\n", err)
			return
		}
		length = n
	}
	s.transfer(bus.Read, bus.FuncRawTransfer, args[0], make([]byte, length))
}

// cmdWrite handles the write command.
func (s *Shell) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: write <addr:off> <byte>...")
		fmt.Fprintln(s.out, "  Example: write 0x50:0x0a 0xab 0xcd")
		return
	}

	data, err := inspect.ParseBytes(args[1:])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid data: %v\n", err)
		return
	}
	s.transfer(bus.Write, bus.FuncRawTransfer, args[0], data)
}

// cmdXfer handles the xfer command.
func (s *Shell) cmdXfer(args []string) {
	if len(args) < 4 {
		fmt.Fprintln(s.out, "Usage: xfer <r|w> <byte|raw> <addr:off> <len|byte...>")
		fmt.Fprintln(s.out, "  Example: xfer w byte 5:10 0xab")
		return
	}

	var dir bus.Direction
	switch strings.ToLower(args[0]) {
	case "r", "read":
		dir = bus.Read
	case "w", "write":
		dir = bus.Write
	default:
		fmt.Fprintf(s.out, "Invalid direction: %s\n", args[0])
		return
	}

	var mode bus.Functionality
	switch strings.ToLower(args[1]) {
	case "byte":
		mode = bus.FuncByteTransfer
	case "raw":
		mode = bus.FuncRawTransfer
	default:
		fmt.Fprintf(s.out, "Invalid mode: %s\n", args[1])
		return
	}

	var buf []byte
	if dir == bus.Read {
		n, err := inspect.ParseNumber(args[3], 16)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid length: %v\n", err)
			return
		}
		buf = make([]byte, n)
	} else {
		data, err := inspect.ParseBytes(args[3:])
		if err != nil {
			fmt.Fprintf(s.out, "Invalid data: %v\n", err)
			return
		}
		buf = data
	}
	s.transfer(dir, mode, args[2], buf)
}

func (s *Shell) transfer(dir bus.Direction, mode bus.Functionality, loc string, buf []byte) {
	if !s.requireBus() {
		return
	}
	path, ok := s.rawPath(loc)
	if !ok {
		return
	}

	n, err := s.tree.Instance().Engine().Transfer(bus.Request{
		Direction: dir,
		Address:   path.Address,
		Offset:    path.Offset,
		Mode:      mode,
		Buf:       buf,
	})
	if err != nil {
		fmt.Fprintf(s.out, "Transfer failed: %v\n", err)
		return
	}

	if dir == bus.Write {
		fmt.Fprintf(s.out, "OK (%d bytes written)\n", n)
		return
	}
	if n == 1 {
		fmt.Fprintf(s.out, "%s = %s\n", path, s.formatter.FormatValue(uint64(buf[0])))
		return
	}
	fmt.Fprintf(s.out, "%d bytes read from %s:\n", n, path)
	fmt.Fprint(s.out, s.formatter.HexDump(buf[:n]))
}

// cmdDump handles the dump command.
func (s *Shell) cmdDump(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: dump <dir|addr:off>")
		return
	}
	if !s.requireBus() {
		return
	}

	path, err := inspect.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid path: %v\n", err)
		return
	}

	row, err := s.inspector.Dump(path)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(s.out, s.formatter.HexDump(row))
}

// cmdCaps handles the caps command.
func (s *Shell) cmdCaps() {
	fmt.Fprintf(s.out, "Capabilities: %s\n", inspect.FormatCapabilities(bus.Capabilities()))
}

// cmdAttach handles the attach command.
func (s *Shell) cmdAttach(args []string) {
	if len(args) == 0 {
		s.attachBus()
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: attach <name> <addr>")
		fmt.Fprintln(s.out, "  Example: attach i2c_dummy_device 0x50")
		return
	}
	if !s.requireBus() {
		return
	}

	addr, err := inspect.ParseNumber(args[1], 16)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid address: %v\n", err)
		return
	}

	c, err := s.tree.AttachClient(args[0], uint16(addr))
	if err != nil {
		fmt.Fprintf(s.out, "Attach failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Attached %s (%d registers)\n", c.Dir(), c.Len())
}

func (s *Shell) attachBus() {
	if s.opts.Host == nil {
		fmt.Fprintln(s.out, "Attach failed: no bus host")
		return
	}

	inst, err := s.opts.Host.Attach(s.opts.BusName)
	if err != nil {
		fmt.Fprintf(s.out, "Attach failed: %v\n", err)
		return
	}

	tree, err := regfs.NewTree(inst, s.opts.TreeConfig)
	if err != nil {
		s.opts.Host.Detach(inst)
		fmt.Fprintf(s.out, "Attach failed: %v\n", err)
		return
	}
	s.setTree(tree)
	fmt.Fprintf(s.out, "Bus %d attached: %s (%s)\n", inst.Number(), inst.Name(), inst.Geometry())
}

// cmdDetach handles the detach command.
func (s *Shell) cmdDetach(args []string) {
	if !s.requireBus() {
		return
	}

	if len(args) == 0 {
		inst := s.tree.Instance()
		if s.opts.Host != nil {
			s.opts.Host.Detach(inst)
		}
		s.setTree(nil)
		fmt.Fprintf(s.out, "Bus %d detached\n", inst.Number())
		return
	}

	c, ok := s.tree.Client(strings.Trim(args[0], "/"))
	if !ok {
		fmt.Fprintf(s.out, "Error: %v: %s\n", inspect.ErrClientNotFound, args[0])
		return
	}
	s.tree.DetachClient(c)
	fmt.Fprintf(s.out, "Detached %s\n", c.Dir())
}

func (s *Shell) snapshotStore(args []string) *persistence.SnapshotStore {
	if len(args) > 0 {
		return persistence.NewSnapshotStore(args[0])
	}
	if s.opts.Snapshots == nil {
		fmt.Fprintln(s.out, "No snapshot file configured (pass a file name)")
	}
	return s.opts.Snapshots
}

// cmdSave handles the save command.
func (s *Shell) cmdSave(args []string) {
	if !s.requireBus() {
		return
	}
	store := s.snapshotStore(args)
	if store == nil {
		return
	}

	snap, err := persistence.Capture(s.tree.Instance(), s.tree)
	if err != nil {
		fmt.Fprintf(s.out, "Save failed: %v\n", err)
		return
	}
	if err := store.Save(snap); err != nil {
		fmt.Fprintf(s.out, "Save failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Saved %d devices to %s\n", len(snap.Devices), store.Path())
}

// cmdLoad handles the load command.
func (s *Shell) cmdLoad(args []string) {
	if !s.requireBus() {
		return
	}
	store := s.snapshotStore(args)
	if store == nil {
		return
	}

	snap, err := store.Load()
	if err != nil {
		fmt.Fprintf(s.out, "Load failed: %v\n", err)
		return
	}
	if snap == nil {
		fmt.Fprintf(s.out, "No snapshot at %s\n", store.Path())
		return
	}

	if err := persistence.Restore(s.tree.Instance(), s.tree, snap); err != nil {
		if errors.Is(err, persistence.ErrGeometryMismatch) {
			fmt.Fprintf(s.out, "Load failed: snapshot does not fit this bus: %v\n", err)
			return
		}
		fmt.Fprintf(s.out, "Load failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Restored %d devices from %s\n", len(snap.Devices), store.Path())
}

// cmdStatus shows the bus status.
func (s *Shell) cmdStatus() {
	if s.tree == nil {
		fmt.Fprintln(s.out, "\nBus Status")
		fmt.Fprintln(s.out, "-------------------------------------------")
		fmt.Fprintln(s.out, "  State: detached")
		fmt.Fprintln(s.out)
		return
	}

	info, err := s.inspector.InspectBus()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out)
	fmt.Fprint(s.out, s.formatter.FormatBus(info))
	fmt.Fprintln(s.out)
}
