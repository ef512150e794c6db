package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/regsim/regsim-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	BytesByDirection  map[log.Direction]int
	Instances         map[string]*InstanceStats
	Devices           map[uint16]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// InstanceStats holds statistics for a single bus instance.
type InstanceStats struct {
	Bus       string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Transfers int
	Clients   map[string]bool
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		BytesByDirection:  make(map[log.Direction]int),
		Instances:         make(map[string]*InstanceStats),
		Devices:           make(map[uint16]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	// Track instance stats
	inst, ok := s.Instances[event.InstanceID]
	if !ok {
		inst = &InstanceStats{
			Bus:       event.Bus,
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Clients:   make(map[string]bool),
		}
		s.Instances[event.InstanceID] = inst
	}
	inst.Events++
	if event.Timestamp.After(inst.LastSeen) {
		inst.LastSeen = event.Timestamp
	}
	if event.Client != "" {
		inst.Clients[event.Client] = true
	}

	if t := event.Transfer; t != nil {
		inst.Transfers++
		s.EventsByDirection[t.Direction]++
		s.BytesByDirection[t.Direction] += t.Moved
		s.Devices[t.Address]++
	}

	if event.Error != nil {
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Register Trace Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryTransfer, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Transfers by Direction:")
	for _, dir := range []log.Direction{log.DirectionRead, log.DirectionWrite} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d (%d bytes)\n", dir.String()+":", count, stats.BytesByDirection[dir])
		}
	}
	fmt.Fprintln(w)

	if len(stats.Devices) > 0 {
		addrs := make([]uint16, 0, len(stats.Devices))
		for a := range stats.Devices {
			addrs = append(addrs, a)
		}
		sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

		fmt.Fprintln(w, "Transfers by Device:")
		for _, a := range addrs {
			fmt.Fprintf(w, "  0x%02x:        %d\n", a, stats.Devices[a])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Bus Instances: %d\n", len(stats.Instances))
	if len(stats.Instances) > 0 {
		// Sort by first seen time
		type instInfo struct {
			id    string
			stats *InstanceStats
		}
		insts := make([]instInfo, 0, len(stats.Instances))
		for id, is := range stats.Instances {
			insts = append(insts, instInfo{id, is})
		}
		sort.Slice(insts, func(i, j int) bool {
			return insts[i].stats.FirstSeen.Before(insts[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, in := range insts {
			duration := in.stats.LastSeen.Sub(in.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d transfers, duration %s\n",
				shortenID(in.id), in.stats.Events, in.stats.Transfers, duration)
			if in.stats.Bus != "" {
				fmt.Fprintf(w, "           Bus: %s\n", in.stats.Bus)
			}
			if len(in.stats.Clients) > 0 {
				fmt.Fprintf(w, "           Clients: %d\n", len(in.stats.Clients))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
