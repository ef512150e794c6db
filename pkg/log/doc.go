// Package log provides structured transfer tracing for the simulated bus.
//
// This package defines the Logger interface and Event types for capturing
// every register transfer, lifecycle change and rejected request seen by a
// bus instance. It is separate from operational logging (slog) - the trace
// is a complete machine-readable record for debugging client drivers.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.TraceLogger = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write to binary file
//	cfg.TraceLogger, _ = log.NewFileLogger("/tmp/regsim.rlog")
//
//	// Both: use MultiLogger
//	cfg.TraceLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events fall into three categories:
//   - Transfer: a completed read or write (TransferEvent)
//   - State: bus or client attach/detach (StateChangeEvent)
//   - Error: a rejected transfer or lifecycle request (ErrorEventData)
//
// # File Format
//
// Trace files use CBOR encoding with .rlog extension. The regsim-log CLI tool
// provides viewing, filtering and statistics.
package log
