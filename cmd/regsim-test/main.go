// Command regsim-test runs register scenarios against a simulated bus.
//
// Scenarios are YAML files describing a sequence of bus, client and
// transfer steps together with their expected outcomes. Each scenario runs
// on its own freshly attached bus.
//
// Usage:
//
//	regsim-test [flags] [pattern]
//
// Flags:
//
//	-tests string     Scenario file or directory (default "./testdata/scenarios")
//	-timeout duration Per-step timeout (default 5s)
//	-verbose          Show step details
//	-json             Output results as JSON
//	-stop             Stop at the first failing scenario
//	-trace string     File path for bus event logging (CBOR format)
//	-version          Print the version and exit
//
// The optional pattern is a regular expression matched against scenario
// IDs and names.
//
// Examples:
//
//	# Run every scenario
//	regsim-test
//
//	# Run lifecycle scenarios with step details
//	regsim-test -verbose "SC-LIFE-.*"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/regsim/regsim-go/internal/scenario"
	tracelog "github.com/regsim/regsim-go/pkg/log"
	"github.com/regsim/regsim-go/pkg/version"
)

var (
	tests    = flag.String("tests", "./testdata/scenarios", "Scenario file or directory")
	timeout  = flag.Duration("timeout", 5*time.Second, "Per-step timeout")
	verbose  = flag.Bool("verbose", false, "Show step details")
	jsonOut  = flag.Bool("json", false, "Output results as JSON")
	stop     = flag.Bool("stop", false, "Stop at the first failing scenario")
	traceOut = flag.String("trace", "", "File path for bus event logging (CBOR format)")
	showVer  = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.Banner("regsim-test"))
		return
	}

	pattern := ""
	if flag.NArg() > 0 {
		pattern = flag.Arg(0)
	}

	if !*jsonOut {
		log.SetFlags(log.Ltime)
		log.Printf("Scenarios: %s", *tests)
		if pattern != "" {
			log.Printf("Pattern: %s", pattern)
		}
	}

	scenarios, err := loadScenarios(*tests, pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(scenarios) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no scenarios matched")
		os.Exit(1)
	}

	config := scenario.Config{
		StopOnFirstFailure: *stop,
		StepTimeout:        *timeout,
	}
	var traceFile *tracelog.FileLogger
	if *traceOut != "" {
		traceFile, err = tracelog.NewFileLogger(*traceOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create trace file: %v\n", err)
			os.Exit(1)
		}
		config.TraceLogger = traceFile
		if !*jsonOut {
			log.Printf("Trace logging to: %s", *traceOut)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Interrupted, stopping...")
		cancel()
	}()

	suite := scenario.NewRunner(config).RunSuite(ctx, *tests, scenarios)
	report(os.Stdout, suite, *jsonOut, *verbose, term.IsTerminal(int(os.Stdout.Fd())))

	if traceFile != nil {
		if err := traceFile.Close(); err != nil {
			log.Printf("Warning: closing trace file: %v", err)
		}
	}
	if suite.FailCount > 0 {
		os.Exit(1)
	}
}

// loadScenarios loads a single file or a directory and keeps the
// scenarios whose ID or name matches pattern.
func loadScenarios(path, pattern string) ([]*scenario.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var all []*scenario.Scenario
	if info.IsDir() {
		all, err = scenario.LoadDirectory(path)
	} else {
		var sc *scenario.Scenario
		sc, err = scenario.Load(path)
		all = []*scenario.Scenario{sc}
	}
	if err != nil {
		return nil, err
	}

	if pattern == "" {
		return all, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	var matched []*scenario.Scenario
	for _, sc := range all {
		if re.MatchString(sc.ID) || re.MatchString(sc.Name) {
			matched = append(matched, sc)
		}
	}
	return matched, nil
}

// report writes suite in the selected format. Colors are only used for
// text output to a terminal.
func report(w io.Writer, suite *scenario.SuiteResult, asJSON, verbose, color bool) {
	if asJSON {
		scenario.NewJSONReporter(w, true).ReportSuite(suite)
		return
	}
	tr := scenario.NewTextReporter(w, verbose)
	tr.SetColor(color)
	tr.ReportSuite(suite)
}
