// damonctl inspects and converts kdamond specifications and
// monitoring result files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/aggregate"
	"github.com/xtxerr/damonctl/internal/damon"
	"github.com/xtxerr/damonctl/internal/export"
	"github.com/xtxerr/damonctl/internal/logging"
	"github.com/xtxerr/damonctl/internal/record"
	"github.com/xtxerr/damonctl/internal/report"
	"github.com/xtxerr/damonctl/internal/validation"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: damonctl <command> [flags]

commands:
  validate   check a kdamond spec file
  show       print a kdamond spec file
  dump       print a result file's snapshots
  report     print per-target access distributions of a result file
  aggregate  fold a result file into one snapshot per target
  convert    rewrite a result file in another format
  export     write a result file's regions as Parquet
`)
	os.Exit(2)
}

// rawDefault picks machine-readable output when stdout is piped.
func rawDefault() bool {
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	log.SetFlags(0)
	debug := false
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-debug" || args[0] == "--debug") {
		debug = true
		args = args[1:]
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logging.Init(level, false)

	if len(args) < 1 {
		usage()
	}
	var err error
	switch args[0] {
	case "validate":
		err = cmdValidate(args[1:])
	case "show":
		err = cmdShow(args[1:])
	case "dump":
		err = cmdDump(args[1:])
	case "report":
		err = cmdReport(args[1:])
	case "aggregate":
		err = cmdAggregate(args[1:])
	case "convert":
		err = cmdConvert(args[1:])
	case "export":
		err = cmdExport(args[1:])
	case "version":
		fmt.Println("damonctl", Version)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("damonctl %s: %v", args[0], err)
	}
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	spec := fs.String("spec", "kdamonds.yaml", "kdamond spec file")
	fs.Parse(args)

	kdamonds, err := damon.LoadKdamonds(*spec)
	if err != nil {
		return err
	}
	if err := validation.Kdamonds(kdamonds); err != nil {
		return err
	}
	monitoringOnly := true
	for _, k := range kdamonds {
		if !k.MonitoringOnly() {
			monitoringOnly = false
		}
	}
	fmt.Printf("%s: %d kdamond(s), monitoring-only: %v\n",
		*spec, len(kdamonds), monitoringOnly)
	return nil
}

func cmdShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	spec := fs.String("spec", "kdamonds.yaml", "kdamond spec file")
	raw := fs.Bool("raw", rawDefault(), "machine-readable values")
	fs.Parse(args)

	kdamonds, err := damon.LoadKdamonds(*spec)
	if err != nil {
		return err
	}
	for _, k := range kdamonds {
		fmt.Println(k.ToStr(*raw))
	}
	return nil
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	input := fs.String("input", config.DefaultRecordPath, "result file")
	fs.Parse(args)

	res, _, err := record.ParseFile(*input)
	if err != nil {
		return err
	}
	return report.Dump(os.Stdout, res)
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	input := fs.String("input", config.DefaultRecordPath, "result file")
	raw := fs.Bool("raw", rawDefault(), "machine-readable values")
	fs.Parse(args)

	res, _, err := record.ParseFile(*input)
	if err != nil {
		return err
	}
	dists, err := report.Result(context.Background(), res)
	if err != nil {
		return err
	}
	for _, d := range dists {
		if err := d.Render(os.Stdout, *raw); err != nil {
			return err
		}
	}
	return nil
}

func cmdAggregate(args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	input := fs.String("input", config.DefaultRecordPath, "result file")
	output := fs.String("output", "", "write the aggregated result to a file instead of stdout")
	format := fs.String("format", string(record.FormatRecord), "output format (record or perf_script)")
	fs.Parse(args)

	res, _, err := record.ParseFile(*input)
	if err != nil {
		return err
	}
	byTarget, err := aggregate.Result(context.Background(), res)
	if err != nil {
		return err
	}
	folded := record.NewResult()
	folded.StartTimeNs = res.StartTimeNs
	folded.EndTimeNs = res.EndTimeNs
	for _, targetID := range res.TargetIDs() {
		folded.Add(byTarget[targetID])
	}
	folded.NrSnapshots = 1

	if *output == "" {
		return report.Dump(os.Stdout, folded)
	}
	return record.WriteFile(folded, *output, record.Format(*format), config.DefaultRecordPerm)
}

func cmdConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	input := fs.String("input", config.DefaultRecordPath, "result file")
	output := fs.String("output", "", "output file (required)")
	format := fs.String("format", string(record.FormatRecord), "output format (record or perf_script)")
	fs.Parse(args)

	if *output == "" {
		return fmt.Errorf("-output is required")
	}
	if !record.ValidFormat(record.Format(*format)) {
		return fmt.Errorf("unknown format %q", *format)
	}
	res, from, err := record.ParseFile(*input)
	if err != nil {
		return err
	}
	if err := record.WriteFile(res, *output, record.Format(*format), config.DefaultRecordPerm); err != nil {
		return err
	}
	fmt.Printf("%s (%s) -> %s (%s), %d snapshot(s)\n",
		*input, from, *output, *format, res.NrSnapshots)
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	input := fs.String("input", config.DefaultRecordPath, "result file")
	output := fs.String("output", "damon.parquet", "output parquet file")
	compression := fs.String("compression", config.DefaultExportCompression,
		"parquet compression (zstd, snappy, lz4, gzip, none)")
	fs.Parse(args)

	res, _, err := record.ParseFile(*input)
	if err != nil {
		return err
	}
	opts := export.Options{Compression: export.ParseCompressionType(*compression)}
	if err := export.WriteFile(res, *output, opts); err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", *input, *output)
	return nil
}
