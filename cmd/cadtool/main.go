// cadtool is a CLI utility for inspecting CAD and mesh files without a window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/app"
	"github.com/Faultbox/cadview/internal/config"
	"github.com/Faultbox/cadview/internal/ingest"
	"github.com/Faultbox/cadview/internal/kernel"
	"github.com/Faultbox/cadview/internal/logger"
	"github.com/Faultbox/cadview/internal/viewer"
	"github.com/Faultbox/cadview/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "detect":
		cmdDetect(args)
	case "inspect", "i":
		cmdInspect(args)
	case "probe":
		cmdProbe(args)
	case "dwg2dxf":
		cmdDWG(args)
	case "init-config":
		cmdInitConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`cadtool - CAD file ingestion utility

Usage:
  cadtool <command> [options]

Commands:
  detect <file>...                   Show the detected format of each file
  inspect [-kernel k.wasm] <file>    Ingest a file and print scene statistics
  probe <kernel.wasm>                Load a geometry kernel and list its capabilities
  dwg2dxf <in.dwg> [out.dxf]         Convert a DWG drawing with the configured converter
  init-config [path]                 Write the default configuration

Examples:
  cadtool detect bracket.step plan.dwg
  cadtool inspect -kernel occt.wasm -v bracket.stp
  cadtool dwg2dxf -endpoint http://localhost:8080/convert plan.dwg`)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatalf("Config error: %v", err)
	}
	return cfg
}

func initLogger(verbose bool) *zap.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.Init(level, "")
	if err != nil {
		fatalf("Logger error: %v", err)
	}
	return log
}

func cmdDetect(args []string) {
	if len(args) < 1 {
		fatalf("Usage: cadtool detect <file>...")
	}
	failed := false
	for _, name := range args {
		det, err := formats.Detect(name)
		if err != nil {
			fmt.Printf("%-40s %v\n", name, err)
			failed = true
			continue
		}
		fmt.Printf("%-40s %-6s (%s)\n", name, det.Kind, det.Ext)
	}
	if failed {
		os.Exit(1)
	}
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	kernelPath := fs.String("kernel", "", "Geometry kernel WASM module")
	endpoint := fs.String("endpoint", "", "DWG conversion service URL")
	verbose := fs.Bool("v", false, "Print progress and debug logs")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatalf("Usage: cadtool inspect [-kernel k.wasm] <file>")
	}

	cfg := loadConfig()
	if *kernelPath != "" {
		cfg.Kernel.WASMPath = *kernelPath
	}
	if *endpoint != "" {
		cfg.DWG.Endpoint = *endpoint
	}
	log := initLogger(*verbose)
	defer logger.Sync()

	stack := app.Build(cfg, log)
	defer stack.Close(context.Background())

	done := make(chan ingest.Outcome, 1)
	orch := viewer.New(stack.Pipelines, stack.Options, viewer.ListenerFuncs{
		OnProgress: func(ev ingest.Event) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", ev.Percent, ev.Stage)
			}
		},
		OnOutcome: func(out ingest.Outcome) { done <- out },
	}, log.Named("viewer"))
	defer orch.Close(context.Background())

	f, err := viewer.OpenFile(fs.Arg(0))
	if err != nil {
		fatalf("Error: %v", err)
	}
	start := time.Now()
	if _, err := orch.Load(context.Background(), f); err != nil {
		fatalf("%s", ingest.UserMessage(err))
	}
	out := <-done
	if out.Status != ingest.StatusSuccess {
		fatalf("%s", ingest.UserMessage(out.Err))
	}
	printResult(f.Name(), out.Result, time.Since(start))
}

func printResult(name string, res *ingest.Result, elapsed time.Duration) {
	g := res.Graph
	st := g.Stats()
	b := g.Bounds()

	fmt.Printf("File:      %s\n", name)
	fmt.Printf("Format:    %s\n", g.Format)
	fmt.Printf("Path:      %s\n", res.Path)
	fmt.Printf("Time:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Meshes:    %d (%d vertices, %d triangles)\n", st.Meshes, st.Vertices, st.Triangles)
	fmt.Printf("Lines:     %d (%d segments)\n", st.Lines, st.Segments)
	if !b.IsEmpty() {
		size := b.Size()
		fmt.Printf("Bounds:    %.3f x %.3f x %.3f\n", size.X, size.Y, size.Z)
	}

	if r := res.DXF; r != nil {
		fmt.Println()
		if r.Version != "" {
			fmt.Printf("Version:   %s %s\n", r.Version, r.Codepage)
		}
		fmt.Printf("Entities:  %d\n", r.Entities)
		printCounts("Built", r.Built)
		printCounts("Skipped", r.Skipped)
		for _, f := range r.Failures {
			fmt.Printf("  failed #%d %s: %v\n", f.Index, f.Type, f.Err)
		}
	}
	for _, w := range res.Warnings {
		fmt.Printf("Warning:   %v\n", w)
	}
}

func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Printf("%s:\n", label)
	for _, k := range kinds {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}

func cmdProbe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	timeout := fs.Duration("timeout", 15*time.Second, "Load timeout")
	verbose := fs.Bool("v", false, "Print debug logs")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatalf("Usage: cadtool probe <kernel.wasm>")
	}
	log := initLogger(*verbose)
	defer logger.Sync()

	b := kernel.NewBinding(kernel.WASMLoader{Path: fs.Arg(0), Log: log}, kernel.Config{LoadTimeout: *timeout}, log)
	defer b.Close(context.Background())

	caps, err := b.Initialize(context.Background())
	if err != nil {
		fatalf("Error: %v", err)
	}
	if caps.None() {
		fmt.Println("No usable entry points (degraded mode)")
		os.Exit(1)
	}
	fmt.Printf("Capabilities: %s\n", caps)
}

func cmdDWG(args []string) {
	fs := flag.NewFlagSet("dwg2dxf", flag.ExitOnError)
	endpoint := fs.String("endpoint", "", "DWG conversion service URL")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatalf("Usage: cadtool dwg2dxf <in.dwg> [out.dxf]")
	}
	in := fs.Arg(0)
	out := strings.TrimSuffix(in, filepath.Ext(in)) + ".dxf"
	if fs.NArg() > 1 {
		out = fs.Arg(1)
	}

	cfg := loadConfig()
	if *endpoint != "" {
		cfg.DWG.Endpoint = *endpoint
	}
	log := initLogger(false)
	defer logger.Sync()

	data, err := os.ReadFile(in)
	if err != nil {
		fatalf("Error: %v", err)
	}
	dxf, err := app.Converter(cfg.DWG, log).Convert(context.Background(), filepath.Base(in), data)
	if err != nil {
		var hint string
		if errors.Is(err, ingest.ErrConversionUnavailable) {
			hint = " (install dwg2dxf or ODAFileConverter, or set dwg.endpoint)"
		}
		fatalf("Error: %v%s", err, hint)
	}
	if err := os.WriteFile(out, dxf, 0644); err != nil {
		fatalf("Error writing file: %v", err)
	}
	fmt.Printf("Converted: %s (%d bytes)\n", out, len(dxf))
}

func cmdInitConfig(args []string) {
	cfg := config.Default()
	var err error
	path := filepath.Join(config.ConfigDir(), "config.yaml")
	if len(args) > 0 {
		path = args[0]
		err = cfg.SaveTo(path)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Wrote %s\n", path)
}
