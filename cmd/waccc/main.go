package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"wacc/internal/ast"
	"wacc/internal/codegen"
	"wacc/internal/config"
	"wacc/internal/semantic"
)

const VERSION = "0.2.0"

func main() {
	start := time.Now()
	exitCode := run(os.Args[1:])
	if exitCode == 0 {
		fmt.Fprintf(os.Stderr, "Compile time: %s\n", time.Since(start))
	}
	os.Exit(exitCode)
}

// job is one input compiled for one target.
type job struct {
	input   string
	program *ast.Program
	target  *codegen.Target
}

func run(args []string) int {
	fs := flag.NewFlagSet("waccc", flag.ContinueOnError)
	targetFlag := fs.String("target", "", "target architecture: arm, x86_64 or all")
	optimize := fs.Bool("O", false, "run the peephole pass")
	debug := fs.Bool("debug", false, "log pipeline stages")
	outDir := fs.String("o", "", "output directory")
	configPath := fs.String("config", "", "config file (default "+config.DefaultFile+")")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: waccc [flags] <program.yaml>...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = *targetFlag
		case "O":
			cfg.Optimize = *optimize
		case "debug":
			cfg.Debug = *debug
		case "o":
			cfg.OutDir = *outDir
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	targets, _ := cfg.Targets()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	log.Debug("waccc", "version", VERSION, "target", cfg.Target, "optimize", cfg.Optimize, "jobs", cfg.Jobs)

	// Front end: every input must bind before any assembly is written.
	var jobs []job
	failed := false
	for _, input := range fs.Args() {
		prog, ok := load(log, input)
		if !ok {
			failed = true
			continue
		}
		for _, t := range targets {
			jobs = append(jobs, job{input: input, program: prog, target: t})
		}
	}
	if failed {
		return 1
	}

	if err := build(context.Background(), log, cfg, jobs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

// load decodes and binds one input, printing its diagnostics.
func load(log *slog.Logger, input string) (*ast.Program, bool) {
	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not read %s: %s\n", input, err)
		return nil, false
	}
	prog, err := ast.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", input, err)
		return nil, false
	}

	diags := semantic.Bind(prog)
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", input, d.Error())
	}
	if semantic.HasErrors(diags) {
		return nil, false
	}
	log.Debug("bound", "input", input, "functions", len(prog.Functions), "scopes", prog.Scopes.Len())
	log.Debug("ast", "input", input, "dump", ast.DebugString(prog))
	return prog, true
}

// build generates every job concurrently. Each job gets its own generator
// state; the bound programs are only read.
func build(ctx context.Context, log *slog.Logger, cfg config.Config, jobs []job) error {
	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stderr.Fd())) && !cfg.Debug {
		bar = progressbar.Default(int64(len(jobs)), "compiling")
		defer bar.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := compile(log, cfg, j); err != nil {
				return err
			}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	return g.Wait()
}

func compile(log *slog.Logger, cfg config.Config, j job) error {
	res, err := codegen.Generate(j.program, &codegen.Options{
		Target:   j.target,
		Optimize: cfg.Optimize,
		Logger:   log.With("input", j.input),
	})
	if err != nil {
		return fmt.Errorf("%s (%s): %w", j.input, j.target.Arch, err)
	}

	base := strings.TrimSuffix(filepath.Base(j.input), filepath.Ext(j.input))
	tc := codegen.NewToolchain(j.target, cfg.OutDir, base)
	if err := tc.WriteAssembly(res.Assembly); err != nil {
		return err
	}
	log.Debug("assembly written", "target", j.target.Arch, "path", tc.AsmFile,
		"instructions", len(res.Instrs), "removed", res.Removed)
	return nil
}
