package codegen

import (
	"fmt"
	"io"
	"log/slog"

	"wacc/internal/ast"
)

// ---------------------------------------------------------------------------
// Options controls the behaviour of the code-generation pipeline.
// ---------------------------------------------------------------------------

// Options configures the codegen pipeline.
type Options struct {
	// Target architecture. Defaults to ARM.
	Target *Target

	// Optimize runs the peephole pass over the generated instructions.
	Optimize bool

	// Logger receives stage transitions at debug level. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the defaults: ARM, no peephole pass.
func DefaultOptions() *Options {
	return &Options{Target: NewTarget(ArchARM)}
}

// ---------------------------------------------------------------------------
// Result is returned by Generate.
// ---------------------------------------------------------------------------

type Result struct {
	Target   *Target
	Instrs   []Instr // final instruction stream
	Assembly string  // Instrs rendered for Target
	Removed  int     // instructions dropped by the peephole pass
}

// ---------------------------------------------------------------------------
// Generate: the public entry point for the codegen pipeline
//
// Pipeline: bound AST → instructions → (peephole) → assembly text
// ---------------------------------------------------------------------------

// Generate compiles a bound program for one target. It either returns the
// complete assembly or an error; a malformed tree is reported as an error
// rather than producing partial output.
func Generate(program *ast.Program, opts *Options) (res *Result, err error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	target := opts.Target
	if target == nil {
		target = NewTarget(ArchARM)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if program == nil || program.Scopes == nil {
		return nil, fmt.Errorf("codegen: program has not been bound")
	}

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(contractError)
			if !ok {
				panic(r)
			}
			res, err = nil, ce
		}
	}()

	log.Debug("generating", "target", target.Arch)
	g := NewGenerator(program, target, log)
	instrs := g.Program(program)

	removed := 0
	if opts.Optimize {
		instrs, removed = Peephole(target, instrs)
		log.Debug("peephole", "target", target.Arch, "instructions", len(instrs), "removed", removed)
	}

	return &Result{
		Target:   target,
		Instrs:   instrs,
		Assembly: Print(target, instrs),
		Removed:  removed,
	}, nil
}
