package codegen

import (
	"fmt"
	"os"
	"path/filepath"
)

// ---------------------------------------------------------------------------
// Toolchain: where the generated assembly goes
//
// Assembling and linking are left to an external toolchain; this only
// places the .s file for it.
// ---------------------------------------------------------------------------

// Toolchain describes the output files for one target.
type Toolchain struct {
	Target  *Target
	OutDir  string // per-architecture output directory
	AsmFile string // path to the assembly file
}

// NewToolchain creates a Toolchain writing baseName.s under
// outDir/<arch>.
func NewToolchain(target *Target, outDir, baseName string) *Toolchain {
	dir := filepath.Join(outDir, target.Arch.String())
	return &Toolchain{
		Target:  target,
		OutDir:  dir,
		AsmFile: filepath.Join(dir, baseName+target.FileExtAsm()),
	}
}

// WriteAssembly writes the assembly string to the .s file, creating the
// output directory when needed.
func (tc *Toolchain) WriteAssembly(asm string) error {
	if err := os.MkdirAll(tc.OutDir, 0755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", tc.OutDir, err)
	}
	if err := os.WriteFile(tc.AsmFile, []byte(asm), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", tc.AsmFile, err)
	}
	return nil
}
