package codegen

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Architecture enum
// ---------------------------------------------------------------------------

// Arch represents a target CPU architecture.
type Arch int

const (
	ArchARM    Arch = iota // 32-bit ARM (load/store, AAPCS)
	ArchX86_64             // x86-64, AT&T syntax, System V
)

func (a Arch) String() string {
	switch a {
	case ArchARM:
		return "arm"
	case ArchX86_64:
		return "x86_64"
	default:
		return "unknown"
	}
}

// Arches lists every supported architecture in a stable order.
var Arches = []Arch{ArchARM, ArchX86_64}

// ParseArch maps a user-facing name onto an Arch. Go-style aliases are
// accepted alongside the canonical names.
func ParseArch(name string) (Arch, error) {
	switch strings.ToLower(name) {
	case "arm", "arm32", "armv6", "armv7":
		return ArchARM, nil
	case "x86_64", "x86-64", "amd64":
		return ArchX86_64, nil
	default:
		return 0, fmt.Errorf("unsupported architecture: %s", name)
	}
}

// ---------------------------------------------------------------------------
// Target: a fully-resolved compilation target
// ---------------------------------------------------------------------------

// Target holds everything rendering and layout need to know about the
// selected architecture. It is built once per compilation and never
// changes afterwards.
type Target struct {
	Arch Arch

	// PtrSize is the size of a pointer in bytes (4 or 8). Strings, arrays,
	// pairs and pointers all occupy one pointer.
	PtrSize int

	// ReturnSlot is the distance between a callee's frame and its first
	// argument: the pushed link register on ARM, return address plus saved
	// base pointer on x86-64.
	ReturnSlot int

	// StackAlign is the alignment declared locals are padded to, or 0 when
	// the target needs none.
	StackAlign int

	// Free is the pool of registers handed out for expression evaluation,
	// in acquisition order. The overflow pair (R11, R12) is never part of
	// it.
	Free []Register

	// CallerSaved lists the pool registers a C library call may clobber.
	CallerSaved []Register
}

// MaxStackOffset is the largest immediate used in one stack pointer
// adjustment; larger adjustments are split.
const MaxStackOffset = 1024

// ResolveTarget builds a Target from an architecture name.
func ResolveTarget(archName string) (*Target, error) {
	arch, err := ParseArch(archName)
	if err != nil {
		return nil, err
	}
	return NewTarget(arch), nil
}

// NewTarget returns the Target for arch.
func NewTarget(arch Arch) *Target {
	t := &Target{Arch: arch}
	switch arch {
	case ArchX86_64:
		t.fillX86_64()
	default:
		t.fillARM()
	}
	return t
}

// ---------------------------------------------------------------------------
// Architecture-specific initialization
// ---------------------------------------------------------------------------

func (t *Target) fillARM() {
	t.PtrSize = 4
	t.ReturnSlot = 4
	t.StackAlign = 0
	t.Free = []Register{R4, R5, R6, R7, R8, R9, R10}
	// r4-r10 are callee-saved under AAPCS.
	t.CallerSaved = nil
}

func (t *Target) fillX86_64() {
	t.PtrSize = 8
	t.ReturnSlot = 16
	t.StackAlign = 16
	// rcx, r8, r9, r12
	t.Free = []Register{R7, R8, R9, R10}
	t.CallerSaved = []Register{R7, R8, R9}
}

// ---------------------------------------------------------------------------
// Helper queries
// ---------------------------------------------------------------------------

// IsARM reports whether the target is the 32-bit ARM backend.
func (t *Target) IsARM() bool {
	return t.Arch == ArchARM
}

// IsX86 reports whether the target is the x86-64 backend.
func (t *Target) IsX86() bool {
	return t.Arch == ArchX86_64
}

// Align rounds n up to the target's stack alignment.
func (t *Target) Align(n int) int {
	if t.StackAlign == 0 || n%t.StackAlign == 0 {
		return n
	}
	return (n/t.StackAlign + 1) * t.StackAlign
}

// ArgReg is the register that carries the first argument of a C library
// call: r0 on ARM, %rdi on x86-64.
func (t *Target) ArgReg() Register {
	if t.IsX86() {
		return R1
	}
	return R0
}

// FileExtAsm returns the assembly file extension.
func (t *Target) FileExtAsm() string {
	return ".s"
}
