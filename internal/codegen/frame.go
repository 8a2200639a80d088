package codegen

import (
	"math/bits"

	"wacc/internal/ast"
)

// ---------------------------------------------------------------------------
// Stack frame layout
//
// Every scope owns a frame of declared locals below the stack pointer.
// Locals are placed from the top of the frame downwards in declaration
// order; parameters live in the caller's frame above the return slot.
//
//	sp+0 .. sp+CurrOffset    not yet declared
//	sp+CurrOffset .. sum     declared locals, newest lowest
//	sum .. DeclaredSize      alignment padding
//	parent frame / return slot + parameters
// ---------------------------------------------------------------------------

// Frame is the computed layout of one scope.
type Frame struct {
	DeclaredSize int // locals, padded to the target's stack alignment
	ParamSize    int
	TotalSize    int // DeclaredSize + ParamSize
	CurrOffset   int // offset of the most recently declared local
}

// Layout computes and caches frames for the scopes of one program.
type Layout struct {
	t      *Target
	scopes *ast.Scopes
	frames map[ast.ScopeID]*Frame
}

// NewLayout returns an empty layout over scopes.
func NewLayout(t *Target, scopes *ast.Scopes) *Layout {
	return &Layout{t: t, scopes: scopes, frames: make(map[ast.ScopeID]*Frame)}
}

// LayoutScope computes the frame of id on first use and returns the number
// of bytes to reserve on the stack when entering it. Later calls return the
// cached frame unchanged.
func (l *Layout) LayoutScope(id ast.ScopeID) int {
	if f, ok := l.frames[id]; ok {
		return f.DeclaredSize
	}
	f := &Frame{}
	declared := 0
	for _, b := range l.scopes.Get(id).Bindings {
		size := b.Type.Size(l.t.PtrSize)
		if b.Param {
			f.ParamSize += size
		} else {
			declared += size
		}
	}
	f.DeclaredSize = l.t.Align(declared)
	f.TotalSize = f.DeclaredSize + f.ParamSize
	f.CurrOffset = declared
	l.frames[id] = f
	return f.DeclaredSize
}

// Frame returns the frame of a scope that has been laid out.
func (l *Layout) Frame(id ast.ScopeID) *Frame {
	f, ok := l.frames[id]
	if !ok {
		panic(contractError{msg: "scope used before it was laid out"})
	}
	return f
}

// Claim reserves the slot of the next local of id and returns its offset.
func (l *Layout) Claim(id ast.ScopeID, size int) int {
	f := l.Frame(id)
	f.CurrOffset -= size
	return f.CurrOffset
}

// ResolveOffset returns the offset of name from the stack pointer as seen
// from scope id. Locals of a scope that have not been declared yet are
// skipped, so a shadowing declaration only takes effect once claimed.
func (l *Layout) ResolveOffset(id ast.ScopeID, name string) int {
	return l.resolve(id, name, 0)
}

func (l *Layout) resolve(id ast.ScopeID, name string, acc int) int {
	if id == ast.NoScope {
		return acc
	}
	f := l.Frame(id)
	sc := l.scopes.Get(id)
	total := acc + f.TotalSize

	declOff, paramOff := 0, 0
	for i := len(sc.Bindings) - 1; i >= 0; i-- {
		b := sc.Bindings[i]
		size := b.Type.Size(l.t.PtrSize)
		if b.Param {
			paramOff += size
			if b.Name == name {
				return total - paramOff + l.t.ReturnSlot
			}
			continue
		}
		if b.Name == name && f.CurrOffset <= declOff {
			return acc + declOff
		}
		declOff += size
	}
	return l.resolve(sc.Parent, name, total)
}

// FrameBytes sums the reserved bytes of every scope from id up to and
// including root.
func (l *Layout) FrameBytes(id, root ast.ScopeID) int {
	n := 0
	for id != ast.NoScope {
		n += l.Frame(id).DeclaredSize
		if id == root {
			break
		}
		id = l.scopes.Get(id).Parent
	}
	return n
}

// adjustSP moves the stack pointer by n bytes, splitting the adjustment
// into chunks no larger than MaxStackOffset. ARM chunks are further split
// so each one is an encodable immediate.
func adjustSP(t *Target, op ArithOp, n int) []Instr {
	var out []Instr
	for n > 0 {
		chunk := min(n, MaxStackOffset)
		if t.IsARM() && !armEncodable(chunk) {
			// Lowest eight significant bits, starting at an even position.
			shift := bits.TrailingZeros32(uint32(chunk)) &^ 1
			chunk &= 0xFF << shift
		}
		out = append(out, Arith{Op: op, Dst: SP, Src: SP, Operand: Imm{Value: chunk}})
		n -= chunk
	}
	return out
}

// armEncodable reports whether v fits an ARM data-processing immediate:
// an 8-bit value rotated right by an even amount.
func armEncodable(v int) bool {
	for rot := 0; rot < 32; rot += 2 {
		if bits.RotateLeft32(uint32(v), rot) <= 0xFF {
			return true
		}
	}
	return false
}
