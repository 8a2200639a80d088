package codegen

// ---------------------------------------------------------------------------
// Register allocator
//
// A LIFO pool scoped to one function body. When the pool runs dry the
// generator falls back on a fixed pair of overflow registers: the primary
// (OverflowReg) receives the value, and a binary operator whose left operand
// landed there spills it to the native stack and later pops it into the
// accumulator (AccumReg). Only that two-register scheme is supported.
// ---------------------------------------------------------------------------

const (
	OverflowReg = R11
	AccumReg    = R12
)

// RegAlloc tracks which pool registers hold live values.
type RegAlloc struct {
	pool     []Register
	free     []Register // top of stack is the last element
	inUse    []Register
	overflow bool
}

// NewRegAlloc returns an allocator over pool, handing registers out in the
// order given.
func NewRegAlloc(pool []Register) *RegAlloc {
	a := &RegAlloc{pool: append([]Register(nil), pool...)}
	a.reset()
	return a
}

func (a *RegAlloc) reset() {
	a.free = a.free[:0]
	for i := len(a.pool) - 1; i >= 0; i-- {
		a.free = append(a.free, a.pool[i])
	}
	a.inUse = a.inUse[:0]
	a.overflow = false
}

// Acquire moves a register from free to in-use and returns it. With the
// pool exhausted it raises the overflow flag and returns NoReg.
func (a *RegAlloc) Acquire() Register {
	if len(a.free) == 0 {
		a.overflow = true
		return NoReg
	}
	r := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.inUse = append(a.inUse, r)
	return r
}

// MostRecent returns the newest in-use register, or OverflowReg when the
// last Acquire overflowed. Reading the overflow clears it.
func (a *RegAlloc) MostRecent() Register {
	if a.overflow {
		a.overflow = false
		return OverflowReg
	}
	if len(a.inUse) == 0 {
		return NoReg
	}
	return a.inUse[len(a.inUse)-1]
}

// Release returns the newest in-use register to the pool.
func (a *RegAlloc) Release() {
	if len(a.inUse) == 0 {
		return
	}
	r := a.inUse[len(a.inUse)-1]
	a.inUse = a.inUse[:len(a.inUse)-1]
	a.free = append(a.free, r)
}

// ReleaseAll empties the in-use stack.
func (a *RegAlloc) ReleaseAll() {
	for len(a.inUse) > 0 {
		a.Release()
	}
	a.overflow = false
}

// Owns reports whether r belongs to the pool (and not the overflow pair).
func (a *RegAlloc) Owns(r Register) bool {
	for _, p := range a.pool {
		if p == r {
			return true
		}
	}
	return false
}

// Free returns the number of registers left in the pool.
func (a *RegAlloc) Free() int { return len(a.free) }

// Size returns the full pool size.
func (a *RegAlloc) Size() int { return len(a.pool) }

// InUse returns the live registers, oldest first.
func (a *RegAlloc) InUse() []Register {
	return append([]Register(nil), a.inUse...)
}
