package codegen

// ---------------------------------------------------------------------------
// Runtime support registry
//
// Shared blocks (error trampolines and library stubs) are generated on first
// demand and emitted once, after all function bodies: error blocks first,
// then library blocks, each group in first-demand order.
// ---------------------------------------------------------------------------

// Support names one shared runtime block.
type Support int

const (
	ErrOverflow Support = iota
	ErrNullReference
	ErrDivideByZero
	ErrArrayBounds
	ErrRuntime

	LibReadInt
	LibReadChar
	LibPrintInt
	LibPrintBool
	LibPrintString
	LibPrintReference
	LibPrintLn
	LibFreeArray
	LibFreePair
)

var supportLabels = [...]string{
	ErrOverflow:       "p_throw_overflow_error",
	ErrNullReference:  "p_check_null_pointer",
	ErrDivideByZero:   "p_check_divide_by_zero",
	ErrArrayBounds:    "p_check_array_bounds",
	ErrRuntime:        "p_throw_runtime_error",
	LibReadInt:        "p_read_int",
	LibReadChar:       "p_read_char",
	LibPrintInt:       "p_print_int",
	LibPrintBool:      "p_print_bool",
	LibPrintString:    "p_print_string",
	LibPrintReference: "p_print_reference",
	LibPrintLn:        "p_print_ln",
	LibFreeArray:      "p_free_array",
	LibFreePair:       "p_free_pair",
}

// Label is the entry label of the block.
func (k Support) Label() string { return supportLabels[k] }

func (k Support) isError() bool { return k <= ErrRuntime }

// Diagnostics printed by the error trampolines. The trailing NUL is part of
// the record and of its length.
const (
	msgOverflow      = "OverflowError: the result is too small/large to store in a 4-byte signed-integer.\n\x00"
	msgNullReference = "NullReferenceError: dereference a null reference\n\x00"
	msgDivideByZero  = "DivideByZeroError: divide or modulo by zero\n\x00"
	msgNegativeIndex = "ArrayIndexOutOfBoundsError: negative index\n\x00"
	msgIndexTooLarge = "ArrayIndexOutOfBoundsError: index too large\n\x00"
	runtimeErrorCode = -1
)

type registry struct {
	blocks map[Support][]Instr
	order  []Support
}

func (r *registry) flush() []Instr {
	var out []Instr
	for _, k := range r.order {
		out = append(out, r.blocks[k]...)
	}
	return out
}

// Runtime is the registry for one compilation. Messages and format strings
// go into the shared data segment.
type Runtime struct {
	t       *Target
	data    *DataSegment
	errors  registry
	library registry
}

// NewRuntime returns an empty registry writing its strings to data.
func NewRuntime(t *Target, data *DataSegment) *Runtime {
	return &Runtime{
		t:       t,
		data:    data,
		errors:  registry{blocks: make(map[Support][]Instr)},
		library: registry{blocks: make(map[Support][]Instr)},
	}
}

// Demand makes sure the block for k will be emitted and returns its label.
// Repeated demands are no-ops.
func (rt *Runtime) Demand(k Support) string {
	reg := &rt.library
	if k.isError() {
		reg = &rt.errors
	}
	if _, ok := reg.blocks[k]; !ok {
		reg.blocks[k] = nil
		reg.order = append(reg.order, k)
		reg.blocks[k] = rt.build(k)
	}
	return k.Label()
}

// Demanded reports whether k has been demanded.
func (rt *Runtime) Demanded(k Support) bool {
	if k.isError() {
		_, ok := rt.errors.blocks[k]
		return ok
	}
	_, ok := rt.library.blocks[k]
	return ok
}

// Flush returns every demanded block.
func (rt *Runtime) Flush() []Instr {
	return append(rt.errors.flush(), rt.library.flush()...)
}

func (rt *Runtime) build(k Support) []Instr {
	switch k {
	case ErrOverflow:
		return rt.overflowError()
	case ErrNullReference:
		return rt.zeroCheck(k, R0, msgNullReference)
	case ErrDivideByZero:
		return rt.zeroCheck(k, R1, msgDivideByZero)
	case ErrArrayBounds:
		return rt.boundsCheck()
	case ErrRuntime:
		return rt.runtimeError()
	case LibReadInt:
		return rt.read(k, "%d\x00")
	case LibReadChar:
		return rt.read(k, " %c\x00")
	case LibPrintInt:
		return rt.printValue(k, "%d\x00")
	case LibPrintReference:
		return rt.printValue(k, "%p\x00")
	case LibPrintBool:
		return rt.printBool()
	case LibPrintString:
		return rt.printString()
	case LibPrintLn:
		return rt.printLn()
	case LibFreeArray:
		return rt.freeArray()
	case LibFreePair:
		return rt.freePair()
	}
	panic(contractError{msg: "unknown runtime block"})
}

// ---- shared shapes ----

// enter opens a block that returns: label plus the prologue.
func (rt *Runtime) enter(k Support) []Instr {
	out := []Instr{Label{Name: k.Label()}, Push{Reg: LR}}
	if rt.t.IsX86() {
		out = append(out, Move{Reg: LR, Value: RegOperand{Reg: SP}})
	}
	return out
}

// throwIf branches to the generic trampoline with the message in r0 when
// cond holds. ARM loads the message conditionally; x86-64 selects it with a
// conditional move through the accumulator.
func (rt *Runtime) throwIf(cond Cond, msg string, link bool) []Instr {
	label := rt.data.Intern(msg)
	throw := rt.Demand(ErrRuntime)
	if rt.t.IsX86() {
		return []Instr{
			Move{Reg: AccumReg, Value: DataLabel{Name: label}},
			CMove{Cond: cond, Src: AccumReg, Dst: R0},
			Branch{Cond: cond, Label: throw},
		}
	}
	return []Instr{
		Load{Cond: cond, Mode: DataLabel{Name: label}, Reg: R0},
		Branch{Cond: cond, Label: throw, Link: link},
	}
}

// ---- error blocks ----

func (rt *Runtime) overflowError() []Instr {
	label := rt.data.Intern(msgOverflow)
	return []Instr{
		Label{Name: ErrOverflow.Label()},
		Load{Mode: DataLabel{Name: label}, Reg: R0},
		Branch{Label: rt.Demand(ErrRuntime), Link: true},
	}
}

func (rt *Runtime) runtimeError() []Instr {
	out := []Instr{Label{Name: ErrRuntime.Label()}}
	if rt.t.IsX86() {
		out = append(out, Logic{Op: AND, Dst: SP, Src: SP, Operand: Imm{Value: -16}})
	}
	return append(out,
		Branch{Label: rt.Demand(LibPrintString), Link: true},
		Move{Reg: rt.t.ArgReg(), Value: Imm{Value: runtimeErrorCode}},
		Branch{Label: "exit", Link: true},
	)
}

// zeroCheck throws msg when reg is zero.
func (rt *Runtime) zeroCheck(k Support, reg Register, msg string) []Instr {
	out := rt.enter(k)
	out = append(out, Compare{Reg: reg, Operand: Imm{Value: 0}})
	out = append(out, rt.throwIf(EQ, msg, true)...)
	return append(out, End{})
}

// boundsCheck expects the index in r0 and the array in r1.
func (rt *Runtime) boundsCheck() []Instr {
	out := rt.enter(ErrArrayBounds)
	out = append(out, Compare{Reg: R0, Operand: Imm{Value: 0}})
	out = append(out, rt.throwIf(LT, msgNegativeIndex, true)...)
	length := R1
	if rt.t.IsX86() {
		length = AccumReg
	}
	out = append(out,
		Load{Mode: RegMode{Reg: R1}, Reg: length, Mem: lengthMem(rt.t)},
		Compare{Reg: R0, Operand: RegOperand{Reg: length}},
	)
	out = append(out, rt.throwIf(CS, msgIndexTooLarge, true)...)
	return append(out, End{})
}

// lengthMem is the width of the length word heading arrays and strings.
func lengthMem(t *Target) Memory {
	if t.IsX86() {
		return MemL
	}
	return MemWord
}
