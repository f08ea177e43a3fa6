package compiler

import (
	"github.com/dolthub/swiss"
)

// FuncType tags what kind of function a compState is compiling, since
// methods and initializers get slightly different code at a few points
// (the implicit receiver in slot 0, bare `return` inside `init`, top-level
// `return` being an error).
type FuncType int

//nolint:revive
const (
	FuncScript FuncType = iota
	FuncFunction
	FuncMethod
	FuncInitializer
)

const (
	maxLocals    = 1 << 16
	maxUpvalues  = 1 << 8
	maxParams    = 255
	maxArguments = 255
	maxGlobals   = 1 << 15
)

// local is one entry of a compState's local-variable stack. depth is -1
// between declaration and definition, a window during which the variable
// is visible to the resolver but not yet readable (catches `var a = a;`).
type local struct {
	name       string
	depth      int
	isConst    bool
	isCaptured bool
}

// compState is the compiler's per-function lexical context. Compiling a
// nested function pushes a new compState whose enclosing field chains back
// to the function that contains it; resolveUpvalue walks this chain.
type compState struct {
	enclosing *compState
	funcType  FuncType
	fn        *FunctionProto

	locals     []local
	scopeDepth int

	constCache map[string]uint32 // identifierConstant dedup, scoped to this chunk

	loopStart      int // code offset to loop back to; -1 when not inside a loop
	loopScopeDepth int

	// loopVarSlot/loopShadowSlot track the innermost for-loop's per-iteration
	// shadow binding (see forStatement), so continueStatement can sync the
	// shadow's current value back to the real loop-variable slot before
	// jumping past the normal end-of-body sync code. Both are -1 outside a
	// for-loop with a `var` initializer.
	loopVarSlot    int
	loopShadowSlot int

	loopBreaks   []int // pending JUMP patch sites for `break` in the innermost loop
	switchBreaks []int // pending JUMP patch sites for `break` in the innermost switch

	// breakTargets tracks, in lexical nesting order, whether each enclosing
	// breakable construct is a loop (true) or a switch (false); its top
	// tells breakStatement which of loopBreaks/switchBreaks a `break` here
	// actually belongs to. Needed because a switch nested inside a loop (or
	// vice versa) must resolve `break` to whichever is innermost, not
	// whichever kind happens to be non-empty.
	breakTargets []bool
}

func newCompState(enclosing *compState, funcType FuncType, name string) *compState {
	cs := &compState{
		enclosing:  enclosing,
		funcType:   funcType,
		fn:         &FunctionProto{Name: name, Chunk: &Chunk{}},
		constCache:     make(map[string]uint32),
		loopStart:      -1,
		loopVarSlot:    -1,
		loopShadowSlot: -1,
	}
	// Slot 0 is reserved: the receiver for methods, the callee itself
	// otherwise. Giving it an empty name makes it unreachable by user code.
	recv := ""
	if funcType == FuncMethod || funcType == FuncInitializer {
		recv = "this"
	}
	cs.locals = append(cs.locals, local{name: recv, depth: 0})
	return cs
}

func (cs *compState) chunk() *Chunk { return cs.fn.Chunk }

// classState tracks the class currently being compiled, for validating
// `this`/`super` and enabling INHERIT/GET_SUPER codegen. It chains to
// enclosing classes so nested class declarations resolve correctly too.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Globals assigns a stable slot index to every distinct global variable
// name referenced anywhere in the program, shared across every function's
// chunk (unlike per-chunk constants, a global declared in one chunk must
// be visible by the same slot number to every other chunk that reads it).
// The name->index side table is a swiss.Map rather than a built-in map,
// the same open-addressed SIMD table the rest of this codebase's family
// reaches for whenever a lookup table isn't itself the thing under test
// (compare lang/table, which stays hand-rolled because §4.5 is load-bearing).
type Globals struct {
	index  *swiss.Map[string, uint16]
	Names  []string
	consts map[string]bool
}

func newGlobals() *Globals {
	return &Globals{index: swiss.NewMap[string, uint16](8), consts: make(map[string]bool)}
}

// NewGlobals builds an empty Globals table, for a caller (such as a REPL
// driver) that wants to carry it across several CompileIncremental calls
// instead of letting Compile create a fresh one per call.
func NewGlobals() *Globals { return newGlobals() }

// slot resolves name to its stable slot index, assigning a new one if this
// is the first time name has been seen. It reports false once the program
// has already used maxGlobals distinct names, instead of silently wrapping
// a uint16 past 65535.
func (g *Globals) slot(name string) (uint16, bool) {
	if idx, ok := g.index.Get(name); ok {
		return idx, true
	}
	if len(g.Names) >= maxGlobals {
		return 0, false
	}
	idx := uint16(len(g.Names))
	g.index.Put(name, idx)
	g.Names = append(g.Names, name)
	return idx, true
}

func (g *Globals) markConst(name string) { g.consts[name] = true }

func (g *Globals) isConst(name string) bool { return g.consts[name] }

// Count returns the number of distinct global slots in use.
func (g *Globals) Count() int { return len(g.Names) }

// Program is the result of a successful compilation: the top-level script
// function plus the global-slot table the virtual machine needs to size
// and name its globals array.
type Program struct {
	Function *FunctionProto
	Globals  *Globals
}
