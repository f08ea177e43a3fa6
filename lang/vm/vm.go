// Package vm implements the stack-based bytecode interpreter: the
// call-frame stack, the value stack, the loaded-constant/object model
// plumbing, and the dispatch loop that executes a compiled Program.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/gc"
	"github.com/emberlang/ember/lang/table"
	"github.com/emberlang/ember/lang/value"
)

// Call-depth and value-stack limits: at most FramesMax nested calls, and a
// fixed value stack of StackPerCall slots per frame.
const (
	FramesMax    = 64
	StackPerCall = 256
	StackMax     = FramesMax * StackPerCall
)

// InterpretResult is the outcome of running a program to completion.
type InterpretResult int

//nolint:revive
const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// Config tunes the VM instance: where print output and diagnostics go, and
// an optional GC stress threshold. clock() always measures from process
// start (see processStart in natives.go).
type Config struct {
	Stdout io.Writer
	Stderr io.Writer

	// GCStressThreshold, if non-zero, overrides the collector's default
	// first-collection threshold (1 forces a collection at every single
	// allocation site). Exercised by the "GC safety" property in spec.md §8:
	// a program must produce identical output whether or not every
	// allocation triggers a full mark-and-sweep pass. Zero keeps the
	// collector's normal heap-growth heuristic.
	GCStressThreshold int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Stdout == nil {
		out.Stdout = os.Stdout
	}
	if out.Stderr == nil {
		out.Stderr = os.Stderr
	}
	return out
}

// frame is one call-frame entry: the running closure, the instruction
// pointer as a byte offset into its chunk, and the base stack slot at
// which the callee (or, for methods, the receiver) lives.
type frame struct {
	closure *value.ObjClosure
	ip      int
	base    int
}

// VM owns one complete interpreter instance: its value stack, call-frame
// stack, heap, interning table, and global variable slots. Every
// allocation the VM makes routes through its Collector so no object escapes
// GC accounting.
type VM struct {
	cfg Config

	stack    [StackMax]value.Value
	stackTop int

	frames    [FramesMax]frame
	frameCont int

	openUpvalues *value.ObjUpvalue

	strings *table.Table[*value.ObjString]
	initStr *value.ObjString

	globalNames  []*value.ObjString
	globalValues []value.Value

	natives map[string]*value.ObjNative

	gc *gc.Collector

	startTime func() float64 // clock() source, overridable in tests
}

// New creates a VM ready to run programs, with native functions installed.
func New(cfg Config) *VM {
	collector := gc.New()
	if cfg.GCStressThreshold > 0 {
		collector = gc.NewWithThreshold(cfg.GCStressThreshold)
	}
	vm := &VM{
		cfg:       cfg.withDefaults(),
		strings:   table.New[*value.ObjString](),
		gc:        collector,
		startTime: defaultClock,
	}
	vm.initStr = vm.internString("init")
	vm.registerNatives()
	return vm
}

// internString returns the canonical interned ObjString for chars,
// allocating a new one only on a lookup miss.
func (vm *VM) internString(chars string) *value.ObjString {
	hash := value.HashString(chars)
	if existing := table.FindString(vm.strings, chars, hash); existing != nil {
		return existing
	}
	s := value.NewString(chars)
	vm.track(s, len(chars))
	vm.strings.Set(s, s)
	return s
}

func (vm *VM) track(obj value.HeapObject, size int) {
	if vm.gc.ShouldCollect() {
		vm.collectGarbage()
	}
	vm.gc.Track(obj, size)
}

// Run compiles and executes source as a standalone program, starting from
// an empty global environment.
func (vm *VM) Run(source []byte) (InterpretResult, error) {
	return vm.runProgram(compiler.Compile(source))
}

// RunREPL compiles and executes one line of input against globals carried
// over from previous calls, so a variable or function declared on an
// earlier line stays visible (and keeps its value) on later ones. Pass a
// freshly constructed *compiler.Globals on the first call and thread the
// same pointer through every subsequent call for the lifetime of the
// session.
func (vm *VM) RunREPL(source []byte, globals *compiler.Globals) (InterpretResult, error) {
	return vm.runProgram(compiler.CompileIncremental(source, globals))
}

func (vm *VM) runProgram(prog *compiler.Program, err error) (InterpretResult, error) {
	if err != nil {
		return InterpretCompileError, err
	}

	vm.syncGlobals(prog.Globals)

	fn := vm.loadFunction(prog.Function)
	// fn is already linked into the heap by loadFunction; root it on the
	// stack before allocating closure below, which can itself collect.
	vm.push(fn)
	closure := value.NewClosure(fn)
	vm.track(closure, 0)
	vm.pop()

	vm.push(closure)
	if err := vm.callValue(closure, 0); err != nil {
		return InterpretRuntimeError, err
	}

	return vm.run()
}

// syncGlobals grows the VM's global-slot arrays to match globals, leaving
// already-populated slots untouched so values assigned on a previous
// RunREPL call survive into the next one. Natives are installed into any
// newly added slot whose name matches one, exactly as they would have been
// had the whole program been compiled in one pass.
func (vm *VM) syncGlobals(globals *compiler.Globals) {
	for i := len(vm.globalNames); i < globals.Count(); i++ {
		name := globals.Names[i]
		vm.globalNames = append(vm.globalNames, vm.internString(name))
		if native, ok := vm.natives[name]; ok {
			vm.globalValues = append(vm.globalValues, native)
		} else {
			vm.globalValues = append(vm.globalValues, value.Undefined)
		}
	}
}

// loadFunction converts a *compiler.FunctionProto into a loaded
// *value.ObjFunction, recursively loading any nested function prototypes
// and interning any string constants, exactly once per chunk. This is the
// load-time half of the compiler's two-stage constant representation.
//
// Each constant that allocates is pushed onto the value stack as soon as
// it is linked into the heap: interning or loading a later constant can
// itself trigger a collection, and until the ObjFunction built below is
// tracked, nothing else roots an already-linked earlier constant (the same
// rule OP_CLOSURE and OP_ARRAY follow at runtime). The pushes are unwound
// once fn itself holds the chunk and is tracked.
func (vm *VM) loadFunction(proto *compiler.FunctionProto) *value.ObjFunction {
	rootBase := vm.stackTop
	for i, c := range proto.Chunk.Constants {
		switch cv := c.(type) {
		case float64:
			proto.Chunk.Constants[i] = value.Number(cv)
		case string:
			s := vm.internString(cv)
			proto.Chunk.Constants[i] = s
			vm.push(s)
		case *compiler.FunctionProto:
			nested := vm.loadFunction(cv)
			proto.Chunk.Constants[i] = nested
			vm.push(nested)
		}
	}

	var name *value.ObjString
	if proto.Name != "" {
		name = vm.internString(proto.Name)
		vm.push(name)
	}
	fn := &value.ObjFunction{
		Obj:          value.Obj{Kind: value.ObjFunctionKind},
		Name:         name,
		Arity:        proto.Arity,
		UpvalueCount: proto.UpvalueCount,
		Chunk:        proto.Chunk,
	}
	vm.track(fn, len(proto.Chunk.Code))
	vm.stackTop = rootBase
	return fn
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

// pushChecked is push guarded by the value-stack depth limit (§6 "Limits").
// Every dispatch-loop opcode that can grow the stack net-positively goes
// through this instead of push so a pathologically deep expression reports
// a runtime error rather than corrupting memory past the fixed-size array.
func (vm *VM) pushChecked(v value.Value) error {
	if vm.stackTop >= StackMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.push(v)
	return nil
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCont = 0
	vm.openUpvalues = nil
}

// runtimeError formats msg, appends a stack trace (innermost frame first),
// writes both to stderr, and resets the stack so the VM is safe to reuse
// for a subsequent Run.
func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.cfg.Stderr, msg)

	for i := vm.frameCont - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		line := fn.Chunk.LineAt(fr.ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		fmt.Fprintf(vm.cfg.Stderr, "[line %d] in %s\n", line, name)
	}

	vm.resetStack()
	return fmt.Errorf("%s", msg)
}
