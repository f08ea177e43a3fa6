package value

import "github.com/emberlang/ember/lang/compiler"

// ObjFunction is a loaded function: the compiler's FunctionProto plus a
// name object and a Chunk whose Constants slice has been walked once to
// turn each raw compile-time constant (float64, string, *FunctionProto)
// into its runtime value.Value counterpart. Chunk is the very same
// *compiler.Chunk the compiler produced; loading a function never copies
// its bytecode, only converts the constant pool in place.
type ObjFunction struct {
	Obj
	Name         *ObjString // nil for the top-level script
	Arity        int
	UpvalueCount int
	Chunk        *compiler.Chunk
}

func (f *ObjFunction) Kind() Kind { return KindObj }

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}

func (f *ObjFunction) Trace(mark func(Value)) {
	if f.Name != nil {
		mark(f.Name)
	}
	for _, c := range f.Chunk.Constants {
		if v, ok := c.(Value); ok {
			mark(v)
		}
	}
}

// ObjClosure pairs a loaded function with the upvalues it captured at
// creation time. Its Upvalues slice has exactly UpvalueCount entries,
// populated by the CLOSURE opcode handler.
type ObjClosure struct {
	Obj
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// NewClosure builds a closure over fn with an empty, correctly sized
// upvalue array ready for the CLOSURE handler to fill in.
func NewClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{
		Obj:      Obj{Kind: ObjClosureKind},
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
}

func (c *ObjClosure) Kind() Kind     { return KindObj }
func (c *ObjClosure) String() string { return c.Function.String() }

func (c *ObjClosure) Trace(mark func(Value)) {
	mark(c.Function)
	for _, uv := range c.Upvalues {
		if uv != nil {
			mark(uv)
		}
	}
}
