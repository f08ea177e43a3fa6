package value

// NativeFn is the signature every built-in function implements. It returns
// an error rather than the source project's undefined-sentinel convention,
// letting the VM attach a real message to the runtime error it raises —
// idiomatic Go error handling doing the same job as the sentinel.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a Go function as a callable language value with a fixed
// arity the VM checks before invoking it.
type ObjNative struct {
	Obj
	Name  string
	Arity int
	Fn    NativeFn
}

// NewNative wraps fn as a native function value.
func NewNative(name string, arity int, fn NativeFn) *ObjNative {
	return &ObjNative{Obj: Obj{Kind: ObjNativeKind}, Name: name, Arity: arity, Fn: fn}
}

func (n *ObjNative) Kind() Kind        { return KindObj }
func (n *ObjNative) String() string    { return "<native fn>" }
func (n *ObjNative) Trace(func(Value)) {}
