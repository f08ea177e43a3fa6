package value

// ObjClass is a class value: a name, its own method table, and (after
// inheriting, if any) copies of every ancestor method too — INHERIT copies
// the superclass's table into the subclass once, at class-declaration
// time, rather than walking a superclass chain on every lookup.
type ObjClass struct {
	Obj
	Name        *ObjString
	Methods     map[string]*ObjClosure
	Initializer *ObjClosure // cached "init" method, nil if none defined
}

// NewClass builds an empty class named name.
func NewClass(name *ObjString) *ObjClass {
	return &ObjClass{Obj: Obj{Kind: ObjClassKind}, Name: name, Methods: make(map[string]*ObjClosure)}
}

func (c *ObjClass) Kind() Kind     { return KindObj }
func (c *ObjClass) String() string { return c.Name.Chars }

func (c *ObjClass) Trace(mark func(Value)) {
	mark(c.Name)
	for _, m := range c.Methods {
		mark(m)
	}
	if c.Initializer != nil {
		mark(c.Initializer)
	}
}

// SetMethod installs closure as method name, refreshing the cached
// initializer if name is "init".
func (c *ObjClass) SetMethod(name string, closure *ObjClosure) {
	c.Methods[name] = closure
	if name == "init" {
		c.Initializer = closure
	}
}

// InheritFrom copies super's method table (including its cached
// initializer) into c. Methods c defines afterward shadow the inherited
// ones with the same name.
func (c *ObjClass) InheritFrom(super *ObjClass) {
	for name, m := range super.Methods {
		c.Methods[name] = m
	}
	c.Initializer = super.Initializer
}

// ObjInstance is a class instance: a pointer back to its class plus an
// open property table. Storing a closure as a field shadows any method of
// the same name on property access, by design (supports using methods as
// first-class values without a separate syntax).
type ObjInstance struct {
	Obj
	Class  *ObjClass
	Fields map[string]Value
}

// NewInstance builds an instance of class with no fields set.
func NewInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Obj: Obj{Kind: ObjInstanceKind}, Class: class, Fields: make(map[string]Value)}
}

func (i *ObjInstance) Kind() Kind     { return KindObj }
func (i *ObjInstance) String() string { return i.Class.Name.Chars + " instance" }

func (i *ObjInstance) Trace(mark func(Value)) {
	mark(i.Class)
	for _, v := range i.Fields {
		mark(v)
	}
}

// ObjBoundMethod pairs a receiver with the method closure it was read off
// of, so calling it invokes the closure with receiver already bound into
// slot 0 without needing to re-resolve the method by name.
type ObjBoundMethod struct {
	Obj
	Receiver Value
	Method   *ObjClosure
}

// NewBoundMethod binds method to receiver.
func NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	return &ObjBoundMethod{Obj: Obj{Kind: ObjBoundMethodKind}, Receiver: receiver, Method: method}
}

func (b *ObjBoundMethod) Kind() Kind     { return KindObj }
func (b *ObjBoundMethod) String() string { return b.Method.String() }

func (b *ObjBoundMethod) Trace(mark func(Value)) {
	mark(b.Receiver)
	mark(b.Method)
}
