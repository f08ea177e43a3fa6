package value

// ObjUpvalue is open while Location points into a live stack slot, and
// closed once the slot it referenced is about to leave scope: Close
// copies the current value into Closed and repoints Location at that
// field, so Get/Set never need to branch on open-vs-closed.
//
// NextOpen threads the VM's singly-linked list of currently open upvalues,
// kept in strictly decreasing stack-address order so CLOSURE lookups and
// CLOSE_UPVALUE can both walk it with a simple linear scan.
type ObjUpvalue struct {
	Obj
	Location *Value
	Closed   Value
	NextOpen *ObjUpvalue

	// Slot is the stack index Location originally pointed into. It is only
	// meaningful while the upvalue is open: the VM's open-upvalue list is
	// kept in strictly decreasing Slot order so capture and close can both
	// walk it with a linear scan instead of comparing raw addresses.
	Slot int
}

// NewUpvalue creates an open upvalue referencing slot.
func NewUpvalue(slot *Value) *ObjUpvalue {
	return &ObjUpvalue{Obj: Obj{Kind: ObjUpvalueKind}, Location: slot}
}

func (u *ObjUpvalue) Kind() Kind     { return KindObj }
func (u *ObjUpvalue) String() string { return "upvalue" }

func (u *ObjUpvalue) Trace(mark func(Value)) {
	if *u.Location != nil {
		mark(*u.Location)
	}
}

// Get reads the upvalue's current value, open or closed.
func (u *ObjUpvalue) Get() Value { return *u.Location }

// Set writes through to the upvalue's current location, open or closed.
func (u *ObjUpvalue) Set(v Value) { *u.Location = v }

// Close detaches the upvalue from the stack slot it referenced, giving it
// ownership of the slot's current value.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
	u.NextOpen = nil
}
