package value

// ObjString is an immutable, interned byte string. Two ObjStrings with
// equal Chars are always the same pointer once interned via the VM's
// string table, so string equality reduces to pointer comparison.
type ObjString struct {
	Obj
	Chars string
	Hash  uint32
}

func (s *ObjString) Kind() Kind        { return KindObj }
func (s *ObjString) String() string    { return s.Chars }
func (s *ObjString) Trace(func(Value)) {}

// HashString computes the FNV-1a hash used to key the intern table and
// ObjString.Hash.
func HashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// NewString builds an unintended (not-yet-interned) ObjString. Callers
// that want interning semantics go through the VM's string table, which
// calls this only on a lookup miss.
func NewString(chars string) *ObjString {
	return &ObjString{Obj: Obj{Kind: ObjStringKind}, Chars: chars, Hash: HashString(chars)}
}
