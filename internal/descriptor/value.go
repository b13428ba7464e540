package descriptor

// Value is the resolved value of one option. Select and text options carry
// strings; boolean options and groups carry bools.
type Value struct {
	Kind Kind
	Str  string
	Bool bool
}

// StringValue creates a string-typed value for a select or text option.
func StringValue(kind Kind, s string) Value {
	return Value{Kind: kind, Str: s}
}

// BoolValue creates a bool-typed value for a boolean option or group.
func BoolValue(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

// IsBool reports whether the value carries boolean semantics.
func (v Value) IsBool() bool {
	return v.Kind == KindBoolean || v.Kind == KindGroup
}

// Any returns the value as its natural Go type for handing to the backend.
func (v Value) Any() any {
	if v.IsBool() {
		return v.Bool
	}
	return v.Str
}

// Equal reports whether two values carry the same payload. Kind spelling is
// ignored for bool-typed values so group and boolean values compare equal.
func (v Value) Equal(o Value) bool {
	if v.IsBool() != o.IsBool() {
		return false
	}
	if v.IsBool() {
		return v.Bool == o.Bool
	}
	return v.Str == o.Str
}
