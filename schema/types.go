package schema

// Kind identifies the semantic type of a field value. The engine dispatches
// encode/decode purely on this closed set; anything outside it is rejected
// when the descriptor is bound.
type Kind string

const (
	KindSint     Kind = "sint"     // zigzag-varint signed integer
	KindUint     Kind = "uint"     // plain-varint unsigned integer
	KindBool     Kind = "bool"     // varint, nonzero == true
	KindEnum     Kind = "enum"     // varint ordinal
	KindBytes    Kind = "bytes"    // length-delimited raw bytes
	KindMessage  Kind = "message"  // length-delimited nested message
	KindRepeated Kind = "repeated" // sequence of one element type
)

// Type is the semantic type of a field: a kind plus the kind-specific
// payload. Bits applies to sint/uint/enum and is 32 or 64; Message names the
// descriptor of a nested message; Enum names the enum of an enum field; Elem
// is the element type of a repeated field.
type Type struct {
	Kind    Kind   `json:"kind"`
	Bits    int    `json:"bits,omitempty"`
	Message string `json:"message,omitempty"`
	Enum    string `json:"enum,omitempty"`
	Elem    *Type  `json:"elem,omitempty"`
}

// Scalar reports whether values of this type ride the varint wire type and,
// when repeated, are packed into a single length-delimited run.
func (t *Type) Scalar() bool {
	switch t.Kind {
	case KindSint, KindUint, KindBool, KindEnum:
		return true
	}
	return false
}

// Field binds a name and a field number to a semantic type within one
// descriptor.
type Field struct {
	Name   string `json:"name"`
	Number int32  `json:"number"`
	Type   Type   `json:"type"`
}

// Descriptor describes one message type: an ordered list of fields. Field
// order determines encode emission order; decode matches incoming field
// numbers regardless of wire order.
type Descriptor struct {
	Name   string   `json:"name"`
	Fields []*Field `json:"fields"`
}

// FieldByNumber returns the field bound to the given number, or nil.
func (d *Descriptor) FieldByNumber(n int32) *Field {
	for _, f := range d.Fields {
		if f.Number == n {
			return f
		}
	}
	return nil
}

// FieldByName returns the field bound to the given name, or nil.
func (d *Descriptor) FieldByName(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Enum describes a named enumeration: ordinal values with symbolic names.
// The engine itself moves ordinals; names exist for projection (JSON output,
// CLI display) and bind-time validation.
type Enum struct {
	Name   string       `json:"name"`
	Values []*EnumValue `json:"values"`
}

// EnumValue is one member of an Enum.
type EnumValue struct {
	Name   string `json:"name"`
	Number int32  `json:"number"`
}

// NameByNumber returns the symbolic name for an ordinal, or "" if the
// ordinal is not declared.
func (e *Enum) NameByNumber(n int32) string {
	for _, v := range e.Values {
		if v.Number == n {
			return v.Name
		}
	}
	return ""
}

// NumberByName returns the ordinal for a symbolic name; ok is false when the
// name is not declared.
func (e *Enum) NumberByName(name string) (int32, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Number, true
		}
	}
	return 0, false
}
