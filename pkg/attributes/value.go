// Package attributes implements the attestation attribute tree (§3.1, §4.3): a nested,
// order-preserving map of attribute values, bidirectional conversion to/from mdoc
// namespace/entry form, and the depth-first traversals the issuance and disclosure engines
// depend on.
package attributes

import "fmt"

// ValueKind discriminates the AttributeValue variants of §3.1.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueInteger
	ValueBool
	ValueText
	ValueArray
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueInteger:
		return "integer"
	case ValueBool:
		return "bool"
	case ValueText:
		return "text"
	case ValueArray:
		return "array"
	default:
		return "unknown"
	}
}

// AttributeValue is a leaf value: Null, Integer, Bool, Text, or an Array of AttributeValue.
// Only one of the typed fields is meaningful, selected by Kind.
type AttributeValue struct {
	Kind    ValueKind
	Integer int64
	Bool    bool
	Text    string
	Array   []AttributeValue
}

// Null returns the Null variant.
func Null() AttributeValue { return AttributeValue{Kind: ValueNull} }

// Int returns the Integer variant.
func Int(v int64) AttributeValue { return AttributeValue{Kind: ValueInteger, Integer: v} }

// Bool returns the Bool variant.
func Bool(v bool) AttributeValue { return AttributeValue{Kind: ValueBool, Bool: v} }

// Text returns the Text variant.
func Text(v string) AttributeValue { return AttributeValue{Kind: ValueText, Text: v} }

// Array returns the Array variant.
func Array(elems ...AttributeValue) AttributeValue {
	return AttributeValue{Kind: ValueArray, Array: elems}
}

func (v AttributeValue) String() string {
	switch v.Kind {
	case ValueNull:
		return "null"
	case ValueInteger:
		return fmt.Sprintf("%d", v.Integer)
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueText:
		return v.Text
	case ValueArray:
		return fmt.Sprintf("%v", v.Array)
	default:
		return ""
	}
}

// Equal reports deep equality between two AttributeValues.
func (v AttributeValue) Equal(other AttributeValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueInteger:
		return v.Integer == other.Integer
	case ValueBool:
		return v.Bool == other.Bool
	case ValueText:
		return v.Text == other.Text
	case ValueArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
