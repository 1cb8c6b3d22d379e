package typesys

import "fmt"

// Kind is the closed discriminant of every type descriptor this module
// understands. Strategy registries are keyed by it.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindChar
	KindSByte
	KindByte
	KindInt16
	KindUInt16
	KindInt32
	KindUInt32
	KindInt64
	KindUInt64
	KindIntPtr
	KindUIntPtr
	KindSingle
	KindDouble
	KindString
	KindObject
	KindClass
	KindValueType
	KindPointer
	KindByRef
	KindArray
	KindGenericParameter

	numKinds
)

var kindNames = [numKinds]string{
	KindVoid:             "void",
	KindBoolean:          "bool",
	KindChar:             "char",
	KindSByte:            "int8",
	KindByte:             "uint8",
	KindInt16:            "int16",
	KindUInt16:           "uint16",
	KindInt32:            "int32",
	KindUInt32:           "uint32",
	KindInt64:            "int64",
	KindUInt64:           "uint64",
	KindIntPtr:           "native int",
	KindUIntPtr:          "native uint",
	KindSingle:           "float32",
	KindDouble:           "float64",
	KindString:           "string",
	KindObject:           "object",
	KindClass:            "class",
	KindValueType:        "valuetype",
	KindPointer:          "pointer",
	KindByRef:            "byref",
	KindArray:            "array",
	KindGenericParameter: "generic parameter",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// IsPrimitive reports whether k is one of the built-in scalar kinds
// (Boolean through Double).
func (k Kind) IsPrimitive() bool {
	return k >= KindBoolean && k <= KindDouble
}

// IsInteger reports whether k is an integral primitive, including the
// pointer-sized integers.
func (k Kind) IsInteger() bool {
	return k >= KindSByte && k <= KindUIntPtr
}

// IsValueType reports whether values of kind k are copied by value.
func (k Kind) IsValueType() bool {
	return k.IsPrimitive() || k == KindValueType || k == KindPointer
}

// IsReferenceType reports whether values of kind k are object references.
func (k Kind) IsReferenceType() bool {
	switch k {
	case KindString, KindObject, KindClass, KindArray:
		return true
	}
	return false
}

// Size returns the storage size in bytes of a value of kind k for the given
// pointer size, or 0 when the kind has no fixed scalar size.
func (k Kind) Size(pointerSize int) int {
	switch k {
	case KindBoolean, KindSByte, KindByte:
		return 1
	case KindChar, KindInt16, KindUInt16:
		return 2
	case KindInt32, KindUInt32, KindSingle:
		return 4
	case KindInt64, KindUInt64, KindDouble:
		return 8
	case KindIntPtr, KindUIntPtr, KindPointer, KindByRef,
		KindString, KindObject, KindClass, KindArray:
		return pointerSize
	}
	return 0
}
