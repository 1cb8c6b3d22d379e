package typesys

import "strings"

// Method is the view of a method the interop pipeline needs. Definitions in
// the type universe implement it with *MethodDef; compiler-synthesized
// methods provide their own implementations.
type Method interface {
	OwningType() *DefType
	Name() string
	Signature() *MethodSignature
	IsPInvoke() bool
	PInvokeMetadata() PInvokeMetadata
	ParameterMetadata() []ParameterMetadata
	String() string
}

// Field is the view of a field the interop pipeline needs.
type Field interface {
	OwningType() *DefType
	Name() string
	FieldType() Type
	IsStatic() bool
	IsInitOnly() bool
	IsLiteral() bool
	IsThreadStatic() bool
	HasRVA() bool
	String() string
}

// MethodDef is a method declared on a DefType.
type MethodDef struct {
	owner    *DefType
	sig      *MethodSignature
	pinvoke  *PInvokeMetadata
	generics []*GenericParameter
	params   []ParameterMetadata
	name     string
}

var _ Method = (*MethodDef)(nil)

func (m *MethodDef) OwningType() *DefType        { return m.owner }
func (m *MethodDef) Name() string                { return m.name }
func (m *MethodDef) Signature() *MethodSignature { return m.sig }
func (m *MethodDef) IsPInvoke() bool             { return m.pinvoke != nil }
func (m *MethodDef) IsConstructor() bool         { return m.name == ConstructorName }

// Generics returns the method's own generic parameters.
func (m *MethodDef) Generics() []*GenericParameter {
	return append([]*GenericParameter(nil), m.generics...)
}

// PInvokeMetadata returns the import metadata. It is the zero value for
// methods that are not PInvoke.
func (m *MethodDef) PInvokeMetadata() PInvokeMetadata {
	if m.pinvoke == nil {
		return PInvokeMetadata{}
	}
	return *m.pinvoke
}

// ParameterMetadata returns the declared parameter metadata. The sequence
// is sparse: slots without explicit metadata are absent.
func (m *MethodDef) ParameterMetadata() []ParameterMetadata {
	return append([]ParameterMetadata(nil), m.params...)
}

// WithPInvoke marks the method as a native import.
func (m *MethodDef) WithPInvoke(meta PInvokeMetadata) *MethodDef {
	m.pinvoke = &meta
	return m
}

// WithParameterMetadata replaces the declared parameter metadata.
func (m *MethodDef) WithParameterMetadata(md ...ParameterMetadata) *MethodDef {
	m.params = append([]ParameterMetadata(nil), md...)
	return m
}

// String returns the display name, e.g. "Native.Lib.Open(string, int32)".
func (m *MethodDef) String() string {
	var b strings.Builder
	if m.owner != nil {
		b.WriteString(m.owner.FullName())
		b.WriteByte('.')
	}
	b.WriteString(m.name)
	b.WriteByte('(')
	if m.sig != nil {
		for i := 0; i < m.sig.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(typeName(m.sig.Param(i)))
		}
	}
	b.WriteByte(')')
	return b.String()
}
