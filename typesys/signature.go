package typesys

import (
	"strings"
)

// MethodSignatureFlags carries calling convention facts of a signature.
type MethodSignatureFlags uint16

const (
	// UnmanagedCallingConventionMask selects the unmanaged calling
	// convention bits; zero means a managed signature.
	UnmanagedCallingConventionMask MethodSignatureFlags = 0x000F

	UnmanagedCdecl    MethodSignatureFlags = 0x0001
	UnmanagedStdCall  MethodSignatureFlags = 0x0002
	UnmanagedThisCall MethodSignatureFlags = 0x0003

	SignatureStatic MethodSignatureFlags = 0x0010
)

// UnmanagedConvention returns only the unmanaged calling convention bits.
func (f MethodSignatureFlags) UnmanagedConvention() MethodSignatureFlags {
	return f & UnmanagedCallingConventionMask
}

func (f MethodSignatureFlags) String() string {
	var parts []string
	if f&SignatureStatic != 0 {
		parts = append(parts, "static")
	}
	switch f.UnmanagedConvention() {
	case UnmanagedCdecl:
		parts = append(parts, "unmanaged cdecl")
	case UnmanagedStdCall:
		parts = append(parts, "unmanaged stdcall")
	case UnmanagedThisCall:
		parts = append(parts, "unmanaged thiscall")
	}
	return strings.Join(parts, " ")
}

// MethodSignature is an immutable return type, parameter list and flags.
type MethodSignature struct {
	ret          Type
	params       []Type
	flags        MethodSignatureFlags
	genericCount int
}

// NewMethodSignature builds a signature. The params slice is copied.
func NewMethodSignature(flags MethodSignatureFlags, genericCount int, ret Type, params []Type) *MethodSignature {
	return &MethodSignature{
		ret:          ret,
		params:       append([]Type(nil), params...),
		flags:        flags,
		genericCount: genericCount,
	}
}

func (s *MethodSignature) Flags() MethodSignatureFlags { return s.flags }
func (s *MethodSignature) ReturnType() Type            { return s.ret }
func (s *MethodSignature) GenericParameterCount() int  { return s.genericCount }
func (s *MethodSignature) IsStatic() bool              { return s.flags&SignatureStatic != 0 }

// Len returns the number of parameters, excluding the return value.
func (s *MethodSignature) Len() int { return len(s.params) }

// Param returns the i-th parameter type, zero-based.
func (s *MethodSignature) Param(i int) Type { return s.params[i] }

// Params returns a copy of the parameter types.
func (s *MethodSignature) Params() []Type {
	return append([]Type(nil), s.params...)
}

// WithFlags returns a copy of the signature with different flags.
func (s *MethodSignature) WithFlags(flags MethodSignatureFlags) *MethodSignature {
	c := *s
	c.flags = flags
	return &c
}

// Equal reports whether two signatures have identical flags and types.
// Types are compared by identity, which is exact because parameterized types
// are interned.
func (s *MethodSignature) Equal(o *MethodSignature) bool {
	if s == o {
		return true
	}
	if o == nil || s.flags != o.flags || s.genericCount != o.genericCount ||
		s.ret != o.ret || len(s.params) != len(o.params) {
		return false
	}
	for i := range s.params {
		if s.params[i] != o.params[i] {
			return false
		}
	}
	return true
}

// String renders the signature as "(p1, p2) -> ret".
func (s *MethodSignature) String() string {
	var b strings.Builder
	if f := s.flags.String(); f != "" {
		b.WriteString(f)
		b.WriteByte(' ')
	}
	b.WriteByte('(')
	for i, p := range s.params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(typeName(p))
	}
	b.WriteString(") -> ")
	b.WriteString(typeName(s.ret))
	return b.String()
}

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
