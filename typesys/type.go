package typesys

import (
	"github.com/wippyai/interop-stubs/errors"
)

// Type is an immutable handle to a type in a Context's type universe.
//
// The set of implementations is closed: *DefType, *ParameterizedType and
// *GenericParameter. Switch on Kind or on the concrete type; both are
// exhaustive.
type Type interface {
	Kind() Kind
	Context() *Context
	String() string
	isType()
}

// TypeFlags carries definition-level facts about a DefType.
type TypeFlags uint32

const (
	FlagInterface TypeFlags = 1 << iota
	FlagDelegate
	FlagAbstract
	FlagNullable
)

// TypeSpec describes a type definition passed to Context.DefineType.
type TypeSpec struct {
	Base       *DefType
	Namespace  string
	Name       string
	Module     string
	Interfaces []*DefType
	Kind       Kind
	Flags      TypeFlags
}

// DefType is a named type definition: the built-in primitives, String and
// Object, and user classes and value types.
//
// A DefType is populated (methods, nested types) while the type universe is
// being built and is read-only afterwards.
type DefType struct {
	ctx        *Context
	base       *DefType
	enclosing  *DefType
	nested     map[string]*DefType
	namespace  string
	name       string
	module     string
	interfaces []*DefType
	methods    []*MethodDef
	kind       Kind
	flags      TypeFlags
}

func (t *DefType) isType() {}

// Kind implements Type.
func (t *DefType) Kind() Kind { return t.kind }

// Context implements Type.
func (t *DefType) Context() *Context { return t.ctx }

func (t *DefType) Namespace() string       { return t.namespace }
func (t *DefType) Name() string            { return t.name }
func (t *DefType) Module() string          { return t.module }
func (t *DefType) BaseType() *DefType      { return t.base }
func (t *DefType) EnclosingType() *DefType { return t.enclosing }
func (t *DefType) Flags() TypeFlags        { return t.flags }

// Interfaces returns the directly implemented interfaces.
func (t *DefType) Interfaces() []*DefType {
	out := make([]*DefType, len(t.interfaces))
	copy(out, t.interfaces)
	return out
}

func (t *DefType) IsInterface() bool { return t.flags&FlagInterface != 0 }
func (t *DefType) IsDelegate() bool  { return t.flags&FlagDelegate != 0 }
func (t *DefType) IsAbstract() bool  { return t.flags&(FlagAbstract|FlagInterface) != 0 }
func (t *DefType) IsNullable() bool  { return t.flags&FlagNullable != 0 }
func (t *DefType) IsValueType() bool { return t.kind.IsValueType() }

// FullName returns Namespace.Name, or Enclosing+Name for nested types.
func (t *DefType) FullName() string {
	if t.enclosing != nil {
		return t.enclosing.FullName() + "+" + t.name
	}
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "." + t.name
}

func (t *DefType) String() string { return t.FullName() }

// DefineNestedType adds a nested type definition.
func (t *DefType) DefineNestedType(name string, kind Kind) *DefType {
	nt := &DefType{
		ctx:       t.ctx,
		enclosing: t,
		namespace: t.namespace,
		name:      name,
		module:    t.module,
		kind:      kind,
	}
	if t.nested == nil {
		t.nested = make(map[string]*DefType)
	}
	t.nested[name] = nt
	return nt
}

// NestedType looks up a nested type by name.
func (t *DefType) NestedType(name string) (*DefType, error) {
	if nt, ok := t.nested[name]; ok {
		return nt, nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, "nested type", t.FullName()+"+"+name)
}

// DefineMethod adds a method to the type. The returned definition can be
// further configured with its With* methods before it is shared.
func (t *DefType) DefineMethod(name string, sig *MethodSignature) *MethodDef {
	m := &MethodDef{
		owner: t,
		name:  name,
		sig:   sig,
	}
	t.methods = append(t.methods, m)
	return m
}

// Methods returns the methods defined on the type in definition order.
func (t *DefType) Methods() []*MethodDef {
	out := make([]*MethodDef, len(t.methods))
	copy(out, t.methods)
	return out
}

// KnownMethod finds a method by name. When sig is non-nil the signature must
// match exactly.
func (t *DefType) KnownMethod(name string, sig *MethodSignature) (*MethodDef, error) {
	for _, m := range t.methods {
		if m.name != name {
			continue
		}
		if sig == nil || m.sig.Equal(sig) {
			return m, nil
		}
	}
	what := name
	if sig != nil {
		what = name + sig.String()
	}
	return nil, errors.NotFound(errors.PhaseResolve, "method", t.FullName()+"."+what)
}

// HasDefaultConstructor reports whether a parameterless constructor can be
// discovered: value types always have one, abstract types never do.
func (t *DefType) HasDefaultConstructor() bool {
	if t.IsAbstract() {
		return false
	}
	if t.IsValueType() {
		return true
	}
	for _, m := range t.methods {
		if m.name == ConstructorName && m.sig.Len() == 0 && !m.sig.IsStatic() {
			return true
		}
	}
	return false
}

// ParameterizedType is a pointer, byref or single-dimensional array over an
// element type. Instances are interned per Context, so identity is equality.
type ParameterizedType struct {
	ctx  *Context
	elem Type
	kind Kind
}

func (t *ParameterizedType) isType() {}

// Kind implements Type.
func (t *ParameterizedType) Kind() Kind { return t.kind }

// Context implements Type.
func (t *ParameterizedType) Context() *Context { return t.ctx }

// Element returns the pointee, referent or array element type.
func (t *ParameterizedType) Element() Type { return t.elem }

func (t *ParameterizedType) String() string {
	switch t.kind {
	case KindPointer:
		return t.elem.String() + "*"
	case KindByRef:
		return t.elem.String() + "&"
	default:
		return t.elem.String() + "[]"
	}
}
