package typesys

import (
	"strconv"

	"github.com/wippyai/interop-stubs/errors"
)

// GenericParameterKind tells whether a generic parameter belongs to a type
// or to a method.
type GenericParameterKind uint8

const (
	GenericParameterType GenericParameterKind = iota
	GenericParameterMethod
)

func (k GenericParameterKind) String() string {
	if k == GenericParameterMethod {
		return "method"
	}
	return "type"
}

// GenericVariance is the declared variance of a type generic parameter.
type GenericVariance uint8

const (
	VarianceNone          GenericVariance = 0
	VarianceCovariant     GenericVariance = 1
	VarianceContravariant GenericVariance = 2
)

func (v GenericVariance) String() string {
	switch v {
	case VarianceCovariant:
		return "out"
	case VarianceContravariant:
		return "in"
	}
	return ""
}

// GenericConstraints is the special-constraint bit-set. Bits combine freely.
type GenericConstraints uint8

const (
	ConstraintNone                 GenericConstraints = 0x00
	ConstraintReferenceType        GenericConstraints = 0x04
	ConstraintNotNullableValueType GenericConstraints = 0x08
	ConstraintDefaultConstructor   GenericConstraints = 0x10
)

// GenericParameterSpec describes one parameter passed to
// DefineGenericParameters. Its index is its position in the call.
type GenericParameterSpec struct {
	Name            string
	TypeConstraints []Type
	Variance        GenericVariance
	Constraints     GenericConstraints
}

// GenericParameter is a type or method generic parameter. It is a Type so
// it can appear in signatures.
type GenericParameter struct {
	ctx             *Context
	ownerType       *DefType
	ownerMethod     *MethodDef
	name            string
	typeConstraints []Type
	index           int
	kind            GenericParameterKind
	variance        GenericVariance
	constraints     GenericConstraints
}

func (p *GenericParameter) isType() {}

// Kind implements Type.
func (p *GenericParameter) Kind() Kind { return KindGenericParameter }

// Context implements Type.
func (p *GenericParameter) Context() *Context { return p.ctx }

func (p *GenericParameter) ParameterKind() GenericParameterKind { return p.kind }
func (p *GenericParameter) Index() int                          { return p.index }
func (p *GenericParameter) Name() string                        { return p.name }
func (p *GenericParameter) Variance() GenericVariance           { return p.variance }
func (p *GenericParameter) Constraints() GenericConstraints     { return p.constraints }
func (p *GenericParameter) OwnerType() *DefType                 { return p.ownerType }
func (p *GenericParameter) OwnerMethod() *MethodDef             { return p.ownerMethod }

// TypeConstraints returns the ordered type constraints.
func (p *GenericParameter) TypeConstraints() []Type {
	return append([]Type(nil), p.typeConstraints...)
}

func (p *GenericParameter) HasReferenceTypeConstraint() bool {
	return p.constraints&ConstraintReferenceType != 0
}

func (p *GenericParameter) HasNotNullableValueTypeConstraint() bool {
	return p.constraints&ConstraintNotNullableValueType != 0
}

func (p *GenericParameter) HasDefaultConstructorConstraint() bool {
	return p.constraints&ConstraintDefaultConstructor != 0
}

// String returns the parameter name, or !n / !!n for unnamed type and method
// parameters.
func (p *GenericParameter) String() string {
	if p.name != "" {
		return p.name
	}
	if p.kind == GenericParameterMethod {
		return "!!" + strconv.Itoa(p.index)
	}
	return "!" + strconv.Itoa(p.index)
}

// DefineGenericParameters declares the type's generic parameters. Variance
// is only accepted on interfaces and delegates.
func (t *DefType) DefineGenericParameters(specs ...GenericParameterSpec) ([]*GenericParameter, error) {
	out := make([]*GenericParameter, len(specs))
	for i, spec := range specs {
		if spec.Variance != VarianceNone && !t.IsInterface() && !t.IsDelegate() {
			return nil, errors.New(errors.PhaseResolve, errors.KindInvalidInput).
				Type(t.FullName()).
				Path(strconv.Itoa(i)).
				Detail("variance is only valid on interface and delegate parameters").
				Build()
		}
		if spec.Variance > VarianceContravariant {
			return nil, errors.InvalidInput(errors.PhaseResolve, "unknown variance "+strconv.Itoa(int(spec.Variance)))
		}
		out[i] = &GenericParameter{
			ctx:             t.ctx,
			ownerType:       t,
			name:            spec.Name,
			typeConstraints: append([]Type(nil), spec.TypeConstraints...),
			index:           i,
			kind:            GenericParameterType,
			variance:        spec.Variance,
			constraints:     spec.Constraints,
		}
	}
	return out, nil
}

// DefineGenericParameters declares the method's generic parameters. Method
// parameters never carry variance.
func (m *MethodDef) DefineGenericParameters(specs ...GenericParameterSpec) ([]*GenericParameter, error) {
	out := make([]*GenericParameter, len(specs))
	for i, spec := range specs {
		if spec.Variance != VarianceNone {
			return nil, errors.New(errors.PhaseResolve, errors.KindInvalidInput).
				Method(m.String()).
				Path(strconv.Itoa(i)).
				Detail("method generic parameters cannot be variant").
				Build()
		}
		out[i] = &GenericParameter{
			ctx:             m.owner.ctx,
			ownerMethod:     m,
			name:            spec.Name,
			typeConstraints: append([]Type(nil), spec.TypeConstraints...),
			index:           i,
			kind:            GenericParameterMethod,
			constraints:     spec.Constraints,
		}
	}
	m.generics = out
	return out, nil
}

// AssignabilityFunc decides whether a value of src may be stored in dst.
type AssignabilityFunc func(src, dst Type) bool

// CheckConstraints reports whether candidate may substitute for p. A nil
// rel uses IsAssignableTo. Variance is not consulted.
func CheckConstraints(p *GenericParameter, candidate Type, rel AssignabilityFunc) error {
	if rel == nil {
		rel = IsAssignableTo
	}
	fail := func(detail string) error {
		return errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
			Path(p.String()).
			Type(candidate.String()).
			Detail("%s", detail).
			Build()
	}

	if p.HasReferenceTypeConstraint() && !isReferenceCandidate(candidate) {
		return fail("reference type required")
	}
	if p.HasNotNullableValueTypeConstraint() && !isNotNullableValueCandidate(candidate) {
		return fail("non-nullable value type required")
	}
	if p.HasDefaultConstructorConstraint() && !hasDefaultConstructor(candidate) {
		return fail("accessible parameterless constructor required")
	}
	for _, tc := range p.typeConstraints {
		if !rel(candidate, tc) {
			return fail("not assignable to " + tc.String())
		}
	}
	return nil
}

func isReferenceCandidate(t Type) bool {
	if gp, ok := t.(*GenericParameter); ok {
		return gp.HasReferenceTypeConstraint()
	}
	if dt, ok := t.(*DefType); ok && dt.IsInterface() {
		return true
	}
	return t.Kind().IsReferenceType()
}

func isNotNullableValueCandidate(t Type) bool {
	switch v := t.(type) {
	case *GenericParameter:
		return v.HasNotNullableValueTypeConstraint()
	case *DefType:
		return v.IsValueType() && !v.IsNullable()
	}
	return t.Kind() == KindPointer
}

func hasDefaultConstructor(t Type) bool {
	switch v := t.(type) {
	case *GenericParameter:
		return v.HasDefaultConstructorConstraint() || v.HasNotNullableValueTypeConstraint()
	case *DefType:
		return v.HasDefaultConstructor()
	}
	return t.Kind() == KindPointer
}

// IsAssignableTo is the default assignability relation: identity, the base
// type chain, implemented interfaces, reference types to Object, and a
// generic parameter through its own type constraints.
func IsAssignableTo(src, dst Type) bool {
	if src == dst {
		return true
	}
	if dt, ok := dst.(*DefType); ok && dt.Kind() == KindObject && isReferenceCandidate(src) {
		return true
	}
	switch s := src.(type) {
	case *GenericParameter:
		for _, tc := range s.typeConstraints {
			if IsAssignableTo(tc, dst) {
				return true
			}
		}
	case *DefType:
		target, ok := dst.(*DefType)
		if !ok {
			return false
		}
		for cur := s; cur != nil; cur = cur.base {
			if cur == target {
				return true
			}
			if implements(cur, target) {
				return true
			}
		}
	}
	return false
}

func implements(t, iface *DefType) bool {
	for _, i := range t.interfaces {
		if i == iface || implements(i, iface) {
			return true
		}
	}
	return false
}
