package typesys

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/interop-stubs/errors"
)

func TestDefineGenericParameters(t *testing.T) {
	ctx := NewContext(DefaultTarget())
	iface, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "IProducer", Kind: KindClass, Flags: FlagInterface})
	class, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Box", Kind: KindClass})

	params, err := iface.DefineGenericParameters(
		GenericParameterSpec{Name: "TOut", Variance: VarianceCovariant},
		GenericParameterSpec{Name: "TIn", Variance: VarianceContravariant, Constraints: ConstraintReferenceType},
	)
	if err != nil {
		t.Fatalf("DefineGenericParameters: %v", err)
	}
	for i, p := range params {
		if p.Index() != i {
			t.Errorf("Index = %d, want %d", p.Index(), i)
		}
		if p.ParameterKind() != GenericParameterType || p.OwnerType() != iface {
			t.Errorf("param %d owner/kind wrong", i)
		}
		if p.Kind() != KindGenericParameter {
			t.Errorf("Kind = %v", p.Kind())
		}
	}
	if params[1].Variance() != VarianceContravariant || !params[1].HasReferenceTypeConstraint() {
		t.Error("variance/constraints not preserved")
	}

	if _, err := class.DefineGenericParameters(GenericParameterSpec{Variance: VarianceCovariant}); err == nil {
		t.Error("variance on a class parameter should fail")
	}

	m := class.DefineMethod("Get", NewMethodSignature(0, 1, ctx.WellKnown(WellKnownVoid), nil))
	mp, err := m.DefineGenericParameters(GenericParameterSpec{})
	if err != nil {
		t.Fatalf("method DefineGenericParameters: %v", err)
	}
	if mp[0].String() != "!!0" || mp[0].OwnerMethod() != m {
		t.Errorf("method parameter = %s", mp[0])
	}
	if len(m.Generics()) != 1 {
		t.Error("Generics should list the method parameters")
	}
	if _, err := m.DefineGenericParameters(GenericParameterSpec{Variance: VarianceCovariant}); err == nil {
		t.Error("variance on a method parameter should fail")
	}
}

func TestCheckConstraints(t *testing.T) {
	ctx := NewContext(DefaultTarget())
	disposable, _ := ctx.DefineType(TypeSpec{Namespace: "System", Name: "IDisposable", Kind: KindClass, Flags: FlagInterface})
	base, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Base", Kind: KindClass, Interfaces: []*DefType{disposable}})
	base.DefineMethod(ConstructorName, NewMethodSignature(0, 0, ctx.WellKnown(WellKnownVoid), nil))
	derived, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Derived", Base: base, Kind: KindClass})
	noCtor, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "NoCtor", Kind: KindClass})
	abstract, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Shape", Kind: KindClass, Flags: FlagAbstract})
	point, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Point", Kind: KindValueType})
	nullable, _ := ctx.DefineType(TypeSpec{Namespace: "System", Name: "Nullable`1", Kind: KindValueType, Flags: FlagNullable})
	owner, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Holder", Kind: KindClass})

	def := func(spec GenericParameterSpec) *GenericParameter {
		t.Helper()
		ps, err := owner.DefineGenericParameters(spec)
		if err != nil {
			t.Fatalf("DefineGenericParameters: %v", err)
		}
		return ps[0]
	}

	classParam := def(GenericParameterSpec{Constraints: ConstraintReferenceType})
	structParam := def(GenericParameterSpec{Constraints: ConstraintNotNullableValueType})
	newParam := def(GenericParameterSpec{Constraints: ConstraintDefaultConstructor})
	disposableParam := def(GenericParameterSpec{TypeConstraints: []Type{disposable}})
	combined := def(GenericParameterSpec{
		Constraints:     ConstraintReferenceType | ConstraintDefaultConstructor,
		TypeConstraints: []Type{base},
	})

	tests := []struct {
		name      string
		param     *GenericParameter
		candidate Type
		ok        bool
	}{
		{"class accepts string", classParam, ctx.WellKnown(WellKnownString), true},
		{"class accepts interface", classParam, disposable, true},
		{"class rejects int", classParam, ctx.WellKnown(WellKnownInt32), false},
		{"class rejects struct", classParam, point, false},
		{"struct accepts int", structParam, ctx.WellKnown(WellKnownInt32), true},
		{"struct accepts user struct", structParam, point, true},
		{"struct rejects nullable", structParam, nullable, false},
		{"struct rejects class", structParam, base, false},
		{"new accepts class with ctor", newParam, base, true},
		{"new accepts struct", newParam, point, true},
		{"new rejects missing ctor", newParam, noCtor, false},
		{"new rejects abstract", newParam, abstract, false},
		{"new accepts struct-constrained param", newParam, structParam, true},
		{"type constraint via interface", disposableParam, base, true},
		{"type constraint via base chain", disposableParam, derived, true},
		{"type constraint unmet", disposableParam, noCtor, false},
		{"combined satisfied", combined, base, true},
		{"combined missing ctor on derived", combined, derived, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConstraints(tt.param, tt.candidate, nil)
			if tt.ok && err != nil {
				t.Errorf("CheckConstraints = %v, want nil", err)
			}
			if !tt.ok {
				e, isErr := err.(*errors.Error)
				if !isErr || e.Kind != errors.KindTypeMismatch {
					t.Errorf("CheckConstraints = %v, want type_mismatch", err)
				}
			}
		})
	}
}

func TestCheckConstraints_CustomRelation(t *testing.T) {
	ctx := NewContext(DefaultTarget())
	owner, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Holder", Kind: KindClass})
	i64 := ctx.WellKnown(WellKnownInt64)
	ps, _ := owner.DefineGenericParameters(GenericParameterSpec{TypeConstraints: []Type{i64}})

	widening := func(src, dst Type) bool {
		return src.Kind() == KindInt32 && dst.Kind() == KindInt64
	}
	if err := CheckConstraints(ps[0], ctx.WellKnown(WellKnownInt32), widening); err != nil {
		t.Errorf("custom relation should accept int32: %v", err)
	}
	if err := CheckConstraints(ps[0], ctx.WellKnown(WellKnownInt32), nil); err == nil {
		t.Error("default relation should reject int32 for int64")
	}
}

func TestCheckConstraints_Detail(t *testing.T) {
	ctx := NewContext(DefaultTarget())
	owner, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Holder", Kind: KindClass})
	odd, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Rate%d", Kind: KindClass})
	ps, _ := owner.DefineGenericParameters(GenericParameterSpec{TypeConstraints: []Type{odd}})

	err := CheckConstraints(ps[0], ctx.WellKnown(WellKnownObject), nil)
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("CheckConstraints = %v, want *errors.Error", err)
	}
	if want := "not assignable to App.Rate%d"; e.Detail != want {
		t.Errorf("Detail = %q, want %q", e.Detail, want)
	}
}

func TestIsAssignableTo(t *testing.T) {
	ctx := NewContext(DefaultTarget())
	object := ctx.WellKnown(WellKnownObject)
	iface, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "IA", Kind: KindClass, Flags: FlagInterface})
	iface2, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "IB", Kind: KindClass, Flags: FlagInterface, Interfaces: []*DefType{iface}})
	impl, _ := ctx.DefineType(TypeSpec{Namespace: "App", Name: "Impl", Kind: KindClass, Interfaces: []*DefType{iface2}})

	if !IsAssignableTo(impl, iface) {
		t.Error("inherited interface should be assignable")
	}
	if !IsAssignableTo(ctx.WellKnown(WellKnownString), object) {
		t.Error("string should be assignable to object")
	}
	if IsAssignableTo(ctx.WellKnown(WellKnownInt32), object) {
		t.Error("value types are not assignable to object without boxing")
	}
	if IsAssignableTo(iface, impl) {
		t.Error("interface should not be assignable to implementation")
	}
	if !IsAssignableTo(ctx.PointerType(impl), ctx.PointerType(impl)) {
		t.Error("identity should hold for interned types")
	}
}
