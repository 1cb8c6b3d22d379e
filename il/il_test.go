package il

import (
	"strings"
	"testing"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/typesys"
)

func testMethod(t *testing.T) (*typesys.Context, *typesys.MethodDef) {
	t.Helper()
	ctx := typesys.NewContext(typesys.DefaultTarget())
	lib, err := ctx.DefineType(typesys.TypeSpec{Namespace: "Native", Name: "Lib", Kind: typesys.KindClass})
	if err != nil {
		t.Fatalf("DefineType: %v", err)
	}
	i32 := ctx.WellKnown(typesys.WellKnownInt32)
	m := lib.DefineMethod("abs", typesys.NewMethodSignature(typesys.SignatureStatic, 0, i32, []typesys.Type{i32}))
	return ctx, m
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "nop"},
		{OpLdcI4, "ldc.i4"},
		{OpCgtUn, "cgt.un"},
		{OpLdindU2, "ldind.u2"},
		{OpStindR8, "stind.r8"},
		{Opcode(250), "Opcode(250)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
	for op := Opcode(0); op < numOpcodes; op++ {
		if opcodeNames[op] == "" {
			t.Errorf("opcode %d has no name", op)
		}
	}
}

func TestOpcodeClasses(t *testing.T) {
	for _, op := range []Opcode{OpCall, OpCalli, OpNewobj} {
		if !op.IsCall() {
			t.Errorf("%s.IsCall() = false", op)
		}
	}
	if OpLdsflda.IsCall() {
		t.Error("ldsflda is not a call")
	}
	if !OpLdindR8.IsLdind() || OpStindI1.IsLdind() {
		t.Error("IsLdind classification")
	}
	if !OpStindI.IsStind() || OpLdindI.IsStind() {
		t.Error("IsStind classification")
	}
}

func TestIndirectOpcodesForKinds(t *testing.T) {
	tests := []struct {
		kind  typesys.Kind
		ldind Opcode
		stind Opcode
	}{
		{typesys.KindBoolean, OpLdindU1, OpStindI1},
		{typesys.KindSByte, OpLdindI1, OpStindI1},
		{typesys.KindChar, OpLdindU2, OpStindI2},
		{typesys.KindUInt32, OpLdindI4, OpStindI4},
		{typesys.KindInt64, OpLdindI8, OpStindI8},
		{typesys.KindIntPtr, OpLdindI, OpStindI},
		{typesys.KindSingle, OpLdindR4, OpStindR4},
		{typesys.KindDouble, OpLdindR8, OpStindR8},
	}
	for _, tt := range tests {
		if got, ok := LdindFor(tt.kind); !ok || got != tt.ldind {
			t.Errorf("LdindFor(%v) = %v, %v, want %v", tt.kind, got, ok, tt.ldind)
		}
		if got, ok := StindFor(tt.kind); !ok || got != tt.stind {
			t.Errorf("StindFor(%v) = %v, %v, want %v", tt.kind, got, ok, tt.stind)
		}
	}
	if _, ok := LdindFor(typesys.KindString); ok {
		t.Error("LdindFor(string) should fail")
	}
	if _, ok := StindFor(typesys.KindValueType); ok {
		t.Error("StindFor(valuetype) should fail")
	}
}

func TestEmitter_LinkConcatenatesInCreationOrder(t *testing.T) {
	ctx, m := testMethod(t)
	i32 := ctx.WellKnown(typesys.WellKnownInt32)

	e := NewEmitter()
	first := e.NewCodeStream("first")
	second := e.NewCodeStream("second")
	third := e.NewCodeStream("third")

	// Emit out of order; link order must follow creation order.
	third.Emit(OpRet)
	v := e.NewLocal(i32)
	second.EmitStLoc(v)
	second.EmitLdLoc(v)
	first.EmitLdArg(0)

	body, err := e.Link(m)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	want := []Opcode{OpLdarg, OpStloc, OpLdloc, OpRet}
	got := body.Instructions()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Opcode != want[i] {
			t.Errorf("instr[%d] = %s, want %s", i, got[i].Opcode, want[i])
		}
	}

	spans := body.Spans()
	if len(spans) != 3 || spans[1].Name != "second" || spans[1].Start != 1 || spans[1].End != 3 {
		t.Errorf("Spans = %+v", spans)
	}
	if n := len(body.Stream("second")); n != 2 {
		t.Errorf("Stream(second) len = %d, want 2", n)
	}
	if body.Stream("missing") != nil {
		t.Error("Stream(missing) should be nil")
	}
	if body.Owner() != m {
		t.Error("Owner mismatch")
	}
	if locals := body.Locals(); len(locals) != 1 || locals[0] != i32 {
		t.Errorf("Locals = %v", locals)
	}
}

func TestEmitter_LinkValidation(t *testing.T) {
	_, m := testMethod(t)

	t.Run("empty", func(t *testing.T) {
		e := NewEmitter()
		e.NewCodeStream("s")
		if _, err := e.Link(m); err == nil {
			t.Error("empty body should fail")
		}
	})

	t.Run("no terminator", func(t *testing.T) {
		e := NewEmitter()
		e.NewCodeStream("s").EmitLdArg(0)
		_, err := e.Link(m)
		if err == nil || !strings.Contains(err.Error(), "ends in ldarg") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("foreign local", func(t *testing.T) {
		e := NewEmitter()
		s := e.NewCodeStream("s")
		s.EmitLdLoc(3)
		s.Emit(OpRet)
		_, err := e.Link(m)
		ee, ok := err.(*errors.Error)
		if !ok || ee.Kind != errors.KindOutOfBounds {
			t.Errorf("err = %v, want out_of_bounds", err)
		}
	})

	t.Run("throw terminates", func(t *testing.T) {
		e := NewEmitter()
		s := e.NewCodeStream("s")
		s.Emit(OpLdnull)
		s.Emit(OpThrow)
		if _, err := e.Link(m); err != nil {
			t.Errorf("Link: %v", err)
		}
	})
}

func TestMethodIL_Disassembly(t *testing.T) {
	ctx, m := testMethod(t)
	exc := ctx.WellKnown(typesys.WellKnownException)
	ctor, err := exc.KnownMethod(typesys.ConstructorName, typesys.NewMethodSignature(0, 0,
		ctx.WellKnown(typesys.WellKnownVoid), []typesys.Type{ctx.WellKnown(typesys.WellKnownString)}))
	if err != nil {
		t.Fatalf("KnownMethod: %v", err)
	}

	e := NewEmitter()
	s := e.NewCodeStream("diag")
	s.EmitLdStr("boom")
	s.EmitNewobj(ctor)
	s.Emit(OpThrow)
	s.EmitLdcI8(-7)
	s.Emit(OpRet)
	body, err := e.Link(m)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	text := body.String()
	for _, want := range []string{
		`IL_0000: ldstr "boom"`,
		"IL_0001: newobj System.Exception..ctor(System.String)",
		"IL_0002: throw",
		"IL_0003: ldc.i8 -7",
		"IL_0004: ret",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %q:\n%s", want, text)
		}
	}

	calls := body.Calls()
	if len(calls) != 1 || calls[0] != ctor {
		t.Errorf("Calls = %v", calls)
	}
}

func TestCodeStream_Tokens(t *testing.T) {
	_, m := testMethod(t)
	e := NewEmitter()
	s := e.NewCodeStream("s")
	sig := m.Signature().WithFlags(m.Signature().Flags() | typesys.UnmanagedCdecl)
	s.EmitLdArg(0)
	s.EmitLdArga(0)
	s.Emit(OpPop)
	s.EmitLdcI4(0)
	s.EmitCalli(sig)
	s.Emit(OpRet)

	if s.Len() != 6 || s.Name() != "s" {
		t.Errorf("Len/Name = %d/%s", s.Len(), s.Name())
	}
	body, err := e.Link(m)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	in := body.Instructions()[4]
	tok, ok := in.Token()
	if !ok {
		t.Fatal("calli should carry a token")
	}
	if body.Object(tok) != sig {
		t.Errorf("Object(%d) = %v, want %v", tok, body.Object(tok), sig)
	}
	if body.Object(99) != nil {
		t.Error("Object out of range should be nil")
	}
	if idx, ok := body.Instructions()[1].Arg(); !ok || idx != 0 {
		t.Errorf("Arg = %d, %v", idx, ok)
	}
}
