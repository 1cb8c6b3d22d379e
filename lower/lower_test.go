package lower

import (
	"context"
	stderrors "errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/il"
	"github.com/wippyai/interop-stubs/stubs"
	"github.com/wippyai/interop-stubs/typesys"
)

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

type fixture struct {
	types *typesys.Context
	lib   *typesys.DefType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := typesys.NewContext(typesys.Target{OS: typesys.OSLinux, PointerSize: PointerSize})
	lib, err := ctx.DefineType(typesys.TypeSpec{Namespace: "Native", Name: "Lib", Kind: typesys.KindClass})
	require.NoError(t, err)
	return &fixture{types: ctx, lib: lib}
}

func (f *fixture) wk(w typesys.WellKnownType) typesys.Type {
	return f.types.WellKnown(w)
}

func (f *fixture) method(name string, meta typesys.PInvokeMetadata, ret typesys.Type, params ...typesys.Type) *typesys.MethodDef {
	sig := typesys.NewMethodSignature(typesys.SignatureStatic, 0, ret, params)
	return f.lib.DefineMethod(name, sig).WithPInvoke(meta)
}

func policy(p stubs.ResolutionPolicy) *stubs.Config {
	cfg := stubs.DefaultConfig()
	cfg.Resolution = p
	return cfg
}

// build emits a stub for every method and lowers them into one module.
func build(t *testing.T, cfg *stubs.Config, methods ...typesys.Method) *Module {
	t.Helper()
	var bodies []*il.MethodIL
	for _, m := range methods {
		bodies = append(bodies, stubs.EmitIL(m, cfg))
	}
	mod, err := Lower(bodies)
	require.NoError(t, err)
	return mod
}

func instantiate(t *testing.T, h *Host, m *Module) *Instance {
	t.Helper()
	inst, err := h.Instantiate(context.Background(), m)
	require.NoError(t, err)
	return inst
}

func newHost(t *testing.T) *Host {
	t.Helper()
	h := NewHost(context.Background())
	t.Cleanup(func() { h.Close(context.Background()) })
	return h
}

func addFunc(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(api.DecodeI32(stack[0]) + api.DecodeI32(stack[1]))
}

func TestValueType(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		typ  typesys.Type
		want api.ValueType
		ok   bool
	}{
		{f.wk(typesys.WellKnownInt32), i32, true},
		{f.wk(typesys.WellKnownBoolean), i32, true},
		{f.wk(typesys.WellKnownInt64), api.ValueTypeI64, true},
		{f.wk(typesys.WellKnownSingle), api.ValueTypeF32, true},
		{f.wk(typesys.WellKnownDouble), f64, true},
		{f.types.ByRefType(f.wk(typesys.WellKnownInt64)), i32, true},
		{f.wk(typesys.WellKnownVoid), 0, false},
	}
	for _, tt := range tests {
		got, ok := ValueType(tt.typ)
		assert.Equal(t, tt.ok, ok, tt.typ.String())
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.typ.String())
		}
	}
}

func TestTrampolineName(t *testing.T) {
	assert.Equal(t, "calli_v", TrampolineName(Signature{}))
	assert.Equal(t, "calli_vi", TrampolineName(Signature{Params: []api.ValueType{i32}}))
	assert.Equal(t, "calli_dd", TrampolineName(Signature{Params: []api.ValueType{f64}, Results: []api.ValueType{f64}}))
	assert.Equal(t, "calli_jif", TrampolineName(Signature{
		Params:  []api.ValueType{i32, api.ValueTypeF32},
		Results: []api.ValueType{api.ValueTypeI64},
	}))
}

func TestLower_EagerCall(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	add := f.method("Add", typesys.PInvokeMetadata{Module: "libcalc", Name: "add"}, int32T, int32T, int32T)

	mod := build(t, policy(stubs.ResolveEager), add)
	require.Len(t, mod.Natives, 1)
	assert.Equal(t, NativeImport{Module: "libcalc", Entry: "add", Signature: Signature{
		Params:  []api.ValueType{i32, i32},
		Results: []api.ValueType{i32},
	}}, mod.Natives[0])
	assert.Empty(t, mod.Cells)

	name, ok := mod.ExportFor(add)
	require.True(t, ok)
	assert.Equal(t, "Native.Lib.Add", name)

	h := newHost(t)
	h.Library("libcalc").Func("add", []api.ValueType{i32, i32}, []api.ValueType{i32}, addFunc)
	inst := instantiate(t, h, mod)

	res, err := inst.Call(context.Background(), name, api.EncodeI32(40), api.EncodeI32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(42), api.DecodeI32(res[0]))
}

func TestLower_LazyResolvesOnce(t *testing.T) {
	f := newFixture(t)
	double := f.wk(typesys.WellKnownDouble)
	sqrt := f.method("Sqrt", typesys.PInvokeMetadata{Module: "libm", Name: "sqrt"}, double, double)

	mod := build(t, policy(stubs.ResolveLazy), sqrt)
	assert.Empty(t, mod.Natives)
	require.Len(t, mod.Cells, 1)
	require.Len(t, mod.Trampolines, 1)
	assert.Equal(t, "calli_dd", mod.Trampolines[0].Name)

	h := newHost(t)
	calls := 0
	h.Library("libm").Func("sqrt", []api.ValueType{f64}, []api.ValueType{f64},
		func(_ context.Context, _ api.Module, stack []uint64) {
			calls++
			stack[0] = api.EncodeF64(math.Sqrt(api.DecodeF64(stack[0])))
		})
	inst := instantiate(t, h, mod)

	cell := mod.Cells[0].Address
	target, ok := inst.Memory().ReadUint32Le(cell)
	require.True(t, ok)
	assert.Zero(t, target, "cell starts unresolved")

	for _, x := range []float64{16, 81} {
		res, err := inst.Call(context.Background(), "Native.Lib.Sqrt", api.EncodeF64(x))
		require.NoError(t, err)
		assert.Equal(t, math.Sqrt(x), api.DecodeF64(res[0]))
	}
	assert.Equal(t, 2, calls)

	want, ok := h.Library("libm").FunctionPointer("sqrt")
	require.True(t, ok)
	target, _ = inst.Memory().ReadUint32Le(cell)
	assert.Equal(t, want, target)
}

func TestLower_LazyMissingEntryPoint(t *testing.T) {
	f := newFixture(t)
	m := f.method("Gone", typesys.PInvokeMetadata{Module: "libgone"}, f.wk(typesys.WellKnownVoid))

	mod := build(t, policy(stubs.ResolveLazy), m)
	h := newHost(t)
	inst := instantiate(t, h, mod)

	_, err := inst.Call(context.Background(), "Native.Lib.Gone")
	var mie *errors.MissingImportsError
	require.True(t, stderrors.As(err, &mie), "got %v", err)
	assert.Equal(t, []errors.MissingImport{{Module: "libgone", Entry: "Gone"}}, mie.Imports)
}

func TestLower_MissingEagerImport(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	m := f.method("Add", typesys.PInvokeMetadata{Module: "libcalc", Name: "add"}, int32T, int32T, int32T)

	mod := build(t, policy(stubs.ResolveEager), m)
	h := newHost(t)
	_, err := h.Instantiate(context.Background(), mod)

	var mie *errors.MissingImportsError
	require.True(t, stderrors.As(err, &mie), "got %v", err)
	assert.Equal(t, "libcalc", mie.Imports[0].Module)
	assert.Equal(t, "add", mie.Imports[0].Entry)
}

func TestLower_EagerSignatureMismatch(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	m := f.method("Add", typesys.PInvokeMetadata{Module: "libcalc", Name: "add"}, int32T, int32T, int32T)

	mod := build(t, policy(stubs.ResolveEager), m)
	h := newHost(t)
	h.Library("libcalc").Func("add", []api.ValueType{i32}, []api.ValueType{i32}, addFunc)

	_, err := h.Instantiate(context.Background(), mod)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindTypeMismatch}), "got %v", err)
}

func TestLower_SetLastError(t *testing.T) {
	for _, p := range []stubs.ResolutionPolicy{stubs.ResolveEager, stubs.ResolveLazy} {
		t.Run(p.String(), func(t *testing.T) {
			f := newFixture(t)
			void := f.wk(typesys.WellKnownVoid)
			int32T := f.wk(typesys.WellKnownInt32)
			fail := f.method("Fail", typesys.PInvokeMetadata{
				Module:     "libc",
				Name:       "fail",
				Attributes: typesys.PInvokeSetLastError,
			}, void, int32T)
			quiet := f.method("Quiet", typesys.PInvokeMetadata{Module: "libc", Name: "quiet"}, void)
			probe := f.method("Probe", typesys.PInvokeMetadata{
				Module:     "libc",
				Name:       "quiet",
				Attributes: typesys.PInvokeSetLastError,
			}, void)

			mod := build(t, policy(p), fail, quiet, probe)
			h := newHost(t)
			h.Library("libc").
				Func("fail", []api.ValueType{i32}, nil, func(_ context.Context, _ api.Module, stack []uint64) {
					h.SetPlatformError(api.DecodeU32(stack[0]))
				}).
				Func("quiet", nil, nil, func(context.Context, api.Module, []uint64) {})
			inst := instantiate(t, h, mod)
			ctx := context.Background()

			_, err := inst.Call(ctx, "Native.Lib.Fail", api.EncodeI32(13))
			require.NoError(t, err)
			assert.Equal(t, uint32(13), h.LastError())

			// Without the flag the saved error is left alone.
			h.SetPlatformError(99)
			_, err = inst.Call(ctx, "Native.Lib.Quiet")
			require.NoError(t, err)
			assert.Equal(t, uint32(13), h.LastError())

			// A stale platform error is cleared before the call.
			_, err = inst.Call(ctx, "Native.Lib.Probe")
			require.NoError(t, err)
			assert.Zero(t, h.LastError())
		})
	}
}

func TestLower_ByRefWriteBack(t *testing.T) {
	for _, p := range []stubs.ResolutionPolicy{stubs.ResolveEager, stubs.ResolveLazy} {
		t.Run(p.String(), func(t *testing.T) {
			f := newFixture(t)
			int32T := f.wk(typesys.WellKnownInt32)
			inc := f.method("Inc", typesys.PInvokeMetadata{Module: "libc", Name: "inc"},
				f.wk(typesys.WellKnownVoid), f.types.ByRefType(int32T))

			mod := build(t, policy(p), inc)
			h := newHost(t)
			var seen uint32
			h.Library("libc").Func("inc", []api.ValueType{i32}, nil,
				func(_ context.Context, mod api.Module, stack []uint64) {
					ptr := api.DecodeU32(stack[0])
					seen = ptr
					v, _ := mod.Memory().ReadUint32Le(ptr)
					mod.Memory().WriteUint32Le(ptr, v+1)
				})
			inst := instantiate(t, h, mod)

			const managed = 64
			require.True(t, inst.Memory().WriteUint32Le(managed, 41))
			_, err := inst.Call(context.Background(), "Native.Lib.Inc", managed)
			require.NoError(t, err)

			v, _ := inst.Memory().ReadUint32Le(managed)
			assert.Equal(t, uint32(42), v)
			assert.NotEqual(t, uint32(managed), seen, "native side works on a copy")
		})
	}
}

func TestLower_BooleanNormalization(t *testing.T) {
	f := newFixture(t)
	boolT := f.wk(typesys.WellKnownBoolean)
	echo := f.method("Echo", typesys.PInvokeMetadata{Module: "libc", Name: "echo"}, boolT, boolT)

	mod := build(t, policy(stubs.ResolveEager), echo)
	h := newHost(t)
	var passed []uint32
	h.Library("libc").Func("echo", []api.ValueType{i32}, []api.ValueType{i32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			passed = append(passed, api.DecodeU32(stack[0]))
			stack[0] = api.EncodeU32(api.DecodeU32(stack[0]) * 7)
		})
	inst := instantiate(t, h, mod)

	for _, in := range []uint64{0, 1, 5} {
		res, err := inst.Call(context.Background(), "Native.Lib.Echo", in)
		require.NoError(t, err)
		want := uint64(0)
		if in != 0 {
			want = 1
		}
		assert.Equal(t, want, res[0], "echo(%d)", in)
	}
	assert.Equal(t, []uint32{0, 1, 1}, passed)
}

func TestLower_DiagnosticStubThrows(t *testing.T) {
	f := newFixture(t)
	puts := f.method("Puts", typesys.PInvokeMetadata{Module: "libc", Name: "puts"},
		f.wk(typesys.WellKnownInt32), f.wk(typesys.WellKnownString))

	mod := build(t, policy(stubs.ResolveEager), puts)
	assert.Empty(t, mod.Natives)

	h := newHost(t)
	inst := instantiate(t, h, mod)

	_, err := inst.Call(context.Background(), "Native.Lib.Puts", 0)
	var me *ManagedException
	require.True(t, stderrors.As(err, &me), "got %v", err)
	assert.True(t, strings.HasPrefix(me.Message, "Method 'Native.Lib.Puts"), me.Message)
	assert.Contains(t, me.Message, "non-trivial marshalling")
	assert.Zero(t, h.PendingExceptions(), "thrown exceptions release their handle")
}

func TestLower_OverloadedExports(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	int64T := f.wk(typesys.WellKnownInt64)
	a := f.method("Write", typesys.PInvokeMetadata{Module: "libc", Name: "write32"}, f.wk(typesys.WellKnownVoid), int32T)
	b := f.method("Write", typesys.PInvokeMetadata{Module: "libc", Name: "write64"}, f.wk(typesys.WellKnownVoid), int64T)

	mod := build(t, policy(stubs.ResolveEager), a, b)
	require.Len(t, mod.Exports, 2)
	assert.Equal(t, "Native.Lib.Write", mod.Exports[0].Name)
	assert.Equal(t, "Native.Lib.Write#2", mod.Exports[1].Name)
	assert.Len(t, mod.Natives, 2)
}

func TestLower_RejectsUnsupportedOpcode(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	m := f.lib.DefineMethod("Addr", typesys.NewMethodSignature(typesys.SignatureStatic, 0, int32T, []typesys.Type{int32T}))

	e := il.NewEmitter()
	s := e.NewCodeStream("body")
	s.EmitLdArga(0)
	s.Emit(il.OpRet)
	body, err := e.Link(m)
	require.NoError(t, err)

	_, err = Lower([]*il.MethodIL{body})
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))
}

func TestLower_StackTypeMismatch(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	m := f.lib.DefineMethod("Bad", typesys.NewMethodSignature(typesys.SignatureStatic, 0, int32T, nil))

	e := il.NewEmitter()
	s := e.NewCodeStream("body")
	s.EmitLdcI8(1)
	s.Emit(il.OpRet)
	body, err := e.Link(m)
	require.NoError(t, err)

	_, err = Lower([]*il.MethodIL{body})
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseLower, Kind: errors.KindTypeMismatch}), "got %v", err)
}

func TestLower_SharedModuleCell(t *testing.T) {
	f := newFixture(t)
	void := f.wk(typesys.WellKnownVoid)
	a := f.method("A", typesys.PInvokeMetadata{Module: "libx", Name: "a"}, void)
	b := f.method("B", typesys.PInvokeMetadata{Module: "libx", Name: "b"}, void)

	mod := build(t, policy(stubs.ResolveLazy), a, b)
	require.Len(t, mod.Cells, 2)

	h := newHost(t)
	noop := func(context.Context, api.Module, []uint64) {}
	h.Library("libx").Func("a", nil, nil, noop).Func("b", nil, nil, noop)
	inst := instantiate(t, h, mod)

	for _, name := range []string{"Native.Lib.A", "Native.Lib.B"} {
		_, err := inst.Call(context.Background(), name)
		require.NoError(t, err)
	}

	modCellA, _ := inst.Memory().ReadUint32Le(mod.Cells[0].Address + 2*PointerSize)
	modCellB, _ := inst.Memory().ReadUint32Le(mod.Cells[1].Address + 2*PointerSize)
	assert.Equal(t, modCellA, modCellB)
	handle, _ := inst.Memory().ReadUint32Le(modCellA)
	assert.Equal(t, uint32(1), handle)
}

func TestHost_LibraryExportsFixedAtFirstUse(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	add := f.method("Add", typesys.PInvokeMetadata{Module: "libcalc", Name: "add"}, int32T, int32T, int32T)
	sub := f.method("Sub", typesys.PInvokeMetadata{Module: "libcalc", Name: "sub"}, int32T, int32T, int32T)
	cfg := policy(stubs.ResolveEager)

	h := newHost(t)
	lib := h.Library("libcalc").Func("add", []api.ValueType{i32, i32}, []api.ValueType{i32}, addFunc)
	instantiate(t, h, build(t, cfg, add))

	lib.Func("sub", []api.ValueType{i32, i32}, []api.ValueType{i32}, addFunc)
	_, err := h.Instantiate(context.Background(), build(t, cfg, sub))

	var mie *errors.MissingImportsError
	require.True(t, stderrors.As(err, &mie), "got %v", err)
	assert.Equal(t, []errors.MissingImport{{Module: "libcalc", Entry: "sub"}}, mie.Imports)
}

func TestLower_DiagnosticStubWithoutValueType(t *testing.T) {
	f := newFixture(t)
	int32T := f.wk(typesys.WellKnownInt32)
	point, err := f.types.DefineType(typesys.TypeSpec{Namespace: "Native", Name: "Point", Kind: typesys.KindValueType})
	require.NoError(t, err)

	add := f.method("Add", typesys.PInvokeMetadata{Module: "libcalc", Name: "add"}, int32T, int32T, int32T)
	draw := f.method("Draw", typesys.PInvokeMetadata{Module: "libgfx", Name: "draw"}, point, point)

	mod := build(t, policy(stubs.ResolveEager), add, draw)
	require.Len(t, mod.Exports, 2)
	require.Len(t, mod.Natives, 1)

	h := newHost(t)
	h.Library("libcalc").Func("add", []api.ValueType{i32, i32}, []api.ValueType{i32}, addFunc)
	inst := instantiate(t, h, mod)

	res, err := inst.Call(context.Background(), "Native.Lib.Add", api.EncodeI32(1), api.EncodeI32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(3), api.DecodeI32(res[0]))

	_, err = inst.Call(context.Background(), "Native.Lib.Draw", 0)
	var me *ManagedException
	require.True(t, stderrors.As(err, &me), "got %v", err)
	assert.Contains(t, me.Message, "Native.Lib.Draw")
}

func TestLower_OpaqueSignatureNeedsThrowingBody(t *testing.T) {
	f := newFixture(t)
	point, err := f.types.DefineType(typesys.TypeSpec{Namespace: "Native", Name: "Point", Kind: typesys.KindValueType})
	require.NoError(t, err)
	m := f.lib.DefineMethod("Echo", typesys.NewMethodSignature(typesys.SignatureStatic, 0, f.wk(typesys.WellKnownVoid), []typesys.Type{point}))

	e := il.NewEmitter()
	s := e.NewCodeStream("body")
	s.Emit(il.OpRet)
	body, err := e.Link(m)
	require.NoError(t, err)

	_, err = Lower([]*il.MethodIL{body})
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err), "got %v", err)
}
