package wasm

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var testMagicVersion = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func TestEncodeULEB128(t *testing.T) {
	tests := []struct {
		expected []byte
		input    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
	}

	for _, tt := range tests {
		if result := EncodeULEB128(tt.input); !bytes.Equal(result, tt.expected) {
			t.Errorf("EncodeULEB128(%d) = %x, want %x", tt.input, result, tt.expected)
		}
	}
}

func TestEncodeSLEB128(t *testing.T) {
	tests := []struct {
		expected []byte
		input    int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0xbf, 0x7f}, -65},
	}

	for _, tt := range tests {
		if result := EncodeSLEB128(tt.input); !bytes.Equal(result, tt.expected) {
			t.Errorf("EncodeSLEB128(%d) = %x, want %x", tt.input, result, tt.expected)
		}
	}
}

func TestModuleBuilder_EmptyBuild(t *testing.T) {
	wasm := NewModuleBuilder().Build()
	if !bytes.HasPrefix(wasm, testMagicVersion) {
		t.Fatal("expected valid WASM header")
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	if _, err := rt.CompileModule(ctx, wasm); err != nil {
		t.Fatalf("empty module does not compile: %v", err)
	}
}

func TestModuleBuilder_ImportDedup(t *testing.T) {
	b := NewModuleBuilder()
	ft := FuncType{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}}

	a, err := b.ImportFunc("env", "inc", ft)
	if err != nil {
		t.Fatal(err)
	}
	again, err := b.ImportFunc("env", "inc", ft)
	if err != nil {
		t.Fatal(err)
	}
	if a != again {
		t.Errorf("re-import index = %d, want %d", again, a)
	}
	other, _ := b.ImportFunc("env", "dec", ft)
	if other != 1 {
		t.Errorf("second import index = %d, want 1", other)
	}
	if b.ImportCount() != 2 {
		t.Errorf("ImportCount = %d, want 2", b.ImportCount())
	}
	if len(b.types) != 1 {
		t.Errorf("types = %d, want 1 shared type", len(b.types))
	}

	if _, err := b.ImportFunc("env", "inc", FuncType{Params: []api.ValueType{i64}}); err == nil {
		t.Error("expected error for conflicting import type")
	}
}

func TestModuleBuilder_Instantiate(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(x int32) int32 { return x + 1 }).Export("inc").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("failed to create host module: %v", err)
	}

	b := NewModuleBuilder()
	b.SetMemory(1, "memory")
	b.AddData(16, []byte("hello\x00"))

	// Functions may precede imports.
	var code Code
	code.LocalGet(0)
	code.LocalSet(1)
	code.LocalGet(1)
	b.AddFunc("pass", FuncType{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}}, []api.ValueType{i32}, code.Bytes())

	inc, err := b.ImportFunc("env", "inc", FuncType{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}})
	if err != nil {
		t.Fatal(err)
	}
	var call Code
	call.LocalGet(0)
	call.Call(inc)
	call.Call(inc)
	b.AddFunc("inc_twice", FuncType{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}}, nil, call.Bytes())

	var load Code
	load.I32Const(16)
	load.Mem(OpI32Load8U, 0)
	b.AddFunc("first", FuncType{Results: []api.ValueType{i32}}, nil, load.Bytes())

	mod, err := rt.Instantiate(ctx, b.Build())
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}

	res, err := mod.ExportedFunction("inc_twice").Call(ctx, 40)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 42 {
		t.Errorf("inc_twice(40) = %d, want 42", res[0])
	}

	res, err = mod.ExportedFunction("pass").Call(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 7 {
		t.Errorf("pass(7) = %d, want 7", res[0])
	}

	res, err = mod.ExportedFunction("first").Call(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 'h' {
		t.Errorf("first() = %d, want %d", res[0], 'h')
	}

	data, ok := mod.Memory().Read(16, 5)
	if !ok || string(data) != "hello" {
		t.Errorf("memory[16:21] = %q, want %q", data, "hello")
	}
	if mod.ExportedMemory("memory") == nil {
		t.Error("memory is not exported")
	}
}

func TestFuncType_String(t *testing.T) {
	ft := FuncType{Params: []api.ValueType{i32, i64}, Results: []api.ValueType{i32}}
	if got, want := ft.String(), "(i32 i64) -> (i32)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
