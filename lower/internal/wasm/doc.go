// Package wasm encodes the small WebAssembly modules the stub lowering
// produces: function imports, one exported linear memory, active data
// segments and exported functions.
//
//	b := wasm.NewModuleBuilder()
//	idx, _ := b.ImportFunc("libc", "getpid", wasm.FuncType{Results: []api.ValueType{api.ValueTypeI32}})
//	b.SetMemory(1, "memory")
//	b.AddFunc("GetPid", wasm.FuncType{...}, nil, body)
//	bin := b.Build()
//
// This package is internal to the lowering backend.
package wasm
