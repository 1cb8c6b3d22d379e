// Package interopstubs synthesizes native-interop (PInvoke) stubs for an
// ahead-of-time managed-code compiler.
//
// Given a method declared to call into native code, the stub engine builds a
// replacement method body that marshals managed arguments to their native
// representation, calls the native target, propagates the platform error code
// when asked to, and marshals results back. Methods whose signatures cannot be
// marshalled get a diagnostic stub that throws at run time instead of failing
// the compilation.
//
// # Architecture Overview
//
//	interopstubs/
//	├── typesys/      Type descriptors, signatures, PInvoke metadata, generic constraints
//	├── il/           Instruction model, multi-stream emitter, linked method bodies
//	├── interop/      Marshaller contract, kind-keyed registry, default strategies
//	├── stubs/        Stub emitter, binding policy, synthetic descriptors
//	├── symtab/       Emitted-symbol set shared by concurrent emissions
//	├── fixup/        Data image for lazily resolved call targets
//	├── lower/        WebAssembly backend and a wazero host to run stubs
//	├── decl/         YAML interop declaration files
//	├── errors/       Structured error types
//	└── cmd/stubgen/  Command line front end
//
// # Quick Start
//
// Emit the stub for one method:
//
//	cfg := stubs.DefaultConfig()
//	res := stubs.Emit(method, cfg)
//	if res.Kind == stubs.DiagnosticStub {
//	    log.Printf("%s: %v", method, res.Reason)
//	}
//	fmt.Print(res.Body)
//
// Lower the stubs of a declaration file and run one under wazero:
//
//	d, _ := decl.Load("libc.yaml")
//	bodies := make([]*il.MethodIL, len(d.Methods))
//	for i, m := range d.Methods {
//	    bodies[i] = stubs.EmitIL(m, cfg)
//	}
//	mod, _ := lower.Lower(bodies)
//
//	host := lower.NewHost(ctx)
//	defer host.Close(ctx)
//	host.Library("libc.so.6").Func("abs", i32, i32, absImpl)
//	inst, _ := host.Instantiate(ctx, mod)
//	out, _ := inst.Call(ctx, "Native.LibC.abs", api.EncodeI32(-3))
//
// # Binding
//
// A stub reaches its native target in one of two ways. Eager stubs call a
// synthetic native method that the backend turns into a direct import. Lazy
// stubs load a fixup cell, ask the runtime to resolve it on first use, and
// call through the returned function pointer. Both produce the same call
// site for the marshalled arguments.
package interopstubs
