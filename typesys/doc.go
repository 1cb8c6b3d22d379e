// Package typesys is the type universe the interop stub compiler works on.
//
// # Main Types
//
//   - Context: owns well-known types, compiler helper types and user definitions
//   - Type: closed set of descriptors (*DefType, *ParameterizedType, *GenericParameter)
//   - MethodSignature: return type, parameters and calling convention flags
//   - MethodDef: a declared method, optionally carrying PInvoke metadata
//
// # Thread Safety
//
// Lookups and pointer/byref/array interning on a Context are safe for
// concurrent use. Types and methods are mutable only while the universe is
// being built; once shared they must be treated as read-only.
//
// # Example
//
//	ctx := typesys.NewContext(typesys.DefaultTarget())
//	lib, _ := ctx.DefineType(typesys.TypeSpec{Namespace: "Native", Name: "Lib", Kind: typesys.KindClass})
//	i32 := ctx.WellKnown(typesys.WellKnownInt32)
//	lib.DefineMethod("abs", typesys.NewMethodSignature(typesys.SignatureStatic, 0, i32, []typesys.Type{i32})).
//		WithPInvoke(typesys.PInvokeMetadata{Module: "libc.so.6"})
package typesys
