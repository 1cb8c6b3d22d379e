// Package lower compiles synthesized PInvoke stubs to a wasm32 module and
// runs them under wazero.
//
// Lower translates each linked stub body into an exported function named
// after its method. Calls to eager native targets become function imports
// from the target's library; runtime helpers and indirect calls import from
// the "interop" module:
//
//	clear_last_error, save_last_error   () -> ()
//	get_last_error                      () -> (i32)
//	resolve_pinvoke                     (cell i32) -> (target i32)
//	new_exception                       (message i32) -> (handle i32)
//	throw                               (handle i32) -> ()
//	calli_<r><p...>                     (args..., target i32) -> (r)
//
// Lazy fixup cells and string literals live in a data segment at DataBase.
// Locals whose address is taken get static memory slots after the image;
// stubs are not reentrant.
//
// Host provides the other side: Go functions grouped into libraries, the
// platform error slot and lazy resolution.
//
//	h := lower.NewHost(ctx)
//	h.Library("libm").Func("sqrt", []api.ValueType{f64}, []api.ValueType{f64}, sqrt)
//	inst, err := h.Instantiate(ctx, mod)
//	res, err := inst.Call(ctx, "Native.Lib.Sqrt", api.EncodeF64(2))
package lower
