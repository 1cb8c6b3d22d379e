// Package stubs synthesizes the bodies of PInvoke methods.
//
// A stub marshals each managed argument to its native form, calls the
// native entry point and converts the result back. The body is assembled
// from five ordered code streams:
//
//	fnptr-load          resolve the target (lazy binding only)
//	marshalling         pre-call argument conversion
//	callsite-setup      argument loads, the call, last-error bracket
//	return-marshalling  native to managed return conversion
//	unmarshalling       post-call write-back, then ret
//
// Eager stubs call a synthesized PInvokeTargetNativeMethod that the
// compiler emits as an external symbol. Lazy stubs load the address of a
// PInvokeLazyFixupField cell, resolve it through
// InteropHelpers.ResolvePInvoke on first use and call through the returned
// function pointer.
//
// Emission never fails. Methods that cannot be marshalled, or whose import
// metadata is malformed, get a diagnostic body that throws an exception at
// run time naming the method.
//
// Emissions for distinct methods may run concurrently with a shared Config.
package stubs
