// Package il models the intermediate instruction stream synthesized stubs are
// written in.
//
// An Emitter owns several named CodeStreams. Code is appended to each stream
// independently and the streams are concatenated in creation order by Link,
// which yields an immutable MethodIL. The linked body remembers which span
// came from which stream so callers can inspect each phase separately.
//
//	e := il.NewEmitter()
//	setup := e.NewCodeStream("callsite")
//	setup.EmitLdArg(0)
//	setup.EmitCall(target)
//	setup.Emit(il.OpRet)
//	body, err := e.Link(owner)
package il
