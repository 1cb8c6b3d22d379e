package stubs

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/il"
	"github.com/wippyai/interop-stubs/interop"
	"github.com/wippyai/interop-stubs/typesys"
)

// Kind tells a normal stub from a diagnostic one.
type Kind uint8

const (
	NormalStub Kind = iota
	DiagnosticStub
)

func (k Kind) String() string {
	if k == DiagnosticStub {
		return "diagnostic"
	}
	return "normal"
}

// Binding is how a normal stub reaches its native target.
type Binding uint8

const (
	BindingNone Binding = iota
	BindingEager
	BindingLazy
)

func (b Binding) String() string {
	switch b {
	case BindingEager:
		return "eager"
	case BindingLazy:
		return "lazy"
	}
	return "none"
}

// Result is the outcome of emitting one stub. Body is always a linked,
// valid method body.
type Result struct {
	Body *il.MethodIL

	// NativeMethod is set for eager normal stubs.
	NativeMethod *PInvokeTargetNativeMethod

	// FixupField is set for lazy normal stubs.
	FixupField *PInvokeLazyFixupField

	// Reason is set for diagnostic stubs.
	Reason error

	Kind    Kind
	Binding Binding
}

type state uint8

const (
	stateInitialized state = iota
	stateMarshallersBuilt
	stateStreamsPopulated
	stateCallEmitted
	stateErrorHandlingEmitted
	stateLinked
)

var stateNames = [...]string{
	stateInitialized:          "initialized",
	stateMarshallersBuilt:     "marshallers-built",
	stateStreamsPopulated:     "streams-populated",
	stateCallEmitted:          "call-emitted",
	stateErrorHandlingEmitted: "error-handling-emitted",
	stateLinked:               "linked",
}

func (s state) String() string { return stateNames[s] }

// EmitIL returns the synthesized body for a PInvoke method. It never fails;
// see Emit.
func EmitIL(method typesys.Method, cfg *Config) *il.MethodIL {
	return Emit(method, cfg).Body
}

// Emit synthesizes the body of a PInvoke method.
//
// When a slot cannot be marshalled, the import metadata is malformed, or a
// helper cannot be found, the partial work is discarded and the result is a
// diagnostic stub whose body throws an exception naming the method. Emit
// itself never fails. Calling it for a method that is not PInvoke is a
// programming error and panics.
//
// Synthetic descriptors of normal stubs are added to cfg.Symbols.
func Emit(method typesys.Method, cfg *Config) Result {
	if method == nil || !method.IsPInvoke() {
		panic(fmt.Sprintf("stubs: %v is not a PInvoke method", method))
	}
	if cfg == nil {
		panic("stubs: nil Config")
	}
	cfg.complete()

	e := &stubEmitter{
		cfg:    cfg,
		method: method,
		types:  method.OwningType().Context(),
		meta:   method.PInvokeMetadata(),
		log:    Logger().With(zap.Stringer("method", method)),
	}
	res, err := e.emit()
	if err != nil {
		return e.diagnostic(err)
	}

	if cfg.Symbols != nil {
		if res.NativeMethod != nil {
			cfg.Symbols.Add(res.NativeMethod)
		}
		if res.FixupField != nil {
			cfg.Symbols.Add(res.FixupField)
		}
	}
	return res
}

type stubEmitter struct {
	cfg     *Config
	method  typesys.Method
	types   *typesys.Context
	log     *zap.Logger
	emitter *il.Emitter
	meta    typesys.PInvokeMetadata
	state   state
}

func (e *stubEmitter) advance(to state) {
	e.log.Debug("stub state", zap.Stringer("from", e.state), zap.Stringer("to", to))
	e.state = to
}

func (e *stubEmitter) emit() (Result, error) {
	if e.meta.Module == "" {
		return Result{}, errors.Malformed(errors.PhaseBind, "import module name is empty")
	}
	callConv, err := typesys.UnmanagedCallingConvention(e.meta.Attributes)
	if err != nil {
		return Result{}, err
	}
	lazy := e.cfg.UseLazyResolution(e.method, e.meta.Module)
	binding := BindingEager
	if lazy {
		binding = BindingLazy
	}
	e.log.Debug("binding decided", zap.Stringer("binding", binding), zap.String("module", e.meta.Module))

	e.emitter = il.NewEmitter()
	ictx := &interop.Context{Types: e.types, Emitter: e.emitter, Method: e.method, Import: e.meta}
	marshallers, err := interop.BuildMarshallers(ictx, e.cfg.Marshallers)
	if err != nil {
		return Result{}, err
	}
	e.advance(stateMarshallersBuilt)

	var clearErr, saveErr typesys.Method
	if e.meta.Attributes.SetLastError() {
		if clearErr, saveErr, err = e.lastErrorHelpers(); err != nil {
			return Result{}, err
		}
	}

	fnptrLoad := e.emitter.NewCodeStream(interop.StreamFnptrLoad)
	streams := interop.Streams{
		Marshalling:   e.emitter.NewCodeStream(interop.StreamMarshalling),
		CallsiteSetup: e.emitter.NewCodeStream(interop.StreamCallsiteSetup),
		ReturnValue:   e.emitter.NewCodeStream(interop.StreamReturnValue),
		Unmarshalling: e.emitter.NewCodeStream(interop.StreamUnmarshalling),
	}

	if clearErr != nil {
		streams.CallsiteSetup.EmitCall(clearErr)
	}
	for _, m := range marshallers {
		interop.Emit(m, streams)
	}
	e.advance(stateStreamsPopulated)

	res := Result{Kind: NormalStub, Binding: binding}
	nativeSig := interop.NativeSignature(e.method.Signature(), marshallers)
	if lazy {
		if res.FixupField, err = e.emitLazyCall(fnptrLoad, streams.CallsiteSetup, nativeSig, callConv); err != nil {
			return Result{}, err
		}
	} else {
		res.NativeMethod = e.emitEagerCall(streams.CallsiteSetup, nativeSig)
	}
	e.advance(stateCallEmitted)

	if saveErr != nil {
		streams.CallsiteSetup.EmitCall(saveErr)
	}
	e.advance(stateErrorHandlingEmitted)

	streams.Unmarshalling.Emit(il.OpRet)
	if res.Body, err = e.emitter.Link(e.method); err != nil {
		return Result{}, err
	}
	e.advance(stateLinked)
	return res, nil
}

func (e *stubEmitter) lastErrorHelpers() (clearErr, saveErr typesys.Method, err error) {
	marshal, err := e.cfg.helpers(e.method).SystemType(typesys.InteropNamespace, "PInvokeMarshal")
	if err != nil {
		return nil, nil, err
	}
	c, err := marshal.KnownMethod("ClearLastWin32Error", nil)
	if err != nil {
		return nil, nil, err
	}
	s, err := marshal.KnownMethod("SaveLastWin32Error", nil)
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}

// emitLazyCall loads the fixup cell address, resolves it through the
// runtime helper into a function pointer local and calls through it.
func (e *stubEmitter) emitLazyCall(fnptrLoad, callsite *il.CodeStream, nativeSig *typesys.MethodSignature, callConv typesys.MethodSignatureFlags) (*PInvokeLazyFixupField, error) {
	helpers, err := e.cfg.helpers(e.method).HelperType("InteropHelpers")
	if err != nil {
		return nil, err
	}
	resolve, err := helpers.KnownMethod("ResolvePInvoke", nil)
	if err != nil {
		return nil, err
	}
	cellType, err := helpers.NestedType("MethodFixupCell")
	if err != nil {
		return nil, err
	}

	meta := e.meta
	meta.Name = meta.EntryPoint(e.method.Name())
	cell := NewPInvokeLazyFixupField(e.method.OwningType(), cellType, meta)

	fnptr := e.emitter.NewLocal(e.types.WellKnown(typesys.WellKnownIntPtr))
	fnptrLoad.EmitLdsflda(cell)
	fnptrLoad.EmitCall(resolve)
	fnptrLoad.EmitStLoc(fnptr)

	calliSig := nativeSig.WithFlags(e.method.Signature().Flags() | callConv)
	callsite.EmitLdLoc(fnptr)
	callsite.EmitCalli(calliSig)
	return cell, nil
}

// emitEagerCall synthesizes the native target and calls it directly.
func (e *stubEmitter) emitEagerCall(callsite *il.CodeStream, nativeSig *typesys.MethodSignature) *PInvokeTargetNativeMethod {
	meta := e.meta
	meta.Name = meta.EntryPoint(e.method.Name())
	native := NewPInvokeTargetNativeMethod(e.method.OwningType(), nativeSig, meta, e.cfg.NativeMethodIDs.Next())
	callsite.EmitCall(native)
	return native
}

// diagnostic replaces everything emitted so far with a body that throws an
// exception describing why no stub could be produced.
func (e *stubEmitter) diagnostic(reason error) Result {
	e.log.Warn("falling back to diagnostic stub",
		zap.Stringer("state", e.state),
		zap.Error(reason))

	ctor, err := e.exceptionCtor()
	if err != nil {
		panic(fmt.Sprintf("stubs: core library has no Exception(string) constructor: %v", err))
	}

	emitter := il.NewEmitter()
	s := emitter.NewCodeStream("diagnostic")
	s.EmitLdStr(DiagnosticMessage(e.method, reason))
	s.EmitNewobj(ctor)
	s.Emit(il.OpThrow)
	s.Emit(il.OpRet)

	body, err := emitter.Link(e.method)
	if err != nil {
		panic(fmt.Sprintf("stubs: link diagnostic body: %v", err))
	}
	return Result{Body: body, Reason: reason, Kind: DiagnosticStub}
}

func (e *stubEmitter) exceptionCtor() (typesys.Method, error) {
	sig := typesys.NewMethodSignature(0, 0,
		e.types.WellKnown(typesys.WellKnownVoid),
		[]typesys.Type{e.types.WellKnown(typesys.WellKnownString)})
	return e.types.WellKnown(typesys.WellKnownException).KnownMethod(typesys.ConstructorName, sig)
}

// DiagnosticMessage is the exception message a diagnostic stub throws.
func DiagnosticMessage(method typesys.Method, reason error) string {
	switch {
	case errors.IsMalformed(reason):
		return "Method '" + method.String() + "' has malformed interop metadata: " + detailOf(reason)
	case errors.IsUnsupported(reason):
		return "Method '" + method.String() +
			"' requires non-trivial marshalling that is not yet supported by this compiler."
	}
	return "Method '" + method.String() + "' could not be compiled to a native interop stub: " + detailOf(reason)
}

func detailOf(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return err.Error()
}
