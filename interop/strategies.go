package interop

import (
	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/il"
	"github.com/wippyai/interop-stubs/typesys"
)

// DefaultRegistry returns a new registry with the built-in strategies:
// blittable primitives and unmanaged pointers, void returns, Boolean, Char
// and byrefs to blittable primitives. Every other kind is unsupported.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterBulk(blittableKinds, FactoryFunc(newBlittable), "blittable")
	r.Register(typesys.KindPointer, FactoryFunc(newBlittable), "pointer")
	r.Register(typesys.KindVoid, FactoryFunc(newVoid), "void")
	r.Register(typesys.KindBoolean, FactoryFunc(newBoolean), "bool")
	r.Register(typesys.KindChar, FactoryFunc(newChar), "char")
	r.Register(typesys.KindByRef, FactoryFunc(newByRef), "byref")
	return r
}

var blittableKinds = []typesys.Kind{
	typesys.KindSByte, typesys.KindByte,
	typesys.KindInt16, typesys.KindUInt16,
	typesys.KindInt32, typesys.KindUInt32,
	typesys.KindInt64, typesys.KindUInt64,
	typesys.KindIntPtr, typesys.KindUIntPtr,
	typesys.KindSingle, typesys.KindDouble,
}

// directives lists the explicit marshal-as values each blittable kind
// accepts besides the default.
var directives = map[typesys.Kind][]typesys.NativeTypeKind{
	typesys.KindSByte:   {typesys.NativeI1},
	typesys.KindByte:    {typesys.NativeU1},
	typesys.KindInt16:   {typesys.NativeI2},
	typesys.KindUInt16:  {typesys.NativeU2},
	typesys.KindInt32:   {typesys.NativeI4},
	typesys.KindUInt32:  {typesys.NativeU4},
	typesys.KindInt64:   {typesys.NativeI8},
	typesys.KindUInt64:  {typesys.NativeU8},
	typesys.KindIntPtr:  {typesys.NativeSysInt},
	typesys.KindUIntPtr: {typesys.NativeSysUInt},
	typesys.KindSingle:  {typesys.NativeR4},
	typesys.KindDouble:  {typesys.NativeR8},
	typesys.KindChar:    {typesys.NativeU2, typesys.NativeI2},
}

func checkDirective(slot Slot) error {
	nt := slot.Metadata.NativeType()
	if nt == typesys.NativeDefault {
		return nil
	}
	for _, ok := range directives[slot.Type.Kind()] {
		if nt == ok {
			return nil
		}
	}
	return errors.UnsupportedMarshalling(slot.Index, slot.Type.String(),
		"marshal-as "+nt.String()+" is not supported for "+slot.Type.Kind().String())
}

// blittableMarshaller passes a value whose managed and native
// representations are identical.
type blittableMarshaller struct {
	base
}

func newBlittable(_ *Context, slot Slot) (Marshaller, error) {
	if slot.Type.Kind() != typesys.KindPointer {
		if err := checkDirective(slot); err != nil {
			return nil, err
		}
	} else if slot.Metadata.MarshalAs != nil {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(), "pointers take no marshal-as directive")
	}
	return &blittableMarshaller{base{native: slot.Type, slot: slot}}, nil
}

func (m *blittableMarshaller) EmitCallsite(s Streams) {
	s.CallsiteSetup.EmitLdArg(m.slot.Arg())
}

type voidMarshaller struct {
	base
}

func newVoid(_ *Context, slot Slot) (Marshaller, error) {
	if !slot.IsReturn() {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(), "void is only valid as a return type")
	}
	return &voidMarshaller{base{native: slot.Type, slot: slot}}, nil
}

// booleanMarshaller maps the managed one-byte bool to a 4-byte BOOL, or to
// a one-byte value under marshal-as U1/I1. Values are normalized to 0/1 in
// both directions.
type booleanMarshaller struct {
	base
	ctx   *Context
	local il.Local
}

func newBoolean(ctx *Context, slot Slot) (Marshaller, error) {
	var native typesys.Type
	switch slot.Metadata.NativeType() {
	case typesys.NativeDefault, typesys.NativeBoolean, typesys.NativeI4, typesys.NativeU4:
		native = ctx.Types.WellKnown(typesys.WellKnownInt32)
	case typesys.NativeU1, typesys.NativeI1:
		native = ctx.Types.WellKnown(typesys.WellKnownByte)
	default:
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(),
			"marshal-as "+slot.Metadata.NativeType().String()+" is not supported for bool")
	}
	return &booleanMarshaller{base: base{native: native, slot: slot}, ctx: ctx}, nil
}

func emitNormalize(s *il.CodeStream) {
	s.EmitLdcI4(0)
	s.Emit(il.OpCeq)
	s.EmitLdcI4(0)
	s.Emit(il.OpCeq)
}

func (m *booleanMarshaller) EmitPreCall(s Streams) {
	m.local = m.ctx.Emitter.NewLocal(m.native)
	s.Marshalling.EmitLdArg(m.slot.Arg())
	emitNormalize(s.Marshalling)
	s.Marshalling.EmitStLoc(m.local)
}

func (m *booleanMarshaller) EmitCallsite(s Streams) {
	s.CallsiteSetup.EmitLdLoc(m.local)
}

func (m *booleanMarshaller) EmitReturn(s Streams) {
	emitNormalize(s.ReturnValue)
}

// charMarshaller passes UTF-16 code units unchanged. Ansi narrowing is not
// implemented.
type charMarshaller struct {
	base
}

func newChar(ctx *Context, slot Slot) (Marshaller, error) {
	if ctx.Import.Attributes.CharSet() == typesys.PInvokeCharSetAnsi {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(), "ansi char conversion is not supported")
	}
	if err := checkDirective(slot); err != nil {
		return nil, err
	}
	native := ctx.Types.WellKnown(typesys.WellKnownUInt16)
	return &charMarshaller{base{native: native, slot: slot}}, nil
}

func (m *charMarshaller) EmitCallsite(s Streams) {
	s.CallsiteSetup.EmitLdArg(m.slot.Arg())
}

// byRefMarshaller passes a managed reference to a blittable primitive as a
// pointer to a native copy. [out]-only slots skip the copy-in and
// [in]-only slots skip the copy-out.
type byRefMarshaller struct {
	base
	ctx   *Context
	elem  typesys.Type
	local il.Local
	ldind il.Opcode
	stind il.Opcode
}

func newByRef(ctx *Context, slot Slot) (Marshaller, error) {
	if slot.IsReturn() {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(), "byref returns are not supported")
	}
	if slot.Metadata.MarshalAs != nil {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(), "byref takes no marshal-as directive")
	}
	ref, ok := slot.Type.(*typesys.ParameterizedType)
	if !ok {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(), "byref without element type")
	}
	elem := ref.Element()
	if !isBlittable(elem.Kind()) {
		return nil, errors.UnsupportedMarshalling(slot.Index, slot.Type.String(),
			"byref to "+elem.Kind().String()+" is not supported")
	}
	ldind, _ := il.LdindFor(elem.Kind())
	stind, _ := il.StindFor(elem.Kind())
	return &byRefMarshaller{
		base:  base{native: ctx.Types.PointerType(elem), slot: slot},
		ctx:   ctx,
		elem:  elem,
		ldind: ldind,
		stind: stind,
	}, nil
}

func (m *byRefMarshaller) copyIn() bool {
	a := m.slot.Metadata.Attributes
	return !a.IsOut() || a.IsIn()
}

func (m *byRefMarshaller) copyOut() bool {
	a := m.slot.Metadata.Attributes
	return !a.IsIn() || a.IsOut()
}

func (m *byRefMarshaller) EmitPreCall(s Streams) {
	m.local = m.ctx.Emitter.NewLocal(m.elem)
	if !m.copyIn() {
		return
	}
	s.Marshalling.EmitLdArg(m.slot.Arg())
	s.Marshalling.Emit(m.ldind)
	s.Marshalling.EmitStLoc(m.local)
}

func (m *byRefMarshaller) EmitCallsite(s Streams) {
	s.CallsiteSetup.EmitLdLoca(m.local)
}

func (m *byRefMarshaller) EmitPostCall(s Streams) {
	if !m.copyOut() {
		return
	}
	s.Unmarshalling.EmitLdArg(m.slot.Arg())
	s.Unmarshalling.EmitLdLoc(m.local)
	s.Unmarshalling.Emit(m.stind)
}

func isBlittable(k typesys.Kind) bool {
	for _, b := range blittableKinds {
		if k == b {
			return true
		}
	}
	return k == typesys.KindPointer
}
