package interop

import (
	"github.com/wippyai/interop-stubs/il"
	"github.com/wippyai/interop-stubs/typesys"
)

// Stream names used by the stub emitter, in link order.
const (
	StreamFnptrLoad     = "fnptr-load"
	StreamMarshalling   = "marshalling"
	StreamCallsiteSetup = "callsite-setup"
	StreamReturnValue   = "return-marshalling"
	StreamUnmarshalling = "unmarshalling"
)

// Streams are the four code streams a Marshaller may append to.
type Streams struct {
	Marshalling   *il.CodeStream // pre-call conversion into native locals
	CallsiteSetup *il.CodeStream // argument loads
	ReturnValue   *il.CodeStream // native return to managed return
	Unmarshalling *il.CodeStream // post-call propagation of [out] values
}

// Context is shared by every marshaller of one stub emission.
type Context struct {
	Types   *typesys.Context
	Emitter *il.Emitter
	Method  typesys.Method
	Import  typesys.PInvokeMetadata
}

// Slot identifies one position of a signature: index 0 is the return value,
// 1..N the parameters in declaration order.
type Slot struct {
	Type     typesys.Type
	Metadata typesys.ParameterMetadata
	Index    int
}

// IsReturn reports whether the slot is the return value.
func (s Slot) IsReturn() bool { return s.Index == 0 }

// Arg returns the managed argument index of a parameter slot.
func (s Slot) Arg() int { return s.Index - 1 }

// Marshaller converts the value of one slot between its managed and native
// representation. Marshallers are built fresh for each emission and own no
// resources.
//
// Code is contributed through the optional capability interfaces
// PreCallEmitter, CallsiteEmitter, ReturnEmitter and PostCallEmitter. A
// marshaller never emits a call instruction.
type Marshaller interface {
	Slot() Slot
	ManagedType() typesys.Type
	// NativeType is the type the slot has in the native signature.
	NativeType() typesys.Type
}

// PreCallEmitter converts the managed value before the call.
type PreCallEmitter interface {
	EmitPreCall(s Streams)
}

// CallsiteEmitter loads the native argument at the call site.
type CallsiteEmitter interface {
	EmitCallsite(s Streams)
}

// ReturnEmitter converts the native return value left on the stack.
type ReturnEmitter interface {
	EmitReturn(s Streams)
}

// PostCallEmitter propagates native values back into managed storage.
type PostCallEmitter interface {
	EmitPostCall(s Streams)
}

// Emit runs every capability m implements. Return slots only contribute to
// the return stream; parameter slots never do.
func Emit(m Marshaller, s Streams) {
	if m.Slot().IsReturn() {
		if e, ok := m.(ReturnEmitter); ok {
			e.EmitReturn(s)
		}
		return
	}
	if e, ok := m.(PreCallEmitter); ok {
		e.EmitPreCall(s)
	}
	if e, ok := m.(CallsiteEmitter); ok {
		e.EmitCallsite(s)
	}
	if e, ok := m.(PostCallEmitter); ok {
		e.EmitPostCall(s)
	}
}

// NativeSignature lowers a managed signature through its marshallers. The
// marshallers must be indexed by slot.
func NativeSignature(managed *typesys.MethodSignature, ms []Marshaller) *typesys.MethodSignature {
	params := make([]typesys.Type, 0, len(ms)-1)
	for _, m := range ms[1:] {
		params = append(params, m.NativeType())
	}
	return typesys.NewMethodSignature(managed.Flags(), 0, ms[0].NativeType(), params)
}

type base struct {
	native typesys.Type
	slot   Slot
}

func (b *base) Slot() Slot                { return b.slot }
func (b *base) ManagedType() typesys.Type { return b.slot.Type }
func (b *base) NativeType() typesys.Type  { return b.native }
