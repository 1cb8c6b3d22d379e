package stubs

import (
	"strconv"

	"github.com/wippyai/interop-stubs/symtab"
	"github.com/wippyai/interop-stubs/typesys"
)

// PInvokeTargetNativeMethod is the native function an eagerly bound stub
// calls. All of its signature types are native representations. It has no
// body: consumers emit a reference to an external symbol instead of
// compiling it.
type PInvokeTargetNativeMethod struct {
	owner *typesys.DefType
	sig   *typesys.MethodSignature
	meta  typesys.PInvokeMetadata
	seq   uint64
}

var (
	_ typesys.Method = (*PInvokeTargetNativeMethod)(nil)
	_ symtab.Symbol  = (*PInvokeTargetNativeMethod)(nil)
)

// NewPInvokeTargetNativeMethod creates the descriptor. meta.Name must
// already hold the resolved entry point.
func NewPInvokeTargetNativeMethod(owner *typesys.DefType, sig *typesys.MethodSignature, meta typesys.PInvokeMetadata, seq uint64) *PInvokeTargetNativeMethod {
	return &PInvokeTargetNativeMethod{owner: owner, sig: sig, meta: meta, seq: seq}
}

func (m *PInvokeTargetNativeMethod) OwningType() *typesys.DefType                   { return m.owner }
func (m *PInvokeTargetNativeMethod) Signature() *typesys.MethodSignature            { return m.sig }
func (m *PInvokeTargetNativeMethod) IsPInvoke() bool                                { return true }
func (m *PInvokeTargetNativeMethod) PInvokeMetadata() typesys.PInvokeMetadata       { return m.meta }
func (m *PInvokeTargetNativeMethod) ParameterMetadata() []typesys.ParameterMetadata { return nil }
func (m *PInvokeTargetNativeMethod) SequenceNumber() uint64                         { return m.seq }

// HasBody is always false.
func (m *PInvokeTargetNativeMethod) HasBody() bool { return false }

// EntryPoint returns the native symbol the method binds to.
func (m *PInvokeTargetNativeMethod) EntryPoint() string { return m.meta.Name }

// Module returns the native library the entry point lives in.
func (m *PInvokeTargetNativeMethod) Module() string { return m.meta.Module }

// Name is unique per sequence number even when entry points repeat.
func (m *PInvokeTargetNativeMethod) Name() string {
	return "__pInvokeImpl" + m.meta.Name + strconv.FormatUint(m.seq, 10)
}

// SymbolName implements symtab.Symbol.
func (m *PInvokeTargetNativeMethod) SymbolName() string { return m.Name() }

func (m *PInvokeTargetNativeMethod) String() string {
	return "[EXTERNAL]" + m.Name()
}

// PInvokeLazyFixupField is the static fixup cell a lazily bound stub
// resolves its target through. Its storage is raw data laid out by the fixup
// package from the carried metadata; identity is the cell's key.
type PInvokeLazyFixupField struct {
	owner    *typesys.DefType
	cellType *typesys.DefType
	meta     typesys.PInvokeMetadata
}

var (
	_ typesys.Field = (*PInvokeLazyFixupField)(nil)
	_ symtab.Symbol = (*PInvokeLazyFixupField)(nil)
)

// NewPInvokeLazyFixupField creates the descriptor. cellType is the helper
// MethodFixupCell record.
func NewPInvokeLazyFixupField(owner, cellType *typesys.DefType, meta typesys.PInvokeMetadata) *PInvokeLazyFixupField {
	return &PInvokeLazyFixupField{owner: owner, cellType: cellType, meta: meta}
}

func (f *PInvokeLazyFixupField) OwningType() *typesys.DefType             { return f.owner }
func (f *PInvokeLazyFixupField) FieldType() typesys.Type                  { return f.cellType }
func (f *PInvokeLazyFixupField) PInvokeMetadata() typesys.PInvokeMetadata { return f.meta }
func (f *PInvokeLazyFixupField) IsStatic() bool                           { return true }
func (f *PInvokeLazyFixupField) IsInitOnly() bool                         { return false }
func (f *PInvokeLazyFixupField) IsLiteral() bool                          { return false }
func (f *PInvokeLazyFixupField) IsThreadStatic() bool                     { return false }
func (f *PInvokeLazyFixupField) HasRVA() bool                             { return true }

func (f *PInvokeLazyFixupField) Name() string {
	return "__pInvokeFixup" + f.meta.Name
}

// SymbolName implements symtab.Symbol. Distinct cells may share a name;
// data emission disambiguates them by identity.
func (f *PInvokeLazyFixupField) SymbolName() string { return f.Name() }

func (f *PInvokeLazyFixupField) String() string {
	return f.owner.FullName() + "::" + f.Name()
}
