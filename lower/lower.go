package lower

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/fixup"
	"github.com/wippyai/interop-stubs/il"
	"github.com/wippyai/interop-stubs/lower/internal/wasm"
	"github.com/wippyai/interop-stubs/stubs"
	"github.com/wippyai/interop-stubs/typesys"
)

// InteropModule is the import module of the runtime helpers.
const InteropModule = "interop"

// MemoryExport is the export name of the module's linear memory.
const MemoryExport = "memory"

// Helper imports from InteropModule.
const (
	ImportClearLastError = "clear_last_error"
	ImportSaveLastError  = "save_last_error"
	ImportGetLastError   = "get_last_error"
	ImportResolvePInvoke = "resolve_pinvoke"
	ImportNewException   = "new_exception"
	ImportThrow          = "throw"

	calliPrefix = "calli_"
)

const (
	// PointerSize is the wasm32 word size used for cells and pointers.
	PointerSize = 4

	// DataBase is where the data image starts. Lower addresses stay unused
	// so a null pointer never aliases data.
	DataBase = 1024

	slotSize = 8
)

var helperImports = map[string]string{
	typesys.InteropNamespace + ".PInvokeMarshal.ClearLastWin32Error": ImportClearLastError,
	typesys.InteropNamespace + ".PInvokeMarshal.SaveLastWin32Error":  ImportSaveLastError,
	typesys.InteropNamespace + ".PInvokeMarshal.GetLastWin32Error":   ImportGetLastError,
	typesys.HelperNamespace + ".InteropHelpers.ResolvePInvoke":       ImportResolvePInvoke,
}

// Signature is a wasm function signature.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

func (s Signature) funcType() wasm.FuncType {
	return wasm.FuncType{Params: s.Params, Results: s.Results}
}

// Equal reports whether both signatures have the same params and results.
func (s Signature) Equal(o Signature) bool {
	return s.funcType().Equal(o.funcType())
}

func (s Signature) String() string { return s.funcType().String() }

// NativeImport is an eagerly bound native entry point.
type NativeImport struct {
	Module    string
	Entry     string
	Signature Signature
}

// Trampoline is an indirect call helper imported from InteropModule. It
// takes the call arguments followed by the function pointer.
type Trampoline struct {
	Name      string
	Signature Signature
}

// Export is one lowered stub.
type Export struct {
	Method typesys.Method
	Name   string
}

// LazyCell is the address of a lazy fixup cell.
type LazyCell struct {
	Field   *stubs.PInvokeLazyFixupField
	Address uint32
}

// Module is the result of lowering a set of stubs.
type Module struct {
	Image       *fixup.Image
	Binary      []byte
	Exports     []Export
	Natives     []NativeImport
	Trampolines []Trampoline
	Cells       []LazyCell
}

// ExportFor returns the export name of a stub for m.
func (m *Module) ExportFor(method typesys.Method) (string, bool) {
	for _, e := range m.Exports {
		if e.Method == method {
			return e.Name, true
		}
	}
	return "", false
}

// ValueType maps a managed or native type to its wasm32 value type. Void has
// no value type.
func ValueType(t typesys.Type) (api.ValueType, bool) {
	switch t.Kind() {
	case typesys.KindBoolean, typesys.KindChar,
		typesys.KindSByte, typesys.KindByte,
		typesys.KindInt16, typesys.KindUInt16,
		typesys.KindInt32, typesys.KindUInt32,
		typesys.KindIntPtr, typesys.KindUIntPtr,
		typesys.KindPointer, typesys.KindByRef,
		typesys.KindString, typesys.KindObject, typesys.KindClass, typesys.KindArray:
		return api.ValueTypeI32, true
	case typesys.KindInt64, typesys.KindUInt64:
		return api.ValueTypeI64, true
	case typesys.KindSingle:
		return api.ValueTypeF32, true
	case typesys.KindDouble:
		return api.ValueTypeF64, true
	}
	return 0, false
}

// SignatureOf maps a method signature to a wasm signature.
func SignatureOf(sig *typesys.MethodSignature) (Signature, error) {
	var out Signature
	for i, p := range sig.Params() {
		vt, ok := ValueType(p)
		if !ok {
			return Signature{}, errors.UnsupportedMarshalling(i+1, p.String(), "no wasm value type")
		}
		out.Params = append(out.Params, vt)
	}
	if ret := sig.ReturnType(); ret.Kind() != typesys.KindVoid {
		vt, ok := ValueType(ret)
		if !ok {
			return Signature{}, errors.UnsupportedMarshalling(0, ret.String(), "no wasm value type")
		}
		out.Results = []api.ValueType{vt}
	}
	return out, nil
}

// exportSignature is the wasm signature of a stub's export. A body that
// never reads its arguments and never returns, such as a diagnostic stub,
// gets opaque i32 words for types without a value type so that it can still
// be exported and throw when called.
func exportSignature(body *il.MethodIL) (Signature, error) {
	msig := body.Owner().Signature()
	sig, err := SignatureOf(msig)
	if err == nil || !throwsOnly(body) {
		return sig, err
	}

	opaque := func(t typesys.Type) api.ValueType {
		if vt, ok := ValueType(t); ok {
			return vt
		}
		return api.ValueTypeI32
	}
	sig = Signature{}
	for _, p := range msig.Params() {
		sig.Params = append(sig.Params, opaque(p))
	}
	if ret := msig.ReturnType(); ret.Kind() != typesys.KindVoid {
		sig.Results = []api.ValueType{opaque(ret)}
	}
	Logger().Warn("lowering stub with opaque signature",
		zap.String("method", body.Owner().String()),
		zap.Error(err))
	return sig, nil
}

// throwsOnly reports whether body throws before it returns or touches an
// argument. Stub bodies are straight-line code.
func throwsOnly(body *il.MethodIL) bool {
	for _, in := range body.Instructions() {
		switch in.Opcode {
		case il.OpLdarg, il.OpLdarga, il.OpRet:
			return false
		case il.OpThrow:
			return true
		}
	}
	return false
}

// TrampolineName names the indirect call helper for sig: the result code
// followed by one code per parameter, with v for no result, i for i32, j for
// i64, f for f32 and d for f64.
func TrampolineName(sig Signature) string {
	var b strings.Builder
	b.WriteString(calliPrefix)
	if len(sig.Results) == 0 {
		b.WriteByte('v')
	}
	for _, r := range sig.Results {
		b.WriteByte(typeCode(r))
	}
	for _, p := range sig.Params {
		b.WriteByte(typeCode(p))
	}
	return b.String()
}

func typeCode(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 'j'
	case api.ValueTypeF32:
		return 'f'
	case api.ValueTypeF64:
		return 'd'
	}
	return 'i'
}

// Lower translates linked stub bodies into one wasm32 module. Each body
// becomes an exported function named after its method. Lazy fixup cells and
// string literals are laid out in a data segment at DataBase.
func Lower(bodies []*il.MethodIL) (*Module, error) {
	cells, err := fixup.NewBuilder(PointerSize)
	if err != nil {
		return nil, err
	}
	ml := &moduleLowerer{
		builder: wasm.NewModuleBuilder(),
		cells:   cells,
		strings: make(map[string]*fixup.Node),
		names:   make(map[string]int),
		natives: make(map[string]bool),
		tramps:  make(map[string]bool),
		out:     &Module{},
	}

	if err := ml.collectData(bodies); err != nil {
		return nil, err
	}
	img, err := cells.Layout(DataBase)
	if err != nil {
		return nil, err
	}
	ml.image = img
	ml.out.Image = img
	ml.next = alignUp(uint32(img.End()), slotSize)

	for _, n := range cells.Nodes() {
		if n.Field == nil {
			continue
		}
		addr, _ := img.CellAddress(n.Field)
		ml.out.Cells = append(ml.out.Cells, LazyCell{Field: n.Field, Address: uint32(addr)})
	}

	for _, body := range bodies {
		if err := ml.lowerBody(body); err != nil {
			return nil, err
		}
	}

	pages := (ml.next + wasm.PageSize - 1) / wasm.PageSize
	if pages == 0 {
		pages = 1
	}
	ml.builder.SetMemory(pages, MemoryExport)
	ml.builder.AddData(DataBase, img.Data)
	ml.out.Binary = ml.builder.Build()

	Logger().Debug("lowered stubs",
		zap.Int("stubs", len(ml.out.Exports)),
		zap.Int("natives", len(ml.out.Natives)),
		zap.Int("cells", len(ml.out.Cells)),
		zap.Int("bytes", len(ml.out.Binary)))
	return ml.out, nil
}

type moduleLowerer struct {
	builder *wasm.ModuleBuilder
	cells   *fixup.Builder
	image   *fixup.Image
	out     *Module
	strings map[string]*fixup.Node
	names   map[string]int
	natives map[string]bool
	tramps  map[string]bool
	next    uint32
}

// collectData registers every fixup cell and string literal the bodies
// reference so the image can be laid out before any code is generated.
func (ml *moduleLowerer) collectData(bodies []*il.MethodIL) error {
	for _, body := range bodies {
		for pc, in := range body.Instructions() {
			tok, ok := in.Token()
			if !ok {
				continue
			}
			switch in.Opcode {
			case il.OpLdsflda:
				f, ok := body.Object(tok).(*stubs.PInvokeLazyFixupField)
				if !ok {
					return lowerErr(body, pc, errors.KindUnsupported, "static field %v has no storage", body.Object(tok))
				}
				ml.cells.AddMethodCell(f)
			case il.OpLdstr:
				s, _ := body.Object(tok).(string)
				ml.strings[s] = ml.cells.AddString(s)
			}
		}
	}
	return nil
}

func (ml *moduleLowerer) exportName(m typesys.Method) string {
	name := m.Name()
	if owner := m.OwningType(); owner != nil {
		name = owner.FullName() + "." + name
	}
	n := ml.names[name]
	ml.names[name] = n + 1
	if n > 0 {
		name += "#" + strconv.Itoa(n+1)
	}
	return name
}

func (ml *moduleLowerer) importFunc(body *il.MethodIL, pc int, module, name string, sig Signature) (uint32, error) {
	idx, err := ml.builder.ImportFunc(module, name, sig.funcType())
	if err != nil {
		return 0, errors.New(errors.PhaseLower, errors.KindTypeMismatch).
			Method(body.Owner().String()).
			Path(label(pc)).
			Cause(err).
			Detail("conflicting import").
			Build()
	}
	return idx, nil
}

func (ml *moduleLowerer) lowerBody(body *il.MethodIL) error {
	owner := body.Owner()
	sig, err := exportSignature(body)
	if err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindUnsupported, err, "stub "+owner.String())
	}

	f := &funcLowerer{
		ml:      ml,
		body:    body,
		params:  sig.Params,
		results: sig.Results,
		scratch: make(map[api.ValueType]uint32),
	}
	if err := f.allocLocals(); err != nil {
		return err
	}
	for pc, in := range body.Instructions() {
		if err := f.lower(pc, in); err != nil {
			return err
		}
	}

	name := ml.exportName(owner)
	ml.builder.AddFunc(name, sig.funcType(), f.locals, f.code.Bytes())
	ml.out.Exports = append(ml.out.Exports, Export{Name: name, Method: owner})
	Logger().Debug("lowered stub", zap.String("export", name), zap.Int("bytes", f.code.Len()))
	return nil
}

type localSlot struct {
	typ      typesys.Type
	vt       api.ValueType
	index    uint32
	addr     uint32
	inMemory bool
}

// load returns the indirect load matching the slot's type. Reference
// typed slots hold a pointer-size word.
func (s localSlot) load() il.Opcode {
	if op, ok := il.LdindFor(s.typ.Kind()); ok {
		return op
	}
	return il.OpLdindI
}

func (s localSlot) store() il.Opcode {
	if op, ok := il.StindFor(s.typ.Kind()); ok {
		return op
	}
	return il.OpStindI
}

type funcLowerer struct {
	ml          *moduleLowerer
	body        *il.MethodIL
	scratch     map[api.ValueType]uint32
	params      []api.ValueType
	results     []api.ValueType
	locals      []api.ValueType
	slots       []localSlot
	stack       []api.ValueType
	code        wasm.Code
	unreachable bool
}

// allocLocals places address-taken locals in static memory and the rest in
// wasm locals.
func (f *funcLowerer) allocLocals() error {
	addressTaken := make(map[il.Local]bool)
	for _, in := range f.body.Instructions() {
		if in.Opcode == il.OpLdloca {
			l, _ := in.Local()
			addressTaken[l] = true
		}
	}

	for i, t := range f.body.Locals() {
		vt, ok := ValueType(t)
		if !ok {
			return lowerErr(f.body, -1, errors.KindUnsupported, "local %d of type %s", i, t)
		}
		slot := localSlot{typ: t, vt: vt}
		if addressTaken[il.Local(i)] {
			slot.inMemory = true
			slot.addr = f.ml.next
			f.ml.next += slotSize
		} else {
			slot.index = f.newLocal(vt)
		}
		f.slots = append(f.slots, slot)
	}
	return nil
}

func (f *funcLowerer) newLocal(vt api.ValueType) uint32 {
	f.locals = append(f.locals, vt)
	return uint32(len(f.params) + len(f.locals) - 1)
}

func (f *funcLowerer) scratchLocal(vt api.ValueType) uint32 {
	if idx, ok := f.scratch[vt]; ok {
		return idx
	}
	idx := f.newLocal(vt)
	f.scratch[vt] = idx
	return idx
}

func (f *funcLowerer) push(vt api.ValueType) {
	f.stack = append(f.stack, vt)
}

func (f *funcLowerer) popAny(pc int) (api.ValueType, error) {
	if len(f.stack) == 0 {
		if f.unreachable {
			return api.ValueTypeI32, nil
		}
		return 0, lowerErr(f.body, pc, errors.KindInvalidData, "evaluation stack underflow")
	}
	vt := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return vt, nil
}

func (f *funcLowerer) pop(pc int, want api.ValueType) error {
	if len(f.stack) == 0 && f.unreachable {
		return nil
	}
	got, err := f.popAny(pc)
	if err != nil {
		return err
	}
	if got != want {
		return errors.New(errors.PhaseLower, errors.KindTypeMismatch).
			Method(f.body.Owner().String()).
			Path(label(pc)).
			Detail("stack has %s, want %s", api.ValueTypeName(got), api.ValueTypeName(want)).
			Build()
	}
	return nil
}

func (f *funcLowerer) popArgs(pc int, params []api.ValueType) error {
	for i := len(params) - 1; i >= 0; i-- {
		if err := f.pop(pc, params[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *funcLowerer) endBlock() {
	f.stack = f.stack[:0]
	f.unreachable = true
}

func (f *funcLowerer) lower(pc int, in il.Instruction) error {
	switch op := in.Opcode; {
	case op == il.OpNop:
		f.code.Op(wasm.OpNop)

	case op == il.OpLdarg:
		idx, _ := in.Arg()
		if idx < 0 || idx >= len(f.params) {
			return lowerErr(f.body, pc, errors.KindOutOfBounds, "argument %d of %d", idx, len(f.params))
		}
		f.code.LocalGet(uint32(idx))
		f.push(f.params[idx])

	case op == il.OpLdloc:
		l, _ := in.Local()
		slot := f.slots[l]
		if slot.inMemory {
			f.code.I32Const(int32(slot.addr))
			return f.emitLoad(pc, slot.load())
		}
		f.code.LocalGet(slot.index)
		f.push(slot.vt)

	case op == il.OpStloc:
		l, _ := in.Local()
		slot := f.slots[l]
		if err := f.pop(pc, slot.vt); err != nil {
			return err
		}
		if slot.inMemory {
			tmp := f.scratchLocal(slot.vt)
			f.code.LocalSet(tmp)
			f.code.I32Const(int32(slot.addr))
			f.code.LocalGet(tmp)
			return f.emitStore(pc, slot.store())
		}
		f.code.LocalSet(slot.index)

	case op == il.OpLdloca:
		l, _ := in.Local()
		f.code.I32Const(int32(f.slots[l].addr))
		f.push(api.ValueTypeI32)

	case op == il.OpLdcI4:
		imm, _ := in.Imm.(il.I4Imm)
		f.code.I32Const(imm.Value)
		f.push(api.ValueTypeI32)

	case op == il.OpLdcI8:
		imm, _ := in.Imm.(il.I8Imm)
		f.code.I64Const(imm.Value)
		f.push(api.ValueTypeI64)

	case op == il.OpLdstr:
		tok, _ := in.Token()
		s, _ := f.body.Object(tok).(string)
		addr, _ := f.ml.image.Address(f.ml.strings[s])
		f.code.I32Const(int32(addr))
		f.push(api.ValueTypeI32)

	case op == il.OpLdnull:
		f.code.I32Const(0)
		f.push(api.ValueTypeI32)

	case op == il.OpPop:
		if _, err := f.popAny(pc); err != nil {
			return err
		}
		f.code.Op(wasm.OpDrop)

	case op == il.OpLdsflda:
		tok, _ := in.Token()
		cell := f.body.Object(tok).(*stubs.PInvokeLazyFixupField)
		addr, _ := f.ml.image.CellAddress(cell)
		f.code.I32Const(int32(addr))
		f.push(api.ValueTypeI32)

	case op == il.OpCall:
		tok, _ := in.Token()
		return f.lowerCall(pc, f.body.Object(tok))

	case op == il.OpCalli:
		tok, _ := in.Token()
		sig, ok := f.body.Object(tok).(*typesys.MethodSignature)
		if !ok {
			return lowerErr(f.body, pc, errors.KindInvalidData, "calli without signature")
		}
		return f.lowerCalli(pc, sig)

	case op == il.OpNewobj:
		tok, _ := in.Token()
		return f.lowerNewobj(pc, f.body.Object(tok))

	case op == il.OpThrow:
		if err := f.pop(pc, api.ValueTypeI32); err != nil {
			return err
		}
		idx, err := f.ml.importFunc(f.body, pc, InteropModule, ImportThrow, Signature{Params: []api.ValueType{api.ValueTypeI32}})
		if err != nil {
			return err
		}
		f.code.Call(idx)
		f.code.Op(wasm.OpUnreachable)
		f.endBlock()

	case op == il.OpRet:
		if err := f.popArgs(pc, f.results); err != nil {
			return err
		}
		f.code.Op(wasm.OpReturn)
		f.endBlock()

	case op == il.OpCeq, op == il.OpCgtUn:
		return f.lowerCompare(pc, op)

	case op.IsLdind():
		if err := f.pop(pc, api.ValueTypeI32); err != nil {
			return err
		}
		return f.emitLoad(pc, op)

	case op.IsStind():
		if _, err := f.popAny(pc); err != nil {
			return err
		}
		if err := f.pop(pc, api.ValueTypeI32); err != nil {
			return err
		}
		return f.emitStore(pc, op)

	default:
		return lowerErr(f.body, pc, errors.KindUnsupported, "opcode %s", op)
	}
	return nil
}

// emitLoad expects an address on the wasm stack and pushes the loaded value.
// The caller accounts for the address on the type stack.
func (f *funcLowerer) emitLoad(pc int, op il.Opcode) error {
	switch op {
	case il.OpLdindI1:
		f.code.Mem(wasm.OpI32Load8S, 0)
	case il.OpLdindU1:
		f.code.Mem(wasm.OpI32Load8U, 0)
	case il.OpLdindI2:
		f.code.Mem(wasm.OpI32Load16S, 1)
	case il.OpLdindU2:
		f.code.Mem(wasm.OpI32Load16U, 1)
	case il.OpLdindI4, il.OpLdindI:
		f.code.Mem(wasm.OpI32Load, 2)
	case il.OpLdindI8:
		f.code.Mem(wasm.OpI64Load, 3)
		f.push(api.ValueTypeI64)
		return nil
	case il.OpLdindR4:
		f.code.Mem(wasm.OpF32Load, 2)
		f.push(api.ValueTypeF32)
		return nil
	case il.OpLdindR8:
		f.code.Mem(wasm.OpF64Load, 3)
		f.push(api.ValueTypeF64)
		return nil
	default:
		return lowerErr(f.body, pc, errors.KindUnsupported, "indirect load %s", op)
	}
	f.push(api.ValueTypeI32)
	return nil
}

// emitStore expects an address and a value on the wasm stack.
func (f *funcLowerer) emitStore(pc int, op il.Opcode) error {
	switch op {
	case il.OpStindI1:
		f.code.Mem(wasm.OpI32Store8, 0)
	case il.OpStindI2:
		f.code.Mem(wasm.OpI32Store16, 1)
	case il.OpStindI4, il.OpStindI:
		f.code.Mem(wasm.OpI32Store, 2)
	case il.OpStindI8:
		f.code.Mem(wasm.OpI64Store, 3)
	case il.OpStindR4:
		f.code.Mem(wasm.OpF32Store, 2)
	case il.OpStindR8:
		f.code.Mem(wasm.OpF64Store, 3)
	default:
		return lowerErr(f.body, pc, errors.KindUnsupported, "indirect store %s", op)
	}
	return nil
}

func (f *funcLowerer) lowerCompare(pc int, op il.Opcode) error {
	b, err := f.popAny(pc)
	if err != nil {
		return err
	}
	if err := f.pop(pc, b); err != nil {
		return err
	}
	var wop byte
	switch {
	case op == il.OpCeq && b == api.ValueTypeI32:
		wop = wasm.OpI32Eq
	case op == il.OpCeq && b == api.ValueTypeI64:
		wop = wasm.OpI64Eq
	case op == il.OpCeq && b == api.ValueTypeF32:
		wop = wasm.OpF32Eq
	case op == il.OpCeq && b == api.ValueTypeF64:
		wop = wasm.OpF64Eq
	case op == il.OpCgtUn && b == api.ValueTypeI32:
		wop = wasm.OpI32GtU
	case op == il.OpCgtUn && b == api.ValueTypeI64:
		wop = wasm.OpI64GtU
	default:
		return lowerErr(f.body, pc, errors.KindUnsupported, "%s on %s", op, api.ValueTypeName(b))
	}
	f.code.Op(wop)
	f.push(api.ValueTypeI32)
	return nil
}

func (f *funcLowerer) lowerCall(pc int, target any) error {
	var module, name string
	var msig *typesys.MethodSignature

	switch m := target.(type) {
	case *stubs.PInvokeTargetNativeMethod:
		module, name, msig = m.Module(), m.EntryPoint(), m.Signature()
	case typesys.Method:
		key := m.Name()
		if owner := m.OwningType(); owner != nil {
			key = owner.FullName() + "." + key
		}
		helper, ok := helperImports[key]
		if !ok {
			return lowerErr(f.body, pc, errors.KindUnsupported, "call to managed method %s", m)
		}
		module, name, msig = InteropModule, helper, m.Signature()
	default:
		return lowerErr(f.body, pc, errors.KindInvalidData, "call target %T", target)
	}

	sig, err := SignatureOf(msig)
	if err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindUnsupported, err, module+"."+name)
	}
	idx, err := f.ml.importFunc(f.body, pc, module, name, sig)
	if err != nil {
		return err
	}
	if module != InteropModule {
		f.ml.addNative(module, name, sig)
	}
	return f.emitCall(pc, idx, sig)
}

func (f *funcLowerer) lowerCalli(pc int, msig *typesys.MethodSignature) error {
	sig, err := SignatureOf(msig)
	if err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindUnsupported, err, "calli")
	}
	name := TrampolineName(sig)
	tramp := Signature{
		Params:  append(append([]api.ValueType(nil), sig.Params...), api.ValueTypeI32),
		Results: sig.Results,
	}
	idx, err := f.ml.importFunc(f.body, pc, InteropModule, name, tramp)
	if err != nil {
		return err
	}
	if !f.ml.tramps[name] {
		f.ml.tramps[name] = true
		f.ml.out.Trampolines = append(f.ml.out.Trampolines, Trampoline{Name: name, Signature: sig})
	}
	return f.emitCall(pc, idx, tramp)
}

func (f *funcLowerer) lowerNewobj(pc int, target any) error {
	ctor, ok := target.(typesys.Method)
	if !ok || !isExceptionCtor(ctor) {
		return lowerErr(f.body, pc, errors.KindUnsupported, "newobj %v", target)
	}
	sig := Signature{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	idx, err := f.ml.importFunc(f.body, pc, InteropModule, ImportNewException, sig)
	if err != nil {
		return err
	}
	return f.emitCall(pc, idx, sig)
}

func isExceptionCtor(m typesys.Method) bool {
	owner := m.OwningType()
	sig := m.Signature()
	return owner != nil && owner.FullName() == "System.Exception" &&
		m.Name() == typesys.ConstructorName &&
		sig.Len() == 1 && sig.Param(0).Kind() == typesys.KindString
}

func (f *funcLowerer) emitCall(pc int, idx uint32, sig Signature) error {
	if err := f.popArgs(pc, sig.Params); err != nil {
		return err
	}
	f.code.Call(idx)
	for _, r := range sig.Results {
		f.push(r)
	}
	return nil
}

func (ml *moduleLowerer) addNative(module, entry string, sig Signature) {
	k := module + "#" + entry
	if ml.natives[k] {
		return
	}
	ml.natives[k] = true
	ml.out.Natives = append(ml.out.Natives, NativeImport{Module: module, Entry: entry, Signature: sig})
}

func lowerErr(body *il.MethodIL, pc int, kind errors.Kind, format string, args ...any) error {
	b := errors.New(errors.PhaseLower, kind).Method(body.Owner().String())
	if pc >= 0 {
		b = b.Path(label(pc))
	}
	return b.Detail(format, args...).Build()
}

func label(pc int) string {
	return fmt.Sprintf("IL_%04x", pc)
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
