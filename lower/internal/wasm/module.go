package wasm

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// FuncType is a function signature.
type FuncType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Equal reports whether both types have the same params and results.
func (t FuncType) Equal(o FuncType) bool {
	return t.key() == o.key()
}

func (t FuncType) key() string {
	var b strings.Builder
	for _, p := range t.Params {
		b.WriteString(api.ValueTypeName(p))
		b.WriteByte(',')
	}
	b.WriteString("->")
	for _, r := range t.Results {
		b.WriteString(api.ValueTypeName(r))
		b.WriteByte(',')
	}
	return b.String()
}

func (t FuncType) String() string {
	names := func(ts []api.ValueType) string {
		s := make([]string, len(ts))
		for i, v := range ts {
			s[i] = api.ValueTypeName(v)
		}
		return strings.Join(s, " ")
	}
	return "(" + names(t.Params) + ") -> (" + names(t.Results) + ")"
}

type funcImport struct {
	module string
	name   string
	typ    uint32
}

type function struct {
	export string
	locals []api.ValueType
	body   []byte
	typ    uint32
}

type dataSegment struct {
	data   []byte
	offset uint32
}

// ModuleBuilder assembles a module. Imported functions take the low
// function indices and bodies only ever call imports, so imports may be
// added after functions.
type ModuleBuilder struct {
	typeIndex map[string]uint32
	importIdx map[string]uint32
	memExport string
	types     []FuncType
	imports   []funcImport
	funcs     []function
	data      []dataSegment
	memPages  uint32
	hasMemory bool
}

// NewModuleBuilder creates an empty module builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{
		typeIndex: make(map[string]uint32),
		importIdx: make(map[string]uint32),
	}
}

func (b *ModuleBuilder) typeOf(t FuncType) uint32 {
	k := t.key()
	if idx, ok := b.typeIndex[k]; ok {
		return idx
	}
	idx := uint32(len(b.types))
	b.types = append(b.types, t)
	b.typeIndex[k] = idx
	return idx
}

// ImportFunc imports module.name with type t and returns its function
// index. Importing the same name again returns the existing index; a
// different type for the same name is an error.
func (b *ModuleBuilder) ImportFunc(module, name string, t FuncType) (uint32, error) {
	k := module + "\x00" + name
	if idx, ok := b.importIdx[k]; ok {
		if have := b.types[b.imports[idx].typ]; !have.Equal(t) {
			return 0, fmt.Errorf("import %s.%s: type %s conflicts with %s", module, name, t, have)
		}
		return idx, nil
	}
	idx := uint32(len(b.imports))
	b.imports = append(b.imports, funcImport{module: module, name: name, typ: b.typeOf(t)})
	b.importIdx[k] = idx
	return idx, nil
}

// ImportCount returns the number of imported functions.
func (b *ModuleBuilder) ImportCount() int { return len(b.imports) }

// SetMemory defines the module's memory with at least pages pages and
// exports it as name.
func (b *ModuleBuilder) SetMemory(pages uint32, name string) {
	b.hasMemory = true
	b.memPages = pages
	b.memExport = name
}

// AddData adds an active data segment at offset.
func (b *ModuleBuilder) AddData(offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	b.data = append(b.data, dataSegment{offset: offset, data: data})
}

// AddFunc defines a function and exports it as export. body holds the
// instructions without the final end.
func (b *ModuleBuilder) AddFunc(export string, t FuncType, locals []api.ValueType, body []byte) {
	b.funcs = append(b.funcs, function{
		export: export,
		typ:    b.typeOf(t),
		locals: locals,
		body:   body,
	})
}

// Build generates the module bytes.
func (b *ModuleBuilder) Build() []byte {
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	if len(b.types) > 0 {
		wasm = appendSection(wasm, SectionType, b.buildTypeSection())
	}
	if len(b.imports) > 0 {
		wasm = appendSection(wasm, SectionImport, b.buildImportSection())
	}
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, SectionFunction, b.buildFuncSection())
	}
	if b.hasMemory {
		wasm = appendSection(wasm, SectionMemory, b.buildMemorySection())
	}
	wasm = appendSection(wasm, SectionExport, b.buildExportSection())
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, SectionCode, b.buildCodeSection())
	}
	if len(b.data) > 0 {
		wasm = appendSection(wasm, SectionData, b.buildDataSection())
	}
	return wasm
}

func (b *ModuleBuilder) buildTypeSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.types)))...)
	for _, t := range b.types {
		section = append(section, FuncTypeTag)
		section = appendValTypes(section, t.Params)
		section = appendValTypes(section, t.Results)
	}
	return section
}

func (b *ModuleBuilder) buildImportSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.imports)))...)
	for _, imp := range b.imports {
		section = appendName(section, imp.module)
		section = appendName(section, imp.name)
		section = append(section, KindFunc)
		section = append(section, EncodeULEB128(imp.typ)...)
	}
	return section
}

func (b *ModuleBuilder) buildFuncSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)))...)
	for _, f := range b.funcs {
		section = append(section, EncodeULEB128(f.typ)...)
	}
	return section
}

func (b *ModuleBuilder) buildMemorySection() []byte {
	var section []byte
	section = append(section, 0x01)
	section = append(section, 0x00)
	section = append(section, EncodeULEB128(b.memPages)...)
	return section
}

func (b *ModuleBuilder) buildExportSection() []byte {
	var section []byte

	numExports := len(b.funcs)
	if b.hasMemory && b.memExport != "" {
		numExports++
	}
	section = append(section, EncodeULEB128(uint32(numExports))...)

	if b.hasMemory && b.memExport != "" {
		section = appendName(section, b.memExport)
		section = append(section, KindMemory)
		section = append(section, 0x00)
	}

	numImports := len(b.imports)
	for i, f := range b.funcs {
		section = appendName(section, f.export)
		section = append(section, KindFunc)
		section = append(section, EncodeULEB128(uint32(numImports+i))...)
	}
	return section
}

func (b *ModuleBuilder) buildCodeSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)))...)
	for _, f := range b.funcs {
		body := buildFuncBody(f)
		section = append(section, EncodeULEB128(uint32(len(body)))...)
		section = append(section, body...)
	}
	return section
}

// buildFuncBody run-length encodes the locals and terminates the body.
func buildFuncBody(f function) []byte {
	type run struct {
		n uint32
		t api.ValueType
	}
	var runs []run
	for _, l := range f.locals {
		if len(runs) > 0 && runs[len(runs)-1].t == l {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{n: 1, t: l})
	}

	var body []byte
	body = append(body, EncodeULEB128(uint32(len(runs)))...)
	for _, r := range runs {
		body = append(body, EncodeULEB128(r.n)...)
		body = append(body, ValTypeToWasm(r.t))
	}
	body = append(body, f.body...)
	body = append(body, OpEnd)
	return body
}

func (b *ModuleBuilder) buildDataSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.data)))...)
	for _, d := range b.data {
		section = append(section, 0x00)
		section = append(section, OpI32Const)
		section = append(section, EncodeSLEB128(int32(d.offset))...)
		section = append(section, OpEnd)
		section = append(section, EncodeULEB128(uint32(len(d.data)))...)
		section = append(section, d.data...)
	}
	return section
}
