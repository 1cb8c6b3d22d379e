// Package fixup lays out the data behind lazily bound PInvoke stubs.
//
// Every lazy stub owns a method fixup cell. A cell starts out unresolved and
// holds relocations to the entry point name and to a module cell shared by
// all methods importing from the same library:
//
//	MethodFixupCell { Target; MethodName -> "entry\0"; Module -> ModuleFixupCell }
//	ModuleFixupCell { Handle; ModuleName -> "module\0" }
//
// Each field is one pointer-size word. The runtime resolver fills Handle and
// Target on first use.
package fixup

import (
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/stubs"
	"github.com/wippyai/interop-stubs/symtab"
)

// NodeKind identifies what a Node holds.
type NodeKind uint8

const (
	MethodCellNode NodeKind = iota
	ModuleCellNode
	CStringNode
)

func (k NodeKind) String() string {
	switch k {
	case MethodCellNode:
		return "method-cell"
	case ModuleCellNode:
		return "module-cell"
	case CStringNode:
		return "cstring"
	}
	return "unknown"
}

// Word offsets inside the cells.
const (
	MethodCellTarget = iota
	MethodCellName
	MethodCellModule
	methodCellWords
)

const (
	ModuleCellHandle = iota
	ModuleCellName
	moduleCellWords
)

// Reloc patches the word at Offset with the address of Target.
type Reloc struct {
	Target *Node
	Offset int
}

// Node is one object of the data image.
type Node struct {
	Field  *stubs.PInvokeLazyFixupField
	data   []byte
	Name   string
	Relocs []Reloc
	Kind   NodeKind
	Align  int
}

// Size returns the node size in bytes.
func (n *Node) Size() int { return len(n.data) }

// Builder collects fixup cells. It is safe for concurrent use.
type Builder struct {
	cells       map[*stubs.PInvokeLazyFixupField]*Node
	modules     map[string]*Node
	strings     map[string]*Node
	names       map[string]int
	nodes       []*Node
	mu          sync.Mutex
	pointerSize int
}

// NewBuilder creates a builder for 4- or 8-byte pointers.
func NewBuilder(pointerSize int) (*Builder, error) {
	if pointerSize != 4 && pointerSize != 8 {
		return nil, errors.InvalidInput(errors.PhaseLower, "pointer size must be 4 or 8, got "+strconv.Itoa(pointerSize))
	}
	return &Builder{
		pointerSize: pointerSize,
		cells:       make(map[*stubs.PInvokeLazyFixupField]*Node),
		modules:     make(map[string]*Node),
		strings:     make(map[string]*Node),
		names:       make(map[string]int),
	}, nil
}

// PointerSize returns the word size of the cells.
func (b *Builder) PointerSize() int { return b.pointerSize }

// AddMethodCell returns the cell node for f, creating it and its module
// cell and strings on first use. Repeated calls with the same field return
// the same node.
func (b *Builder) AddMethodCell(f *stubs.PInvokeLazyFixupField) *Node {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n, ok := b.cells[f]; ok {
		return n
	}
	meta := f.PInvokeMetadata()
	n := b.newNode(MethodCellNode, f.Name(), methodCellWords*b.pointerSize, b.pointerSize)
	n.Field = f
	n.Relocs = []Reloc{
		{Offset: MethodCellName * b.pointerSize, Target: b.cstring(meta.Name)},
		{Offset: MethodCellModule * b.pointerSize, Target: b.moduleCell(meta.Module)},
	}
	b.cells[f] = n
	return n
}

// AddString returns the node holding s as a NUL-terminated UTF-8 string.
func (b *Builder) AddString(s string) *Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cstring(s)
}

// AddSymbols adds a cell for every lazy fixup field in t and returns how many
// were new.
func (b *Builder) AddSymbols(t *symtab.Table) int {
	added := 0
	symtab.Each(t, func(f *stubs.PInvokeLazyFixupField) {
		b.mu.Lock()
		_, seen := b.cells[f]
		b.mu.Unlock()
		if !seen {
			added++
		}
		b.AddMethodCell(f)
	})
	return added
}

// Nodes returns the nodes in creation order.
func (b *Builder) Nodes() []*Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Node(nil), b.nodes...)
}

func (b *Builder) moduleCell(module string) *Node {
	if n, ok := b.modules[module]; ok {
		return n
	}
	n := b.newNode(ModuleCellNode, "__pInvokeModule_"+module, moduleCellWords*b.pointerSize, b.pointerSize)
	n.Relocs = []Reloc{{Offset: ModuleCellName * b.pointerSize, Target: b.cstring(module)}}
	b.modules[module] = n
	return n
}

func (b *Builder) cstring(s string) *Node {
	if n, ok := b.strings[s]; ok {
		return n
	}
	n := b.newNode(CStringNode, "__str"+strconv.Itoa(len(b.strings)), 0, 1)
	n.data = append([]byte(s), 0)
	b.strings[s] = n
	return n
}

// newNode registers a node. Colliding names get a numeric suffix so every
// node has a distinct symbol.
func (b *Builder) newNode(kind NodeKind, name string, size, align int) *Node {
	if k := b.names[name]; k > 0 {
		b.names[name] = k + 1
		name += "." + strconv.Itoa(k)
	} else {
		b.names[name] = 1
	}
	n := &Node{Kind: kind, Name: name, Align: align, data: make([]byte, size)}
	b.nodes = append(b.nodes, n)
	return n
}

// Image is a laid out, relocated data image.
type Image struct {
	addrs   map[*Node]uint64
	cells   map[*stubs.PInvokeLazyFixupField]uint64
	Symbols map[string]uint64
	Data    []byte
	Base    uint64
}

// Layout places every node at an aligned address starting at base, applies
// relocations as little-endian words and returns the image.
func (b *Builder) Layout(base uint64) (*Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if base%uint64(b.pointerSize) != 0 {
		return nil, errors.InvalidInput(errors.PhaseLower, "image base must be pointer aligned")
	}
	img := &Image{
		Base:    base,
		addrs:   make(map[*Node]uint64, len(b.nodes)),
		cells:   make(map[*stubs.PInvokeLazyFixupField]uint64, len(b.cells)),
		Symbols: make(map[string]uint64, len(b.nodes)),
	}

	// Words first so strings don't disturb cell alignment.
	var order []*Node
	for _, n := range b.nodes {
		if n.Kind != CStringNode {
			order = append(order, n)
		}
	}
	for _, n := range b.nodes {
		if n.Kind == CStringNode {
			order = append(order, n)
		}
	}

	off := 0
	for _, n := range order {
		off = alignUp(off, n.Align)
		img.addrs[n] = base + uint64(off)
		off += n.Size()
	}
	if b.pointerSize == 4 && base+uint64(off) > 1<<32 {
		return nil, errors.OutOfBounds(errors.PhaseLower, []string{"fixup"}, int(base)+off, 1<<32)
	}

	img.Data = make([]byte, off)
	for _, n := range order {
		start := int(img.addrs[n] - base)
		copy(img.Data[start:], n.data)
		for _, r := range n.Relocs {
			target, ok := img.addrs[r.Target]
			if !ok {
				return nil, errors.NotFound(errors.PhaseLower, "relocation target", r.Target.Name)
			}
			b.putWord(img.Data[start+r.Offset:], target)
		}
		img.Symbols[n.Name] = img.addrs[n]
		if n.Field != nil {
			img.cells[n.Field] = img.addrs[n]
		}
	}
	return img, nil
}

func (b *Builder) putWord(dst []byte, v uint64) {
	if b.pointerSize == 4 {
		binary.LittleEndian.PutUint32(dst, uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(dst, v)
}

// Address returns the address of a node.
func (img *Image) Address(n *Node) (uint64, bool) {
	a, ok := img.addrs[n]
	return a, ok
}

// CellAddress returns the address of the method cell of f.
func (img *Image) CellAddress(f *stubs.PInvokeLazyFixupField) (uint64, bool) {
	a, ok := img.cells[f]
	return a, ok
}

// End returns the first address past the image.
func (img *Image) End() uint64 { return img.Base + uint64(len(img.Data)) }

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
