package wasm

// Section IDs, in the order they must appear.
const (
	SectionType     byte = 1  // Type section (function signatures)
	SectionImport   byte = 2  // Import section
	SectionFunction byte = 3  // Function section (type indices)
	SectionMemory   byte = 5  // Memory section
	SectionExport   byte = 7  // Export section
	SectionCode     byte = 10 // Code section (function bodies)
	SectionData     byte = 11 // Data section
)

// Import and export descriptor kinds.
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
)

// FuncTypeTag starts a function type.
const FuncTypeTag byte = 0x60

// Control instructions.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpEnd         byte = 0x0B
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
)

// Variable instructions.
const (
	OpLocalGet byte = 0x20
	OpLocalSet byte = 0x21
)

// Memory instructions.
const (
	OpI32Load    byte = 0x28
	OpI64Load    byte = 0x29
	OpF32Load    byte = 0x2A
	OpF64Load    byte = 0x2B
	OpI32Load8S  byte = 0x2C
	OpI32Load8U  byte = 0x2D
	OpI32Load16S byte = 0x2E
	OpI32Load16U byte = 0x2F
	OpI32Store   byte = 0x36
	OpI64Store   byte = 0x37
	OpF32Store   byte = 0x38
	OpF64Store   byte = 0x39
	OpI32Store8  byte = 0x3A
	OpI32Store16 byte = 0x3B
)

// Numeric instructions.
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpI32Eq    byte = 0x46
	OpI32GtU   byte = 0x4B
	OpI64Eq    byte = 0x51
	OpI64GtU   byte = 0x56
	OpF32Eq    byte = 0x5B
	OpF32Gt    byte = 0x5E
	OpF64Eq    byte = 0x61
	OpF64Gt    byte = 0x64
)

// PageSize is the size of one linear memory page.
const PageSize = 65536
