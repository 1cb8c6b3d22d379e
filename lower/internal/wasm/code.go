package wasm

// Code accumulates the instructions of one function body.
type Code struct {
	buf []byte
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte { return c.buf }

// Len returns the encoded size.
func (c *Code) Len() int { return len(c.buf) }

// Op appends an instruction without immediates.
func (c *Code) Op(op byte) { c.buf = append(c.buf, op) }

// LocalGet appends local.get idx.
func (c *Code) LocalGet(idx uint32) {
	c.buf = append(c.buf, OpLocalGet)
	c.buf = append(c.buf, EncodeULEB128(idx)...)
}

// LocalSet appends local.set idx.
func (c *Code) LocalSet(idx uint32) {
	c.buf = append(c.buf, OpLocalSet)
	c.buf = append(c.buf, EncodeULEB128(idx)...)
}

// Call appends call idx.
func (c *Code) Call(idx uint32) {
	c.buf = append(c.buf, OpCall)
	c.buf = append(c.buf, EncodeULEB128(idx)...)
}

// I32Const appends i32.const v.
func (c *Code) I32Const(v int32) {
	c.buf = append(c.buf, OpI32Const)
	c.buf = append(c.buf, EncodeSLEB128(v)...)
}

// I64Const appends i64.const v.
func (c *Code) I64Const(v int64) {
	c.buf = append(c.buf, OpI64Const)
	c.buf = append(c.buf, EncodeSLEB128(v)...)
}

// Mem appends a load or store with the given alignment exponent and a zero
// offset.
func (c *Code) Mem(op byte, alignLog2 uint32) {
	c.buf = append(c.buf, op)
	c.buf = append(c.buf, EncodeULEB128(alignLog2)...)
	c.buf = append(c.buf, 0x00)
}
