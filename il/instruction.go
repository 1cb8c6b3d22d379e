package il

// Instruction is a single IL instruction with its immediate operand.
type Instruction struct {
	Imm    any
	Opcode Opcode
}

// ArgImm holds the argument index for ldarg and ldarga.
type ArgImm struct {
	Index int
}

// LocalImm holds the local for ldloc, ldloca and stloc.
type LocalImm struct {
	Local Local
}

// I4Imm holds the constant for ldc.i4.
type I4Imm struct {
	Value int32
}

// I8Imm holds the constant for ldc.i8.
type I8Imm struct {
	Value int64
}

// TokenImm holds the token of the method, field, signature or string an
// instruction refers to.
type TokenImm struct {
	Token Token
}

// Local is an index into a method body's local variable table.
type Local int

// Token is an index into a method body's token table.
type Token uint32

// Arg returns the argument index of an ldarg/ldarga instruction.
func (i Instruction) Arg() (int, bool) {
	imm, ok := i.Imm.(ArgImm)
	return imm.Index, ok
}

// Local returns the local of an ldloc/ldloca/stloc instruction.
func (i Instruction) Local() (Local, bool) {
	imm, ok := i.Imm.(LocalImm)
	return imm.Local, ok
}

// Token returns the token of an instruction carrying one.
func (i Instruction) Token() (Token, bool) {
	imm, ok := i.Imm.(TokenImm)
	return imm.Token, ok
}
