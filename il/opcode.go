package il

import (
	"fmt"

	"github.com/wippyai/interop-stubs/typesys"
)

// Opcode identifies an IL instruction.
type Opcode byte

const (
	OpNop     Opcode = iota // no operation
	OpLdarg                 // load argument, ArgImm
	OpLdarga                // load argument address, ArgImm
	OpLdloc                 // load local, LocalImm
	OpLdloca                // load local address, LocalImm
	OpStloc                 // store local, LocalImm
	OpLdcI4                 // push int32, I4Imm
	OpLdcI8                 // push int64, I8Imm
	OpLdstr                 // push string literal, TokenImm (string)
	OpLdnull                // push null reference
	OpPop                   // discard top of stack
	OpCall                  // direct call, TokenImm (typesys.Method)
	OpCalli                 // indirect call, TokenImm (*typesys.MethodSignature)
	OpNewobj                // allocate and construct, TokenImm (typesys.Method)
	OpThrow                 // throw exception object
	OpRet                   // return
	OpLdsflda               // load static field address, TokenImm (typesys.Field)
	OpCeq                   // compare equal, push 0/1
	OpCgtUn                 // compare unsigned greater, push 0/1

	OpLdindI1
	OpLdindU1
	OpLdindI2
	OpLdindU2
	OpLdindI4
	OpLdindI8
	OpLdindI
	OpLdindR4
	OpLdindR8

	OpStindI1
	OpStindI2
	OpStindI4
	OpStindI8
	OpStindI
	OpStindR4
	OpStindR8

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpNop:     "nop",
	OpLdarg:   "ldarg",
	OpLdarga:  "ldarga",
	OpLdloc:   "ldloc",
	OpLdloca:  "ldloca",
	OpStloc:   "stloc",
	OpLdcI4:   "ldc.i4",
	OpLdcI8:   "ldc.i8",
	OpLdstr:   "ldstr",
	OpLdnull:  "ldnull",
	OpPop:     "pop",
	OpCall:    "call",
	OpCalli:   "calli",
	OpNewobj:  "newobj",
	OpThrow:   "throw",
	OpRet:     "ret",
	OpLdsflda: "ldsflda",
	OpCeq:     "ceq",
	OpCgtUn:   "cgt.un",
	OpLdindI1: "ldind.i1",
	OpLdindU1: "ldind.u1",
	OpLdindI2: "ldind.i2",
	OpLdindU2: "ldind.u2",
	OpLdindI4: "ldind.i4",
	OpLdindI8: "ldind.i8",
	OpLdindI:  "ldind.i",
	OpLdindR4: "ldind.r4",
	OpLdindR8: "ldind.r8",
	OpStindI1: "stind.i1",
	OpStindI2: "stind.i2",
	OpStindI4: "stind.i4",
	OpStindI8: "stind.i8",
	OpStindI:  "stind.i",
	OpStindR4: "stind.r4",
	OpStindR8: "stind.r8",
}

func (op Opcode) String() string {
	if op < numOpcodes {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// IsCall reports whether op transfers control to another method.
func (op Opcode) IsCall() bool {
	return op == OpCall || op == OpCalli || op == OpNewobj
}

// IsLdind reports whether op is an indirect load.
func (op Opcode) IsLdind() bool { return op >= OpLdindI1 && op <= OpLdindR8 }

// IsStind reports whether op is an indirect store.
func (op Opcode) IsStind() bool { return op >= OpStindI1 && op <= OpStindR8 }

// LdindFor returns the indirect load for a primitive kind.
func LdindFor(k typesys.Kind) (Opcode, bool) {
	switch k {
	case typesys.KindSByte:
		return OpLdindI1, true
	case typesys.KindBoolean, typesys.KindByte:
		return OpLdindU1, true
	case typesys.KindInt16:
		return OpLdindI2, true
	case typesys.KindChar, typesys.KindUInt16:
		return OpLdindU2, true
	case typesys.KindInt32, typesys.KindUInt32:
		return OpLdindI4, true
	case typesys.KindInt64, typesys.KindUInt64:
		return OpLdindI8, true
	case typesys.KindIntPtr, typesys.KindUIntPtr, typesys.KindPointer:
		return OpLdindI, true
	case typesys.KindSingle:
		return OpLdindR4, true
	case typesys.KindDouble:
		return OpLdindR8, true
	}
	return 0, false
}

// StindFor returns the indirect store for a primitive kind.
func StindFor(k typesys.Kind) (Opcode, bool) {
	switch k {
	case typesys.KindBoolean, typesys.KindSByte, typesys.KindByte:
		return OpStindI1, true
	case typesys.KindChar, typesys.KindInt16, typesys.KindUInt16:
		return OpStindI2, true
	case typesys.KindInt32, typesys.KindUInt32:
		return OpStindI4, true
	case typesys.KindInt64, typesys.KindUInt64:
		return OpStindI8, true
	case typesys.KindIntPtr, typesys.KindUIntPtr, typesys.KindPointer:
		return OpStindI, true
	case typesys.KindSingle:
		return OpStindR4, true
	case typesys.KindDouble:
		return OpStindR8, true
	}
	return 0, false
}
