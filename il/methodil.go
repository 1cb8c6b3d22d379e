package il

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/interop-stubs/typesys"
)

// Span is the range [Start, End) of a linked body that came from one stream.
type Span struct {
	Name  string
	Start int
	End   int
}

// Len returns the number of instructions in the span.
func (s Span) Len() int { return s.End - s.Start }

// MethodIL is a linked, immutable method body.
type MethodIL struct {
	owner  typesys.Method
	instrs []Instruction
	locals []typesys.Type
	tokens []any
	spans  []Span
}

// Owner returns the method the body was linked for.
func (m *MethodIL) Owner() typesys.Method { return m.owner }

// Len returns the instruction count.
func (m *MethodIL) Len() int { return len(m.instrs) }

// Instructions returns a copy of the instructions.
func (m *MethodIL) Instructions() []Instruction {
	return append([]Instruction(nil), m.instrs...)
}

// Locals returns the local variable types.
func (m *MethodIL) Locals() []typesys.Type {
	return append([]typesys.Type(nil), m.locals...)
}

// Object resolves a token to the method, field, signature or string it
// refers to.
func (m *MethodIL) Object(tok Token) any {
	if int(tok) >= len(m.tokens) {
		return nil
	}
	return m.tokens[tok]
}

// Spans returns the stream spans in body order.
func (m *MethodIL) Spans() []Span {
	return append([]Span(nil), m.spans...)
}

// Stream returns the instructions a named stream contributed.
func (m *MethodIL) Stream(name string) []Instruction {
	for _, s := range m.spans {
		if s.Name == name {
			return append([]Instruction(nil), m.instrs[s.Start:s.End]...)
		}
	}
	return nil
}

// Calls returns the targets of every call and newobj instruction in order.
// Indirect calls are reported as their *typesys.MethodSignature.
func (m *MethodIL) Calls() []any {
	var out []any
	for _, in := range m.instrs {
		if in.Opcode.IsCall() {
			tok, _ := in.Token()
			out = append(out, m.tokens[tok])
		}
	}
	return out
}

// String disassembles the body, one instruction per line.
func (m *MethodIL) String() string {
	var b strings.Builder
	if len(m.locals) > 0 {
		b.WriteString(".locals (")
		for i, t := range m.locals {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s V_%d", t, i)
		}
		b.WriteString(")\n")
	}
	for pc, in := range m.instrs {
		b.WriteString(label(pc))
		b.WriteString(": ")
		b.WriteString(m.Format(in))
		b.WriteByte('\n')
	}
	return b.String()
}

// Format renders one instruction with its operand resolved.
func (m *MethodIL) Format(in Instruction) string {
	op := in.Opcode.String()
	switch imm := in.Imm.(type) {
	case ArgImm:
		return op + " " + strconv.Itoa(imm.Index)
	case LocalImm:
		return op + " V_" + strconv.Itoa(int(imm.Local))
	case I4Imm:
		return op + " " + strconv.FormatInt(int64(imm.Value), 10)
	case I8Imm:
		return op + " " + strconv.FormatInt(imm.Value, 10)
	case TokenImm:
		switch obj := m.Object(imm.Token).(type) {
		case string:
			return op + " " + strconv.Quote(obj)
		case fmt.Stringer:
			return op + " " + obj.String()
		default:
			return fmt.Sprintf("%s <token %d>", op, imm.Token)
		}
	}
	return op
}

func label(pc int) string {
	return fmt.Sprintf("IL_%04x", pc)
}
