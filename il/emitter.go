package il

import (
	"github.com/wippyai/interop-stubs/errors"
	"github.com/wippyai/interop-stubs/typesys"
)

// Emitter collects the code streams, locals and tokens of one method body.
// Streams are concatenated in creation order when the body is linked.
//
// An Emitter is owned by a single emission and is not safe for concurrent
// use.
type Emitter struct {
	streams []*CodeStream
	locals  []typesys.Type
	tokens  []any
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// NewCodeStream appends a named stream.
func (e *Emitter) NewCodeStream(name string) *CodeStream {
	s := &CodeStream{emitter: e, name: name}
	e.streams = append(e.streams, s)
	return s
}

// Streams returns the streams in creation order.
func (e *Emitter) Streams() []*CodeStream {
	return append([]*CodeStream(nil), e.streams...)
}

// NewLocal declares a local variable of type t.
func (e *Emitter) NewLocal(t typesys.Type) Local {
	e.locals = append(e.locals, t)
	return Local(len(e.locals) - 1)
}

// NewToken registers an object referenced by an instruction.
func (e *Emitter) NewToken(value any) Token {
	e.tokens = append(e.tokens, value)
	return Token(len(e.tokens) - 1)
}

// Link concatenates the streams into a method body owned by owner.
//
// The body must be non-empty, end in ret or throw, and every local and
// token it references must belong to this emitter.
func (e *Emitter) Link(owner typesys.Method) (*MethodIL, error) {
	body := &MethodIL{
		owner:  owner,
		locals: append([]typesys.Type(nil), e.locals...),
		tokens: append([]any(nil), e.tokens...),
	}
	for _, s := range e.streams {
		start := len(body.instrs)
		body.instrs = append(body.instrs, s.instrs...)
		body.spans = append(body.spans, Span{Name: s.name, Start: start, End: len(body.instrs)})
	}

	if len(body.instrs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLink, "method body is empty")
	}
	if last := body.instrs[len(body.instrs)-1].Opcode; last != OpRet && last != OpThrow {
		return nil, errors.New(errors.PhaseLink, errors.KindInvalidData).
			Method(methodName(owner)).
			Detail("method body ends in %s", last).
			Build()
	}
	for pc, in := range body.instrs {
		if l, ok := in.Local(); ok && (l < 0 || int(l) >= len(body.locals)) {
			return nil, errors.OutOfBounds(errors.PhaseLink, []string{label(pc), "local"}, int(l), len(body.locals))
		}
		if tok, ok := in.Token(); ok && int(tok) >= len(body.tokens) {
			return nil, errors.OutOfBounds(errors.PhaseLink, []string{label(pc), "token"}, int(tok), len(body.tokens))
		}
	}
	return body, nil
}

func methodName(m typesys.Method) string {
	if m == nil {
		return ""
	}
	return m.String()
}

// CodeStream is an ordered, append-only sequence of instructions.
type CodeStream struct {
	emitter *Emitter
	name    string
	instrs  []Instruction
}

// Name returns the stream name given at creation.
func (s *CodeStream) Name() string { return s.name }

// Len returns the number of instructions emitted so far.
func (s *CodeStream) Len() int { return len(s.instrs) }

// Instructions returns a copy of the emitted instructions.
func (s *CodeStream) Instructions() []Instruction {
	return append([]Instruction(nil), s.instrs...)
}

// Emit appends an instruction without an immediate.
func (s *CodeStream) Emit(op Opcode) {
	s.instrs = append(s.instrs, Instruction{Opcode: op})
}

func (s *CodeStream) emitImm(op Opcode, imm any) {
	s.instrs = append(s.instrs, Instruction{Opcode: op, Imm: imm})
}

func (s *CodeStream) EmitLdArg(index int)  { s.emitImm(OpLdarg, ArgImm{Index: index}) }
func (s *CodeStream) EmitLdArga(index int) { s.emitImm(OpLdarga, ArgImm{Index: index}) }
func (s *CodeStream) EmitLdLoc(l Local)    { s.emitImm(OpLdloc, LocalImm{Local: l}) }
func (s *CodeStream) EmitLdLoca(l Local)   { s.emitImm(OpLdloca, LocalImm{Local: l}) }
func (s *CodeStream) EmitStLoc(l Local)    { s.emitImm(OpStloc, LocalImm{Local: l}) }
func (s *CodeStream) EmitLdcI4(v int32)    { s.emitImm(OpLdcI4, I4Imm{Value: v}) }
func (s *CodeStream) EmitLdcI8(v int64)    { s.emitImm(OpLdcI8, I8Imm{Value: v}) }

// EmitLdStr pushes a string literal.
func (s *CodeStream) EmitLdStr(str string) {
	s.emitImm(OpLdstr, TokenImm{Token: s.emitter.NewToken(str)})
}

// EmitCall emits a direct call to m.
func (s *CodeStream) EmitCall(m typesys.Method) {
	s.emitImm(OpCall, TokenImm{Token: s.emitter.NewToken(m)})
}

// EmitCalli emits an indirect call through the function pointer on top of
// the stack, using sig as the call site signature.
func (s *CodeStream) EmitCalli(sig *typesys.MethodSignature) {
	s.emitImm(OpCalli, TokenImm{Token: s.emitter.NewToken(sig)})
}

// EmitNewobj allocates an instance of ctor's owner and runs ctor.
func (s *CodeStream) EmitNewobj(ctor typesys.Method) {
	s.emitImm(OpNewobj, TokenImm{Token: s.emitter.NewToken(ctor)})
}

// EmitLdsflda pushes the address of a static field.
func (s *CodeStream) EmitLdsflda(f typesys.Field) {
	s.emitImm(OpLdsflda, TokenImm{Token: s.emitter.NewToken(f)})
}
