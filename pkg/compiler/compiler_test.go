package compiler_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/gc"
)

func compile(t *testing.T, source string) *chunk.Chunk {
	t.Helper()
	heap := gc.New(false, false, &bytes.Buffer{})
	fn, errs, ok := compiler.Compile(source, heap)
	require.True(t, ok, errs)
	return fn.Chunk.(*chunk.Chunk)
}

func TestNumberLiteralEmitsConstant(t *testing.T) {
	c := compile(t, "1;")
	assert.Equal(t, byte(chunk.OpConstant), c.Code[0])
	assert.Equal(t, 1.0, c.Constants[0].AsNumber())
}

func TestConstantPoolEscalatesTo16BitPast255Entries(t *testing.T) {
	var src bytes.Buffer
	for i := 0; i < 300; i++ {
		src.WriteString("1;\n")
	}
	c := compile(t, src.String())

	// Each "1;" is: load constant, pop, and adds its own pool entry. The
	// 257th entry (index 256, the first past 0xFF) must switch to
	// OP_CONSTANT_16's 3-byte form (spec §4.2's operand-width escalation).
	sawWide := false
	for offset := 0; offset < len(c.Code); {
		op := chunk.OpCode(c.Code[offset])
		if op == chunk.OpConstant16 {
			sawWide = true
		}
		line, next := chunk.DisassembleInstruction(c, offset)
		_ = line
		offset = next
	}
	assert.True(t, sawWide, "expected at least one OP_CONSTANT_16 once the constant pool exceeds 256 entries")
}

func TestGlobalDefineAndGetRoundTrip(t *testing.T) {
	c := compile(t, "var x = 1; print x;")
	assert.Contains(t, chunk.Disassemble(c, "t"), "OP_DEFINE_GLOBAL")
	assert.Contains(t, chunk.Disassemble(c, "t"), "OP_GET_GLOBAL")
}

func TestIfElseEmitsJumpPair(t *testing.T) {
	c := compile(t, "if (true) { 1; } else { 2; }")
	out := chunk.Disassemble(c, "t")
	assert.Contains(t, out, "OP_JUMP_IF_FALSE")
	assert.Contains(t, out, "OP_JUMP")
}

func TestWhileLoopEmitsBackwardLoop(t *testing.T) {
	c := compile(t, "while (false) { 1; }")
	assert.Contains(t, chunk.Disassemble(c, "t"), "OP_LOOP")
}

func TestClassDeclarationEmitsClassAndMethod(t *testing.T) {
	c := compile(t, "class A { greet() { return 1; } }")
	out := chunk.Disassemble(c, "t")
	assert.Contains(t, out, "OP_CLASS")
	assert.Contains(t, out, "OP_METHOD")
}

func TestFunctionDeclarationWithNestedClosureEmitsClosure(t *testing.T) {
	c := compile(t, "fun outer(){var x=1; fun inner(){return x;} return inner;}")
	assert.Contains(t, chunk.Disassemble(c, "t"), "OP_CLOSURE")
}

func TestClosureOperandIsAlwaysTwoBytesRegardlessOfConstantIndex(t *testing.T) {
	// OP_CLOSURE has no 8-/16-bit escalation choice: the VM
	// (readConstant16) and disassembler both always consume two operand
	// bytes, so the compiler must always emit two, even while the
	// function's own constant index would still fit in one byte. This
	// guards against bytecode desync with every following instruction.
	c := compile(t, "fun f(){ return 1; }")

	found := false
	for offset := 0; offset < len(c.Code); {
		op := chunk.OpCode(c.Code[offset])
		_, next := chunk.DisassembleInstruction(c, offset)
		if op == chunk.OpClosure {
			found = true
			assert.Equal(t, offset+3, next, "OP_CLOSURE must always consume a 2-byte operand")
		}
		offset = next
	}
	assert.True(t, found, "expected the function declaration to emit OP_CLOSURE")
}

func TestMethodNameConstantBeyond255UsesSingleByteOperand(t *testing.T) {
	// OP_GET_PROPERTY/OP_SET_PROPERTY/OP_CLASS/OP_METHOD/OP_GET_SUPER have
	// no 16-bit variant in the normative opcode set (spec §4.3 only grants
	// one to CONSTANT and the three GLOBAL ops); this asserts the compiler
	// never emits a 3-byte long-form for them even once the constant pool
	// is large, since the VM/disassembler only ever consume one operand
	// byte for these opcodes.
	var src bytes.Buffer
	src.WriteString("class A {\n")
	for i := 0; i < 260; i++ {
		src.WriteString("  m")
		src.WriteString(itoa(i))
		src.WriteString("() { return 1; }\n")
	}
	src.WriteString("}\n")
	c := compile(t, src.String())

	out := chunk.Disassemble(c, "t")
	assert.NotContains(t, out, "OP_UNKNOWN")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestSyntaxErrorReportsLineAndFailsCompilation(t *testing.T) {
	heap := gc.New(false, false, &bytes.Buffer{})
	_, errs, ok := compiler.Compile("var = 1;", heap)
	require.False(t, ok)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "[line 1]")
}
