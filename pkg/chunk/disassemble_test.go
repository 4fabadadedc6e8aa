package chunk_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/value"
)

func TestDisassembleConstantInstruction(t *testing.T) {
	c := chunk.New()
	idx := c.AddConstant(value.Number(42))
	c.WriteOp(chunk.OpConstant, 3)
	c.Write(byte(idx), 3)

	out := chunk.Disassemble(c, "test")
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "42")
}

func TestDisassembleSharesLineOnlyOnFirstInstruction(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpNil, 5)
	c.WriteOp(chunk.OpPop, 5)

	lines := strings.Split(strings.TrimSpace(chunk.Disassemble(c, "t")), "\n")
	body := lines[1:]
	assert.Contains(t, body[0], "   5 ")
	assert.Contains(t, body[1], "   | ")
}

func TestDisassembleJumpInstructionShowsTarget(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpJump, 1)
	c.Write(0, 1)
	c.Write(3, 1)
	c.WriteOp(chunk.OpPop, 1)
	c.WriteOp(chunk.OpPop, 1)
	c.WriteOp(chunk.OpPop, 1)

	line, next := chunk.DisassembleInstruction(c, 0)
	assert.Contains(t, line, "OP_JUMP")
	assert.Contains(t, line, "-> 6")
	assert.Equal(t, 3, next)
}
