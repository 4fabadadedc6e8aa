package chunk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/value"
)

func TestWriteTracksParallelLines(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpNil, 1)
	c.Write(0xAB, 2)

	assert.Equal(t, []byte{byte(chunk.OpNil), 0xAB}, c.Code)
	assert.Equal(t, []int{1, 2}, c.Lines)
}

func TestAddConstantReturnsIndex(t *testing.T) {
	c := chunk.New()
	idx0 := c.AddConstant(value.Number(1))
	idx1 := c.AddConstant(value.Number(2))

	assert.Equal(t, 0, idx0)
	assert.Equal(t, 1, idx1)
	assert.Equal(t, 2, len(c.GCConstants()))
}

func TestPatchJumpComputesForwardOffset(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpJumpIfFalse, 1)
	placeholder := c.Len()
	c.Write(0xff, 1)
	c.Write(0xff, 1)
	c.WriteOp(chunk.OpPop, 1) // 1 byte of "body" to jump over

	require.True(t, c.PatchJump(placeholder))
	jump := int(c.Code[placeholder])<<8 | int(c.Code[placeholder+1])
	assert.Equal(t, 1, jump)
}

func TestPatchJumpRejectsOverflow(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpJump, 1)
	placeholder := c.Len()
	c.Write(0xff, 1)
	c.Write(0xff, 1)
	for i := 0; i < 0x10000; i++ {
		c.Write(0, 1)
	}

	assert.False(t, c.PatchJump(placeholder))
}

func TestLineAtBoundsChecked(t *testing.T) {
	c := chunk.New()
	c.WriteOp(chunk.OpNil, 7)

	assert.Equal(t, 7, c.LineAt(0))
	assert.Equal(t, 0, c.LineAt(-1))
	assert.Equal(t, 0, c.LineAt(99))
}

func TestOpCodeStringRoundTrips(t *testing.T) {
	assert.Equal(t, "OP_ADD", chunk.OpAdd.String())
	assert.Equal(t, "OP_UNKNOWN", chunk.OpCode(0xFE).String())
}
