package chunk

import (
	"fmt"
	"strings"

	"github.com/kristofer/glox/pkg/object"
)

// Disassemble renders every instruction in c, prefixed with name; backs
// the DEBUG_PRINT_CODE toggle (spec §6).
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		line, next := DisassembleInstruction(c, offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

// DisassembleInstruction formats the instruction at offset and returns
// the offset of the following instruction.
func DisassembleInstruction(c *Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant:
		return constantInstruction(&b, op, c, offset)
	case OpConstant16:
		return constant16Instruction(&b, op, c, offset)
	case OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		return constantInstruction(&b, op, c, offset)
	case OpDefineGlobal16, OpGetGlobal16, OpSetGlobal16:
		return constant16Instruction(&b, op, c, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(&b, op, c, offset)
	case OpGetProperty, OpSetProperty, OpGetSuper, OpMethod, OpClass:
		return constantInstruction(&b, op, c, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(&b, op, c, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(&b, op, c, offset, 1)
	case OpLoop:
		return jumpInstruction(&b, op, c, offset, -1)
	case OpClosure:
		return closureInstruction(&b, c, offset)
	case OpArray:
		return byteInstruction(&b, op, c, offset)
	default:
		b.WriteString(op.String())
		return b.String(), offset + 1
	}
}

func constantInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) (string, int) {
	idx := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'", op.String(), idx, displayConstant(c, int(idx)))
	return b.String(), offset + 2
}

func constant16Instruction(b *strings.Builder, op OpCode, c *Chunk, offset int) (string, int) {
	idx := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(b, "%-16s %4d '%s'", op.String(), idx, displayConstant(c, idx))
	return b.String(), offset + 3
}

func byteInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) (string, int) {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d", op.String(), slot)
	return b.String(), offset + 2
}

func jumpInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int, sign int) (string, int) {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-16s %4d -> %d", op.String(), offset, target)
	return b.String(), offset + 3
}

func invokeInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) (string, int) {
	idx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%s'", op.String(), argc, idx, displayConstant(c, int(idx)))
	return b.String(), offset + 3
}

func closureInstruction(b *strings.Builder, c *Chunk, offset int) (string, int) {
	constIdx := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(b, "%-16s %4d '%s'", OpClosure.String(), constIdx, displayConstant(c, constIdx))
	offset += 3
	if fn, ok := c.Constants[constIdx].AsObj().(*object.Function); ok {
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := c.Code[offset]
			index := c.Code[offset+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(b, "\n%04d      |                     %s %d", offset, kind, index)
			offset += 2
		}
	}
	return b.String(), offset
}

func displayConstant(c *Chunk, idx int) string {
	if idx < 0 || idx >= len(c.Constants) {
		return "?"
	}
	return object.ToDisplayString(c.Constants[idx])
}
