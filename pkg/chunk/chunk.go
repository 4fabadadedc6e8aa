// Package chunk implements the bytecode container from spec §4.3: a
// growable byte buffer paired with a parallel per-byte line table and a
// constant pool, plus the normative opcode set and operand-width rules
// from spec §4.2/§4.3 (8-bit vs 16-bit constant/global indices, 16-bit
// jump offsets).
package chunk

import "github.com/kristofer/glox/pkg/value"

// OpCode is a single bytecode instruction's operation.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpConstant16
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpDup

	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	OpDefineGlobal
	OpDefineGlobal16
	OpGetGlobal
	OpGetGlobal16
	OpSetGlobal
	OpSetGlobal16

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNegate
	OpNot
	OpEqual
	OpGreater
	OpLess

	OpPrint

	OpJump
	OpJumpIfFalse
	OpLoop

	OpCall
	OpInvoke
	OpSuperInvoke
	OpClosure

	OpClass
	OpInherit
	OpMethod
	OpGetProperty
	OpSetProperty
	OpGetSuper

	OpArray
	OpGetIndex
	OpSetIndex

	OpReturn
)

var opNames = [...]string{
	OpConstant:       "OP_CONSTANT",
	OpConstant16:     "OP_CONSTANT_16",
	OpNil:            "OP_NIL",
	OpTrue:           "OP_TRUE",
	OpFalse:          "OP_FALSE",
	OpPop:            "OP_POP",
	OpDup:            "OP_DUP",
	OpGetLocal:       "OP_GET_LOCAL",
	OpSetLocal:       "OP_SET_LOCAL",
	OpGetUpvalue:     "OP_GET_UPVALUE",
	OpSetUpvalue:     "OP_SET_UPVALUE",
	OpCloseUpvalue:   "OP_CLOSE_UPVALUE",
	OpDefineGlobal:   "OP_DEFINE_GLOBAL",
	OpDefineGlobal16: "OP_DEFINE_GLOBAL_16",
	OpGetGlobal:      "OP_GET_GLOBAL",
	OpGetGlobal16:    "OP_GET_GLOBAL_16",
	OpSetGlobal:      "OP_SET_GLOBAL",
	OpSetGlobal16:    "OP_SET_GLOBAL_16",
	OpAdd:            "OP_ADD",
	OpSubtract:       "OP_SUBTRACT",
	OpMultiply:       "OP_MULTIPLY",
	OpDivide:         "OP_DIVIDE",
	OpNegate:         "OP_NEGATE",
	OpNot:            "OP_NOT",
	OpEqual:          "OP_EQUAL",
	OpGreater:        "OP_GREATER",
	OpLess:           "OP_LESS",
	OpPrint:          "OP_PRINT",
	OpJump:           "OP_JUMP",
	OpJumpIfFalse:    "OP_JUMP_IF_FALSE",
	OpLoop:           "OP_LOOP",
	OpCall:           "OP_CALL",
	OpInvoke:         "OP_INVOKE",
	OpSuperInvoke:    "OP_SUPER_INVOKE",
	OpClosure:        "OP_CLOSURE",
	OpClass:          "OP_CLASS",
	OpInherit:        "OP_INHERIT",
	OpMethod:         "OP_METHOD",
	OpGetProperty:    "OP_GET_PROPERTY",
	OpSetProperty:    "OP_SET_PROPERTY",
	OpGetSuper:       "OP_GET_SUPER",
	OpArray:          "OP_ARRAY",
	OpGetIndex:       "OP_GET_INDEX",
	OpSetIndex:       "OP_SET_INDEX",
	OpReturn:         "OP_RETURN",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "OP_UNKNOWN"
}

// Chunk is a compiled function's bytecode: an append-only byte stream
// during compilation, read-only during execution. code and lines are
// always the same length; lines[i] is the source line that emitted
// code[i], per spec §3.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty chunk.
func New() *Chunk { return &Chunk{} }

// Write appends one raw byte with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its index.
// Overflow past 65535 constants is a compiler-level concern (spec §4.2);
// Chunk itself never refuses to grow.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// GCConstants exposes the constant pool through the narrow interface
// package gc's collector uses to trace a Function's chunk; package gc
// reaches it through an interface assertion and does not import package
// chunk.
func (c *Chunk) GCConstants() []value.Value { return c.Constants }

// LineAt returns the source line that emitted code[offset], used for
// runtime error traces (spec §6).
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// Len returns the number of bytes emitted so far — the offset the next
// Write will land at, which the compiler uses for jump-target math.
func (c *Chunk) Len() int { return len(c.Code) }

// PatchJump overwrites the 16-bit big-endian placeholder at offset
// (written by a forward jump) with the distance from just past the
// placeholder to the chunk's current end. Reports false if that distance
// does not fit in 16 bits (spec §4.2: "Offsets >65535 are a compile
// error").
func (c *Chunk) PatchJump(offset int) bool {
	jump := len(c.Code) - offset - 2
	if jump > 0xFFFF {
		return false
	}
	c.Code[offset] = byte((jump >> 8) & 0xff)
	c.Code[offset+1] = byte(jump & 0xff)
	return true
}
