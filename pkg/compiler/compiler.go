// Package compiler implements the single-pass Pratt compiler from spec
// §4.2: there is no AST anywhere in this package. Every grammar
// production emits bytecode directly into the function currently being
// compiled as it recognizes that production, which is what lets jump
// offsets, line numbers, and upvalue resolution all fall out of the
// parse itself rather than a later tree-walk.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/gc"
	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/scanner"
	"github.com/kristofer/glox/pkg/value"
)

// FunctionKind distinguishes the lexical context a function body is
// being compiled in — it controls slot-0 binding and a handful of
// compile-time-only restrictions (spec §4.2).
type FunctionKind int

const (
	KindScript FunctionKind = iota
	KindFunction
	KindMethod
	KindInitializer
)

const (
	maxLocals      = 256
	maxUpvalues    = 256
	maxArgs        = 255
	maxConstants16 = 65535
)

// local is one entry of a function compiler's fixed-capacity local array.
type local struct {
	name       scanner.Token
	depth      int // -1 => declared but not yet initialized
	isCaptured bool
}

// upvalueRef records how an inner function's upvalue slot was resolved:
// either straight from the enclosing function's locals, or forwarded
// from the enclosing function's own upvalue list.
type upvalueRef struct {
	index   byte
	isLocal bool
}

// loopOrSwitch is one entry of the bounded control-context stack that
// break/continue resolve against (spec §4.2).
type loopOrSwitch struct {
	isLoop         bool
	continueTarget int // valid only when isLoop
	breakJumps     []int
	localBase      int // local count at entry, for break/continue's scope-close
}

// funcCompiler is the per-function compiler state described in spec
// §4.2: the function currently being emitted, its kind, its locals and
// upvalues, its scope depth, and a link to the enclosing compiler that
// makes upvalue resolution possible.
type funcCompiler struct {
	enclosing  *funcCompiler
	function   *object.Function
	kind       FunctionKind
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
	loops      []loopOrSwitch
}

// classCompiler tracks whether the class currently being compiled has a
// superclass, so `super` can be resolved and rejected outside a
// subclass.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Compiler is the single-pass Pratt parser/code-generator. One Compiler
// compiles one top-level script; nested function/method bodies push a
// new funcCompiler but share the same Compiler (and thus the same
// scanner and diagnostics).
type Compiler struct {
	scan    *scanner.Scanner
	heap    *gc.Collector
	current *funcCompiler
	class   *classCompiler

	previous     scanner.Token
	currentToken scanner.Token
	hadError     bool
	panicMode    bool
	errors       []string

	outerRoots gc.RootSource // root source that owned the heap before Compile
}

// Compile compiles source into a top-level SCRIPT function, or returns
// ok=false if any compile error occurred (spec §4.2: "returns failure if
// any occurred"). heap is used to allocate the Function object and to
// intern every string/identifier constant the compiler emits.
func Compile(source string, heap *gc.Collector) (fn *object.Function, errs []string, ok bool) {
	c := &Compiler{scan: scanner.New(source), heap: heap}
	c.current = &funcCompiler{function: heap.NewFunction(), kind: KindScript}
	c.current.function.Chunk = chunk.New()
	// Slot 0 is reserved per spec §4.2's "slot 0 convention"; for a
	// script it's an unnamed sentinel.
	c.current.locals = append(c.current.locals, local{depth: 0})

	// A GC triggered mid-compile (e.g. by interning a string literal)
	// must see every in-progress function on the enclosing chain, not
	// just the VM's roots — the VM isn't even running yet. Restore
	// whatever root source owned the collector before we return, since
	// a script-level compile may run while a VM already owns it (e.g.
	// a future `eval` native) and after compile finishes the VM's own
	// roots apply again.
	c.outerRoots = heap.RootSourceOrNil()
	heap.SetRootSource(c)
	defer heap.SetRootSource(c.outerRoots)

	c.advance()
	for !c.match(scanner.TokenEOF) {
		c.declaration()
	}
	function := c.endCompiler()

	if c.hadError {
		return nil, c.errors, false
	}
	return function, c.errors, true
}

// MarkRoots implements gc.RootSource for the duration of a compile: the
// function under construction in every compiler on the enclosing chain
// (spec §4.5's "Compiler roots"), plus the roots of whatever source owned
// the collector before Compile began (the VM, if one is running).
func (c *Compiler) MarkRoots(gcc *gc.Collector) {
	for fc := c.current; fc != nil; fc = fc.enclosing {
		gcc.MarkObject(fc.function)
	}
	if c.outerRoots != nil {
		c.outerRoots.MarkRoots(gcc)
	}
}

// ---- token plumbing -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.currentToken
	for {
		c.currentToken = c.scan.Next()
		if c.currentToken.Type != scanner.TokenError {
			break
		}
		c.errorAtCurrent(c.currentToken.Lexeme)
	}
}

func (c *Compiler) check(t scanner.TokenType) bool { return c.currentToken.Type == t }

func (c *Compiler) match(t scanner.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t scanner.TokenType, msg string) {
	if c.currentToken.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// ---- error reporting & recovery -----------------------------------------

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.currentToken, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok scanner.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	where := fmt.Sprintf("'%s'", tok.Lexeme)
	if tok.Type == scanner.TokenEOF {
		where = "end"
	} else if tok.Type == scanner.TokenError {
		where = ""
	}
	var formatted string
	if where == "" {
		formatted = fmt.Sprintf("[line %d] Error: %s", tok.Line, msg)
	} else {
		formatted = fmt.Sprintf("[line %d] Error at %s: %s", tok.Line, where, msg)
	}
	c.errors = append(c.errors, formatted)
}

// synchronize consumes tokens until it finds a likely statement boundary
// (spec §4.2 error recovery), so one syntax error doesn't cascade into
// a wall of spurious follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.currentToken.Type != scanner.TokenEOF {
		if c.previous.Type == scanner.TokenSemicolon {
			return
		}
		switch c.currentToken.Type {
		case scanner.TokenClass, scanner.TokenFun, scanner.TokenVar, scanner.TokenFor,
			scanner.TokenIf, scanner.TokenWhile, scanner.TokenPrint, scanner.TokenReturn,
			scanner.TokenSwitch, scanner.TokenBreak, scanner.TokenContinue:
			return
		}
		c.advance()
	}
}

// ---- emission helpers ----------------------------------------------------

func (c *Compiler) chunk() *chunk.Chunk { return c.current.function.Chunk.(*chunk.Chunk) }

func (c *Compiler) emitByte(b byte)        { c.chunk().Write(b, c.previous.Line) }
func (c *Compiler) emitOp(op chunk.OpCode) { c.chunk().WriteOp(op, c.previous.Line) }
func (c *Compiler) emitOps(op chunk.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

// emitConstant adds v to the constant pool and emits the 8- or 16-bit
// load form, escalating per spec §4.2's operand-width rule.
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.makeConstant(v)
	if idx <= 0xFF {
		c.emitOps(chunk.OpConstant, byte(idx))
	} else {
		c.emitOp(chunk.OpConstant16)
		c.emitByte(byte(idx >> 8))
		c.emitByte(byte(idx))
	}
}

func (c *Compiler) makeConstant(v value.Value) int {
	idx := c.chunk().AddConstant(v)
	if idx > maxConstants16 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

// identifierConstant interns name and adds it as a string constant,
// returning its constant-pool index — used for every global/property
// name reference.
func (c *Compiler) identifierConstant(tok scanner.Token) int {
	s := c.heap.InternString(tok.Lexeme)
	return c.makeConstant(value.FromObj(s))
}

// emitGlobalOp picks the 8-/16-bit opcode variant for a global access
// based on the name constant's index, per spec §4.2.
func (c *Compiler) emitGlobalOp(short, long chunk.OpCode, nameConstant int) {
	if nameConstant <= 0xFF {
		c.emitOps(short, byte(nameConstant))
		return
	}
	c.emitOp(long)
	c.emitByte(byte(nameConstant >> 8))
	c.emitByte(byte(nameConstant))
}

// emitJump writes op followed by a 16-bit forward placeholder and
// returns the placeholder's offset for later patchJump.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	if !c.chunk().PatchJump(offset) {
		c.error("Too much code to jump over.")
	}
}

// emitLoop writes OP_LOOP with the backward offset to loopStart (spec
// §4.2's jump encoding: "a positive offset to be subtracted from ip").
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
	}
	c.emitByte(byte((offset >> 8) & 0xff))
	c.emitByte(byte(offset & 0xff))
}

func (c *Compiler) emitReturn() {
	if c.current.kind == KindInitializer {
		// Bare `return;` in an initializer implicitly returns the
		// receiver, which lives in slot 0 (spec §4.2).
		c.emitOps(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

// endCompiler finishes the current function: emits the implicit
// trailing return and pops back to the enclosing funcCompiler. The
// caller (function()/Compile) is responsible for wrapping the result as
// a closure constant of the enclosing function.
func (c *Compiler) endCompiler() *object.Function {
	c.emitReturn()
	fn := c.current.function
	fn.UpvalueCount = len(c.current.upvalues)
	if c.current.enclosing != nil {
		c.current = c.current.enclosing
	}
	return fn
}

// ---- scopes & locals ------------------------------------------------------

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope() {
	c.current.scopeDepth--
	for len(c.current.locals) > 0 && c.current.locals[len(c.current.locals)-1].depth > c.current.scopeDepth {
		last := c.current.locals[len(c.current.locals)-1]
		if last.isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.current.locals = c.current.locals[:len(c.current.locals)-1]
	}
}

func (c *Compiler) addLocal(name scanner.Token) {
	if len(c.current.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.current.locals = append(c.current.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable(name scanner.Token) {
	if c.current.scopeDepth == 0 {
		return
	}
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		l := c.current.locals[i]
		if l.depth != -1 && l.depth < c.current.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
}

// parseVariable consumes an identifier, declares it if we're in a local
// scope, and (for globals) returns its name-constant index for
// defineVariable to emit against.
func (c *Compiler) parseVariable(errMsg string) int {
	c.consume(scanner.TokenIdentifier, errMsg)
	c.declareVariable(c.previous)
	if c.current.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) defineVariable(global int) {
	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitGlobalOp(chunk.OpDefineGlobal, chunk.OpDefineGlobal16, global)
}

// resolveLocal implements lookup step 1 from spec §4.2: scan from the
// top; a match still at depth -1 (its own initializer) is an error.
func (c *Compiler) resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name.Lexeme == name {
			if fc.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue implements lookup step 2: recurse into the enclosing
// compiler; a local found there is marked captured and recorded as a
// direct upvalue, otherwise the search continues outward and is
// recorded as a forwarded upvalue (spec §4.2).
func (c *Compiler) resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fc.enclosing, name); local != -1 {
		fc.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fc, byte(local), true)
	}
	if up := c.resolveUpvalue(fc.enclosing, name); up != -1 {
		return c.addUpvalue(fc, byte(up), false)
	}
	return -1
}

// addUpvalue deduplicates: an upvalue referencing the same slot/kind is
// reused rather than appended twice (spec §4.2).
func (c *Compiler) addUpvalue(fc *funcCompiler, index byte, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fc.upvalues) - 1
}

// numberValue parses a scanned number lexeme into a Value, per spec §3
// ("all numbers are IEEE-754 double").
func numberValue(lexeme string) value.Value {
	n, _ := strconv.ParseFloat(lexeme, 64)
	return value.Number(n)
}
