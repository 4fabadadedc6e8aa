package compiler

import (
	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/scanner"
)

// declaration is the top-level production every block/script body loops
// over (spec §4.2). It synchronizes on error so one bad statement
// doesn't abort the whole compile.
func (c *Compiler) declaration() {
	switch {
	case c.match(scanner.TokenClass):
		c.classDeclaration()
	case c.match(scanner.TokenFun):
		c.funDeclaration()
	case c.match(scanner.TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(KindFunction)
	c.defineVariable(global)
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(scanner.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(scanner.TokenSemicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(scanner.TokenPrint):
		c.printStatement()
	case c.match(scanner.TokenIf):
		c.ifStatement()
	case c.match(scanner.TokenReturn):
		c.returnStatement()
	case c.match(scanner.TokenWhile):
		c.whileStatement()
	case c.match(scanner.TokenFor):
		c.forStatement()
	case c.match(scanner.TokenSwitch):
		c.switchStatement()
	case c.match(scanner.TokenBreak):
		c.breakStatement()
	case c.match(scanner.TokenContinue):
		c.continueStatement()
	case c.match(scanner.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(scanner.TokenRightBrace) && !c.check(scanner.TokenEOF) {
		c.declaration()
	}
	c.consume(scanner.TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(scanner.TokenSemicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(scanner.TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(scanner.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(scanner.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(scanner.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// pushLoop/popLoop manage the bounded break/continue context stack (spec
// §4.2). localBase lets break/continue pop exactly the locals the loop
// body introduced before jumping out of scope.
func (c *Compiler) pushLoop(continueTarget int) {
	c.current.loops = append(c.current.loops, loopOrSwitch{
		isLoop:         true,
		continueTarget: continueTarget,
		localBase:      len(c.current.locals),
	})
}

func (c *Compiler) pushSwitch() {
	c.current.loops = append(c.current.loops, loopOrSwitch{
		isLoop:    false,
		localBase: len(c.current.locals),
	})
}

func (c *Compiler) popLoop() loopOrSwitch {
	top := c.current.loops[len(c.current.loops)-1]
	c.current.loops = c.current.loops[:len(c.current.loops)-1]
	return top
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.consume(scanner.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(scanner.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.pushLoop(loopStart)
	c.statement()
	loop := c.popLoop()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
}

// forStatement desugars entirely into while-shaped bytecode at compile
// time (spec §4.2): no OP_FOR_* opcodes exist. The increment clause is
// compiled once but jumped to only after each body iteration, by
// emitting it before the condition re-check and looping the condition
// check around it.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(scanner.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(scanner.TokenSemicolon):
		// no initializer
	case c.match(scanner.TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.match(scanner.TokenSemicolon) {
		c.expression()
		c.consume(scanner.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(scanner.TokenRightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.chunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(scanner.TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.pushLoop(loopStart)
	c.statement()
	loop := c.popLoop()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if len(c.current.loops) == 0 {
		c.error("Can't use 'break' outside of a loop or switch.")
		return
	}
	c.consume(scanner.TokenSemicolon, "Expect ';' after 'break'.")
	top := &c.current.loops[len(c.current.loops)-1]
	c.closeLocalsTo(top.localBase)
	jump := c.emitJump(chunk.OpJump)
	top.breakJumps = append(top.breakJumps, jump)
}

func (c *Compiler) continueStatement() {
	var target *loopOrSwitch
	for i := len(c.current.loops) - 1; i >= 0; i-- {
		if c.current.loops[i].isLoop {
			target = &c.current.loops[i]
			break
		}
	}
	if target == nil {
		c.error("Can't use 'continue' outside of a loop.")
		return
	}
	c.consume(scanner.TokenSemicolon, "Expect ';' after 'continue'.")
	c.closeLocalsTo(target.localBase)
	c.emitLoop(target.continueTarget)
}

// closeLocalsTo pops (or closes, if captured) every local declared past
// base without touching the local array itself — used by break/continue
// to unwind the body's scope before jumping.
func (c *Compiler) closeLocalsTo(base int) {
	for i := len(c.current.locals) - 1; i >= base; i-- {
		if c.current.locals[i].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
	}
}

// switchStatement compiles `switch (expr) { case a: ...; case b: ...;
// default: ... }` into a DUP/EQUAL/JUMP_IF_FALSE chain (spec §4.2): the
// switch value is duplicated for each case comparison and popped once at
// the end of the switch, where every case body, the default, and `break`
// all arrive.
func (c *Compiler) switchStatement() {
	c.consume(scanner.TokenLeftParen, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(scanner.TokenRightParen, "Expect ')' after switch value.")
	c.consume(scanner.TokenLeftBrace, "Expect '{' before switch body.")

	c.pushSwitch()
	var caseEndJumps []int
	seenDefault := false
	var prevCaseSkip = -1

	for c.match(scanner.TokenCase) {
		if prevCaseSkip != -1 {
			c.patchJump(prevCaseSkip)
			c.emitOp(chunk.OpPop)
		}

		c.emitOp(chunk.OpDup)
		c.expression()
		c.consume(scanner.TokenColon, "Expect ':' after case value.")
		c.emitOp(chunk.OpEqual)
		prevCaseSkip = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop) // pop the comparison result on match

		for !c.check(scanner.TokenCase) && !c.check(scanner.TokenDefault) && !c.check(scanner.TokenRightBrace) {
			c.statement()
		}
		caseEndJumps = append(caseEndJumps, c.emitJump(chunk.OpJump))
	}

	if prevCaseSkip != -1 {
		c.patchJump(prevCaseSkip)
		c.emitOp(chunk.OpPop)
	}

	if c.match(scanner.TokenDefault) {
		if seenDefault {
			c.error("Switch statement can have only one default case.")
		}
		seenDefault = true
		c.consume(scanner.TokenColon, "Expect ':' after 'default'.")
		for !c.check(scanner.TokenRightBrace) {
			c.statement()
		}
	}

	for _, j := range caseEndJumps {
		c.patchJump(j)
	}
	loop := c.popLoop()
	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
	c.emitOp(chunk.OpPop) // pop the switch value itself
	c.consume(scanner.TokenRightBrace, "Expect '}' after switch body.")
}

func (c *Compiler) returnStatement() {
	if c.current.kind == KindScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(scanner.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.current.kind == KindInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(scanner.TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}
