package compiler

import (
	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/scanner"
	"github.com/kristofer/glox/pkg/value"
)

// classDeclaration compiles `class Name [< Super] { method... }` (spec
// §4.2, §5 class/method dispatch). The class object itself is built at
// runtime by OP_CLASS; methods are compiled as ordinary closures and
// attached with OP_METHOD, one per declaration.
func (c *Compiler) classDeclaration() {
	c.consume(scanner.TokenIdentifier, "Expect class name.")
	nameTok := c.previous
	nameConstant := c.identifierConstant(nameTok)
	c.declareVariable(nameTok)

	c.emitOps(chunk.OpClass, byte(nameConstant))
	c.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: c.class}
	c.class = cc

	if c.match(scanner.TokenLess) {
		c.consume(scanner.TokenIdentifier, "Expect superclass name.")
		c.variable(false)
		if c.previous.Lexeme == nameTok.Lexeme {
			c.error("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal(syntheticToken("super"))
		c.defineVariable(0)

		c.namedVariable(nameTok, false)
		c.emitOp(chunk.OpInherit)
		cc.hasSuperclass = true
	}

	c.namedVariable(nameTok, false)
	c.consume(scanner.TokenLeftBrace, "Expect '{' before class body.")
	for !c.check(scanner.TokenRightBrace) && !c.check(scanner.TokenEOF) {
		c.method()
	}
	c.consume(scanner.TokenRightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop) // pop the class value pushed for OP_METHOD's target

	if cc.hasSuperclass {
		c.endScope()
	}
	c.class = cc.enclosing
}

func (c *Compiler) method() {
	c.consume(scanner.TokenIdentifier, "Expect method name.")
	nameTok := c.previous
	nameConstant := c.identifierConstant(nameTok)

	kind := KindMethod
	if nameTok.Lexeme == "init" {
		kind = KindInitializer
	}
	c.function(kind)
	c.emitOps(chunk.OpMethod, byte(nameConstant))
}

// function compiles a function/method body as a nested funcCompiler and
// emits OP_CLOSURE in the enclosing function, followed by one
// {isLocal,index} pair per captured upvalue (spec §4.2, §5's "flat
// closure" representation).
func (c *Compiler) function(kind FunctionKind) {
	enclosing := c.current
	fc := &funcCompiler{enclosing: enclosing, kind: kind}
	fc.function = c.heap.NewFunction()
	fc.function.Chunk = chunk.New()
	if kind != KindScript {
		fc.function.Name = c.heap.InternString(c.previous.Lexeme)
	}
	if kind == KindMethod || kind == KindInitializer {
		// slot 0 holds the receiver, accessible as `this`.
		fc.locals = append(fc.locals, local{name: syntheticToken("this"), depth: 0})
	} else {
		fc.locals = append(fc.locals, local{depth: 0})
	}
	c.current = fc

	c.beginScope()
	c.consume(scanner.TokenLeftParen, "Expect '(' after function name.")
	if !c.check(scanner.TokenRightParen) {
		for {
			c.current.function.Arity++
			if c.current.function.Arity > maxArgs {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConstant := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConstant)
			if !c.match(scanner.TokenComma) {
				break
			}
		}
	}
	c.consume(scanner.TokenRightParen, "Expect ')' after parameters.")
	c.consume(scanner.TokenLeftBrace, "Expect '{' before function body.")
	c.block()

	fn := c.endCompiler()
	upvalues := fc.upvalues

	// OP_CLOSURE always carries a 16-bit constant index — the VM
	// (readConstant16) and disassembler both unconditionally read two
	// operand bytes for it, so it gets no 8-/16-bit escalation choice
	// the way CONSTANT/GLOBAL do.
	idx := c.makeConstant(value.FromObj(fn))
	c.emitOp(chunk.OpClosure)
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx))
	for _, uv := range upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

// syntheticToken builds a Token not backed by actual source text, used
// for the compiler-injected `this`/`super` locals.
func syntheticToken(name string) scanner.Token {
	return scanner.Token{Type: scanner.TokenIdentifier, Lexeme: name, Line: 0}
}
