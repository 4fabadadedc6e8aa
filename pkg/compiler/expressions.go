package compiler

import (
	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/scanner"
	"github.com/kristofer/glox/pkg/value"
)

// Precedence levels, lowest to highest, per spec §4.2's Pratt table.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precTernary               // ?:
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . () []
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is the Pratt parser's rule table, indexed by token type — the
// single source of truth for both prefix dispatch and infix
// precedence-climbing (spec §4.2).
var rules map[scanner.TokenType]parseRule

func init() {
	rules = map[scanner.TokenType]parseRule{
		scanner.TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		scanner.TokenLeftBracket:  {prefix: (*Compiler).arrayLiteral, infix: (*Compiler).index, precedence: precCall},
		scanner.TokenDot:          {infix: (*Compiler).dot, precedence: precCall},
		scanner.TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		scanner.TokenPlus:         {infix: (*Compiler).binary, precedence: precTerm},
		scanner.TokenSlash:        {infix: (*Compiler).binary, precedence: precFactor},
		scanner.TokenStar:         {infix: (*Compiler).binary, precedence: precFactor},
		scanner.TokenBang:         {prefix: (*Compiler).unary},
		scanner.TokenBangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		scanner.TokenEqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		scanner.TokenGreater:      {infix: (*Compiler).binary, precedence: precComparison},
		scanner.TokenGreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		scanner.TokenLess:         {infix: (*Compiler).binary, precedence: precComparison},
		scanner.TokenLessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		scanner.TokenIdentifier:   {prefix: (*Compiler).variableExpr},
		scanner.TokenString:       {prefix: (*Compiler).stringLit},
		scanner.TokenNumber:       {prefix: (*Compiler).numberLit},
		scanner.TokenAnd:          {infix: (*Compiler).and_, precedence: precAnd},
		scanner.TokenOr:           {infix: (*Compiler).or_, precedence: precOr},
		scanner.TokenQuestion:     {infix: (*Compiler).ternary, precedence: precTernary},
		scanner.TokenFalse:        {prefix: (*Compiler).literal},
		scanner.TokenTrue:         {prefix: (*Compiler).literal},
		scanner.TokenNil:          {prefix: (*Compiler).literal},
		scanner.TokenSuper:        {prefix: (*Compiler).super_},
		scanner.TokenThis:         {prefix: (*Compiler).this_},
	}
}

func (c *Compiler) getRule(t scanner.TokenType) parseRule { return rules[t] }

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

// parsePrecedence is the Pratt engine's core loop (spec §4.2): parse one
// prefix production, then keep consuming infix operators whose
// precedence is at least prec.
func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix := c.getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= c.getRule(c.currentToken.Type).precedence {
		c.advance()
		infix := c.getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(scanner.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) numberLit(canAssign bool) {
	c.emitConstant(numberValue(c.previous.Lexeme))
}

// stringLit strips the surrounding quotes and interns the body (spec
// §3: strings are always interned).
func (c *Compiler) stringLit(canAssign bool) {
	raw := c.previous.Lexeme
	body := raw[1 : len(raw)-1]
	s := c.heap.InternString(body)
	c.emitConstant(value.FromObj(s))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case scanner.TokenFalse:
		c.emitOp(chunk.OpFalse)
	case scanner.TokenTrue:
		c.emitOp(chunk.OpTrue)
	case scanner.TokenNil:
		c.emitOp(chunk.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(scanner.TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)
	switch op {
	case scanner.TokenMinus:
		c.emitOp(chunk.OpNegate)
	case scanner.TokenBang:
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.previous.Type
	rule := c.getRule(op)
	c.parsePrecedence(rule.precedence + 1)

	switch op {
	case scanner.TokenPlus:
		c.emitOp(chunk.OpAdd)
	case scanner.TokenMinus:
		c.emitOp(chunk.OpSubtract)
	case scanner.TokenStar:
		c.emitOp(chunk.OpMultiply)
	case scanner.TokenSlash:
		c.emitOp(chunk.OpDivide)
	case scanner.TokenEqualEqual:
		c.emitOp(chunk.OpEqual)
	case scanner.TokenBangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case scanner.TokenGreater:
		c.emitOp(chunk.OpGreater)
	case scanner.TokenGreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case scanner.TokenLess:
		c.emitOp(chunk.OpLess)
	case scanner.TokenLessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	}
}

// and_ short-circuits by jumping over the right operand when the left
// is already falsey, leaving it on the stack as the result (spec §4.2).
func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

// or_ short-circuits the opposite way: jump over the right operand when
// the left is already truthy.
func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

// ternary compiles `cond ? then : else` as an if/else jump pair, the
// same shape as ifStatement but as an expression (spec §4.2).
func (c *Compiler) ternary(canAssign bool) {
	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precTernary)
	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)
	c.consume(scanner.TokenColon, "Expect ':' in ternary expression.")
	c.parsePrecedence(precAssignment)
	c.patchJump(elseJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOps(chunk.OpCall, argCount)
}

func (c *Compiler) argumentList() byte {
	var count int
	if !c.check(scanner.TokenRightParen) {
		for {
			c.expression()
			if count == maxArgs {
				c.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(scanner.TokenComma) {
				break
			}
		}
	}
	c.consume(scanner.TokenRightParen, "Expect ')' after arguments.")
	return byte(count)
}

// dot compiles property access/assignment and the OP_INVOKE fast path
// (spec §5): `obj.name(args)` skips building a BoundMethod entirely when
// it's immediately called.
func (c *Compiler) dot(canAssign bool) {
	c.consume(scanner.TokenIdentifier, "Expect property name after '.'.")
	nameConstant := c.identifierConstant(c.previous)

	switch {
	case canAssign && c.match(scanner.TokenEqual):
		c.expression()
		c.emitOps(chunk.OpSetProperty, byte(nameConstant))
	case c.match(scanner.TokenLeftParen):
		argCount := c.argumentList()
		c.emitOp(chunk.OpInvoke)
		c.emitByte(byte(nameConstant))
		c.emitByte(argCount)
	default:
		c.emitOps(chunk.OpGetProperty, byte(nameConstant))
	}
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.variableExpr(false)
}

// super_ compiles `super.method` or `super.method(args)`, resolving
// `this` and `super` as upvalues/locals the same way any other variable
// reference would (spec §5).
func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(scanner.TokenDot, "Expect '.' after 'super'.")
	c.consume(scanner.TokenIdentifier, "Expect superclass method name.")
	nameConstant := c.identifierConstant(c.previous)

	c.namedVariable(syntheticToken("this"), false)
	if c.match(scanner.TokenLeftParen) {
		argCount := c.argumentList()
		c.namedVariable(syntheticToken("super"), false)
		c.emitOp(chunk.OpSuperInvoke)
		c.emitByte(byte(nameConstant))
		c.emitByte(argCount)
	} else {
		c.namedVariable(syntheticToken("super"), false)
		c.emitOps(chunk.OpGetSuper, byte(nameConstant))
	}
}

func (c *Compiler) variableExpr(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

// namedVariable resolves name through the three-tier local/upvalue/
// global lookup (spec §4.2) and compiles either a read or, if canAssign
// and an '=' follows, a write.
func (c *Compiler) namedVariable(name scanner.Token, canAssign bool) {
	var getOp, setOp, getOp16, setOp16 chunk.OpCode
	var argIdx int
	isGlobal := false

	if arg := c.resolveLocal(c.current, name.Lexeme); arg != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
		argIdx = arg
	} else if up := c.resolveUpvalue(c.current, name.Lexeme); up != -1 {
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
		argIdx = up
	} else {
		argIdx = c.identifierConstant(name)
		getOp, getOp16 = chunk.OpGetGlobal, chunk.OpGetGlobal16
		setOp, setOp16 = chunk.OpSetGlobal, chunk.OpSetGlobal16
		isGlobal = true
	}

	if canAssign && c.match(scanner.TokenEqual) {
		c.expression()
		if isGlobal {
			c.emitGlobalOp(setOp, setOp16, argIdx)
		} else {
			c.emitOps(setOp, byte(argIdx))
		}
		return
	}
	if isGlobal {
		c.emitGlobalOp(getOp, getOp16, argIdx)
	} else {
		c.emitOps(getOp, byte(argIdx))
	}
}

// ---- arrays (optional, spec §4.3) ---------------------------------------

func (c *Compiler) arrayLiteral(canAssign bool) {
	var count int
	if !c.check(scanner.TokenRightBracket) {
		for {
			c.expression()
			count++
			if !c.match(scanner.TokenComma) {
				break
			}
		}
	}
	c.consume(scanner.TokenRightBracket, "Expect ']' after array elements.")
	if count > 0xFF {
		c.error("Too many elements in array literal.")
	}
	c.emitOps(chunk.OpArray, byte(count))
}

func (c *Compiler) index(canAssign bool) {
	c.expression()
	c.consume(scanner.TokenRightBracket, "Expect ']' after index.")
	if canAssign && c.match(scanner.TokenEqual) {
		c.expression()
		c.emitOp(chunk.OpSetIndex)
	} else {
		c.emitOp(chunk.OpGetIndex)
	}
}
