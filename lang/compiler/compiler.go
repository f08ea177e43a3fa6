package compiler

import (
	"errors"
	"strconv"

	"github.com/emberlang/ember/lang/scanner"
	"github.com/emberlang/ember/lang/token"
)

// Compiler turns a token stream into bytecode in a single pass: there is no
// intermediate tree. Each parse function both consumes tokens and emits the
// instructions for what it just consumed, recursing through parsePrecedence
// for sub-expressions and patching jumps once their targets are known.
type Compiler struct {
	sc *scanner.Scanner

	current     token.Value
	currentTok  token.Token
	previous    token.Value
	previousTok token.Token
	scanErrMsg  string

	hadError  bool
	panicMode bool
	errs      []error

	cs      *compState
	class   *classState
	globals *Globals
}

// Compile compiles source into a top-level script function, starting from a
// fresh globals table. On a compile error it returns a nil Program and a
// non-nil error (an errors.Join of every diagnostic collected, so callers
// may range over them with Unwrap).
func Compile(source []byte) (*Program, error) {
	return CompileIncremental(source, newGlobals())
}

// CompileIncremental compiles source against an existing Globals table
// instead of a fresh one, so a caller driving a REPL one line at a time can
// carry global slot assignments forward across calls: a name declared on an
// earlier line keeps the same slot index on later lines, exactly as the
// variable resolution rules of §4.3 assume for a single running program.
func CompileIncremental(source []byte, globals *Globals) (*Program, error) {
	c := &Compiler{globals: globals}
	c.sc = scanner.New(source, func(pos token.Pos, msg string) {
		c.scanErrMsg = msg
	})
	c.cs = newCompState(nil, FuncScript, "")

	c.advance()
	for !c.check(token.EOF) {
		c.declaration()
	}

	fn := c.endCompiler()
	if c.hadError {
		return nil, errors.Join(c.errs...)
	}
	return &Program{Function: fn, Globals: c.globals}, nil
}

func (c *Compiler) chunk() *Chunk { return c.cs.chunk() }

func (c *Compiler) advance() {
	c.previous, c.previousTok = c.current, c.currentTok
	for {
		var val token.Value
		tok := c.sc.Scan(&val)
		c.current, c.currentTok = val, tok
		if tok != token.ILLEGAL {
			return
		}
		c.errorAtCurrent(c.scanErrMsg)
	}
}

func (c *Compiler) check(tok token.Token) bool { return c.currentTok == tok }

func (c *Compiler) match(tok token.Token) bool {
	if !c.check(tok) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(tok token.Token, msg string) {
	if c.currentTok == tok {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// synchronize discards tokens after a compile error until it finds a likely
// statement boundary, so one mistake does not cascade into dozens more.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.currentTok != token.EOF {
		if c.previousTok == token.SEMICOLON {
			return
		}
		switch c.currentTok {
		case token.CLASS, token.FUN, token.VAR, token.CONST, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// --- bytecode emission ---

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.previous.Pos.Line())
}

func (c *Compiler) emit(op Opcode) { c.emitByte(byte(op)) }

func (c *Compiler) emitU16(op Opcode, operand uint16) {
	c.emitByte(byte(op))
	c.emitByte(byte(operand >> 8))
	c.emitByte(byte(operand))
}

func (c *Compiler) emitU24(op Opcode, operand uint32) {
	c.emitByte(byte(op))
	c.emitByte(byte(operand >> 16))
	c.emitByte(byte(operand >> 8))
	c.emitByte(byte(operand))
}

func (c *Compiler) emitJump(op Opcode) int {
	c.emit(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emit(OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

func (c *Compiler) emitReturn() {
	if c.cs.funcType == FuncInitializer {
		c.emitU16(OpGetLocal, 0)
	} else {
		c.emit(OpNil)
	}
	c.emit(OpReturn)
}

func (c *Compiler) makeConstant(v any) uint32 {
	idx, err := c.chunk().AddConstant(v)
	if err != nil {
		c.error(err.Error())
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v any) {
	c.emitU24(OpConstant, c.makeConstant(v))
}

// identifierConstant interns name as a string constant in the current
// chunk, reusing the index if this chunk already referenced the same name
// (property, class, method, or super lookups all key off this).
func (c *Compiler) identifierConstant(name string) uint32 {
	if idx, ok := c.cs.constCache[name]; ok {
		return idx
	}
	idx := c.makeConstant(name)
	c.cs.constCache[name] = idx
	return idx
}

func (c *Compiler) endCompiler() *FunctionProto {
	c.emitReturn()
	fn := c.cs.fn
	fn.UpvalueCount = len(fn.Upvalues)
	c.cs = c.cs.enclosing
	return fn
}

// --- scopes and variables ---

func (c *Compiler) beginScope() { c.cs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.cs.scopeDepth--
	for len(c.cs.locals) > 0 && c.cs.locals[len(c.cs.locals)-1].depth > c.cs.scopeDepth {
		last := c.cs.locals[len(c.cs.locals)-1]
		if last.isCaptured {
			c.emit(OpCloseUpvalue)
		} else {
			c.emit(OpPop)
		}
		c.cs.locals = c.cs.locals[:len(c.cs.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.cs.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.cs.locals = append(c.cs.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable(name string) {
	if c.cs.scopeDepth == 0 {
		return
	}
	for i := len(c.cs.locals) - 1; i >= 0; i-- {
		l := c.cs.locals[i]
		if l.depth != -1 && l.depth < c.cs.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes an identifier token and declares it, returning its
// source text for defineVariable (which decides, by scope depth, whether it
// becomes a local slot or a global slot).
func (c *Compiler) parseVariable(errMsg string) string {
	c.consume(token.IDENTIFIER, errMsg)
	name := c.previous.Raw
	c.declareVariable(name)
	return name
}

func (c *Compiler) markInitialized(isConst bool) {
	if c.cs.scopeDepth == 0 {
		return
	}
	last := &c.cs.locals[len(c.cs.locals)-1]
	last.depth = c.cs.scopeDepth
	last.isConst = isConst
}

func (c *Compiler) defineVariable(name string, isConst bool) {
	if c.cs.scopeDepth > 0 {
		c.markInitialized(isConst)
		return
	}
	if isConst {
		c.globals.markConst(name)
	}
	c.emitU16(OpDefineGlobal, c.globalSlot(name))
}

// globalSlot resolves name to its global slot, reporting a compile error
// instead of returning once the program has exhausted maxGlobals distinct
// names.
func (c *Compiler) globalSlot(name string) uint16 {
	idx, ok := c.globals.slot(name)
	if !ok {
		c.error("Too many global variables in program.")
		return 0
	}
	return idx
}

func (c *Compiler) resolveLocal(cs *compState, name string) int {
	for i := len(cs.locals) - 1; i >= 0; i-- {
		if cs.locals[i].name == name {
			if cs.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(cs *compState, index uint8, isLocal bool) int {
	for i, uv := range cs.fn.Upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(cs.fn.Upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	cs.fn.Upvalues = append(cs.fn.Upvalues, UpvalueDesc{IsLocal: isLocal, Index: index})
	return len(cs.fn.Upvalues) - 1
}

func (c *Compiler) resolveUpvalue(cs *compState, name string) int {
	if cs.enclosing == nil {
		return -1
	}
	if l := c.resolveLocal(cs.enclosing, name); l != -1 {
		cs.enclosing.locals[l].isCaptured = true
		return c.addUpvalue(cs, uint8(l), true)
	}
	if u := c.resolveUpvalue(cs.enclosing, name); u != -1 {
		return c.addUpvalue(cs, uint8(u), false)
	}
	return -1
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp Opcode
	var isConst, isGlobal bool
	arg := c.resolveLocal(c.cs, name)
	switch {
	case arg != -1:
		getOp, setOp = OpGetLocal, OpSetLocal
		isConst = c.cs.locals[arg].isConst
	default:
		if up := c.resolveUpvalue(c.cs, name); up != -1 {
			arg = up
			getOp, setOp = OpGetUpvalue, OpSetUpvalue
		} else {
			isGlobal = true
			isConst = c.globals.isConst(name)
			getOp, setOp = OpGetGlobal, OpSetGlobal
		}
	}

	if canAssign && c.match(token.EQUAL) {
		if isConst {
			c.error("Cannot assign to a constant variable.")
			return
		}
		c.expression()
		if isGlobal {
			c.emitU16(setOp, c.globalSlot(name))
		} else {
			c.emitU16(setOp, uint16(arg))
		}
		return
	}
	if isGlobal {
		c.emitU16(getOp, c.globalSlot(name))
	} else {
		c.emitU16(getOp, uint16(arg))
	}
}

// --- expressions ---

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := rules[c.previousTok].prefix
	if prefix == nil {
		c.error("Expected an expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= rules[c.currentTok].precedence {
		c.advance()
		infix := rules[c.previousTok].infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.error("Invalid assignment target.")
	}
}

func parseNumber(c *Compiler, _ bool) {
	n, err := strconv.ParseFloat(c.previous.Raw, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(n)
}

func parseString(c *Compiler, _ bool) {
	c.emitConstant(c.previous.Raw)
}

func parseLiteral(c *Compiler, _ bool) {
	switch c.previousTok {
	case token.FALSE:
		c.emit(OpFalse)
	case token.TRUE:
		c.emit(OpTrue)
	case token.NIL:
		c.emit(OpNil)
	}
}

func parseGrouping(c *Compiler, _ bool) {
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expected ')' after expression.")
}

func parseUnary(c *Compiler, _ bool) {
	opType := c.previousTok
	c.parsePrecedence(PrecUnary)
	switch opType {
	case token.BANG:
		c.emit(OpNot)
	case token.MINUS:
		c.emit(OpNegate)
	}
}

func parseBinary(c *Compiler, _ bool) {
	opType := c.previousTok
	rule := rules[opType]
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.PLUS:
		c.emit(OpAdd)
	case token.MINUS:
		c.emit(OpSubtract)
	case token.STAR:
		c.emit(OpMultiply)
	case token.SLASH:
		c.emit(OpDivide)
	case token.MODULO:
		c.emit(OpModulo)
	case token.BANG_EQUAL:
		c.emit(OpEqual)
		c.emit(OpNot)
	case token.EQUAL_EQUAL:
		c.emit(OpEqual)
	case token.GREATER:
		c.emit(OpGreater)
	case token.GREATER_EQUAL:
		c.emit(OpLess)
		c.emit(OpNot)
	case token.LESS:
		c.emit(OpLess)
	case token.LESS_EQUAL:
		c.emit(OpGreater)
		c.emit(OpNot)
	}
}

func parseAnd(c *Compiler, _ bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emit(OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func parseOr(c *Compiler, _ bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)
	c.patchJump(elseJump)
	c.emit(OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func parseConditional(c *Compiler, _ bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	c.emit(OpPop)
	c.parsePrecedence(PrecConditional)

	endJump := c.emitJump(OpJump)
	c.consume(token.COLON, "Expected ':' after '?'.")
	c.patchJump(elseJump)
	c.emit(OpPop)
	c.parsePrecedence(PrecAssignment)
	c.patchJump(endJump)
}

func (c *Compiler) argumentList() byte {
	argc := 0
	if !c.check(token.RIGHT_PAREN) {
		for {
			c.expression()
			if argc == maxArguments {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RIGHT_PAREN, "Expected ')' after arguments.")
	return byte(argc)
}

func parseCall(c *Compiler, _ bool) {
	argc := c.argumentList()
	c.emit(OpCall)
	c.emitByte(argc)
}

func parseDot(c *Compiler, canAssign bool) {
	c.consume(token.IDENTIFIER, "Expected property name after '.'.")
	name := c.identifierConstant(c.previous.Raw)

	switch {
	case canAssign && c.match(token.EQUAL):
		c.expression()
		c.emitU24(OpSetProperty, name)
	case c.match(token.LEFT_PAREN):
		argc := c.argumentList()
		c.emitU24(OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitU24(OpGetProperty, name)
	}
}

func parseVariableExpr(c *Compiler, canAssign bool) {
	c.namedVariable(c.previous.Raw, canAssign)
}

func parseThis(c *Compiler, _ bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

func parseSuper(c *Compiler, _ bool) {
	switch {
	case c.class == nil:
		c.error("Can't use 'super' outside of a class.")
		return
	case !c.class.hasSuperclass:
		c.error("Can't use 'super' in a class with no superclass.")
		return
	}
	c.consume(token.DOT, "Expected '.' after 'super'.")
	c.consume(token.IDENTIFIER, "Expected superclass method name.")
	name := c.identifierConstant(c.previous.Raw)

	c.namedVariable("this", false)
	if c.match(token.LEFT_PAREN) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitU24(OpInvokeSuper, name)
		c.emitByte(argc)
		return
	}
	c.namedVariable("super", false)
	c.emitU24(OpGetSuper, name)
}

func parseArrayLiteral(c *Compiler, _ bool) {
	n := 0
	if !c.check(token.RIGHT_BRACKET) {
		for {
			c.expression()
			n++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RIGHT_BRACKET, "Expected ']' after array elements.")
	if n > 0xffff {
		c.error("Too many elements in array literal.")
	}
	c.emitU16(OpArray, uint16(n))
}

func parseSubscript(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(token.RIGHT_BRACKET, "Expected ']' after index.")
	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emit(OpArraySet)
		return
	}
	c.emit(OpArrayGet)
}
