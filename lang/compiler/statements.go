package compiler

import "github.com/emberlang/ember/lang/token"

func (c *Compiler) declaration() {
	switch {
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.VAR):
		c.varDeclaration(false)
	case c.match(token.CONST):
		c.varDeclaration(true)
	default:
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.SWITCH):
		c.switchStatement()
	case c.match(token.LEFT_BRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RIGHT_BRACE, "Expected '}' after a block.")
}

func (c *Compiler) varDeclaration(isConst bool) {
	name := c.parseVariable("Expected variable name.")

	if c.match(token.EQUAL) {
		c.expression()
	} else if isConst {
		c.error("Missing value in the const declaration.")
		return
	} else {
		c.emit(OpNil)
	}
	c.consume(token.SEMICOLON, "Expected ';' after variable declaration.")
	c.defineVariable(name, isConst)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expected ';' after expression.")
	c.emit(OpPop)
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expected ';' after value.")
	c.emit(OpPrint)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LEFT_PAREN, "Expected '(' after 'if'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expected ')' after condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emit(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emit(OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) returnStatement() {
	if c.cs.funcType == FuncScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(token.SEMICOLON) {
		c.emitReturn()
		return
	}
	if c.cs.funcType == FuncInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.SEMICOLON, "Expected ';' after return value.")
	c.emit(OpReturn)
}

func (c *Compiler) whileStatement() {
	prevStart, prevDepth := c.cs.loopStart, c.cs.loopScopeDepth
	c.cs.loopStart = len(c.chunk().Code)
	c.cs.loopScopeDepth = c.cs.scopeDepth

	// A while loop has no per-iteration shadow binding; clearing these for
	// its body's duration keeps a `continue` in a nested while correctly
	// from trying to sync an enclosing for-loop's shadow variable that
	// isn't actually the loop it continues.
	prevVarSlot, prevShadowSlot := c.cs.loopVarSlot, c.cs.loopShadowSlot
	c.cs.loopVarSlot, c.cs.loopShadowSlot = -1, -1

	c.consume(token.LEFT_PAREN, "Expected '(' after 'while'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expected ')' after condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emit(OpPop)

	prevBreaks := c.cs.loopBreaks
	c.cs.loopBreaks = nil
	c.cs.breakTargets = append(c.cs.breakTargets, true)

	c.statement()
	c.emitLoop(c.cs.loopStart)

	c.cs.breakTargets = c.cs.breakTargets[:len(c.cs.breakTargets)-1]
	c.patchJump(exitJump)
	c.emit(OpPop)
	for _, b := range c.cs.loopBreaks {
		c.patchJump(b)
	}

	c.cs.loopBreaks = prevBreaks
	c.cs.loopStart, c.cs.loopScopeDepth = prevStart, prevDepth
	c.cs.loopVarSlot, c.cs.loopShadowSlot = prevVarSlot, prevShadowSlot
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LEFT_PAREN, "Expected '(' after 'for'.")

	loopVarSlot := -1
	var loopVarName string
	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		loopVarName = c.current.Raw
		c.varDeclaration(false)
		loopVarSlot = len(c.cs.locals) - 1
	default:
		c.expressionStatement()
	}

	prevStart, prevDepth := c.cs.loopStart, c.cs.loopScopeDepth
	c.cs.loopStart = len(c.chunk().Code)
	c.cs.loopScopeDepth = c.cs.scopeDepth

	exitJump := -1
	if !c.match(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "Expected ';' after loop condition.")
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emit(OpPop)
	}

	if !c.match(token.RIGHT_PAREN) {
		bodyJump := c.emitJump(OpJump)
		incrStart := len(c.chunk().Code)
		c.expression()
		c.emit(OpPop)
		c.consume(token.RIGHT_PAREN, "Expected ')' after for clauses.")

		c.emitLoop(c.cs.loopStart)
		c.cs.loopStart = incrStart
		c.patchJump(bodyJump)
	}

	prevBreaks := c.cs.loopBreaks
	c.cs.loopBreaks = nil

	// A var-initialized loop counter gets a fresh per-iteration shadow
	// binding, so a closure formed in the body captures this iteration's
	// value rather than the one shared initializer slot.
	loopShadowSlot := -1
	if loopVarSlot != -1 {
		c.beginScope()
		c.emitU16(OpGetLocal, uint16(loopVarSlot))
		c.addLocal(loopVarName)
		c.markInitialized(false)
		loopShadowSlot = len(c.cs.locals) - 1
	}

	prevVarSlot, prevShadowSlot := c.cs.loopVarSlot, c.cs.loopShadowSlot
	c.cs.loopVarSlot, c.cs.loopShadowSlot = loopVarSlot, loopShadowSlot
	c.cs.breakTargets = append(c.cs.breakTargets, true)

	c.statement()

	c.cs.breakTargets = c.cs.breakTargets[:len(c.cs.breakTargets)-1]
	c.cs.loopVarSlot, c.cs.loopShadowSlot = prevVarSlot, prevShadowSlot

	if loopVarSlot != -1 {
		c.emitU16(OpGetLocal, uint16(loopShadowSlot))
		c.emitU16(OpSetLocal, uint16(loopVarSlot))
		c.emit(OpPop)
		c.endScope()
	}

	c.emitLoop(c.cs.loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emit(OpPop)
	}

	// A break skips the body's own shadow-copy-back-and-endScope, so its
	// shadow local is still live on the stack when it lands here and needs
	// an extra pop the normal fall-through exit above must not take.
	if len(c.cs.loopBreaks) > 0 && loopVarSlot != -1 {
		skipBreakPop := c.emitJump(OpJump)
		for _, b := range c.cs.loopBreaks {
			c.patchJump(b)
		}
		c.emit(OpPop)
		c.patchJump(skipBreakPop)
	} else {
		for _, b := range c.cs.loopBreaks {
			c.patchJump(b)
		}
	}

	c.endScope()
	c.cs.loopStart, c.cs.loopScopeDepth = prevStart, prevDepth
	c.cs.loopBreaks = prevBreaks
}

// breakStatement resolves `break` to whichever breakable construct is
// lexically innermost — the top of breakTargets — rather than always
// preferring a loop: a switch nested inside a loop's body must let break
// exit just the switch, not the whole loop.
func (c *Compiler) breakStatement() {
	c.consume(token.SEMICOLON, "Expected ';' after 'break'.")
	if len(c.cs.breakTargets) == 0 {
		c.error("Unexpected 'break' outside of switch|for|while statements.")
		return
	}
	switch {
	case c.cs.breakTargets[len(c.cs.breakTargets)-1]:
		c.cs.loopBreaks = append(c.cs.loopBreaks, c.emitJump(OpJump))
	default:
		c.cs.switchBreaks = append(c.cs.switchBreaks, c.emitJump(OpJump))
	}
}

func (c *Compiler) continueStatement() {
	c.consume(token.SEMICOLON, "Expected ';' after 'continue'.")
	if c.cs.loopStart == -1 {
		c.error("Unexpected 'continue' outside of loop.")
		return
	}
	// A continue inside a for-loop with a var initializer jumps straight to
	// the increment clause, bypassing the body's normal end-of-scope sync
	// of the shadow binding back into the real loop-variable slot. Emit
	// that sync here too, before popping the shadow scope off the stack,
	// so a mutation to the loop variable made before `continue` is still
	// visible to the increment and the next iteration's condition check.
	if c.cs.loopVarSlot != -1 {
		c.emitU16(OpGetLocal, uint16(c.cs.loopShadowSlot))
		c.emitU16(OpSetLocal, uint16(c.cs.loopVarSlot))
		c.emit(OpPop)
	}
	popCount := 0
	for i := len(c.cs.locals) - 1; i >= 0 && c.cs.locals[i].depth > c.cs.loopScopeDepth; i-- {
		popCount++
	}
	if popCount > 0 {
		c.emitU16(OpPopN, uint16(popCount))
	}
	c.emitLoop(c.cs.loopStart)
}

func (c *Compiler) switchStatement() {
	c.beginScope()
	c.consume(token.LEFT_PAREN, "Expected '(' after 'switch'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expected ')' after condition.")
	c.consume(token.LEFT_BRACE, "Expected '{' before 'switch' body.")

	prevBreaks := c.cs.switchBreaks
	c.cs.switchBreaks = nil
	c.cs.breakTargets = append(c.cs.breakTargets, false)

	// The switch subject lives as an anonymous local so OpDuplicate/OpPop
	// bracketing each case can compare against it without re-evaluating it.
	c.addLocal("")
	c.markInitialized(false)

	defaultCompiled := false
	fallthroughJump := -1
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		if !c.match(token.SWITCH_CASE) && !c.match(token.SWITCH_DEFAULT) {
			c.advance()
			c.error("Unexpected keyword inside 'switch' statement.")
		}

		if defaultCompiled && c.previousTok == token.SWITCH_DEFAULT {
			c.error("switch statement can only have 1 default case.")
		}
		if c.previousTok == token.SWITCH_DEFAULT {
			defaultCompiled = true
			c.emit(OpTrue)
		} else {
			c.emit(OpDuplicate)
			c.expression()
			c.emit(OpEqual)
		}
		c.consume(token.COLON, "Expected ':' after switch case.")

		nextCaseJump := c.emitJump(OpJumpIfFalse)
		c.emit(OpPop)
		if fallthroughJump != -1 {
			c.patchJump(fallthroughJump)
		}

		for !c.check(token.SWITCH_CASE) && !c.check(token.SWITCH_DEFAULT) &&
			!c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
			c.statement()
		}

		fallthroughJump = c.emitJump(OpJump)
		c.patchJump(nextCaseJump)
		c.emit(OpPop)
	}
	c.consume(token.RIGHT_BRACE, "Expected '}' after switch body.")

	c.cs.breakTargets = c.cs.breakTargets[:len(c.cs.breakTargets)-1]
	if fallthroughJump != -1 {
		c.patchJump(fallthroughJump)
	}
	for _, b := range c.cs.switchBreaks {
		c.patchJump(b)
	}
	c.cs.switchBreaks = prevBreaks
	c.endScope()
}
