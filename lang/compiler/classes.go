package compiler

import "github.com/emberlang/ember/lang/token"

func (c *Compiler) funDeclaration() {
	name := c.parseVariable("Expected function name.")
	c.markInitialized(false)
	c.function(FuncFunction, name)
	c.defineVariable(name, false)
}

// function compiles a function's parameter list and body into its own
// compState/chunk, then emits CLOSURE (with per-upvalue capture metadata)
// into the enclosing chunk.
func (c *Compiler) function(funcType FuncType, name string) {
	enclosing := c.cs
	c.cs = newCompState(enclosing, funcType, name)
	c.beginScope()

	c.consume(token.LEFT_PAREN, "Expected '(' after function name.")
	if !c.check(token.RIGHT_PAREN) {
		for {
			c.cs.fn.Arity++
			if c.cs.fn.Arity > maxParams {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			pname := c.parseVariable("Expected parameter name.")
			c.defineVariable(pname, false)
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RIGHT_PAREN, "Expected ')' after parameters.")
	c.consume(token.LEFT_BRACE, "Expected '{' before function body.")
	c.block()

	fn := c.endCompiler()
	upvalues := fn.Upvalues
	c.emitU24(OpClosure, c.makeConstant(fn))
	for _, uv := range upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.Index)
	}
}

func (c *Compiler) method() {
	c.consume(token.IDENTIFIER, "Expected method name.")
	name := c.previous.Raw
	nameConst := c.identifierConstant(name)

	funcType := FuncMethod
	if name == "init" {
		funcType = FuncInitializer
	}
	c.function(funcType, name)
	c.emitU24(OpMethod, nameConst)
}

func (c *Compiler) classDeclaration() {
	c.consume(token.IDENTIFIER, "Expected class name.")
	className := c.previous.Raw
	nameConst := c.identifierConstant(className)
	c.declareVariable(className)

	c.emitU24(OpClass, nameConst)
	c.defineVariable(className, false)

	cls := &classState{enclosing: c.class}
	c.class = cls

	if c.match(token.LESS) {
		c.consume(token.IDENTIFIER, "Expected superclass name.")
		if c.previous.Raw == className {
			c.error("A class can't inherit from itself.")
		}
		parseVariableExpr(c, false)

		c.beginScope()
		c.addLocal("super")
		c.markInitialized(false)

		c.namedVariable(className, false)
		c.emit(OpInherit)
		cls.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(token.LEFT_BRACE, "Expected '{' before class body.")
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RIGHT_BRACE, "Expected '}' after class body.")
	c.emit(OpPop)

	if cls.hasSuperclass {
		c.endScope()
	}
	c.class = cls.enclosing
}
