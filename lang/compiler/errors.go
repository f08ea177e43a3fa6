package compiler

import (
	"fmt"

	"github.com/emberlang/ember/lang/token"
)

// CompileError is one diagnostic produced while compiling a chunk. Multiple
// errors accumulate across a single Compile call and are returned together
// via errors.Join, so callers can range over them with errors.As/Unwrap
// instead of only seeing the first failure.
type CompileError struct {
	Pos token.Pos
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %s] %s", e.Pos, e.Msg)
}

func (c *Compiler) errorAt(pos token.Pos, tok token.Token, val token.Value, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	where := " at end"
	if tok != token.EOF {
		where = fmt.Sprintf(" at '%s'", val.Raw)
	}
	c.errs = append(c.errs, &CompileError{Pos: pos, Msg: fmt.Sprintf("Error%s: %s", where, msg)})
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current.Pos, c.currentTok, c.current, msg)
}

func (c *Compiler) error(msg string) {
	c.errorAt(c.previous.Pos, c.previousTok, c.previous, msg)
}
