// Package compiler implements the single-pass Pratt-style compiler that
// turns a token stream directly into bytecode, and the Chunk/FunctionProto
// artifacts it produces. There is deliberately no intervening AST: the
// compiler's recursive-descent expression parser emits instructions as it
// goes, exactly as it consumes each token, and patches forward jumps once
// their target address is known.
package compiler

import "fmt"

// MaxConstants is the largest number of constants a single chunk may hold
// (its index operand is 24 bits wide).
const MaxConstants = 1 << 24

// LineRun is one run-length-encoded entry of a Chunk's line table: Run
// consecutive bytecode offsets all originated from source Line.
type LineRun struct {
	Line int
	Run  int
}

// Chunk is a self-contained compiled unit: a byte-code instruction stream,
// its constant pool, and a line table mapping code offsets back to source
// lines. Constants are stored as the raw Go values the compiler produced
// (float64 for numbers, string for string/identifier literals, and
// *FunctionProto for nested function prototypes); the virtual machine
// converts them into runtime value.Value instances when it loads the chunk,
// the same two-stage "compiled constant" -> "runtime value" split the rest
// of this codebase's front end uses for its own constant pools.
type Chunk struct {
	Code      []byte
	Constants []any
	Lines     []LineRun
}

// Write appends a single byte of bytecode, extending the chunk's line table.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	n := len(c.Lines)
	if n > 0 && c.Lines[n-1].Line == line {
		c.Lines[n-1].Run++
		return
	}
	c.Lines = append(c.Lines, LineRun{Line: line, Run: 1})
}

// LineAt returns the source line that produced the instruction at the given
// code offset, by scanning the run-length table.
func (c *Chunk) LineAt(offset int) int {
	remaining := offset
	for _, run := range c.Lines {
		if remaining < run.Run {
			return run.Line
		}
		remaining -= run.Run
	}
	if len(c.Lines) > 0 {
		return c.Lines[len(c.Lines)-1].Line
	}
	return 0
}

// AddConstant appends v to the constant pool and returns its index. It
// does not deduplicate: the compiler only calls it once per distinct literal
// occurrence, and string interning happens at the value layer at load time.
func (c *Chunk) AddConstant(v any) (uint32, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, fmt.Errorf("too many constants in one chunk")
	}
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1), nil
}

// FunctionProto is the compiled artifact for one function (or the top-level
// script, which is represented as a function with no parameters and no
// name). It is turned into a *value.ObjFunction when the virtual machine
// loads the enclosing chunk.
type FunctionProto struct {
	Name         string // empty for the top-level script
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Upvalues     []UpvalueDesc
}
