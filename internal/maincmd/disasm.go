package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/compiler"
)

// Disasm compiles the source file named by the first argument and prints
// the disassembled bytecode of the top-level script and every nested
// function it defines.
func (c *Cmd) Disasm(_ context.Context, stdio mainer.Stdio, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	prog, err := compiler.Compile(src)
	if err != nil {
		return printError(stdio, err)
	}

	disassembleRecursive(stdio, prog.Function)
	return nil
}

func disassembleRecursive(stdio mainer.Stdio, fn *compiler.FunctionProto) {
	name := fn.Name
	if name == "" {
		name = "<script>"
	}
	compiler.Disassemble(stdio.Stdout, fn.Chunk, name)
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.(*compiler.FunctionProto); ok {
			disassembleRecursive(stdio, nested)
		}
	}
}
