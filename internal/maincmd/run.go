package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/vm"
)

// Run compiles and executes the source file named by the first argument.
func (c *Cmd) Run(_ context.Context, stdio mainer.Stdio, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	machine := vm.New(vm.Config{Stdout: stdio.Stdout, Stderr: stdio.Stderr})
	if result, err := machine.Run(src); err != nil {
		switch result {
		case vm.InterpretCompileError:
			return printError(stdio, err)
		default:
			// runtimeError already wrote the trace to stdio.Stderr itself
			return err
		}
	}
	return nil
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}
