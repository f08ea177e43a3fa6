package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/vm"
)

// Repl starts an interactive read-eval-print loop, reading one line of
// source at a time from stdio.Stdin and running it against a single VM and
// Globals table so declarations made on one line stay visible on the next.
func (c *Cmd) Repl(_ context.Context, stdio mainer.Stdio, _ []string) error {
	machine := vm.New(vm.Config{Stdout: stdio.Stdout, Stderr: stdio.Stderr})
	globals := compiler.NewGlobals()

	sc := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if line == "" {
			continue
		}
		// Runtime errors are already reported to stdio.Stderr by the VM; a
		// compile error isn't, so print it here. Either way the REPL keeps
		// going on the next line.
		if result, err := machine.RunREPL([]byte(line), globals); err != nil && result == vm.InterpretCompileError {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
	return sc.Err()
}
