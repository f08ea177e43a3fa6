package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/lang/scanner"
	"github.com/emberlang/ember/lang/token"
)

// Tokenize runs the scanner over the source file named by the first
// argument and prints every token it produces, one per line.
func (c *Cmd) Tokenize(_ context.Context, stdio mainer.Stdio, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	var scanErr error
	sc := scanner.New(src, func(pos token.Pos, msg string) {
		if scanErr == nil {
			scanErr = fmt.Errorf("%s: %s", pos, msg)
		}
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", pos, msg)
	})

	var val token.Value
	for {
		tok := sc.Scan(&val)
		if tok == token.EOF {
			fmt.Fprintf(stdio.Stdout, "%s: %s\n", val.Pos, tok)
			break
		}
		if val.Raw != "" {
			fmt.Fprintf(stdio.Stdout, "%s: %s %q\n", val.Pos, tok, val.Raw)
		} else {
			fmt.Fprintf(stdio.Stdout, "%s: %s\n", val.Pos, tok)
		}
	}
	return scanErr
}
