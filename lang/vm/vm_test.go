package vm_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/vm"
)

func run(t *testing.T, src string) (stdout, stderr string, result vm.InterpretResult) {
	t.Helper()
	var out, errOut bytes.Buffer
	machine := vm.New(vm.Config{Stdout: &out, Stderr: &errOut})
	res, err := machine.Run([]byte(src))
	if err != nil && res == vm.InterpretCompileError {
		require.NoError(t, err, "compile error")
	}
	return out.String(), errOut.String(), res
}

func TestArithmeticPrecedence(t *testing.T) {
	out, _, res := run(t, `print 5 + 2 * 3;`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "11\n", out)
}

func TestRecursiveFibonacci(t *testing.T) {
	out, _, res := run(t, `
		fun fib(n) { if (n <= 1) return n; return fib(n-2) + fib(n-1); }
		print fib(5);
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "5\n", out)
}

func TestClosuresCaptureSeparateUpvalueInstances(t *testing.T) {
	out, _, res := run(t, `
		fun adder() { var i = 0; fun c(x) { i = i + x; print i; } return c; }
		var p = adder(); var n = adder();
		for (var i = 0; i < 3; i = i + 1) { p(1); n(-1); }
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "1\n-1\n2\n-2\n3\n-3\n", out)
}

func TestClassInitAndMethods(t *testing.T) {
	out, _, res := run(t, `
		class Rect { init(w, h) { this.w = w; this.h = h; } area() { return this.w * this.h; } }
		print Rect(7, 8).area();
		print Rect(9, 9).area();
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "56\n81\n", out)
}

func TestSingleInheritanceAndSuper(t *testing.T) {
	out, _, res := run(t, `
		class A { cook() { print "base"; } }
		class B < A { cook() { super.cook(); print "derived"; } }
		B().cook();
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "base\nderived\n", out)
}

func TestArrayIndexAndPrint(t *testing.T) {
	out, _, res := run(t, `var a = [2, 3, 5, 7, 11]; print a[2]; print a;`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "5\n[2, 3, 5, 7, 11]\n", out)
}

func TestWhileLoopScope(t *testing.T) {
	out, _, res := run(t, `var i = 0; while (i < 10) { i = i + 1; } print i;`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "10\n", out)
}

func TestForLoopDoesNotLeakItsOwnScope(t *testing.T) {
	out, _, res := run(t, `
		var i = 100;
		for (var i = 0; i < 10; i = i + 1) {}
		print i;
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "100\n", out)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	out, errOut, res := run(t, `print undefinedVar;`)
	assert.Equal(t, vm.InterpretRuntimeError, res)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Undefined variable 'undefinedVar'.")
}

func TestSwitchFallthroughAndDefault(t *testing.T) {
	out, _, res := run(t, `
		fun classify(n) {
			switch (n) {
				case 1: print "one";
				case 2: print "two"; break;
				default: print "other";
			}
		}
		classify(1);
		classify(2);
		classify(3);
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "one\ntwo\ntwo\nother\n", out)
}

func TestBreakAndContinueInLoop(t *testing.T) {
	out, _, res := run(t, `
		for (var i = 0; i < 5; i = i + 1) {
			if (i == 1) continue;
			if (i == 3) break;
			print i;
		}
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "0\n2\n", out)
}

func TestContinueSyncsShadowedLoopVariableBeforeIncrement(t *testing.T) {
	out, _, res := run(t, `
		for (var i = 0; i < 5; i = i + 1) {
			if (i == 2) { i = 10; continue; }
			print i;
		}
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "0\n1\n", out)
}

func TestVarForLoopNormalExitAfterUntakenBreakDoesNotOverPop(t *testing.T) {
	out, _, res := run(t, `
		var before = 42;
		for (var i = 0; i < 3; i = i + 1) {
			if (i == 100) break;
		}
		print before;
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "42\n", out)
}

func TestBreakInSwitchNestedInLoopOnlyExitsSwitch(t *testing.T) {
	out, _, res := run(t, `
		for (var i = 0; i < 3; i = i + 1) {
			switch (i) {
				case 1: break;
			}
			print i;
		}
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestConstReassignmentIsCompileError(t *testing.T) {
	var out, errOut bytes.Buffer
	machine := vm.New(vm.Config{Stdout: &out, Stderr: &errOut})
	_, err := machine.Run([]byte(`const x = 1; x = 2;`))
	assert.Error(t, err)
}

func TestTooManyDistinctGlobalsIsCompileError(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 1<<15+1; i++ {
		fmt.Fprintf(&src, "var g%d = 0;\n", i)
	}
	var out, errOut bytes.Buffer
	machine := vm.New(vm.Config{Stdout: &out, Stderr: &errOut})
	_, err := machine.Run([]byte(src.String()))
	assert.Error(t, err)
}

func TestStringConcatenation(t *testing.T) {
	out, _, res := run(t, `print "foo" + "bar";`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "foobar\n", out)
}

func TestNativeSqrt(t *testing.T) {
	out, _, res := run(t, `print sqrt(16);`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "4\n", out)
}

func TestModuloTruncatesToIntegers(t *testing.T) {
	out, _, res := run(t, `print 7 % 3;`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "1\n", out)
}

func TestArrayAppendNative(t *testing.T) {
	out, _, res := run(t, `
		var a = [1, 2];
		append(a, 3);
		print a;
	`)
	assert.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "[1, 2, 3]\n", out)
}

// TestGCStressDoesNotChangeOutput exercises the "GC safety" property from
// spec.md §8: forcing a collection at every single allocation site must not
// change a single program's observable output, since every live value is
// still reachable from some root (the stack, a frame's closure, an open
// upvalue, or the globals buffer) at the moment the collector runs.
func TestGCStressDoesNotChangeOutput(t *testing.T) {
	scenarios := []string{
		`print 5 + 2 * 3;`,
		`fun fib(n) { if (n <= 1) return n; return fib(n-2) + fib(n-1); } print fib(5);`,
		`
		fun adder() { var i = 0; fun c(x) { i = i + x; print i; } return c; }
		var p = adder(); var n = adder();
		for (var i = 0; i < 3; i = i + 1) { p(1); n(-1); }
		`,
		`
		class Rect { init(w, h) { this.w = w; this.h = h; } area() { return this.w * this.h; } }
		print Rect(7, 8).area();
		print Rect(9, 9).area();
		`,
		`
		class A { cook() { print "base"; } }
		class B < A { cook() { super.cook(); print "derived"; } }
		B().cook();
		`,
		`var a = [2, 3, 5, 7, 11]; print a[2]; print a;`,
		`
		var a = [1, 2];
		append(a, 3);
		print a;
		`,
		`print "foo" + "bar";`,
		`
		fun classify(n) {
			switch (n) {
				case 1: print "one";
				case 2: print "two"; break;
				default: print "other";
			}
		}
		classify(1);
		classify(2);
		classify(3);
		`,
	}

	for _, src := range scenarios {
		var normalOut, normalErr bytes.Buffer
		normal := vm.New(vm.Config{Stdout: &normalOut, Stderr: &normalErr})
		normalRes, err := normal.Run([]byte(src))
		require.NoError(t, err)

		var stressOut, stressErr bytes.Buffer
		stress := vm.New(vm.Config{Stdout: &stressOut, Stderr: &stressErr, GCStressThreshold: 1})
		stressRes, err := stress.Run([]byte(src))
		require.NoError(t, err)

		assert.Equal(t, normalRes, stressRes)
		assert.Equal(t, normalOut.String(), stressOut.String())
	}
}
