package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mxc/internal/checker"
	"mxc/internal/parser"
)

func buildSource(t *testing.T, src string) *Module {
	t.Helper()
	prog, perrs := parser.Parse("t.mx", src)
	require.Empty(t, perrs)
	info, diags := checker.Check(prog)
	require.Empty(t, diags)
	return Build(prog, info)
}

func findFn(mod *Module, name string) *Function {
	for _, fn := range mod.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// TestSSAOneDefPerTemp covers P1: every temporary has exactly one defining
// instruction.
func TestSSAOneDefPerTemp(t *testing.T) {
	mod := buildSource(t, `
int add(int a, int b) {
    int c = a + b;
    int d = c * 2;
    return d;
}
`)
	fn := findFn(mod, "add")
	require.NotNil(t, fn)

	defCount := map[*Value]int{}
	for _, blk := range fn.Blocks {
		for _, ins := range blk.Instructions() {
			if d := ins.GetDef(); d != nil {
				defCount[d]++
			}
		}
	}
	for v, n := range defCount {
		assert.Equal(t, 1, n, "temp %s defined %d times", v.Name, n)
	}
}

// TestBranchEncodingConvention covers the false@0/true@1 convention §4.5
// and §6 fix, for an if/else lowering.
func TestBranchEncodingConvention(t *testing.T) {
	mod := buildSource(t, `
int pick(bool c) {
    if (c) {
        return 1;
    } else {
        return 2;
    }
}
`)
	fn := findFn(mod, "pick")
	require.NotNil(t, fn)

	entry := fn.Entry()
	require.Equal(t, IBranch, entry.Term.Kind)
	require.Len(t, entry.Term.Targets, 2)

	falseBlk, trueBlk := entry.Term.Targets[0], entry.Term.Targets[1]
	assert.Contains(t, falseBlk.Name, "else")
	assert.Contains(t, trueBlk.Name, "then")
}

func TestEveryBlockHasExactlyOneTerminator(t *testing.T) {
	mod := buildSource(t, `
int loopSum(int n) {
    let total: int = 0;
    let i: int = 0;
    while (i < n) {
        total += i;
        i += 1;
    }
    return total;
}
`)
	fn := findFn(mod, "loopSum")
	require.NotNil(t, fn)
	for _, blk := range fn.Blocks {
		assert.NotNil(t, blk.Term, "block %s missing terminator", blk.Name)
	}
}

func TestShortCircuitLowersToPhi(t *testing.T) {
	mod := buildSource(t, `
bool both(bool a, bool b) {
    return a && b;
}
`)
	fn := findFn(mod, "both")
	require.NotNil(t, fn)

	found := false
	for _, blk := range fn.Blocks {
		for _, phi := range blk.Phis {
			found = true
			assert.Len(t, phi.Entries, 2)
		}
	}
	assert.True(t, found, "expected a phi from && lowering")
}

func TestMethodLoweringAddsImplicitThisArg(t *testing.T) {
	mod := buildSource(t, `
class Counter {
    int value;

    int get() {
        return this.value;
    }
}
`)
	fn := findFn(mod, "Counter.get")
	require.NotNil(t, fn)
	require.Len(t, fn.Args, 1)
	assert.Equal(t, "this", fn.Args[0].Name)
}

func TestFallthroughVoidFunctionGetsReturn(t *testing.T) {
	mod := buildSource(t, `
void noop() {
}
`)
	fn := findFn(mod, "noop")
	require.NotNil(t, fn)
	assert.Equal(t, IReturn, fn.Entry().Term.Kind)
	assert.Nil(t, fn.Entry().Term.RetVal)
}

func TestFallthroughNonVoidFunctionGetsUnreachable(t *testing.T) {
	mod := buildSource(t, `
int bad(bool c) {
    if (c) {
        return 1;
    }
}
`)
	fn := findFn(mod, "bad")
	require.NotNil(t, fn)
	var joinBlk *Block
	for _, blk := range fn.Blocks {
		if blk.Term != nil && blk.Term.Kind == IUnreachable {
			joinBlk = blk
		}
	}
	assert.NotNil(t, joinBlk, "expected the falling-through join block to end in unreachable")
}
