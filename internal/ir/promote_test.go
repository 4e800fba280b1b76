package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDiamondPromotesToPhi covers §8 scenario 3: a local assigned on both
// arms of an if/else and read after the join promotes to a two-entry phi,
// one entry per arm, and the backing alloca disappears.
func TestDiamondPromotesToPhi(t *testing.T) {
	fn := buildFn(t, `
int f(bool x) {
    int a;
    if (x) {
        a = 1;
    } else {
        a = 2;
    }
    return a;
}
`, "f")

	BuildCFG(fn)
	BuildDominators(fn, false)
	Promote(fn)
	BuildCFG(fn)

	for _, b := range fn.Blocks {
		for _, ins := range b.Body {
			assert.NotEqual(t, IAlloca, ins.Kind, "the promoted alloca must be gone")
		}
	}

	join := blockByContains(fn, "cond.0.join")
	require.NotNil(t, join)
	require.Len(t, join.Phis, 1)

	phi := join.Phis[0]
	require.Len(t, phi.Entries, 2)

	byFrom := map[string]*Value{}
	for _, e := range phi.Entries {
		byFrom[e.From.Name] = e.Value
	}
	thenV, ok := byFrom[blockByContains(fn, "cond.0.then").Name]
	require.True(t, ok)
	elseV, ok := byFrom[blockByContains(fn, "cond.0.else").Name]
	require.True(t, ok)
	assert.Same(t, IntLiteral(1), thenV)
	assert.Same(t, IntLiteral(2), elseV)

	require.NotNil(t, join.Term)
	assert.Equal(t, IReturn, join.Term.Kind)
	assert.Same(t, phi.Def, join.Term.RetVal)
}

// TestPromotedPhiPrintsWithAUniqueName guards against a promoted phi's
// defining temp being left unnamed: printing the diamond from
// TestDiamondPromotesToPhi must produce a real "%tN = phi ..." line, not a
// blank-named one.
func TestPromotedPhiPrintsWithAUniqueName(t *testing.T) {
	mod := buildSource(t, `
int f(bool x) {
    int a;
    if (x) {
        a = 1;
    } else {
        a = 2;
    }
    return a;
}
`)
	fn := findFn(mod, "f")
	require.NotNil(t, fn)

	BuildCFG(fn)
	BuildDominators(fn, false)
	Promote(fn)
	BuildCFG(fn)

	join := blockByContains(fn, "cond.0.join")
	require.NotNil(t, join)
	require.Len(t, join.Phis, 1)
	phi := join.Phis[0]
	require.NotEmpty(t, phi.Def.Name, "a promoted phi's temp must get a real name")

	out := Print(mod)
	assert.Contains(t, out, "%"+phi.Def.Name+" = phi i32")
	assert.NotContains(t, out, "%  = phi")
}

// TestLoopCounterPromotesWithBackEdgePhi exercises promotion across a loop
// header, whose phi must merge the pre-loop value with the latch's updated
// value.
func TestLoopCounterPromotesWithBackEdgePhi(t *testing.T) {
	fn := buildFn(t, `
int count(int n) {
    int i;
    i = 0;
    while (i < n) {
        i += 1;
    }
    return i;
}
`, "count")

	BuildCFG(fn)
	BuildDominators(fn, false)
	Promote(fn)
	BuildCFG(fn)

	head := blockByContains(fn, "loop.0.head")
	require.NotNil(t, head)
	require.Len(t, head.Phis, 1)
	assert.Len(t, head.Phis[0].Entries, 2)

	for _, b := range fn.Blocks {
		for _, ins := range b.Body {
			assert.NotEqual(t, IAlloca, ins.Kind)
		}
	}
}

// TestEscapingLocalIsNotPromoted checks that a cell whose address is
// itself passed as a call argument is left alone, since its storage
// might be read through that alias after the call returns.
func TestEscapingLocalIsNotPromoted(t *testing.T) {
	mod := NewModule()
	fn := mod.newFunction("f", VoidType{})
	entry := mod.AddBlock(fn, "entry")
	fn.Blocks = []*Block{entry}

	cell := mod.Values.newLocal(PointerTo(I32), "a")
	alloca := mod.Instrs.newInstr(IAlloca, entry)
	alloca.Local = cell
	entry.Body = append(entry.Body, alloca)

	store := mod.Instrs.newInstr(IStore, entry)
	store.Addr = cell
	store.Src = ZERO
	entry.Body = append(entry.Body, store)

	call := mod.Instrs.newInstr(ICall, entry)
	call.Builtin = "print"
	call.Args = []*Value{cell}
	entry.Body = append(entry.Body, call)

	entry.Term = mod.Instrs.newInstr(IReturn, entry)

	BuildCFG(fn)
	BuildDominators(fn, false)
	Promote(fn)

	sawAlloca := false
	for _, ins := range entry.Body {
		if ins.Kind == IAlloca {
			sawAlloca = true
		}
	}
	assert.True(t, sawAlloca, "a cell whose address escapes through a call argument must keep its alloca")
}
