package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mxc/internal/checker"
	"mxc/internal/parser"
)

func buildFn(t *testing.T, src, name string) *Function {
	t.Helper()
	prog, perrs := parser.Parse("t.mx", src)
	require.Empty(t, perrs)
	info, diags := checker.Check(prog)
	require.Empty(t, diags)
	mod := Build(prog, info)
	fn := findFn(mod, name)
	require.NotNil(t, fn)
	return fn
}

func blockByContains(fn *Function, sub string) *Block {
	for _, b := range fn.Blocks {
		if len(b.Name) >= len(sub) {
			for i := 0; i+len(sub) <= len(b.Name); i++ {
				if b.Name[i:i+len(sub)] == sub {
					return b
				}
			}
		}
	}
	return nil
}

// TestLoopHeaderInOwnFrontier covers §8 scenario 7: the head of a while
// loop dominates its own back-edge predecessor, putting head in its own
// dominance frontier.
func TestLoopHeaderInOwnFrontier(t *testing.T) {
	fn := buildFn(t, `
void run() {
    int i;
    i = 0;
    while (i < 10) {
        i += 1;
    }
}
`, "run")

	BuildCFG(fn)
	BuildDominators(fn, false)

	head := blockByContains(fn, "loop.0.head")
	require.NotNil(t, head)
	assert.Contains(t, head.Fro, head, "loop head must be in its own dominance frontier")
}

// TestIdempotentDominatorComputation covers P7: running dominator
// construction twice over an unchanged CFG yields identical idom/frontier
// results.
func TestIdempotentDominatorComputation(t *testing.T) {
	fn := buildFn(t, `
int classify(int x) {
    if (x < 0) {
        return 0 - 1;
    } else if (x == 0) {
        return 0;
    } else {
        return 1;
    }
}
`, "classify")

	BuildCFG(fn)
	BuildDominators(fn, false)
	first := map[string]*Block{}
	firstFro := map[string][]*Block{}
	for _, b := range fn.Blocks {
		first[b.Name] = b.IDom
		firstFro[b.Name] = append([]*Block{}, b.Fro...)
	}

	BuildCFG(fn)
	BuildDominators(fn, false)
	for _, b := range fn.Blocks {
		assert.Same(t, first[b.Name], b.IDom, "idom for %s must be stable across rebuilds", b.Name)
		assert.ElementsMatch(t, firstFro[b.Name], b.Fro, "frontier for %s must be stable across rebuilds", b.Name)
	}
}

// TestEntryDominatesEveryBlock covers P2: the entry block strictly
// dominates every other reachable block.
func TestEntryDominatesEveryBlock(t *testing.T) {
	fn := buildFn(t, `
int classify(int x) {
    if (x < 0) {
        return 0 - 1;
    } else if (x == 0) {
        return 0;
    } else {
        return 1;
    }
}
`, "classify")

	BuildCFG(fn)
	BuildDominators(fn, false)
	entry := fn.Entry()
	reach := reachSet(entry, func(b *Block) []*Block { return b.Next })
	for _, b := range fn.Blocks {
		if b == entry || !reach[b] {
			continue
		}
		assert.Contains(t, b.Dom, entry, "entry must dominate %s", b.Name)
	}
}

// TestPostDominatorsOfDiamond checks the join block of an if/else diamond
// post-dominates both branch arms.
func TestPostDominatorsOfDiamond(t *testing.T) {
	fn := buildFn(t, `
int pick(bool c) {
    int r;
    if (c) {
        r = 1;
    } else {
        r = 2;
    }
    return r;
}
`, "pick")

	BuildCFG(fn)
	BuildDominators(fn, true)

	join := blockByContains(fn, "cond.0.join")
	require.NotNil(t, join)
	thenBlk := blockByContains(fn, "cond.0.then")
	elseBlk := blockByContains(fn, "cond.0.else")
	require.NotNil(t, thenBlk)
	require.NotNil(t, elseBlk)

	assert.Contains(t, thenBlk.Dom, join, "join must post-dominate then")
	assert.Contains(t, elseBlk.Dom, join, "join must post-dominate else")
}
