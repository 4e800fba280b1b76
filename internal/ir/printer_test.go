package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrintSimpleFunction covers §6's fixed textual form for a tiny
// hand-built function: add(i32 %a, i32 %b) { %t1 = add ...; ret %t1 }
func TestPrintSimpleFunction(t *testing.T) {
	mod := NewModule()
	fn := mod.newFunction("add", I32)
	a := mod.Values.newArg(I32, "a")
	b := mod.Values.newArg(I32, "b")
	fn.Args = []*Value{a, b}

	entry := mod.AddBlock(fn, "entry")
	fn.Blocks = []*Block{entry}

	sum := mod.Instrs.newInstr(IBinary, entry)
	sum.BinOp = ADD
	sum.L = a
	sum.R = b
	sum.Def = mod.Values.newTemp(fn, I32)
	sum.Def.Def = sum
	entry.Body = append(entry.Body, sum)

	entry.Term = mod.Instrs.newInstr(IReturn, entry)
	entry.Term.RetVal = sum.Def

	mod.Functions = []*Function{fn}
	out := Print(mod)

	assert.Contains(t, out, "define i32 @add(i32 %a, i32 %b) {")
	assert.Contains(t, out, "%"+sum.Def.Name+" = add i32 %a, i32 %b")
	assert.Contains(t, out, "ret i32 %"+sum.Def.Name)
	assert.True(t, strings.HasSuffix(strings.TrimRight(out, "\n"), "}"))
}

// TestPrintBranchTextOrderIsTrueFirst covers §6: the branch text prints
// "label %t, label %f" even though Targets is stored [false, true].
func TestPrintBranchTextOrderIsTrueFirst(t *testing.T) {
	mod := NewModule()
	fn := mod.newFunction("pick", VoidType{})
	entry := mod.AddBlock(fn, "entry")
	trueBlk := mod.AddBlock(fn, "trueBlk")
	falseBlk := mod.AddBlock(fn, "falseBlk")
	fn.Blocks = []*Block{entry, trueBlk, falseBlk}

	entry.Term = mod.Instrs.newInstr(IBranch, entry)
	entry.Term.Cond = TRUE
	entry.Term.Targets = []*Block{falseBlk, trueBlk}

	trueBlk.Term = mod.Instrs.newInstr(IReturn, trueBlk)
	falseBlk.Term = mod.Instrs.newInstr(IReturn, falseBlk)

	mod.Functions = []*Function{fn}
	out := Print(mod)

	assert.Contains(t, out, "br i1 true, label %trueBlk, label %falseBlk")
}

func TestPrintPreludeAlwaysPresent(t *testing.T) {
	mod := NewModule()
	out := Print(mod)
	for _, decl := range preludeDecls {
		assert.Contains(t, out, decl)
	}
}

func TestPrintUndefValue(t *testing.T) {
	mod := NewModule()
	fn := mod.newFunction("f", I32)
	entry := mod.AddBlock(fn, "entry")
	fn.Blocks = []*Block{entry}
	entry.Term = mod.Instrs.newInstr(IReturn, entry)
	entry.Term.RetVal = Undefined(I32)
	mod.Functions = []*Function{fn}

	out := Print(mod)
	require.Contains(t, out, "ret undef i32")
}
