package ir

import "mxc/internal/diag"

// UBReport is one diagnostic emitted while poisoning undefined behavior.
type UBReport struct {
	Code    string
	Message string
	Block   string
}

// RemoveUnreachable runs the single-pass unreachable-code transformer
// (§4.7): UB poisoning, constant-branch folding, a CFG rebuild,
// reachability filtering, phi/terminator repair, and a second CFG rebuild.
// It is idempotent on its own output and is a no-op on a function already
// flagged wholly unreachable.
func RemoveUnreachable(fn *Function) []UBReport {
	if fn.Flags.Unreachable {
		return nil
	}
	var reports []UBReport

	for _, b := range fn.Blocks {
		if r := poisonBlock(b); r != nil {
			reports = append(reports, *r)
		}
	}
	for _, b := range fn.Blocks {
		foldConstantBranch(b)
	}

	BuildCFG(fn)

	entry := fn.Entry()
	reachable := reachSet(entry, func(b *Block) []*Block { return b.Next })

	live := map[*Block]bool{}
	for b := range reachable {
		live[b] = true
	}

	var kept []*Block
	for _, b := range fn.Blocks {
		if live[b] {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept

	for _, b := range fn.Blocks {
		repairPhis(b, live)
		repairTerminator(b, live)
	}

	BuildCFG(fn)
	fn.Flags.HasRPO = false
	fn.Flags.HasDom = false
	fn.Flags.HasFro = false
	fn.RPO = nil

	if len(fn.Blocks) == 0 || entry.Unreachable() {
		fn.Flags.Unreachable = true
	}

	return reports
}

// poisonBlock scans a block's body for hard UB; the first offending
// instruction clears the block and replaces its terminator with
// `unreachable`, per step 1.
func poisonBlock(b *Block) *UBReport {
	for _, ins := range b.Body {
		if msg, code := ubCause(ins); msg != "" {
			b.Phis = nil
			b.Body = nil
			b.Term = b.Func.mod.Instrs.newInstr(IUnreachable, b)
			return &UBReport{Code: code, Message: msg, Block: b.Name}
		}
	}
	return nil
}

func ubCause(ins *Instruction) (string, string) {
	switch ins.Kind {
	case ILoad, IStore, IGet:
		addr := ins.Addr
		if isNullOrUndefined(addr) {
			return "dereference of null or undefined pointer", diag.CodeNullDeref
		}
	case IBinary:
		if ins.BinOp == DIV || ins.BinOp == MOD {
			if isZeroInt(ins.R) {
				return "division or modulo by zero", diag.CodeDivByZero
			}
		}
		if ins.BinOp == SHL || ins.BinOp == SHR {
			if isNegativeInt(ins.R) {
				return "shift by a negative amount", diag.CodeNegativeShift
			}
		}
	}
	return "", ""
}

func isNullOrUndefined(v *Value) bool {
	return v != nil && (v.Kind == KindLitNull || v.Kind == KindUndefined)
}

func isZeroInt(v *Value) bool { return v != nil && v.Kind == KindLitInt && v.IntVal == 0 }

func isNegativeInt(v *Value) bool { return v != nil && v.Kind == KindLitInt && v.IntVal < 0 }

// foldConstantBranch replaces a branch on a constant/Undefined condition
// with a jump or an unreachable block, per step 2.
func foldConstantBranch(b *Block) {
	if b.Term == nil || b.Term.Kind != IBranch {
		return
	}
	cond := b.Term.Cond
	if isNullOrUndefined(cond) && cond.Kind == KindUndefined {
		b.Phis = nil
		b.Body = nil
		b.Term = b.Func.mod.Instrs.newInstr(IUnreachable, b)
		return
	}
	if cond.Kind != KindLitBool {
		return
	}
	target := b.Term.Targets[0] // false
	if cond.BoolVal {
		target = b.Term.Targets[1]
	}
	jmp := b.Func.mod.Instrs.newInstr(IJump, b)
	jmp.Targets = []*Block{target}
	b.Term = jmp
}

func reachSet(root *Block, succs func(*Block) []*Block) map[*Block]bool {
	seen := map[*Block]bool{}
	if root == nil {
		return seen
	}
	var dfs func(*Block)
	dfs = func(b *Block) {
		if seen[b] {
			return
		}
		seen[b] = true
		for _, s := range succs(b) {
			dfs(s)
		}
	}
	dfs(root)
	return seen
}

// repairPhis drops any phi entry whose `from` block did not survive, per
// step 7.
func repairPhis(b *Block, live map[*Block]bool) {
	for _, phi := range b.Phis {
		kept := make([]PhiEntry, 0, len(phi.Entries))
		for _, e := range phi.Entries {
			if live[e.From] {
				kept = append(kept, e)
			}
		}
		phi.Entries = kept
	}
}

// repairTerminator canonicalizes a branch whose targets collapsed to one
// block, or whose target(s) were deleted, per steps 6 and 8.
func repairTerminator(b *Block, live map[*Block]bool) {
	if b.Term == nil || b.Term.Kind != IBranch {
		return
	}
	f, t := b.Term.Targets[0], b.Term.Targets[1]
	newJump := func(target *Block) *Instruction {
		jmp := b.Func.mod.Instrs.newInstr(IJump, b)
		jmp.Targets = []*Block{target}
		return jmp
	}
	switch {
	case t == f:
		b.Term = newJump(t)
	case !live[t]:
		b.Term = newJump(f)
	case !live[f]:
		b.Term = newJump(t)
	}
}
