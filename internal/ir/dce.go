package ir

// impureBuiltins never get eliminated even if their result is unused: they
// observe or mutate the outside world.
var impureBuiltins = map[string]bool{
	"print": true, "println": true, "getString": true, "getInt": true,
	"__alloc_array": true, "__alloc_object": true,
}

// sideEffects classifies every function in a module by a call-graph
// fixed-point pass (§4.8): every function starts out pure, and a function
// becomes impure when it stores through a pointer, calls an impure builtin,
// or calls a function already marked impure. Rounds repeat until nothing
// changes, so impurity spreads through (mutually) recursive cycles, while a
// cycle whose members are all pure on their own stays pure. Self-calls and
// calls to names outside the module do not make a function impure here.
func sideEffects(mod *Module) map[*Function]bool {
	impure := map[*Function]bool{}
	byName := map[string]*Function{}
	for _, fn := range mod.Functions {
		byName[fn.Name] = fn
	}

	changed := true
	for changed {
		changed = false
		for _, fn := range mod.Functions {
			if impure[fn] {
				continue
			}
			if fnHasEffect(fn, byName, impure) {
				impure[fn] = true
				changed = true
			}
		}
	}

	for _, fn := range mod.Functions {
		v := impure[fn]
		fn.SideEffect = &v
	}
	return impure
}

func fnHasEffect(fn *Function, byName map[string]*Function, impure map[*Function]bool) bool {
	for _, b := range fn.Blocks {
		for _, ins := range b.Body {
			switch ins.Kind {
			case IStore:
				return true
			case ICall:
				if ins.Callee == nil {
					if impureBuiltins[ins.Builtin] {
						return true
					}
					continue
				}
				callee, ok := byName[ins.Callee.Name]
				if !ok || callee == fn {
					continue
				}
				if impure[callee] {
					return true
				}
			}
		}
	}
	return false
}

// DeadCodeElim runs mark-and-sweep dead-code elimination over fn (§4.8).
// The seed set is every alloca, every store, every terminator, and every
// call whose callee is impure (builtin, a function sideEffects marked
// impure, or a name not found in byName);
// everything else is live only if something already live uses it. Phis are
// essential the same way: dead unless reachable from a seed.
func DeadCodeElim(fn *Function, impure map[*Function]bool, byName map[string]*Function) int {
	live := map[*Instruction]bool{}
	var worklist []*Instruction

	mark := func(ins *Instruction) {
		if ins == nil || live[ins] {
			return
		}
		live[ins] = true
		worklist = append(worklist, ins)
	}

	for _, b := range fn.Blocks {
		if b.Term != nil {
			mark(b.Term)
		}
		for _, ins := range b.Body {
			if isSeed(ins, impure, byName) {
				mark(ins)
			}
		}
	}

	for len(worklist) > 0 {
		ins := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, use := range ins.GetUse() {
			if use != nil && use.Def != nil {
				mark(use.Def)
			}
		}
	}
	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			if live[phi] {
				for _, e := range phi.Entries {
					if e.Value != nil && e.Value.Def != nil {
						mark(e.Value.Def)
					}
				}
			}
		}
	}

	removed := 0
	for _, b := range fn.Blocks {
		b.Body, removed = sweepList(b.Body, live, removed)
		newPhis := make([]*Instruction, 0, len(b.Phis))
		for _, phi := range b.Phis {
			if live[phi] {
				newPhis = append(newPhis, phi)
			} else {
				removed++
			}
		}
		b.Phis = newPhis
	}
	return removed
}

func sweepList(list []*Instruction, live map[*Instruction]bool, removed int) ([]*Instruction, int) {
	kept := make([]*Instruction, 0, len(list))
	for _, ins := range list {
		if live[ins] {
			kept = append(kept, ins)
		} else {
			removed++
		}
	}
	return kept, removed
}

func isSeed(ins *Instruction, impure map[*Function]bool, byName map[string]*Function) bool {
	switch ins.Kind {
	case IAlloca:
		// Defines no temporary, so nothing can ever mark it live by use; any
		// store/call that still targets its cell needs it to stay declared.
		return true
	case IStore:
		return true
	case ICall:
		if ins.Callee == nil {
			return impureBuiltins[ins.Builtin]
		}
		callee, ok := byName[ins.Callee.Name]
		return !ok || impure[callee]
	}
	return ins.IsTerminator()
}

// RunDCE computes module-wide side effects once, then sweeps every
// function; it returns the total instruction count removed.
func RunDCE(mod *Module) int {
	impure := sideEffects(mod)
	byName := map[string]*Function{}
	for _, fn := range mod.Functions {
		byName[fn.Name] = fn
	}
	total := 0
	for _, fn := range mod.Functions {
		total += DeadCodeElim(fn, impure, byName)
	}
	return total
}
