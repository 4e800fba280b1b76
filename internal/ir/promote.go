package ir

// Promote runs mem2reg-style SSA promotion (§10): every alloca whose address
// never escapes (is never passed as a value anywhere except as the direct
// operand of a load or a store) is removed, its loads replaced by the
// reaching store's value via block-local last-write tracking plus phi
// insertion at merge points (blocks with several predecessors),
// Braun/Buchwald style (no separate liveness pass and no dominance-frontier
// placement; phis are inserted lazily while reading, then trimmed if they
// turn out trivial).
func Promote(fn *Function) {
	if !fn.Flags.HasDom || !fn.Flags.HasFro {
		BuildDominators(fn, false)
	}

	promotable := promotableAllocas(fn)
	if len(promotable) == 0 {
		return
	}

	p := &promoter{
		fn:         fn,
		cells:      promotable,
		defs:       map[*Block]map[*Value]*Value{},
		incomplete: map[*Block][]*Instruction{},
		sealed:     map[*Block]bool{},
	}
	p.run()
}

type promoter struct {
	fn    *Function
	cells map[*Value]bool // alloca targets (the Local value) eligible for promotion

	defs       map[*Block]map[*Value]*Value    // block -> cell -> current value
	incomplete map[*Block][]*Instruction        // block -> phi stubs awaiting operands
	sealed     map[*Block]bool
}

// promotableAllocas collects every local/arg backing cell whose address is
// only ever used as the Addr of a load or a store, never stored, returned,
// passed as a call argument, or used by `get`.
func promotableAllocas(fn *Function) map[*Value]bool {
	escapes := map[*Value]bool{}
	cells := map[*Value]bool{}

	for _, b := range fn.Blocks {
		for _, ins := range b.Body {
			if ins.Kind == IAlloca {
				cells[ins.Local] = true
			}
		}
	}

	mark := func(v *Value) {
		if v != nil && cells[v] {
			escapes[v] = true
		}
	}

	for _, b := range fn.Blocks {
		for _, ins := range b.Body {
			switch ins.Kind {
			case ILoad:
				// Addr used in its one legal escape-free position.
			case IStore:
				mark(ins.Src)
			case ICall:
				for _, a := range ins.Args {
					mark(a)
				}
			case IGet:
				mark(ins.Addr)
			}
		}
		if b.Term != nil && b.Term.Kind == IReturn {
			mark(b.Term.RetVal)
		}
	}

	out := map[*Value]bool{}
	for v := range cells {
		if !escapes[v] {
			out[v] = true
		}
	}
	return out
}

func (p *promoter) run() {
	order := rpoOrder(p.fn)
	visited := map[*Block]bool{}
	for _, b := range order {
		p.rewriteBlock(b)
		visited[b] = true
		for _, c := range order {
			ready := !p.sealed[c]
			for _, pred := range c.Prev {
				ready = ready && visited[pred]
			}
			if ready {
				p.seal(c)
			}
		}
	}
	p.sweepAllocas()
}

func rpoOrder(fn *Function) []*Block {
	if fn.RPO != nil {
		return fn.RPO
	}
	return computeRPO(fn.Entry(), func(b *Block) []*Block { return b.Next })
}

func (p *promoter) writeVar(b *Block, cell *Value, val *Value) {
	m := p.defs[b]
	if m == nil {
		m = map[*Value]*Value{}
		p.defs[b] = m
	}
	m[cell] = val
}

func (p *promoter) readVar(b *Block, cell *Value) *Value {
	if m := p.defs[b]; m != nil {
		if v, ok := m[cell]; ok {
			return v
		}
	}
	return p.readVarRecursive(b, cell)
}

func (p *promoter) readVarRecursive(b *Block, cell *Value) *Value {
	if !p.sealed[b] {
		phi := p.newPhiStub(b, cell)
		p.incomplete[b] = append(p.incomplete[b], phi)
		p.writeVar(b, cell, phi.Def)
		return phi.Def
	}
	if len(b.Prev) == 1 {
		v := p.readVar(b.Prev[0], cell)
		p.writeVar(b, cell, v)
		return v
	}
	phi := p.newPhiStub(b, cell)
	p.writeVar(b, cell, phi.Def)
	p.addPhiOperands(b, cell, phi)
	return p.tryRemoveTrivialPhi(phi)
}

func (p *promoter) newPhiStub(b *Block, cell *Value) *Instruction {
	phi := p.fn.mod.Instrs.newInstr(IPhi, b)
	phi.Def = p.fn.newTempFor(cell)
	phi.Def.Def = phi
	b.Phis = append(b.Phis, phi)
	return phi
}

func (p *promoter) addPhiOperands(b *Block, cell *Value, phi *Instruction) {
	for _, pred := range b.Prev {
		v := p.readVar(pred, cell)
		if v != nil && !typesEqual(v.Typ, phi.Def.Typ) {
			fatalf(CodeTypeMismatch, "phi operand from %s has type %s, want %s", pred.Name, v.Typ, phi.Def.Typ)
		}
		phi.Entries = append(phi.Entries, PhiEntry{From: pred, Value: v})
	}
}

// tryRemoveTrivialPhi collapses a phi whose operands are all itself or one
// other value down to that value, and rewrites any use already pointing at
// it. This is the standard Braun et al. minimization step.
func (p *promoter) tryRemoveTrivialPhi(phi *Instruction) *Value {
	var same *Value
	for _, e := range phi.Entries {
		if e.Value == phi.Def || e.Value == same {
			continue
		}
		if same != nil {
			return phi.Def // genuinely merges two distinct values
		}
		same = e.Value
	}
	if same == nil {
		same = Undefined(phi.Def.Typ)
	}
	phi.Def.replacedBy = same
	removePhi(phi.block, phi)
	return same
}

func removePhi(b *Block, target *Instruction) {
	out := make([]*Instruction, 0, len(b.Phis))
	for _, ph := range b.Phis {
		if ph != target {
			out = append(out, ph)
		}
	}
	b.Phis = out
}

// seal resolves every phi stub created while b was unsealed, now that all
// of b's predecessors have been visited in RPO.
func (p *promoter) seal(b *Block) {
	for _, phi := range p.incomplete[b] {
		cell := cellFor(phi.Def)
		if cell == nil {
			continue
		}
		p.addPhiOperands(b, cell, phi)
		p.tryRemoveTrivialPhi(phi)
	}
	delete(p.incomplete, b)
	p.sealed[b] = true
}

func cellFor(v *Value) *Value {
	if v == nil {
		return nil
	}
	return v.promotedFrom
}

// newTempFor allocates the Value a promoted phi defines, through the
// module's arena so it gets a real, unique name like any other temp (§5).
func (fn *Function) newTempFor(cell *Value) *Value {
	v := fn.mod.Values.newTemp(fn, PointeeOf(cell.Typ))
	v.promotedFrom = cell
	return v
}

func (p *promoter) rewriteBlock(b *Block) {
	var newBody []*Instruction
	for _, ins := range b.Body {
		switch ins.Kind {
		case IAlloca:
			if p.cells[ins.Local] {
				continue
			}
		case IStore:
			if p.cells[ins.Addr] {
				p.writeVar(b, ins.Addr, ins.Src)
				continue
			}
		case ILoad:
			if p.cells[ins.Addr] {
				v := p.readVar(b, ins.Addr)
				ins.Def.replacedBy = v
				continue
			}
		}
		newBody = append(newBody, ins)
	}
	b.Body = newBody
}

// sweepAllocas rewrites every remaining use of a value that got replaced
// (loads, trivial-phi defs) to its final replacement, following chains.
func (p *promoter) sweepAllocas() {
	resolve := func(v *Value) *Value {
		for v != nil && v.replacedBy != nil {
			v = v.replacedBy
		}
		return v
	}
	for _, b := range p.fn.Blocks {
		for _, phi := range b.Phis {
			for n, e := range phi.Entries {
				phi.Entries[n].Value = resolve(e.Value)
			}
		}
		for _, ins := range b.Body {
			for _, use := range ins.GetUse() {
				if use != nil && use.replacedBy != nil {
					ins.Update(use, resolve(use))
				}
			}
		}
		if b.Term != nil {
			for _, use := range b.Term.GetUse() {
				if use != nil && use.replacedBy != nil {
					b.Term.Update(use, resolve(use))
				}
			}
		}
	}
}
