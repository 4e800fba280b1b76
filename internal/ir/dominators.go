package ir

// BuildDominators computes dominators (post=false, from entry) or
// post-dominators (post=true, from a synthetic sink wired to every return)
// via the classical Cooper-Harvey-Kennedy iterative algorithm over reverse
// post-order (§4.6).
func BuildDominators(fn *Function, post bool) {
	if post {
		buildPostDominators(fn)
		return
	}
	buildForwardDominators(fn)
}

func buildForwardDominators(fn *Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	succs := func(b *Block) []*Block { return b.Next }
	preds := func(b *Block) []*Block { return b.Prev }

	rpo := computeRPO(entry, succs)
	fn.RPO = rpo
	fn.Flags.HasRPO = true

	idom := computeIdom(rpo, entry, preds)
	fro := computeFrontiers(rpo, idom, preds)

	for _, b := range rpo {
		setDomFields(b, idom, entry, fro)
	}
	fn.Flags.HasDom = true
	fn.Flags.HasFro = true
	fn.Flags.IsPost = false
}

func buildPostDominators(fn *Function) {
	var returns []*Block
	for _, b := range fn.Blocks {
		if b.Term != nil && b.Term.Kind == IReturn {
			returns = append(returns, b)
		}
	}
	sink := &Block{Name: "<sink>"}

	succs := func(b *Block) []*Block {
		if b == sink {
			return returns
		}
		return b.Prev
	}
	preds := func(b *Block) []*Block {
		if b.Term != nil && b.Term.Kind == IReturn {
			out := append([]*Block{}, b.Next...)
			return append(out, sink)
		}
		return b.Next
	}

	rpo := computeRPO(sink, succs)
	idom := computeIdom(rpo, sink, preds)
	fro := computeFrontiers(rpo, idom, preds)

	for _, b := range rpo {
		if b == sink {
			continue
		}
		setDomFields(b, idom, sink, fro)
	}
	fn.Flags.HasDom = true
	fn.Flags.HasFro = true
	fn.Flags.IsPost = true
}

func setDomFields(b *Block, idom map[*Block]*Block, root *Block, fro map[*Block][]*Block) {
	if b == root {
		b.IDom = nil
		b.Dom = nil
	} else {
		b.IDom = idom[b]
		b.Dom = domChain(b, idom, root)
	}
	b.Fro = fro[b]
}

func domChain(b *Block, idom map[*Block]*Block, root *Block) []*Block {
	var chain []*Block
	cur := idom[b]
	for cur != nil && cur != root {
		chain = append(chain, cur)
		cur = idom[cur]
	}
	if cur == root {
		chain = append(chain, root)
	}
	return chain
}

func computeRPO(root *Block, succs func(*Block) []*Block) []*Block {
	visited := map[*Block]bool{}
	var post []*Block
	var dfs func(*Block)
	dfs = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range succs(b) {
			dfs(s)
		}
		post = append(post, b)
	}
	dfs(root)
	rpo := make([]*Block, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

func computeIdom(rpo []*Block, root *Block, preds func(*Block) []*Block) map[*Block]*Block {
	rpoIndex := map[*Block]int{}
	for i, b := range rpo {
		rpoIndex[b] = i
	}
	idom := map[*Block]*Block{root: root}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			var newIdom *Block
			for _, p := range preds(b) {
				if _, ok := idom[p]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p, idom, rpoIndex)
				}
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func intersect(a, b *Block, idom map[*Block]*Block, rpoIndex map[*Block]int) *Block {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

func computeFrontiers(rpo []*Block, idom map[*Block]*Block, preds func(*Block) []*Block) map[*Block][]*Block {
	fro := map[*Block][]*Block{}
	for _, b := range rpo {
		ps := preds(b)
		if len(ps) < 2 {
			continue
		}
		ib, hasIb := idom[b]
		for _, p := range ps {
			if _, ok := idom[p]; !ok {
				continue
			}
			runner := p
			for hasIb && runner != ib {
				if !hasBlock(fro[runner], b) {
					fro[runner] = append(fro[runner], b)
				}
				runner = idom[runner]
			}
		}
	}
	return fro
}
