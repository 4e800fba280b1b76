package ir

// InstrArena owns every Block and Instruction created during one
// compilation; nothing is freed individually — a deleted block is simply
// detached from its Function's block list and the arena reclaims it at
// teardown (§5, §9).
type InstrArena struct {
	blocks []*Block
	instrs []*Instruction
}

func (a *InstrArena) newBlock(name string, fn *Function) *Block {
	b := &Block{Name: name, Func: fn}
	a.blocks = append(a.blocks, b)
	return b
}

func (a *InstrArena) newInstr(kind InstrKind, block *Block) *Instruction {
	ins := &Instruction{Kind: kind, block: block, Member: -1}
	a.instrs = append(a.instrs, ins)
	return ins
}

// ValueArena owns every non-literal Value (temporaries, arguments, locals,
// globals) created during one compilation; literals live in the process
// pool instead (§3, §9).
type ValueArena struct {
	values []*Value
}

// newTemp allocates a fresh temporary named in fn's own allocation order
// (§5's "temporaries are numbered in allocation order per function"): the
// sequence lives on fn, not on the arena, so numbering restarts at t1 for
// every function rather than running continuously across the module.
func (a *ValueArena) newTemp(fn *Function, t Type) *Value {
	fn.tmpSeq++
	v := &Value{Kind: KindTemp, Typ: t, Name: tempName(fn.tmpSeq)}
	a.values = append(a.values, v)
	return v
}

func (a *ValueArena) newArg(t Type, name string) *Value {
	v := &Value{Kind: KindArg, Typ: t, Name: name}
	a.values = append(a.values, v)
	return v
}

func (a *ValueArena) newLocal(t Type, name string) *Value {
	v := &Value{Kind: KindLocal, Typ: t, Name: name}
	a.values = append(a.values, v)
	return v
}

func (a *ValueArena) newGlobal(t Type, name string, isConst bool, init *Value) *Value {
	v := &Value{Kind: KindGlobal, Typ: t, Name: name, IsConstant: isConst, Init: init}
	a.values = append(a.values, v)
	return v
}

func tempName(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return "t" + string(digits[n])
	}
	buf := []byte{}
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "t" + string(buf)
}

// Module is the whole compilation unit: every function, every module-scope
// global, and the two arenas that own their storage.
type Module struct {
	Functions []*Function
	Globals   []*Value

	Instrs *InstrArena
	Values *ValueArena
}

// NewModule creates an empty compilation unit with fresh arenas.
func NewModule() *Module {
	return &Module{Instrs: &InstrArena{}, Values: &ValueArena{}}
}

func (m *Module) newFunction(name string, ret Type) *Function {
	fn := &Function{Name: name, RetType: ret, mod: m}
	m.Functions = append(m.Functions, fn)
	return fn
}

// AddBlock appends a freshly arena-owned block to fn and returns it.
func (m *Module) AddBlock(fn *Function, name string) *Block {
	b := m.Instrs.newBlock(name, fn)
	fn.Blocks = append(fn.Blocks, b)
	return b
}
