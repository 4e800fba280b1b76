package ir

import (
	"strings"

	"mxc/internal/ast"
	"mxc/internal/checker"
)

// loopCtx is the break/continue lowering-stack entry for one enclosing loop.
type loopCtx struct {
	continueTarget *Block
	breakTarget    *Block
}

// Builder lowers a checked AST into per-function SSA-shaped IR, one
// function at a time (§4.4). It keeps the Braun/Buchwald-style bookkeeping
// fields only in spirit: here they are alloca/load/store backing cells,
// since address-taken lowering — not incremental SSA naming — is this
// pass's job; promotion to real SSA is Promote (C9), run afterward.
type Builder struct {
	mod  *Module
	info *checker.Info

	classTypes map[string]*ClassType
	funcIR     map[*ast.Function]*Function
	calleeVal  map[*Function]*Value

	fn        *Function
	curBlock  *Block
	thisCell  *Value
	paramCells []*Value
	localCells []*Value
	loopStack []loopCtx

	condSeq int
	loopSeq int
}

// Build lowers a whole checked program into one Module.
func Build(prog *ast.Program, info *checker.Info) *Module {
	b := &Builder{
		mod:        NewModule(),
		info:       info,
		classTypes: map[string]*ClassType{},
		funcIR:     map[*ast.Function]*Function{},
		calleeVal:  map[*Function]*Value{},
	}

	for _, cls := range prog.Classes {
		for _, m := range cls.Methods {
			b.declareFunction(m, cls.Name)
		}
	}
	for _, fn := range prog.Functions {
		b.declareFunction(fn, "")
	}

	for _, cls := range prog.Classes {
		for _, m := range cls.Methods {
			b.buildFunction(m, cls.Name)
		}
	}
	for _, fn := range prog.Functions {
		b.buildFunction(fn, "")
	}

	return b.mod
}

func (b *Builder) classType(name string) *ClassType {
	if ct, ok := b.classTypes[name]; ok {
		return ct
	}
	ct := &ClassType{Name: name}
	b.classTypes[name] = ct
	ci, ok := b.info.Classes[name]
	if !ok {
		return ct
	}
	fields := make([]Type, len(ci.Fields))
	for i, f := range ci.Fields {
		fields[i] = b.typeOf(f.Type)
	}
	ct.Fields = fields
	return ct
}

func (b *Builder) typeOf(t *ast.TypeExpr) Type {
	if t == nil {
		return VoidType{}
	}
	switch t.Name {
	case "void":
		return VoidType{}
	case "bool":
		return I1
	case "int":
		return I32
	case "string":
		return PointerTo(I8)
	case "null-any":
		return Ptr
	case "array":
		return PointerTo(b.typeOf(t.ArrayOf))
	default:
		return PointerTo(b.classType(t.Name))
	}
}

func mangledName(fn *ast.Function, receiver string) string {
	if receiver == "" {
		return fn.Name
	}
	return receiver + "." + fn.Name
}

func (b *Builder) declareFunction(fn *ast.Function, receiver string) {
	irFn := b.mod.newFunction(mangledName(fn, receiver), b.typeOf(fn.ReturnType))
	b.funcIR[fn] = irFn
}

func (b *Builder) calleeValue(fn *Function) *Value {
	if v, ok := b.calleeVal[fn]; ok {
		return v
	}
	v := &Value{Kind: KindGlobal, Typ: Ptr, Name: fn.Name}
	b.calleeVal[fn] = v
	return v
}

func (b *Builder) buildFunction(fn *ast.Function, receiver string) {
	irFn := b.funcIR[fn]
	b.fn = irFn
	b.paramCells = nil
	b.localCells = nil
	b.thisCell = nil
	b.loopStack = nil
	b.condSeq = 0
	b.loopSeq = 0

	entry := b.mod.AddBlock(irFn, "entry")
	b.curBlock = entry

	if receiver != "" {
		recvType := b.typeOf(&ast.TypeExpr{Name: receiver})
		argVal := b.mod.Values.newArg(recvType, "this")
		irFn.Args = append(irFn.Args, argVal)
		cell := b.allocaFor(recvType, "this")
		b.emitStore(cell, argVal)
		b.thisCell = cell
	}

	for _, p := range fn.Params {
		pt := b.typeOf(p.Type)
		argVal := b.mod.Values.newArg(pt, p.Name)
		irFn.Args = append(irFn.Args, argVal)
		cell := b.allocaFor(pt, p.Name)
		b.emitStore(cell, argVal)
		b.paramCells = append(b.paramCells, cell)
	}

	b.buildBlock(fn.Body)

	if !b.terminated() {
		if _, isVoid := irFn.RetType.(VoidType); isVoid {
			b.emitReturn(nil)
		} else {
			b.emitUnreachable()
		}
	}
}

func (b *Builder) allocaFor(t Type, name string) *Value {
	cell := b.mod.Values.newLocal(PointerTo(t), name)
	ins := b.mod.Instrs.newInstr(IAlloca, b.curBlock)
	ins.Local = cell
	b.curBlock.Body = append(b.curBlock.Body, ins)
	b.fn.Locals = append(b.fn.Locals, cell)
	return cell
}

func (b *Builder) newBlock(name string) *Block { return b.mod.AddBlock(b.fn, name) }

func (b *Builder) terminated() bool { return b.curBlock == nil || b.curBlock.Term != nil }

func (b *Builder) setTerm(ins *Instruction) {
	b.curBlock.Term = ins
}

func (b *Builder) emitAlive(ins *Instruction) {
	b.curBlock.Body = append(b.curBlock.Body, ins)
}

func (b *Builder) emitLoad(addr *Value) *Value {
	ins := b.mod.Instrs.newInstr(ILoad, b.curBlock)
	ins.Addr = addr
	ins.Def = b.mod.Values.newTemp(b.fn, PointeeOf(addr.Typ))
	ins.Def.Def = ins
	b.emitAlive(ins)
	return ins.Def
}

func (b *Builder) emitStore(addr, src *Value) {
	ins := b.mod.Instrs.newInstr(IStore, b.curBlock)
	ins.Addr, ins.Src = addr, src
	b.emitAlive(ins)
}

func (b *Builder) emitBinary(op Op, l, r *Value) *Value {
	ins := b.mod.Instrs.newInstr(IBinary, b.curBlock)
	ins.BinOp, ins.L, ins.R = op, l, r
	ins.Def = b.mod.Values.newTemp(b.fn, I32)
	ins.Def.Def = ins
	b.emitAlive(ins)
	return ins.Def
}

func (b *Builder) emitCompare(op CmpOp, l, r *Value) *Value {
	ins := b.mod.Instrs.newInstr(ICompare, b.curBlock)
	ins.CmpOp, ins.L, ins.R = op, l, r
	ins.Def = b.mod.Values.newTemp(b.fn, I1)
	ins.Def.Def = ins
	b.emitAlive(ins)
	return ins.Def
}

func (b *Builder) emitGet(addr *Value, index *Value, member int, resultType Type) *Value {
	ins := b.mod.Instrs.newInstr(IGet, b.curBlock)
	ins.Addr = addr
	ins.Member = -1
	if index != nil {
		ins.Index, ins.HasIdx = index, true
	}
	if member >= 0 {
		ins.Member, ins.HasMem = member, true
	}
	ins.Def = b.mod.Values.newTemp(b.fn, PointerTo(resultType))
	ins.Def.Def = ins
	b.emitAlive(ins)
	return ins.Def
}

func (b *Builder) emitCall(retType Type, callee *Value, builtin string, args []*Value) *Value {
	ins := b.mod.Instrs.newInstr(ICall, b.curBlock)
	ins.Callee, ins.Builtin, ins.Args = callee, builtin, args
	if _, isVoid := retType.(VoidType); !isVoid {
		ins.Def = b.mod.Values.newTemp(b.fn, retType)
		ins.Def.Def = ins
	}
	b.emitAlive(ins)
	return ins.Def
}

func (b *Builder) emitPhi(t Type, entries []PhiEntry) *Value {
	ins := b.mod.Instrs.newInstr(IPhi, b.curBlock)
	ins.Entries = entries
	ins.Def = b.mod.Values.newTemp(b.fn, t)
	ins.Def.Def = ins
	b.curBlock.Phis = append(b.curBlock.Phis, ins)
	return ins.Def
}

func (b *Builder) emitJumpFrom(from *Block, to *Block) {
	ins := b.mod.Instrs.newInstr(IJump, from)
	ins.Targets = []*Block{to}
	from.Term = ins
	to.Prev = append(to.Prev, from)
	from.Next = append(from.Next, to)
}

func (b *Builder) jumpTo(to *Block) {
	if b.terminated() {
		return
	}
	b.emitJumpFrom(b.curBlock, to)
}

func (b *Builder) emitBranch(cond *Value, t, f *Block) {
	ins := b.mod.Instrs.newInstr(IBranch, b.curBlock)
	ins.Cond = cond
	ins.Targets = []*Block{f, t} // false@0, true@1, per the observable encoding
	b.setTerm(ins)
	b.curBlock.Next = []*Block{f, t}
	f.Prev = append(f.Prev, b.curBlock)
	t.Prev = append(t.Prev, b.curBlock)
}

func (b *Builder) emitReturn(v *Value) {
	ins := b.mod.Instrs.newInstr(IReturn, b.curBlock)
	ins.RetVal = v
	b.setTerm(ins)
}

func (b *Builder) emitUnreachable() {
	ins := b.mod.Instrs.newInstr(IUnreachable, b.curBlock)
	b.setTerm(ins)
}

func (b *Builder) buildBlock(blk *ast.Block) {
	for _, s := range blk.Stmts {
		if b.terminated() {
			return
		}
		b.buildStmt(s)
	}
}

func (b *Builder) buildStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		b.buildLet(st)
	case *ast.AssignStmt:
		b.buildAssign(st)
	case *ast.ExprStmt:
		b.buildExpr(st.Expr)
	case *ast.ReturnStmt:
		if st.Value != nil {
			b.emitReturn(b.buildExpr(st.Value))
		} else {
			b.emitReturn(nil)
		}
	case *ast.IfStmt:
		b.buildIf(st)
	case *ast.WhileStmt:
		b.buildWhile(st)
	case *ast.ForStmt:
		b.buildFor(st)
	case *ast.BreakStmt:
		if len(b.loopStack) > 0 {
			b.jumpTo(b.loopStack[len(b.loopStack)-1].breakTarget)
		}
	case *ast.ContinueStmt:
		if len(b.loopStack) > 0 {
			b.jumpTo(b.loopStack[len(b.loopStack)-1].continueTarget)
		}
	case *ast.BlockStmt:
		b.buildBlock(st.Block)
	}
}

func defaultValue(t Type) *Value {
	switch tv := t.(type) {
	case IntType:
		if tv.Bits == 1 {
			return FALSE
		}
		return ZERO
	case PtrType:
		return NULL
	default:
		return NULL
	}
}

func (b *Builder) buildLet(st *ast.LetStmt) {
	t := b.typeOf(st.Type)
	cell := b.allocaFor(t, st.Name)
	b.localCells = append(b.localCells, cell)
	if st.Expr != nil {
		b.emitStore(cell, b.buildExpr(st.Expr))
	} else {
		b.emitStore(cell, defaultValue(t))
	}
}

// lvalueAddr returns the address an expression's read/write goes through:
// the alloca'd cell for a local/param/field, or a computed `get` address
// for a field access or array index.
func (b *Builder) lvalueAddr(e ast.Expr) *Value {
	switch ex := e.(type) {
	case *ast.Ident:
		info := b.info.Idents[ex]
		switch info.Kind {
		case checker.IdentLocal:
			return b.localCells[info.Index]
		case checker.IdentParam:
			if info.Index < 0 {
				return b.thisCell
			}
			return b.paramCells[info.Index]
		case checker.IdentField:
			this := b.emitLoad(b.thisCell)
			return b.emitGet(this, nil, info.Index, b.typeOf(info.Type))
		default:
			fatalf(CodeLookupMiss, "identifier %q is not an addressable value", ex.Name)
		}
	case *ast.ThisExpr:
		return b.thisCell
	case *ast.FieldAccess:
		fi := b.info.Fields[ex]
		base := b.buildExpr(ex.Target)
		return b.emitGet(base, nil, fi.Index, b.typeOf(fi.Type))
	case *ast.IndexExpr:
		base := b.buildExpr(ex.Target)
		idx := b.buildExpr(ex.Index)
		elemType := PointeeOf(base.Typ)
		return b.emitGet(base, idx, -1, elemType)
	}
	fatalf(CodeLookupMiss, "expression is not addressable")
	return nil
}

func assignOpToBinOp(op ast.AssignOp) Op {
	switch op {
	case ast.PLUS_ASSIGN:
		return ADD
	case ast.MINUS_ASSIGN:
		return SUB
	case ast.STAR_ASSIGN:
		return MUL
	case ast.SLASH_ASSIGN:
		return DIV
	case ast.PERCENT_ASSIGN:
		return MOD
	}
	fatalf(CodeLookupMiss, "not a compound assignment operator")
	return ADD
}

func (b *Builder) buildAssign(st *ast.AssignStmt) {
	addr := b.lvalueAddr(st.Target)
	if st.Operator == ast.ASSIGN {
		b.emitStore(addr, b.buildExpr(st.Value))
		return
	}
	cur := b.emitLoad(addr)
	rhs := b.buildExpr(st.Value)
	b.emitStore(addr, b.emitBinary(assignOpToBinOp(st.Operator), cur, rhs))
}

func (b *Builder) buildIf(st *ast.IfStmt) {
	n := b.condSeq
	b.condSeq++
	thenBlk := b.newBlock(condName(n, "then"))
	elseBlk := b.newBlock(condName(n, "else"))
	joinBlk := b.newBlock(condName(n, "join"))

	cond := b.buildExpr(st.Cond)
	b.emitBranch(cond, thenBlk, elseBlk)

	b.curBlock = thenBlk
	b.buildBlock(st.Then)
	b.jumpTo(joinBlk)

	b.curBlock = elseBlk
	if st.Else != nil {
		b.buildStmt(st.Else)
	}
	b.jumpTo(joinBlk)

	b.curBlock = joinBlk
}

func (b *Builder) buildWhile(st *ast.WhileStmt) {
	n := b.loopSeq
	b.loopSeq++
	head := b.newBlock(loopName(n, "head"))
	body := b.newBlock(loopName(n, "body"))
	latch := b.newBlock(loopName(n, "latch"))
	exit := b.newBlock(loopName(n, "exit"))

	b.jumpTo(head)

	b.curBlock = head
	cond := b.buildExpr(st.Cond)
	b.emitBranch(cond, body, exit)

	b.loopStack = append(b.loopStack, loopCtx{continueTarget: latch, breakTarget: exit})
	b.curBlock = body
	b.buildBlock(st.Body)
	b.jumpTo(latch)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	b.curBlock = latch
	b.jumpTo(head)

	b.curBlock = exit
}

func (b *Builder) buildFor(st *ast.ForStmt) {
	if st.Init != nil {
		b.buildStmt(st.Init)
	}
	n := b.loopSeq
	b.loopSeq++
	head := b.newBlock(loopName(n, "head"))
	body := b.newBlock(loopName(n, "body"))
	latch := b.newBlock(loopName(n, "latch"))
	exit := b.newBlock(loopName(n, "exit"))

	b.jumpTo(head)

	b.curBlock = head
	if st.Cond != nil {
		cond := b.buildExpr(st.Cond)
		b.emitBranch(cond, body, exit)
	} else {
		b.jumpTo(body)
	}

	b.loopStack = append(b.loopStack, loopCtx{continueTarget: latch, breakTarget: exit})
	b.curBlock = body
	b.buildBlock(st.Body)
	b.jumpTo(latch)
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	b.curBlock = latch
	if st.Post != nil {
		b.buildStmt(st.Post)
	}
	b.jumpTo(head)

	b.curBlock = exit
}

func condName(n int, suffix string) string { return "cond." + itoa(n) + "." + suffix }
func loopName(n int, suffix string) string  { return "loop." + itoa(n) + "." + suffix }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

var binOpTable = map[string]Op{"+": ADD, "-": SUB, "*": MUL, "/": DIV, "%": MOD, "&": AND, "|": OR, "^": XOR, "<<": SHL, ">>": SHR}
var cmpOpTable = map[string]CmpOp{"==": EQ, "!=": NE, "<": LT, "<=": LE, ">": GT, ">=": GE}

func (b *Builder) buildExpr(e ast.Expr) *Value {
	switch ex := e.(type) {
	case *ast.IntLit:
		return IntLiteral(ex.Value)
	case *ast.BoolLit:
		return BoolLiteral(ex.Value)
	case *ast.StringLit:
		return StringLiteral(ex.Value)
	case *ast.NullLit:
		return NullLiteral()
	case *ast.ThisExpr, *ast.Ident, *ast.FieldAccess, *ast.IndexExpr:
		return b.emitLoad(b.lvalueAddr(e))
	case *ast.UnaryExpr:
		return b.buildUnary(ex)
	case *ast.BinaryExpr:
		return b.buildBinary(ex)
	case *ast.CallExpr:
		return b.buildCall(ex)
	case *ast.NewArrayExpr:
		return b.buildNewArray(ex)
	case *ast.NewObjectExpr:
		return b.buildNewObject(ex)
	}
	fatalf(CodeLookupMiss, "unhandled expression kind in builder")
	return nil
}

func (b *Builder) buildUnary(ex *ast.UnaryExpr) *Value {
	v := b.buildExpr(ex.Expr)
	switch ex.Op {
	case "-":
		return b.emitBinary(SUB, ZERO, v)
	case "!":
		return b.emitCompare(EQ, v, FALSE)
	}
	fatalf(CodeLookupMiss, "unknown unary operator %q", ex.Op)
	return nil
}

func (b *Builder) buildBinary(ex *ast.BinaryExpr) *Value {
	switch ex.Op {
	case "&&":
		return b.buildShortCircuit(ex, true)
	case "||":
		return b.buildShortCircuit(ex, false)
	}
	l := b.buildExpr(ex.Left)
	r := b.buildExpr(ex.Right)
	if op, ok := binOpTable[ex.Op]; ok {
		return b.emitBinary(op, l, r)
	}
	if op, ok := cmpOpTable[ex.Op]; ok {
		return b.emitCompare(op, l, r)
	}
	fatalf(CodeLookupMiss, "unknown binary operator %q", ex.Op)
	return nil
}

// buildShortCircuit lowers && / || into a dedicated rhs block plus a join
// block with a two-entry i1 phi, per §4.4.
func (b *Builder) buildShortCircuit(ex *ast.BinaryExpr, isAnd bool) *Value {
	n := b.condSeq
	b.condSeq++
	rhsBlk := b.newBlock(condName(n, "rhs"))
	joinBlk := b.newBlock(condName(n, "join"))

	left := b.buildExpr(ex.Left)
	entryBlk := b.curBlock
	shortValue := FALSE
	if isAnd {
		b.emitBranch(left, rhsBlk, joinBlk)
	} else {
		shortValue = TRUE
		b.emitBranch(left, joinBlk, rhsBlk)
	}

	b.curBlock = rhsBlk
	right := b.buildExpr(ex.Right)
	rhsEndBlk := b.curBlock
	b.jumpTo(joinBlk)

	b.curBlock = joinBlk
	return b.emitPhi(I1, []PhiEntry{{From: entryBlk, Value: shortValue}, {From: rhsEndBlk, Value: right}})
}

func (b *Builder) buildCall(ex *ast.CallExpr) *Value {
	ci := b.info.Calls[ex]
	switch ci.Kind {
	case checker.CallFree:
		args := b.buildArgs(ex.Args)
		target := b.funcIR[ci.Target]
		return b.emitCall(target.RetType, b.calleeValue(target), "", args)
	case checker.CallMethod:
		fa := ex.Callee.(*ast.FieldAccess)
		recv := b.buildExpr(fa.Target)
		args := append([]*Value{recv}, b.buildArgs(ex.Args)...)
		target := b.funcIR[ci.Target]
		return b.emitCall(target.RetType, b.calleeValue(target), "", args)
	case checker.CallBuiltin:
		retType := b.typeOf(ex.Type())
		if strings.HasPrefix(ci.Builtin, "string.") {
			fa := ex.Callee.(*ast.FieldAccess)
			recv := b.buildExpr(fa.Target)
			args := append([]*Value{recv}, b.buildArgs(ex.Args)...)
			return b.emitCall(retType, nil, ci.Builtin, args)
		}
		args := b.buildArgs(ex.Args)
		return b.emitCall(retType, nil, ci.Builtin, args)
	}
	fatalf(CodeLookupMiss, "unresolved call")
	return nil
}

func (b *Builder) buildArgs(exprs []ast.Expr) []*Value {
	args := make([]*Value, len(exprs))
	for i, a := range exprs {
		args[i] = b.buildExpr(a)
	}
	return args
}

// buildNewArray lowers `new T[n]` to a call into the fixed runtime
// allocator builtin table (§4.4); the allocator returns a pointer to n
// contiguous elements of T.
func (b *Builder) buildNewArray(ex *ast.NewArrayExpr) *Value {
	size := b.buildExpr(ex.Size)
	elemType := b.typeOf(ex.ElemType)
	return b.emitCall(PointerTo(elemType), nil, "__alloc_array", []*Value{size})
}

func (b *Builder) buildNewObject(ex *ast.NewObjectExpr) *Value {
	ct := b.classType(ex.ClassName)
	fieldCount := IntLiteral(int32(len(ct.Fields)))
	return b.emitCall(PointerTo(ct), nil, "__alloc_object", []*Value{fieldCount})
}
