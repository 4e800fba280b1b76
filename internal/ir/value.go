package ir

import (
	"fmt"
	"sync"
)

// ValueKind is the outer tag of the value sum type: Undefined, one of the
// Literal sub-kinds, or one of the non-literal (named) sub-kinds.
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindLitInt
	KindLitBool
	KindLitNull
	KindLitString
	KindTemp
	KindArg
	KindLocal
	KindGlobal
)

func (k ValueKind) isLiteral() bool {
	return k == KindLitInt || k == KindLitBool || k == KindLitNull || k == KindLitString
}

// Value is every definition a use can refer to: the flattened sum type
// described by the two-level tagged union {Undefined, Literal, NonLiteral}.
// Literal payload fields are only meaningful for their own Kind; non-literal
// identity (Name, Def) is only meaningful for Kind >= KindTemp.
type Value struct {
	Kind Kind
	Typ  Type

	IntVal  int32
	BoolVal bool
	StrVal  string       // string literal bytes
	StrGlob *Value       // backing content-addressed global for a string literal

	Name       string // identifier without sigil: "t3", "x", "myGlobal"
	IsConstant bool    // KindGlobal only
	Init       *Value  // KindGlobal only: optional literal initializer

	Def *Instruction // KindTemp only: its single defining instruction

	// promotion bookkeeping (C9): replacedBy is set once a load or trivial
	// phi this value named is resolved to another value; promotedFrom marks
	// a synthetic temp as standing in for an alloca cell during promotion.
	replacedBy   *Value
	promotedFrom *Value
}

// Kind is an alias so call sites read ir.Kind instead of ir.ValueKind.
type Kind = ValueKind

func (v *Value) IsLiteral() bool { return v.Kind.isLiteral() }

// ValueType is the type of the value this definition represents.
func (v *Value) ValueType() Type { return v.Typ }

// PointeeType is a convenience for addresses.
func (v *Value) PointeeType() Type { return PointeeOf(v.Typ) }

// Data is the textual form used by the printer: constants as literals,
// non-literals as "@name" or "%name".
func (v *Value) Data() string {
	switch v.Kind {
	case KindUndefined:
		return "undef " + v.Typ.String()
	case KindLitInt:
		return fmt.Sprintf("%s %d", v.Typ.String(), v.IntVal)
	case KindLitBool:
		return fmt.Sprintf("i1 %t", v.BoolVal)
	case KindLitNull:
		return "ptr null"
	case KindLitString:
		return fmt.Sprintf("ptr @%s", v.StrGlob.Name)
	case KindGlobal:
		return fmt.Sprintf("%s @%s", v.Typ.String(), v.Name)
	default:
		return fmt.Sprintf("%s %%%s", v.Typ.String(), v.Name)
	}
}

// pool interns literal constants and string globals. It is process-wide
// per §3's "module state" (a shared value pool outlives any one
// compilation unit), guarded by a mutex since tests may run concurrently.
type pool struct {
	mu      sync.Mutex
	ints    map[int32]*Value
	strings map[string]*Value
	strSeq  int

	zero, one, negOne, null, tru, fls *Value
}

var globalPool = newPool()

func newPool() *pool {
	p := &pool{ints: map[int32]*Value{}, strings: map[string]*Value{}}
	p.zero = p.internInt(0)
	p.one = p.internInt(1)
	p.negOne = p.internInt(-1)
	p.null = &Value{Kind: KindLitNull, Typ: Ptr}
	p.tru = &Value{Kind: KindLitBool, Typ: I1, BoolVal: true}
	p.fls = &Value{Kind: KindLitBool, Typ: I1, BoolVal: false}
	return p
}

func (p *pool) internInt(n int32) *Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.ints[n]; ok {
		return v
	}
	v := &Value{Kind: KindLitInt, Typ: I32, IntVal: n}
	p.ints[n] = v
	return v
}

func (p *pool) internBool(b bool) *Value {
	if b {
		return p.tru
	}
	return p.fls
}

func (p *pool) internNull() *Value { return p.null }

// internString returns the literal string value, creating its backing
// content-addressed global the first time this content is seen.
func (p *pool) internString(s string) *Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.strings[s]; ok {
		return v
	}
	p.strSeq++
	glob := &Value{Kind: KindGlobal, Typ: PointerTo(IntType{Bits: 8}), Name: fmt.Sprintf("str.%d", p.strSeq), IsConstant: true}
	lit := &Value{Kind: KindLitString, Typ: PointerTo(IntType{Bits: 8}), StrVal: s, StrGlob: glob}
	glob.Init = lit
	p.strings[s] = lit
	return lit
}

// IntLiteral, BoolLiteral, NullLiteral, StringLiteral are the pool-backed
// constructors every other package uses to build literal values; two
// literals with equal content are the same *Value (property P9).
func IntLiteral(n int32) *Value    { return globalPool.internInt(n) }
func BoolLiteral(b bool) *Value    { return globalPool.internBool(b) }
func NullLiteral() *Value          { return globalPool.internNull() }
func StringLiteral(s string) *Value { return globalPool.internString(s) }

// Canonical sentinels required by later passes (§4.3).
var (
	ZERO    = globalPool.zero
	ONE     = globalPool.one
	NEG_ONE = globalPool.negOne
	NULL    = globalPool.null
	TRUE    = globalPool.tru
	FALSE   = globalPool.fls
)

// Undefined returns a fresh typed placeholder for a value whose producer
// was removed; every call yields a distinct node (unlike literals,
// Undefined values are not interned — comparing them by identity would be
// meaningless since arithmetic on them is UB regardless).
func Undefined(t Type) *Value { return &Value{Kind: KindUndefined, Typ: t} }
