// Package checker resolves names and types over a parsed Mx program and
// annotates its AST, so the IR builder never has to look at raw syntax.
//
// It is deliberately not a full type checker: every declaration in Mx is
// explicitly typed, so there is no inference to perform, only lookups.
package checker

import (
	"fmt"

	"mxc/internal/ast"
	"mxc/internal/diag"
)

// IdentKind says what an *ast.Ident resolved to.
type IdentKind int

const (
	IdentLocal IdentKind = iota
	IdentParam
	IdentField // implicit this.<name>
	IdentFunc  // free-function reference used as a call callee
)

// IdentInfo is the checker's resolution of one *ast.Ident node.
type IdentInfo struct {
	Kind  IdentKind
	Type  *ast.TypeExpr
	Index int // slot for IdentLocal/IdentParam
}

// CallKind says how a *ast.CallExpr was resolved.
type CallKind int

const (
	CallFree    CallKind = iota // free function
	CallMethod                  // obj.method(...)
	CallBuiltin                 // print/println/getString/getInt/string.*
)

// CallInfo is the checker's resolution of one *ast.CallExpr node.
type CallInfo struct {
	Kind    CallKind
	Target  *ast.Function // for CallFree / CallMethod
	Builtin string        // e.g. "print", "string.length"
	Class   string        // receiver class name, for CallMethod
}

// FieldInfo is the checker's resolution of a non-call *ast.FieldAccess
// (a plain class-member read or assignment target).
type FieldInfo struct {
	Class string
	Index int
	Type  *ast.TypeExpr
}

// ClassInfo is the ordered member layout of one class, per §3's "aggregate
// class types with a fixed, ordered member list".
type ClassInfo struct {
	Name    string
	Fields  []*ast.Field
	FieldIx map[string]int
	Methods map[string]*ast.Function
}

// Info is the full result of checking a program: every class layout, every
// free-function signature, and the per-node resolution maps the IR builder
// consumes instead of re-deriving them from syntax.
type Info struct {
	Classes   map[string]*ClassInfo
	Functions map[string]*ast.Function
	Idents    map[*ast.Ident]IdentInfo
	Calls     map[*ast.CallExpr]CallInfo
	Fields    map[*ast.FieldAccess]FieldInfo
	ThisType  map[*ast.Function]*ast.TypeExpr
}

type builtinSig struct {
	params []*ast.TypeExpr
	ret    *ast.TypeExpr
}

var tVoid = &ast.TypeExpr{Name: "void"}
var tInt = &ast.TypeExpr{Name: "int"}
var tBool = &ast.TypeExpr{Name: "bool"}
var tString = &ast.TypeExpr{Name: "string"}

var freeBuiltins = map[string]builtinSig{
	"print":    {params: []*ast.TypeExpr{tString}, ret: tVoid},
	"println":  {params: []*ast.TypeExpr{tString}, ret: tVoid},
	"getString": {params: nil, ret: tString},
	"getInt":    {params: nil, ret: tInt},
}

var stringMemberBuiltins = map[string]builtinSig{
	"length":    {params: nil, ret: tInt},
	"substring": {params: []*ast.TypeExpr{tInt, tInt}, ret: tString},
	"parseInt":  {params: nil, ret: tInt},
	"ord":       {params: []*ast.TypeExpr{tInt}, ret: tInt},
}

// Checker holds accumulated diagnostics and the resolution tables being
// built up over one program.
type Checker struct {
	info  *Info
	diags []diag.Diagnostic
}

// Check resolves names and types across prog, mutating it in place
// (ast.SetType on every expression, Locals collected per function) and
// returns the resolution tables the IR builder needs alongside it.
func Check(prog *ast.Program) (*Info, []diag.Diagnostic) {
	c := &Checker{info: &Info{
		Classes:   map[string]*ClassInfo{},
		Functions: map[string]*ast.Function{},
		Idents:    map[*ast.Ident]IdentInfo{},
		Calls:     map[*ast.CallExpr]CallInfo{},
		Fields:    map[*ast.FieldAccess]FieldInfo{},
		ThisType:  map[*ast.Function]*ast.TypeExpr{},
	}}

	for _, cls := range prog.Classes {
		ci := &ClassInfo{Name: cls.Name, FieldIx: map[string]int{}, Methods: map[string]*ast.Function{}}
		for i, f := range cls.Fields {
			ci.FieldIx[f.Name] = i
			ci.Fields = append(ci.Fields, f)
		}
		for _, m := range cls.Methods {
			ci.Methods[m.Name] = m
		}
		c.info.Classes[cls.Name] = ci
	}
	for _, fn := range prog.Functions {
		c.info.Functions[fn.Name] = fn
	}

	for _, cls := range prog.Classes {
		recv := &ast.TypeExpr{Name: cls.Name}
		for _, m := range cls.Methods {
			c.info.ThisType[m] = recv
			c.checkFunction(m, cls.Name)
		}
	}
	for _, fn := range prog.Functions {
		c.checkFunction(fn, "")
	}

	return c.info, c.diags
}

func (c *Checker) errorf(pos ast.Position, code, format string, args ...interface{}) {
	c.diags = append(c.diags, diag.Diagnostic{
		Level: diag.LevelError, Code: code, Position: pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// scope is a stack of name->slot maps for locals and parameters.
type scope struct {
	parent *scope
	vars   map[string]IdentInfo
}

func (s *scope) push() *scope { return &scope{parent: s, vars: map[string]IdentInfo{}} }

func (s *scope) lookup(name string) (IdentInfo, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if info, ok := cur.vars[name]; ok {
			return info, true
		}
	}
	return IdentInfo{}, false
}

func (c *Checker) checkFunction(fn *ast.Function, receiverClass string) {
	sc := &scope{vars: map[string]IdentInfo{}}
	for i, p := range fn.Params {
		sc.vars[p.Name] = IdentInfo{Kind: IdentParam, Type: p.Type, Index: i}
	}
	if receiverClass != "" {
		sc.vars["this"] = IdentInfo{Kind: IdentParam, Type: c.info.ThisType[fn], Index: -1}
	}
	c.checkBlock(fn.Body, sc.push(), fn, receiverClass)
}

func (c *Checker) checkBlock(b *ast.Block, sc *scope, fn *ast.Function, recv string) {
	for _, s := range b.Stmts {
		c.checkStmt(s, sc, fn, recv)
	}
}

func (c *Checker) checkStmt(s ast.Stmt, sc *scope, fn *ast.Function, recv string) {
	switch st := s.(type) {
	case *ast.LetStmt:
		slot := len(fn.Locals)
		fn.Locals = append(fn.Locals, &ast.Local{Name: st.Name, Type: st.Type})
		sc.vars[st.Name] = IdentInfo{Kind: IdentLocal, Type: st.Type, Index: slot}
		if st.Expr != nil {
			et := c.checkExpr(st.Expr, sc, fn, recv)
			c.expectAssignable(st.Type, et, st.Pos)
		}
	case *ast.AssignStmt:
		tt := c.checkExpr(st.Target, sc, fn, recv)
		vt := c.checkExpr(st.Value, sc, fn, recv)
		c.expectAssignable(tt, vt, st.Pos)
	case *ast.ExprStmt:
		c.checkExpr(st.Expr, sc, fn, recv)
	case *ast.ReturnStmt:
		if st.Value != nil {
			vt := c.checkExpr(st.Value, sc, fn, recv)
			c.expectAssignable(fn.ReturnType, vt, st.Pos)
		}
	case *ast.IfStmt:
		c.checkExpr(st.Cond, sc, fn, recv)
		c.checkBlock(st.Then, sc.push(), fn, recv)
		if st.Else != nil {
			c.checkStmt(st.Else, sc.push(), fn, recv)
		}
	case *ast.WhileStmt:
		c.checkExpr(st.Cond, sc, fn, recv)
		c.checkBlock(st.Body, sc.push(), fn, recv)
	case *ast.ForStmt:
		inner := sc.push()
		if st.Init != nil {
			c.checkStmt(st.Init, inner, fn, recv)
		}
		if st.Cond != nil {
			c.checkExpr(st.Cond, inner, fn, recv)
		}
		if st.Post != nil {
			c.checkStmt(st.Post, inner, fn, recv)
		}
		c.checkBlock(st.Body, inner.push(), fn, recv)
	case *ast.BlockStmt:
		c.checkBlock(st.Block, sc.push(), fn, recv)
	case *ast.BreakStmt, *ast.ContinueStmt:
		// nothing to resolve
	}
}

func (c *Checker) expectAssignable(want, got *ast.TypeExpr, pos ast.Position) {
	if want == nil || got == nil {
		return
	}
	if !typesCompatible(want, got) {
		c.errorf(pos, diag.CodeTypeMismatch, "cannot assign %s to %s", typeString(got), typeString(want))
	}
}

func typesCompatible(want, got *ast.TypeExpr) bool {
	if want.Name == "null-any" || got.Name == "null-any" {
		return true // null literal is assignable to any pointer-like (class/array) type
	}
	return typesEqual(want, got)
}

func typesEqual(a, b *ast.TypeExpr) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name {
		return false
	}
	if a.Name == "array" {
		return typesEqual(a.ArrayOf, b.ArrayOf)
	}
	return true
}

func typeString(t *ast.TypeExpr) string {
	if t == nil {
		return "<unknown>"
	}
	if t.Name == "array" {
		return typeString(t.ArrayOf) + "[]"
	}
	return t.Name
}

func (c *Checker) checkExpr(e ast.Expr, sc *scope, fn *ast.Function, recv string) *ast.TypeExpr {
	var t *ast.TypeExpr
	switch ex := e.(type) {
	case *ast.IntLit:
		t = tInt
	case *ast.BoolLit:
		t = tBool
	case *ast.StringLit:
		t = tString
	case *ast.NullLit:
		t = &ast.TypeExpr{Name: "null-any"}
	case *ast.ThisExpr:
		t = c.info.ThisType[fn]
	case *ast.Ident:
		t = c.checkIdent(ex, sc, fn, recv)
	case *ast.BinaryExpr:
		t = c.checkBinary(ex, sc, fn, recv)
	case *ast.UnaryExpr:
		inner := c.checkExpr(ex.Expr, sc, fn, recv)
		if ex.Op == "!" {
			t = tBool
		} else {
			t = inner
		}
	case *ast.CallExpr:
		t = c.checkCall(ex, sc, fn, recv)
	case *ast.FieldAccess:
		t = c.checkFieldAccess(ex, sc, fn, recv)
	case *ast.IndexExpr:
		targetType := c.checkExpr(ex.Target, sc, fn, recv)
		c.checkExpr(ex.Index, sc, fn, recv)
		if targetType != nil && targetType.Name == "array" {
			t = targetType.ArrayOf
		}
	case *ast.NewArrayExpr:
		c.checkExpr(ex.Size, sc, fn, recv)
		t = &ast.TypeExpr{Name: "array", ArrayOf: ex.ElemType}
	case *ast.NewObjectExpr:
		t = &ast.TypeExpr{Name: ex.ClassName}
	default:
		c.errorf(e.ExprPos(), diag.CodeInternalTypeMismatch, "unhandled expression kind")
	}
	ast.SetType(e, t)
	return t
}

func (c *Checker) checkIdent(ex *ast.Ident, sc *scope, fn *ast.Function, recv string) *ast.TypeExpr {
	if info, ok := sc.lookup(ex.Name); ok {
		c.info.Idents[ex] = info
		return info.Type
	}
	if recv != "" {
		if ci, ok := c.info.Classes[recv]; ok {
			if idx, ok := ci.FieldIx[ex.Name]; ok {
				ft := ci.Fields[idx].Type
				c.info.Idents[ex] = IdentInfo{Kind: IdentField, Type: ft, Index: idx}
				return ft
			}
		}
	}
	if _, ok := c.info.Functions[ex.Name]; ok {
		c.info.Idents[ex] = IdentInfo{Kind: IdentFunc}
		return nil
	}
	c.errorf(ex.Pos, diag.CodeUndeclaredName, "undeclared name %q", ex.Name)
	return nil
}

func (c *Checker) checkBinary(ex *ast.BinaryExpr, sc *scope, fn *ast.Function, recv string) *ast.TypeExpr {
	lt := c.checkExpr(ex.Left, sc, fn, recv)
	rt := c.checkExpr(ex.Right, sc, fn, recv)
	switch ex.Op {
	case "==", "!=", "<", "<=", ">", ">=":
		_ = lt
		_ = rt
		return tBool
	case "&&", "||":
		return tBool
	default:
		return tInt
	}
}

func (c *Checker) checkCall(ex *ast.CallExpr, sc *scope, fn *ast.Function, recv string) *ast.TypeExpr {
	switch callee := ex.Callee.(type) {
	case *ast.Ident:
		if sig, ok := freeBuiltins[callee.Name]; ok {
			for _, a := range ex.Args {
				c.checkExpr(a, sc, fn, recv)
			}
			c.info.Calls[ex] = CallInfo{Kind: CallBuiltin, Builtin: callee.Name}
			ast.SetType(callee, sig.ret)
			return sig.ret
		}
		target, ok := c.info.Functions[callee.Name]
		if !ok {
			c.errorf(callee.Pos, diag.CodeUndeclaredName, "call to undeclared function %q", callee.Name)
			for _, a := range ex.Args {
				c.checkExpr(a, sc, fn, recv)
			}
			return nil
		}
		c.checkArgs(ex, target.Params, sc, fn, recv)
		c.info.Calls[ex] = CallInfo{Kind: CallFree, Target: target}
		ast.SetType(callee, target.ReturnType)
		return target.ReturnType
	case *ast.FieldAccess:
		targetType := c.checkExpr(callee.Target, sc, fn, recv)
		if targetType != nil && targetType.Name == "string" {
			if sig, ok := stringMemberBuiltins[callee.Field]; ok {
				for _, a := range ex.Args {
					c.checkExpr(a, sc, fn, recv)
				}
				c.info.Calls[ex] = CallInfo{Kind: CallBuiltin, Builtin: "string." + callee.Field}
				ast.SetType(callee, sig.ret)
				return sig.ret
			}
			c.errorf(callee.Pos, diag.CodeUnknownMember, "string has no method %q", callee.Field)
			return nil
		}
		if targetType != nil {
			if ci, ok := c.info.Classes[targetType.Name]; ok {
				if m, ok := ci.Methods[callee.Field]; ok {
					c.checkArgs(ex, m.Params, sc, fn, recv)
					c.info.Calls[ex] = CallInfo{Kind: CallMethod, Target: m, Class: ci.Name}
					ast.SetType(callee, m.ReturnType)
					return m.ReturnType
				}
			}
		}
		c.errorf(callee.Pos, diag.CodeUnknownMember, "unknown method %q", callee.Field)
		return nil
	default:
		c.errorf(ex.Pos, diag.CodeNotCallable, "expression is not callable")
		return nil
	}
}

func (c *Checker) checkArgs(ex *ast.CallExpr, params []*ast.Param, sc *scope, fn *ast.Function, recv string) {
	if len(ex.Args) != len(params) {
		c.errorf(ex.Pos, diag.CodeArityMismatch, "expected %d arguments, got %d", len(params), len(ex.Args))
	}
	for i, a := range ex.Args {
		at := c.checkExpr(a, sc, fn, recv)
		if i < len(params) {
			c.expectAssignable(params[i].Type, at, a.ExprPos())
		}
	}
}

func (c *Checker) checkFieldAccess(ex *ast.FieldAccess, sc *scope, fn *ast.Function, recv string) *ast.TypeExpr {
	targetType := c.checkExpr(ex.Target, sc, fn, recv)
	if targetType == nil {
		return nil
	}
	ci, ok := c.info.Classes[targetType.Name]
	if !ok {
		c.errorf(ex.Pos, diag.CodeUnknownMember, "type %s has no members", typeString(targetType))
		return nil
	}
	idx, ok := ci.FieldIx[ex.Field]
	if !ok {
		c.errorf(ex.Pos, diag.CodeUnknownMember, "class %s has no field %q", ci.Name, ex.Field)
		return nil
	}
	ft := ci.Fields[idx].Type
	c.info.Fields[ex] = FieldInfo{Class: ci.Name, Index: idx, Type: ft}
	return ft
}
