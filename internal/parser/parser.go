// Package parser builds a syntax tree from a token stream via hand-written
// recursive descent with Pratt-style expression parsing.
package parser

import (
	"fmt"

	"mxc/internal/ast"
	"mxc/internal/lexer"
	"mxc/internal/token"
)

// Error is a syntax error recorded during parsing. Parsing does not stop at
// the first error: a failed expectation records an Error and skips the
// offending token, so one pass can surface several errors.
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parser consumes a token slice and produces an *ast.Program.
type Parser struct {
	file    string
	toks    []lexer.Token
	pos     int
	errors  []Error
	classes map[string]bool
}

// Parse lexes and parses a whole source file.
func Parse(filename, source string) (*ast.Program, []Error) {
	toks, lexErrs := lexer.ScanAll(source)
	p := &Parser{file: filename, toks: toks, classes: map[string]bool{}}
	for _, e := range lexErrs {
		p.errors = append(p.errors, Error{Message: e.Message, Line: e.Line, Column: e.Column})
	}
	p.prescanClasses()
	prog := p.parseProgram()
	return prog, p.errors
}

// prescanClasses finds every "class Name" pair so later statement parsing
// can tell a bare-identifier type apart from an identifier expression.
func (p *Parser) prescanClasses() {
	for i := 0; i+1 < len(p.toks); i++ {
		if p.toks[i].Kind == token.CLASS && p.toks[i+1].Kind == token.IDENT {
			p.classes[p.toks[i+1].Lexeme] = true
		}
	}
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.atEnd() {
		if p.check(token.CLASS) {
			prog.Classes = append(prog.Classes, p.parseClass())
			continue
		}
		if fn := p.parseFunction(""); fn != nil {
			prog.Functions = append(prog.Functions, fn)
		}
	}
	return prog
}

func (p *Parser) parseClass() *ast.Class {
	pos := p.pos0()
	p.expect(token.CLASS)
	name := p.expectIdent()
	p.expect(token.LBRACE)
	cls := &ast.Class{Pos: pos, Name: name}
	for !p.check(token.RBRACE) && !p.atEnd() {
		fieldPos := p.pos0()
		typ := p.parseType()
		memberName := p.expectIdent()
		if p.check(token.LPAREN) {
			fn := p.finishFunction(fieldPos, memberName, typ, name)
			cls.Methods = append(cls.Methods, fn)
			continue
		}
		p.expect(token.SEMI)
		cls.Fields = append(cls.Fields, &ast.Field{Pos: fieldPos, Name: memberName, Type: typ})
	}
	p.expect(token.RBRACE)
	return cls
}

func (p *Parser) parseFunction(receiver string) *ast.Function {
	pos := p.pos0()
	typ := p.parseType()
	name := p.expectIdent()
	return p.finishFunction(pos, name, typ, receiver)
}

func (p *Parser) finishFunction(pos ast.Position, name string, retType *ast.TypeExpr, receiver string) *ast.Function {
	p.expect(token.LPAREN)
	var params []*ast.Param
	for !p.check(token.RPAREN) {
		ppos := p.pos0()
		pt := p.parseType()
		pname := p.expectIdent()
		params = append(params, &ast.Param{Pos: ppos, Name: pname, Type: pt})
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.Function{Pos: pos, Name: name, Receiver: receiver, Params: params, ReturnType: retType, Body: body}
}

func (p *Parser) parseType() *ast.TypeExpr {
	pos := p.pos0()
	var name string
	switch {
	case p.match(token.VOID):
		name = "void"
	case p.match(token.BOOL_T):
		name = "bool"
	case p.match(token.INT_T):
		name = "int"
	case p.match(token.STRING_T):
		name = "string"
	default:
		name = p.expectIdent()
	}
	t := &ast.TypeExpr{Pos: pos, Name: name}
	for p.check(token.LBRACKET) && p.peekKind(1) == token.RBRACKET {
		p.advance()
		p.advance()
		t = &ast.TypeExpr{Pos: pos, Name: "array", ArrayOf: t}
	}
	return t
}

func (p *Parser) parseBlock() *ast.Block {
	pos := p.pos0()
	p.expect(token.LBRACE)
	blk := &ast.Block{Pos: pos}
	for !p.check(token.RBRACE) && !p.atEnd() {
		blk.Stmts = append(blk.Stmts, p.parseStmt())
	}
	p.expect(token.RBRACE)
	return blk
}

func (p *Parser) parseStmt() ast.Stmt {
	switch {
	case p.check(token.LBRACE):
		pos := p.pos0()
		return &ast.BlockStmt{Pos: pos, Block: p.parseBlock()}
	case p.check(token.IF):
		return p.parseIf()
	case p.check(token.WHILE):
		return p.parseWhile()
	case p.check(token.FOR):
		return p.parseFor()
	case p.check(token.BREAK):
		pos := p.pos0()
		p.advance()
		p.expect(token.SEMI)
		return &ast.BreakStmt{Pos: pos}
	case p.check(token.CONTINUE):
		pos := p.pos0()
		p.advance()
		p.expect(token.SEMI)
		return &ast.ContinueStmt{Pos: pos}
	case p.check(token.RETURN):
		pos := p.pos0()
		p.advance()
		var val ast.Expr
		if !p.check(token.SEMI) {
			val = p.parseExpr()
		}
		p.expect(token.SEMI)
		return &ast.ReturnStmt{Pos: pos, Value: val}
	case p.isLetStart():
		return p.parseLet()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.pos0()
	p.expect(token.IF)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	then := p.parseBlock()
	var els ast.Stmt
	if p.match(token.ELSE) {
		if p.check(token.IF) {
			els = p.parseIf()
		} else {
			elsePos := p.pos0()
			els = &ast.BlockStmt{Pos: elsePos, Block: p.parseBlock()}
		}
	}
	return &ast.IfStmt{Pos: pos, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.pos0()
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.WhileStmt{Pos: pos, Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.pos0()
	p.expect(token.FOR)
	p.expect(token.LPAREN)
	var init ast.Stmt
	if !p.check(token.SEMI) {
		if p.isLetStart() {
			init = p.parseLetNoSemi()
		} else {
			init = p.parseExprStmtNoSemi()
		}
	}
	p.expect(token.SEMI)
	var cond ast.Expr
	if !p.check(token.SEMI) {
		cond = p.parseExpr()
	}
	p.expect(token.SEMI)
	var post ast.Stmt
	if !p.check(token.RPAREN) {
		post = p.parseExprStmtNoSemi()
	}
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.ForStmt{Pos: pos, Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) isLetStart() bool {
	switch p.cur().Kind {
	case token.VOID, token.BOOL_T, token.INT_T, token.STRING_T:
		return true
	case token.IDENT:
		if !p.classes[p.cur().Lexeme] {
			return false
		}
		next := p.peekKind(1)
		if next == token.IDENT {
			return true
		}
		if next == token.LBRACKET && p.peekKind(2) == token.RBRACKET {
			return true
		}
		return false
	}
	return false
}

func (p *Parser) parseLet() ast.Stmt {
	s := p.parseLetNoSemi()
	p.expect(token.SEMI)
	return s
}

func (p *Parser) parseLetNoSemi() ast.Stmt {
	pos := p.pos0()
	typ := p.parseType()
	name := p.expectIdent()
	var val ast.Expr
	if p.match(token.ASSIGN) {
		val = p.parseExpr()
	}
	return &ast.LetStmt{Pos: pos, Name: name, Type: typ, Expr: val}
}

var assignOps = map[token.Kind]ast.AssignOp{
	token.ASSIGN:         ast.ASSIGN,
	token.PLUS_ASSIGN:    ast.PLUS_ASSIGN,
	token.MINUS_ASSIGN:   ast.MINUS_ASSIGN,
	token.STAR_ASSIGN:    ast.STAR_ASSIGN,
	token.SLASH_ASSIGN:   ast.SLASH_ASSIGN,
	token.PERCENT_ASSIGN: ast.PERCENT_ASSIGN,
}

func (p *Parser) parseExprOrAssignStmt() ast.Stmt {
	s := p.parseExprStmtNoSemi()
	p.expect(token.SEMI)
	return s
}

func (p *Parser) parseExprStmtNoSemi() ast.Stmt {
	pos := p.pos0()
	e := p.parseExpr()
	if op, ok := assignOps[p.cur().Kind]; ok {
		p.advance()
		rhs := p.parseExpr()
		return &ast.AssignStmt{Pos: pos, Target: e, Operator: op, Value: rhs}
	}
	return &ast.ExprStmt{Pos: pos, Expr: e}
}

// Expression parsing: precedence climbing over a fixed binary-operator table.

type binOp struct {
	prec int
	op   string
}

var binOps = map[token.Kind]binOp{
	token.OR_OR:  {1, "||"},
	token.AND_AND: {2, "&&"},
	token.PIPE:   {3, "|"},
	token.CARET:  {4, "^"},
	token.AMP:    {5, "&"},
	token.EQ:     {6, "=="},
	token.NE:     {6, "!="},
	token.LT:     {7, "<"},
	token.LE:     {7, "<="},
	token.GT:     {7, ">"},
	token.GE:     {7, ">="},
	token.SHL:    {8, "<<"},
	token.SHR:    {8, ">>"},
	token.PLUS:   {9, "+"},
	token.MINUS:  {9, "-"},
	token.STAR:   {10, "*"},
	token.SLASH:  {10, "/"},
	token.PERCENT: {10, "%"},
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		info, ok := binOps[p.cur().Kind]
		if !ok || info.prec < minPrec {
			return left
		}
		pos := p.pos0()
		p.advance()
		right := p.parseBinary(info.prec + 1)
		left = &ast.BinaryExpr{ExprBase: ast.At(pos), Op: info.op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.pos0()
	switch {
	case p.match(token.MINUS):
		return &ast.UnaryExpr{ExprBase: ast.At(pos), Op: "-", Expr: p.parseUnary()}
	case p.match(token.NOT):
		return &ast.UnaryExpr{ExprBase: ast.At(pos), Op: "!", Expr: p.parseUnary()}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(e ast.Expr) ast.Expr {
	for {
		pos := p.pos0()
		switch {
		case p.match(token.DOT):
			field := p.expectIdent()
			if p.check(token.LPAREN) {
				args := p.parseArgs()
				callee := &ast.FieldAccess{ExprBase: ast.At(pos), Target: e, Field: field}
				e = &ast.CallExpr{ExprBase: ast.At(pos), Callee: callee, Args: args}
			} else {
				e = &ast.FieldAccess{ExprBase: ast.At(pos), Target: e, Field: field}
			}
		case p.match(token.LBRACKET):
			idx := p.parseExpr()
			p.expect(token.RBRACKET)
			e = &ast.IndexExpr{ExprBase: ast.At(pos), Target: e, Index: idx}
		case p.check(token.LPAREN):
			args := p.parseArgs()
			e = &ast.CallExpr{ExprBase: ast.At(pos), Callee: e, Args: args}
		default:
			return e
		}
	}
}

func (p *Parser) parseArgs() []ast.Expr {
	p.expect(token.LPAREN)
	var args []ast.Expr
	for !p.check(token.RPAREN) {
		args = append(args, p.parseExpr())
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.pos0()
	tok := p.cur()
	switch tok.Kind {
	case token.INT:
		p.advance()
		return &ast.IntLit{ExprBase: ast.At(pos), Value: parseInt32(tok.Lexeme)}
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{ExprBase: ast.At(pos), Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{ExprBase: ast.At(pos), Value: false}
	case token.STRING:
		p.advance()
		return &ast.StringLit{ExprBase: ast.At(pos), Value: tok.Lexeme}
	case token.NULL:
		p.advance()
		return &ast.NullLit{ExprBase: ast.At(pos)}
	case token.THIS:
		p.advance()
		return &ast.ThisExpr{ExprBase: ast.At(pos)}
	case token.IDENT:
		p.advance()
		return &ast.Ident{ExprBase: ast.At(pos), Name: tok.Lexeme}
	case token.NEW:
		return p.parseNew()
	case token.LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e
	default:
		p.errorf(tok, "unexpected token %v in expression", tok.Kind)
		p.advance()
		return &ast.NullLit{ExprBase: ast.At(pos)}
	}
}

func (p *Parser) parseNew() ast.Expr {
	pos := p.pos0()
	p.expect(token.NEW)
	typ := p.parseBareType()
	if p.match(token.LBRACKET) {
		size := p.parseExpr()
		p.expect(token.RBRACKET)
		return &ast.NewArrayExpr{ExprBase: ast.At(pos), ElemType: typ, Size: size}
	}
	p.expect(token.LPAREN)
	p.expect(token.RPAREN)
	return &ast.NewObjectExpr{ExprBase: ast.At(pos), ClassName: typ.Name}
}

// parseBareType reads a type name without the "[]" suffix loop, since `new`
// places the array brackets around the size expression instead.
func (p *Parser) parseBareType() *ast.TypeExpr {
	pos := p.pos0()
	var name string
	switch {
	case p.match(token.BOOL_T):
		name = "bool"
	case p.match(token.INT_T):
		name = "int"
	case p.match(token.STRING_T):
		name = "string"
	default:
		name = p.expectIdent()
	}
	return &ast.TypeExpr{Pos: pos, Name: name}
}

func parseInt32(s string) int32 {
	var v int64
	for _, c := range s {
		v = v*10 + int64(c-'0')
	}
	return int32(v)
}

// --- token stream plumbing ---

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekKind(offset int) token.Kind {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return token.EOF
	}
	return p.toks[idx].Kind
}

func (p *Parser) check(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atEnd() bool { return p.cur().Kind == token.EOF }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind) lexer.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorf(p.cur(), "expected %v, found %v", k, p.cur().Kind)
	return p.advance()
}

func (p *Parser) expectIdent() string {
	t := p.expect(token.IDENT)
	return t.Lexeme
}

func (p *Parser) pos0() ast.Position {
	t := p.cur()
	return ast.Position{Filename: p.file, Line: t.Line, Column: t.Column}
}

func (p *Parser) errorf(t lexer.Token, format string, args ...interface{}) {
	p.errors = append(p.errors, Error{Message: fmt.Sprintf(format, args...), Line: t.Line, Column: t.Column})
}
