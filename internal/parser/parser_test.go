package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mxc/internal/ast"
)

func TestParseFreeFunction(t *testing.T) {
	src := `
int add(int a, int b) {
    let sum: int = a + b;
    return sum;
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)
	require.Len(t, prog.Functions, 1)

	fn := prog.Functions[0]
	assert.Equal(t, "add", fn.Name)
	assert.Empty(t, fn.Receiver)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	require.Len(t, fn.Body.Stmts, 2)

	let, ok := fn.Body.Stmts[0].(*ast.LetStmt)
	require.True(t, ok)
	assert.Equal(t, "sum", let.Name)

	ret, ok := fn.Body.Stmts[1].(*ast.ReturnStmt)
	require.True(t, ok)
	assert.NotNil(t, ret.Value)
}

func TestParseClassWithMethod(t *testing.T) {
	src := `
class Counter {
    int value;

    int get() {
        return this.value;
    }
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)
	require.Len(t, prog.Classes, 1)

	cls := prog.Classes[0]
	assert.Equal(t, "Counter", cls.Name)
	require.Len(t, cls.Fields, 1)
	assert.Equal(t, "value", cls.Fields[0].Name)
	require.Len(t, cls.Methods, 1)
	assert.Equal(t, "Counter", cls.Methods[0].Receiver)
}

func TestParseIfElseChain(t *testing.T) {
	src := `
int classify(int x) {
    if (x < 0) {
        return 0 - 1;
    } else if (x == 0) {
        return 0;
    } else {
        return 1;
    }
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)

	outer, ok := prog.Functions[0].Body.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	elseIf, ok := outer.Else.(*ast.IfStmt)
	require.True(t, ok)
	_, ok = elseIf.Else.(*ast.BlockStmt)
	require.True(t, ok)
}

func TestParseWhileAndFor(t *testing.T) {
	src := `
void run() {
    int i;
    i = 0;
    while (i < 10) {
        i += 1;
    }
    for (int j = 0; j < 10; j += 1) {
        i += j;
    }
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)
	require.Len(t, prog.Functions[0].Body.Stmts, 4)

	_, ok := prog.Functions[0].Body.Stmts[2].(*ast.WhileStmt)
	assert.True(t, ok)
	forStmt, ok := prog.Functions[0].Body.Stmts[3].(*ast.ForStmt)
	require.True(t, ok)
	assert.NotNil(t, forStmt.Init)
	assert.NotNil(t, forStmt.Post)
}

func TestParseExpressionPrecedence(t *testing.T) {
	src := `
int f() {
    return 1 + 2 * 3 == 7 && true;
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)

	ret := prog.Functions[0].Body.Stmts[0].(*ast.ReturnStmt)
	top, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "&&", top.Op)

	cmp, ok := top.Left.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "==", cmp.Op)
}

func TestParseNewArrayAndObject(t *testing.T) {
	src := `
class Point {
    int x;
}

void f() {
    int[] xs;
    xs = new int[10];
    Point p;
    p = new Point();
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)

	fn := prog.Functions[0]
	assign1 := fn.Body.Stmts[1].(*ast.AssignStmt)
	_, ok := assign1.Value.(*ast.NewArrayExpr)
	assert.True(t, ok)

	assign2 := fn.Body.Stmts[3].(*ast.AssignStmt)
	newObj, ok := assign2.Value.(*ast.NewObjectExpr)
	require.True(t, ok)
	assert.Equal(t, "Point", newObj.ClassName)
}

func TestParseErrorRecovery(t *testing.T) {
	src := `
int f() {
    let x: int = ;
    return 0;
}
`
	_, errs := Parse("t.mx", src)
	assert.NotEmpty(t, errs)
}

func TestParseCallChainAndFieldAccess(t *testing.T) {
	src := `
class Box {
    int contents;
}

void f() {
    Box b;
    b = new Box();
    int n;
    n = b.contents;
    print(getString());
}
`
	prog, errs := Parse("t.mx", src)
	require.Empty(t, errs)

	fn := prog.Functions[0]
	assign := fn.Body.Stmts[3].(*ast.AssignStmt)
	fa, ok := assign.Value.(*ast.FieldAccess)
	require.True(t, ok)
	assert.Equal(t, "contents", fa.Field)

	exprStmt := fn.Body.Stmts[4].(*ast.ExprStmt)
	call, ok := exprStmt.Expr.(*ast.CallExpr)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
}
