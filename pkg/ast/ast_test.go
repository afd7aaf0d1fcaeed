package ast

import (
	"strings"
	"testing"

	"github.com/mxrlang/mxrc/pkg/token"
	"github.com/stretchr/testify/require"
)

var pos = token.Pos{File: "t.mx", Line: 1, Column: 1}

// kindVisitor reports the kind of the method that was called, so a test
// can check each node reaches its own method.
type kindVisitor struct{}

func (kindVisitor) VisitIntLit(*IntLit) ExprKind               { return KindIntLit }
func (kindVisitor) VisitBoolLit(*BoolLit) ExprKind             { return KindBoolLit }
func (kindVisitor) VisitVarRef(*VarRef) ExprKind               { return KindVarRef }
func (kindVisitor) VisitLoad(*Load) ExprKind                   { return KindLoad }
func (kindVisitor) VisitAssign(*Assign) ExprKind               { return KindAssign }
func (kindVisitor) VisitBinaryArith(*BinaryArith) ExprKind     { return KindBinaryArith }
func (kindVisitor) VisitBinaryLogical(*BinaryLogical) ExprKind { return KindBinaryLogical }
func (kindVisitor) VisitUnary(*Unary) ExprKind                 { return KindUnary }
func (kindVisitor) VisitArrayAccess(*ArrayAccess) ExprKind     { return KindArrayAccess }
func (kindVisitor) VisitArrayInit(*ArrayInit) ExprKind         { return KindArrayInit }
func (kindVisitor) VisitPointerOp(*PointerOp) ExprKind         { return KindPointerOp }
func (kindVisitor) VisitCall(*Call) ExprKind                   { return KindCall }

type stmtKindVisitor struct{}

func (stmtKindVisitor) VisitExprStmt(*ExprStmt) StmtKind { return KindExprStmt }
func (stmtKindVisitor) VisitIf(*If) StmtKind             { return KindIf }
func (stmtKindVisitor) VisitWhile(*While) StmtKind       { return KindWhile }
func (stmtKindVisitor) VisitReturn(*Return) StmtKind     { return KindReturn }
func (stmtKindVisitor) VisitPrint(*Print) StmtKind       { return KindPrint }
func (stmtKindVisitor) VisitScan(*Scan) StmtKind         { return KindScan }
func (stmtKindVisitor) VisitVarDecl(*VarDecl) StmtKind   { return KindVarDecl }
func (stmtKindVisitor) VisitFunDecl(*FunDecl) StmtKind   { return KindFunDecl }
func (stmtKindVisitor) VisitModule(*Module) StmtKind     { return KindModule }

func TestVisitExprCoversEveryKind(t *testing.T) {
	arr := NewVarRef(pos, "a", ArrayOf(3, Int))
	x := NewVarRef(pos, "x", Int)
	one := NewIntLit(pos, 1)
	exprs := []Expr{
		one,
		NewBoolLit(pos, true),
		x,
		NewLoad(pos, x),
		NewAssign(pos, x, one),
		NewBinaryArith(pos, Add, one, one),
		NewBinaryLogical(pos, Lt, one, one),
		NewUnary(pos, Neg, one),
		NewArrayAccess(pos, arr, one),
		NewArrayInit(pos, ArrayOf(1, Int), one),
		NewAddrOf(pos, x),
		NewCall(pos, "f", Int),
	}

	seen := make(map[ExprKind]bool)
	for _, e := range exprs {
		got := VisitExpr[ExprKind](kindVisitor{}, e)
		require.Equal(t, e.Kind(), got, "%T dispatched to the wrong method", e)
		seen[got] = true
	}
	require.Len(t, seen, int(NumExprKinds))
}

func TestVisitStmtCoversEveryKind(t *testing.T) {
	one := NewIntLit(pos, 1)
	stmts := []Stmt{
		&ExprStmt{StmtBase{pos}, one},
		&If{StmtBase: StmtBase{pos}, Cond: NewBoolLit(pos, true)},
		&While{StmtBase: StmtBase{pos}, Cond: NewBoolLit(pos, false)},
		&Return{StmtBase{pos}, nil},
		&Print{StmtBase{pos}, one},
		&Scan{StmtBase{pos}, NewVarRef(pos, "x", Int)},
		NewVarDecl(pos, "x", Int, false, nil),
		NewFunDecl(pos, "f", None, nil),
		NewModule(pos, "m"),
	}

	seen := make(map[StmtKind]bool)
	for _, s := range stmts {
		got := VisitStmt[StmtKind](stmtKindVisitor{}, s)
		require.Equal(t, s.Kind(), got, "%T dispatched to the wrong method", s)
		seen[got] = true
	}
	require.Len(t, seen, int(NumStmtKinds))
}

func TestVisitNilPanics(t *testing.T) {
	require.Panics(t, func() { VisitExpr[ExprKind](kindVisitor{}, nil) })
	require.Panics(t, func() { VisitStmt[StmtKind](stmtKindVisitor{}, nil) })
}

func TestParseType(t *testing.T) {
	tt := []struct {
		input    string
		expected *Type
		err      bool
	}{
		{input: "int", expected: Int},
		{input: "bool", expected: Bool},
		{input: "none", expected: None},
		{input: "*int", expected: PointerTo(Int)},
		{input: "[3]int", expected: ArrayOf(3, Int)},
		{input: "[2][3]*bool", expected: ArrayOf(2, ArrayOf(3, PointerTo(Bool)))},
		{input: "[0]int", err: true},
		{input: "[x]int", err: true},
		{input: "[3int", err: true},
		{input: "float", err: true},
	}

	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseType(tc.input)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tc.expected.Equal(got), "got %s, want %s", got, tc.expected)
			require.Equal(t, tc.input, got.String())
		})
	}
}

func TestTypeEqual(t *testing.T) {
	require.True(t, ArrayOf(3, Int).Equal(ArrayOf(3, Int)))
	require.False(t, ArrayOf(3, Int).Equal(ArrayOf(4, Int)))
	require.False(t, PointerTo(Int).Equal(PointerTo(Bool)))
	require.True(t, None.Equal(nil))
	require.False(t, Int.Equal(nil))
}

func TestExpandArrayInitNested(t *testing.T) {
	typ := ArrayOf(2, ArrayOf(2, Int))
	init := NewArrayInit(pos, typ,
		NewArrayInit(pos, typ.Elem, NewIntLit(pos, 1), NewIntLit(pos, 2)),
		NewArrayInit(pos, typ.Elem, NewIntLit(pos, 3), NewIntLit(pos, 4)),
	)
	d := NewVarDecl(pos, "a", typ, false, init)
	ExpandArrayInit(d)

	require.Nil(t, d.Init)
	require.Len(t, d.ElementInits, 4)
	for i, e := range d.ElementInits {
		assign, ok := e.(*Assign)
		require.True(t, ok, "element %d is %T", i, e)

		inner, ok := assign.Dest.(*ArrayAccess)
		require.True(t, ok)
		outer, ok := inner.Base.(*ArrayAccess)
		require.True(t, ok)
		require.Equal(t, int64(i/2), outer.Index.(*IntLit).Value)
		require.Equal(t, int64(i%2), inner.Index.(*IntLit).Value)
		require.Equal(t, "a", outer.Base.(*VarRef).Name)
		require.True(t, Int.Equal(inner.Type()))
		require.Equal(t, int64(i+1), assign.Source.(*IntLit).Value)
	}
}

func TestExpandArrayInitLeavesGlobalsAndScalars(t *testing.T) {
	typ := ArrayOf(1, Int)
	global := NewVarDecl(pos, "g", typ, true, NewArrayInit(pos, typ, NewIntLit(pos, 1)))
	ExpandArrayInit(global)
	require.NotNil(t, global.Init)
	require.Nil(t, global.ElementInits)

	scalar := NewVarDecl(pos, "x", Int, false, NewIntLit(pos, 5))
	ExpandArrayInit(scalar)
	require.NotNil(t, scalar.Init)
	require.Nil(t, scalar.ElementInits)
}

const decodeInput = `{
  "kind": "Module", "name": "m", "loc": "m.mx:1:1",
  "decls": [
    {"kind": "VarDecl", "name": "g", "type": "int", "global": true, "loc": "m.mx:1:1",
     "init": {"kind": "IntLit", "value": 7, "loc": "m.mx:1:9"}},
    {"kind": "FunDecl", "name": "f", "type": "bool", "loc": "m.mx:2:1",
     "params": [{"kind": "VarDecl", "name": "p", "type": "*int", "loc": "m.mx:2:8"}],
     "body": [
       {"kind": "VarDecl", "name": "a", "type": "[2]int", "loc": "m.mx:3:5",
        "init": {"kind": "ArrayInit", "loc": "m.mx:3:13", "elems": [
          {"kind": "IntLit", "value": 1}, {"kind": "IntLit", "value": 2}]}},
       {"kind": "If", "loc": "m.mx:4:5",
        "cond": {"kind": "BinaryLogical", "op": "<",
          "left": {"kind": "Load", "x": {"kind": "PointerOp", "op": "*", "x": {"kind": "VarRef", "name": "p", "type": "*int"}}},
          "right": {"kind": "IntLit", "value": 3}},
        "then": [{"kind": "Return", "x": {"kind": "BoolLit", "value": true}}],
        "else": []},
       {"kind": "Return", "loc": "m.mx:6:5", "x": {"kind": "Unary", "op": "!", "x": {"kind": "BoolLit", "value": true}}}
     ]}
  ]
}`

func TestDecode(t *testing.T) {
	mod, err := Decode(strings.NewReader(decodeInput), "m.mx")
	require.NoError(t, err)
	require.Equal(t, "m", mod.Name)
	require.Len(t, mod.Decls, 2)

	g := mod.Decls[0].(*VarDecl)
	require.True(t, g.Global)
	require.Equal(t, int64(7), g.Init.(*IntLit).Value)
	require.Equal(t, token.Pos{File: "m.mx", Line: 1, Column: 1}, g.Pos())

	f := mod.Decls[1].(*FunDecl)
	require.True(t, Bool.Equal(f.Type))
	require.Len(t, f.Params, 1)
	require.True(t, PointerTo(Int).Equal(f.Params[0].Type))
	require.Len(t, f.Body, 3)

	a := f.Body[0].(*VarDecl)
	require.Nil(t, a.Init, "local array initializers are expanded on decode")
	require.Len(t, a.ElementInits, 2)

	ifStmt := f.Body[1].(*If)
	require.NotNil(t, ifStmt.Else, "an explicit empty else is kept")
	require.Empty(t, ifStmt.Else)
	cond := ifStmt.Cond.(*BinaryLogical)
	require.Equal(t, Lt, cond.Op)
	deref := cond.Left.(*Load).X.(*PointerOp)
	require.Equal(t, Deref, deref.Op)
	require.True(t, Int.Equal(deref.Type()))

	ret := f.Body[2].(*Return)
	require.Equal(t, Not, ret.X.(*Unary).Op)
}

func TestDecodeErrors(t *testing.T) {
	tt := []struct {
		name, input, expected string
	}{
		{"not json", `{`, "unexpected EOF"},
		{"not a module", `{"kind": "Print", "x": {"kind": "IntLit", "value": 1}}`, `want "Module"`},
		{"unknown kind", `{"kind": "Module", "decls": [{"kind": "Goto"}]}`, `unknown statement kind "Goto"`},
		{"untyped var", `{"kind": "Module", "decls": [{"kind": "VarDecl", "name": "x", "loc": "m.mx:3:1"}]}`, `m.mx:3:1: variable "x" has no type`},
		{"bad op", `{"kind": "Module", "decls": [{"kind": "Print", "x": {"kind": "BinaryArith", "op": "%",
			"left": {"kind": "IntLit", "value": 1}, "right": {"kind": "IntLit", "value": 2}}}]}`, `op "%"`},
		{"bad type", `{"kind": "Module", "decls": [{"kind": "VarDecl", "name": "x", "type": "[0]int"}]}`, "invalid array length"},
		{"bad loc", `{"kind": "Module", "loc": "nowhere"}`, "invalid position"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.input), "m.mx")
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expected)
		})
	}
}
