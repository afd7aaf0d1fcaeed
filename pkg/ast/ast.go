// Package ast defines the typed Abstract Syntax Tree (AST) handed to the code generator
package ast

import "github.com/mxrlang/mxrc/pkg/token"

// ExprKind identifies the concrete type of an Expr
type ExprKind int

const (
	KindIntLit ExprKind = iota
	KindBoolLit
	KindVarRef
	KindLoad
	KindAssign
	KindBinaryArith
	KindBinaryLogical
	KindUnary
	KindArrayAccess
	KindArrayInit
	KindPointerOp
	KindCall
	NumExprKinds
)

// StmtKind identifies the concrete type of a Stmt
type StmtKind int

const (
	KindExprStmt StmtKind = iota
	KindIf
	KindWhile
	KindReturn
	KindPrint
	KindScan
	KindVarDecl
	KindFunDecl
	KindModule
	NumStmtKinds
)

// Node is implemented by every AST node
type Node interface {
	Pos() token.Pos
}

// Expr is a closed sum type: only the node types in this package implement it.
type Expr interface {
	Node
	Kind() ExprKind
	// Type returns the type resolved by the type checker.
	Type() *Type
	exprNode()
}

// Stmt is a closed sum type: only the node types in this package implement it.
type Stmt interface {
	Node
	Kind() StmtKind
	stmtNode()
}

// ExprBase is embedded in every expression node.
type ExprBase struct {
	Loc token.Pos
	Typ *Type
}

func (e *ExprBase) Pos() token.Pos { return e.Loc }
func (e *ExprBase) Type() *Type    { return e.Typ }
func (*ExprBase) exprNode()        {}

// StmtBase is embedded in every statement node.
type StmtBase struct{ Loc token.Pos }

func (s *StmtBase) Pos() token.Pos { return s.Loc }
func (*StmtBase) stmtNode()        {}

// ArithOp is the operator of a BinaryArith expression
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
)

// LogicalOp is the operator of a BinaryLogical expression
type LogicalOp int

const (
	And LogicalOp = iota
	Or
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

// UnaryOp is the operator of a Unary expression
type UnaryOp int

const (
	Neg UnaryOp = iota
	Not
)

// PointerOpKind is the operator of a PointerOp expression
type PointerOpKind int

const (
	AddrOf PointerOpKind = iota
	Deref
)

// --- Expressions ---
type IntLit struct {
	ExprBase
	Value int64
}
type BoolLit struct {
	ExprBase
	Value bool
}
type VarRef struct {
	ExprBase
	Name string
}

// Load reads the value stored at the address produced by X.
type Load struct {
	ExprBase
	X Expr
}
type Assign struct {
	ExprBase
	Dest, Source Expr
}
type BinaryArith struct {
	ExprBase
	Op          ArithOp
	Left, Right Expr
}
type BinaryLogical struct {
	ExprBase
	Op          LogicalOp
	Left, Right Expr
}
type Unary struct {
	ExprBase
	Op UnaryOp
	X  Expr
}
type ArrayAccess struct {
	ExprBase
	Base, Index Expr
}
type ArrayInit struct {
	ExprBase
	Elems []Expr
}
type PointerOp struct {
	ExprBase
	Op PointerOpKind
	X  Expr
}
type Call struct {
	ExprBase
	Callee string
	Args   []Expr
}

func (*IntLit) Kind() ExprKind        { return KindIntLit }
func (*BoolLit) Kind() ExprKind       { return KindBoolLit }
func (*VarRef) Kind() ExprKind        { return KindVarRef }
func (*Load) Kind() ExprKind          { return KindLoad }
func (*Assign) Kind() ExprKind        { return KindAssign }
func (*BinaryArith) Kind() ExprKind   { return KindBinaryArith }
func (*BinaryLogical) Kind() ExprKind { return KindBinaryLogical }
func (*Unary) Kind() ExprKind         { return KindUnary }
func (*ArrayAccess) Kind() ExprKind   { return KindArrayAccess }
func (*ArrayInit) Kind() ExprKind     { return KindArrayInit }
func (*PointerOp) Kind() ExprKind     { return KindPointerOp }
func (*Call) Kind() ExprKind          { return KindCall }

// --- Statements ---
type ExprStmt struct {
	StmtBase
	X Expr
}
type If struct {
	StmtBase
	Cond Expr
	Then []Stmt
	Else []Stmt // nil when there is no else branch
}
type While struct {
	StmtBase
	Cond Expr
	Body []Stmt
}
type Return struct {
	StmtBase
	X Expr // nil for a bare return
}
type Print struct {
	StmtBase
	X Expr
}

// Scan reads an integer into the storage designated by Target.
type Scan struct {
	StmtBase
	Target Expr
}

// Decl is the common part of variable and function declarations.
type Decl struct {
	Name string
	Type *Type // declared type; the return type for functions
}

type VarDecl struct {
	StmtBase
	Decl
	Global bool
	Init   Expr
	// ElementInits holds one assignment per array element, used instead of Init
	// for local array initializers.
	ElementInits []Expr
}
type FunDecl struct {
	StmtBase
	Decl
	Params []*VarDecl
	Body   []Stmt
}
type Module struct {
	StmtBase
	Name  string
	Decls []Stmt
}

func (*ExprStmt) Kind() StmtKind { return KindExprStmt }
func (*If) Kind() StmtKind       { return KindIf }
func (*While) Kind() StmtKind    { return KindWhile }
func (*Return) Kind() StmtKind   { return KindReturn }
func (*Print) Kind() StmtKind    { return KindPrint }
func (*Scan) Kind() StmtKind     { return KindScan }
func (*VarDecl) Kind() StmtKind  { return KindVarDecl }
func (*FunDecl) Kind() StmtKind  { return KindFunDecl }
func (*Module) Kind() StmtKind   { return KindModule }
