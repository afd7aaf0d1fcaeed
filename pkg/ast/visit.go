package ast

import "fmt"

// ExprVisitor has one method per expression kind. Adding a kind to the AST
// adds a method here, which breaks the build of every visitor that does not
// handle it.
type ExprVisitor[T any] interface {
	VisitIntLit(*IntLit) T
	VisitBoolLit(*BoolLit) T
	VisitVarRef(*VarRef) T
	VisitLoad(*Load) T
	VisitAssign(*Assign) T
	VisitBinaryArith(*BinaryArith) T
	VisitBinaryLogical(*BinaryLogical) T
	VisitUnary(*Unary) T
	VisitArrayAccess(*ArrayAccess) T
	VisitArrayInit(*ArrayInit) T
	VisitPointerOp(*PointerOp) T
	VisitCall(*Call) T
}

// StmtVisitor has one method per statement kind.
type StmtVisitor[T any] interface {
	VisitExprStmt(*ExprStmt) T
	VisitIf(*If) T
	VisitWhile(*While) T
	VisitReturn(*Return) T
	VisitPrint(*Print) T
	VisitScan(*Scan) T
	VisitVarDecl(*VarDecl) T
	VisitFunDecl(*FunDecl) T
	VisitModule(*Module) T
}

// VisitExpr dispatches e to the matching method of v.
func VisitExpr[T any](v ExprVisitor[T], e Expr) T {
	switch e := e.(type) {
	case *IntLit:
		return v.VisitIntLit(e)
	case *BoolLit:
		return v.VisitBoolLit(e)
	case *VarRef:
		return v.VisitVarRef(e)
	case *Load:
		return v.VisitLoad(e)
	case *Assign:
		return v.VisitAssign(e)
	case *BinaryArith:
		return v.VisitBinaryArith(e)
	case *BinaryLogical:
		return v.VisitBinaryLogical(e)
	case *Unary:
		return v.VisitUnary(e)
	case *ArrayAccess:
		return v.VisitArrayAccess(e)
	case *ArrayInit:
		return v.VisitArrayInit(e)
	case *PointerOp:
		return v.VisitPointerOp(e)
	case *Call:
		return v.VisitCall(e)
	}
	// Expr is sealed, so only a nil interface gets here.
	panic(fmt.Sprintf("ast: cannot visit expression %T", e))
}

// VisitStmt dispatches s to the matching method of v.
func VisitStmt[T any](v StmtVisitor[T], s Stmt) T {
	switch s := s.(type) {
	case *ExprStmt:
		return v.VisitExprStmt(s)
	case *If:
		return v.VisitIf(s)
	case *While:
		return v.VisitWhile(s)
	case *Return:
		return v.VisitReturn(s)
	case *Print:
		return v.VisitPrint(s)
	case *Scan:
		return v.VisitScan(s)
	case *VarDecl:
		return v.VisitVarDecl(s)
	case *FunDecl:
		return v.VisitFunDecl(s)
	case *Module:
		return v.VisitModule(s)
	}
	panic(fmt.Sprintf("ast: cannot visit statement %T", s))
}
