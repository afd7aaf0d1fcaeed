package ast

import "github.com/mxrlang/mxrc/pkg/token"

// Constructors for building typed trees by hand. Result types follow the
// rules of the type checker so callers only pass what cannot be inferred.

func NewIntLit(pos token.Pos, v int64) *IntLit {
	return &IntLit{ExprBase: ExprBase{pos, Int}, Value: v}
}

func NewBoolLit(pos token.Pos, v bool) *BoolLit {
	return &BoolLit{ExprBase: ExprBase{pos, Bool}, Value: v}
}

func NewVarRef(pos token.Pos, name string, typ *Type) *VarRef {
	return &VarRef{ExprBase: ExprBase{pos, typ}, Name: name}
}

func NewLoad(pos token.Pos, x Expr) *Load {
	return &Load{ExprBase: ExprBase{pos, x.Type()}, X: x}
}

func NewAssign(pos token.Pos, dest, source Expr) *Assign {
	return &Assign{ExprBase: ExprBase{pos, None}, Dest: dest, Source: source}
}

func NewBinaryArith(pos token.Pos, op ArithOp, left, right Expr) *BinaryArith {
	return &BinaryArith{ExprBase: ExprBase{pos, Int}, Op: op, Left: left, Right: right}
}

func NewBinaryLogical(pos token.Pos, op LogicalOp, left, right Expr) *BinaryLogical {
	return &BinaryLogical{ExprBase: ExprBase{pos, Bool}, Op: op, Left: left, Right: right}
}

func NewUnary(pos token.Pos, op UnaryOp, x Expr) *Unary {
	return &Unary{ExprBase: ExprBase{pos, x.Type()}, Op: op, X: x}
}

// NewArrayAccess types the access with the element type of base, which must
// be an array or a pointer.
func NewArrayAccess(pos token.Pos, base, index Expr) *ArrayAccess {
	var elem *Type
	if t := base.Type(); t != nil {
		elem = t.Elem
	}
	return &ArrayAccess{ExprBase: ExprBase{pos, elem}, Base: base, Index: index}
}

func NewArrayInit(pos token.Pos, typ *Type, elems ...Expr) *ArrayInit {
	return &ArrayInit{ExprBase: ExprBase{pos, typ}, Elems: elems}
}

func NewAddrOf(pos token.Pos, x Expr) *PointerOp {
	return &PointerOp{ExprBase: ExprBase{pos, PointerTo(x.Type())}, Op: AddrOf, X: x}
}

// NewDeref types the result as the pointee of x's type.
func NewDeref(pos token.Pos, x Expr) *PointerOp {
	var elem *Type
	if t := x.Type(); t != nil {
		elem = t.Elem
	}
	return &PointerOp{ExprBase: ExprBase{pos, elem}, Op: Deref, X: x}
}

func NewCall(pos token.Pos, callee string, ret *Type, args ...Expr) *Call {
	return &Call{ExprBase: ExprBase{pos, ret}, Callee: callee, Args: args}
}

func NewVarDecl(pos token.Pos, name string, typ *Type, global bool, init Expr) *VarDecl {
	return &VarDecl{StmtBase: StmtBase{pos}, Decl: Decl{name, typ}, Global: global, Init: init}
}

func NewFunDecl(pos token.Pos, name string, ret *Type, params []*VarDecl, body ...Stmt) *FunDecl {
	return &FunDecl{StmtBase: StmtBase{pos}, Decl: Decl{name, ret}, Params: params, Body: body}
}

func NewModule(pos token.Pos, name string, decls ...Stmt) *Module {
	return &Module{StmtBase: StmtBase{pos}, Name: name, Decls: decls}
}
