package codegen

import (
	"math"

	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/token"
	"github.com/mxrlang/mxrc/pkg/util"
)

// exprVisitor lowers expressions. Variable references, array accesses and
// dereferences produce addresses; everything else produces values.
type exprVisitor struct{ ctx *Context }

var _ ast.ExprVisitor[ir.Value] = exprVisitor{}

func (ctx *Context) codegenExpr(e ast.Expr) ir.Value {
	return ast.VisitExpr[ir.Value](exprVisitor{ctx}, e)
}

func (v exprVisitor) VisitIntLit(e *ast.IntLit) ir.Value {
	return ir.NewConst(e.Value, ir.I64)
}

func (v exprVisitor) VisitBoolLit(e *ast.BoolLit) ir.Value {
	return ir.NewBoolConst(e.Value)
}

func (v exprVisitor) VisitVarRef(e *ast.VarRef) ir.Value {
	sym := v.ctx.find(e.Loc, e.Name)
	if sym.Type != symSlot {
		v.ctx.fail(e.Loc, ErrShape, "function %q used as a variable", e.Name)
	}
	return sym.IRVal
}

func (v exprVisitor) VisitLoad(e *ast.Load) ir.Value {
	ctx := v.ctx
	addr := ctx.codegenExpr(e.X)
	t := e.Type()
	if t.IsArray() {
		// Decay [N x T] to a pointer to its first T.
		zero := ir.NewConst(0, ir.I64)
		return ctx.genGEP(e.Loc, irType(t), irType(t.Elem), false, addr, zero, zero)
	}
	return ctx.genLoad(e.Loc, irType(t), addr)
}

func (v exprVisitor) VisitAssign(e *ast.Assign) ir.Value {
	ctx := v.ctx
	src := ctx.codegenExpr(e.Source)
	dest := ctx.codegenExpr(e.Dest)
	t := e.Dest.Type()
	if t.IsArray() || t.IsNone() {
		ctx.fail(e.Loc, ErrShape, "cannot assign to a value of type %s", t)
	}
	ctx.genStore(e.Loc, irType(t), src, dest)
	return nil
}

var arithOps = map[ast.ArithOp]ir.Op{
	ast.Add: ir.OpAdd, ast.Sub: ir.OpSub, ast.Mul: ir.OpMul, ast.Div: ir.OpDiv,
}

func (v exprVisitor) VisitBinaryArith(e *ast.BinaryArith) ir.Value {
	ctx := v.ctx
	l := ctx.codegenExpr(e.Left)
	r := ctx.codegenExpr(e.Right)
	return ctx.genBinary(e.Loc, arithOps[e.Op], ir.I64, ir.I64, l, r)
}

var logicalOps = map[ast.LogicalOp]ir.Op{
	ast.And: ir.OpAnd, ast.Or: ir.OpOr,
	ast.Eq: ir.OpCEq, ast.Ne: ir.OpCNeq,
	ast.Lt: ir.OpCLt, ast.Le: ir.OpCLe, ast.Gt: ir.OpCGt, ast.Ge: ir.OpCGe,
}

func (v exprVisitor) VisitBinaryLogical(e *ast.BinaryLogical) ir.Value {
	ctx := v.ctx
	l := ctx.codegenExpr(e.Left)
	r := ctx.codegenExpr(e.Right)
	op := logicalOps[e.Op]
	operand := ir.I1
	if op.IsCompare() {
		operand = irType(e.Left.Type())
	}
	return ctx.genBinary(e.Loc, op, ir.I1, operand, l, r)
}

func (v exprVisitor) VisitUnary(e *ast.Unary) ir.Value {
	ctx := v.ctx
	x := ctx.codegenExpr(e.X)
	switch e.Op {
	case ast.Neg:
		return ctx.genUnary(e.Loc, ir.OpNeg, ir.I64, x)
	case ast.Not:
		// The complement only stays in {0, 1} on a one-bit operand.
		if t := irType(e.X.Type()); t.Kind != ir.TypeI1 {
			ctx.fail(e.Loc, ErrShape, "logical negation of %s", t)
		}
		return ctx.genUnary(e.Loc, ir.OpNot, ir.I1, x)
	}
	ctx.fail(e.Loc, ErrShape, "unknown unary operator %d", e.Op)
	return nil
}

func (v exprVisitor) VisitArrayAccess(e *ast.ArrayAccess) ir.Value {
	ctx := v.ctx
	base := ctx.codegenExpr(e.Base)
	index := ctx.codegenExpr(e.Index)

	bt := e.Base.Type()
	switch {
	case bt.IsArray():
		// base is the address of the whole array: step through it with a
		// leading zero, then select the element.
		return ctx.genGEP(e.Loc, irType(bt), irType(bt.Elem), true, base, ir.NewConst(0, ir.I64), index)
	case bt.IsPointer():
		// base is the address of the pointer variable: load the pointer, then
		// index from it.
		ptr := ctx.genLoad(e.Loc, irType(bt), base)
		elem := irType(bt.Elem)
		return ctx.genGEP(e.Loc, elem, elem, false, ptr, index)
	}
	ctx.fail(e.Loc, ErrShape, "cannot index a value of type %s", bt)
	return nil
}

func (v exprVisitor) VisitArrayInit(e *ast.ArrayInit) ir.Value {
	ctx := v.ctx
	agg := &ir.ConstArray{Typ: irType(e.Type())}
	for _, elem := range e.Elems {
		val := ctx.codegenExpr(elem)
		switch val.(type) {
		case *ir.Const, *ir.ConstArray:
		default:
			ctx.fail(elem.Pos(), ErrNotConstant, "array element %s", val)
		}
		agg.Elems = append(agg.Elems, val)
	}
	return agg
}

func (v exprVisitor) VisitPointerOp(e *ast.PointerOp) ir.Value {
	ctx := v.ctx
	if e.Op == ast.AddrOf {
		return ctx.codegenExpr(e.X)
	}
	pt := e.X.Type()
	if !pt.IsPointer() {
		ctx.fail(e.Loc, ErrShape, "dereference of non-pointer type %s", pt)
	}
	addr := ctx.codegenExpr(e.X)
	// The loaded pointer is the address of the pointee.
	return ctx.genLoad(e.Loc, irType(pt), addr)
}

func (v exprVisitor) VisitCall(e *ast.Call) ir.Value {
	ctx := v.ctx
	sym := ctx.find(e.Loc, e.Callee)
	if sym.Type != symFunc {
		ctx.fail(e.Loc, ErrShape, "%q is not a function", e.Callee)
	}
	fn := sym.Func
	if len(e.Args) != len(fn.Params) {
		ctx.fail(e.Loc, ErrShape, "%q takes %d arguments, got %d", e.Callee, len(fn.Params), len(e.Args))
	}

	args := []ir.Value{sym.IRVal}
	argTypes := make([]*ir.Type, len(e.Args))
	for i, arg := range e.Args {
		args = append(args, ctx.codegenExpr(arg))
		argTypes[i] = fn.Params[i].Typ
	}

	instr := &ir.Instruction{Op: ir.OpCall, Typ: fn.ReturnType, Args: args, ArgTypes: argTypes}
	if !fn.ReturnType.IsNone() {
		instr.Result = ctx.newTemp()
	}
	ctx.addInstr(e.Loc, instr)
	return instr.Result
}

// genBinary emits l op r, or its value when both operands are constants.
func (ctx *Context) genBinary(pos token.Pos, op ir.Op, typ, operand *ir.Type, l, r ir.Value) ir.Value {
	if c, ok := r.(*ir.Const); ok && op == ir.OpDiv && c.Value == 0 {
		util.Warn(ctx.cfg, config.WarnExtra, pos, "division by constant zero")
	}
	if ctx.cfg.IsFeatureEnabled(config.FeatFold) {
		if c, ok := foldBinary(op, typ, l, r); ok {
			return c
		}
	}
	res := ctx.newTemp()
	ctx.addInstr(pos, &ir.Instruction{Op: op, Typ: typ, OperandType: operand, Result: res, Args: []ir.Value{l, r}})
	return res
}

func (ctx *Context) genUnary(pos token.Pos, op ir.Op, typ *ir.Type, x ir.Value) ir.Value {
	if c, ok := x.(*ir.Const); ok && ctx.cfg.IsFeatureEnabled(config.FeatFold) {
		if op == ir.OpNeg {
			return ir.NewConst(-c.Value, typ)
		}
		return ir.NewConst(c.Value^1, typ)
	}
	return ctx.emit(pos, op, typ, x)
}

func foldBinary(op ir.Op, typ *ir.Type, l, r ir.Value) (*ir.Const, bool) {
	lc, ok1 := l.(*ir.Const)
	rc, ok2 := r.(*ir.Const)
	if !ok1 || !ok2 {
		return nil, false
	}
	a, b := lc.Value, rc.Value
	var v int64
	switch op {
	case ir.OpAdd:
		v = a + b
	case ir.OpSub:
		v = a - b
	case ir.OpMul:
		v = a * b
	case ir.OpDiv:
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return nil, false
		}
		v = a / b
	case ir.OpAnd:
		v = a & b
	case ir.OpOr:
		v = a | b
	case ir.OpCEq:
		v = b2i(a == b)
	case ir.OpCNeq:
		v = b2i(a != b)
	case ir.OpCLt:
		v = b2i(a < b)
	case ir.OpCLe:
		v = b2i(a <= b)
	case ir.OpCGt:
		v = b2i(a > b)
	case ir.OpCGe:
		v = b2i(a >= b)
	default:
		return nil, false
	}
	return ir.NewConst(v, typ), true
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
