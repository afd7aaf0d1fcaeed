package codegen

import (
	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/util"
)

// stmtVisitor lowers statements. Each method reports whether control can no
// longer fall through to the next statement.
type stmtVisitor struct{ ctx *Context }

var _ ast.StmtVisitor[bool] = stmtVisitor{}

func (ctx *Context) codegenStmt(s ast.Stmt) bool {
	return ast.VisitStmt[bool](stmtVisitor{ctx}, s)
}

// codegenBlock lowers stmts in order. Statements after one that terminates
// are unreachable and are skipped.
func (ctx *Context) codegenBlock(stmts []ast.Stmt) bool {
	for i, s := range stmts {
		if ctx.codegenStmt(s) {
			if i+1 < len(stmts) {
				util.Warn(ctx.cfg, config.WarnUnreachableCode, stmts[i+1].Pos(), "unreachable code")
			}
			return true
		}
	}
	return false
}

// codegenScopedBlock lowers stmts in a scope of their own.
func (ctx *Context) codegenScopedBlock(stmts []ast.Stmt) (terminates bool) {
	ctx.withScope(func() { terminates = ctx.codegenBlock(stmts) })
	return terminates
}

func (v stmtVisitor) VisitExprStmt(s *ast.ExprStmt) bool {
	v.ctx.codegenExpr(s.X)
	return false
}

func (v stmtVisitor) VisitIf(s *ast.If) bool {
	ctx := v.ctx
	cond := ctx.codegenExpr(s.Cond)

	labels := ctx.newLabels("then", "else", "merge")
	thenL, elseL, mergeL := labels[0], labels[1], labels[2]
	if s.Else == nil {
		elseL = mergeL
	}
	ctx.genJnz(s.Loc, cond, thenL, elseL)

	ctx.startBlock(thenL)
	thenTerm := ctx.codegenScopedBlock(s.Then)
	if !thenTerm {
		ctx.genJmp(s.Loc, mergeL)
	}

	elseTerm := false
	if s.Else != nil {
		ctx.startBlock(elseL)
		elseTerm = ctx.codegenScopedBlock(s.Else)
		if !elseTerm {
			ctx.genJmp(s.Loc, mergeL)
		}
	}

	// Nothing reaches the merge block when both branches leave the function.
	if thenTerm && elseTerm {
		return true
	}
	ctx.startBlock(mergeL)
	return false
}

func (v stmtVisitor) VisitWhile(s *ast.While) bool {
	ctx := v.ctx
	labels := ctx.newLabels("cond", "body", "merge")
	condL, bodyL, mergeL := labels[0], labels[1], labels[2]

	ctx.genJmp(s.Loc, condL)

	ctx.startBlock(condL)
	cond := ctx.codegenExpr(s.Cond)
	ctx.genJnz(s.Loc, cond, bodyL, mergeL)

	ctx.startBlock(bodyL)
	if !ctx.codegenScopedBlock(s.Body) {
		ctx.genJmp(s.Loc, condL)
	}

	ctx.startBlock(mergeL)
	return false
}

func (v stmtVisitor) VisitReturn(s *ast.Return) bool {
	ctx := v.ctx
	fn := ctx.currentFunc
	if fn == nil {
		ctx.fail(s.Loc, ErrNoFunction, "return outside of a function")
	}
	switch {
	case s.X == nil && !fn.ReturnType.IsNone():
		ctx.fail(s.Loc, ErrShape, "missing return value in %q", fn.Name)
	case s.X != nil && fn.ReturnType.IsNone():
		ctx.fail(s.Loc, ErrShape, "%q does not return a value", fn.Name)
	}

	instr := &ir.Instruction{Op: ir.OpRet, Typ: fn.ReturnType}
	if s.X != nil {
		instr.Args = []ir.Value{ctx.codegenExpr(s.X)}
	}
	ctx.addInstr(s.Loc, instr)
	return true
}

func (v stmtVisitor) VisitPrint(s *ast.Print) bool {
	ctx := v.ctx
	if t := s.X.Type(); t == nil || t.Kind != ast.TypeInt {
		ctx.fail(s.Loc, ErrShape, "cannot print a value of type %s", t)
	}
	val := ctx.codegenExpr(s.X)
	ctx.bindBuiltins()
	ctx.callBuiltin(s.Loc, ctx.builtins.print, ctx.builtins.printFmt, val, ir.I64)
	return false
}

func (v stmtVisitor) VisitScan(s *ast.Scan) bool {
	ctx := v.ctx
	if t := s.Target.Type(); t == nil || t.Kind != ast.TypeInt {
		ctx.fail(s.Loc, ErrShape, "cannot scan into a value of type %s", t)
	}
	// The target lowers to its address, which scan writes through.
	addr := ctx.codegenExpr(s.Target)
	ctx.bindBuiltins()
	ctx.callBuiltin(s.Loc, ctx.builtins.scan, ctx.builtins.scanFmt, addr, ir.NewPointer(ir.I64))
	return false
}

func (v stmtVisitor) VisitVarDecl(d *ast.VarDecl) bool {
	if d.Global {
		v.ctx.codegenGlobal(d)
	} else {
		v.ctx.codegenLocal(d)
	}
	return false
}

func (v stmtVisitor) VisitFunDecl(d *ast.FunDecl) bool {
	v.ctx.codegenFunc(d)
	return false
}

func (v stmtVisitor) VisitModule(m *ast.Module) bool {
	v.ctx.codegenModule(m)
	return false
}
