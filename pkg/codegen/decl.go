package codegen

import (
	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/util"
)

// codegenModule lowers a module in two passes: first every function
// signature and every global, then every function body, so bodies may call
// functions declared after them.
func (ctx *Context) codegenModule(m *ast.Module) {
	if ctx.currentFunc != nil {
		ctx.fail(m.Loc, ErrUnexpectedDecl, "module %q inside function %q", m.Name, ctx.currentFunc.Name)
	}
	ctx.withScope(func() {
		ctx.bindBuiltins()

		var funcs []*ast.FunDecl
		for _, decl := range m.Decls {
			switch d := decl.(type) {
			case *ast.FunDecl:
				ctx.declareFunc(d)
				funcs = append(funcs, d)
			case *ast.VarDecl:
				ctx.codegenGlobal(d)
			default:
				ctx.fail(decl.Pos(), ErrUnexpectedDecl, "%T at module level", decl)
			}
		}

		for _, d := range funcs {
			ctx.codegenFunc(d)
		}
	})
}

// declareFunc registers the signature of d without lowering its body.
func (ctx *Context) declareFunc(d *ast.FunDecl) *symbol {
	fn := &ir.Func{Name: d.Name, ReturnType: irType(d.Type), Linkage: ir.LinkageExternal}
	for _, p := range d.Params {
		fn.Params = append(fn.Params, &ir.Param{
			Name: p.Name,
			Typ:  irType(p.Type),
			Val:  &ir.Temporary{Name: "arg." + p.Name},
		})
	}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)
	return ctx.insert(&symbol{Name: d.Name, Type: symFunc, IRVal: &ir.Global{Name: d.Name}, Func: fn})
}

// codegenFunc lowers the body of d into its forward-declared function.
// Parameters are copied into stack slots so they are addressed like locals.
func (ctx *Context) codegenFunc(d *ast.FunDecl) {
	if ctx.currentFunc != nil {
		ctx.fail(d.Loc, ErrUnexpectedDecl, "function %q nested in %q", d.Name, ctx.currentFunc.Name)
	}
	sym := ctx.lookup(d.Name)
	if sym == nil || sym.Type != symFunc || sym.Func.Blocks != nil {
		sym = ctx.declareFunc(d)
	}
	fn := sym.Func

	ctx.currentFunc, ctx.allocCount = fn, 0
	defer func() { ctx.currentFunc, ctx.currentBlock = nil, nil }()

	ctx.startBlock(&ir.Label{Name: "start"})
	ctx.withScope(func() {
		for i, p := range d.Params {
			param := fn.Params[i]
			slot := ctx.addAlloc(p.Loc, p.Name, param.Typ)
			ctx.genStore(p.Loc, param.Typ, param.Val, slot)
			ctx.insertSlot(p, slot)
		}

		if ctx.codegenBlock(d.Body) {
			return
		}
		util.Warn(ctx.cfg, config.WarnImplicitReturn, d.Loc, "function '%s' has no return at its end", d.Name)
		ret := &ir.Instruction{Op: ir.OpRet, Typ: fn.ReturnType}
		if !fn.ReturnType.IsNone() {
			ret.Args = []ir.Value{zeroValue(fn.ReturnType)}
		}
		ctx.addInstr(d.Loc, ret)
	})
}

// codegenGlobal emits d as private program-lifetime storage. An initializer
// must lower to a constant.
func (ctx *Context) codegenGlobal(d *ast.VarDecl) {
	typ := irType(d.Type)
	data := &ir.Data{
		Name:    d.Name,
		Align:   ir.AlignOf(typ, ctx.wordSize),
		Typ:     typ,
		Linkage: ir.LinkagePrivate,
	}
	ctx.prog.Globals = append(ctx.prog.Globals, data)
	ctx.insert(&symbol{Name: d.Name, Type: symSlot, VarType: d.Type, IRVal: &ir.Global{Name: d.Name}})

	if d.Init == nil {
		return
	}
	switch init := ctx.codegenExpr(d.Init).(type) {
	case *ir.Const, *ir.ConstArray:
		data.Init = init
	default:
		ctx.fail(d.Init.Pos(), ErrNotConstant, "global %q", d.Name)
	}
}

// codegenLocal allocates a stack slot for d and runs its initializer.
func (ctx *Context) codegenLocal(d *ast.VarDecl) {
	typ := irType(d.Type)
	slot := ctx.addAlloc(d.Loc, d.Name, typ)
	ctx.insertSlot(d, slot)

	inits := d.ElementInits
	if agg, ok := d.Init.(*ast.ArrayInit); ok {
		if inits != nil {
			ctx.fail(d.Loc, ErrShape, "%q has both an initializer and element initializers", d.Name)
		}
		expanded := ast.NewVarDecl(d.Loc, d.Name, d.Type, false, agg)
		ast.ExpandArrayInit(expanded)
		inits = expanded.ElementInits
	} else if d.Init != nil {
		if inits != nil {
			ctx.fail(d.Loc, ErrShape, "%q has both an initializer and element initializers", d.Name)
		}
		val := ctx.codegenExpr(d.Init)
		ctx.genStore(d.Loc, typ, val, slot)
		return
	}

	for _, e := range inits {
		ctx.codegenExpr(e)
	}
}

// insertSlot binds a local or parameter slot in the innermost scope.
func (ctx *Context) insertSlot(d *ast.VarDecl, slot ir.Value) {
	if prev := ctx.lookup(d.Name); prev != nil && prev.Type == symFunc {
		util.Warn(ctx.cfg, config.WarnShadow, d.Loc, "'%s' shadows a function of the same name", d.Name)
	}
	ctx.insert(&symbol{Name: d.Name, Type: symSlot, VarType: d.Type, IRVal: slot})
}
