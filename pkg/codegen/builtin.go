package codegen

import (
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/token"
)

const (
	printFormat = "%lld\n"
	scanFormat  = "%lld"
)

// builtins are the external entry points behind print and scan statements.
type builtins struct {
	print, scan       *ir.Func
	printFmt, scanFmt *ir.Global
}

// bindBuiltins declares the variadic print and scan functions and their
// format templates. It runs once per module.
func (ctx *Context) bindBuiltins() {
	if ctx.builtins.print != nil {
		return
	}
	fmtPtr := ir.NewPointer(ir.I8)
	declare := func(name string) *ir.Func {
		fn := &ir.Func{
			Name:       name,
			Params:     []*ir.Param{{Name: "format", Typ: fmtPtr}},
			ReturnType: ir.I32,
			Variadic:   true,
		}
		ctx.prog.Externs = append(ctx.prog.Externs, fn)
		return fn
	}
	ctx.builtins.print = declare(ctx.cfg.PrintSymbol)
	ctx.builtins.scan = declare(ctx.cfg.ScanFunc())
	ctx.builtins.printFmt = ctx.addString("fmt.print", printFormat)
	ctx.builtins.scanFmt = ctx.addString("fmt.scan", scanFormat)
}

func (ctx *Context) addString(name, value string) *ir.Global {
	ctx.prog.Strings = append(ctx.prog.Strings, &ir.StringLit{Name: name, Value: value})
	return &ir.Global{Name: name}
}

// callBuiltin emits fn(format, arg). The status result is discarded.
func (ctx *Context) callBuiltin(pos token.Pos, fn *ir.Func, format *ir.Global, arg ir.Value, argType *ir.Type) {
	ctx.addInstr(pos, &ir.Instruction{
		Op:       ir.OpCall,
		Typ:      fn.ReturnType,
		Result:   ctx.newTemp(),
		Args:     []ir.Value{&ir.Global{Name: fn.Name}, format, arg},
		ArgTypes: []*ir.Type{fn.Params[0].Typ, argType},
	})
}
