package codegen

import (
	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/token"
)

type symbolType int

const (
	symSlot symbolType = iota // stack or global storage
	symFunc
)

type symbol struct {
	Name    string
	Type    symbolType
	VarType *ast.Type // declared type of a slot
	IRVal   ir.Value  // slot address, or the function symbol
	Func    *ir.Func
	Next    *symbol
}

type scope struct {
	Symbols *symbol
	Parent  *scope
}

func newScope(parent *scope) *scope { return &scope{Parent: parent} }

func (ctx *Context) enterScope() { ctx.currentScope = newScope(ctx.currentScope) }
func (ctx *Context) exitScope() {
	if ctx.currentScope.Parent != nil {
		ctx.currentScope = ctx.currentScope.Parent
	}
}

// withScope runs fn in a fresh scope that is released on every exit path,
// including a panic unwinding through fn.
func (ctx *Context) withScope(fn func()) {
	ctx.enterScope()
	defer ctx.exitScope()
	fn()
}

// insert binds sym in the innermost scope. Redeclarations are not checked.
func (ctx *Context) insert(sym *symbol) *symbol {
	sym.Next = ctx.currentScope.Symbols
	ctx.currentScope.Symbols = sym
	return sym
}

func (ctx *Context) lookup(name string) *symbol {
	for s := ctx.currentScope; s != nil; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym
			}
		}
	}
	return nil
}

// find resolves name innermost scope first. A miss means the front end let
// an undeclared name through.
func (ctx *Context) find(pos token.Pos, name string) *symbol {
	sym := ctx.lookup(name)
	if sym == nil {
		ctx.fail(pos, ErrUndefinedSymbol, "%q", name)
	}
	return sym
}
