package codegen

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/token"
	"github.com/mxrlang/mxrc/pkg/util"
)

// Lowering stops at the first broken invariant. The returned error wraps one
// of these and a *util.InternalError carrying the position.
var (
	ErrUndefinedSymbol = errors.New("undefined symbol")
	ErrNotConstant     = errors.New("initializer is not a compile-time constant")
	ErrShape           = errors.New("malformed expression")
	ErrUnexpectedDecl  = errors.New("unexpected declaration")
	ErrNoFunction      = errors.New("instruction outside of a function")
)

// Context holds the state of one lowering pass: the program being built, the
// scope chain and the function and block instructions are appended to.
type Context struct {
	prog         *ir.Program
	cfg          *config.Config
	tempCount    int
	labelCount   int
	currentScope *scope
	currentFunc  *ir.Func
	currentBlock *ir.BasicBlock
	allocCount   int
	wordSize     int
	builtins     builtins
}

func NewContext(cfg *config.Config) *Context {
	return &Context{
		prog:         &ir.Program{WordSize: cfg.WordSize},
		cfg:          cfg,
		currentScope: newScope(nil),
		wordSize:     cfg.WordSize,
	}
}

// GenerateIR lowers mod into a new program. No program is returned when
// lowering fails. A Context lowers exactly one module.
func (ctx *Context) GenerateIR(mod *ast.Module) (prog *ir.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			ierr, ok := r.(*util.InternalError)
			if !ok {
				panic(r)
			}
			prog, err = nil, ierr
		}
	}()

	ctx.codegenStmt(mod)

	if ctx.cfg.IsFeatureEnabled(config.FeatVerify) {
		if err := ir.Verify(ctx.prog); err != nil {
			return nil, fmt.Errorf("module %s: %w", mod.Name, err)
		}
	}
	return ctx.prog, nil
}

// fail aborts lowering with an internal error wrapping sentinel.
func (ctx *Context) fail(pos token.Pos, sentinel error, format string, args ...any) {
	panic(&util.InternalError{Pos: pos, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))})
}

func (ctx *Context) newTemp() *ir.Temporary {
	name := fmt.Sprintf("t%d", ctx.tempCount)
	t := &ir.Temporary{Name: name, ID: ctx.tempCount}
	ctx.tempCount++
	return t
}

// newNamedTemp returns a temporary whose name keeps a source identifier.
func (ctx *Context) newNamedTemp(base string) *ir.Temporary {
	t := ctx.newTemp()
	t.Name = fmt.Sprintf("%s.%d", base, t.ID)
	return t
}

// newLabels returns one label per kind, all sharing a fresh number so the
// blocks of one construct are easy to spot in dumps.
func (ctx *Context) newLabels(kinds ...string) []*ir.Label {
	labels := make([]*ir.Label, len(kinds))
	for i, kind := range kinds {
		labels[i] = &ir.Label{Name: fmt.Sprintf("%s.%d", kind, ctx.labelCount)}
	}
	ctx.labelCount++
	return labels
}

// startBlock appends a block for label to the current function and makes it
// the insertion point.
func (ctx *Context) startBlock(label *ir.Label) {
	block := &ir.BasicBlock{Label: label}
	ctx.currentFunc.Blocks = append(ctx.currentFunc.Blocks, block)
	ctx.currentBlock = block
}

// addInstr appends instr to the current block. After a terminator the block
// is sealed and the insertion point is cleared.
func (ctx *Context) addInstr(pos token.Pos, instr *ir.Instruction) {
	switch {
	case ctx.currentFunc == nil:
		// Only global initializers are lowered outside of a function.
		ctx.fail(pos, ErrNotConstant, "%s needs a function to run in", instr.Op)
	case ctx.currentBlock == nil:
		ctx.fail(pos, ErrNoFunction, "no block to emit %s into", instr.Op)
	}
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, instr)
	if instr.Op.IsTerminator() {
		ctx.currentBlock = nil
	}
}

// addAlloc places a stack slot at the head of the entry block, after the
// slots allocated before it, so every slot is allocated once per activation.
func (ctx *Context) addAlloc(pos token.Pos, name string, typ *ir.Type) *ir.Temporary {
	if ctx.currentFunc == nil || len(ctx.currentFunc.Blocks) == 0 {
		ctx.fail(pos, ErrNoFunction, "cannot allocate %q outside of a function", name)
	}
	slot := ctx.newNamedTemp(name)
	instr := &ir.Instruction{Op: ir.OpAlloc, Typ: ir.NewPointer(typ), ElemType: typ, Result: slot, Align: ir.AlignOf(typ, ctx.wordSize)}
	entry := ctx.currentFunc.Blocks[0]
	entry.Instructions = slices.Insert(entry.Instructions, ctx.allocCount, instr)
	ctx.allocCount++
	return slot
}

// emit appends an instruction producing a value of type typ and returns it.
func (ctx *Context) emit(pos token.Pos, op ir.Op, typ *ir.Type, args ...ir.Value) ir.Value {
	res := ctx.newTemp()
	ctx.addInstr(pos, &ir.Instruction{Op: op, Typ: typ, Result: res, Args: args})
	return res
}

func (ctx *Context) genLoad(pos token.Pos, typ *ir.Type, addr ir.Value) ir.Value {
	return ctx.emit(pos, ir.OpLoad, typ, addr)
}

func (ctx *Context) genStore(pos token.Pos, typ *ir.Type, val, addr ir.Value) {
	ctx.addInstr(pos, &ir.Instruction{Op: ir.OpStore, Typ: typ, Args: []ir.Value{val, addr}})
}

// genGEP computes an element address from base. elem is the type base
// points to; the result points to the type selected by the indices.
func (ctx *Context) genGEP(pos token.Pos, elem, result *ir.Type, inBounds bool, base ir.Value, indices ...ir.Value) ir.Value {
	res := ctx.newTemp()
	ctx.addInstr(pos, &ir.Instruction{
		Op:       ir.OpGEP,
		Typ:      ir.NewPointer(result),
		ElemType: elem,
		Result:   res,
		Args:     append([]ir.Value{base}, indices...),
		InBounds: inBounds,
	})
	return res
}

func (ctx *Context) genJmp(pos token.Pos, target *ir.Label) {
	ctx.addInstr(pos, &ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{target}})
}

func (ctx *Context) genJnz(pos token.Pos, cond ir.Value, then, els *ir.Label) {
	ctx.addInstr(pos, &ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{cond, then, els}})
}
