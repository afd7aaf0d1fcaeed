package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mxrlang/mxrc/pkg/config"
	mir "github.com/mxrlang/mxrc/pkg/ir"
)

var llvmTriples = map[string]string{
	"amd64_sysv":  "x86_64-unknown-linux-gnu",
	"amd64_apple": "x86_64-apple-macosx",
	"arm64":       "aarch64-unknown-linux-gnu",
	"arm64_apple": "arm64-apple-macosx",
	"rv64":        "riscv64-unknown-linux-gnu",
	"arm":         "armv7-unknown-linux-gnueabihf",
	"rv32":        "riscv32-unknown-linux-gnu",
}

type llvmBackend struct {
	module  *ir.Module
	funcs   map[string]*ir.Func
	globals map[string]constant.Constant
	locals  map[string]value.Value
	blocks  map[string]*ir.Block
}

func NewLLVMBackend() Backend { return &llvmBackend{} }

// GenerateIR renders prog as textual LLVM IR.
func (b *llvmBackend) GenerateIR(prog *mir.Program, cfg *config.Config) (string, error) {
	b.module = ir.NewModule()
	b.module.TargetTriple = llvmTriples[cfg.BackendTarget]
	b.funcs = make(map[string]*ir.Func)
	b.globals = make(map[string]constant.Constant)

	for _, s := range prog.Strings {
		g := b.module.NewGlobalDef(s.Name, constant.NewCharArrayFromString(s.Value+"\x00"))
		g.Linkage = enum.LinkagePrivate
		g.Immutable = true
		zero := constant.NewInt(types.I64, 0)
		b.globals[s.Name] = constant.NewGetElementPtr(g.ContentType, g, zero, zero)
	}

	for _, d := range prog.Globals {
		init, err := b.constant(d.Init, d.Typ)
		if err != nil {
			return "", fmt.Errorf("global @%s: %w", d.Name, err)
		}
		g := b.module.NewGlobalDef(d.Name, init)
		if d.Linkage == mir.LinkagePrivate {
			g.Linkage = enum.LinkagePrivate
		}
		g.Align = ir.Align(d.Align)
		b.globals[d.Name] = g
	}

	// Declare every function first so calls may refer forward.
	for _, fn := range append(append([]*mir.Func{}, prog.Externs...), prog.Funcs...) {
		params := make([]*ir.Param, len(fn.Params))
		for i, p := range fn.Params {
			name := p.Name
			if t, ok := p.Val.(*mir.Temporary); ok {
				name = t.Name
			}
			params[i] = ir.NewParam(name, b.llvmType(p.Typ))
		}
		f := b.module.NewFunc(fn.Name, b.llvmType(fn.ReturnType), params...)
		f.Sig.Variadic = fn.Variadic
		if fn.Linkage == mir.LinkagePrivate {
			f.Linkage = enum.LinkagePrivate
		}
		b.funcs[fn.Name] = f
	}

	for _, fn := range prog.Funcs {
		if err := b.genFunc(fn); err != nil {
			return "", err
		}
	}
	return b.module.String(), nil
}

// Generate compiles the module to assembly with the system's llc.
func (b *llvmBackend) Generate(prog *mir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("llc"); err != nil {
		return nil, fmt.Errorf("llc not found in PATH: %w", err)
	}
	llvmIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "mxrc-llvm-*.ll")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	if _, err := inputFile.WriteString(llvmIR); err != nil {
		inputFile.Close()
		return nil, err
	}
	inputFile.Close()

	var asmBuf, stderr bytes.Buffer
	cmd := exec.Command("llc", "-o", "-", inputFile.Name())
	cmd.Stdout, cmd.Stderr = &asmBuf, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- LLVM Compilation Failed ---\nGenerated IR:\n%s\n\nllc error: %w\n%s", llvmIR, err, stderr.String())
	}
	return &asmBuf, nil
}

func (b *llvmBackend) genFunc(fn *mir.Func) error {
	f := b.funcs[fn.Name]
	b.locals = make(map[string]value.Value)
	b.blocks = make(map[string]*ir.Block)

	for i, p := range fn.Params {
		if t, ok := p.Val.(*mir.Temporary); ok {
			b.locals[t.Name] = f.Params[i]
		}
	}
	for _, block := range fn.Blocks {
		// Blocks share the local namespace with values in LLVM.
		b.blocks[block.Label.Name] = f.NewBlock("L." + block.Label.Name)
	}

	for _, block := range fn.Blocks {
		bb := b.blocks[block.Label.Name]
		for _, instr := range block.Instructions {
			if err := b.genInstr(bb, instr); err != nil {
				return fmt.Errorf("function @%s, block %%%s: %w", fn.Name, block.Label.Name, err)
			}
		}
	}
	return nil
}

func (b *llvmBackend) genInstr(bb *ir.Block, instr *mir.Instruction) error {
	args := make([]value.Value, len(instr.Args))
	for i, a := range instr.Args {
		if _, isLabel := a.(*mir.Label); isLabel {
			continue
		}
		v, err := b.value(a)
		if err != nil {
			return err
		}
		args[i] = v
	}

	var res value.Named
	switch instr.Op {
	case mir.OpAlloc:
		inst := bb.NewAlloca(b.llvmType(instr.ElemType))
		inst.Align = ir.Align(instr.Align)
		res = inst
	case mir.OpLoad:
		res = bb.NewLoad(b.llvmType(instr.Typ), args[0])
	case mir.OpStore:
		bb.NewStore(args[0], args[1])
	case mir.OpGEP:
		inst := bb.NewGetElementPtr(b.llvmType(instr.ElemType), args[0], args[1:]...)
		inst.InBounds = instr.InBounds
		res = inst
	case mir.OpAdd:
		res = bb.NewAdd(args[0], args[1])
	case mir.OpSub:
		res = bb.NewSub(args[0], args[1])
	case mir.OpMul:
		res = bb.NewMul(args[0], args[1])
	case mir.OpDiv:
		res = bb.NewSDiv(args[0], args[1])
	case mir.OpAnd:
		res = bb.NewAnd(args[0], args[1])
	case mir.OpOr:
		res = bb.NewOr(args[0], args[1])
	case mir.OpNeg:
		res = bb.NewSub(constant.NewInt(types.I64, 0), args[0])
	case mir.OpNot:
		res = bb.NewXor(args[0], constant.NewBool(true))
	case mir.OpCEq, mir.OpCNeq, mir.OpCLt, mir.OpCLe, mir.OpCGt, mir.OpCGe:
		res = bb.NewICmp(llvmPreds[instr.Op], args[0], args[1])
	case mir.OpCall:
		call := bb.NewCall(args[0], args[1:]...)
		if instr.Result != nil {
			res = call
		}
	case mir.OpJmp:
		bb.NewBr(b.blocks[instr.Args[0].(*mir.Label).Name])
	case mir.OpJnz:
		bb.NewCondBr(args[0], b.blocks[instr.Args[1].(*mir.Label).Name], b.blocks[instr.Args[2].(*mir.Label).Name])
	case mir.OpRet:
		if len(args) == 0 {
			bb.NewRet(nil)
		} else {
			bb.NewRet(args[0])
		}
	default:
		return fmt.Errorf("unsupported instruction %s", instr.Op)
	}

	if res != nil && instr.Result != nil {
		t := instr.Result.(*mir.Temporary)
		res.SetName(t.Name)
		b.locals[t.Name] = res
	}
	return nil
}

var llvmPreds = map[mir.Op]enum.IPred{
	mir.OpCEq: enum.IPredEQ, mir.OpCNeq: enum.IPredNE,
	mir.OpCLt: enum.IPredSLT, mir.OpCLe: enum.IPredSLE,
	mir.OpCGt: enum.IPredSGT, mir.OpCGe: enum.IPredSGE,
}

func (b *llvmBackend) value(v mir.Value) (value.Value, error) {
	switch val := v.(type) {
	case *mir.Temporary:
		if l, ok := b.locals[val.Name]; ok {
			return l, nil
		}
		return nil, fmt.Errorf("use of undefined temporary %%%s", val.Name)
	case *mir.Global:
		if f, ok := b.funcs[val.Name]; ok {
			return f, nil
		}
		if g, ok := b.globals[val.Name]; ok {
			return g, nil
		}
		return nil, fmt.Errorf("use of undefined global @%s", val.Name)
	case *mir.Const:
		return b.constant(val, val.Typ)
	case *mir.ConstArray:
		return b.constant(val, val.Typ)
	}
	return nil, fmt.Errorf("unsupported operand %v", v)
}

// constant converts a constant initializer. A nil v is the zero value of typ.
func (b *llvmBackend) constant(v mir.Value, typ *mir.Type) (constant.Constant, error) {
	lt := b.llvmType(typ)
	switch c := v.(type) {
	case nil:
		return constant.NewZeroInitializer(lt), nil
	case *mir.Const:
		switch typ.Kind {
		case mir.TypeI1:
			return constant.NewBool(c.Value != 0), nil
		case mir.TypePtr:
			return constant.NewNull(lt.(*types.PointerType)), nil
		}
		return constant.NewInt(lt.(*types.IntType), c.Value), nil
	case *mir.ConstArray:
		elems := make([]constant.Constant, len(c.Elems))
		for i, e := range c.Elems {
			ec, err := b.constant(e, typ.Elem)
			if err != nil {
				return nil, err
			}
			elems[i] = ec
		}
		return constant.NewArray(lt.(*types.ArrayType), elems...), nil
	}
	return nil, fmt.Errorf("unsupported initializer %v", v)
}

func (b *llvmBackend) llvmType(t *mir.Type) types.Type {
	switch t.Kind {
	case mir.TypeI1:
		return types.I1
	case mir.TypeI8:
		return types.I8
	case mir.TypeI32:
		return types.I32
	case mir.TypeI64:
		return types.I64
	case mir.TypePtr:
		return types.NewPointer(b.llvmType(t.Elem))
	case mir.TypeArray:
		return types.NewArray(uint64(t.Len), b.llvmType(t.Elem))
	}
	return types.Void
}
