package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
)

type qbeBackend struct {
	out       *strings.Builder
	prog      *ir.Program
	tempCount int
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR renders prog as QBE intermediate language.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.prog = prog
	b.tempCount = 0

	if err := b.gen(); err != nil {
		return "", err
	}
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) gen() error {
	for _, g := range b.prog.Globals {
		if err := b.genGlobal(g); err != nil {
			return err
		}
	}

	if len(b.prog.Strings) > 0 {
		b.out.WriteString("\n")
		for _, s := range b.prog.Strings {
			fmt.Fprintf(b.out, "data $%s = { b %s, b 0 }\n", s.Name, strconv.Quote(s.Value))
		}
	}

	for _, fn := range b.prog.Funcs {
		if err := b.genFunc(fn); err != nil {
			return err
		}
	}
	return nil
}

func (b *qbeBackend) genGlobal(g *ir.Data) error {
	alignStr := ""
	if g.Align > 0 {
		alignStr = fmt.Sprintf("align %d ", g.Align)
	}
	linkage := ""
	if g.Linkage == ir.LinkageExternal {
		linkage = "export "
	}

	var items []string
	if g.Init == nil {
		items = append(items, fmt.Sprintf("z %d", ir.SizeOf(g.Typ, b.prog.WordSize)))
	} else if err := b.dataItems(g.Init, g.Typ, &items); err != nil {
		return fmt.Errorf("global $%s: %w", g.Name, err)
	}
	fmt.Fprintf(b.out, "%sdata $%s = %s{ %s }\n", linkage, g.Name, alignStr, strings.Join(items, ", "))
	return nil
}

// dataItems flattens a constant initializer into QBE data items.
func (b *qbeBackend) dataItems(v ir.Value, t *ir.Type, items *[]string) error {
	switch c := v.(type) {
	case *ir.Const:
		*items = append(*items, fmt.Sprintf("%s %d", b.memType(t), c.Value))
	case *ir.ConstArray:
		for _, elem := range c.Elems {
			if err := b.dataItems(elem, t.Elem, items); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported initializer %s", v)
	}
	return nil
}

func (b *qbeBackend) genFunc(fn *ir.Func) error {
	retTypeStr := b.formatType(fn.ReturnType)
	if retTypeStr != "" {
		retTypeStr = " " + retTypeStr
	}
	linkage := ""
	if fn.Linkage == ir.LinkageExternal {
		linkage = "export "
	}

	fmt.Fprintf(b.out, "\n%sfunction%s $%s(", linkage, retTypeStr, fn.Name)
	for i, p := range fn.Params {
		fmt.Fprintf(b.out, "%s %s", b.formatType(p.Typ), b.formatValue(p.Val))
		if i < len(fn.Params)-1 {
			b.out.WriteString(", ")
		}
	}
	b.out.WriteString(") {\n")

	for _, block := range fn.Blocks {
		fmt.Fprintf(b.out, "@%s\n", block.Label.Name)
		for _, instr := range block.Instructions {
			if err := b.genInstr(instr); err != nil {
				return fmt.Errorf("function $%s, block @%s: %w", fn.Name, block.Label.Name, err)
			}
		}
	}

	b.out.WriteString("}\n")
	return nil
}

var qbeOps = map[ir.Op]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul", ir.OpDiv: "div",
	ir.OpAnd: "and", ir.OpOr: "or", ir.OpNeg: "neg",
	ir.OpCEq: "ceq", ir.OpCNeq: "cne", ir.OpCLt: "cslt", ir.OpCLe: "csle", ir.OpCGt: "csgt", ir.OpCGe: "csge",
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) error {
	switch instr.Op {
	case ir.OpAlloc:
		size := ir.SizeOf(instr.ElemType, b.prog.WordSize)
		fmt.Fprintf(b.out, "\t%s =%s %s %d\n", b.formatValue(instr.Result), b.wordType(), allocOp(instr.Align), size)
	case ir.OpLoad:
		fmt.Fprintf(b.out, "\t%s =%s %s %s\n", b.formatValue(instr.Result), b.formatType(instr.Typ), b.loadOp(instr.Typ), b.formatValue(instr.Args[0]))
	case ir.OpStore:
		fmt.Fprintf(b.out, "\tstore%s %s, %s\n", b.memType(instr.Typ), b.formatValue(instr.Args[0]), b.formatValue(instr.Args[1]))
	case ir.OpGEP:
		b.genGEP(instr)
	case ir.OpNot:
		// Complement within the one-bit boolean width.
		fmt.Fprintf(b.out, "\t%s =w xor %s, 1\n", b.formatValue(instr.Result), b.formatValue(instr.Args[0]))
	case ir.OpCall:
		b.genCall(instr)
	case ir.OpJmp:
		fmt.Fprintf(b.out, "\tjmp %s\n", b.formatValue(instr.Args[0]))
	case ir.OpJnz:
		fmt.Fprintf(b.out, "\tjnz %s, %s, %s\n", b.formatValue(instr.Args[0]), b.formatValue(instr.Args[1]), b.formatValue(instr.Args[2]))
	case ir.OpRet:
		if len(instr.Args) == 0 {
			b.out.WriteString("\tret\n")
		} else {
			fmt.Fprintf(b.out, "\tret %s\n", b.formatValue(instr.Args[0]))
		}
	default:
		op, ok := qbeOps[instr.Op]
		if !ok {
			return fmt.Errorf("unsupported instruction %s", instr.Op)
		}
		if instr.Op.IsCompare() {
			op += b.formatType(instr.OperandType)
		}
		args := make([]string, len(instr.Args))
		for i, a := range instr.Args {
			args[i] = b.formatValue(a)
		}
		fmt.Fprintf(b.out, "\t%s =%s %s %s\n", b.formatValue(instr.Result), b.formatType(instr.Typ), op, strings.Join(args, ", "))
	}
	return nil
}

// genGEP expands an address computation into pointer arithmetic. Constant
// indices are folded into one offset.
func (b *qbeBackend) genGEP(instr *ir.Instruction) {
	wt := b.wordType()
	acc := b.formatValue(instr.Args[0])
	var offset int64

	t := instr.ElemType
	for i, idx := range instr.Args[1:] {
		if i > 0 {
			t = t.Elem
		}
		stride := ir.SizeOf(t, b.prog.WordSize)
		if c, ok := idx.(*ir.Const); ok {
			offset += c.Value * stride
			continue
		}
		scaled := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =%s mul %s, %d\n", scaled, wt, b.formatValue(idx), stride)
		sum := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =%s add %s, %s\n", sum, wt, acc, scaled)
		acc = sum
	}

	if offset != 0 {
		fmt.Fprintf(b.out, "\t%s =%s add %s, %d\n", b.formatValue(instr.Result), wt, acc, offset)
	} else {
		fmt.Fprintf(b.out, "\t%s =%s copy %s\n", b.formatValue(instr.Result), wt, acc)
	}
}

func (b *qbeBackend) genCall(instr *ir.Instruction) {
	b.out.WriteString("\t")
	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(instr.Typ))
	}

	callee := instr.Args[0]
	fixed := len(instr.ArgTypes)
	if g, ok := callee.(*ir.Global); ok {
		if fn := b.prog.FindFunc(g.Name); fn != nil && fn.Variadic {
			fixed = len(fn.Params)
		}
	}

	fmt.Fprintf(b.out, "call %s(", b.formatValue(callee))
	for i, arg := range instr.Args[1:] {
		if i > 0 {
			b.out.WriteString(", ")
		}
		if i == fixed {
			b.out.WriteString("..., ")
		}
		fmt.Fprintf(b.out, "%s %s", b.formatType(instr.ArgTypes[i]), b.formatValue(arg))
	}
	b.out.WriteString(")\n")
}

func (b *qbeBackend) newTemp() string {
	t := fmt.Sprintf("%%_g%d", b.tempCount)
	b.tempCount++
	return t
}

func (b *qbeBackend) formatValue(v ir.Value) string {
	switch val := v.(type) {
	case *ir.Const:
		return strconv.FormatInt(val.Value, 10)
	case *ir.Global:
		return "$" + val.Name
	case *ir.Temporary:
		return "%" + val.Name
	case *ir.Label:
		return "@" + val.Name
	}
	return ""
}

func (b *qbeBackend) wordType() string {
	if b.prog.WordSize == 4 {
		return "w"
	}
	return "l"
}

// formatType returns the QBE base type holding a value of type t in a
// temporary. Booleans and bytes live in words.
func (b *qbeBackend) formatType(t *ir.Type) string {
	switch t.Kind {
	case ir.TypeI1, ir.TypeI8, ir.TypeI32:
		return "w"
	case ir.TypeI64:
		return "l"
	case ir.TypePtr:
		return b.wordType()
	}
	return ""
}

// memType returns the QBE extended type used to store t in memory.
func (b *qbeBackend) memType(t *ir.Type) string {
	switch t.Kind {
	case ir.TypeI1, ir.TypeI8:
		return "b"
	case ir.TypeI32:
		return "w"
	case ir.TypeI64:
		return "l"
	}
	return b.wordType()
}

func (b *qbeBackend) loadOp(t *ir.Type) string {
	switch t.Kind {
	case ir.TypeI1, ir.TypeI8:
		return "loadub"
	case ir.TypeI32:
		return "loadw"
	case ir.TypeI64:
		return "loadl"
	}
	return "load" + b.wordType()
}

func allocOp(align int) string {
	switch {
	case align <= 4:
		return "alloc4"
	case align <= 8:
		return "alloc8"
	}
	return "alloc16"
}
