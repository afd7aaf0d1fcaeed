package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// String renders the program in a stable textual form used for dumps,
// golden comparisons and fingerprints.
func (p *Program) String() string {
	var sb strings.Builder
	p.Fprint(&sb)
	return sb.String()
}

// Fprint renders the program to w.
func (p *Program) Fprint(w io.Writer) {
	for _, g := range p.Globals {
		init := "zeroinit"
		if g.Init != nil {
			init = g.Init.String()
		}
		fmt.Fprintf(w, "data $%s = %s align %d %s %s\n", g.Name, linkageName(g.Linkage), g.Align, g.Typ, init)
	}
	for _, s := range p.Strings {
		fmt.Fprintf(w, "string $%s = private %s\n", s.Name, strconv.Quote(s.Value))
	}
	for _, f := range p.Externs {
		fmt.Fprintf(w, "extern %s\n", signature(f))
	}
	for _, f := range p.Funcs {
		fmt.Fprintf(w, "\nfunc %s {\n", signature(f))
		for _, b := range f.Blocks {
			fmt.Fprintf(w, "%s\n", b.Label)
			for _, instr := range b.Instructions {
				fmt.Fprintf(w, "\t%s\n", instr)
			}
		}
		io.WriteString(w, "}\n")
	}
}

// Fingerprint returns a hash of the textual form of p. Two programs with the
// same fingerprint print identically.
func Fingerprint(p *Program) uint64 {
	d := xxhash.New()
	p.Fprint(d)
	return d.Sum64()
}

func linkageName(l Linkage) string {
	if l == LinkagePrivate {
		return "private"
	}
	return "external"
}

func signature(f *Func) string {
	params := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		if p.Val != nil {
			params = append(params, fmt.Sprintf("%s %s", p.Typ, p.Val))
		} else {
			params = append(params, p.Typ.String())
		}
	}
	if f.Variadic {
		params = append(params, "...")
	}
	return fmt.Sprintf("%s $%s(%s)", f.ReturnType, f.Name, strings.Join(params, ", "))
}

func (instr *Instruction) String() string {
	var sb strings.Builder
	if instr.Result != nil {
		fmt.Fprintf(&sb, "%s = ", instr.Result)
	}
	switch instr.Op {
	case OpAlloc:
		fmt.Fprintf(&sb, "alloc %s, align %d", instr.ElemType, instr.Align)
	case OpLoad:
		fmt.Fprintf(&sb, "load %s, %s", instr.Typ, instr.Args[0])
	case OpStore:
		fmt.Fprintf(&sb, "store %s %s, %s", instr.Typ, instr.Args[0], instr.Args[1])
	case OpGEP:
		sb.WriteString("gep ")
		if instr.InBounds {
			sb.WriteString("inbounds ")
		}
		fmt.Fprintf(&sb, "%s, %s", instr.ElemType, joinValues(instr.Args))
	case OpCall:
		args := make([]string, len(instr.Args)-1)
		for i, a := range instr.Args[1:] {
			args[i] = fmt.Sprintf("%s %s", instr.ArgTypes[i], a)
		}
		fmt.Fprintf(&sb, "call %s %s(%s)", instr.Typ, instr.Args[0], strings.Join(args, ", "))
	case OpJmp, OpJnz, OpRet:
		sb.WriteString(instr.Op.String())
		if len(instr.Args) > 0 {
			fmt.Fprintf(&sb, " %s", joinValues(instr.Args))
		}
	default:
		typ := instr.Typ
		if instr.Op.IsCompare() {
			typ = instr.OperandType
		}
		fmt.Fprintf(&sb, "%s %s %s", instr.Op, typ, joinValues(instr.Args))
	}
	return sb.String()
}

func joinValues(vals []Value) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = v.String()
	}
	return strings.Join(s, ", ")
}
