package ast

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mxrlang/mxrc/pkg/token"
)

// jsonNode is the interchange form of every node. Which fields are used
// depends on Kind.
type jsonNode struct {
	Kind   string          `json:"kind"`
	Loc    string          `json:"loc,omitempty"`
	Type   string          `json:"type,omitempty"`
	Name   string          `json:"name,omitempty"`
	Op     string          `json:"op,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Callee string          `json:"callee,omitempty"`
	Global bool            `json:"global,omitempty"`

	X      *jsonNode `json:"x,omitempty"`
	Dest   *jsonNode `json:"dest,omitempty"`
	Source *jsonNode `json:"source,omitempty"`
	Left   *jsonNode `json:"left,omitempty"`
	Right  *jsonNode `json:"right,omitempty"`
	Base   *jsonNode `json:"base,omitempty"`
	Index  *jsonNode `json:"index,omitempty"`
	Init   *jsonNode `json:"init,omitempty"`
	Cond   *jsonNode `json:"cond,omitempty"`
	Target *jsonNode `json:"target,omitempty"`

	Elems  []*jsonNode `json:"elems,omitempty"`
	Args   []*jsonNode `json:"args,omitempty"`
	Params []*jsonNode `json:"params,omitempty"`
	Then   []*jsonNode `json:"then,omitempty"`
	Else   []*jsonNode `json:"else"`
	Body   []*jsonNode `json:"body,omitempty"`
	Decls  []*jsonNode `json:"decls,omitempty"`
}

var (
	arithOps   = map[string]ArithOp{"+": Add, "-": Sub, "*": Mul, "/": Div}
	logicalOps = map[string]LogicalOp{"&&": And, "||": Or, "==": Eq, "!=": Ne, "<": Lt, "<=": Le, ">": Gt, ">=": Ge}
	unaryOps   = map[string]UnaryOp{"-": Neg, "!": Not}
	pointerOps = map[string]PointerOpKind{"&": AddrOf, "*": Deref}
)

type decoder struct{ file string }

// Decode reads a typed module in its JSON interchange form. file names the
// input for positions that do not carry one. Local array initializers are
// expanded with ExpandArrayInit.
func Decode(r io.Reader, file string) (*Module, error) {
	var root jsonNode
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	d := &decoder{file: file}
	stmt, err := d.stmt(&root)
	if err != nil {
		return nil, err
	}
	mod, ok := stmt.(*Module)
	if !ok {
		return nil, fmt.Errorf("%s: top-level node is %q, want \"Module\"", file, root.Kind)
	}
	return mod, nil
}

func (d *decoder) pos(n *jsonNode) (token.Pos, error) {
	pos, err := token.ParsePos(n.Loc)
	if err != nil {
		return pos, err
	}
	if pos.File == "" {
		pos.File = d.file
	}
	return pos, nil
}

func (d *decoder) errorf(pos token.Pos, format string, args ...any) error {
	return fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))
}

func (d *decoder) typ(n *jsonNode, pos token.Pos) (*Type, error) {
	if n.Type == "" {
		return nil, nil
	}
	t, err := ParseType(n.Type)
	if err != nil {
		return nil, d.errorf(pos, "%v", err)
	}
	return t, nil
}

func (d *decoder) exprs(ns []*jsonNode) ([]Expr, error) {
	out := make([]Expr, 0, len(ns))
	for _, n := range ns {
		e, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) stmts(ns []*jsonNode) ([]Stmt, error) {
	out := make([]Stmt, 0, len(ns))
	for _, n := range ns {
		s, err := d.stmt(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) expr(n *jsonNode) (Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("%s: missing expression", d.file)
	}
	pos, err := d.pos(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.file, err)
	}
	typ, err := d.typ(n, pos)
	if err != nil {
		return nil, err
	}

	// Children are decoded first so constructors can derive result types.
	var x, left, right Expr
	for _, c := range []struct {
		src *jsonNode
		dst *Expr
	}{{n.X, &x}, {n.Left, &left}, {n.Right, &right}} {
		if c.src != nil {
			if *c.dst, err = d.expr(c.src); err != nil {
				return nil, err
			}
		}
	}

	var e Expr
	switch n.Kind {
	case "IntLit":
		var v int64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, d.errorf(pos, "invalid integer literal: %v", err)
		}
		e = NewIntLit(pos, v)
	case "BoolLit":
		var v bool
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, d.errorf(pos, "invalid boolean literal: %v", err)
		}
		e = NewBoolLit(pos, v)
	case "VarRef":
		if typ == nil {
			return nil, d.errorf(pos, "variable reference %q has no type", n.Name)
		}
		e = NewVarRef(pos, n.Name, typ)
	case "Load":
		if x == nil {
			return nil, d.errorf(pos, "load without operand")
		}
		e = NewLoad(pos, x)
	case "Assign":
		dest, err := d.expr(n.Dest)
		if err != nil {
			return nil, err
		}
		src, err := d.expr(n.Source)
		if err != nil {
			return nil, err
		}
		e = NewAssign(pos, dest, src)
	case "BinaryArith":
		op, ok := arithOps[n.Op]
		if !ok || left == nil || right == nil {
			return nil, d.errorf(pos, "malformed arithmetic expression (op %q)", n.Op)
		}
		e = NewBinaryArith(pos, op, left, right)
	case "BinaryLogical":
		op, ok := logicalOps[n.Op]
		if !ok || left == nil || right == nil {
			return nil, d.errorf(pos, "malformed logical expression (op %q)", n.Op)
		}
		e = NewBinaryLogical(pos, op, left, right)
	case "Unary":
		op, ok := unaryOps[n.Op]
		if !ok || x == nil {
			return nil, d.errorf(pos, "malformed unary expression (op %q)", n.Op)
		}
		e = NewUnary(pos, op, x)
	case "ArrayAccess":
		base, err := d.expr(n.Base)
		if err != nil {
			return nil, err
		}
		index, err := d.expr(n.Index)
		if err != nil {
			return nil, err
		}
		e = NewArrayAccess(pos, base, index)
	case "ArrayInit":
		elems, err := d.exprs(n.Elems)
		if err != nil {
			return nil, err
		}
		if typ == nil && len(elems) > 0 {
			typ = ArrayOf(int64(len(elems)), elems[0].Type())
		}
		e = NewArrayInit(pos, typ, elems...)
	case "PointerOp":
		op, ok := pointerOps[n.Op]
		if !ok || x == nil {
			return nil, d.errorf(pos, "malformed pointer expression (op %q)", n.Op)
		}
		if op == AddrOf {
			e = NewAddrOf(pos, x)
		} else {
			e = NewDeref(pos, x)
		}
	case "Call":
		args, err := d.exprs(n.Args)
		if err != nil {
			return nil, err
		}
		e = NewCall(pos, n.Callee, typ, args...)
	default:
		return nil, d.errorf(pos, "unknown expression kind %q", n.Kind)
	}

	// An explicit type always wins over the derived one.
	if typ != nil {
		setType(e, typ)
	}
	return e, nil
}

func setType(e Expr, typ *Type) {
	type typed interface{ base() *ExprBase }
	if t, ok := e.(typed); ok {
		t.base().Typ = typ
	}
}

func (e *ExprBase) base() *ExprBase { return e }

func (d *decoder) stmt(n *jsonNode) (Stmt, error) {
	if n == nil {
		return nil, fmt.Errorf("%s: missing statement", d.file)
	}
	pos, err := d.pos(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.file, err)
	}
	typ, err := d.typ(n, pos)
	if err != nil {
		return nil, err
	}
	base := StmtBase{pos}

	switch n.Kind {
	case "ExprStmt", "Return", "Print":
		var x Expr
		if n.X != nil {
			if x, err = d.expr(n.X); err != nil {
				return nil, err
			}
		}
		switch {
		case n.Kind == "Return":
			return &Return{StmtBase: base, X: x}, nil
		case x == nil:
			return nil, d.errorf(pos, "%s without expression", n.Kind)
		case n.Kind == "Print":
			return &Print{StmtBase: base, X: x}, nil
		}
		return &ExprStmt{StmtBase: base, X: x}, nil
	case "Scan":
		target, err := d.expr(n.Target)
		if err != nil {
			return nil, err
		}
		return &Scan{StmtBase: base, Target: target}, nil
	case "If":
		cond, err := d.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.stmts(n.Then)
		if err != nil {
			return nil, err
		}
		s := &If{StmtBase: base, Cond: cond, Then: then}
		if n.Else != nil {
			if s.Else, err = d.stmts(n.Else); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "While":
		cond, err := d.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(n.Body)
		if err != nil {
			return nil, err
		}
		return &While{StmtBase: base, Cond: cond, Body: body}, nil
	case "VarDecl":
		if typ == nil {
			return nil, d.errorf(pos, "variable %q has no type", n.Name)
		}
		var init Expr
		if n.Init != nil {
			if init, err = d.expr(n.Init); err != nil {
				return nil, err
			}
		}
		decl := NewVarDecl(pos, n.Name, typ, n.Global, init)
		ExpandArrayInit(decl)
		return decl, nil
	case "FunDecl":
		if typ == nil {
			typ = None
		}
		var params []*VarDecl
		for _, p := range n.Params {
			s, err := d.stmt(p)
			if err != nil {
				return nil, err
			}
			param, ok := s.(*VarDecl)
			if !ok {
				return nil, d.errorf(pos, "parameter of %q is a %s", n.Name, p.Kind)
			}
			params = append(params, param)
		}
		body, err := d.stmts(n.Body)
		if err != nil {
			return nil, err
		}
		return NewFunDecl(pos, n.Name, typ, params, body...), nil
	case "Module":
		decls, err := d.stmts(n.Decls)
		if err != nil {
			return nil, err
		}
		return NewModule(pos, n.Name, decls...), nil
	}
	return nil, d.errorf(pos, "unknown statement kind %q", n.Kind)
}
