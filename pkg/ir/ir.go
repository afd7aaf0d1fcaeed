package ir

type Op int

const (
	OpAlloc Op = iota
	OpLoad
	OpStore
	OpGEP
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpNeg
	OpNot
	OpCEq
	OpCNeq
	OpCLt
	OpCLe
	OpCGt
	OpCGe
	OpCall
	OpJmp
	OpJnz
	OpRet
)

var opNames = [...]string{
	OpAlloc: "alloc", OpLoad: "load", OpStore: "store", OpGEP: "gep",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpAnd: "and", OpOr: "or", OpNeg: "neg", OpNot: "not",
	OpCEq: "ceq", OpCNeq: "cne", OpCLt: "cslt", OpCLe: "csle", OpCGt: "csgt", OpCGe: "csge",
	OpCall: "call", OpJmp: "jmp", OpJnz: "jnz", OpRet: "ret",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op?"
}

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool { return op == OpJmp || op == OpJnz || op == OpRet }

// IsCompare reports whether op is a signed integer comparison.
func (op Op) IsCompare() bool { return op >= OpCEq && op <= OpCGe }

type Linkage int

const (
	LinkageExternal Linkage = iota
	LinkagePrivate
)

type Value interface {
	isValue()
	String() string
}

// Const is an immediate integer of type Typ (I64 or I1).
type Const struct {
	Value int64
	Typ   *Type
}

// ConstArray is a constant aggregate, only valid as a global initializer.
type ConstArray struct {
	Typ   *Type
	Elems []Value
}
type Global struct{ Name string }
type Temporary struct {
	Name string
	ID   int
}
type Label struct{ Name string }

func (c *Const) isValue()      {}
func (c *ConstArray) isValue() {}
func (g *Global) isValue()     {}
func (t *Temporary) isValue()  {}
func (l *Label) isValue()      {}

func (g *Global) String() string    { return "$" + g.Name }
func (t *Temporary) String() string { return "%" + t.Name }
func (l *Label) String() string     { return "@" + l.Name }

type Func struct {
	Name       string
	Params     []*Param
	ReturnType *Type
	Variadic   bool
	Linkage    Linkage
	Blocks     []*BasicBlock // empty for external declarations
}

type Param struct {
	Name string
	Typ  *Type
	Val  Value
}

type BasicBlock struct {
	Label        *Label
	Instructions []*Instruction
}

// Terminator returns the last instruction of the block if it is a terminator.
func (b *BasicBlock) Terminator() *Instruction {
	if n := len(b.Instructions); n > 0 && b.Instructions[n-1].Op.IsTerminator() {
		return b.Instructions[n-1]
	}
	return nil
}

// Successors returns the labels the block branches to.
func (b *BasicBlock) Successors() []*Label {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	var succs []*Label
	for _, arg := range term.Args {
		if l, ok := arg.(*Label); ok {
			succs = append(succs, l)
		}
	}
	return succs
}

type Instruction struct {
	Op          Op
	Typ         *Type // result type; the stored type for OpStore
	OperandType *Type // operand type of comparisons
	ElemType    *Type // slot type for OpAlloc, source element type for OpGEP
	Result      Value
	Args        []Value
	ArgTypes    []*Type // OpCall argument types, in order
	Align       int
	InBounds    bool
}

type Program struct {
	Globals  []*Data
	Strings  []*StringLit
	Funcs    []*Func
	Externs  []*Func
	WordSize int
}

// Data is a global storage slot. A nil Init means zero-initialized.
type Data struct {
	Name    string
	Align   int
	Typ     *Type
	Linkage Linkage
	Init    Value
}

// StringLit is a private, NUL-terminated byte string.
type StringLit struct {
	Name  string
	Value string
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	for _, f := range p.Externs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (p *Program) FindGlobal(name string) *Data {
	for _, g := range p.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func (p *Program) FindString(name string) *StringLit {
	for _, s := range p.Strings {
		if s.Name == name {
			return s
		}
	}
	return nil
}
