package ir

import (
	"fmt"
	"strconv"
	"strings"
)

type TypeKind int

const (
	TypeNone TypeKind = iota
	TypeI1            // boolean, always exactly 0 or 1
	TypeI8
	TypeI32
	TypeI64
	TypePtr
	TypeArray
)

// Type is the representation type of a value or a storage slot.
type Type struct {
	Kind TypeKind
	Elem *Type // pointee or element type
	Len  int64 // element count for arrays
}

var (
	None = &Type{Kind: TypeNone}
	I1   = &Type{Kind: TypeI1}
	I8   = &Type{Kind: TypeI8}
	I32  = &Type{Kind: TypeI32}
	I64  = &Type{Kind: TypeI64}
)

func NewPointer(elem *Type) *Type          { return &Type{Kind: TypePtr, Elem: elem} }
func NewArray(n int64, elem *Type) *Type   { return &Type{Kind: TypeArray, Elem: elem, Len: n} }
func (t *Type) IsArray() bool              { return t != nil && t.Kind == TypeArray }
func (t *Type) IsPointer() bool            { return t != nil && t.Kind == TypePtr }
func (t *Type) IsNone() bool               { return t == nil || t.Kind == TypeNone }
func NewConst(v int64, typ *Type) *Const   { return &Const{Value: v, Typ: typ} }
func NewBoolConst(v bool) *Const           { return &Const{Value: boolToInt(v), Typ: I1} }
func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (t *Type) Equal(u *Type) bool {
	if t.IsNone() || u.IsNone() {
		return t.IsNone() && u.IsNone()
	}
	if t.Kind != u.Kind || t.Len != u.Len {
		return false
	}
	if t.Elem == nil || u.Elem == nil {
		return t.Elem == u.Elem
	}
	return t.Elem.Equal(u.Elem)
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case TypeI1:
		return "i1"
	case TypeI8:
		return "i8"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypePtr:
		if t.Elem == nil {
			return "ptr"
		}
		return t.Elem.String() + "*"
	case TypeArray:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	}
	return "void"
}

// SizeOf returns the storage size of t in bytes. Booleans occupy one byte.
func SizeOf(t *Type, wordSize int) int64 {
	switch t.Kind {
	case TypeI1, TypeI8:
		return 1
	case TypeI32:
		return 4
	case TypeI64:
		return 8
	case TypePtr:
		return int64(wordSize)
	case TypeArray:
		return t.Len * SizeOf(t.Elem, wordSize)
	}
	return 0
}

// AlignOf returns the alignment of t in bytes.
func AlignOf(t *Type, wordSize int) int {
	switch t.Kind {
	case TypeArray:
		return AlignOf(t.Elem, wordSize)
	case TypeNone:
		return 1
	}
	return int(SizeOf(t, wordSize))
}

func (c *Const) String() string {
	return strconv.FormatInt(c.Value, 10)
}

func (c *ConstArray) String() string {
	elems := make([]string, len(c.Elems))
	for i, e := range c.Elems {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}
