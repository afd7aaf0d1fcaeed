package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind defines the kind of a Type
type TypeKind int

const (
	TypeNone TypeKind = iota
	TypeInt
	TypeBool
	TypeArray
	TypePointer
)

// Type is a resolved source-level type, as annotated by the type checker
type Type struct {
	Kind TypeKind
	Elem *Type // element type for arrays, pointee for pointers
	Len  int64 // number of elements for arrays
}

// Pre-defined types
var (
	None = &Type{Kind: TypeNone}
	Int  = &Type{Kind: TypeInt}
	Bool = &Type{Kind: TypeBool}
)

func ArrayOf(n int64, elem *Type) *Type { return &Type{Kind: TypeArray, Elem: elem, Len: n} }
func PointerTo(elem *Type) *Type        { return &Type{Kind: TypePointer, Elem: elem} }

func (t *Type) IsArray() bool   { return t != nil && t.Kind == TypeArray }
func (t *Type) IsPointer() bool { return t != nil && t.Kind == TypePointer }
func (t *Type) IsNone() bool    { return t == nil || t.Kind == TypeNone }

// Equal reports whether two types are structurally identical.
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
		return "none"
	}
	switch t.Kind {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeArray:
		return fmt.Sprintf("[%d]%s", t.Len, t.Elem)
	case TypePointer:
		return "*" + t.Elem.String()
	default:
		return "none"
	}
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "int":
		return Int, nil
	case s == "bool":
		return Bool, nil
	case s == "none" || s == "":
		return None, nil
	case strings.HasPrefix(s, "*"):
		elem, err := ParseType(s[1:])
		if err != nil {
			return nil, err
		}
		return PointerTo(elem), nil
	case strings.HasPrefix(s, "["):
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated array type %q", s)
		}
		n, err := strconv.ParseInt(s[1:end], 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid array length in %q", s)
		}
		elem, err := ParseType(s[end+1:])
		if err != nil {
			return nil, err
		}
		return ArrayOf(n, elem), nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}
