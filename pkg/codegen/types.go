package codegen

import (
	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/ir"
)

// irType maps a source type to its representation type.
func irType(t *ast.Type) *ir.Type {
	if t == nil {
		return ir.None
	}
	switch t.Kind {
	case ast.TypeInt:
		return ir.I64
	case ast.TypeBool:
		return ir.I1
	case ast.TypeArray:
		return ir.NewArray(t.Len, irType(t.Elem))
	case ast.TypePointer:
		return ir.NewPointer(irType(t.Elem))
	}
	return ir.None
}

// SizeOf returns the storage size in bytes of t on a target with the given
// pointer size.
func SizeOf(t *ast.Type, wordSize int) int64 { return ir.SizeOf(irType(t), wordSize) }

// AlignOf returns the alignment in bytes of t.
func AlignOf(t *ast.Type, wordSize int) int { return ir.AlignOf(irType(t), wordSize) }

// zeroValue returns the zero constant of a scalar type.
func zeroValue(t *ir.Type) ir.Value {
	if t.Kind == ir.TypeI1 {
		return ir.NewBoolConst(false)
	}
	return ir.NewConst(0, t)
}
