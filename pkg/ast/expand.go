package ast

// ExpandArrayInit rewrites a local array declaration initialized with an
// ArrayInit into one assignment per element, stored in ElementInits. Nested
// initializers expand to nested accesses, so [[1,2],[3,4]] produces
// a[0][0] = 1 ... a[1][1] = 4 in order. Declarations without an array
// initializer are left untouched.
func ExpandArrayInit(d *VarDecl) {
	init, ok := d.Init.(*ArrayInit)
	if !ok || d.Global {
		return
	}
	base := NewVarRef(d.Loc, d.Name, d.Type)
	d.ElementInits = expandElems(base, init, nil)
	d.Init = nil
}

func expandElems(base Expr, init *ArrayInit, out []Expr) []Expr {
	for i, elem := range init.Elems {
		pos := elem.Pos()
		dest := NewArrayAccess(pos, base, NewIntLit(pos, int64(i)))
		if nested, ok := elem.(*ArrayInit); ok {
			out = expandElems(dest, nested, out)
			continue
		}
		out = append(out, NewAssign(pos, dest, elem))
	}
	return out
}
