package codegen

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/token"
	"github.com/mxrlang/mxrc/pkg/util"
	"github.com/stretchr/testify/require"
)

var p token.Pos

func lit(v int64) *ast.IntLit                 { return ast.NewIntLit(p, v) }
func ref(name string, t *ast.Type) *ast.VarRef { return ast.NewVarRef(p, name, t) }
func load(x ast.Expr) *ast.Load               { return ast.NewLoad(p, x) }
func ret(x ast.Expr) *ast.Return              { return &ast.Return{X: x} }
func printStmt(x ast.Expr) *ast.Print         { return &ast.Print{X: x} }
func exprStmt(x ast.Expr) *ast.ExprStmt       { return &ast.ExprStmt{X: x} }

func local(name string, t *ast.Type, init ast.Expr) *ast.VarDecl {
	return ast.NewVarDecl(p, name, t, false, init)
}

func global(name string, t *ast.Type, init ast.Expr) *ast.VarDecl {
	return ast.NewVarDecl(p, name, t, true, init)
}

func assign(dest ast.Expr, src ast.Expr) *ast.ExprStmt {
	return exprStmt(ast.NewAssign(p, dest, src))
}

func mainFunc(body ...ast.Stmt) *ast.FunDecl {
	return ast.NewFunDecl(p, "main", ast.Int, nil, body...)
}

func module(decls ...ast.Stmt) *ast.Module { return ast.NewModule(p, "test", decls...) }

func lines(ls ...string) string { return strings.Join(ls, "\n") + "\n" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	require.NoError(t, cfg.SetTarget("linux", "amd64", "qbe"))
	return cfg
}

// captureDiagnostics redirects warnings into the returned buffer for the
// duration of the test.
func captureDiagnostics(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := util.Output
	util.Output = &buf
	t.Cleanup(func() { util.Output = old })
	return &buf
}

func lower(t *testing.T, cfg *config.Config, mod *ast.Module) *ir.Program {
	t.Helper()
	prog, err := NewContext(cfg).GenerateIR(mod)
	require.NoError(t, err)
	require.NotNil(t, prog)
	return prog
}

func blockLabels(fn *ir.Func) []string {
	var labels []string
	for _, b := range fn.Blocks {
		labels = append(labels, b.Label.Name)
	}
	return labels
}

func instrsOf(fn *ir.Func, op ir.Op) []*ir.Instruction {
	var out []*ir.Instruction
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == op {
				out = append(out, instr)
			}
		}
	}
	return out
}

func valueStrings(vals []ir.Value) []string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = v.String()
	}
	return s
}

func printProgram() *ast.Module {
	return module(mainFunc(
		local("x", ast.Int, lit(5)),
		printStmt(load(ref("x", ast.Int))),
		ret(lit(0)),
	))
}

func TestLowerPrint(t *testing.T) {
	prog := lower(t, testConfig(t), printProgram())

	expected := lines(
		`string $fmt.print = private "%lld\n"`,
		`string $fmt.scan = private "%lld"`,
		`extern i32 $printf(i8*, ...)`,
		`extern i32 $scanf(i8*, ...)`,
		``,
		`func i64 $main() {`,
		`@start`,
		"\t%x.0 = alloc i64, align 8",
		"\tstore i64 5, %x.0",
		"\t%t1 = load i64, %x.0",
		"\t%t2 = call i32 $printf(i8* $fmt.print, i64 %t1)",
		"\tret 0",
		`}`,
	)
	require.Equal(t, expected, prog.String())
}

func TestLowerDeterministic(t *testing.T) {
	cfg := testConfig(t)
	a := lower(t, cfg, printProgram())
	b := lower(t, cfg, printProgram())
	if diff := cmp.Diff(a.String(), b.String()); diff != "" {
		t.Fatalf("lowering is not deterministic (-first +second):\n%s", diff)
	}
	require.Equal(t, ir.Fingerprint(a), ir.Fingerprint(b))
}

func TestLowerControlFlow(t *testing.T) {
	tt := []struct {
		name     string
		body     []ast.Stmt
		expected []string
	}{
		{
			name: "if without else",
			body: []ast.Stmt{
				&ast.If{Cond: ast.NewBoolLit(p, true), Then: []ast.Stmt{printStmt(lit(1))}},
				ret(lit(0)),
			},
			expected: []string{"start", "then.0", "merge.0"},
		},
		{
			name: "if else falling through",
			body: []ast.Stmt{
				&ast.If{Cond: ast.NewBoolLit(p, true), Then: []ast.Stmt{printStmt(lit(1))}, Else: []ast.Stmt{printStmt(lit(2))}},
				ret(lit(0)),
			},
			expected: []string{"start", "then.0", "else.0", "merge.0"},
		},
		{
			name: "if else both returning",
			body: []ast.Stmt{
				&ast.If{Cond: ast.NewBoolLit(p, true), Then: []ast.Stmt{ret(lit(1))}, Else: []ast.Stmt{ret(lit(2))}},
			},
			expected: []string{"start", "then.0", "else.0"},
		},
		{
			name: "while",
			body: []ast.Stmt{
				local("i", ast.Int, lit(0)),
				&ast.While{
					Cond: ast.NewBinaryLogical(p, ast.Lt, load(ref("i", ast.Int)), lit(3)),
					Body: []ast.Stmt{assign(ref("i", ast.Int), ast.NewBinaryArith(p, ast.Add, load(ref("i", ast.Int)), lit(1)))},
				},
				ret(lit(0)),
			},
			expected: []string{"start", "cond.0", "body.0", "merge.0"},
		},
		{
			name: "nested constructs number their labels apart",
			body: []ast.Stmt{
				&ast.While{
					Cond: ast.NewBoolLit(p, true),
					Body: []ast.Stmt{&ast.If{Cond: ast.NewBoolLit(p, false), Then: []ast.Stmt{ret(lit(1))}}},
				},
				ret(lit(0)),
			},
			expected: []string{"start", "cond.0", "body.0", "then.1", "merge.1", "merge.0"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			prog := lower(t, testConfig(t), module(mainFunc(tc.body...)))
			main := prog.FindFunc("main")
			require.Equal(t, tc.expected, blockLabels(main))
			for _, b := range main.Blocks {
				require.NotNil(t, b.Terminator(), "block %s", b.Label)
			}
		})
	}
}

func TestLowerWhileEdges(t *testing.T) {
	prog := lower(t, testConfig(t), module(mainFunc(
		&ast.While{Cond: ast.NewBoolLit(p, true), Body: []ast.Stmt{printStmt(lit(1))}},
		ret(lit(0)),
	)))
	main := prog.FindFunc("main")
	succs := func(i int) []string {
		var s []string
		for _, l := range main.Blocks[i].Successors() {
			s = append(s, l.Name)
		}
		return s
	}
	require.Equal(t, []string{"cond.0"}, succs(0))
	require.Equal(t, []string{"body.0", "merge.0"}, succs(1))
	require.Equal(t, []string{"cond.0"}, succs(2))
}

func TestLowerArrayAccess(t *testing.T) {
	arr := ast.ArrayOf(3, ast.Int)
	prog := lower(t, testConfig(t), module(mainFunc(
		local("a", arr, ast.NewArrayInit(p, arr, lit(1), lit(2), lit(3))),
		printStmt(load(ast.NewArrayAccess(p, ref("a", arr), lit(1)))),
		ret(lit(0)),
	)))
	main := prog.FindFunc("main")

	// One store per element, then the access.
	require.Len(t, instrsOf(main, ir.OpStore), 3)
	geps := instrsOf(main, ir.OpGEP)
	require.Len(t, geps, 4)
	for i, gep := range geps {
		require.True(t, gep.InBounds)
		require.Equal(t, "[3 x i64]", gep.ElemType.String())
		require.Equal(t, "i64*", gep.Typ.String())
		if i < 3 {
			require.Equal(t, []string{"%a.0", "0", strconv.Itoa(i)}, valueStrings(gep.Args))
		}
	}
	require.Equal(t, []string{"%a.0", "0", "1"}, valueStrings(geps[3].Args))
}

func TestLowerNestedArrayInit(t *testing.T) {
	row := ast.ArrayOf(2, ast.Int)
	grid := ast.ArrayOf(2, row)
	prog := lower(t, testConfig(t), module(mainFunc(
		local("m", grid, ast.NewArrayInit(p, grid,
			ast.NewArrayInit(p, row, lit(1), lit(2)),
			ast.NewArrayInit(p, row, lit(3), lit(4)),
		)),
		ret(lit(0)),
	)))
	main := prog.FindFunc("main")

	stores := instrsOf(main, ir.OpStore)
	require.Len(t, stores, 4)
	var values []string
	for _, s := range stores {
		values = append(values, s.Args[0].String())
	}
	require.Equal(t, []string{"1", "2", "3", "4"}, values)
	// Two accesses per element: the row, then the column.
	require.Len(t, instrsOf(main, ir.OpGEP), 8)
}

func TestLowerPointerIndex(t *testing.T) {
	ptr := ast.PointerTo(ast.Int)
	prog := lower(t, testConfig(t), module(mainFunc(
		local("p", ptr, nil),
		printStmt(load(ast.NewArrayAccess(p, ref("p", ptr), lit(2)))),
		ret(lit(0)),
	)))
	main := prog.FindFunc("main")
	entry := main.Blocks[0].Instructions

	require.Equal(t, "%p.0 = alloc i64*, align 8", entry[0].String())
	require.Equal(t, "%t1 = load i64*, %p.0", entry[1].String())
	require.Equal(t, "%t2 = gep i64, %t1, 2", entry[2].String())
	require.Equal(t, "%t3 = load i64, %t2", entry[3].String())
}

func TestLowerPointers(t *testing.T) {
	ptr := ast.PointerTo(ast.Int)
	prog := lower(t, testConfig(t), module(
		global("g", ast.Int, lit(7)),
		mainFunc(
			local("p", ptr, ast.NewAddrOf(p, ref("g", ast.Int))),
			assign(ast.NewDeref(p, ref("p", ptr)), lit(1)),
			ret(load(ast.NewDeref(p, ref("p", ptr)))),
		),
	))

	expected := lines(
		`data $g = private align 8 i64 7`,
		`string $fmt.print = private "%lld\n"`,
		`string $fmt.scan = private "%lld"`,
		`extern i32 $printf(i8*, ...)`,
		`extern i32 $scanf(i8*, ...)`,
		``,
		`func i64 $main() {`,
		`@start`,
		"\t%p.0 = alloc i64*, align 8",
		"\tstore i64* $g, %p.0",
		"\t%t1 = load i64*, %p.0",
		"\tstore i64 1, %t1",
		"\t%t2 = load i64*, %p.0",
		"\t%t3 = load i64, %t2",
		"\tret %t3",
		`}`,
	)
	require.Equal(t, expected, prog.String())
}

func TestLowerGlobals(t *testing.T) {
	arr := ast.ArrayOf(2, ast.Int)
	prog := lower(t, testConfig(t), module(
		global("g", ast.Int, lit(7)),
		global("zero", arr, nil),
		global("pair", arr, ast.NewArrayInit(p, arr, lit(3), lit(4))),
		global("flag", ast.Bool, ast.NewBoolLit(p, true)),
		mainFunc(ret(load(ref("g", ast.Int)))),
	))

	g := prog.FindGlobal("g")
	require.NotNil(t, g)
	require.Equal(t, ir.LinkagePrivate, g.Linkage)
	require.Equal(t, 8, g.Align)
	require.Equal(t, "7", g.Init.String())

	require.Nil(t, prog.FindGlobal("zero").Init)
	require.Equal(t, "[3, 4]", prog.FindGlobal("pair").Init.String())
	require.Equal(t, 1, prog.FindGlobal("flag").Align)

	// Globals are addressed by symbol.
	loads := instrsOf(prog.FindFunc("main"), ir.OpLoad)
	require.Len(t, loads, 1)
	require.Equal(t, "$g", loads[0].Args[0].String())
}

func TestLowerFunctionCall(t *testing.T) {
	params := []*ast.VarDecl{local("a", ast.Int, nil), local("b", ast.Int, nil)}
	sum := ast.NewFunDecl(p, "sum", ast.Int, params,
		ret(ast.NewBinaryArith(p, ast.Add, load(ref("a", ast.Int)), load(ref("b", ast.Int)))),
	)
	// main calls sum before its declaration.
	prog := lower(t, testConfig(t), module(
		mainFunc(printStmt(ast.NewCall(p, "sum", ast.Int, lit(40), lit(2))), ret(lit(0))),
		sum,
	))

	require.Contains(t, prog.String(), lines(
		`func i64 $sum(i64 %arg.a, i64 %arg.b) {`,
		`@start`,
		"\t%a.2 = alloc i64, align 8",
		"\t%b.3 = alloc i64, align 8",
		"\tstore i64 %arg.a, %a.2",
		"\tstore i64 %arg.b, %b.3",
		"\t%t4 = load i64, %a.2",
		"\t%t5 = load i64, %b.3",
		"\t%t6 = add i64 %t4, %t5",
		"\tret %t6",
		`}`,
	))

	calls := instrsOf(prog.FindFunc("main"), ir.OpCall)
	require.Len(t, calls, 2)
	require.Equal(t, "%t0 = call i64 $sum(i64 40, i64 2)", calls[0].String())
	require.Equal(t, "$printf", calls[1].Args[0].String())
	require.Equal(t, "%t0", calls[1].Args[2].String())
}

func TestLowerScan(t *testing.T) {
	mod := func() *ast.Module {
		return module(mainFunc(
			local("x", ast.Int, lit(0)),
			&ast.Scan{Target: ref("x", ast.Int)},
			ret(lit(0)),
		))
	}

	prog := lower(t, testConfig(t), mod())
	calls := instrsOf(prog.FindFunc("main"), ir.OpCall)
	require.Len(t, calls, 1)
	require.Equal(t, []string{"$scanf", "$fmt.scan", "%x.0"}, valueStrings(calls[0].Args))
	require.Equal(t, "i64*", calls[0].ArgTypes[1].String())

	cfg := testConfig(t)
	cfg.SetFeature(config.FeatIsoc99Scanf, true)
	prog = lower(t, cfg, mod())
	require.NotNil(t, prog.FindFunc("__isoc99_scanf"))
	require.Nil(t, prog.FindFunc("scanf"))
}

func TestLowerFolding(t *testing.T) {
	tt := []struct {
		name   string
		expr   ast.Expr
		fold   bool
		arg    string
		hasOp  ir.Op
		warned bool
	}{
		{"mul folded", ast.NewBinaryArith(p, ast.Mul, lit(6), lit(7)), true, "42", ir.OpCall, false},
		{"mul kept without folding", ast.NewBinaryArith(p, ast.Mul, lit(6), lit(7)), false, "%t0", ir.OpMul, false},
		{"neg folded", ast.NewUnary(p, ast.Neg, lit(5)), true, "-5", ir.OpCall, false},
		{"division by zero kept", ast.NewBinaryArith(p, ast.Div, lit(1), lit(0)), true, "%t0", ir.OpDiv, true},
		{"overflowing division kept", ast.NewBinaryArith(p, ast.Div, lit(math.MinInt64), lit(-1)), true, "%t0", ir.OpDiv, false},
		{"truncating division folded", ast.NewBinaryArith(p, ast.Div, lit(-7), lit(2)), true, "-3", ir.OpCall, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			diag := captureDiagnostics(t)
			cfg := testConfig(t)
			cfg.SetFeature(config.FeatFold, tc.fold)
			prog := lower(t, cfg, module(mainFunc(printStmt(tc.expr), ret(lit(0)))))
			main := prog.FindFunc("main")

			calls := instrsOf(main, ir.OpCall)
			require.Len(t, calls, 1)
			require.Equal(t, tc.arg, calls[0].Args[2].String())
			require.NotEmpty(t, instrsOf(main, tc.hasOp))
			if tc.warned {
				require.Contains(t, diag.String(), "division by constant zero [-Wextra]")
			} else {
				require.Empty(t, diag.String())
			}
		})
	}
}

func TestLowerBooleans(t *testing.T) {
	prog := lower(t, testConfig(t), module(mainFunc(
		local("b", ast.Bool, ast.NewUnary(p, ast.Not, ast.NewBoolLit(p, true))),
		&ast.If{
			Cond: ast.NewUnary(p, ast.Not, load(ref("b", ast.Bool))),
			Then: []ast.Stmt{printStmt(lit(1))},
		},
		ret(lit(0)),
	)))
	entry := prog.FindFunc("main").Blocks[0].Instructions

	require.Equal(t, "%b.0 = alloc i1, align 1", entry[0].String())
	require.Equal(t, "store i1 0, %b.0", entry[1].String())
	require.Equal(t, "%t1 = load i1, %b.0", entry[2].String())
	require.Equal(t, "%t2 = not i1 %t1", entry[3].String())
	require.Equal(t, "jnz %t2, @then.0, @merge.0", entry[4].String())
}

func TestLowerComparison(t *testing.T) {
	prog := lower(t, testConfig(t), module(mainFunc(
		local("x", ast.Int, lit(1)),
		local("ok", ast.Bool, ast.NewBinaryLogical(p, ast.Ge, load(ref("x", ast.Int)), lit(3))),
		local("both", ast.Bool, ast.NewBinaryLogical(p, ast.And, load(ref("ok", ast.Bool)), ast.NewBoolLit(p, true))),
		ret(lit(0)),
	)))
	main := prog.FindFunc("main")

	ge := instrsOf(main, ir.OpCGe)
	require.Len(t, ge, 1)
	require.Equal(t, "i1", ge[0].Typ.String())
	require.Equal(t, "i64", ge[0].OperandType.String())

	and := instrsOf(main, ir.OpAnd)
	require.Len(t, and, 1)
	require.Equal(t, "i1", and[0].Typ.String())
}

func TestLowerImplicitReturn(t *testing.T) {
	diag := captureDiagnostics(t)
	cfg := testConfig(t)
	cfg.SetWarning(config.WarnImplicitReturn, true)
	prog := lower(t, cfg, module(
		ast.NewFunDecl(p, "noop", ast.None, nil, printStmt(lit(1))),
		ast.NewFunDecl(p, "answer", ast.Int, nil),
		mainFunc(exprStmt(ast.NewCall(p, "noop", ast.None)), ret(lit(0))),
	))

	noop := prog.FindFunc("noop")
	term := noop.Blocks[len(noop.Blocks)-1].Terminator()
	require.Equal(t, ir.OpRet, term.Op)
	require.Empty(t, term.Args)

	answer := prog.FindFunc("answer")
	require.Equal(t, "ret 0", answer.Blocks[0].Terminator().String())

	require.Contains(t, diag.String(), "function 'noop' has no return at its end")
	require.Contains(t, diag.String(), "function 'answer' has no return at its end")

	call := instrsOf(prog.FindFunc("main"), ir.OpCall)[0]
	require.Nil(t, call.Result)
}

func TestLowerUnreachableCode(t *testing.T) {
	diag := captureDiagnostics(t)
	prog := lower(t, testConfig(t), module(mainFunc(
		ret(lit(0)),
		printStmt(lit(1)),
	)))
	main := prog.FindFunc("main")
	require.Len(t, main.Blocks, 1)
	require.Empty(t, instrsOf(main, ir.OpCall))
	require.Contains(t, diag.String(), "unreachable code [-Wunreachable-code]")
}

func TestLowerShadowing(t *testing.T) {
	mod := func() *ast.Module {
		return module(
			ast.NewFunDecl(p, "f", ast.Int, nil, ret(lit(1))),
			mainFunc(
				local("x", ast.Int, lit(1)),
				&ast.If{
					Cond: ast.NewBoolLit(p, true),
					Then: []ast.Stmt{
						local("x", ast.Int, lit(2)),
						local("f", ast.Int, lit(3)),
						printStmt(load(ref("x", ast.Int))),
					},
				},
				printStmt(load(ref("x", ast.Int))),
				ret(lit(0)),
			),
		)
	}

	diag := captureDiagnostics(t)
	prog := lower(t, testConfig(t), mod())
	require.Empty(t, diag.String())

	// The inner print reads the inner x, the outer print the outer one.
	loads := instrsOf(prog.FindFunc("main"), ir.OpLoad)
	require.Len(t, loads, 2)
	require.Equal(t, "%x.1", loads[0].Args[0].String())
	require.Equal(t, "%x.0", loads[1].Args[0].String())

	cfg := testConfig(t)
	cfg.SetWarning(config.WarnShadow, true)
	lower(t, cfg, mod())
	require.Contains(t, diag.String(), "'f' shadows a function of the same name [-Wshadow]")
}

func TestLowerVerifies(t *testing.T) {
	for _, path := range []string{"array_index", "pointers", "sum"} {
		t.Run(path, func(t *testing.T) {
			mod := decodeTestdata(t, path)
			prog := lower(t, testConfig(t), mod)
			require.NoError(t, ir.Verify(prog))
		})
	}
}
