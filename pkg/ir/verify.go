package ir

import (
	"errors"
	"fmt"
)

// Verify checks the block structure of every defined function in p.
// It returns an error describing all violations found, or nil if valid.
func Verify(p *Program) error {
	var errs []error
	for _, f := range p.Funcs {
		errs = append(errs, VerifyFunc(f)...)
	}
	return errors.Join(errs...)
}

// VerifyFunc returns the violations found in f.
func VerifyFunc(f *Func) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("func %s: "+format, append([]any{f.Name}, args...)...))
	}

	if len(f.Blocks) == 0 {
		add("no blocks")
		return errs
	}

	blocks := make(map[string]*BasicBlock, len(f.Blocks))
	for _, b := range f.Blocks {
		if _, dup := blocks[b.Label.Name]; dup {
			add("duplicate block label %s", b.Label)
		}
		blocks[b.Label.Name] = b
	}

	for _, b := range f.Blocks {
		// 1. Exactly one terminator, at the end
		if b.Terminator() == nil {
			add("%s: block does not end in a terminator", b.Label)
		}
		for i, instr := range b.Instructions[:max(len(b.Instructions)-1, 0)] {
			if instr.Op.IsTerminator() {
				add("%s: terminator %s at position %d is not last", b.Label, instr.Op, i)
			}
		}

		// 2. Operands are non-nil
		for _, instr := range b.Instructions {
			for i, arg := range instr.Args {
				if arg == nil {
					add("%s: %s arg[%d] is nil", b.Label, instr.Op, i)
				}
			}
		}

		// 3. Branch targets exist
		for _, succ := range b.Successors() {
			if _, ok := blocks[succ.Name]; !ok {
				add("%s: branch to unknown block %s", b.Label, succ)
			}
		}
	}

	// 4. Every block is reachable from the entry block
	seen := map[string]bool{f.Blocks[0].Label.Name: true}
	work := []*BasicBlock{f.Blocks[0]}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, succ := range b.Successors() {
			if next, ok := blocks[succ.Name]; ok && !seen[succ.Name] {
				seen[succ.Name] = true
				work = append(work, next)
			}
		}
	}
	for _, b := range f.Blocks {
		if !seen[b.Label.Name] {
			add("%s: block is unreachable from %s", b.Label, f.Blocks[0].Label)
		}
	}
	return errs
}
