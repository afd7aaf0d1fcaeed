// Package token describes source positions attached to AST nodes and diagnostics.
package token

import (
	"fmt"
	"strconv"
	"strings"
)

// Pos is a position in a source file. The zero value means "no position".
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	file := p.File
	if file == "" {
		file = "unknown"
	}
	if !p.IsValid() {
		return file
	}
	return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Column)
}

// ParsePos parses "file:line:col", "file:line" or "line:col" forms.
func ParsePos(s string) (Pos, error) {
	if s == "" {
		return Pos{}, nil
	}
	parts := strings.Split(s, ":")
	var nums []int
	for len(parts) > 0 && len(nums) < 2 {
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	if len(nums) == 0 {
		return Pos{}, fmt.Errorf("invalid position %q", s)
	}
	pos := Pos{File: strings.Join(parts, ":"), Line: nums[0]}
	if len(nums) == 2 {
		pos.Column = nums[1]
	}
	return pos, nil
}
