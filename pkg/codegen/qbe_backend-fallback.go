//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
)

// Generate runs the system's qbe, as libqbe does not build on Windows.
func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("qbe not found in PATH: %w", err)
	}

	qbeIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "mxrc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	if _, err := inputFile.WriteString(qbeIR); err != nil {
		inputFile.Close()
		return nil, err
	}
	inputFile.Close()

	var asmBuf, stderr bytes.Buffer
	cmd := exec.Command("qbe", "-t", cfg.BackendTarget, inputFile.Name())
	cmd.Stdout, cmd.Stderr = &asmBuf, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nqbe error: %w\n%s", qbeIR, err, stderr.String())
	}
	return &asmBuf, nil
}
