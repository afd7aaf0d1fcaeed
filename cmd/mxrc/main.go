package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mxrlang/mxrc/pkg/ast"
	"github.com/mxrlang/mxrc/pkg/cli"
	"github.com/mxrlang/mxrc/pkg/codegen"
	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/ir"
	"github.com/mxrlang/mxrc/pkg/token"
	"github.com/mxrlang/mxrc/pkg/util"
)

const appName = "mxrc"

func main() {
	app := cli.NewApp(appName)
	app.Synopsis = "[options] <input.json> ..."
	app.Description = "Lowers the typed AST of a small imperative language into QBE or LLVM IR and builds an executable from it. Input modules are read as JSON as produced by the front end."
	app.Authors = []string{"the mxrc authors"}
	app.Since = 2025

	var (
		outFile     string
		target      string
		emit        string
		linkerArgs  []string
		fingerprint bool
		verbose     bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>. Defaults to a.out for executables and stdout otherwise.", "file")
	fs.String(&target, "target", "t", "qbe", "Set the backend and target ABI.", "backend/target")
	fs.String(&emit, "emit", "", "exe", "Stop after producing ir, ssa (QBE), ll (LLVM), asm or exe.", "kind")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.Bool(&fingerprint, "fingerprint", "", false, "Print a hash of each module's IR and exit.")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation step.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Error(token.Pos{}, "%v", err)
		}
		cfg.LinkerArgs = append(cfg.LinkerArgs, linkerArgs...)

		if len(inputFiles) == 0 {
			util.Error(token.Pos{}, "no input files specified.")
		}
		switch emit {
		case "ir", "asm", "exe":
		case "ssa", "ll":
			if want := map[string]string{"ssa": "qbe", "ll": "llvm"}[emit]; cfg.BackendName != want {
				util.Error(token.Pos{}, "--emit=%s needs the '%s' backend, have '%s'", emit, want, cfg.BackendName)
			}
		default:
			util.Error(token.Pos{}, "unknown --emit kind '%s'. Supported: ir, ssa, ll, asm, exe", emit)
		}

		backend, err := codegen.SelectBackend(cfg)
		if err != nil {
			util.Error(token.Pos{}, "%v", err)
		}

		var outputs []string
		for _, path := range inputFiles {
			if verbose {
				util.Info(appName, "lowering '%s'", path)
			}
			prog := lowerFile(path, cfg)

			switch {
			case fingerprint:
				fmt.Printf("%016x  %s\n", ir.Fingerprint(prog), path)
				continue
			case emit == "ir":
				outputs = append(outputs, prog.String())
				continue
			case emit == "ssa" || emit == "ll":
				text, err := backend.GenerateIR(prog, cfg)
				if err != nil {
					util.Error(token.Pos{File: path}, "backend IR generation failed: %v", err)
				}
				outputs = append(outputs, text)
				continue
			}

			if verbose {
				util.Info(appName, "generating code for '%s' with the '%s' backend", path, cfg.BackendName)
			}
			asm, err := backend.Generate(prog, cfg)
			if err != nil {
				util.Error(token.Pos{File: path}, "backend code generation failed: %v", err)
			}
			outputs = append(outputs, asm.String())
		}
		if fingerprint {
			return nil
		}

		if emit != "exe" {
			return writeOutput(outFile, strings.Join(outputs, "\n"))
		}
		if outFile == "" {
			outFile = "a.out"
		}
		if verbose {
			util.Info(appName, "linking '%s'", outFile)
		}
		if err := assembleAndLink(outFile, outputs, cfg.LinkerArgs); err != nil {
			util.Error(token.Pos{}, "assembler/linker failed: %v", err)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func lowerFile(path string, cfg *config.Config) *ir.Program {
	f, err := os.Open(path)
	if err != nil {
		util.Error(token.Pos{}, "could not read file '%s': %v", path, err)
	}
	defer f.Close()

	mod, err := ast.Decode(f, path)
	if err != nil {
		util.Error(token.Pos{File: path}, "%v", err)
	}
	prog, err := codegen.NewContext(cfg).GenerateIR(mod)
	if err != nil {
		util.Error(token.Pos{File: path}, "%v", err)
	}
	return prog
}

func writeOutput(outFile, text string) error {
	var w io.Writer = os.Stdout
	if outFile != "" && outFile != "-" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err := io.WriteString(w, text)
	return err
}

func assembleAndLink(outFile string, asmTexts []string, linkerArgs []string) error {
	ccArgs := []string{"-no-pie", "-o", outFile}
	for _, text := range asmTexts {
		asmFile, err := os.CreateTemp("", "mxrc-*.s")
		if err != nil {
			return fmt.Errorf("failed to create temp file for asm: %w", err)
		}
		defer os.Remove(asmFile.Name())
		if _, err := asmFile.WriteString(text); err != nil {
			asmFile.Close()
			return fmt.Errorf("failed to write to temp file for asm: %w", err)
		}
		asmFile.Close()
		ccArgs = append(ccArgs, asmFile.Name())
	}
	ccArgs = append(ccArgs, linkerArgs...)

	cmd := exec.Command("cc", ccArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cc command failed: %w\nOutput:\n%s", err, string(output))
	}
	return nil
}
