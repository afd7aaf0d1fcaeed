// Command mxrtest compiles every test module with mxrc, runs the resulting
// programs on a fixed set of inputs and compares what they print with the
// golden results recorded next to each module.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exitCode"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

type TestRun struct {
	Name   string    `json:"name"`
	Input  string    `json:"input,omitempty"`
	Result Execution `json:"result"`
}

// Golden is the recorded behavior of one module.
type Golden struct {
	Fingerprint string    `json:"fingerprint"`
	Runs        []TestRun `json:"runs"`
}

type FileTestResult struct {
	File    string
	Status  string // PASS, FAIL, SKIP, ERROR
	Message string
	Diff    string
}

var (
	compiler       = flag.String("compiler", "./mxrc", "Path to the compiler under test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	testFiles      = flag.String("test-files", "testdata/*.json", "Glob pattern(s) for modules to test (space-separated).")
	generateGolden = flag.Bool("generate-golden", false, "Record golden results instead of comparing against them.")
	strictIR       = flag.Bool("strict-ir", false, "Fail when a module's IR fingerprint changed.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
)

// Every program runs once per input; programs that never scan ignore it.
var testInputs = []struct{ name, input string }{
	{"no_input", ""},
	{"numeric_pos", "5\n"},
	{"numeric_neg", "-5\n"},
	{"numeric_0", "0\n"},
}

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "mxrtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)

	var files []string
	for _, pattern := range strings.Fields(*testFiles) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.Fatalf("%s[ERROR]%s Invalid glob pattern %q: %v\n", cRed, cNone, pattern, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	tasks := make(chan string)
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, tempDir)
			}
		}()
	}

	// Identical modules are tested once.
	seen := make(map[uint64]string)
	for _, file := range files {
		h, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
			continue
		}
		if orig, ok := seen[h]; ok {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "content is identical to " + orig}
			continue
		}
		seen[h] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*FileTestResult
	for r := range resultsChan {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	if printSummary(os.Stdout, results) {
		os.Exit(1)
	}
}

func goldenPath(file string) string {
	return filepath.Join(filepath.Dir(file), "."+filepath.Base(file)+".golden")
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func testFile(file, tempDir string) *FileTestResult {
	got, err := compileAndRun(file, tempDir)
	if err != nil {
		return &FileTestResult{File: file, Status: "FAIL", Message: err.Error()}
	}

	if *generateGolden {
		data, err := json.MarshalIndent(got, "", "  ")
		if err == nil {
			err = os.WriteFile(goldenPath(file), data, 0o644)
		}
		if err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "golden file written"}
	}

	data, err := os.ReadFile(goldenPath(file))
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "no golden file"}
	} else if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	var want Golden
	if err := json.Unmarshal(data, &want); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("could not parse golden file: %v", err)}
	}

	if diff := cmp.Diff(want.Runs, got.Runs); diff != "" {
		return &FileTestResult{File: file, Status: "FAIL", Message: "runtime output mismatch", Diff: diff}
	}
	if want.Fingerprint != got.Fingerprint {
		if *strictIR {
			return &FileTestResult{File: file, Status: "FAIL", Message: fmt.Sprintf("IR fingerprint %s, want %s", got.Fingerprint, want.Fingerprint)}
		}
		return &FileTestResult{File: file, Status: "PASS", Message: "IR changed, output identical"}
	}
	return &FileTestResult{File: file, Status: "PASS"}
}

func executeCommand(ctx context.Context, stdinData, command string, args ...string) Execution {
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	cmd.Stdin = strings.NewReader(stdinData)

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut, res.ExitCode = true, -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		res.Stderr += "\nexecution error: " + err.Error()
	}
	return res
}

func compileAndRun(file, tempDir string) (*Golden, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := strings.Fields(*compilerArgs)
	fp := executeCommand(ctx, "", *compiler, append(append([]string{"--fingerprint"}, args...), file)...)
	if fp.ExitCode != 0 {
		return nil, fmt.Errorf("fingerprint failed: %s", fp.Stderr)
	}
	fingerprint, _, _ := strings.Cut(fp.Stdout, " ")

	binaryPath := filepath.Join(tempDir, fingerprint)
	compile := executeCommand(ctx, "", *compiler, append(append([]string{"-o", binaryPath}, args...), file)...)
	if compile.ExitCode != 0 || compile.TimedOut {
		return nil, fmt.Errorf("compilation failed with exit code %d:\n%s", compile.ExitCode, compile.Stderr)
	}

	golden := &Golden{Fingerprint: fingerprint}
	for _, tc := range testInputs {
		runCtx, runCancel := context.WithTimeout(context.Background(), *timeout)
		res := executeCommand(runCtx, tc.input, binaryPath)
		runCancel()
		golden.Runs = append(golden.Runs, TestRun{Name: tc.name, Input: tc.input, Result: res})
	}
	return golden, nil
}

// printSummary reports every result and whether any of them failed.
func printSummary(w io.Writer, results []*FileTestResult) (failed bool) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		color := cGreen
		switch r.Status {
		case "FAIL", "ERROR":
			color, failed = cRed, true
		case "SKIP":
			color = cYellow
		}
		fmt.Fprintf(w, "%s[%s]%s %s", color, r.Status, cNone, r.File)
		if r.Message != "" {
			fmt.Fprintf(w, ": %s", r.Message)
		}
		fmt.Fprintln(w)
		if r.Diff != "" {
			fmt.Fprintln(w, r.Diff)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d errors, %d skipped\n", counts["PASS"], counts["FAIL"], counts["ERROR"], counts["SKIP"])
	return failed
}
