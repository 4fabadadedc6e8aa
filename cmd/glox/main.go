// Command glox is the thin REPL/file driver spec §6 describes: it owns
// no interpreter logic of its own, only the teacher's line-at-a-time
// REPL loop (cmd/smog/main.go's runREPL) adapted to call pkg/vm.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mattn/go-colorable"

	"github.com/kristofer/glox/internal/config"
	"github.com/kristofer/glox/internal/diag"
	"github.com/kristofer/glox/pkg/gc"
	"github.com/kristofer/glox/pkg/vm"
)

// Exit codes per spec §6's InterpretResult mapping.
const (
	exitOK          = 0
	exitDataErr     = 65 // COMPILE_ERROR
	exitSoftwareErr = 70 // RUNTIME_ERROR
)

func main() {
	dbg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitSoftwareErr)
	}

	switch len(os.Args) {
	case 1:
		runREPL(dbg)
	case 2:
		os.Exit(runFile(dbg, os.Args[1]))
	default:
		fmt.Fprintln(os.Stderr, "Usage: glox [path]")
		os.Exit(exitSoftwareErr)
	}
}

func newVM(dbg config.Debug) *vm.VM {
	stderr := diag.NewReporter(colorable.NewColorableStderr())
	heap := gc.New(dbg.StressGC, dbg.LogGC, stderr)
	cfg := vm.Config{
		PrintCode:      dbg.PrintCode,
		TraceExecution: dbg.TraceExecution,
		StressGC:       dbg.StressGC,
		LogGC:          dbg.LogGC,
	}
	return vm.New(heap, cfg, os.Stdin, os.Stdout, stderr)
}

// runFile reads and interprets one source file, mapping the result to
// spec §6's fixed exit codes (the only place this module calls
// os.Exit).
func runFile(dbg config.Debug, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSoftwareErr
	}

	v := newVM(dbg)
	switch v.Interpret(string(source)) {
	case vm.InterpretCompileError:
		return exitDataErr
	case vm.InterpretRuntimeError:
		return exitSoftwareErr
	default:
		return exitOK
	}
}

// runREPL mirrors the teacher's cmd/smog runREPL loop: one line read,
// one Interpret call, state carried by the single persistent VM across
// iterations. Unlike smog's multi-line statement buffering, each line
// here is compiled and run independently (spec §6 gives the REPL no
// special incremental-compile semantics, only the narrow interpret
// entry point).
func runREPL(dbg config.Debug) {
	v := newVM(dbg)
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("glox")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		v.Interpret(line)
	}
}
