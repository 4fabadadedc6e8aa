// Package vm implements the stack-based bytecode interpreter from spec
// §4.4: a tight dispatch loop over a fixed-capacity value stack and
// frame stack, closure/upvalue handling, class/instance dispatch, and
// the diagnostics format spec §6/§7 require. It is also the collector's
// RootSource once interpretation begins (package gc marks through
// MarkRoots below).
package vm

import (
	"fmt"
	"io"
	"time"

	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/gc"
	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/table"
	"github.com/kristofer/glox/pkg/value"
)

// FramesMax bounds call depth; exceeding it is a runtime "stack
// overflow" error (spec §7).
const FramesMax = 64

// StackMax is the value stack's fixed capacity (spec §4.4: "≥ 64×256
// slots").
const StackMax = FramesMax * 256

// InterpretResult is interpret()'s tri-state outcome (spec §6).
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// CallFrame is one activation record: the closure being executed, its
// instruction pointer, and the value-stack offset its locals begin at
// (spec §4.4).
type CallFrame struct {
	closure   *object.Closure
	ip        int
	slotsBase int
}

// Config carries the compile-time debug toggles from spec §6 that this
// implementation surfaces as runtime-configurable flags (internal/config
// loads them from the environment).
type Config struct {
	PrintCode      bool
	TraceExecution bool
	StressGC       bool
	LogGC          bool
}

// VM is the process-wide interpreter state: value stack, frame stack,
// globals, open-upvalue list, and the heap it allocates through (spec
// §5: "a single process-wide VM instance holding the heap, stacks,
// globals, and intern table").
type VM struct {
	stack      [StackMax]value.Value
	stackTop   int
	frames     [FramesMax]CallFrame
	frameCount int

	globals      *table.Table[*object.String]
	openUpvalues *object.Upvalue // head, sorted by descending Slot

	heap   *gc.Collector
	cfg    Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	initString *object.String
}

// New creates a VM backed by heap. stdin feeds the `input` native;
// stdout/stderr receive `print` output and diagnostics respectively.
func New(heap *gc.Collector, cfg Config, stdin io.Reader, stdout, stderr io.Writer) *VM {
	vm := &VM{
		globals:    table.New[*object.String](func(s *object.String) uint32 { return s.Hash }),
		heap:       heap,
		cfg:        cfg,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		initString: heap.InitString(),
	}
	heap.SetRootSource(vm)
	vm.defineNatives()
	return vm
}

// Interpret compiles source and, on success, runs it to completion
// (spec §6's `interpret` entry point).
func (vm *VM) Interpret(source string) InterpretResult {
	fn, errs, ok := compiler.Compile(source, vm.heap)
	if !ok {
		for _, e := range errs {
			fmt.Fprintln(vm.stderr, e)
		}
		return InterpretCompileError
	}
	if vm.cfg.PrintCode {
		if ch, ok := fn.Chunk.(*chunk.Chunk); ok {
			name := "<script>"
			if fn.Name != nil {
				name = fn.Name.Chars
			}
			fmt.Fprintln(vm.stderr, chunk.Disassemble(ch, name))
		}
	}

	closure := vm.heap.NewClosure(fn, nil)
	vm.push(value.FromObj(closure))
	if err := vm.callValue(value.FromObj(closure), 0); err != nil {
		fmt.Fprintln(vm.stderr, err.Error())
		vm.resetStack()
		return InterpretRuntimeError
	}

	if err := vm.run(); err != nil {
		fmt.Fprintln(vm.stderr, err.Error())
		vm.resetStack()
		return InterpretRuntimeError
	}
	return InterpretOK
}

// DefineNative registers a native function as a global, keeping its
// name and native object rooted on the stack across both allocations
// per the allocator contract in spec §4.5.
func (vm *VM) DefineNative(name string, fn object.NativeFn) {
	nameObj := vm.heap.InternString(name)
	vm.push(value.FromObj(nameObj))
	native := vm.heap.NewNative(name, fn)
	vm.push(value.FromObj(native))
	vm.globals.Set(nameObj, vm.stack[vm.stackTop-1])
	vm.pop()
	vm.pop()
}

func (vm *VM) defineNatives() {
	vm.DefineNative("clock", nativeClock)
	vm.DefineNative("input", nativeInput(vm))
}

func nativeClock(args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / float64(time.Second)), nil
}

// ---- stack primitives -----------------------------------------------------

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// MarkRoots implements gc.RootSource (spec §4.5's root list): the value
// stack, every active frame's closure, the open-upvalue list, and the
// globals table.
func (vm *VM) MarkRoots(c *gc.Collector) {
	for i := 0; i < vm.stackTop; i++ {
		c.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		c.MarkObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		c.MarkObject(uv)
	}
	vm.globals.Each(func(k *object.String, v value.Value) {
		c.MarkObject(k)
		c.MarkValue(v)
	})
	if vm.initString != nil {
		c.MarkObject(vm.initString)
	}
}
