// Package gc implements the tri-color mark-sweep collector from spec
// §4.5, plus the heap allocator and intern table that feed it (spec §3,
// §4.6). It owns the single intrusive linked list every heap object is
// threaded onto, which is what lets Sweep walk "the heap" without the
// rest of the module keeping a second index of live objects.
package gc

import (
	"fmt"
	"io"

	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/table"
	"github.com/kristofer/glox/pkg/value"
)

// GrowFactor is the threshold multiplier applied after each collection
// (spec §4.5: next_gc_threshold := bytes_allocated * GROW_FACTOR).
const GrowFactor = 2

// objBytes is a rough, constant per-object accounting charge. The exact
// figure doesn't matter for correctness (only the growth curve does);
// spec §4.5 doesn't mandate a precise byte count, only a threshold that
// grows with live data.
const objBytes = 64

// RootSource is implemented by whatever owns the collector's external
// roots (package vm's VM, plus the compiler chain while compiling). It's
// asked to push every Value/Obj it directly holds onto the collector
// during MarkRoots; the collector then transitively blackens everything
// reachable from those.
type RootSource interface {
	MarkRoots(c *Collector)
}

// Collector owns the heap's object list, the intern table, and the
// allocation-triggered mark-sweep cycle.
type Collector struct {
	objects         object.Obj // head of the intrusive object list
	strings         *table.Table[*object.String]
	bytesAllocated  uint64
	nextGC          uint64
	grey            []object.Obj
	stressGC        bool
	logGC           bool
	logWriter       io.Writer
	initString      *object.String
	roots           RootSource
}

// New creates an empty heap. stressGC forces a collection on every
// allocation (DEBUG_STRESS_GC); logGC traces collector events
// (DEBUG_LOG_GC) to logWriter.
func New(stressGC, logGC bool, logWriter io.Writer) *Collector {
	c := &Collector{
		strings:   table.New[*object.String](func(s *object.String) uint32 { return s.Hash }),
		nextGC:    1024 * 1024,
		stressGC:  stressGC,
		logGC:     logGC,
		logWriter: logWriter,
	}
	c.initString = c.InternString("init")
	return c
}

// SetRootSource registers the VM (and, while compiling, the compiler
// chain) as the collector's root provider. vm.New calls it once during
// VM initialization, per spec §5's init order; compiler.Compile installs
// itself for the duration of a compile and then restores the prior one.
func (c *Collector) SetRootSource(r RootSource) { c.roots = r }

// RootSourceOrNil returns the collector's current root provider (nil if
// none is set), so a caller can install its own and restore the prior
// one afterward — e.g. the compiler, which roots in-progress functions
// only for the duration of a single Compile call.
func (c *Collector) RootSourceOrNil() RootSource { return c.roots }

// InitString returns the cached "init" string constant that is itself a
// GC root (spec §4.5).
func (c *Collector) InitString() *object.String { return c.initString }

func (c *Collector) track(o object.Obj, size uint64) {
	object.SetNext(o, c.objects)
	c.objects = o
	c.bytesAllocated += size
	if c.logGC {
		fmt.Fprintf(c.logWriter, "alloc %p type=%s size=%d\n", o, o.Type(), size)
	}
}

// maybeCollect runs a cycle if stress mode is on or the byte threshold
// has been crossed — the two triggers spec §4.5 names.
func (c *Collector) maybeCollect() {
	if c.stressGC || c.bytesAllocated > c.nextGC {
		c.Collect()
	}
}

// InternString returns the canonical *object.String for chars, allocating
// a new one only if no interned string with identical bytes exists yet —
// the interning invariant from spec §3.
func (c *Collector) InternString(chars string) *object.String {
	hash := object.HashString(chars)
	if existing, ok := table.FindStringKey(c.strings, hash, chars,
		func(s *object.String) uint32 { return s.Hash },
		func(s *object.String) string { return s.Chars }); ok {
		return existing
	}
	s := object.NewString(chars)
	c.strings.Set(s, value.Bool(true))
	c.track(s, uint64(len(chars))+objBytes)
	c.maybeCollect()
	return s
}

// NewFunction allocates a fresh, empty Function. The compiler fills in
// its fields before it's ever reachable from a root, so no GC-safety
// dance is needed around construction itself (spec §4.5's allocator
// contract concerns values built from other *already allocated* heap
// values, e.g. string concatenation — see NewInstance/NewClosure below).
func (c *Collector) NewFunction() *object.Function {
	f := &object.Function{}
	c.track(f, objBytes)
	c.maybeCollect()
	return f
}

// NewClosure allocates a Closure over fn with the given captured
// upvalues.
func (c *Collector) NewClosure(fn *object.Function, upvalues []*object.Upvalue) *object.Closure {
	cl := &object.Closure{Function: fn, Upvalues: upvalues}
	c.track(cl, objBytes+uint64(len(upvalues))*8)
	c.maybeCollect()
	return cl
}

// NewUpvalue allocates an open upvalue pointing at slot (an address
// inside the VM's value stack).
func (c *Collector) NewUpvalue(slot int, location *value.Value) *object.Upvalue {
	u := &object.Upvalue{Slot: slot, Location: location}
	c.track(u, objBytes)
	c.maybeCollect()
	return u
}

// NewNative wraps fn as a heap-allocated native callable.
func (c *Collector) NewNative(name string, fn object.NativeFn) *object.Native {
	n := &object.Native{Name: name, Fn: fn}
	c.track(n, objBytes)
	c.maybeCollect()
	return n
}

// NewClass allocates an (initially empty) class named name.
func (c *Collector) NewClass(name *object.String) *object.Class {
	cl := object.NewClass(name)
	c.track(cl, objBytes)
	c.maybeCollect()
	return cl
}

// NewInstance allocates an instance of class.
func (c *Collector) NewInstance(class *object.Class) *object.Instance {
	inst := object.NewInstance(class)
	c.track(inst, objBytes)
	c.maybeCollect()
	return inst
}

// NewBoundMethod allocates a bound-method pairing receiver with method.
func (c *Collector) NewBoundMethod(receiver value.Value, method *object.Closure) *object.BoundMethod {
	b := &object.BoundMethod{Receiver: receiver, Method: method}
	c.track(b, objBytes)
	c.maybeCollect()
	return b
}

// NewArray allocates an array object wrapping elements.
func (c *Collector) NewArray(elements []value.Value) *object.Array {
	a := object.NewArray(elements)
	c.track(a, objBytes+uint64(len(elements))*16)
	c.maybeCollect()
	return a
}

// Concat allocates the interned string a+b. Per the allocator contract in
// spec §4.5, callers must have a and b's Values on the VM stack (or
// otherwise rooted) before calling this, since InternString may itself
// trigger a collection.
func (c *Collector) Concat(a, b string) *object.String {
	return c.InternString(a + b)
}
