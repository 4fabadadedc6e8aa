// Package object defines the heap object variants described in spec §3:
// String, Function, Closure, Upvalue, Native, Class, Instance, BoundMethod,
// and Array. Every variant embeds Header, which is what lets package gc
// walk the heap as a single intrusive linked list and mark/sweep it
// without knowing each variant's shape in advance.
package object

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/kristofer/glox/pkg/value"
)

// Type tags a heap object's concrete variant. It exists separately from a
// Go type switch so the GC and disassembler can log/compare cheaply.
type Type uint8

const (
	TypeString Type = iota
	TypeFunction
	TypeClosure
	TypeUpvalue
	TypeNative
	TypeClass
	TypeInstance
	TypeBoundMethod
	TypeArray
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeFunction:
		return "function"
	case TypeClosure:
		return "closure"
	case TypeUpvalue:
		return "upvalue"
	case TypeNative:
		return "native"
	case TypeClass:
		return "class"
	case TypeInstance:
		return "instance"
	case TypeBoundMethod:
		return "bound method"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Obj is satisfied by every heap object variant's pointer type. It's the
// interface package gc marks, sweeps, and threads through the intrusive
// object list — the single indirection Design Notes §9 calls for.
type Obj interface {
	// Type reports this object's variant tag.
	Type() Type
	// header returns the embedded bookkeeping block package gc mutates.
	// Unexported deliberately: only this package's types may be heap
	// objects, and only package gc (via the exported accessors below)
	// needs to reach into it.
	header() *Header
	// String renders the object the way the `print` statement would.
	String() string
}

// Header is the bookkeeping every heap object carries: its mark bit and
// its link to the next object allocated, forming the GC's object list.
type Header struct {
	marked bool
	next   Obj
}

func (h *Header) header() *Header { return h }

// Marked reports whether the GC's current mark phase has reached this
// object.
func Marked(o Obj) bool { return o.header().marked }

// SetMarked flips an object's mark bit. Used by the collector during mark
// (set true) and after sweep (reset to false).
func SetMarked(o Obj, m bool) { o.header().marked = m }

// Next returns the next object in the heap's allocation-order list.
func Next(o Obj) Obj { return o.header().next }

// SetNext links o to the next object in the heap's allocation-order list.
// Called by the allocator that creates o, and by the collector's sweep
// when it unlinks the object that followed o.
func SetNext(o Obj, next Obj) { o.header().next = next }

// ---- String -----------------------------------------------------------

// String is an immutable, interned byte sequence with a cached FNV-1a
// hash. Two String objects with identical bytes never both exist: the
// heap's intern table (package gc) guarantees it.
type String struct {
	Header
	Chars string
	Hash  uint32
}

func (s *String) Type() Type     { return TypeString }
func (s *String) String() string { return s.Chars }

// HashString computes the FNV-1a hash used for interning and table
// lookups. hash/fnv is the standard library's implementation of exactly
// the algorithm spec §3 names ("cached 32-bit FNV-1a hash") — there is no
// third-party replacement that would be anything but a rewrite of the
// same thirteen lines, so this is the one place the module reaches for
// stdlib over an example-pack dependency.
func HashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// NewString constructs a String object. It does not intern — callers
// (package gc's Collector.InternString) are responsible for checking the
// intern table first so that the interning invariant in spec §3 holds.
func NewString(chars string) *String {
	return &String{Chars: chars, Hash: HashString(chars)}
}

// ---- Function -----------------------------------------------------------

// Function is a compiled unit: arity, upvalue count, an optional name
// (nil for the implicit top-level script), and its Chunk. It is
// immutable once the compiler finishes with it. Chunk is an interface{}
// here (rather than *chunk.Chunk) to avoid object<->chunk import cycle;
// package vm and package chunk both know the concrete type.
type Function struct {
	Header
	Arity        int
	UpvalueCount int
	Name         *String // nil => top-level script
	Chunk        any
}

func (f *Function) Type() Type { return TypeFunction }
func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// ---- Upvalue ------------------------------------------------------------

// Upvalue is either open (Location points at a live VM stack slot) or
// closed (Location points at Closed, which owns the value). Slot records
// the absolute stack index for open upvalues so the VM's sorted
// open-upvalue list can order by descending address without needing the
// pointee back.
type Upvalue struct {
	Header
	Location *value.Value // points into the VM stack while open, &Closed once closed
	Closed   value.Value
	Slot     int  // absolute stack slot while open; meaningless once closed
	NextOpen *Upvalue
}

func (u *Upvalue) Type() Type     { return TypeUpvalue }
func (u *Upvalue) String() string { return "upvalue" }

// IsOpen reports whether this upvalue still points into the stack.
func (u *Upvalue) IsOpen() bool { return u.Location != &u.Closed }

// Close relocates the upvalue's value from the stack into itself.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
	u.NextOpen = nil
}

// ---- Closure ------------------------------------------------------------

// Closure pairs a Function with the upvalues it captured at creation
// time. Function.UpvalueCount == len(Upvalues) always.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) Type() Type     { return TypeClosure }
func (c *Closure) String() string { return c.Function.String() }

// ---- Native -------------------------------------------------------------

// NativeFn is a built-in callable: argc, argv in, a Value (or error) out.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a Go function so it can live on the VM stack and be called
// with the same CALL opcode as any closure.
type Native struct {
	Header
	Name string
	Fn   NativeFn
}

func (n *Native) Type() Type     { return TypeNative }
func (n *Native) String() string { return "<native fn>" }

// ---- Class / Instance / BoundMethod -------------------------------------

// Class is a named method table plus a cached initializer closure (nil
// if the class declares no `init`). Methods maps interned method-name
// Strings to their Closure — using *String keys (not plain Go strings)
// keeps lookup keyed by the same interned identity the compiler emits,
// matching spec §3's "method table (string→closure)".
type Class struct {
	Header
	Name    *String
	Methods map[*String]*Closure
	Init    *Closure
}

func NewClass(name *String) *Class {
	return &Class{Name: name, Methods: make(map[*String]*Closure)}
}

func (c *Class) Type() Type     { return TypeClass }
func (c *Class) String() string { return c.Name.Chars }

// Instance is a Class plus a per-instance field table.
type Instance struct {
	Header
	Class  *Class
	Fields map[*String]value.Value
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[*String]value.Value)}
}

func (i *Instance) Type() Type     { return TypeInstance }
func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.Class.Name.Chars) }

// BoundMethod pairs a receiver value with the method Closure looked up on
// it; produced by GET_PROPERTY on a method name.
type BoundMethod struct {
	Header
	Receiver value.Value
	Method   *Closure
}

func (b *BoundMethod) Type() Type     { return TypeBoundMethod }
func (b *BoundMethod) String() string { return b.Method.String() }

// ---- Array (optional, spec §4.3) ----------------------------------------

// Array is the optional heap-allocated indexable sequence backing the
// ARRAY/GET_INDEX/SET_INDEX opcodes.
type Array struct {
	Header
	Elements []value.Value
}

func NewArray(elements []value.Value) *Array { return &Array{Elements: elements} }

func (a *Array) Type() Type { return TypeArray }
func (a *Array) String() string {
	s := "["
	for i, e := range a.Elements {
		if i > 0 {
			s += ", "
		}
		s += ToDisplayString(e)
	}
	return s + "]"
}

// ToDisplayString renders any Value per spec §6 "Output" textual forms.
// It lives here (not in package value) because it must special-case heap
// object variants, which package value cannot see without an import
// cycle.
func ToDisplayString(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObj():
		if o, ok := v.AsObj().(Obj); ok {
			return o.String()
		}
		return fmt.Sprintf("%v", v.AsObj())
	default:
		return "nil"
	}
}

// formatNumber renders the shortest round-trip decimal representation,
// matching spec §6 ("shortest round-trip double, ~15 significant digits").
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}
