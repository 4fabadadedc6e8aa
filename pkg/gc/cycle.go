package gc

import (
	"fmt"

	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/value"
)

// Collect runs one full mark-sweep cycle: mark roots, blacken the grey
// worklist, remove white strings from the intern table, then sweep the
// object list. After it returns, nextGC has grown per GrowFactor (spec
// §4.5).
func (c *Collector) Collect() {
	if c.logGC {
		fmt.Fprintln(c.logWriter, "-- gc begin")
	}
	before := c.bytesAllocated

	if c.roots != nil {
		c.roots.MarkRoots(c)
	}
	if c.initString != nil {
		c.MarkObject(c.initString)
	}
	c.blackenAll()
	c.removeWhiteStrings()
	c.sweep()

	c.nextGC = c.bytesAllocated * GrowFactor
	if c.nextGC == 0 {
		c.nextGC = 1024 * 1024
	}
	if c.logGC {
		fmt.Fprintf(c.logWriter, "-- gc end: %d -> %d bytes, next at %d\n", before, c.bytesAllocated, c.nextGC)
	}
}

// MarkValue greys v if it holds a heap object; numbers/bools/nil have no
// outgoing edges and are ignored.
func (c *Collector) MarkValue(v value.Value) {
	if v.IsObj() {
		if o, ok := v.AsObj().(object.Obj); ok {
			c.MarkObject(o)
		}
	}
}

// MarkObject greys a white object: sets its mark bit and pushes it onto
// the grey worklist for later blackening. Marking an already-marked
// object is a no-op, which is what makes cyclic graphs terminate.
func (c *Collector) MarkObject(o object.Obj) {
	if o == nil || object.Marked(o) {
		return
	}
	object.SetMarked(o, true)
	c.grey = append(c.grey, o)
	if c.logGC {
		fmt.Fprintf(c.logWriter, "mark %p %s\n", o, o.Type())
	}
}

// blackenAll drains the grey worklist, marking every object each grey
// object references until none remain — this is the "trace" half of
// tri-color mark-sweep.
func (c *Collector) blackenAll() {
	for len(c.grey) > 0 {
		o := c.grey[len(c.grey)-1]
		c.grey = c.grey[:len(c.grey)-1]
		c.blacken(o)
	}
}

// blacken marks everything a single grey object references, per the
// per-variant edge list in spec §4.5.
func (c *Collector) blacken(o object.Obj) {
	switch obj := o.(type) {
	case *object.String, *object.Native:
		// no outgoing edges

	case *object.Function:
		if obj.Name != nil {
			c.MarkObject(obj.Name)
		}
		if ch, ok := obj.Chunk.(interface{ GCConstants() []value.Value }); ok {
			for _, k := range ch.GCConstants() {
				c.MarkValue(k)
			}
		}

	case *object.Closure:
		c.MarkObject(obj.Function)
		for _, uv := range obj.Upvalues {
			c.MarkObject(uv)
		}

	case *object.Upvalue:
		if !obj.IsOpen() {
			c.MarkValue(obj.Closed)
		}

	case *object.Class:
		c.MarkObject(obj.Name)
		for name, method := range obj.Methods {
			c.MarkObject(name)
			c.MarkObject(method)
		}
		if obj.Init != nil {
			c.MarkObject(obj.Init)
		}

	case *object.Instance:
		c.MarkObject(obj.Class)
		for name, v := range obj.Fields {
			c.MarkObject(name)
			c.MarkValue(v)
		}

	case *object.BoundMethod:
		c.MarkValue(obj.Receiver)
		c.MarkObject(obj.Method)

	case *object.Array:
		for _, v := range obj.Elements {
			c.MarkValue(v)
		}
	}
}

// removeWhiteStrings walks the intern table and drops any string that
// didn't get marked this cycle, before sweep frees it — otherwise the
// intern table would keep a dangling entry (spec §3, §4.5).
func (c *Collector) removeWhiteStrings() {
	var dead []*object.String
	c.strings.Each(func(s *object.String, _ value.Value) {
		if !object.Marked(s) {
			dead = append(dead, s)
		}
	})
	for _, s := range dead {
		c.strings.Delete(s)
	}
}

// sweep walks the heap's object list; anything unmarked is unlinked (and
// thus, once nothing else in the module references it, reclaimed by the
// host runtime); anything marked has its mark bit cleared for the next
// cycle.
func (c *Collector) sweep() {
	var prev object.Obj
	cur := c.objects
	for cur != nil {
		next := object.Next(cur)
		if object.Marked(cur) {
			object.SetMarked(cur, false)
			prev = cur
		} else {
			if prev == nil {
				c.objects = next
			} else {
				object.SetNext(prev, next)
			}
			c.bytesAllocated -= objBytes
			if c.logGC {
				fmt.Fprintf(c.logWriter, "free %p %s\n", cur, cur.Type())
			}
		}
		cur = next
	}
}
