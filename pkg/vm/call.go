package vm

import (
	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/value"
)

// callValue dispatches CALL argc's callee by concrete type (spec §4.4's
// calling convention): Closure pushes a frame, Native invokes directly,
// Class constructs an instance (running `init` if present), BoundMethod
// rebinds the receiver and calls through to its method.
func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObj() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch obj := callee.AsObj().(type) {
	case *object.Closure:
		return vm.call(obj, argCount)

	case *object.Native:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := obj.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil

	case *object.Class:
		instance := vm.heap.NewInstance(obj)
		vm.stack[vm.stackTop-argCount-1] = value.FromObj(instance)
		if obj.Init != nil {
			return vm.call(obj.Init, argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil

	case *object.BoundMethod:
		vm.stack[vm.stackTop-argCount-1] = obj.Receiver
		return vm.call(obj.Method, argCount)

	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// call pushes a new CallFrame for closure after checking arity and
// frame-depth bounds (spec §4.4, §7).
func (vm *VM) call(closure *object.Closure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slotsBase = vm.stackTop - argCount - 1
	return nil
}

// invoke implements INVOKE's fast path (spec §4.4): look up name as a
// field first (a callable field shadows a method and dispatches through
// the general call path), otherwise dispatch directly against the
// class's method table without allocating a BoundMethod.
func (vm *VM) invoke(name *object.String, argCount int) error {
	receiver := vm.peek(argCount)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have methods.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}
	if field, ok := instance.Fields[name]; ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argCount int) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method, argCount)
}

// bindMethod looks up name on class, wraps it with receiver as a
// BoundMethod, and replaces the receiver on the stack with it (used by
// the general GET_PROPERTY path, spec §4.4).
func (vm *VM) bindMethod(class *object.Class, name *object.String) error {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method)
	vm.pop()
	vm.push(value.FromObj(bound))
	return nil
}

// ---- upvalues -------------------------------------------------------------

// captureUpvalue finds or creates the open upvalue for the stack slot at
// absolute index slot, keeping the open-upvalue list sorted by
// descending slot address (spec §4.4).
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}
	created := vm.heap.NewUpvalue(slot, &vm.stack[slot])
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose stack address is ≥
// last, copying each value off the stack into the upvalue's own storage
// (spec §4.4).
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		uv := vm.openUpvalues
		next := uv.NextOpen
		uv.Close()
		vm.openUpvalues = next
	}
}
