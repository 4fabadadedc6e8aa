package vm

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/kristofer/glox/pkg/chunk"
	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/value"
)

// run is the interpreter's tight dispatch loop (spec §4.4): it reads
// from the current frame's chunk at its ip until a RETURN unwinds the
// last frame or a runtime error aborts execution.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]
	code := func() *chunk.Chunk { return frame.closure.Function.Chunk.(*chunk.Chunk) }

	readByte := func() byte {
		b := code().Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value { return code().Constants[readByte()] }
	readConstant16 := func() value.Value { return code().Constants[readShort()] }
	readString := func() *object.String { return readConstant().AsObj().(*object.String) }
	readString16 := func() *object.String { return readConstant16().AsObj().(*object.String) }

	for {
		if vm.cfg.TraceExecution {
			vm.traceInstruction(frame, code())
		}

		op := chunk.OpCode(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant())
		case chunk.OpConstant16:
			vm.push(readConstant16())
		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpPop:
			vm.pop()
		case chunk.OpDup:
			vm.push(vm.peek(0))

		case chunk.OpGetLocal:
			vm.push(vm.stack[frame.slotsBase+int(readByte())])
		case chunk.OpSetLocal:
			vm.stack[frame.slotsBase+int(readByte())] = vm.peek(0)

		case chunk.OpGetUpvalue:
			vm.push(*frame.closure.Upvalues[readByte()].Location)
		case chunk.OpSetUpvalue:
			*frame.closure.Upvalues[readByte()].Location = vm.peek(0)
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpDefineGlobal:
			vm.globals.Set(readString(), vm.peek(0))
			vm.pop()
		case chunk.OpDefineGlobal16:
			vm.globals.Set(readString16(), vm.peek(0))
			vm.pop()
		case chunk.OpGetGlobal:
			if err := vm.getGlobal(readString()); err != nil {
				return err
			}
		case chunk.OpGetGlobal16:
			if err := vm.getGlobal(readString16()); err != nil {
				return err
			}
		case chunk.OpSetGlobal:
			if err := vm.setGlobal(readString()); err != nil {
				return err
			}
		case chunk.OpSetGlobal16:
			if err := vm.setGlobal(readString16()); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.numericBinary(op); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.numericBinary(op); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.numericBinary(op); err != nil {
				return err
			}
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))
		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.comparisonBinary(op); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.comparisonBinary(op); err != nil {
				return err
			}

		case chunk.OpPrint:
			fmt.Fprintln(vm.stdout, object.ToDisplayString(vm.pop()))

		case chunk.OpJump:
			offset := readShort()
			frame.ip += offset
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}
		case chunk.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case chunk.OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpInvoke:
			name := readString()
			argCount := int(readByte())
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpSuperInvoke:
			name := readString()
			argCount := int(readByte())
			superclass := vm.pop().AsObj().(*object.Class)
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			fn := readConstant16().AsObj().(*object.Function)
			upvalues := make([]*object.Upvalue, fn.UpvalueCount)
			for i := range upvalues {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					upvalues[i] = vm.captureUpvalue(frame.slotsBase + int(index))
				} else {
					upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.push(value.FromObj(vm.heap.NewClosure(fn, upvalues)))

		case chunk.OpClass:
			name := readString()
			vm.push(value.FromObj(vm.heap.NewClass(name)))
		case chunk.OpInherit:
			if !vm.peek(1).IsObj() {
				return vm.runtimeError("Superclass must be a class.")
			}
			super, ok := vm.peek(1).AsObj().(*object.Class)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			sub := vm.peek(0).AsObj().(*object.Class)
			for name, method := range super.Methods {
				sub.Methods[name] = method
			}
			sub.Init = super.Init
			vm.pop() // subclass popped; superclass stays as the `super` local
		case chunk.OpMethod:
			vm.defineMethod(readString())
		case chunk.OpGetProperty:
			if err := vm.getProperty(readString()); err != nil {
				return err
			}
		case chunk.OpSetProperty:
			if err := vm.setProperty(readString()); err != nil {
				return err
			}
		case chunk.OpGetSuper:
			name := readString()
			super := vm.pop().AsObj().(*object.Class)
			if err := vm.bindMethod(super, name); err != nil {
				return err
			}

		case chunk.OpArray:
			n := int(readByte())
			elems := make([]value.Value, n)
			copy(elems, vm.stack[vm.stackTop-n:vm.stackTop])
			vm.stackTop -= n
			vm.push(value.FromObj(vm.heap.NewArray(elems)))
		case chunk.OpGetIndex:
			if err := vm.getIndex(); err != nil {
				return err
			}
		case chunk.OpSetIndex:
			if err := vm.setIndex(); err != nil {
				return err
			}

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slotsBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %v.", op)
		}
	}
}

func (vm *VM) getGlobal(name *object.String) error {
	v, ok := vm.globals.Get(name)
	if !ok {
		return vm.runtimeError("Undefined variable '%s'.", name.Chars)
	}
	vm.push(v)
	return nil
}

func (vm *VM) setGlobal(name *object.String) error {
	if isNew := vm.globals.Set(name, vm.peek(0)); isNew {
		vm.globals.Delete(name)
		return vm.runtimeError("Undefined variable '%s'.", name.Chars)
	}
	return nil
}

// add implements ADD (spec §4.4/§8): number+number is arithmetic,
// string+string concatenates; any other pairing — including a number
// mixed with a string — is a type error (the negative scenario in spec
// §8 is authoritative over the looser "either operand string" prose in
// §4.4, matching the source design's actual ADD implementation).
func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		bn := vm.pop().AsNumber()
		an := vm.pop().AsNumber()
		vm.push(value.Number(an + bn))
	case isStringy(a) && isStringy(b):
		// Operands stay rooted on the stack (they're already peek'd, not
		// popped) while Concat allocates, per the allocator contract in
		// spec §4.5.
		result := vm.heap.Concat(object.ToDisplayString(a), object.ToDisplayString(b))
		vm.pop()
		vm.pop()
		vm.push(value.FromObj(result))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

func isStringy(v value.Value) bool {
	if v.IsObj() {
		_, ok := v.AsObj().(*object.String)
		return ok
	}
	return false
}

func (vm *VM) numericBinary(op chunk.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case chunk.OpSubtract:
		vm.push(value.Number(a - b))
	case chunk.OpMultiply:
		vm.push(value.Number(a * b))
	case chunk.OpDivide:
		vm.push(value.Number(a / b))
	}
	return nil
}

func (vm *VM) comparisonBinary(op chunk.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case chunk.OpGreater:
		vm.push(value.Bool(a > b))
	case chunk.OpLess:
		vm.push(value.Bool(a < b))
	}
	return nil
}

// getProperty implements GET_PROPERTY (spec §4.4): fields shadow
// methods; a method hit binds a BoundMethod.
func (vm *VM) getProperty(name *object.String) error {
	if !vm.peek(0).IsObj() {
		return vm.runtimeError("Only instances have properties.")
	}
	instance, ok := vm.peek(0).AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}
	if field, ok := instance.Fields[name]; ok {
		vm.pop()
		vm.push(field)
		return nil
	}
	return vm.bindMethod(instance.Class, name)
}

func (vm *VM) setProperty(name *object.String) error {
	if !vm.peek(1).IsObj() {
		return vm.runtimeError("Only instances have fields.")
	}
	instance, ok := vm.peek(1).AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have fields.")
	}
	v := vm.pop()
	instance.Fields[name] = v
	vm.pop() // instance
	vm.push(v)
	return nil
}

func (vm *VM) defineMethod(name *object.String) {
	method := vm.peek(0).AsObj().(*object.Closure)
	class := vm.peek(1).AsObj().(*object.Class)
	class.Methods[name] = method
	if name.Chars == "init" {
		class.Init = method
	}
	vm.pop()
}

// ---- arrays (optional, spec §4.3) -----------------------------------------

func (vm *VM) getIndex() error {
	idxVal := vm.pop()
	recv := vm.pop()
	arr, ok := recv.AsObj().(*object.Array)
	if !recv.IsObj() || !ok {
		return vm.runtimeError("Only arrays can be indexed.")
	}
	if !idxVal.IsNumber() {
		return vm.runtimeError("Array index must be a number.")
	}
	i := int(idxVal.AsNumber())
	if i < 0 || i >= len(arr.Elements) {
		return vm.runtimeError("Array index out of bounds.")
	}
	vm.push(arr.Elements[i])
	return nil
}

func (vm *VM) setIndex() error {
	v := vm.pop()
	idxVal := vm.pop()
	recv := vm.pop()
	arr, ok := recv.AsObj().(*object.Array)
	if !recv.IsObj() || !ok {
		return vm.runtimeError("Only arrays can be indexed.")
	}
	if !idxVal.IsNumber() {
		return vm.runtimeError("Array index must be a number.")
	}
	i := int(idxVal.AsNumber())
	if i < 0 || i >= len(arr.Elements) {
		return vm.runtimeError("Array index out of bounds.")
	}
	arr.Elements[i] = v
	vm.push(v)
	return nil
}

// traceInstruction implements DEBUG_TRACE_EXECUTION (spec §6): the
// stack contents followed by the next instruction's disassembly. Each
// stack slot is rendered with object.ToDisplayString (Values are a tagged
// struct with an unexported payload that %v would render uselessly); the
// resulting string is printed through spew.Sprint.
func (vm *VM) traceInstruction(frame *CallFrame, ch *chunk.Chunk) {
	fmt.Fprint(vm.stderr, "          ")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(vm.stderr, "[ %s ]", spew.Sprint(object.ToDisplayString(vm.stack[i])))
	}
	fmt.Fprintln(vm.stderr)
	line, _ := chunk.DisassembleInstruction(ch, frame.ip)
	fmt.Fprintln(vm.stderr, line)
}
