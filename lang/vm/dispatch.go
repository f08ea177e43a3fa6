package vm

import (
	"fmt"

	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/value"
)

func (vm *VM) readByte(fr *frame) byte {
	b := fr.closure.Function.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readU16(fr *frame) uint16 {
	hi := vm.readByte(fr)
	lo := vm.readByte(fr)
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readU24(fr *frame) uint32 {
	b0 := vm.readByte(fr)
	b1 := vm.readByte(fr)
	b2 := vm.readByte(fr)
	return uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
}

func (vm *VM) readConstant(fr *frame, idx uint32) value.Value {
	return fr.closure.Function.Chunk.Constants[idx].(value.Value)
}

func (vm *VM) readStringConstant(fr *frame, idx uint32) *value.ObjString {
	return vm.readConstant(fr, idx).(*value.ObjString)
}

// run is the dispatch loop: a plain for/switch over the current frame's
// bytecode, with a cached frame pointer standing in for a cached pc/sp pair
// - flushed implicitly since fr.ip is written directly on every read. Any
// opcode that can fail sets err and breaks the loop rather than using a Go
// panic/recover for control flow.
func (vm *VM) run() (result InterpretResult, rerr error) {
	fr := &vm.frames[vm.frameCont-1]

	var err error
dispatch:
	for {
		op := compiler.Opcode(vm.readByte(fr))
		switch op {
		case compiler.OpConstant:
			idx := vm.readU24(fr)
			if err = vm.pushChecked(vm.readConstant(fr, idx)); err != nil {
				break dispatch
			}

		case compiler.OpNil:
			if err = vm.pushChecked(value.Nil); err != nil {
				break dispatch
			}
		case compiler.OpTrue:
			if err = vm.pushChecked(value.Bool(true)); err != nil {
				break dispatch
			}
		case compiler.OpFalse:
			if err = vm.pushChecked(value.Bool(false)); err != nil {
				break dispatch
			}

		case compiler.OpPop:
			vm.pop()
		case compiler.OpPopN:
			n := vm.readU16(fr)
			vm.stackTop -= int(n)
		case compiler.OpDuplicate:
			if err = vm.pushChecked(vm.peek(0)); err != nil {
				break dispatch
			}

		case compiler.OpDefineGlobal:
			slot := vm.readU16(fr)
			vm.globalValues[slot] = vm.pop()

		case compiler.OpGetGlobal:
			slot := vm.readU16(fr)
			v := vm.globalValues[slot]
			if v == value.Undefined {
				err = vm.runtimeError("Undefined variable '%s'.", vm.globalNames[slot].Chars)
				break dispatch
			}
			if err = vm.pushChecked(v); err != nil {
				break dispatch
			}

		case compiler.OpSetGlobal:
			slot := vm.readU16(fr)
			if vm.globalValues[slot] == value.Undefined {
				err = vm.runtimeError("Undefined variable '%s'.", vm.globalNames[slot].Chars)
				break dispatch
			}
			vm.globalValues[slot] = vm.peek(0)

		case compiler.OpGetLocal:
			slot := vm.readU16(fr)
			if err = vm.pushChecked(vm.stack[fr.base+int(slot)]); err != nil {
				break dispatch
			}
		case compiler.OpSetLocal:
			slot := vm.readU16(fr)
			vm.stack[fr.base+int(slot)] = vm.peek(0)

		case compiler.OpGetUpvalue:
			slot := vm.readU16(fr)
			if err = vm.pushChecked(fr.closure.Upvalues[slot].Get()); err != nil {
				break dispatch
			}
		case compiler.OpSetUpvalue:
			slot := vm.readU16(fr)
			fr.closure.Upvalues[slot].Set(vm.peek(0))

		case compiler.OpGetProperty:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			inst, ok := vm.peek(0).(*value.ObjInstance)
			if !ok {
				err = vm.runtimeError("Only instances have properties.")
				break dispatch
			}
			if v, ok := inst.Fields[name.Chars]; ok {
				vm.pop()
				vm.push(v)
				continue
			}
			if err = vm.bindMethod(inst.Class, name); err != nil {
				break dispatch
			}

		case compiler.OpSetProperty:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			inst, ok := vm.peek(1).(*value.ObjInstance)
			if !ok {
				err = vm.runtimeError("Only instances have fields.")
				break dispatch
			}
			inst.Fields[name.Chars] = vm.peek(0)
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case compiler.OpGetSuper:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			super := vm.pop().(*value.ObjClass)
			if err = vm.bindMethod(super, name); err != nil {
				break dispatch
			}

		case compiler.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))

		case compiler.OpGreater:
			if err = vm.numericCompare(func(a, b value.Number) bool { return a > b }); err != nil {
				break dispatch
			}
		case compiler.OpLess:
			if err = vm.numericCompare(func(a, b value.Number) bool { return a < b }); err != nil {
				break dispatch
			}

		case compiler.OpAdd:
			if err = vm.add(); err != nil {
				break dispatch
			}
		case compiler.OpSubtract:
			if err = vm.arith(func(a, b value.Number) value.Number { return a - b }); err != nil {
				break dispatch
			}
		case compiler.OpMultiply:
			if err = vm.arith(func(a, b value.Number) value.Number { return a * b }); err != nil {
				break dispatch
			}
		case compiler.OpDivide:
			if err = vm.arith(func(a, b value.Number) value.Number { return a / b }); err != nil {
				break dispatch
			}
		case compiler.OpModulo:
			if err = vm.modulo(); err != nil {
				break dispatch
			}

		case compiler.OpNot:
			vm.push(value.Bool(value.Falsey(vm.pop())))
		case compiler.OpNegate:
			n, ok := vm.peek(0).(value.Number)
			if !ok {
				err = vm.runtimeError("Operand must be a number.")
				break dispatch
			}
			vm.pop()
			vm.push(-n)

		case compiler.OpPrint:
			v := vm.pop()
			fmt.Fprintln(vm.cfg.Stdout, v.String())

		case compiler.OpJump:
			offset := vm.readU16(fr)
			fr.ip += int(offset)
		case compiler.OpJumpIfFalse:
			offset := vm.readU16(fr)
			if value.Falsey(vm.peek(0)) {
				fr.ip += int(offset)
			}
		case compiler.OpLoop:
			offset := vm.readU16(fr)
			fr.ip -= int(offset)

		case compiler.OpCall:
			argc := int(vm.readByte(fr))
			if err = vm.callValue(vm.peek(argc), argc); err != nil {
				break dispatch
			}
			fr = &vm.frames[vm.frameCont-1]

		case compiler.OpInvoke:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			argc := int(vm.readByte(fr))
			if err = vm.invoke(name, argc); err != nil {
				break dispatch
			}
			fr = &vm.frames[vm.frameCont-1]

		case compiler.OpInvokeSuper:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			argc := int(vm.readByte(fr))
			super := vm.pop().(*value.ObjClass)
			if err = vm.invokeFromClass(super, name, argc); err != nil {
				break dispatch
			}
			fr = &vm.frames[vm.frameCont-1]

		case compiler.OpClosure:
			idx := vm.readU24(fr)
			fn := vm.readConstant(fr, idx).(*value.ObjFunction)
			closure := value.NewClosure(fn)
			vm.track(closure, 0)
			// Root the closure on the stack before the per-upvalue loop
			// below: capturing a local allocates a new ObjUpvalue and can
			// itself trigger a collection (§4.6), and closure has no other
			// root to keep it alive until this opcode finishes.
			if err = vm.pushChecked(closure); err != nil {
				break dispatch
			}
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(fr)
				index := vm.readByte(fr)
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.base + int(index))
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}

		case compiler.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case compiler.OpReturn:
			res := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frameCont--
			if vm.frameCont == 0 {
				vm.pop() // the top-level script closure itself
				return InterpretOK, nil
			}
			vm.stackTop = fr.base
			vm.push(res)
			fr = &vm.frames[vm.frameCont-1]

		case compiler.OpClass:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			cls := value.NewClass(name)
			vm.track(cls, 0)
			if err = vm.pushChecked(cls); err != nil {
				break dispatch
			}

		case compiler.OpInherit:
			super, ok := vm.peek(1).(*value.ObjClass)
			if !ok {
				err = vm.runtimeError("Superclass must be a class.")
				break dispatch
			}
			sub := vm.peek(0).(*value.ObjClass)
			sub.InheritFrom(super)
			vm.pop() // the subclass; the superclass stays as the 'super' local

		case compiler.OpMethod:
			idx := vm.readU24(fr)
			name := vm.readStringConstant(fr, idx)
			closure := vm.pop().(*value.ObjClosure)
			cls := vm.peek(0).(*value.ObjClass)
			cls.SetMethod(name.Chars, closure)

		case compiler.OpArray:
			n := int(vm.readU16(fr))
			arr := value.NewArray()
			arr.Elems = make([]value.Value, n)
			copy(arr.Elems, vm.stack[vm.stackTop-n:vm.stackTop])
			vm.track(arr, 0)
			vm.stackTop -= n
			if err = vm.pushChecked(arr); err != nil {
				break dispatch
			}

		case compiler.OpArrayGet:
			idxVal := vm.pop()
			arrVal := vm.pop()
			arr, ok := arrVal.(*value.ObjArray)
			if !ok {
				err = vm.runtimeError("Only arrays can be indexed.")
				break dispatch
			}
			i, ok := arrayIndex(idxVal)
			if !ok {
				err = vm.runtimeError("Array index must be a non-negative integer.")
				break dispatch
			}
			v, ok := arr.Get(i)
			if !ok {
				err = vm.runtimeError("Array index out of bounds.")
				break dispatch
			}
			vm.push(v)

		case compiler.OpArraySet:
			val := vm.pop()
			idxVal := vm.pop()
			arrVal := vm.pop()
			arr, ok := arrVal.(*value.ObjArray)
			if !ok {
				err = vm.runtimeError("Only arrays can be indexed.")
				break dispatch
			}
			i, ok := arrayIndex(idxVal)
			if !ok {
				err = vm.runtimeError("Array index must be a non-negative integer.")
				break dispatch
			}
			if !arr.Set(i, val) {
				err = vm.runtimeError("Array index out of bounds.")
				break dispatch
			}
			vm.push(val)

		default:
			err = vm.runtimeError("Unknown opcode %d.", op)
			break dispatch
		}
	}

	return InterpretRuntimeError, err
}

func arrayIndex(v value.Value) (int, bool) {
	n, ok := v.(value.Number)
	if !ok || n < 0 || n != value.Number(int(n)) {
		return 0, false
	}
	return int(n), true
}

func (vm *VM) arith(f func(a, b value.Number) value.Number) error {
	b, bok := vm.peek(0).(value.Number)
	a, aok := vm.peek(1).(value.Number)
	if !aok || !bok {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	vm.push(f(a, b))
	return nil
}

func (vm *VM) numericCompare(f func(a, b value.Number) bool) error {
	b, bok := vm.peek(0).(value.Number)
	a, aok := vm.peek(1).(value.Number)
	if !aok || !bok {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	vm.push(value.Bool(f(a, b)))
	return nil
}

func (vm *VM) modulo() error {
	b, bok := vm.peek(0).(value.Number)
	a, aok := vm.peek(1).(value.Number)
	if !aok || !bok {
		return vm.runtimeError("Operands must be numbers.")
	}
	if a != value.Number(int64(a)) || b != value.Number(int64(b)) {
		return vm.runtimeError("Operands to '%%' must be integers.")
	}
	bi := int64(b)
	if bi == 0 {
		return vm.runtimeError("Modulo by zero.")
	}
	vm.pop()
	vm.pop()
	vm.push(value.Number(int64(a) % bi))
	return nil
}

// add implements ADD's overload (§4.2): numbers add, strings concatenate
// into a freshly interned result; anything else is a type error.
func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch av := a.(type) {
	case value.Number:
		bv, ok := b.(value.Number)
		if !ok {
			return vm.runtimeError("Operands must be two numbers or two strings.")
		}
		vm.pop()
		vm.pop()
		vm.push(av + bv)
		return nil
	case *value.ObjString:
		bv, ok := b.(*value.ObjString)
		if !ok {
			return vm.runtimeError("Operands must be two numbers or two strings.")
		}
		vm.pop()
		vm.pop()
		vm.push(vm.internString(av.Chars + bv.Chars))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

// callValue dispatches a CALL-family opcode by the callee's dynamic type
// (§4.4 "Calling").
func (vm *VM) callValue(callee value.Value, argc int) error {
	switch c := callee.(type) {
	case *value.ObjClosure:
		return vm.call(c, argc)

	case *value.ObjClass:
		inst := value.NewInstance(c)
		vm.track(inst, 0)
		vm.stack[vm.stackTop-argc-1] = inst
		if c.Initializer != nil {
			return vm.call(c.Initializer, argc)
		}
		if argc != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argc)
		}
		return nil

	case *value.ObjBoundMethod:
		vm.stack[vm.stackTop-argc-1] = c.Receiver
		return vm.call(c.Method, argc)

	case *value.ObjNative:
		if argc != c.Arity {
			return vm.runtimeError("Expected %d arguments but got %d.", c.Arity, argc)
		}
		args := make([]value.Value, argc)
		copy(args, vm.stack[vm.stackTop-argc:vm.stackTop])
		result, nerr := c.Fn(args)
		if nerr != nil {
			return vm.runtimeError("%s", nerr.Error())
		}
		vm.stackTop -= argc + 1
		return vm.pushChecked(result)

	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) call(closure *value.ObjClosure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCont == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}
	fr := &vm.frames[vm.frameCont]
	fr.closure = closure
	fr.ip = 0
	fr.base = vm.stackTop - argc - 1
	vm.frameCont++
	return nil
}

// invoke fuses a property lookup with a call (§4.2 INVOKE): a field that
// holds a callable is tried first, so storing a closure as an instance
// field and calling it through dot-syntax works without going through
// GET_PROPERTY+CALL.
func (vm *VM) invoke(name *value.ObjString, argc int) error {
	inst, ok := vm.peek(argc).(*value.ObjInstance)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}
	if field, ok := inst.Fields[name.Chars]; ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}
	method, ok := inst.Class.Methods[name.Chars]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method, argc)
}

func (vm *VM) invokeFromClass(class *value.ObjClass, name *value.ObjString, argc int) error {
	method, ok := class.Methods[name.Chars]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method, argc)
}

func (vm *VM) bindMethod(class *value.ObjClass, name *value.ObjString) error {
	method, ok := class.Methods[name.Chars]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := value.NewBoundMethod(vm.peek(0), method)
	vm.track(bound, 0)
	vm.pop()
	return vm.pushChecked(bound)
}

// captureUpvalue returns the open upvalue for stack slot, reusing an
// existing one if the VM already captured that exact slot. The open list
// is kept in strictly decreasing Slot order (§3 invariant) so this is a
// single linear walk.
func (vm *VM) captureUpvalue(slot int) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}

	created := value.NewUpvalue(&vm.stack[slot])
	created.Slot = slot
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	vm.track(created, 0)
	return created
}

// closeUpvalues closes every open upvalue at or above lastSlot, detaching
// it from the stack it captured a piece of (§4.4 "Upvalue closing").
func (vm *VM) closeUpvalues(lastSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= lastSlot {
		uv := vm.openUpvalues
		next := uv.NextOpen
		uv.Close()
		vm.openUpvalues = next
	}
}
