package vm

import (
	"fmt"
	"math"
	"time"

	"github.com/emberlang/ember/lang/value"
)

// processStart anchors clock() to process start, measuring elapsed wall
// time from a package-level initialization point rather than threading a
// clock through Config.
var processStart = time.Now()

func defaultClock() float64 { return time.Since(processStart).Seconds() }

// registerNatives builds every built-in function (§6 "Native functions")
// as a tracked ObjNative and indexes it by name. A native only occupies a
// global slot if the compiled program actually references its name — see
// syncGlobals — exactly as an ordinary user-declared global would.
func (vm *VM) registerNatives() {
	natives := []*value.ObjNative{
		value.NewNative("clock", 0, vm.nativeClock),
		value.NewNative("sqrt", 1, vm.nativeSqrt),
		value.NewNative("str", 1, vm.nativeStr),
		value.NewNative("getField", 2, vm.nativeGetField),
		value.NewNative("setField", 3, vm.nativeSetField),
		value.NewNative("deleteField", 2, vm.nativeDeleteField),
		value.NewNative("append", 2, vm.nativeAppend),
	}
	vm.natives = make(map[string]*value.ObjNative, len(natives))
	for _, n := range natives {
		vm.track(n, 0)
		vm.natives[n.Name] = n
	}
}

func (vm *VM) nativeClock([]value.Value) (value.Value, error) {
	return value.Number(vm.startTime()), nil
}

func (vm *VM) nativeSqrt(args []value.Value) (value.Value, error) {
	n, ok := args[0].(value.Number)
	if !ok {
		return nil, fmt.Errorf("sqrt: argument must be a number")
	}
	return value.Number(math.Sqrt(float64(n))), nil
}

func (vm *VM) nativeStr(args []value.Value) (value.Value, error) {
	return vm.internString(args[0].String()), nil
}

func asInstance(v value.Value, who string) (*value.ObjInstance, error) {
	inst, ok := v.(*value.ObjInstance)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be an instance", who)
	}
	return inst, nil
}

func asFieldName(v value.Value, who string) (*value.ObjString, error) {
	name, ok := v.(*value.ObjString)
	if !ok {
		return nil, fmt.Errorf("%s: field name must be a string", who)
	}
	return name, nil
}

func (vm *VM) nativeGetField(args []value.Value) (value.Value, error) {
	inst, err := asInstance(args[0], "getField")
	if err != nil {
		return nil, err
	}
	name, err := asFieldName(args[1], "getField")
	if err != nil {
		return nil, err
	}
	if v, ok := inst.Fields[name.Chars]; ok {
		return v, nil
	}
	return value.Nil, nil
}

func (vm *VM) nativeSetField(args []value.Value) (value.Value, error) {
	inst, err := asInstance(args[0], "setField")
	if err != nil {
		return nil, err
	}
	name, err := asFieldName(args[1], "setField")
	if err != nil {
		return nil, err
	}
	inst.Fields[name.Chars] = args[2]
	return value.Nil, nil
}

func (vm *VM) nativeDeleteField(args []value.Value) (value.Value, error) {
	inst, err := asInstance(args[0], "deleteField")
	if err != nil {
		return nil, err
	}
	name, err := asFieldName(args[1], "deleteField")
	if err != nil {
		return nil, err
	}
	delete(inst.Fields, name.Chars)
	return value.Nil, nil
}

func (vm *VM) nativeAppend(args []value.Value) (value.Value, error) {
	arr, ok := args[0].(*value.ObjArray)
	if !ok {
		return nil, fmt.Errorf("append: first argument must be an array")
	}
	arr.Append(args[1])
	return value.Nil, nil
}
