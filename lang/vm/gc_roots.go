package vm

import (
	"github.com/emberlang/ember/lang/table"
	"github.com/emberlang/ember/lang/value"
)

// collectGarbage runs one collection, handing the collector the VM's full
// root set (§4.6 "Roots"): the live portion of the value stack, every
// frame's closure, the open-upvalue chain, and the globals buffer's names
// and values. The interning table is swept as a weak set afterward, so a
// string that is only referenced from the table itself is freed.
//
// The compiler's "compilation in progress" root class from §4.6 has no
// counterpart here: this front end's two-stage constant pool (raw Go
// values at compile time, interned only when the VM loads the finished
// chunk in loadFunction) means no VM allocation - and therefore no
// collection - can ever fire while a compile is in flight. See DESIGN.md.
func (vm *VM) collectGarbage() {
	vm.gc.Collect(func(mark func(value.Value)) {
		for i := 0; i < vm.stackTop; i++ {
			mark(vm.stack[i])
		}
		for i := 0; i < vm.frameCont; i++ {
			mark(vm.frames[i].closure)
		}
		for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
			mark(uv)
		}
		for _, n := range vm.globalNames {
			if n != nil {
				mark(n)
			}
		}
		for _, v := range vm.globalValues {
			if v != nil {
				mark(v)
			}
		}
		if vm.initStr != nil {
			mark(vm.initStr)
		}
	}, func(keep func(*value.ObjString) bool) {
		table.SweepKeys(vm.strings, keep)
	})
}
