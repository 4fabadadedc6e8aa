package vm

import (
	"bufio"

	"github.com/pkg/errors"

	"github.com/kristofer/glox/pkg/object"
	"github.com/kristofer/glox/pkg/value"
)

// nativeInput reads one line from the VM's configured stdin and returns
// it as an interned string, or nil at EOF (spec §4.7's native registry).
// It closes over vm rather than taking it as an argument because
// object.NativeFn's signature is fixed by the calling convention in
// pkg/vm/call.go.
func nativeInput(vm *VM) object.NativeFn {
	scan := bufio.NewScanner(vm.stdin)
	return func(args []value.Value) (value.Value, error) {
		if !scan.Scan() {
			if err := scan.Err(); err != nil {
				return value.Nil, errors.Wrap(err, "input")
			}
			return value.Nil, nil
		}
		s := vm.heap.InternString(scan.Text())
		return value.FromObj(s), nil
	}
}
