package dataflow

import "reflect"

// equalAny reports whether a and b are equal, for the purpose of spec.md
// §4.2's "idempotent rebind to an equal value". T is deliberately not
// constrained to comparable at the SAV type-parameter level — many useful
// payload types (slices, maps, structs containing either) aren't comparable
// with ==, and spec.md doesn't restrict SAV's payload type. reflect.DeepEqual
// gives the same answer == would for every comparable type, and a sensible
// one for the rest.
func equalAny(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
