package troupe

import (
	"fmt"
	"reflect"
	"runtime"
)

// typeName renders T's type name for ActorInfo's inspection fields.
func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// behaviourFuncName resolves a Behaviour's declared function name via its
// program counter, matching the "behaviour tag" inspection field.
// Anonymous function literals resolve to the synthetic name the compiler
// assigns them (e.g. "pkg.Foo.func1"), which is still useful for
// debugging even if not a stable identifier.
func behaviourFuncName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "unknown"
	}
	if rf := runtime.FuncForPC(v.Pointer()); rf != nil {
		return rf.Name()
	}
	return "unknown"
}
