// Package assert holds panicking checks for programmer errors, mostly constructor arguments.
package assert

import (
	"fmt"
	"reflect"
)

// NotNil also catches typed nils, a nil *T stored in an interface is not == nil.
func NotNil(value any, name string) {
	if isNil(value) {
		panic(fmt.Sprintf("assert: %s must not be nil", name))
	}
}

func NotEmptyStr(str string, name string) {
	if str == "" {
		panic(fmt.Sprintf("assert: %s must not be empty", name))
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
