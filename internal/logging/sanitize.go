package logging

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// Replacement markers written in place of sensitive or unprintable values.
const (
	Redacted          = "[REDACTED]"
	CircularReference = "[Circular Reference]"
	TruncatedSuffix   = "...[TRUNCATED]"
)

// MaxStringLength is the rune count after which string values are truncated.
const MaxStringLength = 100

var sensitiveKeys = []string{
	"password",
	"secret",
	"key",
	"token",
	"auth",
	"credential",
	"bearer",
	"x-api-key",
	"apikey",
	"authorization",
	"cookie",
	"session",
}

// IsSensitiveKey reports whether a field name looks like it carries a secret.
// Matching is a case-insensitive substring test.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	return lo.SomeBy(sensitiveKeys, func(s string) bool {
		return strings.Contains(lower, s)
	})
}

// Sanitize returns a deep copy of fields with sensitive keys redacted at any
// depth, long strings truncated, and reference cycles replaced by a marker.
// Maps, slices, arrays, pointers and exported struct fields are traversed.
// The input is never modified.
func Sanitize(fields Fields) Fields {
	if fields == nil {
		return nil
	}

	s := sanitizer{ancestors: make(map[visit]struct{})}
	out, ok := s.value(reflect.ValueOf(map[string]any(fields))).(map[string]any)
	if !ok {
		return Fields{}
	}
	return Fields(out)
}

// visit identifies a reference on the current traversal path.
type visit struct {
	typ reflect.Type
	ptr uintptr
}

type sanitizer struct {
	ancestors map[visit]struct{}
}

var (
	errorType    = reflect.TypeFor[error]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

func (s *sanitizer) value(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	if isNilable(v.Kind()) && v.IsNil() {
		return nil
	}

	if v.Type().Implements(errorType) && v.CanInterface() {
		if err, ok := v.Interface().(error); ok {
			return truncate(err.Error())
		}
	}

	switch v.Kind() {
	case reflect.String:
		return truncate(v.String())
	case reflect.Interface:
		return s.value(v.Elem())
	case reflect.Pointer:
		return s.enter(v, func() any { return s.value(v.Elem()) })
	case reflect.Map:
		return s.enter(v, func() any { return s.mapValue(v) })
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return truncate(string(v.Bytes()))
		}
		return s.enter(v, func() any { return s.listValue(v) })
	case reflect.Array:
		return s.listValue(v)
	case reflect.Struct:
		return s.structValue(v)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return "<" + v.Type().String() + ">"
	default:
		if v.CanInterface() {
			return v.Interface()
		}
		return fmt.Sprint(v)
	}
}

// enter runs fn unless v is already on the traversal path.
// Shared references that are not ancestors are traversed again.
func (s *sanitizer) enter(v reflect.Value, fn func() any) any {
	key := visit{typ: v.Type(), ptr: v.Pointer()}
	if _, seen := s.ancestors[key]; seen {
		return CircularReference
	}

	s.ancestors[key] = struct{}{}
	defer delete(s.ancestors, key)

	return fn()
}

func (s *sanitizer) mapValue(v reflect.Value) map[string]any {
	out := make(map[string]any, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		name := mapKey(iter.Key())
		if IsSensitiveKey(name) {
			out[name] = Redacted
			continue
		}
		out[name] = s.value(iter.Value())
	}

	return out
}

func (s *sanitizer) listValue(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range v.Len() {
		out[i] = s.value(v.Index(i))
	}
	return out
}

func (s *sanitizer) structValue(v reflect.Value) any {
	t := v.Type()

	if t.Implements(stringerType) && v.CanInterface() {
		if str, ok := v.Interface().(fmt.Stringer); ok {
			return truncate(str.String())
		}
	}

	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}
		if IsSensitiveKey(name) {
			out[name] = Redacted
			continue
		}
		out[name] = s.value(v.Field(i))
	}

	return out
}

func fieldName(field reflect.StructField) string {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return fmt.Sprint(k)
}

func isNilable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxStringLength {
		return s
	}
	return string([]rune(s)[:MaxStringLength]) + TruncatedSuffix
}
