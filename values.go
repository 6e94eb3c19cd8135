package pagetemplate

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// ***********
// * Helpers *
// ***********

// deref follows pointers and interfaces. ok is false if a nil is found on
// the way.
func deref(rv reflect.Value) (reflect.Value, bool) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func isBytes(t reflect.Type) bool {
	return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() == reflect.Uint8
}

// *************
// * Stringify *
// *************

// stringify renders a resolved value as output text. Absent values render
// as the empty string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case cty.Value:
		return ctyString(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return ""
		}
	}
	switch t := v.(type) {
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}
	if rv.Kind() == reflect.Ptr {
		return stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func ctyString(v cty.Value) string {
	if !v.IsKnown() || v.IsNull() {
		return ""
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return v.AsString()
	case ty.Equals(cty.Number):
		return v.AsBigFloat().Text('f', -1)
	case ty.Equals(cty.Bool):
		return strconv.FormatBool(v.True())
	case ty.IsListType(), ty.IsSetType(), ty.IsTupleType():
		parts := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			parts = append(parts, ctyString(ev))
		}
		return "[" + strings.Join(parts, " ") + "]"
	case ty.IsMapType(), ty.IsObjectType():
		var parts []string
		for _, pair := range ctyPairs(v) {
			parts = append(parts, fmt.Sprintf("%s:%s", pair[0], stringify(pair[1])))
		}
		return "map[" + strings.Join(parts, " ") + "]"
	}
	return v.GoString()
}

// **********
// * Truthy *
// **********

// truthy reports whether a resolved value counts as true. Absent, nil and
// false values are false. Strings and collections are true only when non
// empty, unless emptyIsTrue is set. Every other present value is true.
func truthy(v any, emptyIsTrue bool) bool {
	if cv, ok := v.(cty.Value); ok {
		return ctyTruthy(cv, emptyIsTrue)
	}
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return false
	}
	switch val.Kind() {
	case reflect.Bool:
		return val.Bool()
	case reflect.Chan, reflect.Func, reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if val.IsNil() {
			return false
		}
	}
	if emptyIsTrue {
		return true
	}
	switch val.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return val.Len() > 0
	}
	return true
}

func ctyTruthy(v cty.Value, emptyIsTrue bool) bool {
	if !v.IsKnown() || v.IsNull() {
		return false
	}
	ty := v.Type()
	if ty.Equals(cty.Bool) {
		return v.True()
	}
	if emptyIsTrue {
		return true
	}
	switch {
	case ty.Equals(cty.String):
		return v.AsString() != ""
	case ty.IsObjectType():
		return len(ty.AttributeTypes()) > 0
	case ty.IsCollectionType(), ty.IsTupleType():
		return v.LengthInt() > 0
	}
	return true
}

// *************
// * Enumerate *
// *************

// enumerate returns the elements a loop walks over. Absent and false values
// yield nothing, non enumerable values yield themselves. Map entries are
// yielded as ordered []any{key, value} pairs sorted by key.
func enumerate(v any) []any {
	if cv, ok := v.(cty.Value); ok {
		return ctyEnumerate(cv)
	}
	rv, ok := deref(reflect.ValueOf(v))
	if !ok {
		return nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		if !rv.Bool() {
			return nil
		}
	case reflect.Slice, reflect.Array:
		if isBytes(rv.Type()) {
			break
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = []any{k.Interface(), rv.MapIndex(k).Interface()}
		}
		return items
	}
	return []any{v}
}

func ctyEnumerate(v cty.Value) []any {
	if !v.IsKnown() || v.IsNull() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.Bool):
		if !v.True() {
			return nil
		}
	case ty.IsListType(), ty.IsSetType(), ty.IsTupleType():
		items := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			items = append(items, ev)
		}
		return items
	case ty.IsMapType(), ty.IsObjectType():
		pairs := ctyPairs(v)
		items := make([]any, len(pairs))
		for i, pair := range pairs {
			items[i] = pair
		}
		return items
	}
	return []any{v}
}

// ctyPairs lists the entries of a cty map or object sorted by key.
func ctyPairs(v cty.Value) [][]any {
	var pairs [][]any
	if v.Type().IsObjectType() {
		names := make([]string, 0, len(v.Type().AttributeTypes()))
		for name := range v.Type().AttributeTypes() {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pairs = append(pairs, []any{name, v.GetAttr(name)})
		}
		return pairs
	}
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		pairs = append(pairs, []any{ctyString(k), ev})
	}
	return pairs
}

// components returns the first n ordered components of a loop element, for
// binding several iterator names at once.
func components(elem any, n int) ([]any, error) {
	var parts []any
	if cv, ok := elem.(cty.Value); ok {
		if !cv.IsKnown() || cv.IsNull() || !(cv.Type().IsListType() || cv.Type().IsTupleType()) {
			return nil, fmt.Errorf("%s is not an ordered value", cv.Type().FriendlyName())
		}
		for it := cv.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			parts = append(parts, ev)
		}
	} else {
		rv, ok := deref(reflect.ValueOf(elem))
		if !ok || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || isBytes(rv.Type()) {
			return nil, fmt.Errorf("%T is not an ordered value", elem)
		}
		parts = make([]any, rv.Len())
		for i := range parts {
			parts[i] = rv.Index(i).Interface()
		}
	}
	if len(parts) < n {
		return nil, fmt.Errorf("element has %d components, %d iterators declared", len(parts), n)
	}
	return parts[:n], nil
}
