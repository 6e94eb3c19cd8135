package pagetemplate

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Lookuper is implemented by backing objects that resolve names themselves,
// without reflection.
type Lookuper interface {
	Lookup(key string) (any, bool)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// splitPath normalises method separators to dots and splits off the first
// segment.
func splitPath(p, separators string) (key, rest string, norm string) {
	if separators != "" && separators != "." {
		p = strings.Map(func(r rune) rune {
			if strings.ContainsRune(separators, r) {
				return '.'
			}
			return r
		}, p)
	}
	key, rest, _ = strings.Cut(p, ".")
	return key, rest, p
}

// keyed performs a keyed lookup of key on v. supported is false when v
// has no notion of keys at all.
func keyed(v any, key string) (val any, found, supported bool) {
	switch t := v.(type) {
	case nil:
		return nil, false, false
	case Lookuper:
		val, found = t.Lookup(key)
		return val, found, true
	case cty.Value:
		if !t.IsKnown() || t.IsNull() {
			return nil, false, false
		}
		switch ty := t.Type(); {
		case ty.IsObjectType():
			if !ty.HasAttribute(key) {
				return nil, false, true
			}
			return t.GetAttr(key), true, true
		case ty.IsMapType():
			k := cty.StringVal(key)
			if !t.HasIndex(k).True() {
				return nil, false, true
			}
			return t.Index(k), true, true
		}
		return nil, false, false
	}

	rv, ok := deref(reflect.ValueOf(v))
	if !ok || rv.Kind() != reflect.Map {
		return nil, false, false
	}
	kt := rv.Type().Key()
	var kv reflect.Value
	switch kt.Kind() {
	case reflect.String:
		kv = reflect.ValueOf(key).Convert(kt)
	case reflect.Interface:
		kv = reflect.ValueOf(key)
		if !kv.Type().Implements(kt) {
			return nil, false, false
		}
	default:
		return nil, false, false
	}
	mv := rv.MapIndex(kv)
	if !mv.IsValid() {
		return nil, false, true
	}
	return mv.Interface(), true, true
}

// indexed performs a numeric index lookup of seg on a sequence.
func indexed(v any, seg string) (val any, found bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || seg[0] == '+' {
		return nil, false
	}
	if cv, ok := v.(cty.Value); ok {
		if !cv.IsKnown() || cv.IsNull() {
			return nil, false
		}
		if ty := cv.Type(); !ty.IsListType() && !ty.IsTupleType() {
			return nil, false
		}
		if i >= cv.LengthInt() {
			return nil, false
		}
		return cv.Index(cty.NumberIntVal(int64(i))), true
	}
	rv, ok := deref(reflect.ValueOf(v))
	if !ok {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

// attribute looks name up as an exported struct field or a zero argument
// method, matching exactly first and then ignoring case.
func attribute(v any, name string) (val any, found bool, err error) {
	if _, ok := v.(cty.Value); ok {
		return nil, false, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || name == "" {
		return nil, false, nil
	}

	if sv, ok := deref(rv); ok && sv.Kind() == reflect.Struct {
		if f, ok := fieldByName(sv, name); ok {
			return f.Interface(), true, nil
		}
	}

	for cur := rv; cur.IsValid(); {
		if m, ok := methodByName(cur, name); ok {
			val, err = call(m, name)
			return val, true, err
		}
		if cur.Kind() != reflect.Ptr && cur.Kind() != reflect.Interface || cur.IsNil() {
			break
		}
		cur = cur.Elem()
	}
	return nil, false, nil
}

func fieldByName(sv reflect.Value, name string) (reflect.Value, bool) {
	st := sv.Type()
	if f, ok := st.FieldByName(name); ok && f.IsExported() && len(f.Index) == 1 {
		return sv.Field(f.Index[0]), true
	}
	for i := 0; i < st.NumField(); i++ {
		if f := st.Field(i); f.IsExported() && strings.EqualFold(f.Name, name) {
			return sv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func methodByName(rv reflect.Value, name string) (reflect.Value, bool) {
	if m := rv.MethodByName(name); m.IsValid() && callable(m.Type()) {
		return m, true
	}
	t := rv.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if m := t.Method(i); m.IsExported() && strings.EqualFold(m.Name, name) {
			if mv := rv.Method(i); callable(mv.Type()) {
				return mv, true
			}
		}
	}
	return reflect.Value{}, false
}

// callable accepts methods taking no arguments and returning a value,
// optionally followed by an error.
func callable(t reflect.Type) bool {
	if t.NumIn() != 0 {
		return false
	}
	switch t.NumOut() {
	case 1:
		return true
	case 2:
		return t.Out(1) == errorType
	}
	return false
}

func call(m reflect.Value, name string) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("calling %s: %v", name, r)
		}
	}()
	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
