package maputil

import (
	"fmt"
	"reflect"
)

func CastKeysToStrings(m map[interface{}]interface{}) (map[string]interface{}, error) {
	r := map[string]interface{}{}
	for k, v := range m {
		str, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("Unexpected type %s for key %v", reflect.TypeOf(k), k)
		}
		r[str] = v
	}
	return r, nil
}

// RecursivelyStringifyKeys helps converting any map object into a go-jsonscheme-friendly map
func RecursivelyStringifyKeys(m interface{}) (map[string]interface{}, error) {
	mm, err := _recursivelyStringifyKeys(m)
	if err != nil {
		return nil, err
	}
	if ms, ok := mm.(map[string]interface{}); ok {
		return ms, nil
	}
	return nil, fmt.Errorf("expected a mapping at the top level, got %T", mm)
}

func _recursivelyStringifyKeys(m interface{}) (interface{}, error) {
	switch src := m.(type) {
	case map[string]interface{}:
		dst := map[string]interface{}{}
		for k, v1 := range src {
			v2, err := _recursivelyStringifyKeys(v1)
			if err != nil {
				return nil, err
			}
			dst[k] = v2
		}
		return dst, nil
	case []interface{}:
		dst := make([]interface{}, len(src))
		for i, v1 := range src {
			v2, err := _recursivelyStringifyKeys(v1)
			if err != nil {
				return nil, err
			}
			dst[i] = v2
		}
		return dst, nil
	case map[interface{}]interface{}:
		converted, err := CastKeysToStrings(src)
		if err != nil {
			return nil, err
		}
		return _recursivelyStringifyKeys(converted)
	}
	return m, nil
}
