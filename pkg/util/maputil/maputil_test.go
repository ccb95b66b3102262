package maputil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecursivelyStringifyKeys(t *testing.T) {
	in := map[interface{}]interface{}{
		"name": "integration",
		"steps": []interface{}{
			map[interface{}]interface{}{"name": "install", "command": []interface{}{"pip", "install"}},
		},
	}
	got, err := RecursivelyStringifyKeys(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]interface{}{
		"name": "integration",
		"steps": []interface{}{
			map[string]interface{}{"name": "install", "command": []interface{}{"pip", "install"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RecursivelyStringifyKeys() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecursivelyStringifyKeysRejectsNonStringKeys(t *testing.T) {
	in := map[interface{}]interface{}{"env": map[interface{}]interface{}{1: "one"}}
	if _, err := RecursivelyStringifyKeys(in); err == nil {
		t.Fatal("expected error for integer key")
	}
}

func TestRecursivelyStringifyKeysRejectsNonMapTopLevel(t *testing.T) {
	if _, err := RecursivelyStringifyKeys([]interface{}{"a"}); err == nil {
		t.Fatal("expected error for top-level list")
	}
}
