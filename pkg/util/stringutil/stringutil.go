package stringutil

import (
	"regexp"
	"strings"

	"github.com/huandu/xstrings"
)

var (
	unsafeChars  = regexp.MustCompile(`[^a-z0-9_]+`)
	fileReplacer = strings.NewReplacer(".", "-", " ", "-", "/", "-")
)

// ToFileName turns a step name like "Unit Tests (GPU)" into "unit-tests-gpu".
func ToFileName(name string) string {
	n := xstrings.ToKebabCase(fileReplacer.Replace(name))
	n = strings.Trim(unsafeChars.ReplaceAllString(n, "-"), "-")
	if n == "" {
		return "step"
	}
	return n
}
