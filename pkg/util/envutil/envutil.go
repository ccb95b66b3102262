package envutil

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func ParseEnviron() map[string]string {
	return Parse(os.Environ())
}

// Parse converts KEY=VALUE pairs into a map. Entries without "=" are kept
// with an empty value.
func Parse(pairs []string) map[string]string {
	merged := map[string]string{}

	for _, pair := range pairs {
		splits := strings.SplitN(pair, "=", 2)
		if splits[0] == "" {
			continue
		}
		if len(splits) == 1 {
			merged[splits[0]] = ""
			continue
		}
		merged[splits[0]] = splits[1]
	}

	return merged
}

// Merge layers envs from left to right. Later maps win.
func Merge(envs ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, env := range envs {
		for k, v := range env {
			merged[k] = v
		}
	}
	return merged
}

// ToList renders env as sorted KEY=VALUE pairs suitable for exec.Cmd.Env.
func ToList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(list)
	return list
}
