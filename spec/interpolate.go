package spec

import (
	"os"
	"sort"
	"strings"
)

// Lookup resolves an environment variable reference during interpolation.
// The second return reports whether the variable is set.
type Lookup func(name string) (string, bool)

// OSLookup resolves references against the process environment.
func OSLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Expand substitutes $VAR and ${VAR} references in s using lookup.
// ${VAR:-default} substitutes the default when VAR is unset or empty.
// Unset variables without a default expand to the empty string and are
// returned in missing, so callers can fail fast instead of silently
// passing empty values through.
func Expand(s string, lookup Lookup) (expanded string, missing []string) {
	expanded = os.Expand(s, func(ref string) string {
		name, def, hasDef := strings.Cut(ref, ":-")
		val, ok := lookup(name)
		if hasDef && (!ok || val == "") {
			return def
		}
		if !ok {
			missing = append(missing, name)
			return ""
		}
		return val
	})
	return expanded, missing
}

// ExpandEnvironment interpolates every value of a service environment map,
// returning the expanded copy and the sorted, deduplicated names of
// variables that were referenced but unset. The input map is not mutated.
func ExpandEnvironment(env map[string]string, lookup Lookup) (map[string]string, []string) {
	if len(env) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(env))
	seen := make(map[string]bool)
	var missing []string

	for k, v := range env {
		expanded, miss := Expand(v, lookup)
		out[k] = expanded
		for _, name := range miss {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}

	sort.Strings(missing)
	return out, missing
}
