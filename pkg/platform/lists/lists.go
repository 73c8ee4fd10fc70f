// Package lists cleans user supplied string lists such as broker addresses
// and identifier scheme names.
package lists

import "strings"

// Clean trims every element and drops blanks and repeats, keeping the first
// occurrence in order.
func Clean(values []string) []string {
	return clean(values, strings.TrimSpace)
}

// CleanFold is Clean with elements compared and returned lower-cased.
func CleanFold(values []string) []string {
	return clean(values, func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
}

func clean(values []string, norm func(string) string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
