// Package strings provides string manipulation utilities.
package strings

// Dedupe removes duplicates and empty strings from a slice, preserving first
// occurrence order. Values are compared verbatim; no trimming or case folding
// happens, since contact matching is exact-value.
//
// Example:
//
//	Dedupe([]string{"foo", "bar", "foo", ""})
//	// Returns: []string{"foo", "bar"}
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}

	return result
}
