// Package strings provides string list helpers for configuration parsing.
package strings

import (
	"strings"
)

// SplitList splits v on sep, trims each element and drops empty and repeated
// entries. Order of first occurrence is preserved.
//
// Example:
//
//	SplitList(" b1:9092, b2:9092,,b1:9092", ",")
//	// Returns: []string{"b1:9092", "b2:9092"}
func SplitList(v, sep string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, sep)
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
