package models

import (
	"strings"

	dErrors "neighborly/pkg/domain-errors"
)

const (
	MaxLabelLength   = 32
	MaxLabelsPerItem = 10
)

// NormalizeLabels lowercases labels, joins inner whitespace with '-', and drops blanks
// and duplicates. Order of first appearance is preserved.
//
// Example:
//
//	NormalizeLabels([]string{"  Garden Tools ", "garden-tools", "", "Kids"})
//	// Returns: []string{"garden-tools", "kids"}
func NormalizeLabels(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, raw := range labels {
		label := strings.ToLower(strings.Join(strings.Fields(raw), "-"))
		if label == "" {
			continue
		}
		if len(label) > MaxLabelLength {
			return nil, dErrors.New(dErrors.CodeValidation, "tag is too long: "+label)
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if len(out) > MaxLabelsPerItem {
		return nil, dErrors.New(dErrors.CodeValidation, "too many tags")
	}
	return out, nil
}
