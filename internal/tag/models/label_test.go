package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: []string{}},
		{name: "blanks dropped", input: []string{"", "  "}, expected: []string{}},
		{
			name:     "case and whitespace folded",
			input:    []string{"  Garden Tools ", "garden-tools", "GARDEN   tools"},
			expected: []string{"garden-tools"},
		},
		{
			name:     "order preserved",
			input:    []string{"kids", "books", "Kids"},
			expected: []string{"kids", "books"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLabels(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeLabelsLimits(t *testing.T) {
	_, err := NormalizeLabels([]string{strings.Repeat("a", MaxLabelLength+1)})
	assert.Error(t, err)

	many := make([]string, 0, MaxLabelsPerItem+1)
	for i := 0; i <= MaxLabelsPerItem; i++ {
		many = append(many, strings.Repeat("t", i+1))
	}
	_, err = NormalizeLabels(many)
	assert.Error(t, err)
}
