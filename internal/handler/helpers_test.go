package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 24, 24},
		{"0", 1, 1},
		{"-3", 7, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, atoiDefault(tt.input, tt.def), "atoiDefault(%q, %d)", tt.input, tt.def)
	}
}

func TestParseDate(t *testing.T) {
	assert.True(t, parseDate("").IsZero())
	assert.True(t, parseDate("15-06-2025").IsZero())
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), parseDate("2025-06-15"))
}
