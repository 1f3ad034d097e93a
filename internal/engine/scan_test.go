package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindEarliest(t *testing.T) {
	tests := []struct {
		name       string
		buf        string
		from       int
		markers    []string
		wantIdx    int
		wantMarker string
	}{
		{"single match", "hello >>> ", 0, []string{">>>"}, 6, ">>>"},
		{"no match", "hello", 0, []string{">>>"}, -1, ""},
		{"earliest start wins", "$ then >>>", 0, []string{">>>", "$"}, 0, "$"},
		{"tie goes to first listed", "abc>>> ", 0, []string{">>", ">>>"}, 3, ">>"},
		{"tie goes to first listed reversed", "abc>>> ", 0, []string{">>>", ">>"}, 3, ">>>"},
		{"search starts at from", ">>> one >>> two", 3, []string{">>>"}, 8, ">>>"},
		{"from at end", "abc", 3, []string{"a"}, -1, ""},
		{"from beyond end", "abc", 10, []string{"a"}, -1, ""},
		{"empty markers ignored", "abc", 0, []string{"", "c"}, 2, "c"},
		{"no markers", "abc", 0, nil, -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, marker := findEarliest([]byte(tt.buf), tt.from, tt.markers)
			assert.Equal(t, tt.wantIdx, idx)
			assert.Equal(t, tt.wantMarker, marker)
		})
	}
}

func TestSkipWhitespace(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		pos  int
		want int
	}{
		{"crlf", ">>>\r\nnext", 3, 5},
		{"spaces and tabs", "> \t x", 1, 4},
		{"nothing to skip", ">>>x", 3, 3},
		{"runs to end", ">>> \n", 3, 5},
		{"at end", ">>>", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, skipWhitespace([]byte(tt.buf), tt.pos))
		})
	}
}
