package diff

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksFromOps(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Chunk
	}{
		{
			name: "no ops",
			ops:  nil,
			want: nil,
		},
		{
			name: "all equal",
			ops:  []Operation{{OpEqual, "a\nb\n"}},
			want: nil,
		},
		{
			name: "whole line replaced",
			ops: []Operation{
				{OpEqual, "a\n"}, {OpDelete, "x\n"}, {OpInsert, "b\n"}, {OpEqual, "c\nd\n"},
			},
			want: []Chunk{{EditFrom: 1, EditTo: 2, OrigFrom: 1, OrigTo: 2}},
		},
		{
			name: "intra-line change",
			ops: []Operation{
				{OpEqual, "a\n"}, {OpDelete, "x"}, {OpInsert, "b"}, {OpEqual, "\nc\nd\n"},
			},
			want: []Chunk{{EditFrom: 1, EditTo: 2, OrigFrom: 1, OrigTo: 2}},
		},
		{
			name: "pure insertion",
			ops:  []Operation{{OpEqual, "a\n"}, {OpInsert, "b\n"}, {OpEqual, "c"}},
			want: []Chunk{{EditFrom: 1, EditTo: 2, OrigFrom: 1, OrigTo: 1}},
		},
		{
			name: "pure deletion",
			ops:  []Operation{{OpEqual, "a\n"}, {OpDelete, "b\nc\n"}, {OpEqual, "d"}},
			want: []Chunk{{EditFrom: 1, EditTo: 1, OrigFrom: 1, OrigTo: 3}},
		},
		{
			name: "short equal does not close chunk",
			ops: []Operation{
				{OpDelete, "x"}, {OpInsert, "y"}, {OpEqual, "="}, {OpDelete, "p"}, {OpInsert, "q"}, {OpEqual, "\nz"},
			},
			want: []Chunk{{EditFrom: 0, EditTo: 1, OrigFrom: 0, OrigTo: 1}},
		},
		{
			name: "open chunk flushed at end",
			ops:  []Operation{{OpEqual, "a\n"}, {OpInsert, "b"}},
			want: []Chunk{{EditFrom: 1, EditTo: 2, OrigFrom: 1, OrigTo: 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunksFromOps(tt.ops))
		})
	}
}

func TestMatchingOrigLine(t *testing.T) {
	chunks := []Chunk{
		{EditFrom: 2, EditTo: 4, OrigFrom: 2, OrigTo: 3},
		{EditFrom: 6, EditTo: 6, OrigFrom: 5, OrigTo: 8},
	}

	tests := []struct {
		edit   int
		want   int
		wantOK bool
	}{
		{edit: 0, want: 0, wantOK: true},
		{edit: 1, want: 1, wantOK: true},
		{edit: 2, wantOK: false},
		{edit: 3, wantOK: false},
		{edit: 4, want: 3, wantOK: true},
		{edit: 5, want: 4, wantOK: true},
		{edit: 6, want: 8, wantOK: true},
		{edit: 9, want: 11, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := MatchingOrigLine(tt.edit, chunks)
		require.Equal(t, tt.wantOK, ok, "edit line %d", tt.edit)
		if ok {
			assert.Equal(t, tt.want, got, "edit line %d", tt.edit)
		}
	}
}

func TestMatchingEditLine(t *testing.T) {
	chunks := []Chunk{{EditFrom: 2, EditTo: 4, OrigFrom: 2, OrigTo: 3}}

	got, ok := MatchingEditLine(1, chunks)
	require.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = MatchingEditLine(2, chunks)
	assert.False(t, ok)

	got, ok = MatchingEditLine(3, chunks)
	require.True(t, ok)
	assert.Equal(t, 4, got)
}

// randomDoc builds a document from a small vocabulary so that random pairs share many lines.
func randomDoc(r *rand.Rand) string {
	vocab := []string{"alpha", "beta", "gamma", "", "  indented", "delta epsilon", "}"}
	n := r.Intn(12)
	lines := make([]string, n)
	for i := range lines {
		lines[i] = vocab[r.Intn(len(vocab))]
	}
	return strings.Join(lines, "\n")
}

// Every edit line outside all chunks maps to an original line with identical content.
func TestChunks_CoverEveryDifference(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, alg := range []Algorithm{AlgorithmChars, AlgorithmLines} {
		for iter := 0; iter < 300; iter++ {
			orig, edit := randomDoc(r), randomDoc(r)
			d, err := Compute(orig, edit, Options{Algorithm: alg})
			require.NoError(t, err)

			origLines := strings.Split(orig, "\n")
			editLines := strings.Split(edit, "\n")
			chunks := d.Chunks()

			for ci, c := range chunks {
				if ci > 0 {
					require.LessOrEqual(t, chunks[ci-1].EditTo, c.EditFrom)
					require.LessOrEqual(t, chunks[ci-1].OrigTo, c.OrigFrom)
				}
				require.LessOrEqual(t, c.EditFrom, c.EditTo)
				require.LessOrEqual(t, c.OrigFrom, c.OrigTo)
				require.LessOrEqual(t, c.EditTo, len(editLines))
				require.LessOrEqual(t, c.OrigTo, len(origLines))
			}

			for l := range editLines {
				o, ok := MatchingOrigLine(l, chunks)
				if !ok {
					continue
				}
				require.Less(t, o, len(origLines), "%s: orig=%q edit=%q line %d", alg, orig, edit, l)
				require.Equal(t, origLines[o], editLines[l], "%s: orig=%q edit=%q line %d", alg, orig, edit, l)
			}
		}
	}
}
