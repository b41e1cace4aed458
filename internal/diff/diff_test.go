package diff

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concatSide(ops []Operation, skip Op) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Op != skip {
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

func TestCompute_SingleLineChange(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmChars, AlgorithmLines} {
		t.Run(string(alg), func(t *testing.T) {
			d, err := Compute("a\nx\nc\nd\n", "a\nb\nc\nd\n", Options{Algorithm: alg})
			require.NoError(t, err)
			assert.Equal(t, []Chunk{{EditFrom: 1, EditTo: 2, OrigFrom: 1, OrigTo: 2}}, d.Chunks())
		})
	}
}

func TestCompute_Reconstructs(t *testing.T) {
	orig := "func main() {\n\tfmt.Println(\"hi\")\n}\n"
	edit := "func main() {\n\tfmt.Println(\"hello\")\n\treturn\n}\n"
	for _, alg := range []Algorithm{AlgorithmChars, AlgorithmLines} {
		d, err := Compute(orig, edit, Options{Algorithm: alg})
		require.NoError(t, err)
		assert.Equal(t, orig, concatSide(d.Ops, OpInsert))
		assert.Equal(t, edit, concatSide(d.Ops, OpDelete))
		for i := 1; i < len(d.Ops); i++ {
			assert.NotEqual(t, d.Ops[i-1].Op, d.Ops[i].Op)
		}
	}
}

func TestCompute_Identical(t *testing.T) {
	d, err := Compute("same\ntext", "same\ntext", Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Chunks())
	assert.Equal(t, []Operation{{OpEqual, "same\ntext"}}, d.Ops)
}

func TestCompute_Empty(t *testing.T) {
	d, err := Compute("", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Ops)
	assert.Empty(t, d.Chunks())

	d, err = Compute("", "a\nb", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Chunk{{EditFrom: 0, EditTo: 2, OrigFrom: 0, OrigTo: 1}}, d.Chunks())
}

func TestCompute_IgnoreWhitespace(t *testing.T) {
	orig := "a\nb c\nd\n"
	edit := "a\nb  c\nd\n"

	d, err := Compute(orig, edit, Options{})
	require.NoError(t, err)
	assert.Len(t, d.Chunks(), 1)

	d, err = Compute(orig, edit, Options{IgnoreWhitespace: true})
	require.NoError(t, err)
	assert.True(t, d.IgnoreWhitespace)
	assert.Empty(t, d.Chunks())

	// Ops still describe both texts exactly.
	assert.Equal(t, orig, concatSide(d.Ops, OpInsert))
	assert.Equal(t, edit, concatSide(d.Ops, OpDelete))
}

func TestDiff_ChangedSpan(t *testing.T) {
	tests := []struct {
		text     string
		ignore   bool
		from, to int
	}{
		{text: " old ", from: 0, to: 5},
		{text: " old ", ignore: true, from: 1, to: 4},
		{text: "\tx y", ignore: true, from: 1, to: 4},
		{text: "  ", ignore: true, from: 2, to: 2},
		{text: "", ignore: true, from: 0, to: 0},
	}
	for _, tt := range tests {
		from, to := Diff{IgnoreWhitespace: tt.ignore}.ChangedSpan(tt.text)
		assert.Equal(t, [2]int{tt.from, tt.to}, [2]int{from, to}, "%q ignore=%v", tt.text, tt.ignore)
	}
}

func TestCompute_RecoversPanic(t *testing.T) {
	primitives["panics"] = func(orig, edit string, opts Options) []Operation {
		panic("index out of range")
	}
	t.Cleanup(func() { delete(primitives, "panics") })

	d, err := Compute("a", "b", Options{Algorithm: "panics"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComputation)
	assert.Contains(t, err.Error(), "index out of range")
	assert.Empty(t, d.Ops)
}

func TestCompute_RejectsInconsistentOps(t *testing.T) {
	primitives["lossy"] = func(orig, edit string, opts Options) []Operation {
		return []Operation{{OpEqual, orig}}
	}
	t.Cleanup(func() { delete(primitives, "lossy") })

	_, err := Compute("a\nb", "a\nc", Options{Algorithm: "lossy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComputation)

	// Ignoring whitespace does not relax the check.
	_, err = Compute("a b", "ab", Options{Algorithm: "lossy", IgnoreWhitespace: true})
	assert.ErrorIs(t, err, ErrComputation)
}

func TestCompute_UnknownAlgorithm(t *testing.T) {
	_, err := Compute("a", "b", Options{Algorithm: "patience"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrComputation))
}

func TestCleanup(t *testing.T) {
	ops := []Operation{
		{OpEqual, "a"},
		{OpEqual, ""},
		{OpEqual, "b\n"},
		{OpInsert, " \t"},
		{OpEqual, "c"},
		{OpDelete, "x"},
		{OpDelete, "y"},
	}

	assert.Equal(t, []Operation{
		{OpEqual, "ab\n"},
		{OpInsert, " \t"},
		{OpEqual, "c"},
		{OpDelete, "xy"},
	}, Cleanup(ops, false))

	assert.Equal(t, []Operation{
		{OpEqual, "ab\nc"},
		{OpDelete, "xy"},
	}, Cleanup(ops, true))

	// Blank Equal text is kept.
	assert.Equal(t, []Operation{{OpDelete, "x"}, {OpEqual, " "}, {OpInsert, "y"}},
		Cleanup([]Operation{{OpDelete, "x"}, {OpEqual, " "}, {OpInsert, "y"}}, true))

	// Input is untouched.
	assert.Equal(t, "a", ops[0].Text)
}

func TestCleanup_NewlineIsNotWhitespace(t *testing.T) {
	ops := []Operation{{OpEqual, "a"}, {OpInsert, "\n"}, {OpEqual, "b"}}
	assert.Equal(t, ops, Cleanup(ops, true))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Diff
		wantErr bool
	}{
		{
			name: "ok",
			d:    Diff{OrigText: "ab", EditText: "ac", Ops: []Operation{{OpEqual, "a"}, {OpDelete, "b"}, {OpInsert, "c"}}},
		},
		{
			name:    "empty op",
			d:       Diff{OrigText: "a", EditText: "a", Ops: []Operation{{OpEqual, "a"}, {OpInsert, ""}}},
			wantErr: true,
		},
		{
			name:    "adjacent same op",
			d:       Diff{OrigText: "ab", EditText: "ab", Ops: []Operation{{OpEqual, "a"}, {OpEqual, "b"}}},
			wantErr: true,
		},
		{
			name:    "does not reconstruct",
			d:       Diff{OrigText: "ab", EditText: "a", Ops: []Operation{{OpEqual, "a"}}},
			wantErr: true,
		},
		{
			name: "ignoring whitespace still reconstructs",
			d: Diff{
				OrigText: "a b\nc", EditText: "ab\nc", IgnoreWhitespace: true,
				Ops: []Operation{{OpEqual, "ab\nc"}},
			},
			wantErr: true,
		},
		{
			name: "ignoring whitespace with exact ops",
			d: Diff{
				OrigText: "a b\nc", EditText: "ab\nc", IgnoreWhitespace: true,
				Ops: []Operation{{OpEqual, "a"}, {OpDelete, " "}, {OpEqual, "b\nc"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmChars, a)

	a, err = ParseAlgorithm(" Lines ")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmLines, a)

	_, err = ParseAlgorithm("words")
	assert.Error(t, err)
}

func TestLineCount(t *testing.T) {
	assert.Equal(t, 1, LineCount(""))
	assert.Equal(t, 2, LineCount("a\n"))
	assert.Equal(t, 3, LineCount("a\nb\nc"))
}
