package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codalotl/mergeview/internal/tui"
)

// isolate points HOME at an empty directory and makes a fresh working directory, so no real configuration leaks into a test. It returns the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(home, 0o755))
	require.NoError(t, os.MkdirAll(work, 0o755))
	t.Setenv("HOME", home)
	t.Setenv("MERGEVIEW_LOG_FILE", "")
	t.Chdir(work)
	return work
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func run(args ...string) (int, string, string, error) {
	var out, errOut bytes.Buffer
	code, err := Run(append([]string{"mergeview"}, args...), &RunOptions{Out: &out, Err: &errOut})
	return code, out.String(), errOut.String(), err
}

func TestRun_Help(t *testing.T) {
	isolate(t)
	code, out, errOut, err := run("-h")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "align")
	assert.Empty(t, errOut)

	code, out, _, err = run()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage")
}

func TestRun_Version(t *testing.T) {
	isolate(t)
	code, out, _, err := run("version")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, Version+"\n", out)
}

func TestRun_UsageErrors(t *testing.T) {
	isolate(t)
	tests := [][]string{
		{"bogus"},
		{"--nope"},
		{"diff", "only-one"},
		{"chunks", "a", "b", "c"},
		{"view", "edit"},
		{"version", "extra"},
		{"diff", "--color", "sometimes", "a", "b"},
		{"align", "--width", "0", "a", "b"},
	}
	for _, args := range tests {
		code, _, errOut, err := run(args...)
		assert.Error(t, err, "args %v", args)
		assert.Equal(t, 2, code, "args %v", args)
		assert.Contains(t, errOut, "--help", "args %v", args)
	}
}

func TestRun_MissingFileIsRuntimeError(t *testing.T) {
	isolate(t)
	code, _, errOut, err := run("chunks", "nope.txt", "nope2.txt")
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(errOut, "error: "), errOut)
	assert.NotContains(t, errOut, "--help")
}

func TestRun_Chunks(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, "orig.txt"), "a\nb\nc")
	writeFile(t, filepath.Join(work, "edit.txt"), "a\nB\nc")

	code, out, _, err := run("chunks", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "edit[1,2) orig[1,2)\n", out)

	code, out, _, err = run("chunks", "--json", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	var got []chunkJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []chunkJSON{{OrigFrom: 1, OrigTo: 2, EditFrom: 1, EditTo: 2}}, got)
}

func TestRun_ChunksIgnoreWhitespace(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, "orig.txt"), "a\nb  c\nd")
	writeFile(t, filepath.Join(work, "edit.txt"), "a\nb c\nd")

	_, out, _, err := run("chunks", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, out, _, err = run("chunks", "--ignore-whitespace", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_Diff(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, "orig.txt"), "a\nb\nc")
	writeFile(t, filepath.Join(work, "edit.txt"), "a\nB\nc")

	code, out, _, err := run("diff", "--color", "never", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, strings.Join([]string{
		"--- orig.txt",
		"+++ edit.txt",
		"@@ -1,3 +1,3 @@",
		" a",
		"-b",
		"+B",
		" c",
	}, "\n")+"\n", out)

	_, out, _, err = run("diff", "--color", "always", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")

	// A buffer is not a terminal.
	_, out, _, err = run("diff", "orig.txt", "edit.txt")
	require.NoError(t, err)
	assert.NotContains(t, out, "\x1b[")
}

func TestRun_Align(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, "edit.txt"), "a\nb\nc")
	writeFile(t, filepath.Join(work, "orig.txt"), "a\nx\ny\nb\nc")

	code, out, _, err := run("align", "--width", "40", "--palette", "plain", "--theme", "none", "edit.txt", "orig.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "edit: edit.txt"), lines[0])
	assert.Contains(t, lines[0], "│orig.txt")

	left := func(l string) string { return strings.TrimSpace(strings.SplitN(l, "│", 2)[0]) }
	assert.Empty(t, left(lines[2]), "spacer")
	assert.Empty(t, left(lines[3]), "spacer")
	assert.True(t, strings.HasPrefix(lines[4], "  2   b"), lines[4])
	assert.Contains(t, lines[4], "│  4   b")

	// Without alignment the panes are printed line for line.
	_, out, _, err = run("align", "--align=false", "--width", "40", "--palette", "plain", "--theme", "none", "edit.txt", "orig.txt")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.True(t, strings.HasPrefix(lines[2], "  2   b"), lines[2])
}

func TestRun_AlignThreePanes(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, "edit"), "a\nb")
	writeFile(t, filepath.Join(work, "left"), "a\nl\nb")
	writeFile(t, filepath.Join(work, "right"), "a\nb")

	_, out, _, err := run("align", "--width", "92", "--palette", "plain", "--theme", "none", "edit", "left", "right")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 4)

	cols := strings.Split(lines[0], "│")
	require.Len(t, cols, 3)
	assert.Equal(t, "left", strings.TrimSpace(cols[0]))
	assert.Equal(t, "edit: edit", strings.TrimSpace(cols[1]))
	assert.Equal(t, "right", strings.TrimSpace(cols[2]))

	// "b" is on the same row in every pane.
	row := strings.Split(lines[3], "│")
	require.Len(t, row, 3)
	for _, c := range row {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(c), "b"), "%q", lines[3])
	}
}

func TestRun_View(t *testing.T) {
	isolate(t)
	var got tui.Config
	orig := runTUI
	t.Cleanup(func() { runTUI = orig })
	runTUI = func(_ context.Context, cfg tui.Config) error {
		got = cfg
		return nil
	}

	code, _, _, err := run("view", "--collapse", "--margin", "4", "--algorithm", "lines", "--watch", "--palette", "light", "e.txt", "l.txt", "r.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, "e.txt", got.EditPath)
	assert.Equal(t, []string{"l.txt", "r.txt"}, got.OrigPaths)
	assert.True(t, got.Watch)
	assert.Equal(t, tui.PaletteLight, got.Palette)
	assert.True(t, got.Session.Collapse)
	assert.Equal(t, 4, got.Session.CollapseMargin)
	assert.True(t, got.Session.Align)
	assert.True(t, got.Session.ScrollLock)
	assert.EqualValues(t, "lines", got.Session.Diff.Diff.Algorithm)
	assert.NotNil(t, got.Logger)
}

func TestRun_ConfigDefaults(t *testing.T) {
	isolate(t)
	code, out, _, err := run("config")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var got Config
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	want := Config{
		Align:          true,
		CollapseMargin: 2,
		Algorithm:      "chars",
		Palette:        "auto",
		FastDelayMS:    20,
		SlowDelayMS:    250,
		ScrollLock:     true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ConfigCascade(t *testing.T) {
	work := isolate(t)
	home := os.Getenv("HOME")
	writeFile(t, filepath.Join(home, ".mergeview", "config.json"), `{"collapse": true, "collapsemargin": 5, "theme": "dracula"}`)
	writeFile(t, filepath.Join(work, ".mergeview", "config.json"), `{"collapsemargin": 3}`)

	sub := filepath.Join(work, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)
	t.Setenv("MERGEVIEW_ALGORITHM", "lines")

	_, out, _, err := run("config")
	require.NoError(t, err)
	var got Config
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Collapse, "from the home config")
	assert.Equal(t, "dracula", got.Theme, "from the home config")
	assert.Equal(t, 3, got.CollapseMargin, "the nearest project config wins over home")
	assert.Equal(t, "lines", got.Algorithm, "environment wins over files")
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, ".mergeview", "config.json"), `{"collapse": true, "align": false}`)

	var got tui.Config
	orig := runTUI
	t.Cleanup(func() { runTUI = orig })
	runTUI = func(_ context.Context, cfg tui.Config) error {
		got = cfg
		return nil
	}

	_, _, _, err := run("view", "--collapse=false", "e", "o")
	require.NoError(t, err)
	assert.False(t, got.Session.Collapse, "flag wins")
	assert.False(t, got.Session.Align, "unset flag defers to the file")
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := map[string]string{
		"unknown key":   `{"colour": "red"}`,
		"bad algo":      `{"algorithm": "patience"}`,
		"bad palette":   `{"palette": "sepia"}`,
		"bad delays":    `{"fastdelayms": 500, "slowdelayms": 100}`,
		"neg margin":    `{"collapsemargin": -1}`,
		"bad json":      `{`,
		"neg tolerance": `{"matchtolerance": -2}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			work := isolate(t)
			writeFile(t, filepath.Join(work, ".mergeview", "config.json"), body)
			code, _, errOut, err := run("config")
			require.Error(t, err)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, "configuration")
		})
	}
}

func TestNearestFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".mergeview", "config.json"), "{}")
	deep := filepath.Join(dir, "x", "y")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, filepath.Join(dir, ".mergeview", "config.json"), nearestFile(deep, filepath.Join(".mergeview", "config.json")))
	assert.Empty(t, nearestFile(deep, "no-such-file-anywhere.json"))
}
