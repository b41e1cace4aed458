package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePaletteName(t *testing.T) {
	tests := map[PaletteName]PaletteName{
		"":        PaletteAuto,
		"default": PaletteAuto,
		" Dark ":  PaletteDark,
		"light":   PaletteLight,
		"mono":    PalettePlain,
		"none":    PalettePlain,
		"bogus":   PaletteAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePaletteName(in), "input %q", in)
	}
}

func TestParsePaletteName(t *testing.T) {
	got, ok := ParsePaletteName("LIGHT")
	assert.True(t, ok)
	assert.Equal(t, PaletteLight, got)

	_, ok = ParsePaletteName("sepia")
	assert.False(t, ok)
}

func TestNewColorPalette(t *testing.T) {
	plain := newColorPalette(PalettePlain)
	assert.False(t, plain.colorized)
	assert.Nil(t, plain.insertedBackground)

	dark := newColorPalette(PaletteDark)
	assert.True(t, dark.colorized)
	assert.False(t, dark.isLight)
	assert.NotNil(t, dark.deletedBackground)

	light := newColorPalette(PaletteLight)
	assert.True(t, light.isLight)
}

func TestHighlighter(t *testing.T) {
	assert.Nil(t, newHighlighter("main.go", "package main", "", newColorPalette(PalettePlain)))
	assert.Nil(t, newHighlighter("main.go", "package main", ThemeNone, darkPalette()))

	hl := newHighlighter("main.go", "package main\n\nfunc f() {}", "", darkPalette())
	require.NotNil(t, hl)
	lines := hl.lines("package main\n\nfunc f() {}")
	require.Len(t, lines, 3)
	require.NotEmpty(t, lines[0])
	assert.Equal(t, 0, lines[0][0].from)
	assert.Equal(t, len("package"), lines[0][0].to)
	assert.NotNil(t, lines[0][0].fg)
	assert.Empty(t, lines[1])

	var nilHL *highlighter
	assert.Nil(t, nilHL.lines("x"))
}
