package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("print('hello')\n", Options{
		Language: "python",
		Style:    "friendly",
		Title:    "Greeting <b>",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Greeting &lt;b&gt;</title>", "title must be escaped")
	assert.Contains(t, out, "<style>")
	assert.Contains(t, out, "<pre")
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "<table", "no line-number table unless requested")
}

func TestRender_LineNumbers(t *testing.T) {
	out, err := Render("a = 1\nb = 2\n", Options{Language: "python", Style: "friendly", LineNos: true})
	require.NoError(t, err)
	assert.Contains(t, out, "<table")
}

func TestRender_EscapesCode(t *testing.T) {
	out, err := Render("<script>alert(1)</script>", Options{Language: "text", Style: "friendly"})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>alert(1)</script>")
}

func TestRender_Unknown(t *testing.T) {
	_, err := Render("x", Options{Language: "klingon", Style: "friendly"})
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	_, err = Render("x", Options{Language: "python", Style: "no-such-style"})
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

func TestValidLanguage(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"python", true},
		{"Python", true},
		{"go", true},
		{"golang", true},
		{"javascript", true},
		{"", false},
		{"main.go", false},
		{"klingon", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidLanguage(tt.name))
		})
	}
}

func TestValidStyle(t *testing.T) {
	assert.True(t, ValidStyle("friendly"))
	assert.True(t, ValidStyle("monokai"))
	assert.False(t, ValidStyle("no-such-style"))
	assert.False(t, ValidStyle(""))
}

func TestLanguagesAndStyles(t *testing.T) {
	langs := Languages()
	assert.Contains(t, langs, "python")
	assert.IsIncreasing(t, langs)

	assert.Contains(t, Styles(), "friendly")
}
