package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "PACKAGE", "TAG", "STATUS")
	table.AddRow("world.opensemanticworld.package.common", "v0.1.0.post000001001000", "succeeded")
	table.AddRow("world.a", "v1", "failed", "ignored")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "PACKAGE "))
	assert.Contains(t, lines[1], "─")
	assert.Equal(t, 2, table.Len())

	// columns line up under the header
	tagCol := strings.Index(lines[0], "TAG")
	assert.Equal(t, tagCol, strings.Index(lines[2], "v0.1.0"))
	assert.Equal(t, tagCol, strings.Index(lines[3], "v1"))
	assert.NotContains(t, buf.String(), "ignored")
	assert.False(t, strings.HasSuffix(lines[3], " "))
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable_Render(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Version", "0.1.1")
	kv.AddRow("Go", "go1.23")
	kv.Render()

	assert.Equal(t, "Version: 0.1.1\nGo:      go1.23\n", buf.String())
}

func TestFormat(t *testing.T) {
	out := Format(Message{
		Level:       LevelError,
		Context:     "build failed",
		Problem:     "1 of 2 packages failed",
		Details:     []string{"a@v1: boom"},
		Suggestions: []string{"b"},
		Hints:       []string{"Get help: oswgen --help"},
		NoColor:     true,
	})

	assert.Contains(t, out, "❌ BUILD FAILED: 1 of 2 packages failed")
	assert.Contains(t, out, "   a@v1: boom")
	assert.Contains(t, out, "Did you mean: b?")
	assert.Contains(t, out, "→ Get help: oswgen --help")
}

func TestFormat_Levels(t *testing.T) {
	assert.True(t, strings.HasPrefix(Format(Message{Level: LevelWarning, Problem: "w", NoColor: true}), "⚠️ w"))
	assert.True(t, strings.HasPrefix(Format(Message{Level: LevelInfo, Problem: "i", NoColor: true}), "ℹ️ i"))
}

func TestSuccessAndFailure(t *testing.T) {
	assert.Equal(t, "✓ done", Success("done", true))
	assert.Equal(t, "✗ broken", Failure("broken", true))
}

func TestMessages(t *testing.T) {
	out := Format(BuildFailed(1, 3, []string{"x"}, true))
	assert.Contains(t, out, "1 of 3 packages failed")

	out = Format(NoBuildsFound("world.foo", []string{"world.fo0"}, true))
	assert.Contains(t, out, "world.fo0")

	out = Format(NoPackages(true))
	assert.Contains(t, out, "NO PACKAGES")
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"world.core", "world.cor", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Distance(tt.a, tt.b), "%q/%q", tt.a, tt.b)
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{
		"world.opensemanticworld.package.common",
		"world.opensemanticworld.package.core",
		"world.opensemanticworld.package.common",
		"something.else",
	}

	got := Suggest("world.opensemanticworld.package.comon", candidates)
	require.NotEmpty(t, got)
	assert.Equal(t, "world.opensemanticworld.package.common", got[0])
	assert.NotContains(t, got, "something.else")
	assert.Len(t, got, 2)

	assert.Empty(t, Suggest("zzz", candidates))
}
