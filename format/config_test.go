package format

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "  ", cfg.Indent())
	cfg.UseTabs = true
	assert.Equal(t, "\t", cfg.Indent())
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mustache-json5-fmt.yaml")
	writeFile(t, path, "indent_size: 4\ntrailing_commas: always\nmustache_spacing:\n  after_open: true\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.IndentSize = 4
	want.TrailingCommas = TrailingCommasAlways
	want.MustacheSpacing.AfterOpen = true
	assert.Equal(t, want, cfg)
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mustache-json5-fmt.json")
	writeFile(t, path, `{"use_tabs": true, "quote_style": "single", "comment_handling": {"preserve_formatting": false}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.UseTabs)
	assert.Equal(t, QuoteSingle, cfg.QuoteStyle)
	assert.False(t, cfg.CommentHandling.PreserveFormatting)
	assert.Equal(t, 2, cfg.IndentSize)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"unknown.yaml":    "indent_width: 4\n",
		"bad-enum.yaml":   "quote_style: backtick\n",
		"zero-tab.yaml":   "tab_width: 0\n",
		"not-a-map.yaml":  "- 1\n",
		"negative.yaml":   "max_line_length: -1\n",
		"bad-commas.json": `{"trailing_commas": "sometimes"}`,
	}
	for name, data := range tests {
		path := filepath.Join(dir, name)
		writeFile(t, path, data)
		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, path, err := DiscoverConfig(nested)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig(), cfg)

	want := filepath.Join(root, "a", ".mustache-json5-fmt.yml")
	writeFile(t, want, "indent_size: 8\n")
	cfg, path, err = DiscoverConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, want, path)
	assert.Equal(t, 8, cfg.IndentSize)

	// The JSON name wins within one directory.
	first := filepath.Join(root, "a", ".mustache-json5-fmt.json")
	writeFile(t, first, `{"indent_size": 3}`)
	cfg, path, err = DiscoverConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, first, path)
	assert.Equal(t, 3, cfg.IndentSize)
}
