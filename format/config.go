package format

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/odvcencio/mjson5/syntax"
)

// ConfigNames are the file names DiscoverConfig looks for, in order.
var ConfigNames = []string{
	".mustache-json5-fmt.json",
	".mustache-json5-fmt.yaml",
	".mustache-json5-fmt.yml",
}

// Predefined errors.
var (
	ErrInvalidConfig = syntax.NewError("invalid format config")
	ErrSyntax        = syntax.NewError("document has syntax errors")
)

// TrailingCommas selects how commas after the last member are handled.
type TrailingCommas string

const (
	TrailingCommasNever    TrailingCommas = "never"
	TrailingCommasAlways   TrailingCommas = "always"
	TrailingCommasPreserve TrailingCommas = "preserve"
)

// QuoteStyle selects the quote character of strings.
type QuoteStyle string

const (
	QuoteDouble   QuoteStyle = "double"
	QuoteSingle   QuoteStyle = "single"
	QuotePreserve QuoteStyle = "preserve"
)

// MustacheSpacing controls the padding inside tag delimiters.
type MustacheSpacing struct {
	AfterOpen   bool `yaml:"after_open" json:"after_open"`
	BeforeClose bool `yaml:"before_close" json:"before_close"`
}

// CommentHandling controls how comments are rewritten.
type CommentHandling struct {
	// PreserveFormatting keeps comments byte for byte. When false, line
	// comments get a single space after the slashes and lose trailing
	// blanks.
	PreserveFormatting bool `yaml:"preserve_formatting" json:"preserve_formatting"`
}

// Config is the formatter configuration.
type Config struct {
	IndentSize         int             `yaml:"indent_size" json:"indent_size"`
	TabWidth           int             `yaml:"tab_width" json:"tab_width"`
	UseTabs            bool            `yaml:"use_tabs" json:"use_tabs"`
	MaxLineLength      int             `yaml:"max_line_length" json:"max_line_length"`
	PreserveEmptyLines bool            `yaml:"preserve_empty_lines" json:"preserve_empty_lines"`
	TrailingCommas     TrailingCommas  `yaml:"trailing_commas" json:"trailing_commas"`
	QuoteStyle         QuoteStyle      `yaml:"quote_style" json:"quote_style"`
	MustacheSpacing    MustacheSpacing `yaml:"mustache_spacing" json:"mustache_spacing"`
	CommentHandling    CommentHandling `yaml:"comment_handling" json:"comment_handling"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	return Config{
		IndentSize:         2,
		TabWidth:           2,
		PreserveEmptyLines: true,
		TrailingCommas:     TrailingCommasPreserve,
		QuoteStyle:         QuotePreserve,
		CommentHandling:    CommentHandling{PreserveFormatting: true},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.IndentSize <= 0:
		return ErrInvalidConfig.Wrap(errors.New("indent_size must be greater than 0"))
	case c.TabWidth <= 0:
		return ErrInvalidConfig.Wrap(errors.New("tab_width must be greater than 0"))
	case c.MaxLineLength < 0:
		return ErrInvalidConfig.Wrap(errors.New("max_line_length must not be negative"))
	}
	switch c.TrailingCommas {
	case TrailingCommasNever, TrailingCommasAlways, TrailingCommasPreserve:
	default:
		return ErrInvalidConfig.Wrap(fmt.Errorf("unknown trailing_commas %q", c.TrailingCommas))
	}
	switch c.QuoteStyle {
	case QuoteDouble, QuoteSingle, QuotePreserve:
	default:
		return ErrInvalidConfig.Wrap(fmt.Errorf("unknown quote_style %q", c.QuoteStyle))
	}
	return nil
}

// Indent returns one level of indentation.
func (c Config) Indent() string {
	if c.UseTabs {
		return "\t"
	}
	return strings.Repeat(" ", c.IndentSize)
}

// LoadConfig reads a JSON or YAML configuration file. Settings absent from
// the file keep their defaults; unknown settings are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return Config{}, ErrInvalidConfig.Wrap(err).With(slog.String("path", path))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DiscoverConfig looks for a configuration file in dir and its parents,
// stopping after the user's home directory. It returns the defaults and an
// empty path when none is found.
func DiscoverConfig(dir string) (Config, string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, "", err
	}
	home, _ := os.UserHomeDir()
	for {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadConfig(path)
				return cfg, path, err
			}
		}
		parent := filepath.Dir(dir)
		if dir == home || parent == dir {
			return DefaultConfig(), "", nil
		}
		dir = parent
	}
}
