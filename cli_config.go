package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// loadYAMLConfig is a kong.ConfigurationLoader for YAML files. Keys are
// flag names, with hyphens or underscores:
//
//	log-level: debug
//	indent_size: 4
func loadYAMLConfig(r io.Reader) (kong.Resolver, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("yaml config: %w", err)
	}
	return configValues(values), nil
}

// configValues implements kong.Resolver over a flat map.
type configValues map[string]any

// Validate implements kong.Resolver.
func (configValues) Validate(*kong.Application) error { return nil }

// Resolve implements kong.Resolver.
func (c configValues) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	for _, name := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
		if v, ok := c[name]; ok {
			return scalar(v), nil
		}
	}
	return nil, nil
}

// scalar renders numbers as strings, which kong decodes into any numeric
// flag type.
func scalar(v any) any {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return v
}
