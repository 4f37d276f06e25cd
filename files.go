package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// extensions are the file extensions treated as documents when walking
// directories and accepted by fmt.
var extensions = []string{".mustache_json5", ".mjson5", ".json5", ".json"}

const stdinName = "-"

func hasDocumentExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor":
		return true
	default:
		return false
	}
}

// collectDocuments returns the document files under root, sorted by path.
func collectDocuments(root string) ([]string, error) {
	clean := filepath.Clean(root)
	var out []string
	err := filepath.WalkDir(clean, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != clean && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if hasDocumentExt(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out, nil
}

// expandInputs replaces directory arguments with the documents they
// contain. Files and "-" are kept as given.
func expandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if arg == stdinName {
			out = append(out, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		docs, err := collectDocuments(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// readInput reads a file, or stdin for "-".
func readInput(s *streams, name string) ([]byte, error) {
	if name == stdinName {
		return io.ReadAll(s.in)
	}
	return os.ReadFile(name)
}

// displayName is how inputs are named in output.
func displayName(name string) string {
	if name == stdinName {
		return "<stdin>"
	}
	return name
}
