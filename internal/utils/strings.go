package utils

import (
	"encoding/json"
	"io/fs"

	ds "github.com/bmatcuk/doublestar/v4"
)

// NormalizeJSON minifies JSON text for stable equality comparisons; when input is empty returns empty string.
func NormalizeJSON(s string) string {
	if len(s) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}

// GlobRecursive walks fsys from root and matches files against a doublestar pattern (supports **).
// Paths are returned slash-separated and sorted by walk order, so embedded
// manifest sets apply deterministically.
func GlobRecursive(fsys fs.FS, root, pattern string) ([]string, error) {
	matches := []string{}
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := ds.PathMatch(pattern, path)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}
