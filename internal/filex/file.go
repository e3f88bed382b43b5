// Package filex holds filesystem helpers for local client state.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureParentDir creates the directory that will hold path, owner-only.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// SQLiteFile returns the file a SQLite DSN points at, or "" for in-memory
// databases. "file:" URIs are stripped of their scheme and query.
func SQLiteFile(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		return ""
	}
	if rest, ok := strings.CutPrefix(dsn, "file:"); ok {
		path, query, _ := strings.Cut(rest, "?")
		if path == ":memory:" || strings.Contains(query, "mode=memory") {
			return ""
		}
		return path
	}
	return dsn
}
