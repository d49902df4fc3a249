// Package repopath canonicalizes working tree paths so that every spelling of
// the same directory maps to one key.
package repopath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var ErrNoSuchPath = errors.New("no such path")

// Key returns the canonical form of path: absolute, cleaned, symlinks
// resolved and, on case-insensitive platforms, lower-cased. The path must
// exist.
func Key(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrNoSuchPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoSuchPath, path)
		}
		return "", err
	}
	return fold(filepath.Clean(resolved)), nil
}

// Exists reports whether path names an existing directory.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fold(p string) string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return strings.ToLower(p)
	default:
		return p
	}
}
