// Package weights maps model identifiers to local weight files. It is the
// narrow seam in front of whatever download/caching machinery provisions the
// files: callers get a valid path or an error, never a partial state.
package weights

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver locates the weights/tokenizer file for a profile.
type Resolver interface {
	// Resolve returns an absolute path for the named weights file, or a
	// not-found error the engine surfaces as a load failure.
	Resolve(file string) (string, error)
}

type notFoundError struct{ file string }

func (e notFoundError) Error() string { return "weights not found: " + e.file }

// IsNotFound reports whether err means the weights file is absent.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// DirResolver resolves against a single directory of *.gguf files.
type DirResolver struct {
	dir string
}

func NewDirResolver(dir string) *DirResolver { return &DirResolver{dir: dir} }

func (r *DirResolver) Resolve(file string) (string, error) {
	if strings.TrimSpace(file) == "" {
		return "", notFoundError{file: "(unnamed)"}
	}
	base, err := expandHome(r.dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(base, file))
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil || fi.IsDir() {
		return "", notFoundError{file: file}
	}
	return abs, nil
}

// Scan lists the *.gguf files present in the directory (case-insensitive
// extension match). Missing directory yields an empty list, not an error:
// the daemon can start before any model is downloaded.
func (r *DirResolver) Scan() ([]string, error) {
	base, err := expandHome(r.dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// SizeMB returns the file size of a resolved weights path in MB, with a
// floor of 1 so budget checks are never bypassed by an unknown size.
func SizeMB(path string) int {
	fi, err := os.Stat(path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
