package duckdb

import (
	"os"
	"time"
)

// FileFingerprint identifies a panel file by path, size and modification time.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile fingerprints an on-disk panel. Stdin ("-") yields a path-only
// fingerprint that never matches a stored run.
func StatFile(path string) (FileFingerprint, error) {
	if path == "-" {
		return FileFingerprint{Path: path}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// Matches reports whether two fingerprints describe the same file contents.
func (f FileFingerprint) Matches(o FileFingerprint) bool {
	if f.ModTime.IsZero() || o.ModTime.IsZero() {
		return false
	}
	return f.Path == o.Path && f.Size == o.Size && f.ModTime.Equal(o.ModTime)
}
