package duckdb

import (
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for an input file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// StatInputs fingerprints every non-empty path, keyed by role.
func StatInputs(paths map[string]string) (map[string]FileFingerprint, error) {
	fps := make(map[string]FileFingerprint, len(paths))
	for role, path := range paths {
		if path == "" {
			continue
		}
		fp, err := StatFile(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s input: %w", role, err)
		}
		fps[role] = fp
	}
	return fps, nil
}
