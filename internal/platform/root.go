package platform

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	// SystemDir marks a notekeep data root.
	SystemDir = ".notekeep"
	// ConfigFile is the optional configuration file at a data root.
	ConfigFile = "notekeep.yaml"
)

// ErrNoRoot is returned by FindRoot when no directory up to the filesystem
// root carries a marker.
var ErrNoRoot = errors.New("no notekeep root found")

// rootMarkers are checked in every directory, closest directory first.
var rootMarkers = []string{SystemDir, ConfigFile}

// FindRoot walks up from startDir and returns the absolute path of the
// first directory holding a .notekeep directory or a notekeep.yaml file.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		for _, m := range rootMarkers {
			if exists(filepath.Join(dir, m)) {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
