package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// devDirName is the directory under the system temp dir used by the dev sandbox.
const devDirName = "notekeep-dev"

// IsDevRun checks if the current process is running via `go run` or `go test`.
// It relies on the fact that these commands build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}

	// "go run" builds into the temp dir.
	tempDir := os.TempDir()
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(tempDir)) {
		return true
	}

	// "go test" binaries carry the .test suffix.
	if strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe") {
		return true
	}

	return false
}

// ResolveDataPath determines the actual path for file-based engines.
// When forceTemp is set, paths outside the system temp directory are
// re-rooted into a namespaced temp directory so a dev run never touches the
// user's real notes.
func ResolveDataPath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	// Paths already inside the temp dir (e.g. t.TempDir()) are trusted.
	cleanUserPath := filepath.Clean(userPath)
	rel, err := filepath.Rel(os.TempDir(), cleanUserPath)
	if err == nil && !strings.HasPrefix(rel, "..") && filepath.IsAbs(cleanUserPath) {
		return cleanUserPath
	}

	baseTemp := filepath.Join(os.TempDir(), devDirName)
	subName := "default"
	if userPath != "" && userPath != "." && userPath != "./" {
		// Only the base name survives, which removes traversal.
		subName = filepath.Base(userPath)
		if subName == "." || subName == string(os.PathSeparator) {
			subName = "default"
		}
	}

	return filepath.Join(baseTemp, subName)
}
