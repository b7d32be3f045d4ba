package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// TempFilePrefix is the prefix used for temporary atomic write files.
	TempFilePrefix = "notekeep-tmp-"
)

// writeFileAtomic writes data to a file atomically by writing to a temp file
// and then renaming it to the target filename. beforeRename, when set, runs
// once the temp file is complete.
func writeFileAtomic(filename string, data []byte, perm os.FileMode, beforeRename func(tmp, target string)) error {
	tmp, err := writeTemp(filepath.Dir(filename), data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) // Clean up if we fail before rename

	if beforeRename != nil {
		beforeRename(tmp, filename)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}

// writeTemp writes data to a synced temp file in dir and returns its path.
func writeTemp(dir string, data []byte, perm os.FileMode) (string, error) {
	tmpFile, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmpFile.Name()

	fail := func(format string, err error) (string, error) {
		tmpFile.Close()
		os.Remove(name)
		return "", fmt.Errorf(format, err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		return fail("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fail("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to chmod temp file: %w", err)
	}
	return name, nil
}
