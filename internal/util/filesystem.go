package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BufferToTemp copies r into a new file under dir (os.TempDir when empty)
// and returns its path. The extension of name is kept so downstream
// readers can still sniff the format. The caller removes the file.
func BufferToTemp(dir, name string, r io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, "pbench-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to buffer %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return f.Name(), nil
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsWritableDir checks that dir exists and a file can be created inside it
func IsWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, ".pbench-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
