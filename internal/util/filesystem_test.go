package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBufferToTemp(t *testing.T) {
	dir := t.TempDir()

	path, err := BufferToTemp(dir, "report.pg_matrix.tsv", strings.NewReader("a\tb\n1\t2\n"))
	if err != nil {
		t.Fatalf("BufferToTemp failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected file in %s, got %s", dir, path)
	}
	if filepath.Ext(path) != ".tsv" {
		t.Errorf("expected .tsv extension, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "a\tb\n1\t2\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("expected file to exist")
	}
	if FileExists(dir) {
		t.Error("directory should not count as file")
	}
	if FileExists(filepath.Join(dir, "missing")) {
		t.Error("missing file should not exist")
	}
}

func TestIsWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := IsWritableDir(dir); err != nil {
		t.Errorf("expected writable dir, got %v", err)
	}
	if err := IsWritableDir(filepath.Join(dir, "nope")); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestShortSHA256(t *testing.T) {
	got := ShortSHA256("abc", 10)
	if got != "ba7816bf8f" {
		t.Errorf("ShortSHA256(abc) = %s", got)
	}
	if HashBytes([]byte("abc")) != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("HashBytes(abc) = %s", HashBytes([]byte("abc")))
	}
}
