// Package artifact writes the data bundle stored next to a submitted
// datapoint: the raw input, the scored table, the parameter files and
// the user comment, keyed by intermediate hash.
package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/proteobench/benchcore/internal/score"
	"github.com/proteobench/benchcore/internal/util"
)

// Entry names inside the bundle
const (
	IntermediateEntry = "result_performance.csv"
	CommentEntry      = "comment.txt"
	inputEntry        = "input_file"
	paramEntry        = "param_"
)

// Bundle is the content of one artifact
type Bundle struct {
	Hash         string
	Input        string   // path of the tool output that was scored
	Params       []string // paths of the tool parameter files
	Intermediate *score.Intermediate
	Comment      string
}

// Path returns <dir>/<hash>/<hash>_data.zip
func Path(dir, hash string) string {
	return filepath.Join(dir, hash, hash+"_data.zip")
}

// Write stores b under dir and returns the zip path. The scored table is
// also written unzipped next to the archive.
func Write(dir string, b Bundle) (string, error) {
	if b.Hash == "" {
		return "", fmt.Errorf("bundle has no intermediate hash: %w", util.ErrInvalidConfig)
	}
	if b.Intermediate == nil {
		return "", fmt.Errorf("bundle %s has no intermediate table: %w", b.Hash, util.ErrInvalidConfig)
	}
	csv, err := b.Intermediate.Bytes()
	if err != nil {
		return "", err
	}

	target := Path(dir, b.Hash)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	if err := writeZip(f, b, csv); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}

	if err := os.WriteFile(filepath.Join(filepath.Dir(target), IntermediateEntry), csv, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", IntermediateEntry, err)
	}
	util.InfoLog("Data saved to %s", target)
	return target, nil
}

func writeZip(w io.Writer, b Bundle, csv []byte) error {
	zw := zip.NewWriter(w)

	if b.Input != "" {
		if err := addFile(zw, inputEntry+filepath.Ext(b.Input), b.Input); err != nil {
			return err
		}
	}
	if err := addBytes(zw, IntermediateEntry, csv); err != nil {
		return err
	}
	for i, p := range b.Params {
		if err := addFile(zw, fmt.Sprintf("%s%d%s", paramEntry, i, filepath.Ext(p)), p); err != nil {
			return err
		}
	}
	if err := addBytes(zw, CommentEntry, []byte(b.Comment)); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish artifact: %w", err)
	}
	return nil
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}
