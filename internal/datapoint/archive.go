package datapoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/proteobench/benchcore/internal/util"
)

// ArchiveFile is the single-array layout of older archives
const ArchiveFile = "results.json"

// Archive is an ordered collection of datapoints. Methods that change
// the collection return a new Archive and leave the receiver untouched.
type Archive struct {
	Points []*Datapoint
}

// NewArchive wraps points
func NewArchive(points ...*Datapoint) *Archive {
	return &Archive{Points: points}
}

// Len returns the number of datapoints; a nil archive is empty
func (a *Archive) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Points)
}

// Find returns the datapoint with the given intermediate hash
func (a *Archive) Find(hash string) (*Datapoint, bool) {
	if a == nil {
		return nil, false
	}
	for _, dp := range a.Points {
		if dp.IntermediateHash == hash {
			return dp, true
		}
	}
	return nil, false
}

// CheckNewUniqueHash reports whether dp's intermediate hash is new to a
func (a *Archive) CheckNewUniqueHash(dp *Datapoint) bool {
	_, found := a.Find(dp.IntermediateHash)
	if found {
		util.WarnLog("A run with intermediate hash %s is already in the archive", dp.IntermediateHash)
	}
	return !found
}

// Merge returns a copy of a with dp appended and marked new; earlier
// points are marked old. The bool is false, and a is returned as is,
// when the hash is already present.
func (a *Archive) Merge(dp *Datapoint) (*Archive, bool, error) {
	if dp == nil || dp.IntermediateHash == "" {
		return a, false, util.Errorf(util.KindDatapointAppend, "merge datapoint", "intermediate_hash", "datapoint has no intermediate hash")
	}
	if !a.CheckNewUniqueHash(dp) {
		return a, false, nil
	}

	out := &Archive{Points: make([]*Datapoint, 0, a.Len()+1)}
	if a != nil {
		for _, old := range a.Points {
			c := old.Clone()
			c.OldNew = MarkOld
			out.Points = append(out.Points, c)
		}
	}
	added := dp.Clone()
	added.OldNew = MarkNew
	out.Points = append(out.Points, added)
	return out, true, nil
}

// ParseArchive decodes a JSON array of datapoints. Entries without an
// intermediate hash are skipped.
func ParseArchive(b []byte) (*Archive, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return NewArchive(), nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}

	a := &Archive{Points: make([]*Datapoint, 0, len(raw))}
	for i, r := range raw {
		dp, err := Parse(r)
		if err != nil {
			util.WarnLog("Skipping archive entry %d: %v", i, err)
			continue
		}
		a.Points = append(a.Points, dp)
	}
	return a, nil
}

// Encode renders the archive as a JSON array
func (a *Archive) Encode() ([]byte, error) {
	points := []*Datapoint{}
	if a != nil {
		points = a.Points
	}
	b, err := json.MarshalIndent(points, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive: %w", err)
	}
	return b, nil
}

// ReadDir loads an archive working tree: one <hash>.json per datapoint,
// or results.json when no per-hash files exist. Files are read in
// name order.
func ReadDir(dir string) (*Archive, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	a := NewArchive()
	for _, p := range paths {
		if filepath.Base(p) == ArchiveFile {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read datapoint: %w", err)
		}
		dp, err := Parse(b)
		if err != nil {
			util.WarnLog("Skipping %s: %v", filepath.Base(p), err)
			continue
		}
		a.Points = append(a.Points, dp)
	}
	if a.Len() > 0 {
		return a, nil
	}

	b, err := os.ReadFile(filepath.Join(dir, ArchiveFile))
	if errors.Is(err, fs.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return ParseArchive(b)
}

// WriteFile writes dp as <hash>.json under dir and returns the path
func WriteFile(dir string, dp *Datapoint) (string, error) {
	b, err := dp.Encode()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, dp.FileName())
	if err := os.WriteFile(p, b, 0644); err != nil {
		return "", fmt.Errorf("failed to write datapoint: %w", err)
	}
	return p, nil
}
