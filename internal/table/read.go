package table

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/proteobench/benchcore/internal/util"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator values accepted by ReadOptions
const (
	SepAuto  rune = 0
	SepTab   rune = '\t'
	SepComma rune = ','
)

// ReadOptions controls how a delimited file is read
type ReadOptions struct {
	Sep      rune // SepAuto sniffs from the extension, then the header line
	Progress bool // draw a byte progress bar on stdout
}

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openReader opens path, transparently decompressing gzip input detected by
// magic number or .gz suffix
func openReader(path string, progress bool) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src io.Reader = fh
	closers := []io.Closer{fh}

	if info, err := fh.Stat(); err == nil {
		util.DebugLog("Reading %s (%s)", filepath.Base(path), humanize.Bytes(uint64(info.Size())))
		if progress {
			bar := progressbar.NewOptions64(info.Size(),
				progressbar.OptionSetDescription("Reading "+filepath.Base(path)),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowBytes(true),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
			pr := progressbar.NewReader(fh, bar)
			src = &pr
			closers = append(closers, bar)
		}
	}

	var sig [2]byte
	n, _ := fh.Read(sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		fh.Close()
		return nil, err
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(src)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: append([]io.Closer{gr}, closers...)}, nil
	}
	return &multiReadCloser{Reader: src, closers: closers}, nil
}

// SeparatorFor guesses the separator from a file name, ignoring a .gz suffix.
// It returns SepAuto for names that do not decide it.
func SeparatorFor(name string) rune {
	name = strings.TrimSuffix(strings.ToLower(name), ".gz")
	switch filepath.Ext(name) {
	case ".csv":
		return SepComma
	case ".tsv", ".tab":
		return SepTab
	}
	return SepAuto
}

// ReadFile reads a delimited text file into a Table
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	rc, err := openReader(path, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()

	if opts.Sep == SepAuto {
		opts.Sep = SeparatorFor(path)
	}
	t, err := Read(rc, opts.Sep)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Read parses delimited text. A leading byte-order mark is dropped and
// header names are NFC-normalized and trimmed. SepAuto picks tab or comma
// by counting them in the header line.
func Read(r io.Reader, sep rune) (*Table, error) {
	br := bufio.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))

	if sep == SepAuto {
		head, err := br.Peek(64 * 1024)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		line := string(head)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		sep = SepComma
		if strings.Count(line, "\t") >= strings.Count(line, ",") {
			sep = SepTab
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = sep
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty input: %w", util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(norm.NFC.String(h))
	}

	t := New(header...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", t.Len()+2, err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		t.Append(rec)
	}
	return t, nil
}
