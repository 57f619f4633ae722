// Package hmmcopy loads the HMMcopy QC output of a single-cell sequencing run
// from a directory of CSV files.
package hmmcopy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/csimplestring/go-csv/detector"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/shahcompbio/alhena-lite/internal/table"
)

var (
	// ErrDatasetNotFound is returned when the directory does not exist or
	// contains none of the expected tables.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrMalformedDataset is returned when some tables are missing or unreadable.
	ErrMalformedDataset = errors.New("malformed dataset")
)

// Table names, also used as the file name suffix (<prefix><name>.csv[.gz]).
const (
	TableReads             = "hmmcopy_reads"
	TableSegs              = "hmmcopy_segs"
	TableAnnotationMetrics = "annotation_metrics"
	TableGCMetrics         = "gc_metrics"
)

// TableNames lists every table a dataset is made of.
var TableNames = []string{TableReads, TableSegs, TableAnnotationMetrics, TableGCMetrics}

// stringColumns are never type-inferred: chromosome labels like "1" and cell
// ids must stay strings even when every value happens to look numeric.
var stringColumns = []string{"cell_id", "chr", "sample_id", "library_id"}

// Dataset is the raw tabular bundle of one run.
type Dataset struct {
	Dir               string
	Reads             *table.Table
	Segs              *table.Table
	AnnotationMetrics *table.Table
	GCMetrics         *table.Table
}

// Loader loads a dataset from a directory.
type Loader interface {
	Load(ctx context.Context, dir string) (*Dataset, error)
}

// DirLoader reads datasets from the local filesystem.
type DirLoader struct{}

// NewDirLoader creates a new filesystem loader.
func NewDirLoader() *DirLoader {
	return &DirLoader{}
}

// Load discovers the four tables under dir and reads them in parallel.
func (l *DirLoader) Load(ctx context.Context, dir string) (*Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDatasetNotFound, dir)
	}

	paths, err := discover(dir)
	if err != nil {
		return nil, err
	}

	tables := make([]*table.Table, len(TableNames))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range TableNames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := readTable(name, paths[name])
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedDataset, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("[Loader] loaded %s: %d reads, %d segs, %d cells, %d gc rows",
		dir, tables[0].Len(), tables[1].Len(), tables[2].Len(), tables[3].Len())

	return &Dataset{
		Dir:               dir,
		Reads:             tables[0],
		Segs:              tables[1],
		AnnotationMetrics: tables[2],
		GCMetrics:         tables[3],
	}, nil
}

// discover maps each table name to the first file under dir whose name ends
// with "<table>.csv" or "<table>.csv.gz". Files are visited in lexical order.
func discover(dir string) (map[string]string, error) {
	found := make(map[string]string, len(TableNames))
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		base := strings.TrimSuffix(d.Name(), ".gz")
		for _, name := range TableNames {
			if _, ok := found[name]; ok {
				continue
			}
			if strings.HasSuffix(base, name+".csv") {
				found[name] = path
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no HMMcopy tables in %s", ErrDatasetNotFound, dir)
	}
	var missing []string
	for _, name := range TableNames {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing %s", ErrMalformedDataset, dir, strings.Join(missing, ", "))
	}
	return found, nil
}

func readTable(name, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := maybeDecompress(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	defer r.Close()

	br := bufio.NewReaderSize(r, 64*1024)
	comma := detectDelimiter(br)

	t, err := table.ReadCSV(name, br, table.ReadOptions{
		Comma:         comma,
		StringColumns: stringColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

// maybeDecompress sniffs the gzip signature rather than trusting the file
// extension.
func maybeDecompress(f *os.File) (io.ReadCloser, error) {
	br := bufio.NewReader(f)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if bytes.Equal(head, gzipMagic) {
		return gzip.NewReader(br)
	}
	return io.NopCloser(br), nil
}

// allowedDelimiters in order of preference on ties.
var allowedDelimiters = []byte{',', '\t', ';', '|'}

// detectDelimiter guesses the delimiter from the buffered head of the file
// without consuming it, defaulting to ','. When the detector offers no
// single allowed candidate, the header line decides.
func detectDelimiter(br *bufio.Reader) rune {
	sample, _ := br.Peek(br.Size())
	if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
		sample = sample[:i+1]
	}
	if len(sample) == 0 {
		return ','
	}

	var candidates []byte
	for _, cand := range detector.New().DetectDelimiter(bytes.NewReader(sample), '"') {
		if len(cand) > 0 && bytes.IndexByte(allowedDelimiters, cand[0]) >= 0 {
			candidates = append(candidates, cand[0])
		}
	}
	if len(candidates) == 1 {
		return rune(candidates[0])
	}
	if len(candidates) == 0 {
		candidates = allowedDelimiters
	}
	return headerDelimiter(sample, candidates)
}

// headerDelimiter picks the candidate occurring most often in the first
// line. The detector splits its input into 1024-byte chunks and misses a
// line break that ends a chunk, so it can reject the right delimiter.
func headerDelimiter(sample []byte, candidates []byte) rune {
	header := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		header = sample[:i]
	}
	best, bestCount := byte(','), 0
	for _, d := range allowedDelimiters {
		if bytes.IndexByte(candidates, d) < 0 {
			continue
		}
		if n := bytes.Count(header, []byte{d}); n > bestCount {
			best, bestCount = d, n
		}
	}
	return rune(best)
}
