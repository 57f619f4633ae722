// Package hmmcopytest writes small HMMcopy datasets for tests.
package hmmcopytest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Cell describes one cell of a synthetic dataset.
type Cell struct {
	ID            string
	TotalReads    string
	UnmappedReads string
	Contaminated  bool
	// Chroms lists the chromosomes the cell has one segment and one bin on.
	Chroms []string
}

// Options controls how the fixture is written.
type Options struct {
	Prefix string
	Gzip   bool
	// Skip omits the named tables.
	Skip []string
}

// DefaultCells returns three cells with segments on a few chromosomes. The
// second cell has zero total reads.
func DefaultCells() []Cell {
	return []Cell{
		{ID: "SA1-A01", TotalReads: "1000", UnmappedReads: "50", Contaminated: false, Chroms: []string{"1", "2", "X"}},
		{ID: "SA1-A02", TotalReads: "0", UnmappedReads: "0", Contaminated: true, Chroms: []string{"1", "10"}},
		{ID: "SA1-A03", TotalReads: "400", UnmappedReads: "100", Contaminated: false, Chroms: []string{"9"}},
	}
}

// Write creates a dataset directory under t.TempDir and returns its path.
func Write(t *testing.T, cells []Cell, opts Options) string {
	t.Helper()

	dir := t.TempDir()
	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[s] = true
	}

	tables := map[string]string{
		"hmmcopy_reads":      readsCSV(cells),
		"hmmcopy_segs":       segsCSV(cells),
		"annotation_metrics": metricsCSV(cells),
		"gc_metrics":         gcCSV(cells),
	}
	for name, content := range tables {
		if skip[name] {
			continue
		}
		writeFile(t, dir, opts.Prefix+name+".csv", content, opts.Gzip)
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string, compress bool) {
	t.Helper()

	path := filepath.Join(dir, name)
	if !compress {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return
	}

	f, err := os.Create(path + ".gz")
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", name, err)
	}
}

func readsCSV(cells []Cell) string {
	var b strings.Builder
	b.WriteString("chr,start,end,reads,gc,copy,state,cell_id\n")
	for _, c := range cells {
		for i, chr := range c.Chroms {
			start := i * 500000
			fmt.Fprintf(&b, "%s,%d,%d,%d,%s,%s,%d,%s\n",
				chr, start+1, start+500000, 100+i, "0.41", copyValue(i), 2, c.ID)
		}
	}
	return b.String()
}

// copyValue leaves every third copy number empty to exercise absent values.
func copyValue(i int) string {
	if i%3 == 2 {
		return ""
	}
	return strconv.FormatFloat(2.0+float64(i)*0.5, 'f', -1, 64)
}

func segsCSV(cells []Cell) string {
	var b strings.Builder
	b.WriteString("chr,start,end,state,median,multiplier,cell_id\n")
	for _, c := range cells {
		for i, chr := range c.Chroms {
			start := i * 1000000
			fmt.Fprintf(&b, "%s,%d,%d,%d,%s,%d,%s\n",
				chr, start+1, start+1000000, 2+i, "1.95", 2, c.ID)
		}
	}
	return b.String()
}

func metricsCSV(cells []Cell) string {
	var b strings.Builder
	b.WriteString("cell_id,total_reads,unmapped_reads,is_contaminated,quality,sample_id\n")
	for _, c := range cells {
		contaminated := "False"
		if c.Contaminated {
			contaminated = "True"
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s\n",
			c.ID, c.TotalReads, c.UnmappedReads, contaminated, "0.9", "SA1")
	}
	return b.String()
}

func gcCSV(cells []Cell) string {
	var b strings.Builder
	b.WriteString("cell_id")
	for n := 0; n <= 100; n++ {
		fmt.Fprintf(&b, ",%d", n)
	}
	b.WriteString("\n")
	for ci, c := range cells {
		b.WriteString(c.ID)
		for n := 0; n <= 100; n++ {
			// Low-GC buckets are typically empty.
			if n < 5 {
				b.WriteString(",")
				continue
			}
			fmt.Fprintf(&b, ",%s", strconv.FormatFloat(float64(ci)+float64(n)/100, 'f', -1, 64))
		}
		b.WriteString("\n")
	}
	return b.String()
}
