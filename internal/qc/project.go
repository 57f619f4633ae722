package qc

import (
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/guregu/null.v3"

	"github.com/shahcompbio/alhena-lite/internal/chrom"
	"github.com/shahcompbio/alhena-lite/internal/hmmcopy"
	"github.com/shahcompbio/alhena-lite/internal/table"
)

var (
	// ErrDatasetShape is returned when a table lacks an expected column or
	// holds values of the wrong kind.
	ErrDatasetShape = errors.New("dataset shape mismatch")
	// ErrDuplicateCell is returned when a cell id appears twice in the QC table.
	ErrDuplicateCell = errors.New("duplicate cell id")
	// ErrOrphanSegment is returned when a segment's cell id has no QC row.
	ErrOrphanSegment = errors.New("segment references unknown cell")
)

// GCBuckets is the number of GC-percent buckets per cell (0..100).
const GCBuckets = 101

// Source column names.
const (
	colCellID         = "cell_id"
	colChr            = "chr"
	colStart          = "start"
	colEnd            = "end"
	colState          = "state"
	colReads          = "reads"
	colTotalReads     = "total_reads"
	colUnmappedReads  = "unmapped_reads"
	colIsContaminated = "is_contaminated"
)

// View holds every projection of one dataset.
type View struct {
	Cells    []Cell
	Segments []Segment
	Bins     []Bin
	GCBias   []GCBiasPoint
}

// Project derives all views from a loaded dataset. It fails on the first
// shape mismatch without returning partial output.
func Project(ds *hmmcopy.Dataset) (*View, error) {
	cells, err := ProjectQC(ds.AnnotationMetrics)
	if err != nil {
		return nil, err
	}
	segs, err := ProjectSegments(ds.Segs)
	if err != nil {
		return nil, err
	}
	bins, err := ProjectBins(ds.Reads)
	if err != nil {
		return nil, err
	}
	gc, err := ProjectGCBias(ds.GCMetrics)
	if err != nil {
		return nil, err
	}
	return &View{Cells: cells, Segments: segs, Bins: bins, GCBias: gc}, nil
}

// ProjectQC builds one Cell per annotation-metrics row. The unmapped read
// fraction is left absent when total_reads is zero or absent.
func ProjectQC(t *table.Table) ([]Cell, error) {
	if err := t.Require(colCellID, colTotalReads, colUnmappedReads, colIsContaminated); err != nil {
		return nil, shapeErr(err)
	}
	ids, err := idColumn(t)
	if err != nil {
		return nil, err
	}
	total, err := numericColumn(t, colTotalReads)
	if err != nil {
		return nil, err
	}
	unmapped, err := numericColumn(t, colUnmappedReads)
	if err != nil {
		return nil, err
	}
	contaminated, _ := t.Column(colIsContaminated)
	extras := extraColumns(t, colCellID, colTotalReads, colUnmappedReads, colIsContaminated)

	seen := make(map[string]bool, t.Len())
	cells := make([]Cell, t.Len())
	for i := range cells {
		id := ids[i]
		if seen[id] {
			return nil, fmt.Errorf("%w: %w %q", ErrDatasetShape, ErrDuplicateCell, id)
		}
		seen[id] = true

		c := Cell{
			ID:            id,
			TotalReads:    floatAt(total, i),
			UnmappedReads: floatAt(unmapped, i),
			Extra:         attrsAt(extras, i),
		}
		if c.TotalReads.Valid && c.UnmappedReads.Valid && c.TotalReads.Float64 != 0 {
			c.PercentUnmappedReads = null.FloatFrom(c.UnmappedReads.Float64 / c.TotalReads.Float64)
		}

		switch v := contaminated.Values[i]; {
		case v.Kind == table.KindBool:
			c.IsContaminated = null.BoolFrom(v.Bool)
		case v.IsNaN():
		default:
			return nil, fmt.Errorf("%w: %s row %d: %s is not a boolean: %q",
				ErrDatasetShape, t.Name, i, colIsContaminated, v.String())
		}
		cells[i] = c
	}
	return cells, nil
}

// ProjectSegments builds one Segment per row with a normalized chromosome.
func ProjectSegments(t *table.Table) ([]Segment, error) {
	if err := t.Require(colCellID, colChr, colStart, colEnd, colState); err != nil {
		return nil, shapeErr(err)
	}
	ids, chrs, chroms, start, end, err := intervalColumns(t)
	if err != nil {
		return nil, err
	}
	state, err := numericColumn(t, colState)
	if err != nil {
		return nil, err
	}
	extras := extraColumns(t, colCellID, colChr, colStart, colEnd, colState)

	segs := make([]Segment, t.Len())
	for i := range segs {
		segs[i] = Segment{
			ID:          ids[i],
			Chr:         chrs[i],
			ChromNumber: chroms[i],
			Start:       intAt(start, i),
			End:         intAt(end, i),
			State:       intAt(state, i),
			Extra:       attrsAt(extras, i),
		}
	}
	return segs, nil
}

// ProjectBins builds one Bin per row with a normalized chromosome.
func ProjectBins(t *table.Table) ([]Bin, error) {
	if err := t.Require(colCellID, colChr, colStart, colEnd, colReads); err != nil {
		return nil, shapeErr(err)
	}
	ids, chrs, chroms, start, end, err := intervalColumns(t)
	if err != nil {
		return nil, err
	}
	reads, err := numericColumn(t, colReads)
	if err != nil {
		return nil, err
	}
	extras := extraColumns(t, colCellID, colChr, colStart, colEnd, colReads)

	bins := make([]Bin, t.Len())
	for i := range bins {
		bins[i] = Bin{
			ID:          ids[i],
			Chr:         chrs[i],
			ChromNumber: chroms[i],
			Start:       intAt(start, i),
			End:         intAt(end, i),
			Reads:       floatAt(reads, i),
			Extra:       attrsAt(extras, i),
		}
	}
	return bins, nil
}

// ProjectGCBias reshapes the wide GC-metrics table (one column per GC
// percent, "0".."100") into one point per cell and bucket, in input cell
// order and ascending GC percent.
func ProjectGCBias(t *table.Table) ([]GCBiasPoint, error) {
	names := make([]string, 0, GCBuckets+1)
	names = append(names, colCellID)
	for n := 0; n < GCBuckets; n++ {
		names = append(names, strconv.Itoa(n))
	}
	if err := t.Require(names...); err != nil {
		return nil, shapeErr(err)
	}
	ids, err := idColumn(t)
	if err != nil {
		return nil, err
	}

	buckets := make([]*table.Column, GCBuckets)
	for n := range buckets {
		c, err := numericColumn(t, names[n+1])
		if err != nil {
			return nil, err
		}
		buckets[n] = c
	}

	points := make([]GCBiasPoint, 0, t.Len()*GCBuckets)
	for i, id := range ids {
		for n, c := range buckets {
			points = append(points, GCBiasPoint{
				ID:        id,
				GCPercent: n,
				Value:     floatAt(c, i),
			})
		}
	}
	return points, nil
}

// Assemble nests each segment under its cell, keeping segment input order.
// Cells without segments get an empty list. A segment whose cell id is not
// among the cells is an error.
func Assemble(cells []Cell, segs []Segment) ([]Cell, error) {
	index := make(map[string]int, len(cells))
	out := make([]Cell, len(cells))
	for i, c := range cells {
		c.Segs = []Segment{}
		out[i] = c
		index[c.ID] = i
	}
	for _, s := range segs {
		i, ok := index[s.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %w %q", ErrDatasetShape, ErrOrphanSegment, s.ID)
		}
		out[i].Segs = append(out[i].Segs, s)
	}
	return out, nil
}

func shapeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrDatasetShape, err)
}

func idColumn(t *table.Table) ([]string, error) {
	c, err := t.Column(colCellID)
	if err != nil {
		return nil, shapeErr(err)
	}
	ids := make([]string, len(c.Values))
	for i, v := range c.Values {
		if v.IsNaN() {
			return nil, fmt.Errorf("%w: %s row %d: empty %s", ErrDatasetShape, t.Name, i, colCellID)
		}
		ids[i] = v.String()
	}
	return ids, nil
}

// intervalColumns returns the cell ids, raw and normalized chromosome labels,
// and the start and end columns.
func intervalColumns(t *table.Table) (ids, chrs, chroms []string, start, end *table.Column, err error) {
	if ids, err = idColumn(t); err != nil {
		return
	}
	c, _ := t.Column(colChr)
	chrs = make([]string, len(c.Values))
	for i, v := range c.Values {
		if v.IsNaN() {
			err = fmt.Errorf("%w: %s row %d: empty %s", ErrDatasetShape, t.Name, i, colChr)
			return
		}
		chrs[i] = v.String()
	}
	chroms = chrom.NormalizeAll(chrs)
	if start, err = numericColumn(t, colStart); err != nil {
		return
	}
	end, err = numericColumn(t, colEnd)
	return
}

func numericColumn(t *table.Table, name string) (*table.Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, shapeErr(err)
	}
	if c.Kind != table.KindInt && c.Kind != table.KindFloat {
		return nil, fmt.Errorf("%w: %s column %q is %s, expected numeric", ErrDatasetShape, t.Name, name, c.Kind)
	}
	return c, nil
}

func extraColumns(t *table.Table, exclude ...string) []*table.Column {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var cols []*table.Column
	for _, name := range t.Columns() {
		if skip[name] {
			continue
		}
		c, _ := t.Column(name)
		cols = append(cols, c)
	}
	return cols
}

func attrsAt(cols []*table.Column, i int) []Attr {
	if len(cols) == 0 {
		return nil
	}
	attrs := make([]Attr, len(cols))
	for j, c := range cols {
		attrs[j] = Attr{Name: c.Name, Value: c.Values[i]}
	}
	return attrs
}

func floatAt(c *table.Column, i int) null.Float {
	f, ok := c.Values[i].Float()
	return null.NewFloat(f, ok)
}

func intAt(c *table.Column, i int) null.Int {
	n, ok := c.Values[i].Int64()
	return null.NewInt(n, ok)
}
