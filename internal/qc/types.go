// Package qc shapes HMMcopy tables into the per-cell views served by the API:
// QC cells with nested segments, read bins and GC-bias curves.
package qc

import (
	"gopkg.in/guregu/null.v3"

	"github.com/shahcompbio/alhena-lite/internal/table"
)

// Attr is a pass-through column value carried alongside the typed fields.
type Attr struct {
	Name  string
	Value table.Value
}

// Options controls how records are encoded.
type Options struct {
	// NativeBooleans encodes is_contaminated as a JSON boolean instead of
	// the "true"/"false" strings existing clients expect.
	NativeBooleans bool
}

// Cell is the QC summary of one cell.
type Cell struct {
	ID                   string
	TotalReads           null.Float
	UnmappedReads        null.Float
	PercentUnmappedReads null.Float
	IsContaminated       null.Bool
	Extra                []Attr

	// Segs is filled by Assemble.
	Segs []Segment
}

// Segment is a copy-number segment of one cell.
type Segment struct {
	ID          string
	Chr         string
	ChromNumber string
	Start       null.Int
	End         null.Int
	State       null.Int
	Extra       []Attr
}

// Bin is a fixed-width read-count bin of one cell.
type Bin struct {
	ID          string
	Chr         string
	ChromNumber string
	Start       null.Int
	End         null.Int
	Reads       null.Float
	Extra       []Attr
}

// GCBiasPoint is one bucket of a cell's GC-bias curve.
type GCBiasPoint struct {
	ID        string
	GCPercent int
	Value     null.Float
}

// Record encodes the cell. Segments are included under "segs" when the cell
// has been assembled.
func (c *Cell) Record(opts Options) Record {
	rec := Record{{Name: "id", Value: c.ID}}
	rec = appendFloat(rec, "total_reads", c.TotalReads)
	rec = appendFloat(rec, "unmapped_reads", c.UnmappedReads)
	if c.IsContaminated.Valid {
		if opts.NativeBooleans {
			rec = append(rec, Field{Name: "is_contaminated", Value: c.IsContaminated.Bool})
		} else {
			rec = append(rec, Field{Name: "is_contaminated", Value: boolString(c.IsContaminated.Bool)})
		}
	}
	rec = appendAttrs(rec, c.Extra)
	rec = appendFloat(rec, "percent_unmapped_reads", c.PercentUnmappedReads)
	if c.Segs != nil {
		segs := make([]Record, len(c.Segs))
		for i := range c.Segs {
			segs[i] = Sanitize(c.Segs[i].Record())
		}
		rec = append(rec, Field{Name: "segs", Value: segs})
	}
	return Sanitize(rec)
}

// Record encodes the segment.
func (s *Segment) Record() Record {
	rec := Record{{Name: "chr", Value: s.Chr}}
	rec = appendInt(rec, "start", s.Start)
	rec = appendInt(rec, "end", s.End)
	rec = appendInt(rec, "state", s.State)
	rec = appendAttrs(rec, s.Extra)
	rec = append(rec,
		Field{Name: "id", Value: s.ID},
		Field{Name: "chrom_number", Value: s.ChromNumber},
	)
	return Sanitize(rec)
}

// Record encodes the bin.
func (b *Bin) Record() Record {
	rec := Record{{Name: "chr", Value: b.Chr}}
	rec = appendInt(rec, "start", b.Start)
	rec = appendInt(rec, "end", b.End)
	rec = appendFloat(rec, "reads", b.Reads)
	rec = appendAttrs(rec, b.Extra)
	rec = append(rec,
		Field{Name: "id", Value: b.ID},
		Field{Name: "chrom_number", Value: b.ChromNumber},
	)
	return Sanitize(rec)
}

// Record encodes the GC-bias point.
func (p *GCBiasPoint) Record() Record {
	rec := Record{
		{Name: "id", Value: p.ID},
		{Name: "gc_percent", Value: p.GCPercent},
	}
	rec = appendFloat(rec, "value", p.Value)
	return Sanitize(rec)
}

func appendFloat(rec Record, name string, v null.Float) Record {
	if !v.Valid {
		return rec
	}
	return append(rec, Field{Name: name, Value: v.Float64})
}

func appendInt(rec Record, name string, v null.Int) Record {
	if !v.Valid {
		return rec
	}
	return append(rec, Field{Name: name, Value: v.Int64})
}

func appendAttrs(rec Record, attrs []Attr) Record {
	for _, a := range attrs {
		rec = append(rec, Field{Name: a.Name, Value: a.Value})
	}
	return rec
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
