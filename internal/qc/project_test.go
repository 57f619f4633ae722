package qc

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/shahcompbio/alhena-lite/internal/hmmcopy"
	"github.com/shahcompbio/alhena-lite/internal/hmmcopy/hmmcopytest"
	"github.com/shahcompbio/alhena-lite/internal/table"
)

func mustTable(t *testing.T, name, src string) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(name, strings.NewReader(src), table.ReadOptions{StringColumns: []string{"cell_id", "chr"}})
	if err != nil {
		t.Fatalf("ReadCSV(%s) error: %v", name, err)
	}
	return tbl
}

func TestProjectQC(t *testing.T) {
	tbl := mustTable(t, "annotation_metrics", `cell_id,total_reads,unmapped_reads,is_contaminated,quality
c1,200,50,False,0.8
c2,0,0,True,
c3,,10,False,0.1
`)
	cells, err := ProjectQC(tbl)
	if err != nil {
		t.Fatalf("ProjectQC error: %v", err)
	}
	if len(cells) != 3 {
		t.Fatalf("expected 3 cells, got %d", len(cells))
	}

	if c := cells[0]; c.ID != "c1" || !c.PercentUnmappedReads.Valid || c.PercentUnmappedReads.Float64 != 0.25 {
		t.Errorf("unexpected c1: %+v", c)
	}

	t.Run("zeroTotalReads", func(t *testing.T) {
		rec := cells[1].Record(Options{})
		if _, ok := rec.Get("percent_unmapped_reads"); ok {
			t.Fatalf("percent_unmapped_reads should be absent: %v", rec)
		}
		if _, ok := rec.Get("quality"); ok {
			t.Fatalf("missing quality should be dropped: %v", rec)
		}
		if v, _ := rec.Get("total_reads"); v != 0.0 {
			t.Fatalf("zero total_reads must be kept, got %#v", v)
		}
	})

	t.Run("absentTotalReads", func(t *testing.T) {
		rec := cells[2].Record(Options{})
		if _, ok := rec.Get("total_reads"); ok {
			t.Fatalf("total_reads should be absent: %v", rec)
		}
		if _, ok := rec.Get("percent_unmapped_reads"); ok {
			t.Fatalf("percent_unmapped_reads should be absent: %v", rec)
		}
	})

	t.Run("contaminationAsString", func(t *testing.T) {
		if v, _ := cells[1].Record(Options{}).Get("is_contaminated"); v != "true" {
			t.Fatalf("expected \"true\", got %#v", v)
		}
		if v, _ := cells[0].Record(Options{}).Get("is_contaminated"); v != "false" {
			t.Fatalf("expected \"false\", got %#v", v)
		}
		if v, _ := cells[1].Record(Options{NativeBooleans: true}).Get("is_contaminated"); v != true {
			t.Fatalf("expected native true, got %#v", v)
		}
	})

	t.Run("passThroughColumns", func(t *testing.T) {
		rec := cells[0].Record(Options{})
		v, ok := rec.Get("quality")
		if !ok {
			t.Fatalf("quality should pass through: %v", rec)
		}
		if tv, ok := v.(table.Value); !ok || tv.Num != 0.8 {
			t.Fatalf("unexpected quality value %#v", v)
		}
		if _, ok := rec.Get("cell_id"); ok {
			t.Fatalf("cell_id should be renamed to id")
		}
	})
}

func TestProjectQC_Errors(t *testing.T) {
	t.Run("missingColumn", func(t *testing.T) {
		tbl := mustTable(t, "annotation_metrics", "cell_id,total_reads,is_contaminated\nc1,1,False\n")
		_, err := ProjectQC(tbl)
		if !errors.Is(err, ErrDatasetShape) || !errors.Is(err, table.ErrMissingColumn) {
			t.Fatalf("expected shape error, got %v", err)
		}
		if !strings.Contains(err.Error(), "unmapped_reads") {
			t.Fatalf("error should name the column: %v", err)
		}
	})

	t.Run("duplicateCell", func(t *testing.T) {
		tbl := mustTable(t, "annotation_metrics", "cell_id,total_reads,unmapped_reads,is_contaminated\nc1,1,0,False\nc1,2,0,False\n")
		if _, err := ProjectQC(tbl); !errors.Is(err, ErrDuplicateCell) {
			t.Fatalf("expected ErrDuplicateCell, got %v", err)
		}
	})

	t.Run("nonNumericReads", func(t *testing.T) {
		tbl := mustTable(t, "annotation_metrics", "cell_id,total_reads,unmapped_reads,is_contaminated\nc1,lots,0,False\n")
		if _, err := ProjectQC(tbl); !errors.Is(err, ErrDatasetShape) {
			t.Fatalf("expected ErrDatasetShape, got %v", err)
		}
	})

	t.Run("nonBooleanContamination", func(t *testing.T) {
		tbl := mustTable(t, "annotation_metrics", "cell_id,total_reads,unmapped_reads,is_contaminated\nc1,1,0,maybe\n")
		if _, err := ProjectQC(tbl); !errors.Is(err, ErrDatasetShape) {
			t.Fatalf("expected ErrDatasetShape, got %v", err)
		}
	})
}

func TestProjectSegmentsAndBins(t *testing.T) {
	segs, err := ProjectSegments(mustTable(t, "hmmcopy_segs", `chr,start,end,state,median,cell_id
1,1,1000000,2,1.9,c1
10,1,1000000,3,,c1
X,1,500000,1,1.0,c2
`))
	if err != nil {
		t.Fatalf("ProjectSegments error: %v", err)
	}
	wantChrom := []string{"01", "10", "X"}
	for i, s := range segs {
		if s.ChromNumber != wantChrom[i] {
			t.Errorf("seg %d: chrom_number %q want %q", i, s.ChromNumber, wantChrom[i])
		}
	}
	rec := segs[1].Record()
	if _, ok := rec.Get("median"); ok {
		t.Errorf("absent median should be dropped: %v", rec)
	}
	if v, _ := rec.Get("id"); v != "c1" {
		t.Errorf("expected id c1, got %#v", v)
	}
	if v, _ := rec.Get("chr"); v != "10" {
		t.Errorf("raw chr should be kept, got %#v", v)
	}

	bins, err := ProjectBins(mustTable(t, "hmmcopy_reads", `chr,start,end,reads,copy,cell_id
3,1,500000,120,2.1,c1
3,500001,1000000,80,nan,c2
`))
	if err != nil {
		t.Fatalf("ProjectBins error: %v", err)
	}
	if bins[0].ChromNumber != "03" || !bins[0].Reads.Valid || bins[0].Reads.Float64 != 120 {
		t.Errorf("unexpected bin: %+v", bins[0])
	}
	if _, ok := bins[1].Record().Get("copy"); ok {
		t.Errorf("absent copy should be dropped")
	}

	_, err = ProjectBins(mustTable(t, "hmmcopy_reads", "chr,start,end,cell_id\n1,1,2,c1\n"))
	if !errors.Is(err, ErrDatasetShape) {
		t.Fatalf("expected shape error for missing reads column, got %v", err)
	}
}

func gcTable(t *testing.T, ids ...string) *table.Table {
	t.Helper()
	var b strings.Builder
	b.WriteString("cell_id")
	for n := 0; n < GCBuckets; n++ {
		b.WriteString("," + strconv.Itoa(n))
	}
	b.WriteString("\n")
	for _, id := range ids {
		b.WriteString(id)
		for n := 0; n < GCBuckets; n++ {
			if n == 50 {
				b.WriteString(",nan")
				continue
			}
			b.WriteString("," + strconv.Itoa(n))
		}
		b.WriteString("\n")
	}
	return mustTable(t, "gc_metrics", b.String())
}

func TestProjectGCBias(t *testing.T) {
	ids := []string{"c2", "c1", "c3"}
	points, err := ProjectGCBias(gcTable(t, ids...))
	if err != nil {
		t.Fatalf("ProjectGCBias error: %v", err)
	}
	if len(points) != GCBuckets*len(ids) {
		t.Fatalf("expected %d points, got %d", GCBuckets*len(ids), len(points))
	}

	for ci, id := range ids {
		for n := 0; n < GCBuckets; n++ {
			p := points[ci*GCBuckets+n]
			if p.ID != id || p.GCPercent != n {
				t.Fatalf("point %d: got (%s,%d) want (%s,%d)", ci*GCBuckets+n, p.ID, p.GCPercent, id, n)
			}
			if n == 50 {
				if p.Value.Valid {
					t.Fatalf("bucket 50 should be absent")
				}
				if _, ok := p.Record().Get("value"); ok {
					t.Fatalf("absent value should be dropped from the record")
				}
				continue
			}
			if !p.Value.Valid || p.Value.Float64 != float64(n) {
				t.Fatalf("point %d: unexpected value %+v", n, p.Value)
			}
		}
	}

	t.Run("missingBucket", func(t *testing.T) {
		tbl := mustTable(t, "gc_metrics", "cell_id,0,1\nc1,0.1,0.2\n")
		_, err := ProjectGCBias(tbl)
		if !errors.Is(err, ErrDatasetShape) || !strings.Contains(err.Error(), `"100"`) {
			t.Fatalf("expected shape error naming missing buckets, got %v", err)
		}
	})
}

func TestAssemble(t *testing.T) {
	cells := []Cell{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	segs := []Segment{
		{ID: "b", Chr: "1"},
		{ID: "a", Chr: "1"},
		{ID: "b", Chr: "2"},
		{ID: "a", Chr: "X"},
	}

	out, err := Assemble(cells, segs)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}

	total := 0
	for _, c := range out {
		for _, s := range c.Segs {
			if s.ID != c.ID {
				t.Fatalf("segment of %s nested under %s", s.ID, c.ID)
			}
		}
		total += len(c.Segs)
	}
	if total != len(segs) {
		t.Fatalf("expected %d nested segments, got %d", len(segs), total)
	}
	if out[0].Segs[0].Chr != "1" || out[0].Segs[1].Chr != "X" {
		t.Fatalf("segment order not preserved: %+v", out[0].Segs)
	}
	if out[2].Segs == nil || len(out[2].Segs) != 0 {
		t.Fatalf("cell without segments should get an empty list")
	}
	if cells[0].Segs != nil {
		t.Fatalf("input cells were modified")
	}

	_, err = Assemble(cells, []Segment{{ID: "zzz"}})
	if !errors.Is(err, ErrOrphanSegment) {
		t.Fatalf("expected ErrOrphanSegment, got %v", err)
	}
}

func TestBuildPayload_FromDirectory(t *testing.T) {
	cells := hmmcopytest.DefaultCells()
	dir := hmmcopytest.Write(t, cells, hmmcopytest.Options{Gzip: true})

	ds, err := hmmcopy.NewDirLoader().Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	view, err := Project(ds)
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}
	payload, err := BuildPayload(view, Options{})
	if err != nil {
		t.Fatalf("BuildPayload error: %v", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	for _, bad := range []string{"NaN", "null", "Infinity"} {
		if strings.Contains(string(raw), bad) {
			t.Fatalf("payload contains %s: %s", bad, raw)
		}
	}

	var decoded struct {
		GCBias []map[string]any `json:"gc_bias"`
		Cells  []map[string]any `json:"cells"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(decoded.GCBias) != GCBuckets*len(cells) {
		t.Fatalf("expected %d gc points, got %d", GCBuckets*len(cells), len(decoded.GCBias))
	}
	if len(decoded.Cells) != len(cells) {
		t.Fatalf("expected %d cells, got %d", len(cells), len(decoded.Cells))
	}
	for i, c := range decoded.Cells {
		if c["id"] != cells[i].ID {
			t.Errorf("cell %d: id %v want %s", i, c["id"], cells[i].ID)
		}
		segs, _ := c["segs"].([]any)
		if len(segs) != len(cells[i].Chroms) {
			t.Errorf("cell %s: %d segs want %d", cells[i].ID, len(segs), len(cells[i].Chroms))
		}
	}
	if _, ok := decoded.Cells[1]["percent_unmapped_reads"]; ok {
		t.Errorf("zero-read cell should have no percent_unmapped_reads")
	}
	if decoded.Cells[1]["is_contaminated"] != "true" {
		t.Errorf("expected string contamination flag, got %#v", decoded.Cells[1]["is_contaminated"])
	}
}

func TestBinRecords(t *testing.T) {
	bins := []Bin{{ID: "a", Chr: "1"}, {ID: "b", Chr: "1"}, {ID: "a", Chr: "2"}}
	if got := BinRecords(bins, "a"); len(got) != 2 {
		t.Fatalf("expected 2 bins for a, got %d", len(got))
	}
	got := BinRecords(bins, "nobody")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}
