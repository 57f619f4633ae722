package qc

// Payload is the response of a directory load.
type Payload struct {
	GCBias []Record `json:"gc_bias"`
	Cells  []Record `json:"cells"`
}

// BuildPayload nests segments under their cells and encodes every record.
func BuildPayload(v *View, opts Options) (*Payload, error) {
	cells, err := Assemble(v.Cells, v.Segments)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		GCBias: make([]Record, len(v.GCBias)),
		Cells:  make([]Record, len(cells)),
	}
	for i := range v.GCBias {
		p.GCBias[i] = v.GCBias[i].Record()
	}
	for i := range cells {
		p.Cells[i] = cells[i].Record(opts)
	}
	return p, nil
}

// CellIDs returns the ids of cells in order.
func CellIDs(cells []Cell) []string {
	ids := make([]string, len(cells))
	for i := range cells {
		ids[i] = cells[i].ID
	}
	return ids
}

// BinRecords encodes the bins belonging to cellID, in input order. The
// result is empty, not nil, when the cell has no bins.
func BinRecords(bins []Bin, cellID string) []Record {
	recs := []Record{}
	for i := range bins {
		if bins[i].ID == cellID {
			recs = append(recs, bins[i].Record())
		}
	}
	return recs
}
