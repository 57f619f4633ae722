package session

import (
	"errors"
	"fmt"
	"log"

	"github.com/shahcompbio/alhena-lite/internal/qc"
)

// ErrNoData is returned when a session has no loaded dataset.
var ErrNoData = errors.New("no data loaded for this session")

// Snapshot is the part of a load kept for later per-cell lookups.
type Snapshot struct {
	Bins []qc.Bin
	// QC holds the cells without nested segments.
	QC []qc.Cell
}

// Cache stores one Snapshot per session id.
//
// Bins are split into one entry per cell so that no single entry grows with
// the size of the library, and a lookup decodes only the bins it returns.
// An index entry lists the cells with bins; the QC entry is written last
// and marks the session as loaded.
type Cache struct {
	store Store
	codec *Codec
}

// NewCache creates a session cache over store.
func NewCache(store Store, codec *Codec) *Cache {
	return &Cache{store: store, codec: codec}
}

const keyPrefix = "session:"

func qcKey(sid string) string           { return keyPrefix + sid + ":qc" }
func binIndexKey(sid string) string     { return keyPrefix + sid + ":bins" }
func cellBinsKey(sid, id string) string { return keyPrefix + sid + ":bins:" + id }

// Clear removes the snapshot of a session.
func (c *Cache) Clear(sid string) error {
	if err := c.store.Delete(qcKey(sid)); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	var ids []string
	err := c.get(binIndexKey(sid), &ids)
	switch {
	case errors.Is(err, ErrNoData):
		return nil
	case err != nil:
		return fmt.Errorf("failed to clear session: %w", err)
	}
	for _, id := range ids {
		if err := c.store.Delete(cellBinsKey(sid, id)); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	if err := c.store.Delete(binIndexKey(sid)); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Put replaces the snapshot of a session. On failure the session is left
// without a snapshot rather than half-written.
func (c *Cache) Put(sid string, snap *Snapshot) error {
	ids, byCell := groupBins(snap.Bins)

	// The index goes first so that a rollback can find every cell entry.
	index, err := c.codec.Encode(ids)
	if err != nil {
		return err
	}
	if err := c.store.Set(binIndexKey(sid), index); err != nil {
		c.clearQuietly(sid)
		return fmt.Errorf("failed to store session bin index: %w", err)
	}

	size := len(index)
	for _, id := range ids {
		data, err := c.codec.Encode(byCell[id])
		if err != nil {
			c.clearQuietly(sid)
			return err
		}
		if err := c.store.Set(cellBinsKey(sid, id), data); err != nil {
			c.clearQuietly(sid)
			return fmt.Errorf("failed to store bins of cell %q: %w", id, err)
		}
		size += len(data)
	}

	cells, err := c.codec.Encode(snap.QC)
	if err != nil {
		c.clearQuietly(sid)
		return err
	}
	if err := c.store.Set(qcKey(sid), cells); err != nil {
		c.clearQuietly(sid)
		return fmt.Errorf("failed to store session QC: %w", err)
	}
	size += len(cells)

	log.Printf("[Session] stored %d cells, %d bins in %d entries (%d bytes)",
		len(snap.QC), len(snap.Bins), len(ids)+2, size)
	return nil
}

// groupBins splits bins by cell id, keeping first-seen cell order and the
// input order within each cell.
func groupBins(bins []qc.Bin) ([]string, map[string][]qc.Bin) {
	var ids []string
	byCell := make(map[string][]qc.Bin)
	for _, b := range bins {
		if _, ok := byCell[b.ID]; !ok {
			ids = append(ids, b.ID)
		}
		byCell[b.ID] = append(byCell[b.ID], b)
	}
	return ids, byCell
}

func (c *Cache) clearQuietly(sid string) {
	if err := c.Clear(sid); err != nil {
		log.Printf("[Session] failed to roll back partial snapshot: %v", err)
	}
}

// CellBins returns the bins of one cell from the last load. A loaded
// session without bins for the cell yields an empty list.
func (c *Cache) CellBins(sid, cellID string) ([]qc.Bin, error) {
	if _, err := c.raw(qcKey(sid)); err != nil {
		return nil, err
	}
	var bins []qc.Bin
	err := c.get(cellBinsKey(sid, cellID), &bins)
	if errors.Is(err, ErrNoData) {
		return []qc.Bin{}, nil
	}
	if err != nil {
		return nil, err
	}
	return bins, nil
}

// QC returns the cells of the last load.
func (c *Cache) QC(sid string) ([]qc.Cell, error) {
	var cells []qc.Cell
	if err := c.get(qcKey(sid), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

func (c *Cache) raw(key string) ([]byte, error) {
	data, err := c.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return data, nil
}

func (c *Cache) get(key string, v any) error {
	data, err := c.raw(key)
	if err != nil {
		return err
	}
	return c.codec.Decode(data, v)
}
