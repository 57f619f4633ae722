// Package service provides the business logic behind the QC endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/shahcompbio/alhena-lite/internal/hmmcopy"
	"github.com/shahcompbio/alhena-lite/internal/qc"
	"github.com/shahcompbio/alhena-lite/internal/session"
)

// ErrInvalidPath is returned when a request names no directory.
var ErrInvalidPath = errors.New("invalid dataset path")

// QCServiceConfig contains QC service configuration.
type QCServiceConfig struct {
	Loader hmmcopy.Loader
	Cache  *session.Cache
	// Root confines dataset directories; request paths are resolved below it.
	// Empty means the filesystem root.
	Root    string
	Options qc.Options
}

// QCService loads datasets into sessions and answers per-cell lookups.
//
// A session is EMPTY until a load succeeds and LOADED afterwards. Every
// load clears the session first, so a failed load leaves it EMPTY.
type QCService struct {
	loader hmmcopy.Loader
	cache  *session.Cache
	root   string
	opts   qc.Options
}

// NewQCService creates a new QC service.
func NewQCService(cfg QCServiceConfig) *QCService {
	root := cfg.Root
	if root == "" {
		root = "/"
	}
	return &QCService{
		loader: cfg.Loader,
		cache:  cfg.Cache,
		root:   filepath.Clean(root),
		opts:   cfg.Options,
	}
}

// ResolveDir maps a request path to a directory under the root. The path is
// cleaned as an absolute path first, so ".." cannot climb above the root.
func (s *QCService) ResolveDir(dir string) (string, error) {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Join(s.root, filepath.Clean("/"+dir)), nil
}

// Load reads the dataset in dir, caches its bins and QC cells for the
// session and returns the nested payload.
func (s *QCService) Load(ctx context.Context, sid, dir string) (*qc.Payload, error) {
	if err := s.cache.Clear(sid); err != nil {
		return nil, err
	}

	path, err := s.ResolveDir(dir)
	if err != nil {
		return nil, err
	}

	ds, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	view, err := qc.Project(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	payload, err := qc.BuildPayload(view, s.opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := s.cache.Put(sid, &session.Snapshot{Bins: view.Bins, QC: view.Cells}); err != nil {
		return nil, err
	}

	log.Printf("[QCService] session %s loaded %s: %d cells", shortID(sid), path, len(view.Cells))
	return payload, nil
}

// CellIDs returns the ids of the cells loaded in the session, in QC order.
func (s *QCService) CellIDs(sid string) ([]string, error) {
	cells, err := s.cache.QC(sid)
	if err != nil {
		return nil, err
	}
	return qc.CellIDs(cells), nil
}

// CellBins returns the sanitized bins of one cell. An unknown cell yields an
// empty list.
func (s *QCService) CellBins(sid, cellID string) ([]qc.Record, error) {
	bins, err := s.cache.CellBins(sid, cellID)
	if err != nil {
		return nil, err
	}
	return qc.BinRecords(bins, cellID), nil
}

func shortID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
