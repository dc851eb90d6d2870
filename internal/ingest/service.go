// Package ingest turns index requests into indexed packages: it resolves
// the scan, runs the indexer and records the request status.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidRequest marks requests that can never succeed.
var ErrInvalidRequest = errors.New("invalid index request")

type Service struct {
	scanClient *ScanClient
	indexer    *index.Indexer
	status     *RedisStatus
	timeout    time.Duration
}

// NewService builds the ingest service. Status updates are skipped when
// status is nil; a zero timeout disables the per-request deadline.
func NewService(scanClient *ScanClient, indexer *index.Indexer, status *RedisStatus, timeout time.Duration) *Service {
	return &Service{
		scanClient: scanClient,
		indexer:    indexer,
		status:     status,
		timeout:    timeout,
	}
}

// Prepare validates req and assigns a package id when it has none.
func Prepare(req *models.IndexRequest) error {
	if req.Package == nil {
		return fmt.Errorf("%w: package is required", ErrInvalidRequest)
	}
	if req.Package.Type == "" || req.Package.Name == "" {
		return fmt.Errorf("%w: package type and name are required", ErrInvalidRequest)
	}
	if len(req.Scan) == 0 && req.ScanURL == "" {
		return fmt.Errorf("%w: one of scan or scan_url is required", ErrInvalidRequest)
	}
	if req.Package.ID == "" {
		req.Package.ID = uuid.New().String()
	}
	return nil
}

// ProcessRequest indexes the package of req against its scan.
func (s *Service) ProcessRequest(ctx context.Context, req *models.IndexRequest) (*index.Summary, error) {
	if err := Prepare(req); err != nil {
		return nil, err
	}
	pkg := req.Package
	statusCtx := context.WithoutCancel(ctx)
	s.updateStatus(statusCtx, pkg.ID, models.StepStarted)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, err := s.process(ctx, req)
	if err != nil {
		s.updateStatus(statusCtx, pkg.ID, models.StepFailed)
		return nil, err
	}
	s.updateStatus(statusCtx, pkg.ID, models.StepCompleted)

	log.Info().
		Str("package_id", pkg.ID).
		Str("purl", pkg.PackageURL()).
		Int("diagnostics", len(pkg.IndexErrors)).
		Msg("Index request processed")
	return summary, nil
}

func (s *Service) process(ctx context.Context, req *models.IndexRequest) (*index.Summary, error) {
	cb, err := s.loadScan(ctx, req)
	if err != nil {
		return nil, err
	}
	s.updateStatus(ctx, req.Package.ID, models.StepIndexing)
	if req.Package.CreatedAt.IsZero() {
		req.Package.CreatedAt = time.Now().UTC()
	}
	return s.indexer.IndexPackage(ctx, req.Package, cb)
}

func (s *Service) loadScan(ctx context.Context, req *models.IndexRequest) (*codebase.Codebase, error) {
	if len(req.Scan) > 0 {
		cb, err := codebase.Load(bytes.NewReader(req.Scan))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return cb, nil
	}
	if s.scanClient == nil {
		return nil, fmt.Errorf("%w: scan_url given but no scan client configured", ErrInvalidRequest)
	}
	cb, err := s.scanClient.Fetch(ctx, req.ScanURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scan: %w", err)
	}
	return cb, nil
}

func (s *Service) updateStatus(ctx context.Context, packageID string, step models.Step) {
	if s.status == nil {
		return
	}
	// Status is advisory; indexing proceeds when Redis is unavailable.
	_ = s.status.UpdateStatus(ctx, packageID, step)
}
