// Package matching annotates a scanned codebase with the packages its
// resources match, trying the exact tiers before the approximate ones.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/rs/zerolog/log"
)

// Results holds the match records of each resource keyed by node ID.
// Resources without matches have no entry.
type Results map[int][]models.MatchRecord

// Resources renders results in walk order.
func (r Results) Resources(cb *codebase.Codebase) []models.ResourceMatches {
	out := make([]models.ResourceMatches, 0, len(r))
	_ = cb.Walk(func(n *codebase.Node) error {
		if records, ok := r[n.ID]; ok {
			out = append(out, models.ResourceMatches{Path: n.Path, Type: n.Type(), Matches: records})
		}
		return nil
	})
	return out
}

// Count returns the number of match records.
func (r Results) Count() int {
	n := 0
	for _, records := range r {
		n += len(records)
	}
	return n
}

type Matcher struct {
	registry *index.Registry
	pool     *WorkerPool
	tiers    []models.IndexKind
	origin   string
}

type Option func(*Matcher)

// WithTiers restricts matching to the given kinds. Order is always the
// precedence order of models.IndexKinds.
func WithTiers(kinds ...models.IndexKind) Option {
	return func(m *Matcher) {
		enabled := make(map[string]bool, len(kinds))
		for _, k := range kinds {
			enabled[k.Name] = true
		}
		m.tiers = m.tiers[:0]
		for _, k := range models.IndexKinds {
			if enabled[k.Name] {
				m.tiers = append(m.tiers, k)
			}
		}
	}
}

// WithOrigin marks the codebase as the scan of an indexed package so that
// its own entries are not reported.
func WithOrigin(packageID string) Option {
	return func(m *Matcher) {
		m.origin = packageID
	}
}

func NewMatcher(registry *index.Registry, pool *WorkerPool, opts ...Option) *Matcher {
	m := &Matcher{
		registry: registry,
		pool:     pool,
		tiers:    append([]models.IndexKind(nil), models.IndexKinds...),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match evaluates every resource of cb on the worker pool. Each resource
// is matched independently and writes only its own slot. Errors of all
// resources are joined; a malformed fingerprint yields an error wrapping
// fingerprint.ErrMalformed.
func (m *Matcher) Match(ctx context.Context, cb *codebase.Codebase) (Results, error) {
	start := time.Now()
	slots := make([]nodeResult, cb.Len())

	var wg sync.WaitGroup
	var submitErr error
	_ = cb.Walk(func(n *codebase.Node) error {
		wg.Add(1)
		job := &matchJob{ctx: ctx, matcher: m, cb: cb, node: n, out: &slots[n.ID], wg: &wg}
		if err := m.pool.Submit(ctx, job); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("failed to submit match job: %w", err)
			return err
		}
		return nil
	})
	// Jobs already queued still write their own slots; nothing reads them.
	if submitErr != nil {
		return nil, submitErr
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.pool.Done():
		return nil, ErrPoolClosed
	}

	results := make(Results)
	var errs []error
	for id, slot := range slots {
		if slot.err != nil {
			errs = append(errs, slot.err)
			continue
		}
		if len(slot.records) > 0 {
			results[id] = slot.records
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	log.Debug().
		Int("resources", cb.Len()).
		Int("matched", len(results)).
		Int("records", results.Count()).
		Dur("took", time.Since(start)).
		Msg("Codebase matched")
	return results, nil
}

type nodeResult struct {
	records []models.MatchRecord
	err     error
}

type matchJob struct {
	ctx     context.Context
	matcher *Matcher
	cb      *codebase.Codebase
	node    *codebase.Node
	out     *nodeResult
	wg      *sync.WaitGroup
}

func (j *matchJob) Execute(ctx context.Context) error {
	defer j.wg.Done()
	records, err := j.matcher.matchNode(j.ctx, j.cb, j.node)
	if err != nil {
		j.out.err = fmt.Errorf("failed to match %s: %w", j.node.Path, err)
		return j.out.err
	}
	j.out.records = records
	return nil
}

// matchNode runs every enabled tier that applies to n, skipping tiers
// whose fingerprint attribute is absent.
func (m *Matcher) matchNode(ctx context.Context, cb *codebase.Codebase, n *codebase.Node) ([]models.MatchRecord, error) {
	var records []models.MatchRecord
	for _, kind := range m.tiers {
		fp, ok := queryFingerprint(kind, cb, n)
		if !ok {
			continue
		}
		var origin *index.Origin
		if m.origin != "" {
			origin = &index.Origin{PackageID: m.origin, Path: n.Path}
			if kind.Name == models.ExactPackageArchive.Name {
				origin.Path = ""
			}
		}
		matches, err := m.registry.Get(kind).Match(ctx, fp, origin)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			records = append(records, models.NewMatchRecord(match.Package, kind.MatchType, match.Entry.Path, match.Distance))
		}
	}
	return records, nil
}

// queryFingerprint selects the attribute of n that kind is queried with.
func queryFingerprint(kind models.IndexKind, cb *codebase.Codebase, n *codebase.Node) (string, bool) {
	switch kind.Name {
	case models.ExactPackageArchive.Name:
		if n.ID != cb.Root().ID || cb.ArchiveSHA1 == "" {
			return "", false
		}
		return cb.ArchiveSHA1, true
	case models.ExactFile.Name:
		if !n.IsFile || n.SHA1 == "" {
			return "", false
		}
		return n.SHA1, true
	case models.ApproximateDirectoryStructure.Name:
		if n.IsFile {
			return "", false
		}
		return n.Fingerprint(codebase.DirectoryStructure)
	case models.ApproximateDirectoryContent.Name:
		if n.IsFile {
			return "", false
		}
		return n.Fingerprint(codebase.DirectoryContent)
	case models.ApproximateResourceContent.Name:
		if !n.IsFile {
			return "", false
		}
		return n.Fingerprint(codebase.Halo1)
	}
	return "", false
}
