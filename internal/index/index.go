package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/metrics"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultMaxDistance keeps every candidate that shares a chunk: it is the
// full width of the 128-bit hash. Lower it (purldb uses 8) to trade recall
// for precision.
const DefaultMaxDistance = 128

// Index is one configured fingerprint index. Exact kinds look up digests
// by equality; chunked kinds retrieve candidates sharing any of the four
// chunks and rank them by Hamming distance.
type Index struct {
	kind        models.IndexKind
	store       Store
	maxDistance int
}

type Option func(*Index)

// WithMaxDistance sets the approximate match distance threshold.
func WithMaxDistance(d int) Option {
	return func(ix *Index) {
		ix.maxDistance = d
	}
}

func New(kind models.IndexKind, store Store, opts ...Option) *Index {
	ix := &Index{
		kind:        kind,
		store:       store,
		maxDistance: DefaultMaxDistance,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Index) Kind() models.IndexKind {
	return ix.kind
}

// Origin identifies the stored resource a query fingerprint came from.
// Matches pointing back at it are suppressed.
type Origin struct {
	PackageID string
	Path      string
}

func (o *Origin) is(e *models.IndexEntry) bool {
	return o != nil && o.PackageID == e.PackageID && o.Path == e.Path
}

// Match is one ranked candidate.
type Match struct {
	Entry    *models.IndexEntry
	Package  *models.Package
	Distance int
}

// Index stores fp for the resource at path in owner. A malformed
// fingerprint creates nothing: the parse error is appended to the owner's
// diagnostics and (nil, false, nil) is returned. Only storage failures
// are returned as errors.
func (ix *Index) Index(ctx context.Context, fp, path string, owner *models.Package) (*models.IndexEntry, bool, error) {
	entry, err := ix.parse(fp)
	if err != nil {
		msg := fmt.Sprintf("Error creating %s:\n%v", ix.kind.Name, err)
		owner.AppendIndexError(msg)
		metrics.FingerprintsIndexed.WithLabelValues(ix.kind.MatchType, "malformed").Inc()
		if err := ix.store.AppendIndexError(ctx, owner.ID, msg); err != nil {
			return nil, false, fmt.Errorf("failed to record index error: %w", err)
		}
		return nil, false, nil
	}
	entry.PackageID = owner.ID
	entry.Path = path
	entry.CreatedAt = time.Now().UTC()

	stored, created, err := ix.store.InsertEntry(ctx, ix.kind, entry)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert %s entry: %w", ix.kind.Name, err)
	}
	outcome := "existing"
	if created {
		outcome = "created"
	}
	metrics.FingerprintsIndexed.WithLabelValues(ix.kind.MatchType, outcome).Inc()
	return stored, created, nil
}

// Match returns entries matching fp, closest first. An empty fingerprint
// matches nothing; a malformed one is an error wrapping
// fingerprint.ErrMalformed.
func (ix *Index) Match(ctx context.Context, fp string, origin *Origin) ([]Match, error) {
	if fp == "" {
		return nil, nil
	}
	query, err := ix.parse(fp)
	if err != nil {
		return nil, err
	}
	metrics.MatchQueries.WithLabelValues(ix.kind.MatchType).Inc()

	if !ix.kind.Chunked {
		entries, err := ix.store.FindByDigest(ctx, ix.kind, query.Digest)
		if err != nil {
			return nil, fmt.Errorf("failed to find %s entries: %w", ix.kind.Name, err)
		}
		matches := make([]Match, 0, len(entries))
		for _, e := range entries {
			if origin.is(e) {
				continue
			}
			matches = append(matches, Match{Entry: e})
		}
		return ix.resolve(ctx, matches)
	}

	want := query.Chunks()
	entries, err := ix.store.FindByChunks(ctx, ix.kind, want)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s candidates: %w", ix.kind.Name, err)
	}
	metrics.MatchCandidates.WithLabelValues(ix.kind.MatchType).Observe(float64(len(entries)))

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		if origin.is(e) {
			continue
		}
		d := fingerprint.Distance(want, e.Chunks())
		if d > ix.maxDistance {
			continue
		}
		matches = append(matches, Match{Entry: e, Distance: d})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return ix.resolve(ctx, matches)
}

// resolve attaches the owning package to each match. Entries whose
// package no longer exists are dropped.
func (ix *Index) resolve(ctx context.Context, matches []Match) ([]Match, error) {
	packages := make(map[string]*models.Package)
	out := matches[:0]
	for _, m := range matches {
		pkg, ok := packages[m.Entry.PackageID]
		if !ok {
			var err error
			pkg, err = ix.store.GetPackage(ctx, m.Entry.PackageID)
			if errors.Is(err, ErrPackageNotFound) {
				log.Debug().
					Str("kind", ix.kind.Name).
					Str("package_id", m.Entry.PackageID).
					Msg("Skipping entry of missing package")
				packages[m.Entry.PackageID] = nil
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load package %s: %w", m.Entry.PackageID, err)
			}
			packages[m.Entry.PackageID] = pkg
		}
		if pkg == nil {
			continue
		}
		m.Package = pkg
		out = append(out, m)
	}
	return out, nil
}

func (ix *Index) parse(fp string) (*models.IndexEntry, error) {
	entry := &models.IndexEntry{Kind: ix.kind.Name}
	if !ix.kind.Chunked {
		digest, err := fingerprint.ParseDigest(fp, ix.kind.Width)
		if err != nil {
			return nil, err
		}
		entry.Digest = digest
		return entry, nil
	}
	a, err := fingerprint.ParseApproximate(fp)
	if err != nil {
		return nil, err
	}
	entry.ElementCount = a.ElementCount
	entry.SetChunks(a.Chunks)
	return entry, nil
}
