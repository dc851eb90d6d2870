package index

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/metrics"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// KindSummary counts the outcome of indexing one kind.
type KindSummary struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// Summary reports one package indexing pass.
type Summary struct {
	PackageID string                  `json:"packageId"`
	Kinds     map[string]*KindSummary `json:"kinds"`
}

// Indexer populates every index from a package and its scanned codebase.
type Indexer struct {
	registry *Registry
}

func NewIndexer(registry *Registry) *Indexer {
	return &Indexer{registry: registry}
}

type item struct {
	fp   string
	path string
}

// IndexPackage registers pkg and indexes its archive digest, every file
// digest, every directory fingerprint and every file content fingerprint.
// A malformed fingerprint is recorded on the package and skipped; storage
// failures abort the pass. On return pkg carries the stored diagnostics.
func (ix *Indexer) IndexPackage(ctx context.Context, pkg *models.Package, cb *codebase.Codebase) (*Summary, error) {
	start := time.Now()
	store := ix.registry.Store()
	if _, _, err := store.SavePackage(ctx, pkg); err != nil {
		metrics.PackagesIndexed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to save package %s: %w", pkg.ID, err)
	}

	work := collect(pkg, cb)
	summary := &Summary{PackageID: pkg.ID, Kinds: make(map[string]*KindSummary, len(work))}
	for _, kind := range models.IndexKinds {
		summary.Kinds[kind.MatchType] = &KindSummary{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range models.IndexKinds {
		items := work[kind.Name]
		if len(items) == 0 {
			continue
		}
		idx := ix.registry.Get(kind)
		ks := summary.Kinds[kind.MatchType]
		// Each kind appends diagnostics to its own copy; the store holds
		// the combined log.
		owner := *pkg
		owner.IndexErrors = nil
		g.Go(func() error {
			for _, it := range items {
				entry, created, err := idx.Index(gctx, it.fp, it.path, &owner)
				if err != nil {
					return err
				}
				switch {
				case entry == nil:
					ks.Failed++
				case created:
					ks.Created++
				default:
					ks.Existing++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.PackagesIndexed.WithLabelValues("failed").Inc()
		return nil, err
	}

	stored, err := store.GetPackage(ctx, pkg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload package %s: %w", pkg.ID, err)
	}
	pkg.IndexErrors = stored.IndexErrors

	metrics.PackagesIndexed.WithLabelValues("completed").Inc()
	metrics.IndexDuration.Observe(time.Since(start).Seconds())
	log.Debug().
		Str("package_id", pkg.ID).
		Str("purl", pkg.PackageURL()).
		Int("diagnostics", len(pkg.IndexErrors)).
		Dur("took", time.Since(start)).
		Msg("Package indexed")
	return summary, nil
}

// collect gathers the fingerprints of each kind in walk order.
func collect(pkg *models.Package, cb *codebase.Codebase) map[string][]item {
	work := make(map[string][]item)
	add := func(kind models.IndexKind, fp, path string) {
		work[kind.Name] = append(work[kind.Name], item{fp: fp, path: path})
	}

	archive := pkg.SHA1
	if archive == "" && cb != nil {
		archive = cb.ArchiveSHA1
	}
	if archive != "" {
		add(models.ExactPackageArchive, archive, "")
	}
	if cb == nil {
		return work
	}
	_ = cb.Walk(func(n *codebase.Node) error {
		if n.IsFile {
			if n.SHA1 != "" {
				add(models.ExactFile, n.SHA1, n.Path)
			}
			if fp, ok := n.Fingerprint(codebase.Halo1); ok {
				add(models.ApproximateResourceContent, fp, n.Path)
			}
			return nil
		}
		if fp, ok := n.Fingerprint(codebase.DirectoryStructure); ok {
			add(models.ApproximateDirectoryStructure, fp, n.Path)
		}
		if fp, ok := n.Fingerprint(codebase.DirectoryContent); ok {
			add(models.ApproximateDirectoryContent, fp, n.Path)
		}
		return nil
	})
	return work
}
