package matching

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/RishiKendai/matchcode/internal/repository/boltdb"
	"github.com/google/go-cmp/cmp"
)

const (
	abbotSHA1 = "51d28a27d919ce8690a40f4f335b9d591ceb16e9"
	dirFP     = "0000000249280e141724c001e1080128621a4210"
	dirNearFP = "0000000249280e151724c001e1080128621a4210"
	fileFP    = "00000001fedcba9876543210fedcba9876543210"
)

func abbotFiles() []codebase.Resource {
	return []codebase.Resource{
		{Path: "abbot", Type: "directory", ExtraData: codebase.ExtraData{DirectoryStructure: dirFP}},
		{Path: "abbot/Main.class", Type: "file", SHA1: strings.Repeat("a", 40), Halo1: fileFP},
	}
}

func setup(t *testing.T) (*index.Registry, *WorkerPool) {
	t.Helper()
	s, err := boltdb.Open(filepath.Join(t.TempDir(), "match.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := index.NewRegistry(s)
	cb, err := codebase.FromScan(&codebase.Scan{Files: abbotFiles()})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}
	pkg := &models.Package{ID: "pkg-abbot", Type: "maven", Name: "abbot", Version: "0.12.3", Filename: "abbot-0.12.3.jar", SHA1: abbotSHA1}
	if _, err := index.NewIndexer(registry).IndexPackage(context.Background(), pkg, cb); err != nil {
		t.Fatalf("IndexPackage: %v", err)
	}

	pool := NewWorkerPool(context.Background(), 2)
	t.Cleanup(pool.Close)
	return registry, pool
}

func matchTypes(records []models.MatchRecord) []string {
	var types []string
	for _, r := range records {
		types = append(types, r.MatchType)
	}
	return types
}

func TestMatchTiers(t *testing.T) {
	registry, pool := setup(t)

	query, err := codebase.FromScan(&codebase.Scan{
		ArchiveSHA1: strings.ToUpper(abbotSHA1),
		Files: []codebase.Resource{
			{Path: "extracted", Type: "directory", ExtraData: codebase.ExtraData{DirectoryStructure: dirNearFP}},
			{Path: "extracted/Main.class", Type: "file", SHA1: strings.Repeat("a", 40), Halo1: fileFP},
			{Path: "extracted/README", Type: "file"},
		},
	})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}

	results, err := NewMatcher(registry, pool).Match(context.Background(), query)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	root := query.Root()
	if diff := cmp.Diff([]string{"exact-package-archive", "approximate-directory-structure"}, matchTypes(results[root.ID])); diff != "" {
		t.Errorf("root match types (-want +got):\n%s", diff)
	}
	if d := results[root.ID][1].Distance; d != 1 {
		t.Errorf("directory distance = %d, want 1", d)
	}
	if got := results[root.ID][0].Purl; got != "pkg:maven/abbot@0.12.3" {
		t.Errorf("purl = %q", got)
	}

	var mainID, readmeID int
	_ = query.Walk(func(n *codebase.Node) error {
		switch n.Path {
		case "extracted/Main.class":
			mainID = n.ID
		case "extracted/README":
			readmeID = n.ID
		}
		return nil
	})
	if diff := cmp.Diff([]string{"exact-file", "approximate-resource-content"}, matchTypes(results[mainID])); diff != "" {
		t.Errorf("file match types (-want +got):\n%s", diff)
	}
	if got := results[mainID][0].MatchedPath; got != "abbot/Main.class" {
		t.Errorf("matched path = %q", got)
	}
	if _, ok := results[readmeID]; ok {
		t.Errorf("resource without fingerprints has matches")
	}

	rendered := results.Resources(query)
	var paths []string
	for _, r := range rendered {
		paths = append(paths, r.Path)
	}
	if diff := cmp.Diff([]string{"extracted", "extracted/Main.class"}, paths); diff != "" {
		t.Errorf("rendered paths (-want +got):\n%s", diff)
	}
}

func TestMatchWithTiers(t *testing.T) {
	registry, pool := setup(t)
	query, err := codebase.FromScan(&codebase.Scan{ArchiveSHA1: abbotSHA1, Files: abbotFiles()})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}

	results, err := NewMatcher(registry, pool, WithTiers(models.ApproximateResourceContent, models.ExactFile)).Match(context.Background(), query)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if _, ok := results[query.Root().ID]; ok {
		t.Errorf("disabled tiers matched the root")
	}
	for id, records := range results {
		if diff := cmp.Diff([]string{"exact-file", "approximate-resource-content"}, matchTypes(records)); diff != "" {
			t.Errorf("node %d match types (-want +got):\n%s", id, diff)
		}
	}
}

func TestMatchWithOrigin(t *testing.T) {
	registry, pool := setup(t)
	query, err := codebase.FromScan(&codebase.Scan{ArchiveSHA1: abbotSHA1, Files: abbotFiles()})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}

	results, err := NewMatcher(registry, pool, WithOrigin("pkg-abbot")).Match(context.Background(), query)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if n := results.Count(); n != 0 {
		t.Errorf("self match produced %d records", n)
	}
}

func TestMatchMalformed(t *testing.T) {
	registry, pool := setup(t)
	query, err := codebase.FromScan(&codebase.Scan{
		Files: []codebase.Resource{{Path: "x.js", Type: "file", Halo1: "zzzzzzzz"}},
	})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}

	_, err = NewMatcher(registry, pool).Match(context.Background(), query)
	if !errors.Is(err, fingerprint.ErrMalformed) {
		t.Fatalf("Match error = %v, want ErrMalformed", err)
	}
}

func TestMatchPoolClosed(t *testing.T) {
	registry, pool := setup(t)
	pool.Close()
	query, err := codebase.FromScan(&codebase.Scan{Files: abbotFiles()})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}

	_, err = NewMatcher(registry, pool).Match(context.Background(), query)
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Match error = %v, want ErrPoolClosed", err)
	}
	if !strings.Contains(err.Error(), "failed to submit match job") {
		t.Errorf("Match error = %q, want submit failure", err)
	}
}

type blockingJob struct {
	release chan struct{}
}

func (j *blockingJob) Execute(ctx context.Context) error {
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return nil
}

func TestSubmitHonoursContext(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1)
	t.Cleanup(pool.Close)
	release := make(chan struct{})
	defer close(release)

	// One job on the worker plus a full queue.
	for i := 0; i < 1+2; i++ {
		if err := pool.Submit(context.Background(), &blockingJob{release: release}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Submit(ctx, &blockingJob{release: release}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit error = %v, want context.Canceled", err)
	}
}
