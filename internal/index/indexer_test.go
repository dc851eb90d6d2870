package index_test

import (
	"context"
	"strings"
	"testing"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/google/go-cmp/cmp"
)

func abbotScan(t *testing.T) *codebase.Codebase {
	t.Helper()
	cb, err := codebase.FromScan(&codebase.Scan{
		Files: []codebase.Resource{
			{
				Path: "abbot",
				Type: "directory",
				ExtraData: codebase.ExtraData{
					DirectoryStructure: "0000000249280e141724c001e1080128621a4210",
					DirectoryContent:   "000000020123456789abcdef0123456789abcdef",
				},
			},
			{Path: "abbot/Main.class", Type: "file", SHA1: strings.Repeat("A", 40), Halo1: "00000001fedcba9876543210fedcba9876543210"},
			{Path: "abbot/Util.class", Type: "file", SHA1: strings.Repeat("b", 40), Halo1: "bogus"},
		},
	})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}
	return cb
}

func TestIndexPackage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	indexer := index.NewIndexer(index.NewRegistry(s))

	p := abbot()
	summary, err := indexer.IndexPackage(ctx, p, abbotScan(t))
	if err != nil {
		t.Fatalf("IndexPackage: %v", err)
	}
	want := map[string]*index.KindSummary{
		models.ExactPackageArchive.MatchType:           {Created: 1},
		models.ExactFile.MatchType:                     {Created: 2},
		models.ApproximateDirectoryStructure.MatchType: {Created: 1},
		models.ApproximateDirectoryContent.MatchType:   {Created: 1},
		models.ApproximateResourceContent.MatchType:    {Created: 1, Failed: 1},
	}
	if diff := cmp.Diff(want, summary.Kinds); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if len(p.IndexErrors) != 1 || !strings.HasPrefix(p.IndexErrors[0], "Error creating ApproximateResourceContentIndex:\n") {
		t.Errorf("diagnostics = %q", p.IndexErrors)
	}

	// File digests are stored lowercase.
	matches, err := index.New(models.ExactFile, s).Match(ctx, strings.Repeat("a", 40), nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].Entry.Path != "abbot/Main.class" {
		t.Errorf("file match = %+v", matches)
	}

	// A second pass creates nothing new.
	summary, err = indexer.IndexPackage(ctx, abbot(), abbotScan(t))
	if err != nil {
		t.Fatalf("IndexPackage: %v", err)
	}
	want = map[string]*index.KindSummary{
		models.ExactPackageArchive.MatchType:           {Existing: 1},
		models.ExactFile.MatchType:                     {Existing: 2},
		models.ApproximateDirectoryStructure.MatchType: {Existing: 1},
		models.ApproximateDirectoryContent.MatchType:   {Existing: 1},
		models.ApproximateResourceContent.MatchType:    {Existing: 1, Failed: 1},
	}
	if diff := cmp.Diff(want, summary.Kinds); diff != "" {
		t.Errorf("second summary mismatch (-want +got):\n%s", diff)
	}
	for _, kind := range models.IndexKinds {
		if n := countEntries(t, s, kind); n == 0 {
			t.Errorf("%s has no entries", kind.Name)
		}
	}
}

func TestIndexPackageArchiveFallback(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	indexer := index.NewIndexer(index.NewRegistry(s))

	cb, err := codebase.FromScan(&codebase.Scan{
		ArchiveSHA1: otherSHA1,
		Files:       []codebase.Resource{{Path: "pkg/index.js", Type: "file"}},
	})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}
	summary, err := indexer.IndexPackage(ctx, pkg("p1"), cb)
	if err != nil {
		t.Fatalf("IndexPackage: %v", err)
	}
	if got := summary.Kinds[models.ExactPackageArchive.MatchType].Created; got != 1 {
		t.Errorf("archive created = %d, want 1", got)
	}
	if got := summary.Kinds[models.ExactFile.MatchType].Created; got != 0 {
		t.Errorf("file created = %d, want 0", got)
	}
}
