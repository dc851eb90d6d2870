package boltdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func approximateEntry(t *testing.T, fp, packageID, path string) *models.IndexEntry {
	t.Helper()
	a, err := fingerprint.ParseApproximate(fp)
	if err != nil {
		t.Fatalf("ParseApproximate(%q): %v", fp, err)
	}
	e := &models.IndexEntry{
		Kind:         models.ApproximateResourceContent.Name,
		ElementCount: a.ElementCount,
		PackageID:    packageID,
		Path:         path,
	}
	e.SetChunks(a.Chunks)
	return e
}

func TestSavePackage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pkg := &models.Package{ID: "p1", Type: "maven", Name: "abbot", Version: "0.12.3"}
	if _, created, err := s.SavePackage(ctx, pkg); err != nil || !created {
		t.Fatalf("SavePackage = created %v, err %v; want created", created, err)
	}
	again := &models.Package{ID: "p1", Type: "maven", Name: "other"}
	stored, created, err := s.SavePackage(ctx, again)
	if err != nil {
		t.Fatalf("SavePackage: %v", err)
	}
	if created || stored.Name != "abbot" {
		t.Errorf("second SavePackage = %+v created %v, want existing abbot", stored, created)
	}

	if _, _, err := s.SavePackage(ctx, &models.Package{}); err == nil {
		t.Error("SavePackage without id should fail")
	}
}

func TestAppendIndexError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, _, err := s.SavePackage(ctx, &models.Package{ID: "p1", Type: "generic", Name: "x"}); err != nil {
		t.Fatalf("SavePackage: %v", err)
	}
	for _, msg := range []string{"one", "two"} {
		if err := s.AppendIndexError(ctx, "p1", msg); err != nil {
			t.Fatalf("AppendIndexError: %v", err)
		}
	}
	pkg, err := s.GetPackage(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPackage: %v", err)
	}
	if diff := cmp.Diff([]string{"one", "two"}, pkg.IndexErrors); diff != "" {
		t.Errorf("IndexErrors mismatch (-want +got):\n%s", diff)
	}

	if err := s.AppendIndexError(ctx, "missing", "x"); !errors.Is(err, index.ErrPackageNotFound) {
		t.Errorf("AppendIndexError on missing package = %v, want ErrPackageNotFound", err)
	}
	if _, err := s.GetPackage(ctx, "missing"); !errors.Is(err, index.ErrPackageNotFound) {
		t.Errorf("GetPackage on missing package = %v, want ErrPackageNotFound", err)
	}
}

func TestInsertExactEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	digest, err := fingerprint.ParseDigest("b6bbe0b067469d719708ca38de5c237cb526c3d2", fingerprint.SHA1Width)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	kind := models.ExactFile

	first := &models.IndexEntry{Kind: kind.Name, Digest: digest, PackageID: "p1", Path: "a/b.c"}
	if _, created, err := s.InsertEntry(ctx, kind, first); err != nil || !created {
		t.Fatalf("InsertEntry = created %v, err %v", created, err)
	}
	second := &models.IndexEntry{Kind: kind.Name, Digest: digest, PackageID: "p2", Path: "x"}
	stored, created, err := s.InsertEntry(ctx, kind, second)
	if err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	if created {
		t.Error("re-inserting a digest should not create an entry")
	}
	if stored.PackageID != "p1" || stored.Fingerprint() != "b6bbe0b067469d719708ca38de5c237cb526c3d2" {
		t.Errorf("stored = %+v, want the first entry", stored)
	}

	found, err := s.FindByDigest(ctx, kind, digest)
	if err != nil {
		t.Fatalf("FindByDigest: %v", err)
	}
	if len(found) != 1 || found[0].Path != "a/b.c" {
		t.Errorf("FindByDigest = %+v, want one entry for a/b.c", found)
	}

	// Kinds do not share entries.
	found, err = s.FindByDigest(ctx, models.ExactPackageArchive, digest)
	if err != nil {
		t.Fatalf("FindByDigest: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("archive index returned %d entries, want 0", len(found))
	}
}

func TestFindByChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kind := models.ApproximateResourceContent

	entries := []*models.IndexEntry{
		approximateEntry(t, "00000001aaaaaaaabbbbbbbbccccccccdddddddd", "p1", "one"),
		approximateEntry(t, "0000000111111111bbbbbbbb2222222233333333", "p2", "two"),
		approximateEntry(t, "000000011111111122222222333333334444444f", "p3", "three"),
		approximateEntry(t, "000000011111111122222222eeeeeeeedddddddd", "p4", "four"),
	}
	for _, e := range entries {
		if _, created, err := s.InsertEntry(ctx, kind, e); err != nil || !created {
			t.Fatalf("InsertEntry(%s) = created %v, err %v", e.Path, created, err)
		}
	}
	// Same fingerprint, same owner and path: no new entry.
	if _, created, err := s.InsertEntry(ctx, kind, approximateEntry(t, "00000001aaaaaaaabbbbbbbbccccccccdddddddd", "p1", "one")); err != nil || created {
		t.Fatalf("duplicate InsertEntry = created %v, err %v", created, err)
	}
	// Same fingerprint under another package is a distinct entry.
	if _, created, err := s.InsertEntry(ctx, kind, approximateEntry(t, "00000001aaaaaaaabbbbbbbbccccccccdddddddd", "p5", "one")); err != nil || !created {
		t.Fatalf("InsertEntry for second owner = created %v, err %v", created, err)
	}
	// Entries sharing only chunk 1 and only chunk 3.
	for _, e := range []*models.IndexEntry{
		approximateEntry(t, "00000001aaaaaaaa999999998888888877777777", "p6", "six"),
		approximateEntry(t, "000000016666666655555555cccccccc44444444", "p7", "seven"),
	} {
		if _, created, err := s.InsertEntry(ctx, kind, e); err != nil || !created {
			t.Fatalf("InsertEntry(%s) = created %v, err %v", e.Path, created, err)
		}
	}

	query, err := fingerprint.ParseApproximate("00000001aaaaaaaabbbbbbbbccccccccdddddddd")
	if err != nil {
		t.Fatalf("ParseApproximate: %v", err)
	}
	found, err := s.FindByChunks(ctx, kind, query.Chunks)
	if err != nil {
		t.Fatalf("FindByChunks: %v", err)
	}
	var got []string
	for _, e := range found {
		got = append(got, e.PackageID)
	}
	// p2, p6, p7 and p4 each share a single chunk (2, 1, 3, 4); p3 shares
	// no aligned chunk.
	want := []string{"p1", "p2", "p4", "p5", "p6", "p7"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindByChunks mismatch (-want +got):\n%s", diff)
	}

	var walked int
	if err := s.Walk(kind, func(*models.IndexEntry) error { walked++; return nil }); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if walked != 7 {
		t.Errorf("Walk visited %d entries, want 7", walked)
	}
}
