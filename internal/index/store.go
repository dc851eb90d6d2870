// Package index implements the exact and approximate fingerprint indexes
// and the per-package ingestion pass that populates them.
package index

import (
	"context"
	"errors"

	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/models"
)

// ErrPackageNotFound is returned by stores when a package ID is unknown.
var ErrPackageNotFound = errors.New("package not found")

// Store is the persistent state behind the indexes. Implementations must
// make InsertEntry and SavePackage atomic insert-if-absent operations and
// AppendIndexError an atomic append.
type Store interface {
	// SavePackage stores pkg unless a package with the same ID exists.
	// It returns the stored package and whether it was created.
	SavePackage(ctx context.Context, pkg *models.Package) (*models.Package, bool, error)
	GetPackage(ctx context.Context, id string) (*models.Package, error)
	AppendIndexError(ctx context.Context, packageID, msg string) error
	// DeletePackage removes a package together with every entry it owns.
	DeletePackage(ctx context.Context, id string) (bool, error)

	// InsertEntry stores entry unless an entry with the same identity
	// exists: the digest for exact kinds, the fingerprint plus package and
	// path for chunked kinds. It returns the stored entry and whether it
	// was created.
	InsertEntry(ctx context.Context, kind models.IndexKind, entry *models.IndexEntry) (*models.IndexEntry, bool, error)
	// FindByDigest returns entries of an exact kind with the given digest.
	FindByDigest(ctx context.Context, kind models.IndexKind, digest []byte) ([]*models.IndexEntry, error)
	// FindByChunks returns, in insertion order and without duplicates,
	// entries of a chunked kind sharing at least one aligned chunk.
	FindByChunks(ctx context.Context, kind models.IndexKind, chunks fingerprint.Chunks) ([]*models.IndexEntry, error)
}
