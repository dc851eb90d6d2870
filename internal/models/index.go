package models

import (
	"time"

	"github.com/RishiKendai/matchcode/internal/fingerprint"
)

// IndexKind configures one fingerprint index. Every kind shares the same
// index/match contract and differs only in width, validation and chunking.
type IndexKind struct {
	Name       string
	Collection string
	MatchType  string
	Width      int
	Chunked    bool
}

var (
	ExactPackageArchive = IndexKind{
		Name:       "ExactPackageArchiveIndex",
		Collection: "exact_package_archive_index",
		MatchType:  "exact-package-archive",
		Width:      fingerprint.SHA1Width,
	}
	ExactFile = IndexKind{
		Name:       "ExactFileIndex",
		Collection: "exact_file_index",
		MatchType:  "exact-file",
		Width:      fingerprint.SHA1Width,
	}
	ApproximateDirectoryStructure = IndexKind{
		Name:       "ApproximateDirectoryStructureIndex",
		Collection: "approximate_directory_structure_index",
		MatchType:  "approximate-directory-structure",
		Width:      fingerprint.ApproximateWidth,
		Chunked:    true,
	}
	ApproximateDirectoryContent = IndexKind{
		Name:       "ApproximateDirectoryContentIndex",
		Collection: "approximate_directory_content_index",
		MatchType:  "approximate-directory-content",
		Width:      fingerprint.ApproximateWidth,
		Chunked:    true,
	}
	ApproximateResourceContent = IndexKind{
		Name:       "ApproximateResourceContentIndex",
		Collection: "approximate_resource_content_index",
		MatchType:  "approximate-resource-content",
		Width:      fingerprint.ApproximateWidth,
		Chunked:    true,
	}
)

// IndexKinds lists every kind in matching precedence order.
var IndexKinds = []IndexKind{
	ExactPackageArchive,
	ExactFile,
	ApproximateDirectoryStructure,
	ApproximateDirectoryContent,
	ApproximateResourceContent,
}

// KindByMatchType returns the kind tagged matchType.
func KindByMatchType(matchType string) (IndexKind, bool) {
	for _, k := range IndexKinds {
		if k.MatchType == matchType {
			return k, true
		}
	}
	return IndexKind{}, false
}

// IndexEntry is a stored fingerprint with a back-reference to the
// package and resource path it was computed from. Exact kinds populate
// Digest; chunked kinds populate ElementCount and the four chunks.
type IndexEntry struct {
	Kind         string    `bson:"kind" json:"kind"`
	Digest       []byte    `bson:"digest,omitempty" json:"-"`
	ElementCount uint32    `bson:"element_count,omitempty" json:"element_count,omitempty"`
	Chunk1       []byte    `bson:"chunk1,omitempty" json:"-"`
	Chunk2       []byte    `bson:"chunk2,omitempty" json:"-"`
	Chunk3       []byte    `bson:"chunk3,omitempty" json:"-"`
	Chunk4       []byte    `bson:"chunk4,omitempty" json:"-"`
	PackageID    string    `bson:"package_id" json:"package_id"`
	Path         string    `bson:"path,omitempty" json:"path,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Chunks returns the stored chunks in order.
func (e *IndexEntry) Chunks() fingerprint.Chunks {
	return fingerprint.Chunks{e.Chunk1, e.Chunk2, e.Chunk3, e.Chunk4}
}

// SetChunks stores the four chunks.
func (e *IndexEntry) SetChunks(c fingerprint.Chunks) {
	e.Chunk1, e.Chunk2, e.Chunk3, e.Chunk4 = c[0], c[1], c[2], c[3]
}

// Chunked reports whether the entry was stored as chunks.
func (e *IndexEntry) Chunked() bool {
	return e.Digest == nil
}

// Fingerprint reconstructs the hex fingerprint the entry was indexed from.
func (e *IndexEntry) Fingerprint() string {
	if !e.Chunked() {
		return fingerprint.FormatDigest(e.Digest)
	}
	return fingerprint.FormatApproximate(e.ElementCount, e.Chunks())
}
