package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	bolt "go.etcd.io/bbolt"
)

// Store is an embedded bolt-db index store. It uses the following schema.
//
// - packages
//   - <package id>: <bson>                   : the package document
//
// - <index collection>                        : one bucket per index kind
//   - entries
//   - <seq uint64 big endian>: <bson>        : the index entry
//   - keys
//   - <identity>: <seq>                      : digest, or fingerprint+package+path
//   - chunk1 .. chunk4
//   - <chunk><seq>: <empty>                  : prefix index per chunk position
type Store struct {
	db *bolt.DB
}

var _ index.Store = (*Store)(nil)

var (
	bucketKeyPackages = []byte("packages")
	bucketKeyEntries  = []byte("entries")
	bucketKeyKeys     = []byte("keys")
	bucketKeyChunks   = [fingerprint.ChunkCount][]byte{
		[]byte("chunk1"), []byte("chunk2"), []byte("chunk3"), []byte("chunk4"),
	}

	errBucketNotFound = errors.New("bucket not found")
)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKeyPackages); err != nil {
			return err
		}
		for _, kind := range models.IndexKinds {
			kb, err := tx.CreateBucketIfNotExists([]byte(kind.Collection))
			if err != nil {
				return err
			}
			for _, name := range [][]byte{bucketKeyEntries, bucketKeyKeys} {
				if _, err := kb.CreateBucketIfNotExists(name); err != nil {
					return err
				}
			}
			if !kind.Chunked {
				continue
			}
			for _, name := range bucketKeyChunks {
				if _, err := kb.CreateBucketIfNotExists(name); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SavePackage(ctx context.Context, pkg *models.Package) (*models.Package, bool, error) {
	if pkg.ID == "" {
		return nil, false, fmt.Errorf("package has no id")
	}
	var (
		stored  *models.Package
		created bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKeyPackages)
		if raw := b.Get([]byte(pkg.ID)); raw != nil {
			var existing models.Package
			if err := decode(raw, &existing); err != nil {
				return fmt.Errorf("failed to decode package %s: %w", pkg.ID, err)
			}
			stored = &existing
			return nil
		}
		raw, err := bson.Marshal(pkg)
		if err != nil {
			return fmt.Errorf("failed to encode package %s: %w", pkg.ID, err)
		}
		stored, created = pkg, true
		return b.Put([]byte(pkg.ID), raw)
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	var pkg *models.Package
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		pkg, err = getPackage(tx, id)
		return err
	})
	return pkg, err
}

func (s *Store) AppendIndexError(ctx context.Context, packageID, msg string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pkg, err := getPackage(tx, packageID)
		if err != nil {
			return err
		}
		pkg.AppendIndexError(msg)
		raw, err := bson.Marshal(pkg)
		if err != nil {
			return fmt.Errorf("failed to encode package %s: %w", packageID, err)
		}
		return tx.Bucket(bucketKeyPackages).Put([]byte(packageID), raw)
	})
}

func (s *Store) DeletePackage(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, kind := range models.IndexKinds {
			kb, err := kindBucket(tx, kind)
			if err != nil {
				return err
			}
			if err := deleteEntries(kb, kind, id); err != nil {
				return err
			}
		}
		b := tx.Bucket(bucketKeyPackages)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		deleted = true
		return b.Delete([]byte(id))
	})
	return deleted, err
}

func (s *Store) InsertEntry(ctx context.Context, kind models.IndexKind, entry *models.IndexEntry) (*models.IndexEntry, bool, error) {
	var (
		stored  *models.IndexEntry
		created bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		kb, err := kindBucket(tx, kind)
		if err != nil {
			return err
		}
		key := identity(kind, entry)
		keys := kb.Bucket(bucketKeyKeys)
		if seq := keys.Get(key); seq != nil {
			stored, err = loadEntry(kb, seq)
			return err
		}

		entries := kb.Bucket(bucketKeyEntries)
		id, err := entries.NextSequence()
		if err != nil {
			return err
		}
		seq := encodeSeq(id)
		raw, err := bson.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		if err := entries.Put(seq, raw); err != nil {
			return err
		}
		if err := keys.Put(key, seq); err != nil {
			return err
		}
		if kind.Chunked {
			for i, chunk := range entry.Chunks() {
				if err := kb.Bucket(bucketKeyChunks[i]).Put(chunkKey(chunk, seq), []byte{}); err != nil {
					return err
				}
			}
		}
		stored, created = entry, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) FindByDigest(ctx context.Context, kind models.IndexKind, digest []byte) ([]*models.IndexEntry, error) {
	var found []*models.IndexEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		kb, err := kindBucket(tx, kind)
		if err != nil {
			return err
		}
		seq := kb.Bucket(bucketKeyKeys).Get(digest)
		if seq == nil {
			return nil
		}
		e, err := loadEntry(kb, seq)
		if err != nil {
			return err
		}
		found = append(found, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindByChunks runs one prefix scan per chunk position and returns the
// union ordered by sequence number.
func (s *Store) FindByChunks(ctx context.Context, kind models.IndexKind, chunks fingerprint.Chunks) ([]*models.IndexEntry, error) {
	var found []*models.IndexEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		kb, err := kindBucket(tx, kind)
		if err != nil {
			return err
		}
		seen := make(map[uint64]struct{})
		for i, chunk := range chunks {
			b := kb.Bucket(bucketKeyChunks[i])
			if b == nil {
				return fmt.Errorf("%s has no %s bucket: %w", kind.Collection, bucketKeyChunks[i], errBucketNotFound)
			}
			c := b.Cursor()
			for k, _ := c.Seek(chunk); k != nil && bytes.HasPrefix(k, chunk); k, _ = c.Next() {
				if len(k) != len(chunk)+8 {
					continue
				}
				seen[binary.BigEndian.Uint64(k[len(chunk):])] = struct{}{}
			}
		}
		ids := make([]uint64, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			e, err := loadEntry(kb, encodeSeq(id))
			if err != nil {
				return err
			}
			found = append(found, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Walk calls fn for every entry of kind in insertion order.
func (s *Store) Walk(kind models.IndexKind, fn func(*models.IndexEntry) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		kb, err := kindBucket(tx, kind)
		if err != nil {
			return err
		}
		return kb.Bucket(bucketKeyEntries).ForEach(func(k, v []byte) error {
			var e models.IndexEntry
			if err := decode(v, &e); err != nil {
				return fmt.Errorf("failed to decode entry: %w", err)
			}
			return fn(&e)
		})
	})
}

// deleteEntries removes the entries of kb owned by packageID along with
// their identity and chunk keys.
func deleteEntries(kb *bolt.Bucket, kind models.IndexKind, packageID string) error {
	entries := kb.Bucket(bucketKeyEntries)
	var (
		seqs  [][]byte
		owned []*models.IndexEntry
	)
	err := entries.ForEach(func(k, v []byte) error {
		var e models.IndexEntry
		if err := decode(v, &e); err != nil {
			return fmt.Errorf("failed to decode entry: %w", err)
		}
		if e.PackageID == packageID {
			seqs = append(seqs, append([]byte(nil), k...))
			owned = append(owned, &e)
		}
		return nil
	})
	if err != nil {
		return err
	}
	keys := kb.Bucket(bucketKeyKeys)
	for i, seq := range seqs {
		e := owned[i]
		if err := keys.Delete(identity(kind, e)); err != nil {
			return err
		}
		if kind.Chunked {
			for j, chunk := range e.Chunks() {
				if err := kb.Bucket(bucketKeyChunks[j]).Delete(chunkKey(chunk, seq)); err != nil {
					return err
				}
			}
		}
		if err := entries.Delete(seq); err != nil {
			return err
		}
	}
	return nil
}

func getPackage(tx *bolt.Tx, id string) (*models.Package, error) {
	raw := tx.Bucket(bucketKeyPackages).Get([]byte(id))
	if raw == nil {
		return nil, fmt.Errorf("couldn't retrieve package %s: %w", id, index.ErrPackageNotFound)
	}
	var pkg models.Package
	if err := decode(raw, &pkg); err != nil {
		return nil, fmt.Errorf("failed to decode package %s: %w", id, err)
	}
	return &pkg, nil
}

func kindBucket(tx *bolt.Tx, kind models.IndexKind) (*bolt.Bucket, error) {
	kb := tx.Bucket([]byte(kind.Collection))
	if kb == nil {
		return nil, fmt.Errorf("%s: %w", kind.Collection, errBucketNotFound)
	}
	return kb, nil
}

func loadEntry(kb *bolt.Bucket, seq []byte) (*models.IndexEntry, error) {
	raw := kb.Bucket(bucketKeyEntries).Get(seq)
	if raw == nil {
		return nil, fmt.Errorf("dangling index key for entry %d", binary.BigEndian.Uint64(seq))
	}
	var e models.IndexEntry
	if err := decode(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &e, nil
}

// decode copies raw out of the mmap before unmarshalling; bolt values are
// only valid for the life of the transaction.
func decode(raw []byte, v interface{}) error {
	return bson.Unmarshal(append([]byte(nil), raw...), v)
}

// identity is the uniqueness key of an entry within its kind.
func identity(kind models.IndexKind, e *models.IndexEntry) []byte {
	if !kind.Chunked {
		return e.Digest
	}
	var buf bytes.Buffer
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], e.ElementCount)
	buf.Write(count[:])
	buf.Write(e.Chunks().Bytes())
	buf.WriteByte(0)
	buf.WriteString(e.PackageID)
	buf.WriteByte(0)
	buf.WriteString(e.Path)
	return buf.Bytes()
}

func chunkKey(chunk, seq []byte) []byte {
	k := make([]byte, 0, len(chunk)+len(seq))
	k = append(k, chunk...)
	return append(k, seq...)
}

func encodeSeq(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}
