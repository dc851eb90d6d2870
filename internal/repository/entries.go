package repository

import (
	"context"
	"fmt"

	"github.com/RishiKendai/matchcode/internal/fingerprint"
	"github.com/RishiKendai/matchcode/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var chunkFields = [fingerprint.ChunkCount]string{"chunk1", "chunk2", "chunk3", "chunk4"}

// EntriesRepository stores index entries, one collection per kind.
type EntriesRepository struct {
	mongoRepo *MongoRepository
}

func NewEntriesRepository(mongoRepo *MongoRepository) *EntriesRepository {
	return &EntriesRepository{
		mongoRepo: mongoRepo,
	}
}

// EnsureIndexes creates the unique identity index of every kind and, for
// chunked kinds, one equality index per chunk column.
func (r *EntriesRepository) EnsureIndexes(ctx context.Context) error {
	for _, kind := range models.IndexKinds {
		var idx []mongo.IndexModel
		if !kind.Chunked {
			idx = append(idx, mongo.IndexModel{
				Keys:    bson.D{{Key: "digest", Value: 1}},
				Options: options.Index().SetUnique(true),
			})
		} else {
			for _, field := range chunkFields {
				idx = append(idx, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
			}
			idx = append(idx, mongo.IndexModel{
				Keys: bson.D{
					{Key: "element_count", Value: 1},
					{Key: "chunk1", Value: 1},
					{Key: "chunk2", Value: 1},
					{Key: "chunk3", Value: 1},
					{Key: "chunk4", Value: 1},
					{Key: "package_id", Value: 1},
					{Key: "path", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			})
		}
		idx = append(idx, mongo.IndexModel{Keys: bson.D{{Key: "package_id", Value: 1}}})
		if err := r.mongoRepo.CreateIndexes(ctx, kind.Collection, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", kind.Collection, err)
		}
	}
	return nil
}

func (r *EntriesRepository) InsertEntry(ctx context.Context, kind models.IndexKind, entry *models.IndexEntry) (*models.IndexEntry, bool, error) {
	filter := identityFilter(kind, entry)
	created, err := r.mongoRepo.InsertIfAbsent(ctx, kind.Collection, filter, entry)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert entry: %w", err)
	}
	if created {
		return entry, true, nil
	}
	var stored models.IndexEntry
	if err := r.mongoRepo.FindOne(ctx, kind.Collection, filter).Decode(&stored); err != nil {
		return nil, false, fmt.Errorf("failed to find existing entry: %w", err)
	}
	return &stored, false, nil
}

func (r *EntriesRepository) FindByDigest(ctx context.Context, kind models.IndexKind, digest []byte) ([]*models.IndexEntry, error) {
	return r.find(ctx, kind, bson.M{"digest": digest})
}

// FindByChunks ORs the four chunk equality tests; each is served by its
// own index and the server returns the union once per document.
func (r *EntriesRepository) FindByChunks(ctx context.Context, kind models.IndexKind, chunks fingerprint.Chunks) ([]*models.IndexEntry, error) {
	or := make(bson.A, 0, len(chunks))
	for i, chunk := range chunks {
		or = append(or, bson.M{chunkFields[i]: chunk})
	}
	return r.find(ctx, kind, bson.M{"$or": or})
}

func (r *EntriesRepository) deleteByPackage(ctx context.Context, packageID string) (int64, error) {
	var total int64
	for _, kind := range models.IndexKinds {
		n, err := r.mongoRepo.DeleteMany(ctx, kind.Collection, bson.M{"package_id": packageID})
		if err != nil {
			return total, fmt.Errorf("failed to delete %s entries: %w", kind.Collection, err)
		}
		total += n
	}
	return total, nil
}

func (r *EntriesRepository) find(ctx context.Context, kind models.IndexKind, filter interface{}) ([]*models.IndexEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.mongoRepo.FindMany(ctx, kind.Collection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.IndexEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return entries, nil
}

func identityFilter(kind models.IndexKind, e *models.IndexEntry) bson.D {
	if !kind.Chunked {
		return bson.D{{Key: "digest", Value: e.Digest}}
	}
	return bson.D{
		{Key: "element_count", Value: int64(e.ElementCount)},
		{Key: "chunk1", Value: e.Chunk1},
		{Key: "chunk2", Value: e.Chunk2},
		{Key: "chunk3", Value: e.Chunk3},
		{Key: "chunk4", Value: e.Chunk4},
		{Key: "package_id", Value: e.PackageID},
		{Key: "path", Value: e.Path},
	}
}
