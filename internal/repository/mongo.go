package repository

import (
	"context"

	mongoInfra "github.com/RishiKendai/matchcode/internal/infra/mongo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(client *mongoInfra.Client) *MongoRepository {
	return &MongoRepository{
		db: client.Database,
	}
}

func (r *MongoRepository) FindOne(ctx context.Context, collection string, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	return r.db.Collection(collection).FindOne(ctx, filter, opts...)
}

func (r *MongoRepository) FindMany(ctx context.Context, collection string, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return r.db.Collection(collection).Find(ctx, filter, opts...)
}

func (r *MongoRepository) UpdateOne(ctx context.Context, collection string, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return r.db.Collection(collection).UpdateOne(ctx, filter, update, opts...)
}

func (r *MongoRepository) DeleteMany(ctx context.Context, collection string, filter interface{}) (int64, error) {
	res, err := r.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// InsertIfAbsent upserts document under filter with $setOnInsert so an
// existing document is never modified. It reports whether a document was
// inserted. A duplicate key error from a concurrent writer counts as not
// inserted.
func (r *MongoRepository) InsertIfAbsent(ctx context.Context, collection string, filter, document interface{}) (bool, error) {
	res, err := r.UpdateOne(ctx, collection, filter,
		map[string]interface{}{"$setOnInsert": document},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (r *MongoRepository) CreateIndexes(ctx context.Context, collection string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := r.db.Collection(collection).Indexes().CreateMany(ctx, models)
	return err
}

func (r *MongoRepository) GetCollection(collectionName string) *mongo.Collection {
	return r.db.Collection(collectionName)
}
