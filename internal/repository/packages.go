package repository

import (
	"context"
	"fmt"

	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const packagesCollection = "packages"

type PackagesRepository struct {
	mongoRepo *MongoRepository
}

func NewPackagesRepository(mongoRepo *MongoRepository) *PackagesRepository {
	return &PackagesRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *PackagesRepository) SavePackage(ctx context.Context, pkg *models.Package) (*models.Package, bool, error) {
	if pkg.ID == "" {
		return nil, false, fmt.Errorf("package has no id")
	}
	created, err := r.mongoRepo.InsertIfAbsent(ctx, packagesCollection, bson.M{"_id": pkg.ID}, pkg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert package: %w", err)
	}
	if created {
		return pkg, true, nil
	}
	stored, err := r.GetPackage(ctx, pkg.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *PackagesRepository) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	err := r.mongoRepo.FindOne(ctx, packagesCollection, bson.M{"_id": id}).Decode(&pkg)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("couldn't retrieve package %s: %w", id, index.ErrPackageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find package: %w", err)
	}
	return &pkg, nil
}

// AppendIndexError pushes msg onto the package diagnostics.
func (r *PackagesRepository) AppendIndexError(ctx context.Context, packageID, msg string) error {
	res, err := r.mongoRepo.UpdateOne(ctx, packagesCollection,
		bson.M{"_id": packageID},
		bson.M{"$push": bson.M{"index_errors": msg}},
	)
	if err != nil {
		return fmt.Errorf("failed to append index error: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("couldn't retrieve package %s: %w", packageID, index.ErrPackageNotFound)
	}
	return nil
}

func (r *PackagesRepository) deletePackage(ctx context.Context, id string) (bool, error) {
	n, err := r.mongoRepo.DeleteMany(ctx, packagesCollection, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete package: %w", err)
	}
	return n > 0, nil
}
