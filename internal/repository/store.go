package repository

import (
	"context"

	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/rs/zerolog/log"
)

// Store is the MongoDB backed index.Store.
type Store struct {
	*PackagesRepository
	*EntriesRepository
}

var _ index.Store = (*Store)(nil)

func NewStore(mongoRepo *MongoRepository) *Store {
	return &Store{
		PackagesRepository: NewPackagesRepository(mongoRepo),
		EntriesRepository:  NewEntriesRepository(mongoRepo),
	}
}

// DeletePackage removes a package and every entry that references it.
func (s *Store) DeletePackage(ctx context.Context, id string) (bool, error) {
	n, err := s.deleteByPackage(ctx, id)
	if err != nil {
		return false, err
	}
	deleted, err := s.deletePackage(ctx, id)
	if err != nil {
		return false, err
	}
	log.Debug().Str("package_id", id).Int64("entries", n).Msg("Package deleted")
	return deleted, nil
}
