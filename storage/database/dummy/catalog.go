package dummydb

import (
	"context"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/catalog"
)

type catalogRepository struct {
	db *catalogTable
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db.catalog}
}

func (repo *catalogRepository) CreateTest(ctx context.Context, test catalog.Test) (catalog.Test, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[test.ID] = &test
	return test, nil
}

func (repo *catalogRepository) GetTest(ctx context.Context, id string) (catalog.Test, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if test, ok := repo.db.table[id]; ok {
		return *test, nil
	}
	return catalog.Test{}, catalog.ErrNotFound
}

func (repo *catalogRepository) QueryAllTests(ctx context.Context, ordering ...core.DBOrdering) ([]catalog.Test, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tests := make([]catalog.Test, 0, len(repo.db.table))
	for _, test := range repo.db.table {
		tests = append(tests, *test)
	}
	return tests, nil
}

func (repo *catalogRepository) DeleteTestsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
