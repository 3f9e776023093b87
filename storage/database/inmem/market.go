package inmemdb

import (
	"context"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/job"
	"github.com/coffeehubnepal/api/core/product"
)

type jobRepository struct {
	db *table[job.Job]
}

func NewJobRepository(db *DB) job.Repository {
	return &jobRepository{db: db.jobs}
}

func (repo *jobRepository) CreateJob(_ context.Context, j job.Job) (job.Job, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	j.ID = newID()
	repo.db.rows[j.ID] = &j
	return j, nil
}

func (repo *jobRepository) GetJob(_ context.Context, id string) (job.Job, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if j, ok := repo.db.rows[id]; ok {
		return *j, nil
	}
	return job.Job{}, job.ErrNotFound
}

func (repo *jobRepository) FilterJobs(_ context.Context, filter job.QueryFilter, page core.Pagination) ([]job.Job, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.db.filter(func(j *job.Job) bool {
		switch {
		case !j.Active,
			filter.Type != "" && j.Type != filter.Type,
			filter.Location != "" && !containsFold(j.Location, filter.Location),
			filter.PostedBy != "" && j.PostedBy != filter.PostedBy:
			return false
		case filter.Search != "":
			return containsFold(j.Title, filter.Search) ||
				containsFold(j.Description, filter.Search) ||
				containsFold(j.Company, filter.Search)
		}
		return true
	})
	jobs, total := paginate(rows, func(a, b job.Job) bool { return a.CreatedAt.After(b.CreatedAt) }, page)
	return jobs, total, nil
}

func (repo *jobRepository) UpdateJob(_ context.Context, j job.Job) (job.Job, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[j.ID]; !ok {
		return job.Job{}, job.ErrNotFound
	}
	repo.db.rows[j.ID] = &j
	return j, nil
}

type productRepository struct {
	db *table[product.Product]
}

func NewProductRepository(db *DB) product.Repository {
	return &productRepository{db: db.products}
}

func (repo *productRepository) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = newID()
	repo.db.rows[p.ID] = &p
	return p, nil
}

func (repo *productRepository) GetProduct(_ context.Context, id string) (product.Product, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.rows[id]; ok {
		return *p, nil
	}
	return product.Product{}, product.ErrNotFound
}

func (repo *productRepository) FilterProducts(_ context.Context, filter product.QueryFilter, page core.Pagination) ([]product.Product, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.db.filter(func(p *product.Product) bool {
		switch {
		case !p.Active,
			filter.Category != "" && p.Category != filter.Category,
			filter.Location != "" && !containsFold(p.Location, filter.Location),
			filter.Seller != "" && p.Seller != filter.Seller,
			filter.Min != nil && p.Price.LessThan(*filter.Min),
			filter.Max != nil && p.Price.GreaterThan(*filter.Max):
			return false
		case filter.Search != "":
			return containsFold(p.Name, filter.Search) || containsFold(p.Description, filter.Search)
		}
		return true
	})
	products, total := paginate(rows, func(a, b product.Product) bool { return a.CreatedAt.After(b.CreatedAt) }, page)
	return products, total, nil
}

func (repo *productRepository) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[p.ID]; !ok {
		return product.Product{}, product.ErrNotFound
	}
	repo.db.rows[p.ID] = &p
	return p, nil
}
