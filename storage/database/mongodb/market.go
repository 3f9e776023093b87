package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/job"
	"github.com/coffeehubnepal/api/core/product"
)

type jobRepository struct {
	coll *mongo.Collection
}

func NewJobRepository(db *DB) job.Repository {
	return &jobRepository{coll: db.collection(colJobs)}
}

func (repo *jobRepository) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	j.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, j); err != nil {
		return job.Job{}, errors.Wrap(err, "inserting job")
	}
	return j, nil
}

func (repo *jobRepository) GetJob(ctx context.Context, id string) (job.Job, error) {
	return findOne[job.Job](ctx, repo.coll, bson.M{"_id": id}, job.ErrNotFound)
}

func (repo *jobRepository) FilterJobs(ctx context.Context, filter job.QueryFilter, page core.Pagination) ([]job.Job, int64, error) {
	q := bson.M{"active": true}
	if filter.Type != "" {
		q["type"] = filter.Type
	}
	if filter.Location != "" {
		q["location"] = contains(filter.Location)
	}
	if filter.PostedBy != "" {
		q["postedBy"] = filter.PostedBy
	}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"title": contains(filter.Search)},
			bson.M{"description": contains(filter.Search)},
			bson.M{"company": contains(filter.Search)},
		}
	}
	return findPage[job.Job](ctx, repo.coll, q, newestFirst, page)
}

func (repo *jobRepository) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	if err := replaceByID(ctx, repo.coll, j.ID, j, job.ErrNotFound); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

type productRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *DB) product.Repository {
	return &productRepository{coll: db.collection(colProducts)}
}

func (repo *productRepository) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	p.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, p); err != nil {
		return product.Product{}, errors.Wrap(err, "inserting product")
	}
	return p, nil
}

func (repo *productRepository) GetProduct(ctx context.Context, id string) (product.Product, error) {
	return findOne[product.Product](ctx, repo.coll, bson.M{"_id": id}, product.ErrNotFound)
}

func (repo *productRepository) FilterProducts(ctx context.Context, filter product.QueryFilter, page core.Pagination) ([]product.Product, int64, error) {
	q := bson.M{"active": true}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.Location != "" {
		q["location"] = contains(filter.Location)
	}
	if filter.Seller != "" {
		q["seller"] = filter.Seller
	}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"name": contains(filter.Search)},
			bson.M{"description": contains(filter.Search)},
		}
	}

	priceRange := bson.M{}
	if filter.Min != nil {
		d128, err := toDecimal128(*filter.Min)
		if err != nil {
			return nil, 0, errors.Wrap(err, "converting minPrice")
		}
		priceRange["$gte"] = d128
	}
	if filter.Max != nil {
		d128, err := toDecimal128(*filter.Max)
		if err != nil {
			return nil, 0, errors.Wrap(err, "converting maxPrice")
		}
		priceRange["$lte"] = d128
	}
	if len(priceRange) > 0 {
		q["price"] = priceRange
	}
	return findPage[product.Product](ctx, repo.coll, q, newestFirst, page)
}

func (repo *productRepository) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if err := replaceByID(ctx, repo.coll, p.ID, p, product.ErrNotFound); err != nil {
		return product.Product{}, err
	}
	return p, nil
}
