package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/price"
)

var newestPriceFirst = bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}

type priceRepository struct {
	coll *mongo.Collection
}

func NewPriceRepository(db *DB) price.Repository {
	return &priceRepository{coll: db.collection(colPrices)}
}

func (repo *priceRepository) CreatePrice(ctx context.Context, p price.Price) (price.Price, error) {
	p.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, p); err != nil {
		return price.Price{}, errors.Wrap(err, "inserting price")
	}
	return p, nil
}

func (repo *priceRepository) GetPrice(ctx context.Context, id string) (price.Price, error) {
	return findOne[price.Price](ctx, repo.coll, bson.M{"_id": id}, price.ErrNotFound)
}

func (repo *priceRepository) FilterPrices(ctx context.Context, filter price.QueryFilter, page core.Pagination) ([]price.Price, int64, error) {
	q := bson.M{}
	if filter.Variety != "" {
		q["variety"] = filter.Variety
	}
	if filter.Region != "" {
		q["region"] = contains(filter.Region)
	}
	dateRange := bson.M{}
	if !filter.FromDate.IsZero() {
		dateRange["$gte"] = filter.FromDate
	}
	if !filter.ToDate.IsZero() {
		dateRange["$lte"] = filter.ToDate
	}
	if len(dateRange) > 0 {
		q["date"] = dateRange
	}
	return findPage[price.Price](ctx, repo.coll, q, newestPriceFirst, page)
}

func (repo *priceRepository) LatestPrices(ctx context.Context) ([]price.Price, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: newestPriceFirst}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"variety": "$variety", "region": "$region"},
			"doc": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
		{{Key: "$sort", Value: bson.D{{Key: "variety", Value: 1}, {Key: "region", Value: 1}}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating latest prices")
	}
	prices := make([]price.Price, 0)
	if err := cur.All(ctx, &prices); err != nil {
		return nil, errors.Wrap(err, "decoding latest prices")
	}
	return prices, nil
}

func (repo *priceRepository) UpdatePrice(ctx context.Context, p price.Price) (price.Price, error) {
	if err := replaceByID(ctx, repo.coll, p.ID, p, price.ErrNotFound); err != nil {
		return price.Price{}, err
	}
	return p, nil
}

func (repo *priceRepository) DeletePrice(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, price.ErrNotFound)
}
