package inmemdb

import (
	"context"
	"sort"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/price"
)

type priceRepository struct {
	db *table[price.Price]
}

func NewPriceRepository(db *DB) price.Repository {
	return &priceRepository{db: db.prices}
}

func newestPrice(a, b price.Price) bool {
	if a.Date.Equal(b.Date) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Date.After(b.Date)
}

func (repo *priceRepository) CreatePrice(_ context.Context, p price.Price) (price.Price, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = newID()
	repo.db.rows[p.ID] = &p
	return p, nil
}

func (repo *priceRepository) GetPrice(_ context.Context, id string) (price.Price, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.rows[id]; ok {
		return *p, nil
	}
	return price.Price{}, price.ErrNotFound
}

func (repo *priceRepository) FilterPrices(_ context.Context, filter price.QueryFilter, page core.Pagination) ([]price.Price, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.db.filter(func(p *price.Price) bool {
		switch {
		case filter.Variety != "" && p.Variety != filter.Variety,
			filter.Region != "" && !containsFold(p.Region, filter.Region),
			!filter.FromDate.IsZero() && p.Date.Before(filter.FromDate),
			!filter.ToDate.IsZero() && p.Date.After(filter.ToDate):
			return false
		}
		return true
	})
	prices, total := paginate(rows, newestPrice, page)
	return prices, total, nil
}

func (repo *priceRepository) LatestPrices(_ context.Context) ([]price.Price, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	latest := make(map[[2]string]price.Price)
	for _, p := range repo.db.rows {
		key := [2]string{p.Variety, p.Region}
		if cur, ok := latest[key]; !ok || newestPrice(*p, cur) {
			latest[key] = *p
		}
	}
	prices := make([]price.Price, 0, len(latest))
	for _, p := range latest {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool {
		if prices[i].Variety != prices[j].Variety {
			return prices[i].Variety < prices[j].Variety
		}
		return prices[i].Region < prices[j].Region
	})
	return prices, nil
}

func (repo *priceRepository) UpdatePrice(_ context.Context, p price.Price) (price.Price, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[p.ID]; !ok {
		return price.Price{}, price.ErrNotFound
	}
	repo.db.rows[p.ID] = &p
	return p, nil
}

func (repo *priceRepository) DeletePrice(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return price.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
