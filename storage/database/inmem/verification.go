package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/coffeehubnepal/api/core/verification"
)

type tokenRepository struct {
	db *table[verification.Token]
}

func NewTokenRepository(db *DB) verification.Repository {
	return &tokenRepository{db: db.tokens}
}

func (repo *tokenRepository) CreateToken(_ context.Context, t verification.Token) (verification.Token, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = newID()
	repo.db.rows[t.ID] = &t
	return t, nil
}

func (repo *tokenRepository) FindTokens(_ context.Context, filter verification.Filter) ([]verification.Token, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tokens := repo.db.filter(func(t *verification.Token) bool {
		switch {
		case t.Type != verification.TypeVerificationToken,
			filter.Email != "" && t.Email != filter.Email,
			filter.Unused && t.UsedAt != nil,
			!filter.ExpiresAfter.IsZero() && !t.ExpiresAt.After(filter.ExpiresAfter),
			!filter.CreatedAfter.IsZero() && !t.CreatedAt.After(filter.CreatedAfter):
			return false
		}
		return true
	})
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens, nil
}

func (repo *tokenRepository) MarkTokenUsed(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.rows[id]
	if !ok || t.UsedAt != nil {
		return verification.ErrNotFound
	}
	t.UsedAt = &at
	return nil
}

func (repo *tokenRepository) DeleteToken(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.rows, id)
	return nil
}

func (repo *tokenRepository) DeleteTokens(_ context.Context, email string, unusedOnly bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, t := range repo.db.rows {
		if t.Email == email && (!unusedOnly || t.UsedAt == nil) {
			delete(repo.db.rows, id)
		}
	}
	return nil
}
