package inmemdb

import (
	"context"
	"strings"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

type userRepository struct {
	db *table[user.User]
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.users}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.rows {
		if strings.EqualFold(u.Email, usr.Email) {
			return user.User{}, user.ErrEmailInUse
		}
	}
	usr.ID = newID()
	repo.db.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID == "" && filter.Email == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.rows {
		if filter.ID != "" && u.ID != filter.ID {
			continue
		}
		if filter.Email != "" && !strings.EqualFold(u.Email, filter.Email) {
			continue
		}
		return *u, nil
	}
	return user.User{}, user.ErrNotFound
}

func matchUser(filter user.QueryFilter) func(*user.User) bool {
	return func(u *user.User) bool {
		if filter.Search != "" && !containsFold(u.Name, filter.Search) && !containsFold(u.Email, filter.Search) {
			return false
		}
		if filter.Role != "" && u.Role != filter.Role {
			return false
		}
		if filter.Verified != nil && u.Verified != *filter.Verified {
			return false
		}
		if filter.VerificationStatus != "" && u.VerificationStatus != filter.VerificationStatus {
			return false
		}
		if filter.RoleChangeStatus != "" && u.RoleChangeStatus != filter.RoleChangeStatus {
			return false
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		return true
	}
}

func (repo *userRepository) FilterUsers(_ context.Context, filter user.QueryFilter, page core.Pagination) ([]user.User, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users, total := paginate(repo.db.filter(matchUser(filter)), func(a, b user.User) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}, page)
	return users, total, nil
}

func (repo *userRepository) CountUsers(_ context.Context, filter user.QueryFilter) (int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return int64(len(repo.db.filter(matchUser(filter)))), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
