package inmemdb

import (
	"context"
	"strings"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/contact"
)

type contactRepository struct {
	db *table[contact.Contact]
}

func NewContactRepository(db *DB) contact.Repository {
	return &contactRepository{db: db.contacts}
}

func (repo *contactRepository) CreateContact(_ context.Context, c contact.Contact) (contact.Contact, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = newID()
	repo.db.rows[c.ID] = &c
	return c, nil
}

func (repo *contactRepository) GetContact(_ context.Context, id string) (contact.Contact, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.rows[id]; ok {
		return *c, nil
	}
	return contact.Contact{}, contact.ErrNotFound
}

func (repo *contactRepository) FilterContacts(_ context.Context, filter contact.QueryFilter, page core.Pagination) ([]contact.Contact, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.db.filter(func(c *contact.Contact) bool {
		return (filter.Status == "" || c.Status == filter.Status) &&
			(filter.Email == "" || strings.EqualFold(c.Email, filter.Email))
	})
	contacts, total := paginate(rows, func(a, b contact.Contact) bool { return a.CreatedAt.After(b.CreatedAt) }, page)
	return contacts, total, nil
}

func (repo *contactRepository) CountContacts(_ context.Context, status string) (int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.db.filter(func(c *contact.Contact) bool { return status == "" || c.Status == status })
	return int64(len(rows)), nil
}

func (repo *contactRepository) UpdateContact(_ context.Context, c contact.Contact) (contact.Contact, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[c.ID]; !ok {
		return contact.Contact{}, contact.ErrNotFound
	}
	repo.db.rows[c.ID] = &c
	return c, nil
}

func (repo *contactRepository) DeleteContact(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return contact.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
