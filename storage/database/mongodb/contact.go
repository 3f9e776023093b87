package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/contact"
)

type contactRepository struct {
	coll *mongo.Collection
}

func NewContactRepository(db *DB) contact.Repository {
	return &contactRepository{coll: db.collection(colContacts)}
}

func (repo *contactRepository) CreateContact(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	c.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, c); err != nil {
		return contact.Contact{}, errors.Wrap(err, "inserting contact")
	}
	return c, nil
}

func (repo *contactRepository) GetContact(ctx context.Context, id string) (contact.Contact, error) {
	return findOne[contact.Contact](ctx, repo.coll, bson.M{"_id": id}, contact.ErrNotFound)
}

func (repo *contactRepository) FilterContacts(ctx context.Context, filter contact.QueryFilter, page core.Pagination) ([]contact.Contact, int64, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	return findPage[contact.Contact](ctx, repo.coll, q, newestFirst, page)
}

func (repo *contactRepository) CountContacts(ctx context.Context, status string) (int64, error) {
	q := bson.M{}
	if status != "" {
		q["status"] = status
	}
	n, err := repo.coll.CountDocuments(ctx, q)
	if err != nil {
		return 0, errors.Wrap(err, "counting contacts")
	}
	return n, nil
}

func (repo *contactRepository) UpdateContact(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	if err := replaceByID(ctx, repo.coll, c.ID, c, contact.ErrNotFound); err != nil {
		return contact.Contact{}, err
	}
	return c, nil
}

func (repo *contactRepository) DeleteContact(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, contact.ErrNotFound)
}
