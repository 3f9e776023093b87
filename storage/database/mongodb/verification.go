package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coffeehubnepal/api/core/verification"
)

type tokenRepository struct {
	coll *mongo.Collection
}

func NewTokenRepository(db *DB) verification.Repository {
	return &tokenRepository{coll: db.collection(colTokens)}
}

func (repo *tokenRepository) CreateToken(ctx context.Context, t verification.Token) (verification.Token, error) {
	t.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, t); err != nil {
		return verification.Token{}, errors.Wrap(err, "inserting verification token")
	}
	return t, nil
}

func (repo *tokenRepository) FindTokens(ctx context.Context, filter verification.Filter) ([]verification.Token, error) {
	q := bson.M{"type": verification.TypeVerificationToken}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if filter.Unused {
		q["usedAt"] = nil
	}
	if !filter.ExpiresAfter.IsZero() {
		q["expiresAt"] = bson.M{"$gt": filter.ExpiresAfter}
	}
	if !filter.CreatedAfter.IsZero() {
		q["createdAt"] = bson.M{"$gt": filter.CreatedAfter}
	}
	return findAll[verification.Token](ctx, repo.coll, q, options.Find().SetSort(newestFirst))
}

func (repo *tokenRepository) MarkTokenUsed(ctx context.Context, id string, at time.Time) error {
	res, err := repo.coll.UpdateOne(ctx,
		bson.M{"_id": id, "usedAt": nil},
		bson.M{"$set": bson.M{"usedAt": at}},
	)
	if err != nil {
		return errors.Wrap(err, "marking verification token used")
	}
	if res.MatchedCount == 0 {
		return verification.ErrNotFound
	}
	return nil
}

func (repo *tokenRepository) DeleteToken(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, nil)
}

func (repo *tokenRepository) DeleteTokens(ctx context.Context, email string, unusedOnly bool) error {
	q := bson.M{"email": email}
	if unusedOnly {
		q["usedAt"] = nil
	}
	if _, err := repo.coll.DeleteMany(ctx, q); err != nil {
		return errors.Wrap(err, "deleting verification tokens")
	}
	return nil
}
