package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{coll: db.collection(colUsers)}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, usr); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailInUse
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := bson.M{}
	if filter.ID != "" {
		q["_id"] = filter.ID
	}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if len(q) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return findOne[user.User](ctx, repo.coll, q, user.ErrNotFound)
}

func userQuery(filter user.QueryFilter) bson.M {
	q := bson.M{}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"name": contains(filter.Search)},
			bson.M{"email": contains(filter.Search)},
		}
	}
	if filter.Role != "" {
		q["role"] = filter.Role
	}
	if filter.Verified != nil {
		q["verified"] = *filter.Verified
	}
	if filter.VerificationStatus != "" {
		q["verificationStatus"] = filter.VerificationStatus
	}
	if filter.RoleChangeStatus != "" {
		q["roleChangeStatus"] = filter.RoleChangeStatus
	}
	if !filter.CreatedFrom.IsZero() {
		q["createdAt"] = bson.M{"$gte": filter.CreatedFrom}
	}
	return q
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, page core.Pagination) ([]user.User, int64, error) {
	return findPage[user.User](ctx, repo.coll, userQuery(filter), newestFirst, page)
}

func (repo *userRepository) CountUsers(ctx context.Context, filter user.QueryFilter) (int64, error) {
	n, err := repo.coll.CountDocuments(ctx, userQuery(filter))
	if err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := replaceByID(ctx, repo.coll, usr.ID, usr, user.ErrNotFound); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailInUse
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, user.ErrNotFound)
}
