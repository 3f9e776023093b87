package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coffeehubnepal/api/core/otp"
)

type otpRepository struct {
	coll *mongo.Collection
}

func NewOTPRepository(db *DB) otp.Repository {
	return &otpRepository{coll: db.collection(colOTPs)}
}

func (repo *otpRepository) CreateOTP(ctx context.Context, o otp.OTP) (otp.OTP, error) {
	o.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, o); err != nil {
		return otp.OTP{}, errors.Wrap(err, "inserting otp")
	}
	return o, nil
}

func (repo *otpRepository) FindOTP(ctx context.Context, filter otp.Filter) (otp.OTP, error) {
	q := bson.M{}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if filter.Purpose != "" {
		q["purpose"] = filter.Purpose
	}
	if filter.Verified != nil {
		q["verified"] = *filter.Verified
	}
	if !filter.CreatedAfter.IsZero() {
		q["createdAt"] = bson.M{"$gt": filter.CreatedAfter}
	}
	if !filter.ExpiresAfter.IsZero() {
		q["expiresAt"] = bson.M{"$gt": filter.ExpiresAfter}
	}
	return findOne[otp.OTP](ctx, repo.coll, q, otp.ErrNotFound, options.FindOne().SetSort(newestFirst))
}

func (repo *otpRepository) UpdateOTP(ctx context.Context, o otp.OTP) (otp.OTP, error) {
	if err := replaceByID(ctx, repo.coll, o.ID, o, otp.ErrNotFound); err != nil {
		return otp.OTP{}, err
	}
	return o, nil
}

func (repo *otpRepository) DeleteOTP(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.coll, id, nil)
}

func (repo *otpRepository) DeleteOTPs(ctx context.Context, email, purpose string) error {
	q := bson.M{"email": email}
	if purpose != "" {
		q["purpose"] = purpose
	}
	if _, err := repo.coll.DeleteMany(ctx, q); err != nil {
		return errors.Wrap(err, "deleting otps")
	}
	return nil
}
