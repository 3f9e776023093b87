package inmemdb

import (
	"context"

	"github.com/coffeehubnepal/api/core/otp"
)

type otpRepository struct {
	db *table[otp.OTP]
}

func NewOTPRepository(db *DB) otp.Repository {
	return &otpRepository{db: db.otps}
}

func (repo *otpRepository) CreateOTP(_ context.Context, o otp.OTP) (otp.OTP, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	o.ID = newID()
	repo.db.rows[o.ID] = &o
	return o, nil
}

func (repo *otpRepository) FindOTP(_ context.Context, filter otp.Filter) (otp.OTP, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var (
		found otp.OTP
		ok    bool
	)
	for _, o := range repo.db.rows {
		switch {
		case filter.Email != "" && o.Email != filter.Email,
			filter.Purpose != "" && o.Purpose != filter.Purpose,
			filter.Verified != nil && o.Verified != *filter.Verified,
			!filter.CreatedAfter.IsZero() && !o.CreatedAt.After(filter.CreatedAfter),
			!filter.ExpiresAfter.IsZero() && !o.ExpiresAt.After(filter.ExpiresAfter):
			continue
		}
		if !ok || o.CreatedAt.After(found.CreatedAt) {
			found, ok = *o, true
		}
	}
	if !ok {
		return otp.OTP{}, otp.ErrNotFound
	}
	return found, nil
}

func (repo *otpRepository) UpdateOTP(_ context.Context, o otp.OTP) (otp.OTP, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[o.ID]; !ok {
		return otp.OTP{}, otp.ErrNotFound
	}
	repo.db.rows[o.ID] = &o
	return o, nil
}

func (repo *otpRepository) DeleteOTP(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.rows, id)
	return nil
}

func (repo *otpRepository) DeleteOTPs(_ context.Context, email, purpose string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, o := range repo.db.rows {
		if o.Email == email && (purpose == "" || o.Purpose == purpose) {
			delete(repo.db.rows, id)
		}
	}
	return nil
}
