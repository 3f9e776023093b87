package contact

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/coffeehubnepal/api/core"
)

// Statuses
const (
	StatusOpen    = "open"
	StatusPending = "pending"
	StatusClosed  = "closed"
)

var (
	Statuses  = []string{StatusOpen, StatusPending, StatusClosed}
	statusTag = "contactstatus"

	ErrNotFound = core.NewAppError(core.KindNotFound, "CONTACT_NOT_FOUND", "Contact not found.")
)

type (
	Contact struct {
		ID          string     `json:"id" bson:"_id"`
		Name        string     `json:"name" bson:"name"`
		Email       string     `json:"email" bson:"email"`
		Phone       string     `json:"phone,omitempty" bson:"phone,omitempty"`
		Subject     string     `json:"subject" bson:"subject"`
		Message     string     `json:"message" bson:"message"`
		Status      string     `json:"status" bson:"status"`
		AdminNotes  string     `json:"adminNotes,omitempty" bson:"adminNotes,omitempty"`
		AssignedTo  string     `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
		RespondedAt *time.Time `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
		RespondedBy string     `json:"respondedBy,omitempty" bson:"respondedBy,omitempty"`
		CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	}

	NewContact struct {
		Name    string `json:"name" validate:"required,max=100"`
		Email   string `json:"email" validate:"required,email"`
		Phone   string `json:"phone" validate:"omitempty,max=20"`
		Subject string `json:"subject" validate:"required,max=200"`
		Message string `json:"message" validate:"required,min=5,max=5000"`
	}

	// UpdateContact holds the staff editable fields; nil means unchanged.
	UpdateContact struct {
		Status     *string `json:"status" validate:"omitempty,contactstatus"`
		AdminNotes *string `json:"adminNotes" validate:"omitempty,max=2000"`
		AssignedTo *string `json:"assignedTo" validate:"omitempty,max=100"`
	}

	QueryFilter struct {
		Status string `query:"status"`
		Email  string `query:"email"`
	}

	Stats struct {
		Open    int64 `json:"open"`
		Pending int64 `json:"pending"`
		Closed  int64 `json:"closed"`
		Total   int64 `json:"total"`
	}

	Repository interface {
		CreateContact(ctx context.Context, c Contact) (Contact, error)
		GetContact(ctx context.Context, id string) (Contact, error)
		// FilterContacts returns matching contacts newest first, with the total match count.
		FilterContacts(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Contact, int64, error)
		CountContacts(ctx context.Context, status string) (int64, error)
		UpdateContact(ctx context.Context, c Contact) (Contact, error)
		DeleteContact(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, statusTag, Statuses...)
}

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

var NowFunc = time.Now // mockable

func (svc *Service) Create(ctx context.Context, nc NewContact) (Contact, error) {
	ts := NowFunc().UTC()
	c, err := svc.repo.CreateContact(ctx, Contact{
		Name:      core.StripTags(nc.Name),
		Email:     core.CleanString(nc.Email, true /* lower */),
		Phone:     core.CleanString(nc.Phone),
		Subject:   core.StripTags(nc.Subject),
		Message:   core.StripTags(nc.Message),
		Status:    StatusOpen,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return Contact{}, err
	}
	svc.logger.Info("contact: new submission " + c.ID + " (" + c.Subject + ")")
	return c, nil
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Contact, core.PageInfo, error) {
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	filter.Email = core.CleanString(filter.Email, true /* lower */)
	contacts, total, err := svc.repo.FilterContacts(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return contacts, page.Info(total), nil
}

func (svc *Service) Get(ctx context.Context, id string) (Contact, error) {
	if !core.IsValidID(id) {
		return Contact{}, core.ErrInvalidID
	}
	return svc.repo.GetContact(ctx, id)
}

// Update applies uc on behalf of the staff member identified by actorID.
// Closing a contact records who responded and when.
func (svc *Service) Update(ctx context.Context, actorID, id string, uc UpdateContact) (Contact, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	ts := NowFunc().UTC()
	if uc.Status != nil {
		c.Status = *uc.Status
		if c.Status == StatusClosed {
			c.RespondedAt = &ts
			c.RespondedBy = actorID
		}
	}
	if uc.AdminNotes != nil {
		c.AdminNotes = core.StripTags(*uc.AdminNotes)
	}
	if uc.AssignedTo != nil {
		c.AssignedTo = core.CleanString(*uc.AssignedTo)
	}
	c.UpdatedAt = ts
	return svc.repo.UpdateContact(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if !core.IsValidID(id) {
		return core.ErrInvalidID
	}
	return svc.repo.DeleteContact(ctx, id)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	for _, c := range []struct {
		dst    *int64
		status string
	}{
		{&stats.Open, StatusOpen},
		{&stats.Pending, StatusPending},
		{&stats.Closed, StatusClosed},
		{&stats.Total, ""},
	} {
		if *c.dst, err = svc.repo.CountContacts(ctx, c.status); err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}
