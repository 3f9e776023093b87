package price

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

const (
	DefaultCurrency = "NPR"
	DefaultUnit     = "kg"
)

var (
	Varieties  = []string{"Arabica Cherry", "Arabica Parchment", "Green Beans", "Roasted Beans", "Ground Coffee", "Other"}
	varietyTag = "pricevariety"

	NowFunc = time.Now // mockable

	ErrNotFound      = core.NewAppError(core.KindNotFound, "PRICE_NOT_FOUND", "Price entry not found.")
	ErrInvalidAmount = core.NewAppError(core.KindInvalid, "INVALID_PRICE", "Price must be greater than zero.")
	errNotAllowed    = core.ErrPermissionDenied.WithMessage("Only experts and staff can manage prices.")
)

type (
	Price struct {
		ID        string          `json:"id" bson:"_id"`
		Variety   string          `json:"variety" bson:"variety"`
		Grade     string          `json:"grade,omitempty" bson:"grade,omitempty"`
		Region    string          `json:"region" bson:"region"`
		Price     decimal.Decimal `json:"price" bson:"price"`
		Unit      string          `json:"unit" bson:"unit"`
		Currency  string          `json:"currency" bson:"currency"`
		Date      time.Time       `json:"date" bson:"date"`
		Source    string          `json:"source,omitempty" bson:"source,omitempty"`
		Notes     string          `json:"notes,omitempty" bson:"notes,omitempty"`
		PostedBy  string          `json:"postedBy" bson:"postedBy"`
		CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt" bson:"updatedAt"`
	}

	NewPrice struct {
		Variety  string          `json:"variety" validate:"required,pricevariety"`
		Grade    string          `json:"grade" validate:"omitempty,max=50"`
		Region   string          `json:"region" validate:"required,notblank,max=100"`
		Price    decimal.Decimal `json:"price"`
		Unit     string          `json:"unit" validate:"omitempty,max=20"`
		Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
		Date     string          `json:"date" validate:"omitempty,isodate"`
		Source   string          `json:"source" validate:"omitempty,max=200"`
		Notes    string          `json:"notes" validate:"omitempty,max=1000"`
	}

	// UpdatePrice is a partial NewPrice; nil means unchanged.
	UpdatePrice struct {
		Variety  *string          `json:"variety" validate:"omitempty,pricevariety"`
		Grade    *string          `json:"grade" validate:"omitempty,max=50"`
		Region   *string          `json:"region" validate:"omitempty,notblank,max=100"`
		Price    *decimal.Decimal `json:"price"`
		Unit     *string          `json:"unit" validate:"omitempty,max=20"`
		Currency *string          `json:"currency" validate:"omitempty,len=3,alpha"`
		Date     *string          `json:"date" validate:"omitempty,isodate"`
		Source   *string          `json:"source" validate:"omitempty,max=200"`
		Notes    *string          `json:"notes" validate:"omitempty,max=1000"`
	}

	QueryFilter struct {
		Variety string `query:"variety"`
		Region  string `query:"region"`
		From    string `query:"from"`
		To      string `query:"to"`

		FromDate time.Time `query:"-"`
		ToDate   time.Time `query:"-"`
	}

	Repository interface {
		CreatePrice(ctx context.Context, p Price) (Price, error)
		GetPrice(ctx context.Context, id string) (Price, error)
		// FilterPrices returns matching prices by date, newest first, with the total match count.
		// QueryFilter.Region is a case-insensitive partial match.
		FilterPrices(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Price, int64, error)
		// LatestPrices returns the most recent price of every variety & region pair.
		LatestPrices(ctx context.Context) ([]Price, error)
		UpdatePrice(ctx context.Context, p Price) (Price, error)
		DeletePrice(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, varietyTag, Varieties...)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func now() time.Time { return NowFunc().UTC() }

// CanManage reports whether usr may create, edit or delete prices.
func CanManage(usr user.User) bool {
	return usr.IsStaff() || usr.Role == user.RoleExpert
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Price, core.PageInfo, error) {
	filter.Variety = core.CleanString(filter.Variety)
	filter.Region = core.CleanString(filter.Region)
	for _, b := range []struct {
		raw string
		dst *time.Time
		fld string
	}{
		{filter.From, &filter.FromDate, "from"},
		{filter.To, &filter.ToDate, "to"},
	} {
		if b.raw == "" {
			continue
		}
		t, ok := core.ParseDate(b.raw)
		if !ok {
			return nil, core.PageInfo{}, core.NewValidationError(nil, core.FieldError{Field: b.fld, Error: b.fld + " must be a valid ISO 8601 date"})
		}
		if b.fld == "to" && core.IsDateOnly(b.raw) {
			// a bare date covers the whole day; stored dates have millisecond precision
			t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
		}
		*b.dst = t
	}

	prices, total, err := svc.repo.FilterPrices(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return prices, page.Info(total), nil
}

func (svc *Service) Latest(ctx context.Context) ([]Price, error) {
	return svc.repo.LatestPrices(ctx)
}

func (svc *Service) Get(ctx context.Context, id string) (Price, error) {
	if !core.IsValidID(id) {
		return Price{}, core.ErrInvalidID
	}
	return svc.repo.GetPrice(ctx, id)
}

func (svc *Service) Create(ctx context.Context, actor user.User, np NewPrice) (Price, error) {
	if !CanManage(actor) {
		return Price{}, errNotAllowed
	}
	if !np.Price.IsPositive() {
		return Price{}, ErrInvalidAmount
	}
	ts := now()
	date := ts
	if d, ok := core.ParseDate(np.Date); ok {
		date = d
	}
	p := Price{
		Variety:   np.Variety,
		Grade:     core.StripTags(np.Grade),
		Region:    core.StripTags(np.Region),
		Price:     np.Price,
		Unit:      core.CleanString(np.Unit),
		Currency:  core.CleanString(np.Currency),
		Date:      date,
		Source:    core.StripTags(np.Source),
		Notes:     core.StripTags(np.Notes),
		PostedBy:  actor.ID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if p.Unit == "" {
		p.Unit = DefaultUnit
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return svc.repo.CreatePrice(ctx, p)
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, up UpdatePrice) (Price, error) {
	if !CanManage(actor) {
		return Price{}, errNotAllowed
	}
	if up.Price != nil && !up.Price.IsPositive() {
		return Price{}, ErrInvalidAmount
	}
	p, err := svc.Get(ctx, id)
	if err != nil {
		return Price{}, err
	}
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&p.Grade, up.Grade},
		{&p.Region, up.Region},
		{&p.Source, up.Source},
		{&p.Notes, up.Notes},
	} {
		if f.src != nil {
			*f.dst = core.StripTags(*f.src)
		}
	}
	if up.Variety != nil {
		p.Variety = *up.Variety
	}
	if up.Price != nil {
		p.Price = *up.Price
	}
	if up.Unit != nil && *up.Unit != "" {
		p.Unit = core.CleanString(*up.Unit)
	}
	if up.Currency != nil && *up.Currency != "" {
		p.Currency = core.CleanString(*up.Currency)
	}
	if up.Date != nil {
		if d, ok := core.ParseDate(*up.Date); ok {
			p.Date = d
		}
	}
	p.UpdatedAt = now()
	return svc.repo.UpdatePrice(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if !CanManage(actor) {
		return errNotAllowed
	}
	if !core.IsValidID(id) {
		return core.ErrInvalidID
	}
	return svc.repo.DeletePrice(ctx, id)
}
