package product

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

const DefaultCurrency = "NPR"

var (
	Categories  = []string{"Green Beans", "Roasted Beans", "Ground Coffee", "Cherry", "Parchment", "Equipment", "Other"}
	categoryTag = "productcategory"

	NowFunc = time.Now // mockable

	ErrNotFound      = core.NewAppError(core.KindNotFound, "PRODUCT_NOT_FOUND", "Product not found.")
	ErrInvalidAmount = core.NewAppError(core.KindInvalid, "INVALID_AMOUNT", "Price and quantity cannot be negative.")
	ErrInvalidRange  = core.NewAppError(core.KindInvalid, "INVALID_PRICE_RANGE", "minPrice cannot be greater than maxPrice.")
)

type (
	Product struct {
		ID          string          `json:"id" bson:"_id"`
		Name        string          `json:"name" bson:"name"`
		Description string          `json:"description" bson:"description"`
		Category    string          `json:"category" bson:"category"`
		Price       decimal.Decimal `json:"price" bson:"price"`
		Currency    string          `json:"currency" bson:"currency"`
		Unit        string          `json:"unit" bson:"unit"`
		Quantity    decimal.Decimal `json:"quantity" bson:"quantity"`
		Location    string          `json:"location" bson:"location"`
		Images      []string        `json:"images" bson:"images"`
		Seller      string          `json:"seller" bson:"seller"`
		SellerName  string          `json:"sellerName" bson:"sellerName"`
		Contact     string          `json:"contact,omitempty" bson:"contact,omitempty"`
		Active      bool            `json:"active" bson:"active"`
		CreatedAt   time.Time       `json:"createdAt" bson:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt" bson:"updatedAt"`
	}

	NewProduct struct {
		Name        string          `json:"name" validate:"required,notblank,max=200"`
		Description string          `json:"description" validate:"required,notblank,max=5000"`
		Category    string          `json:"category" validate:"required,productcategory"`
		Price       decimal.Decimal `json:"price"`
		Currency    string          `json:"currency" validate:"omitempty,len=3,alpha"`
		Unit        string          `json:"unit" validate:"required,max=20"`
		Quantity    decimal.Decimal `json:"quantity"`
		Location    string          `json:"location" validate:"required,max=200"`
		Images      []string        `json:"images" validate:"omitempty,max=10,dive,url"`
		Contact     string          `json:"contact" validate:"omitempty,max=100"`
	}

	// UpdateProduct is a partial NewProduct; nil means unchanged.
	UpdateProduct struct {
		Name        *string          `json:"name" validate:"omitempty,notblank,max=200"`
		Description *string          `json:"description" validate:"omitempty,notblank,max=5000"`
		Category    *string          `json:"category" validate:"omitempty,productcategory"`
		Price       *decimal.Decimal `json:"price"`
		Currency    *string          `json:"currency" validate:"omitempty,len=3,alpha"`
		Unit        *string          `json:"unit" validate:"omitempty,min=1,max=20"`
		Quantity    *decimal.Decimal `json:"quantity"`
		Location    *string          `json:"location" validate:"omitempty,min=1,max=200"`
		Images      *[]string        `json:"images" validate:"omitempty,max=10,dive,url"`
		Contact     *string          `json:"contact" validate:"omitempty,max=100"`
	}

	QueryFilter struct {
		Category string `query:"category"`
		Location string `query:"location"`
		Search   string `query:"search"`
		Seller   string `query:"seller"`
		MinPrice string `query:"minPrice"`
		MaxPrice string `query:"maxPrice"`

		Min *decimal.Decimal `query:"-"`
		Max *decimal.Decimal `query:"-"`
	}

	Repository interface {
		CreateProduct(ctx context.Context, p Product) (Product, error)
		GetProduct(ctx context.Context, id string) (Product, error)
		// FilterProducts returns active products matching filter newest first, with the total match count.
		// QueryFilter.Search matches one of Product.Name or Product.Description, case-insensitively.
		FilterProducts(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Product, int64, error)
		UpdateProduct(ctx context.Context, p Product) (Product, error)
	}

	Service struct {
		repo Repository
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, categoryTag, Categories...)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func now() time.Time { return NowFunc().UTC() }

func parseBound(s string) (*decimal.Decimal, error) {
	if s = core.CleanString(s); s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "price", Error: "price bounds must be numbers"})
	}
	return &d, nil
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Product, core.PageInfo, error) {
	var err error
	if filter.Min, err = parseBound(filter.MinPrice); err != nil {
		return nil, core.PageInfo{}, err
	}
	if filter.Max, err = parseBound(filter.MaxPrice); err != nil {
		return nil, core.PageInfo{}, err
	}
	if filter.Min != nil && filter.Max != nil && filter.Min.GreaterThan(*filter.Max) {
		return nil, core.PageInfo{}, ErrInvalidRange
	}
	filter.Category = core.CleanString(filter.Category)
	filter.Location = core.CleanString(filter.Location)
	filter.Search = core.CleanString(filter.Search)
	filter.Seller = core.CleanString(filter.Seller)
	if filter.Seller != "" && !core.IsValidID(filter.Seller) {
		return nil, core.PageInfo{}, core.ErrInvalidID
	}

	products, total, err := svc.repo.FilterProducts(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return products, page.Info(total), nil
}

func (svc *Service) Get(ctx context.Context, id string) (Product, error) {
	if !core.IsValidID(id) {
		return Product{}, core.ErrInvalidID
	}
	p, err := svc.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !p.Active {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) Create(ctx context.Context, seller user.User, np NewProduct) (Product, error) {
	if np.Price.IsNegative() || np.Quantity.IsNegative() {
		return Product{}, ErrInvalidAmount
	}
	currency := core.CleanString(np.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	ts := now()
	return svc.repo.CreateProduct(ctx, Product{
		Name:        core.StripTags(np.Name),
		Description: core.SanitizeHTML(np.Description),
		Category:    np.Category,
		Price:       np.Price,
		Currency:    currency,
		Unit:        core.StripTags(np.Unit),
		Quantity:    np.Quantity,
		Location:    core.StripTags(np.Location),
		Images:      core.CleanStrings(np.Images),
		Seller:      seller.ID,
		SellerName:  seller.Name,
		Contact:     core.StripTags(np.Contact),
		Active:      true,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
}

// getEditable loads the product identified by id, failing unless actor sells it or is staff.
func (svc *Service) getEditable(ctx context.Context, actor user.User, id string) (Product, error) {
	p, err := svc.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.Seller != actor.ID && !actor.IsStaff() {
		return Product{}, core.ErrPermissionDenied
	}
	return p, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, up UpdateProduct) (Product, error) {
	if (up.Price != nil && up.Price.IsNegative()) || (up.Quantity != nil && up.Quantity.IsNegative()) {
		return Product{}, ErrInvalidAmount
	}
	p, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return Product{}, err
	}
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&p.Name, up.Name},
		{&p.Unit, up.Unit},
		{&p.Location, up.Location},
		{&p.Contact, up.Contact},
	} {
		if f.src != nil {
			*f.dst = core.StripTags(*f.src)
		}
	}
	if up.Description != nil {
		p.Description = core.SanitizeHTML(*up.Description)
	}
	if up.Category != nil {
		p.Category = *up.Category
	}
	if up.Price != nil {
		p.Price = *up.Price
	}
	if up.Currency != nil && *up.Currency != "" {
		p.Currency = core.CleanString(*up.Currency)
	}
	if up.Quantity != nil {
		p.Quantity = *up.Quantity
	}
	if up.Images != nil {
		p.Images = core.CleanStrings(*up.Images)
	}
	p.UpdatedAt = now()
	return svc.repo.UpdateProduct(ctx, p)
}

// Delete deactivates the listing.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return err
	}
	p.Active = false
	p.UpdatedAt = now()
	_, err = svc.repo.UpdateProduct(ctx, p)
	return err
}
