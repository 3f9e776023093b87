package event

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
)

// Types
const (
	TypeFestival   = "Festival"
	TypeWorkshop   = "Workshop"
	TypeTraining   = "Training"
	TypeConference = "Conference"
	TypeOther      = "Other"
)

var (
	Types   = []string{TypeFestival, TypeWorkshop, TypeTraining, TypeConference, TypeOther}
	typeTag = "eventtype"

	NowFunc = time.Now // mockable

	// errors
	ErrNotFound     = core.NewAppError(core.KindNotFound, "EVENT_NOT_FOUND", "Event not found.")
	ErrUnauthorized = core.NewAppError(core.KindForbidden, "UNAUTHORIZED", "You can only modify events you created.")
	ErrPast         = core.NewAppError(core.KindInvalid, "EVENT_PAST", "This event has already taken place.")
	ErrFull         = core.NewAppError(core.KindInvalid, "EVENT_FULL", "This event is fully booked.")
)

type (
	Event struct {
		ID           string    `json:"id" bson:"_id"`
		Title        string    `json:"title" bson:"title"`
		Description  string    `json:"description" bson:"description"`
		Date         time.Time `json:"date" bson:"date"`
		Time         string    `json:"time" bson:"time"`
		Location     string    `json:"location" bson:"location"`
		Address      string    `json:"address,omitempty" bson:"address,omitempty"`
		Type         string    `json:"type" bson:"type"`
		Image        string    `json:"image,omitempty" bson:"image,omitempty"`
		Organizer    string    `json:"organizer" bson:"organizer"`
		Contact      string    `json:"contact,omitempty" bson:"contact,omitempty"`
		MaxAttendees int       `json:"maxAttendees,omitempty" bson:"maxAttendees,omitempty"` // 0 means unlimited
		Attendees    int       `json:"attendees" bson:"attendees"`
		Agenda       []string  `json:"agenda" bson:"agenda"`
		CreatedBy    string    `json:"createdBy" bson:"createdBy"`
		Active       bool      `json:"active" bson:"active"`
		CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
	}

	NewEvent struct {
		Title        string   `json:"title" validate:"required,notblank,max=200"`
		Description  string   `json:"description" validate:"required,notblank,max=5000"`
		Date         string   `json:"date" validate:"required,isodate"`
		Time         string   `json:"time" validate:"required,notblank,max=100"`
		Location     string   `json:"location" validate:"required,notblank,max=200"`
		Address      string   `json:"address" validate:"omitempty,max=500"`
		Type         string   `json:"type" validate:"required,eventtype"`
		Image        string   `json:"image" validate:"omitempty,url"`
		Organizer    string   `json:"organizer" validate:"required,notblank,max=200"`
		Contact      string   `json:"contact" validate:"omitempty,max=100"`
		MaxAttendees *int     `json:"maxAttendees" validate:"omitempty,min=1"`
		Agenda       []string `json:"agenda" validate:"omitempty,dive,max=500"`
	}

	// UpdateEvent is a partial NewEvent; nil means unchanged.
	UpdateEvent struct {
		Title        *string   `json:"title" validate:"omitempty,notblank,max=200"`
		Description  *string   `json:"description" validate:"omitempty,notblank,max=5000"`
		Date         *string   `json:"date" validate:"omitempty,isodate"`
		Time         *string   `json:"time" validate:"omitempty,notblank,max=100"`
		Location     *string   `json:"location" validate:"omitempty,notblank,max=200"`
		Address      *string   `json:"address" validate:"omitempty,max=500"`
		Type         *string   `json:"type" validate:"omitempty,eventtype"`
		Image        *string   `json:"image" validate:"omitempty,url"`
		Organizer    *string   `json:"organizer" validate:"omitempty,notblank,max=200"`
		Contact      *string   `json:"contact" validate:"omitempty,max=100"`
		MaxAttendees *int      `json:"maxAttendees" validate:"omitempty,min=1"`
		Agenda       *[]string `json:"agenda" validate:"omitempty,dive,max=500"`
	}

	QueryFilter struct {
		Type      string    `query:"type"`
		Location  string    `query:"location"`
		CreatedBy string    `query:"createdBy"`
		Upcoming  string    `query:"upcoming"` // anything but "false" lists upcoming events only
		From      time.Time `query:"-"`
	}

	Repository interface {
		CreateEvent(ctx context.Context, e Event) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		// FilterEvents returns active events matching filter, soonest first, with the total match count.
		// QueryFilter.Location does a case-insensitive partial match.
		FilterEvents(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Event, int64, error)
		UpdateEvent(ctx context.Context, e Event) (Event, error)
		// RegisterAttendee atomically increments the attendees of an active event dated at or after `now`
		// that still has room. It returns ErrNotFound when no event satisfies those conditions.
		RegisterAttendee(ctx context.Context, id string, now time.Time) (Event, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, typeTag, Types...)
}

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func now() time.Time { return NowFunc().UTC() }

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Event, core.PageInfo, error) {
	filter.Type = core.CleanString(filter.Type)
	filter.Location = core.CleanString(filter.Location)
	filter.CreatedBy = core.CleanString(filter.CreatedBy)
	if filter.CreatedBy != "" && !core.IsValidID(filter.CreatedBy) {
		return nil, core.PageInfo{}, core.ErrInvalidID
	}
	filter.From = time.Time{}
	if filter.Upcoming != "false" {
		filter.From = now()
	}
	events, total, err := svc.repo.FilterEvents(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return events, page.Info(total), nil
}

func (svc *Service) Get(ctx context.Context, id string) (Event, error) {
	if !core.IsValidID(id) {
		return Event{}, core.ErrInvalidID
	}
	return svc.repo.GetEvent(ctx, id)
}

func (svc *Service) Create(ctx context.Context, userID string, ne NewEvent) (Event, error) {
	date, _ := core.ParseDate(ne.Date)
	ts := now()
	e := Event{
		Title:       core.StripTags(ne.Title),
		Description: core.StripTags(ne.Description),
		Date:        date,
		Time:        core.StripTags(ne.Time),
		Location:    core.StripTags(ne.Location),
		Address:     core.StripTags(ne.Address),
		Type:        ne.Type,
		Image:       core.CleanString(ne.Image),
		Organizer:   core.StripTags(ne.Organizer),
		Contact:     core.StripTags(ne.Contact),
		Agenda:      core.StripTagsAll(ne.Agenda),
		CreatedBy:   userID,
		Active:      true,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if ne.MaxAttendees != nil {
		e.MaxAttendees = *ne.MaxAttendees
	}
	return svc.repo.CreateEvent(ctx, e)
}

// getOwned loads the event identified by id, failing unless userID created it.
func (svc *Service) getOwned(ctx context.Context, userID, id string) (Event, error) {
	e, err := svc.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if e.CreatedBy != userID {
		return Event{}, ErrUnauthorized
	}
	return e, nil
}

func (svc *Service) Update(ctx context.Context, userID, id string, ue UpdateEvent) (Event, error) {
	e, err := svc.getOwned(ctx, userID, id)
	if err != nil {
		return Event{}, err
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = core.StripTags(*src)
		}
	}
	set(&e.Title, ue.Title)
	set(&e.Description, ue.Description)
	set(&e.Time, ue.Time)
	set(&e.Location, ue.Location)
	set(&e.Address, ue.Address)
	set(&e.Organizer, ue.Organizer)
	set(&e.Contact, ue.Contact)
	if ue.Date != nil {
		e.Date, _ = core.ParseDate(*ue.Date)
	}
	if ue.Type != nil {
		e.Type = *ue.Type
	}
	if ue.Image != nil {
		e.Image = core.CleanString(*ue.Image)
	}
	if ue.MaxAttendees != nil {
		e.MaxAttendees = *ue.MaxAttendees
	}
	if ue.Agenda != nil {
		e.Agenda = core.StripTagsAll(*ue.Agenda)
	}
	e.UpdatedAt = now()
	return svc.repo.UpdateEvent(ctx, e)
}

// Delete deactivates the event; it stays in storage.
func (svc *Service) Delete(ctx context.Context, userID, id string) error {
	e, err := svc.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	e.Active = false
	e.UpdatedAt = now()
	_, err = svc.repo.UpdateEvent(ctx, e)
	return err
}

// Register books one seat for userID.
func (svc *Service) Register(ctx context.Context, userID, id string) (Event, error) {
	if !core.IsValidID(id) {
		return Event{}, core.ErrInvalidID
	}
	ts := now()
	e, err := svc.repo.RegisterAttendee(ctx, id, ts)
	if err == nil {
		svc.logger.Info("event: user " + userID + " registered for " + id)
		return e, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Event{}, err
	}

	// find out why the conditional update matched nothing
	if e, err = svc.repo.GetEvent(ctx, id); err != nil {
		return Event{}, err
	}
	switch {
	case !e.Active:
		return Event{}, ErrNotFound
	case e.Date.Before(ts):
		return Event{}, ErrPast
	default:
		return Event{}, ErrFull
	}
}
