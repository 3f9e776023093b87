package inmemdb

import (
	"context"
	"time"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/event"
)

type eventRepository struct {
	db *table[event.Event]
}

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{db: db.events}
}

func (repo *eventRepository) CreateEvent(_ context.Context, e event.Event) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e.ID = newID()
	repo.db.rows[e.ID] = &e
	return e, nil
}

func (repo *eventRepository) GetEvent(_ context.Context, id string) (event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.rows[id]; ok {
		return *e, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) FilterEvents(_ context.Context, filter event.QueryFilter, page core.Pagination) ([]event.Event, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := repo.db.filter(func(e *event.Event) bool {
		switch {
		case !e.Active,
			filter.Type != "" && e.Type != filter.Type,
			filter.Location != "" && !containsFold(e.Location, filter.Location),
			filter.CreatedBy != "" && e.CreatedBy != filter.CreatedBy,
			!filter.From.IsZero() && e.Date.Before(filter.From):
			return false
		}
		return true
	})
	events, total := paginate(rows, func(a, b event.Event) bool { return a.Date.Before(b.Date) }, page)
	return events, total, nil
}

func (repo *eventRepository) UpdateEvent(_ context.Context, e event.Event) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[e.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.rows[e.ID] = &e
	return e, nil
}

func (repo *eventRepository) RegisterAttendee(_ context.Context, id string, now time.Time) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.rows[id]
	if !ok || !e.Active || e.Date.Before(now) || (e.MaxAttendees > 0 && e.Attendees >= e.MaxAttendees) {
		return event.Event{}, event.ErrNotFound
	}
	e.Attendees++
	e.UpdatedAt = now
	return *e, nil
}
