package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/event"
)

type eventRepository struct {
	coll *mongo.Collection
}

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{coll: db.collection(colEvents)}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, e event.Event) (event.Event, error) {
	e.ID = newID()
	if _, err := repo.coll.InsertOne(ctx, e); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return e, nil
}

func (repo *eventRepository) GetEvent(ctx context.Context, id string) (event.Event, error) {
	return findOne[event.Event](ctx, repo.coll, bson.M{"_id": id}, event.ErrNotFound)
}

func (repo *eventRepository) FilterEvents(ctx context.Context, filter event.QueryFilter, page core.Pagination) ([]event.Event, int64, error) {
	q := bson.M{"active": true}
	if filter.Type != "" {
		q["type"] = filter.Type
	}
	if filter.Location != "" {
		q["location"] = contains(filter.Location)
	}
	if filter.CreatedBy != "" {
		q["createdBy"] = filter.CreatedBy
	}
	if !filter.From.IsZero() {
		q["date"] = bson.M{"$gte": filter.From}
	}
	return findPage[event.Event](ctx, repo.coll, q, bson.D{{Key: "date", Value: 1}}, page)
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, e event.Event) (event.Event, error) {
	if err := replaceByID(ctx, repo.coll, e.ID, e, event.ErrNotFound); err != nil {
		return event.Event{}, err
	}
	return e, nil
}

// RegisterAttendee increments attendees only while the event is active, upcoming and has room,
// so concurrent registrations cannot overbook it.
func (repo *eventRepository) RegisterAttendee(ctx context.Context, id string, now time.Time) (event.Event, error) {
	filter := bson.M{
		"_id":    id,
		"active": true,
		"date":   bson.M{"$gte": now},
		"$or": bson.A{
			bson.M{"maxAttendees": bson.M{"$exists": false}},
			bson.M{"maxAttendees": bson.M{"$lte": 0}},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$attendees", "$maxAttendees"}}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"attendees": 1},
		"$set": bson.M{"updatedAt": now},
	}

	var e event.Event
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return event.Event{}, event.ErrNotFound
	}
	if err != nil {
		return event.Event{}, errors.Wrap(err, "registering attendee")
	}
	return e, nil
}
