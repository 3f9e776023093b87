// Package mongodb implements the domain repositories on MongoDB.
package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coffeehubnepal/api/core"
)

// Collections
const (
	colUsers    = "users"
	colOTPs     = "otps"
	colTokens   = "emailverificationtokens"
	colContacts = "contacts"
	colEvents   = "events"
	colPosts    = "blogposts"
	colReports  = "reports"
	colJobs     = "jobs"
	colProducts = "products"
	colPrices   = "prices"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to conf.Database.MongoURI and waits for the server to answer.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	opts := options.Client().
		ApplyURI(conf.Database.MongoURI).
		SetRegistry(newRegistry()).
		SetAppName(conf.AppName)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err := ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &DB{client: client, db: client.Database(conf.Database.MongoDB)}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	for attempts := 1; attempts <= 10; attempts++ {
		if err = client.Ping(ctx, nil); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(err, "mongodb ping timeout")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "mongodb ping timeout")
}

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) collection(name string) *mongo.Collection {
	return db.db.Collection(name)
}

type index struct {
	collection string
	model      mongo.IndexModel
}

func keys(pairs ...interface{}) bson.D {
	d := make(bson.D, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		d = append(d, bson.E{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return d
}

var indexes = []index{
	{colUsers, mongo.IndexModel{Keys: keys("email", 1), Options: options.Index().SetUnique(true).SetName("email_unique")}},
	{colUsers, mongo.IndexModel{Keys: keys("role", 1)}},
	{colUsers, mongo.IndexModel{Keys: keys("verificationStatus", 1)}},
	{colUsers, mongo.IndexModel{Keys: keys("roleChangeStatus", 1)}},
	{colUsers, mongo.IndexModel{Keys: keys("createdAt", -1)}},

	{colOTPs, mongo.IndexModel{Keys: keys("email", 1, "purpose", 1, "createdAt", -1)}},
	{colOTPs, mongo.IndexModel{Keys: keys("expiresAt", 1), Options: options.Index().SetExpireAfterSeconds(0).SetName("expiresAt_ttl")}},

	{colTokens, mongo.IndexModel{Keys: keys("email", 1, "type", 1, "createdAt", -1)}},
	{colTokens, mongo.IndexModel{Keys: keys("expiresAt", 1), Options: options.Index().SetExpireAfterSeconds(0).SetName("expiresAt_ttl")}},

	{colContacts, mongo.IndexModel{Keys: keys("status", 1, "createdAt", -1)}},
	{colContacts, mongo.IndexModel{Keys: keys("email", 1)}},

	{colEvents, mongo.IndexModel{Keys: keys("active", 1, "date", 1)}},
	{colEvents, mongo.IndexModel{Keys: keys("createdBy", 1)}},
	{colEvents, mongo.IndexModel{Keys: keys("type", 1)}},

	{colPosts, mongo.IndexModel{Keys: keys("category", 1, "createdAt", -1)}},
	{colPosts, mongo.IndexModel{Keys: keys("tags", 1)}},
	{colPosts, mongo.IndexModel{Keys: keys("author", 1)}},

	{colReports, mongo.IndexModel{Keys: keys("status", 1, "createdAt", -1)}},
	{colReports, mongo.IndexModel{Keys: keys("post", 1)}},

	{colJobs, mongo.IndexModel{Keys: keys("active", 1, "createdAt", -1)}},
	{colJobs, mongo.IndexModel{Keys: keys("postedBy", 1)}},

	{colProducts, mongo.IndexModel{Keys: keys("active", 1, "category", 1, "createdAt", -1)}},
	{colProducts, mongo.IndexModel{Keys: keys("seller", 1)}},

	{colPrices, mongo.IndexModel{Keys: keys("variety", 1, "region", 1, "date", -1)}},
	{colPrices, mongo.IndexModel{Keys: keys("date", -1)}},
}

// EnsureIndexes creates the indexes every repository relies on, TTL indexes included.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	for _, idx := range indexes {
		if _, err := db.collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return errors.Wrapf(err, "creating index on %s", idx.collection)
		}
	}
	return nil
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

// findOne decodes the first document matching filter into T; notFound is returned on no match.
func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, notFound error, opts ...*options.FindOneOptions) (T, error) {
	var doc T
	err := coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, notFound
	}
	if err != nil {
		return doc, errors.Wrapf(err, "finding in %s", coll.Name())
	}
	return doc, nil
}

// findPage returns one page of the documents matching filter and the total match count.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, page core.Pagination) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "counting %s", coll.Name())
	}

	opts := options.Find().SetSort(sort).SetSkip(page.Skip())
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	docs, err := findAll[T](ctx, coll, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", coll.Name())
	}
	docs := make([]T, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", coll.Name())
	}
	return docs, nil
}

// replaceByID overwrites the document identified by id.
func replaceByID(ctx context.Context, coll *mongo.Collection, id string, doc interface{}, notFound error) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return errors.Wrapf(err, "updating %s", coll.Name())
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id string, notFound error) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", coll.Name())
	}
	if res.DeletedCount == 0 && notFound != nil {
		return notFound
	}
	return nil
}

// contains matches s anywhere in the field, ignoring case.
func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: core.EscapeRegex(s), Options: "i"}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}
