// Package inmemdb keeps every collection in process memory. It backs the tests and
// local runs without a MongoDB server.
package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/blog"
	"github.com/coffeehubnepal/api/core/contact"
	"github.com/coffeehubnepal/api/core/event"
	"github.com/coffeehubnepal/api/core/job"
	"github.com/coffeehubnepal/api/core/otp"
	"github.com/coffeehubnepal/api/core/price"
	"github.com/coffeehubnepal/api/core/product"
	"github.com/coffeehubnepal/api/core/user"
	"github.com/coffeehubnepal/api/core/verification"
)

type (
	table[T any] struct {
		sync.RWMutex
		rows map[string]*T
	}

	DB struct {
		users    *table[user.User]
		otps     *table[otp.OTP]
		tokens   *table[verification.Token]
		contacts *table[contact.Contact]
		events   *table[event.Event]
		posts    *table[blog.Post]
		reports  *table[blog.Report]
		jobs     *table[job.Job]
		products *table[product.Product]
		prices   *table[price.Price]
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*T)}
}

func Open() *DB {
	return &DB{
		users:    newTable[user.User](),
		otps:     newTable[otp.OTP](),
		tokens:   newTable[verification.Token](),
		contacts: newTable[contact.Contact](),
		events:   newTable[event.Event](),
		posts:    newTable[blog.Post](),
		reports:  newTable[blog.Report](),
		jobs:     newTable[job.Job](),
		products: newTable[product.Product](),
		prices:   newTable[price.Price](),
	}
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

// filter returns copies of the rows matching keep; callers hold the read lock.
func (t *table[T]) filter(keep func(*T) bool) []T {
	res := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if keep == nil || keep(row) {
			res = append(res, *row)
		}
	}
	return res
}

// paginate sorts rows with less then cuts the requested page.
func paginate[T any](rows []T, less func(a, b T) bool, page core.Pagination) ([]T, int64) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	start, end := page.Window(len(rows))
	return rows[start:end], int64(len(rows))
}

// containsFold reports whether substr is within s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func hasAll(tags, want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
