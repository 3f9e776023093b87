package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/blog"
)

type blogRepository struct {
	posts   *mongo.Collection
	reports *mongo.Collection
}

func NewBlogRepository(db *DB) blog.Repository {
	return &blogRepository{posts: db.collection(colPosts), reports: db.collection(colReports)}
}

func (repo *blogRepository) CreatePost(ctx context.Context, p blog.Post) (blog.Post, error) {
	p.ID = newID()
	if _, err := repo.posts.InsertOne(ctx, p); err != nil {
		return blog.Post{}, errors.Wrap(err, "inserting post")
	}
	return p, nil
}

func (repo *blogRepository) GetPost(ctx context.Context, id string) (blog.Post, error) {
	return findOne[blog.Post](ctx, repo.posts, bson.M{"_id": id}, blog.ErrPostNotFound)
}

func (repo *blogRepository) FilterPosts(ctx context.Context, filter blog.PostFilter, page core.Pagination) ([]blog.Post, int64, error) {
	q := bson.M{}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.Author != "" {
		q["author"] = filter.Author
	}
	if len(filter.TagList) > 0 {
		q["tags"] = bson.M{"$all": filter.TagList}
	}
	if filter.Search != "" {
		q["$or"] = bson.A{
			bson.M{"title": contains(filter.Search)},
			bson.M{"content": contains(filter.Search)},
		}
	}
	return findPage[blog.Post](ctx, repo.posts, q, newestFirst, page)
}

func (repo *blogRepository) UpdatePost(ctx context.Context, p blog.Post) (blog.Post, error) {
	if err := replaceByID(ctx, repo.posts, p.ID, p, blog.ErrPostNotFound); err != nil {
		return blog.Post{}, err
	}
	return p, nil
}

func (repo *blogRepository) DeletePost(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.posts, id, blog.ErrPostNotFound)
}

func (repo *blogRepository) CreateReport(ctx context.Context, r blog.Report) (blog.Report, error) {
	r.ID = newID()
	if _, err := repo.reports.InsertOne(ctx, r); err != nil {
		return blog.Report{}, errors.Wrap(err, "inserting report")
	}
	return r, nil
}

func (repo *blogRepository) GetReport(ctx context.Context, id string) (blog.Report, error) {
	return findOne[blog.Report](ctx, repo.reports, bson.M{"_id": id}, blog.ErrReportNotFound)
}

func (repo *blogRepository) FilterReports(ctx context.Context, filter blog.ReportFilter, page core.Pagination) ([]blog.Report, int64, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Type != "" {
		q["type"] = filter.Type
	}
	if filter.Post != "" {
		q["post"] = filter.Post
	}
	return findPage[blog.Report](ctx, repo.reports, q, newestFirst, page)
}

func (repo *blogRepository) UpdateReport(ctx context.Context, r blog.Report) (blog.Report, error) {
	if err := replaceByID(ctx, repo.reports, r.ID, r, blog.ErrReportNotFound); err != nil {
		return blog.Report{}, err
	}
	return r, nil
}
