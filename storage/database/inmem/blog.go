package inmemdb

import (
	"context"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/blog"
)

type blogRepository struct {
	posts   *table[blog.Post]
	reports *table[blog.Report]
}

func NewBlogRepository(db *DB) blog.Repository {
	return &blogRepository{posts: db.posts, reports: db.reports}
}

func (repo *blogRepository) CreatePost(_ context.Context, p blog.Post) (blog.Post, error) {
	repo.posts.Lock()
	defer repo.posts.Unlock()

	p.ID = newID()
	repo.posts.rows[p.ID] = &p
	return p, nil
}

func (repo *blogRepository) GetPost(_ context.Context, id string) (blog.Post, error) {
	repo.posts.RLock()
	defer repo.posts.RUnlock()

	if p, ok := repo.posts.rows[id]; ok {
		return *p, nil
	}
	return blog.Post{}, blog.ErrPostNotFound
}

func (repo *blogRepository) FilterPosts(_ context.Context, filter blog.PostFilter, page core.Pagination) ([]blog.Post, int64, error) {
	repo.posts.RLock()
	defer repo.posts.RUnlock()

	rows := repo.posts.filter(func(p *blog.Post) bool {
		switch {
		case filter.Category != "" && p.Category != filter.Category,
			filter.Author != "" && p.Author != filter.Author,
			filter.Search != "" && !containsFold(p.Title, filter.Search) && !containsFold(p.Content, filter.Search),
			!hasAll(p.Tags, filter.TagList):
			return false
		}
		return true
	})
	posts, total := paginate(rows, func(a, b blog.Post) bool { return a.CreatedAt.After(b.CreatedAt) }, page)
	return posts, total, nil
}

func (repo *blogRepository) UpdatePost(_ context.Context, p blog.Post) (blog.Post, error) {
	repo.posts.Lock()
	defer repo.posts.Unlock()

	if _, ok := repo.posts.rows[p.ID]; !ok {
		return blog.Post{}, blog.ErrPostNotFound
	}
	repo.posts.rows[p.ID] = &p
	return p, nil
}

func (repo *blogRepository) DeletePost(_ context.Context, id string) error {
	repo.posts.Lock()
	defer repo.posts.Unlock()

	if _, ok := repo.posts.rows[id]; !ok {
		return blog.ErrPostNotFound
	}
	delete(repo.posts.rows, id)
	return nil
}

func (repo *blogRepository) CreateReport(_ context.Context, r blog.Report) (blog.Report, error) {
	repo.reports.Lock()
	defer repo.reports.Unlock()

	r.ID = newID()
	repo.reports.rows[r.ID] = &r
	return r, nil
}

func (repo *blogRepository) GetReport(_ context.Context, id string) (blog.Report, error) {
	repo.reports.RLock()
	defer repo.reports.RUnlock()

	if r, ok := repo.reports.rows[id]; ok {
		return *r, nil
	}
	return blog.Report{}, blog.ErrReportNotFound
}

func (repo *blogRepository) FilterReports(_ context.Context, filter blog.ReportFilter, page core.Pagination) ([]blog.Report, int64, error) {
	repo.reports.RLock()
	defer repo.reports.RUnlock()

	rows := repo.reports.filter(func(r *blog.Report) bool {
		return (filter.Status == "" || r.Status == filter.Status) &&
			(filter.Type == "" || r.Type == filter.Type) &&
			(filter.Post == "" || r.Post == filter.Post)
	})
	reports, total := paginate(rows, func(a, b blog.Report) bool { return a.CreatedAt.After(b.CreatedAt) }, page)
	return reports, total, nil
}

func (repo *blogRepository) UpdateReport(_ context.Context, r blog.Report) (blog.Report, error) {
	repo.reports.Lock()
	defer repo.reports.Unlock()

	if _, ok := repo.reports.rows[r.ID]; !ok {
		return blog.Report{}, blog.ErrReportNotFound
	}
	repo.reports.rows[r.ID] = &r
	return r, nil
}
