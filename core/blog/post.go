package blog

import (
	"context"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrPostNotFound = core.NewAppError(core.KindNotFound, "POST_NOT_FOUND", "Post not found.")
	errNoticeDenied = core.ErrPermissionDenied.WithMessage("Only staff can publish notices.")
)

type (
	Post struct {
		ID          string    `json:"id" bson:"_id"`
		Title       string    `json:"title" bson:"title"`
		Content     string    `json:"content" bson:"content"`
		Category    string    `json:"category,omitempty" bson:"category,omitempty"`
		Tags        []string  `json:"tags" bson:"tags"`
		Images      []string  `json:"images" bson:"images"`
		Author      string    `json:"author" bson:"author"`
		AuthorName  string    `json:"authorName" bson:"authorName"`
		AuthorEmail string    `json:"authorEmail,omitempty" bson:"authorEmail,omitempty"`
		CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
	}

	NewPost struct {
		Title    string   `json:"title" validate:"required,notblank,max=200"`
		Content  string   `json:"content" validate:"required,notblank,max=20000"`
		Category string   `json:"category" validate:"omitempty,max=50"`
		Tags     []string `json:"tags" validate:"omitempty,max=20,dive,max=100"`
		Images   []string `json:"images" validate:"omitempty,max=10,dive,url"`
	}

	// UpdatePost is a partial NewPost; nil means unchanged.
	UpdatePost struct {
		Title    *string   `json:"title" validate:"omitempty,notblank,max=200"`
		Content  *string   `json:"content" validate:"omitempty,notblank,max=20000"`
		Category *string   `json:"category" validate:"omitempty,max=50"`
		Tags     *[]string `json:"tags" validate:"omitempty,max=20,dive,max=100"`
		Images   *[]string `json:"images" validate:"omitempty,max=10,dive,url"`
	}

	PostFilter struct {
		Category string   `query:"category"`
		Tags     string   `query:"tags"` // comma separated, all must match
		Search   string   `query:"search"`
		Author   string   `query:"author"`
		TagList  []string `query:"-"`
	}

	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		GetPost(ctx context.Context, id string) (Post, error)
		// FilterPosts returns matching posts newest first, with the total match count.
		// PostFilter.Search does a case-insensitive match on one of Post.Title or Post.Content.
		FilterPosts(ctx context.Context, filter PostFilter, page core.Pagination) ([]Post, int64, error)
		UpdatePost(ctx context.Context, p Post) (Post, error)
		DeletePost(ctx context.Context, id string) error

		CreateReport(ctx context.Context, r Report) (Report, error)
		GetReport(ctx context.Context, id string) (Report, error)
		// FilterReports returns matching reports newest first, with the total match count.
		FilterReports(ctx context.Context, filter ReportFilter, page core.Pagination) ([]Report, int64, error)
		UpdateReport(ctx context.Context, r Report) (Report, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, noticeTypeTag, NoticeTypes...)
	core.RegisterEnum(validate, translator, noticePriorityTag, NoticePriorities...)
	core.RegisterEnum(validate, translator, reportTypeTag, ReportTypes...)
	core.RegisterEnum(validate, translator, reportStatusTag, ReportStatuses...)
}

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func now() time.Time { return NowFunc().UTC() }

func authorName(author user.User) string {
	if author.Name != "" {
		return author.Name
	}
	return "Anonymous"
}

func (svc *Service) ListPosts(ctx context.Context, filter PostFilter, page core.Pagination) ([]Post, core.PageInfo, error) {
	filter.Category = core.CleanString(filter.Category)
	filter.Search = core.CleanString(filter.Search)
	filter.Author = core.CleanString(filter.Author)
	if filter.Author != "" && !core.IsValidID(filter.Author) {
		return nil, core.PageInfo{}, core.ErrInvalidID
	}
	if filter.Tags != "" {
		filter.TagList = append(filter.TagList, core.CleanStrings(strings.Split(filter.Tags, ","))...)
	}
	posts, total, err := svc.repo.FilterPosts(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return posts, page.Info(total), nil
}

func (svc *Service) GetPost(ctx context.Context, id string) (Post, error) {
	if !core.IsValidID(id) {
		return Post{}, core.ErrInvalidID
	}
	return svc.repo.GetPost(ctx, id)
}

func (svc *Service) CreatePost(ctx context.Context, author user.User, np NewPost) (Post, error) {
	ts := now()
	p := Post{
		Title:       core.StripTags(np.Title),
		Content:     core.SanitizeHTML(np.Content),
		Category:    core.CleanString(np.Category),
		Tags:        core.StripTagsAll(np.Tags),
		Images:      core.CleanStrings(np.Images),
		Author:      author.ID,
		AuthorName:  authorName(author),
		AuthorEmail: author.Email,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if looksLikeNotice(p.Category, p.Tags) && !author.IsStaff() {
		return Post{}, errNoticeDenied
	}
	return svc.repo.CreatePost(ctx, p)
}

// getEditable loads the post identified by id, failing unless actor wrote it or is staff.
func (svc *Service) getEditable(ctx context.Context, actor user.User, id string) (Post, error) {
	p, err := svc.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.Author != actor.ID && !actor.IsStaff() {
		return Post{}, core.ErrPermissionDenied
	}
	return p, nil
}

func (svc *Service) UpdatePost(ctx context.Context, actor user.User, id string, up UpdatePost) (Post, error) {
	p, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return Post{}, err
	}
	if up.Title != nil {
		p.Title = core.StripTags(*up.Title)
	}
	if up.Content != nil {
		p.Content = core.SanitizeHTML(*up.Content)
	}
	if up.Category != nil {
		p.Category = core.CleanString(*up.Category)
	}
	if up.Tags != nil {
		p.Tags = core.StripTagsAll(*up.Tags)
	}
	if up.Images != nil {
		p.Images = core.CleanStrings(*up.Images)
	}
	if looksLikeNotice(p.Category, p.Tags) && !actor.IsStaff() {
		return Post{}, errNoticeDenied
	}
	p.UpdatedAt = now()
	return svc.repo.UpdatePost(ctx, p)
}

func (svc *Service) DeletePost(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.getEditable(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeletePost(ctx, id)
}
