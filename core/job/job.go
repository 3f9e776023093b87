package job

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

var (
	Types   = []string{"Full-time", "Part-time", "Seasonal", "Contract", "Internship"}
	typeTag = "jobtype"

	NowFunc = time.Now // mockable

	ErrNotFound = core.NewAppError(core.KindNotFound, "JOB_NOT_FOUND", "Job not found.")
)

type (
	Job struct {
		ID           string     `json:"id" bson:"_id"`
		Title        string     `json:"title" bson:"title"`
		Description  string     `json:"description" bson:"description"`
		Company      string     `json:"company" bson:"company"`
		Location     string     `json:"location" bson:"location"`
		Type         string     `json:"type" bson:"type"`
		Salary       string     `json:"salary,omitempty" bson:"salary,omitempty"`
		Requirements []string   `json:"requirements" bson:"requirements"`
		Benefits     string     `json:"benefits,omitempty" bson:"benefits,omitempty"`
		ContactEmail string     `json:"contactEmail" bson:"contactEmail"`
		Deadline     *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`
		PostedBy     string     `json:"postedBy" bson:"postedBy"`
		Active       bool       `json:"active" bson:"active"`
		CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
		UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
	}

	NewJob struct {
		Title        string   `json:"title" validate:"required,notblank,max=200"`
		Description  string   `json:"description" validate:"required,notblank,max=10000"`
		Company      string   `json:"company" validate:"required,notblank,max=200"`
		Location     string   `json:"location" validate:"required,notblank,max=200"`
		Type         string   `json:"type" validate:"required,jobtype"`
		Salary       string   `json:"salary" validate:"omitempty,max=100"`
		Requirements []string `json:"requirements" validate:"omitempty,max=30,dive,max=500"`
		Benefits     string   `json:"benefits" validate:"omitempty,max=5000"`
		ContactEmail string   `json:"contactEmail" validate:"required,email"`
		Deadline     string   `json:"deadline" validate:"omitempty,isodate"`
	}

	// UpdateJob is a partial NewJob; nil means unchanged.
	UpdateJob struct {
		Title        *string   `json:"title" validate:"omitempty,notblank,max=200"`
		Description  *string   `json:"description" validate:"omitempty,notblank,max=10000"`
		Company      *string   `json:"company" validate:"omitempty,notblank,max=200"`
		Location     *string   `json:"location" validate:"omitempty,notblank,max=200"`
		Type         *string   `json:"type" validate:"omitempty,jobtype"`
		Salary       *string   `json:"salary" validate:"omitempty,max=100"`
		Requirements *[]string `json:"requirements" validate:"omitempty,max=30,dive,max=500"`
		Benefits     *string   `json:"benefits" validate:"omitempty,max=5000"`
		ContactEmail *string   `json:"contactEmail" validate:"omitempty,email"`
		Deadline     *string   `json:"deadline" validate:"omitempty,isodate"`
	}

	QueryFilter struct {
		Type     string `query:"type"`
		Location string `query:"location"`
		Search   string `query:"search"`
		PostedBy string `query:"postedBy"`
	}

	Repository interface {
		CreateJob(ctx context.Context, j Job) (Job, error)
		GetJob(ctx context.Context, id string) (Job, error)
		// FilterJobs returns active jobs matching filter newest first, with the total match count.
		// QueryFilter.Location is a case-insensitive partial match; QueryFilter.Search matches
		// one of Job.Title, Job.Description or Job.Company.
		FilterJobs(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Job, int64, error)
		UpdateJob(ctx context.Context, j Job) (Job, error)
	}

	Service struct {
		repo Repository
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, typeTag, Types...)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func now() time.Time { return NowFunc().UTC() }

func parseDeadline(s string) *time.Time {
	if t, ok := core.ParseDate(s); ok {
		return &t
	}
	return nil
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) ([]Job, core.PageInfo, error) {
	filter.Type = core.CleanString(filter.Type)
	filter.Location = core.CleanString(filter.Location)
	filter.Search = core.CleanString(filter.Search)
	filter.PostedBy = core.CleanString(filter.PostedBy)
	if filter.PostedBy != "" && !core.IsValidID(filter.PostedBy) {
		return nil, core.PageInfo{}, core.ErrInvalidID
	}
	jobs, total, err := svc.repo.FilterJobs(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return jobs, page.Info(total), nil
}

func (svc *Service) Get(ctx context.Context, id string) (Job, error) {
	if !core.IsValidID(id) {
		return Job{}, core.ErrInvalidID
	}
	j, err := svc.repo.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !j.Active {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (svc *Service) Create(ctx context.Context, posterID string, nj NewJob) (Job, error) {
	ts := now()
	return svc.repo.CreateJob(ctx, Job{
		Title:        core.StripTags(nj.Title),
		Description:  core.SanitizeHTML(nj.Description),
		Company:      core.StripTags(nj.Company),
		Location:     core.StripTags(nj.Location),
		Type:         nj.Type,
		Salary:       core.StripTags(nj.Salary),
		Requirements: core.StripTagsAll(nj.Requirements),
		Benefits:     core.SanitizeHTML(nj.Benefits),
		ContactEmail: core.CleanString(nj.ContactEmail, true /* lower */),
		Deadline:     parseDeadline(nj.Deadline),
		PostedBy:     posterID,
		Active:       true,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	})
}

// getEditable loads the job identified by id, failing unless actor posted it or is staff.
func (svc *Service) getEditable(ctx context.Context, actor user.User, id string) (Job, error) {
	j, err := svc.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if j.PostedBy != actor.ID && !actor.IsStaff() {
		return Job{}, core.ErrPermissionDenied
	}
	return j, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, uj UpdateJob) (Job, error) {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return Job{}, err
	}
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&j.Title, uj.Title},
		{&j.Company, uj.Company},
		{&j.Location, uj.Location},
		{&j.Salary, uj.Salary},
	} {
		if f.src != nil {
			*f.dst = core.StripTags(*f.src)
		}
	}
	if uj.Description != nil {
		j.Description = core.SanitizeHTML(*uj.Description)
	}
	if uj.Benefits != nil {
		j.Benefits = core.SanitizeHTML(*uj.Benefits)
	}
	if uj.Type != nil {
		j.Type = *uj.Type
	}
	if uj.Requirements != nil {
		j.Requirements = core.StripTagsAll(*uj.Requirements)
	}
	if uj.ContactEmail != nil {
		j.ContactEmail = core.CleanString(*uj.ContactEmail, true /* lower */)
	}
	if uj.Deadline != nil {
		j.Deadline = parseDeadline(*uj.Deadline)
	}
	j.UpdatedAt = now()
	return svc.repo.UpdateJob(ctx, j)
}

// Delete deactivates the job listing.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	j, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return err
	}
	j.Active = false
	j.UpdatedAt = now()
	_, err = svc.repo.UpdateJob(ctx, j)
	return err
}
