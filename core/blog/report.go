package blog

import (
	"context"
	"time"

	"github.com/coffeehubnepal/api/core"
)

// Report statuses
const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportDismissed = "dismissed"
	ReportResolved  = "resolved"
)

var (
	ReportTypes    = []string{"spam", "inappropriate", "misinformation", "other"}
	ReportStatuses = []string{ReportPending, ReportReviewed, ReportDismissed, ReportResolved}

	reportTypeTag   = "reporttype"
	reportStatusTag = "reportstatus"

	ErrReportNotFound = core.NewAppError(core.KindNotFound, "REPORT_NOT_FOUND", "Report not found.")
)

type (
	Report struct {
		ID         string     `json:"id" bson:"_id"`
		Post       string     `json:"post" bson:"post"`
		Reporter   string     `json:"reporter" bson:"reporter"`
		Type       string     `json:"type" bson:"type"`
		Reason     string     `json:"reason,omitempty" bson:"reason,omitempty"`
		Status     string     `json:"status" bson:"status"`
		ReviewedBy string     `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
		ReviewedAt *time.Time `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
		CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
		UpdatedAt  time.Time  `json:"updatedAt" bson:"updatedAt"`
	}

	NewReport struct {
		Type   string `json:"type" validate:"required,reporttype"`
		Reason string `json:"reason" validate:"omitempty,max=1000"`
	}

	UpdateReport struct {
		Status string `json:"status" validate:"required,reportstatus"`
	}

	ReportFilter struct {
		Status string `query:"status"`
		Type   string `query:"type"`
		Post   string `query:"-"`
	}
)

// ReportPost files a report by reporterID against the post identified by postID.
func (svc *Service) ReportPost(ctx context.Context, reporterID, postID string, nr NewReport) (Report, error) {
	if _, err := svc.GetPost(ctx, postID); err != nil {
		return Report{}, err
	}
	ts := now()
	r, err := svc.repo.CreateReport(ctx, Report{
		Post:      postID,
		Reporter:  reporterID,
		Type:      nr.Type,
		Reason:    core.StripTags(nr.Reason),
		Status:    ReportPending,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return Report{}, err
	}
	svc.logger.Info("blog: post " + postID + " reported (" + r.Type + ")")
	return r, nil
}

func (svc *Service) ListReports(ctx context.Context, filter ReportFilter, page core.Pagination) ([]Report, core.PageInfo, error) {
	filter.Status = core.CleanString(filter.Status)
	filter.Type = core.CleanString(filter.Type)
	reports, total, err := svc.repo.FilterReports(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return reports, page.Info(total), nil
}

// ReportsByPost returns every report filed against the post identified by postID.
func (svc *Service) ReportsByPost(ctx context.Context, postID string) ([]Report, error) {
	if !core.IsValidID(postID) {
		return nil, core.ErrInvalidID
	}
	reports, _, err := svc.repo.FilterReports(ctx, ReportFilter{Post: postID}, core.Pagination{Page: 1})
	return reports, err
}

func (svc *Service) UpdateReportStatus(ctx context.Context, actorID, id, status string) (Report, error) {
	if !core.IsValidID(id) {
		return Report{}, core.ErrInvalidID
	}
	r, err := svc.repo.GetReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	ts := now()
	r.Status = status
	r.ReviewedBy = actorID
	r.ReviewedAt = &ts
	r.UpdatedAt = ts
	return svc.repo.UpdateReport(ctx, r)
}
