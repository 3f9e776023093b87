package blog

import (
	"context"
	"strings"
	"time"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

const (
	CategoryNotice = "notice"
	noticeTag      = "notice"

	defaultNoticeType     = "Alert"
	defaultNoticePriority = "Medium"

	// tag prefixes encoding the notice metadata
	typePrefix     = "type:"
	priorityPrefix = "priority:"
	locationPrefix = "location:"
	deadlinePrefix = "deadline:"
)

var (
	NoticeTypes      = []string{"Training", "Govt", "Event", "Alert", "Other"}
	NoticePriorities = []string{"High", "Medium", "Low"}

	noticeTypeTag     = "noticetype"
	noticePriorityTag = "noticepriority"
)

type (
	// Notice is an official announcement, stored as a Post of CategoryNotice.
	Notice struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"createdAt"`
		Date      time.Time `json:"date"`
		Type      string    `json:"type"`
		Priority  string    `json:"priority"`
		Location  string    `json:"location,omitempty"`
		Deadline  string    `json:"deadline,omitempty"`
	}

	NewNotice struct {
		Title    string `json:"title" validate:"required,notblank,max=200"`
		Body     string `json:"body" validate:"required,notblank,max=2000"`
		Type     string `json:"type" validate:"omitempty,noticetype"`
		Priority string `json:"priority" validate:"omitempty,noticepriority"`
		Location string `json:"location" validate:"omitempty,max=200"`
		Deadline string `json:"deadline" validate:"omitempty,max=100"`
	}

	NoticeFilter struct {
		Type     string `query:"type"`
		Priority string `query:"priority"`
	}
)

// noticeTags encodes the notice metadata as post tags.
func (nn NewNotice) noticeTags() []string {
	tags := []string{noticeTag}
	for _, kv := range [][2]string{
		{typePrefix, nn.Type},
		{priorityPrefix, nn.Priority},
		{locationPrefix, nn.Location},
		{deadlinePrefix, nn.Deadline},
	} {
		if kv[1] != "" {
			tags = append(tags, kv[0]+kv[1])
		}
	}
	return tags
}

// looksLikeNotice reports whether a post with category and tags would be listed as a notice.
func looksLikeNotice(category string, tags []string) bool {
	if strings.EqualFold(category, CategoryNotice) {
		return true
	}
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		if tag == noticeTag {
			return true
		}
		for _, prefix := range []string{typePrefix, priorityPrefix, locationPrefix, deadlinePrefix} {
			if strings.HasPrefix(tag, prefix) {
				return true
			}
		}
	}
	return false
}

// NoticeFromPost decodes a notice from its post representation.
func NoticeFromPost(p Post) Notice {
	n := Notice{
		ID:        p.ID,
		Title:     p.Title,
		Body:      p.Content,
		CreatedAt: p.CreatedAt,
		Date:      p.CreatedAt,
		Type:      defaultNoticeType,
		Priority:  defaultNoticePriority,
	}
	for _, tag := range p.Tags {
		switch {
		case strings.HasPrefix(tag, typePrefix):
			n.Type = strings.TrimPrefix(tag, typePrefix)
		case strings.HasPrefix(tag, priorityPrefix):
			n.Priority = strings.TrimPrefix(tag, priorityPrefix)
		case strings.HasPrefix(tag, locationPrefix):
			n.Location = strings.TrimPrefix(tag, locationPrefix)
		case strings.HasPrefix(tag, deadlinePrefix):
			n.Deadline = strings.TrimPrefix(tag, deadlinePrefix)
		}
	}
	return n
}

func (svc *Service) CreateNotice(ctx context.Context, author user.User, nn NewNotice) (Notice, error) {
	nn.Location = core.StripTags(nn.Location)
	nn.Deadline = core.StripTags(nn.Deadline)
	ts := now()
	name := author.Name
	if name == "" {
		name = "Admin"
	}
	p, err := svc.repo.CreatePost(ctx, Post{
		Title:       core.StripTags(nn.Title),
		Content:     core.SanitizeHTML(nn.Body),
		Category:    CategoryNotice,
		Tags:        nn.noticeTags(),
		Images:      []string{},
		Author:      author.ID,
		AuthorName:  name,
		AuthorEmail: author.Email,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
	if err != nil {
		return Notice{}, err
	}
	return NoticeFromPost(p), nil
}

// ListNotices returns notices newest first, optionally filtered by type and priority.
func (svc *Service) ListNotices(ctx context.Context, filter NoticeFilter, page core.Pagination) ([]Notice, core.PageInfo, error) {
	pf := PostFilter{Category: CategoryNotice, TagList: []string{noticeTag}}
	if t := core.CleanString(filter.Type); t != "" {
		pf.TagList = append(pf.TagList, typePrefix+t)
	}
	if p := core.CleanString(filter.Priority); p != "" {
		pf.TagList = append(pf.TagList, priorityPrefix+p)
	}
	posts, total, err := svc.repo.FilterPosts(ctx, pf, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	notices := make([]Notice, 0, len(posts))
	for _, p := range posts {
		notices = append(notices, NoticeFromPost(p))
	}
	return notices, page.Info(total), nil
}
