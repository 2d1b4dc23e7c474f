package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/validation"
	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// Activity periods, counted back from the current day, ISO week or month.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// ActivityFilter narrows the activity feed. Zero values mean "any".
type ActivityFilter struct {
	Category    string
	DueDateID   string
	ClientID    string
	UserID      uint
	ActionTypes []string
	Period      string
	From        *time.Time
	To          *time.Time
	Limit       int
}

// ActivityItem is one rendered audit entry.
type ActivityItem struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Category   string    `json:"category"`
	Kind       string    `json:"kind,omitempty"`
	ActionType string    `json:"action_type"`
	Action     string    `json:"action"`
	UserID     uint      `json:"user_id"`
	DueDateID  *string   `json:"due_date_id,omitempty"`
	ClientID   *string   `json:"client_id,omitempty"`
	Description
}

type ActivityService struct {
	DB           *gorm.DB
	DefaultLimit int
	MaxLimit     int
	Clock        func() time.Time
}

func NewActivityService(db *gorm.DB, defaultLimit, maxLimit int) *ActivityService {
	return &ActivityService{DB: db, DefaultLimit: defaultLimit, MaxLimit: maxLimit, Clock: time.Now}
}

// ParseActivityFilter reads the feed's query parameters.
func ParseActivityFilter(q url.Values) (ActivityFilter, error) {
	v := validation.Violations{}
	f := ActivityFilter{
		Category:  q.Get("category"),
		DueDateID: q.Get("dueDateId"),
		ClientID:  q.Get("clientId"),
		Period:    q.Get("period"),
	}
	if f.Category != "" {
		validation.OneOf("category", f.Category, Categories, v)
	}
	if raw := q.Get("userId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			v.Add("userId", "invalid_value")
		}
		f.UserID = uint(id)
	}
	if raw := q.Get("actionTypes"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			validation.OneOf("actionTypes", t, models.ActionTypes, v)
			f.ActionTypes = append(f.ActionTypes, t)
		}
	}
	if f.Period != "" {
		validation.OneOf("period", f.Period, []string{PeriodDay, PeriodWeek, PeriodMonth}, v)
	}
	if raw := q.Get("from"); raw != "" {
		if t, ok := validation.Date("from", raw, v); ok {
			f.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, ok := validation.Date("to", raw, v); ok {
			// inclusive: up to the end of that day
			end := t.AddDate(0, 0, 1)
			f.To = &end
		}
	}
	if f.Period != "" && (f.From != nil || f.To != nil) {
		v.Add("period", "conflicts_with_range")
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("limit", "invalid_value")
		}
		f.Limit = n
	}
	if !v.Empty() {
		return ActivityFilter{}, invalid(v)
	}
	return f, nil
}

func (s *ActivityService) limit(requested int) int {
	if requested <= 0 {
		return s.DefaultLimit
	}
	return min(requested, s.MaxLimit)
}

// periodStart returns the beginning of the current day, ISO week or month in UTC.
func periodStart(period string, at time.Time) time.Time {
	cal := &now.Config{WeekStartDay: time.Monday, TimeLocation: time.UTC}
	n := cal.With(at.UTC())
	switch period {
	case PeriodDay:
		return n.BeginningOfDay()
	case PeriodWeek:
		return n.BeginningOfWeek()
	default:
		return n.BeginningOfMonth()
	}
}

// Query returns the firm's audit entries newest first, categorized and
// described.
func (s *ActivityService) Query(ctx context.Context, firmID string, f ActivityFilter) ([]ActivityItem, error) {
	db := s.DB.WithContext(ctx)
	q := db.Model(&models.Audit{}).Where("firm_id = ?", firmID)
	if f.Category != "" {
		// Entries written before kinds existed are categorized after loading.
		q = q.Where("kind IN ? OR kind = '' OR kind IS NULL", kindsFor(f.Category))
	}
	if f.DueDateID != "" {
		q = q.Where("due_date_id = ?", f.DueDateID)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if len(f.ActionTypes) > 0 {
		q = q.Where("action_type IN ?", f.ActionTypes)
	}
	if f.Period != "" {
		q = q.Where("created_at >= ?", periodStart(f.Period, s.Clock()))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var rows []models.Audit
	if err := q.Order("created_at DESC, id DESC").Limit(s.limit(f.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	if f.Category != "" {
		kept := rows[:0]
		for _, r := range rows {
			if Categorize(r) == f.Category {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	names, err := s.resolveNames(ctx, firmID, rows)
	if err != nil {
		return nil, err
	}
	items := make([]ActivityItem, len(rows))
	for i, r := range rows {
		items[i] = ActivityItem{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt,
			Category:    Categorize(r),
			Kind:        r.Kind,
			ActionType:  r.ActionType,
			Action:      r.Action,
			UserID:      r.UserID,
			DueDateID:   r.DueDateID,
			ClientID:    r.ClientID,
			Description: Describe(r, names.of(r)),
		}
	}
	return items, nil
}

type nameIndex struct {
	users    map[uint]string
	clients  map[string]string
	dueDates map[string]string
}

func (n nameIndex) of(a models.Audit) Names {
	return Names{
		Actor:   n.users[a.UserID],
		Client:  n.clients[deref(a.ClientID)],
		DueDate: n.dueDates[deref(a.DueDateID)],
	}
}

// resolveNames batch-loads the users, clients and due dates referenced by rows.
func (s *ActivityService) resolveNames(ctx context.Context, firmID string, rows []models.Audit) (nameIndex, error) {
	idx := nameIndex{users: map[uint]string{}, clients: map[string]string{}, dueDates: map[string]string{}}
	userIDs := map[uint]bool{}
	clientIDs := map[string]bool{}
	dueDateIDs := map[string]bool{}
	for _, r := range rows {
		userIDs[r.UserID] = true
		if r.ClientID != nil {
			clientIDs[*r.ClientID] = true
		}
		if r.DueDateID != nil {
			dueDateIDs[*r.DueDateID] = true
		}
	}
	db := s.DB.WithContext(ctx)

	if len(userIDs) > 0 {
		var users []models.User
		if err := db.Unscoped().Where("id IN ?", keys(userIDs)).Find(&users).Error; err != nil {
			return idx, err
		}
		for _, u := range users {
			idx.users[u.ID] = u.DisplayName()
		}
	}
	if len(clientIDs) > 0 {
		var clients []models.Client
		if err := db.Select("id", "name").Where("firm_id = ? AND id IN ?", firmID, keys(clientIDs)).Find(&clients).Error; err != nil {
			return idx, err
		}
		for _, c := range clients {
			idx.clients[c.ID] = c.Name
		}
	}
	if len(dueDateIDs) > 0 {
		var dds []models.DueDate
		if err := db.Select("id", "title").Where("firm_id = ? AND id IN ?", firmID, keys(dueDateIDs)).Find(&dds).Error; err != nil {
			return idx, err
		}
		for _, d := range dds {
			idx.dueDates[d.ID] = d.Title
		}
	}
	return idx, nil
}

func keys[K comparable](m map[K]bool) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
