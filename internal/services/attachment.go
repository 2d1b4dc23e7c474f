package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/validation"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AttachResult reports how an attach request was applied.
type AttachResult struct {
	Inserted    int      `json:"inserted"`
	Skipped     int      `json:"skipped"`
	AttachedIDs []string `json:"attached_ids"`
	// FailedClientIDs lists clients whose insert failed; the request can be retried for them.
	FailedClientIDs []string `json:"failed_client_ids,omitempty"`
}

// AttachmentPatch updates an attachment's statuses. An empty patch toggles
// the document status.
type AttachmentPatch struct {
	DocStatus  *string `json:"doc_status"`
	WorkStatus *string `json:"work_status"`
	// LastContactedAt takes an RFC 3339 timestamp, "now", or "" to clear it.
	LastContactedAt *string `json:"last_contacted_at"`
}

func (p AttachmentPatch) empty() bool {
	return p.DocStatus == nil && p.WorkStatus == nil && p.LastContactedAt == nil
}

// AttachmentClient and AttachmentDueDate are the joined parts of an AttachmentView.
type AttachmentClient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type AttachmentDueDate struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// AttachmentView is an attachment with its client and due date resolved.
type AttachmentView struct {
	ID              string            `json:"id"`
	DocStatus       string            `json:"doc_status"`
	WorkStatus      string            `json:"work_status"`
	LastContactedAt *time.Time        `json:"last_contacted_at,omitempty"`
	UpdatedBy       *uint             `json:"updated_by,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Client          AttachmentClient  `json:"client"`
	DueDate         AttachmentDueDate `json:"due_date"`
}

// attachmentRow is the flat result of the attachment join.
type attachmentRow struct {
	ID              string
	DueDateID       string
	ClientID        string
	DocStatus       string
	WorkStatus      string
	LastContactedAt *time.Time
	UpdatedBy       *uint
	UpdatedAt       time.Time
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	DueDateTitle    string
	DueDateDate     time.Time
}

func (r attachmentRow) view() AttachmentView {
	return AttachmentView{
		ID:              r.ID,
		DocStatus:       r.DocStatus,
		WorkStatus:      r.WorkStatus,
		LastContactedAt: r.LastContactedAt,
		UpdatedBy:       r.UpdatedBy,
		UpdatedAt:       r.UpdatedAt,
		Client:          AttachmentClient{ID: r.ClientID, Name: r.ClientName, Email: r.ClientEmail, Phone: r.ClientPhone},
		DueDate:         AttachmentDueDate{ID: r.DueDateID, Title: r.DueDateTitle, Date: r.DueDateDate},
	}
}

type AttachmentService struct {
	DB          *gorm.DB
	Audit       *AuditRecorder
	Concurrency int
	Clock       func() time.Time
}

func NewAttachmentService(db *gorm.DB, audit *AuditRecorder, concurrency int) *AttachmentService {
	return &AttachmentService{DB: db, Audit: audit, Concurrency: max(concurrency, 1), Clock: time.Now}
}

// Attach links clients to a multi-client due date. Clients already attached,
// and rows lost to a concurrent attach of the same client, count as skipped.
// A failed insert is listed in FailedClientIDs without undoing the others;
// the call fails only when nothing was inserted or skipped.
func (s *AttachmentService) Attach(ctx context.Context, actor Actor, dueDateID string, clientIDs []string) (*AttachResult, error) {
	ids := dedupe(clientIDs)
	if len(ids) == 0 {
		return nil, invalidField("client_ids", "required")
	}

	db := s.DB.WithContext(ctx)
	var dd models.DueDate
	if err := db.Where("id = ? AND firm_id = ?", dueDateID, actor.FirmID).First(&dd).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("due date")
		}
		return nil, err
	}
	if dd.IsSingleClient() {
		return nil, invalidField("due_date_id", "single_client_due_date")
	}

	var clients []models.Client
	if err := db.Where("firm_id = ? AND id IN ?", actor.FirmID, ids).Find(&clients).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			return nil, invalidField("client_ids", "unknown_client")
		}
	}

	var existing []string
	if err := db.Model(&models.DueDateClient{}).
		Where("firm_id = ? AND due_date_id = ? AND client_id IN ?", actor.FirmID, dd.ID, ids).
		Pluck("client_id", &existing).Error; err != nil {
		return nil, err
	}
	already := make(map[string]bool, len(existing))
	for _, id := range existing {
		already[id] = true
	}

	res := &AttachResult{Skipped: len(existing), AttachedIDs: []string{}}
	var (
		mu       sync.Mutex
		inserted []models.DueDateClient
		firstErr error
	)
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for _, clientID := range ids {
		if already[clientID] {
			continue
		}
		row := models.DueDateClient{
			FirmID:     actor.FirmID,
			DueDateID:  dd.ID,
			ClientID:   clientID,
			DocStatus:  models.DocStatusPending,
			WorkStatus: models.WorkStatusPending,
		}
		// Failures stay per row so committed siblings are still reported and audited.
		g.Go(func() error {
			ok, err := s.insertAttachment(ctx, &row)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				log.Printf("attach client %s to due date %s: %v", row.ClientID, row.DueDateID, err)
				res.FailedClientIDs = append(res.FailedClientIDs, row.ClientID)
				if firstErr == nil {
					firstErr = err
				}
			case ok:
				inserted = append(inserted, row)
			default:
				res.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, row := range inserted {
		res.Inserted++
		res.AttachedIDs = append(res.AttachedIDs, row.ID)
		s.Audit.Record(ctx, AuditEntry{
			Actor:           actor,
			DueDateID:       dd.ID,
			DueDateClientID: row.ID,
			ClientID:        row.ClientID,
			Kind:            models.KindAttachmentCreated,
			Action:          fmt.Sprintf("Attached client %q to due date %q", names[row.ClientID], dd.Title),
			ActionType:      models.ActionCreated,
			Details:         &AuditDetails{ClientName: names[row.ClientID], DueDateTitle: dd.Title},
		})
	}
	if res.Inserted == 0 && res.Skipped == 0 && firstErr != nil {
		return nil, fmt.Errorf("attach clients: %w", firstErr)
	}
	slices.Sort(res.FailedClientIDs)
	return res, nil
}

// insertAttachment reports false when the row already exists.
func (s *AttachmentService) insertAttachment(ctx context.Context, row *models.DueDateClient) (bool, error) {
	err := s.DB.WithContext(ctx).Create(row).Error
	if err == nil {
		return true, nil
	}
	if isDuplicateKey(err) {
		return false, nil
	}
	return false, err
}

func (s *AttachmentService) get(ctx context.Context, firmID, id string) (*models.DueDateClient, error) {
	var a models.DueDateClient
	err := s.DB.WithContext(ctx).Where("id = ? AND firm_id = ?", id, firmID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("attachment")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateStatus applies a patch and records only the fields that changed.
func (s *AttachmentService) UpdateStatus(ctx context.Context, actor Actor, id string, p AttachmentPatch) (*models.DueDateClient, error) {
	a, err := s.get(ctx, actor.FirmID, id)
	if err != nil {
		return nil, err
	}

	if p.empty() {
		// Requests without a body flip the document status.
		next := models.DocStatusReceived
		if a.DocStatus == models.DocStatusReceived {
			next = models.DocStatusPending
		}
		p.DocStatus = &next
	}

	v := validation.Violations{}
	if p.DocStatus != nil {
		validation.OneOf("doc_status", *p.DocStatus, models.DocStatuses, v)
	}
	if p.WorkStatus != nil {
		validation.OneOf("work_status", *p.WorkStatus, models.WorkStatuses, v)
	}
	var contacted *time.Time
	if p.LastContactedAt != nil {
		switch raw := strings.TrimSpace(*p.LastContactedAt); {
		case raw == "": // clear
		case strings.EqualFold(raw, "now"):
			at := s.Clock().UTC()
			contacted = &at
		default:
			if at, ok := validation.Timestamp("last_contacted_at", raw, v); ok {
				contacted = &at
			}
		}
	}
	if !v.Empty() {
		return nil, invalid(v)
	}

	changes := map[string]Change{}
	cols := map[string]any{}
	if p.DocStatus != nil && *p.DocStatus != a.DocStatus {
		changes["doc_status"] = Change{From: a.DocStatus, To: *p.DocStatus}
		cols["doc_status"] = *p.DocStatus
		a.DocStatus = *p.DocStatus
	}
	if p.WorkStatus != nil && *p.WorkStatus != a.WorkStatus {
		changes["work_status"] = Change{From: a.WorkStatus, To: *p.WorkStatus}
		cols["work_status"] = *p.WorkStatus
		a.WorkStatus = *p.WorkStatus
	}
	if p.LastContactedAt != nil && !sameTime(a.LastContactedAt, contacted) {
		changes["last_contacted_at"] = Change{From: rfc3339(a.LastContactedAt), To: rfc3339(contacted)}
		cols["last_contacted_at"] = contacted
		a.LastContactedAt = contacted
	}
	if len(cols) == 0 {
		return a, nil
	}
	cols["updated_by"] = actor.UserID
	if err := s.DB.WithContext(ctx).Model(&models.DueDateClient{}).Where("id = ?", a.ID).Updates(cols).Error; err != nil {
		return nil, fmt.Errorf("update attachment: %w", err)
	}
	uid := actor.UserID
	a.UpdatedBy = &uid

	clientName, title := s.names(ctx, a)
	s.Audit.Record(ctx, AuditEntry{
		Actor:           actor,
		DueDateID:       a.DueDateID,
		DueDateClientID: a.ID,
		ClientID:        a.ClientID,
		Kind:            models.KindAttachmentUpdated,
		Action:          fmt.Sprintf("Updated status of client %q on due date %q", clientName, title),
		ActionType:      models.ActionEdited,
		Details:         &AuditDetails{Changes: changes, ClientName: clientName, DueDateTitle: title},
	})
	return a, nil
}

// Detach deletes one attachment row.
func (s *AttachmentService) Detach(ctx context.Context, actor Actor, id string) error {
	a, err := s.get(ctx, actor.FirmID, id)
	if err != nil {
		return err
	}
	clientName, title := s.names(ctx, a)
	if err := s.DB.WithContext(ctx).Delete(a).Error; err != nil {
		return fmt.Errorf("detach client: %w", err)
	}
	s.Audit.Record(ctx, AuditEntry{
		Actor:           actor,
		DueDateID:       a.DueDateID,
		DueDateClientID: a.ID,
		ClientID:        a.ClientID,
		Kind:            models.KindAttachmentDeleted,
		Action:          fmt.Sprintf("Detached client %q from due date %q", clientName, title),
		ActionType:      models.ActionDeleted,
		Details: &AuditDetails{
			ClientName:   clientName,
			DueDateTitle: title,
			Previous:     map[string]any{"doc_status": a.DocStatus, "work_status": a.WorkStatus},
		},
	})
	return nil
}

// names looks up the client name and due-date title for audit text.
// Missing rows yield empty strings.
func (s *AttachmentService) names(ctx context.Context, a *models.DueDateClient) (clientName, title string) {
	db := s.DB.WithContext(ctx)
	var c models.Client
	if err := db.Select("name").Where("id = ?", a.ClientID).First(&c).Error; err == nil {
		clientName = c.Name
	}
	var dd models.DueDate
	if err := db.Select("title").Where("id = ?", a.DueDateID).First(&dd).Error; err == nil {
		title = dd.Title
	}
	return clientName, title
}

func (s *AttachmentService) listJoined(ctx context.Context, where string, args ...any) ([]AttachmentView, error) {
	var rows []attachmentRow
	err := s.DB.WithContext(ctx).
		Table("due_date_clients AS a").
		Select(`a.id, a.due_date_id, a.client_id, a.doc_status, a.work_status,
			a.last_contacted_at, a.updated_by, a.updated_at,
			c.name AS client_name, c.email AS client_email, c.phone AS client_phone,
			d.title AS due_date_title, d.date AS due_date_date`).
		Joins("JOIN clients c ON c.id = a.client_id").
		Joins("JOIN due_dates d ON d.id = a.due_date_id").
		Where(where, args...).
		Order("d.date ASC, c.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]AttachmentView, len(rows))
	for i, r := range rows {
		out[i] = r.view()
	}
	return out, nil
}

// ListForDueDate returns the clients attached to a due date.
func (s *AttachmentService) ListForDueDate(ctx context.Context, firmID, dueDateID string) ([]AttachmentView, error) {
	return s.listJoined(ctx, "a.firm_id = ? AND a.due_date_id = ?", firmID, dueDateID)
}

// ListForClient returns the due dates a client is attached to.
func (s *AttachmentService) ListForClient(ctx context.Context, firmID, clientID string) ([]AttachmentView, error) {
	return s.listJoined(ctx, "a.firm_id = ? AND a.client_id = ?", firmID, clientID)
}

// rfc3339 formats t for a change record; a nil time stays nil.
func rfc3339(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
