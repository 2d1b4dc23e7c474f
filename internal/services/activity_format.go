package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/go-duedates/internal/models"
)

// Activity categories.
const (
	CategoryClients  = "clients"
	CategoryDueDates = "duedates"
	CategoryFirm     = "firm"
)

var Categories = []string{CategoryClients, CategoryDueDates, CategoryFirm}

var kindPrefixCategory = []struct{ prefix, category string }{
	{"due_date.", CategoryDueDates},
	{"attachment.", CategoryDueDates},
	{"client.", CategoryClients},
	{"subscription.", CategoryFirm},
	{"member.", CategoryFirm},
	{"firm.", CategoryFirm},
}

// kindsFor lists the kinds stamped for a category.
func kindsFor(category string) []string {
	all := []string{
		models.KindDueDateCreated, models.KindDueDateUpdated, models.KindDueDateDeleted, models.KindDueDateCompleted,
		models.KindAttachmentCreated, models.KindAttachmentUpdated, models.KindAttachmentDeleted,
		models.KindClientCreated, models.KindClientUpdated, models.KindClientDeleted,
		models.KindSubscriptionUpdated, models.KindMemberRoleChanged,
	}
	var out []string
	for _, k := range all {
		if c, _ := categoryOfKind(k); c == category {
			out = append(out, k)
		}
	}
	return out
}

func categoryOfKind(kind string) (string, bool) {
	for _, kp := range kindPrefixCategory {
		if strings.HasPrefix(kind, kp.prefix) {
			return kp.category, true
		}
	}
	return "", false
}

// Categorize assigns an audit entry to clients, duedates or firm. The kind tag
// decides when it is known. Entries without one fall back to the text and
// the referenced ids, checked in this order: member, invite or firm wording;
// due-date wording or a due-date/attachment id; client wording or a client id
// without a due-date id; otherwise firm.
func Categorize(a models.Audit) string {
	if c, ok := categoryOfKind(a.Kind); ok {
		return c
	}
	text := strings.ToLower(a.Action)
	switch {
	case containsAny(text, "member", "invite", "firm"):
		return CategoryFirm
	case containsAny(text, "due date", "due-date", "duedate") || a.DueDateID != nil || a.DueDateClientID != nil:
		return CategoryDueDates
	case strings.Contains(text, "client") || (a.ClientID != nil && a.DueDateID == nil):
		return CategoryClients
	default:
		return CategoryFirm
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FieldChange is a rendered before/after pair.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Names holds display names resolved for an audit entry.
type Names struct {
	Actor   string
	Client  string
	DueDate string
}

// Description is an audit entry broken into sentence parts.
type Description struct {
	Actor    string        `json:"actor"`
	Verb     string        `json:"verb"`
	Target   string        `json:"target"`
	Changes  []FieldChange `json:"changes,omitempty"`
	Sentence string        `json:"sentence"`
}

var kindVerbs = map[string]string{
	models.KindDueDateCreated:      "created due date",
	models.KindDueDateUpdated:      "updated due date",
	models.KindDueDateDeleted:      "deleted due date",
	models.KindDueDateCompleted:    "completed due date",
	models.KindAttachmentCreated:   "attached",
	models.KindAttachmentUpdated:   "updated the status of",
	models.KindAttachmentDeleted:   "detached",
	models.KindClientCreated:       "added client",
	models.KindClientUpdated:       "updated client",
	models.KindClientDeleted:       "deleted client",
	models.KindSubscriptionUpdated: "changed the firm plan",
	models.KindMemberRoleChanged:   "changed a member role",
}

var actionTypeVerbs = map[string]string{
	models.ActionCreated: "created",
	models.ActionEdited:  "updated",
	models.ActionDeleted: "deleted",
}

// Describe renders an audit entry as (actor, verb, target) plus the field
// changes found in its details. Unreadable details never fail: the entry is
// described without changes.
func Describe(a models.Audit, names Names) Description {
	var details AuditDetails
	if len(a.Details) > 0 {
		if err := json.Unmarshal(a.Details, &details); err != nil {
			details = AuditDetails{}
		}
	}

	clientName := firstNonEmpty(names.Client, details.ClientName)
	title := firstNonEmpty(names.DueDate, details.DueDateTitle, stringValue(details.Previous["title"]))

	d := Description{Actor: firstNonEmpty(names.Actor, "Someone")}
	verb, known := kindVerbs[a.Kind]
	switch {
	case known:
		d.Verb = verb
		d.Target = targetFor(a.Kind, clientName, title)
	case a.ActionType != "" && actionTypeVerbs[a.ActionType] != "":
		d.Verb = actionTypeVerbs[a.ActionType]
		d.Target = firstNonEmpty(quote(title), quote(clientName), "an item")
	default:
		d.Verb = "made a change"
	}
	d.Changes = changesFrom(details)
	d.Sentence = sentence(d)
	return d
}

func targetFor(kind, clientName, title string) string {
	switch {
	case strings.HasPrefix(kind, "attachment."):
		c := firstNonEmpty(quote(clientName), "a client")
		t := firstNonEmpty(quote(title), "a due date")
		if kind == models.KindAttachmentDeleted {
			return c + " from " + t
		}
		if kind == models.KindAttachmentCreated {
			return c + " to " + t
		}
		return c + " on " + t
	case strings.HasPrefix(kind, "due_date."):
		return quote(title)
	case strings.HasPrefix(kind, "client."):
		return quote(clientName)
	}
	return ""
}

func changesFrom(d AuditDetails) []FieldChange {
	var out []FieldChange
	if len(d.Changes) > 0 {
		for field, c := range d.Changes {
			out = append(out, FieldChange{Field: field, From: stringValue(c.From), To: stringValue(c.To)})
		}
	} else {
		for field, to := range d.Updated {
			from, had := d.Previous[field]
			if had && fmt.Sprint(from) == fmt.Sprint(to) {
				continue
			}
			out = append(out, FieldChange{Field: field, From: stringValue(from), To: stringValue(to)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func sentence(d Description) string {
	parts := []string{d.Actor, d.Verb}
	if d.Target != "" {
		parts = append(parts, d.Target)
	}
	s := strings.Join(parts, " ")
	if len(d.Changes) > 0 {
		rendered := make([]string, len(d.Changes))
		for i, c := range d.Changes {
			switch {
			case c.From == "":
				rendered[i] = fmt.Sprintf("%s set to %q", c.Field, c.To)
			case c.To == "":
				rendered[i] = fmt.Sprintf("%s cleared (was %q)", c.Field, c.From)
			default:
				rendered[i] = fmt.Sprintf("%s from %q to %q", c.Field, c.From, c.To)
			}
		}
		s += ": " + strings.Join(rendered, "; ")
	}
	return s
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%q", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
