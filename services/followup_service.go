package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"solar-workflow-api/utils"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MailSender delivers an HTML e-mail.
type MailSender interface {
	SendMail(to []string, subject, html string) error
}

// FollowUpInput creates a follow-up.
type FollowUpInput struct {
	Note       string    `json:"note" binding:"required"`
	DueDate    time.Time `json:"due_date" binding:"required"`
	AssignedTo string    `json:"assigned_to"`
}

// FollowUpUpdate changes the provided follow-up fields.
type FollowUpUpdate struct {
	Note       *string    `json:"note"`
	DueDate    *time.Time `json:"due_date"`
	Status     *string    `json:"status" binding:"omitempty,oneof=pending done"`
	AssignedTo *string    `json:"assigned_to"`
}

// ReminderReport summarises one reminder run.
type ReminderReport struct {
	Assignees    int `json:"assignees"`
	Sent         int `json:"sent"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	FollowUps    int `json:"follow_ups"`
	OverdueSteps int `json:"overdue_steps"`
}

type FollowUpService struct {
	store  *store.Store
	mailer MailSender
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewFollowUpService(st *store.Store, mailer MailSender, log logrus.FieldLogger) *FollowUpService {
	return &FollowUpService{store: st, mailer: mailer, log: log, now: time.Now}
}

func (s *FollowUpService) Create(ctx context.Context, clientID string, in FollowUpInput, createdBy string) (*models.FollowUp, error) {
	note := strings.TrimSpace(in.Note)
	if note == "" {
		return nil, invalid("note", "is required")
	}
	if in.DueDate.IsZero() {
		return nil, invalid("due_date", "is required")
	}
	client, err := s.store.Clients.Get(ctx, clientID)
	if err != nil {
		return nil, notFound("client", clientID, err)
	}
	assignee := in.AssignedTo
	if assignee == "" {
		assignee = client.AssignedTo
	}
	now := s.now()
	f := &models.FollowUp{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		Note:       note,
		DueDate:    in.DueDate,
		Status:     models.FollowUpPending,
		AssignedTo: assignee,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.FollowUps.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create follow-up: %w", err)
	}
	return f, nil
}

// ListForClient returns a client's follow-ups by due date.
func (s *FollowUpService) ListForClient(ctx context.Context, clientID string) ([]models.FollowUp, error) {
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	items, err := s.store.FollowUps.Find(ctx, store.Query{
		Filters: []store.Filter{store.Eq("client_id", clientID)},
		OrderBy: "due_date",
	})
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	return items, nil
}

// ListDue returns pending follow-ups due at or before the given time.
func (s *FollowUpService) ListDue(ctx context.Context, before time.Time) ([]models.FollowUp, error) {
	pending, err := s.store.FollowUps.Find(ctx, store.Query{
		Filters: []store.Filter{store.Eq("status", models.FollowUpPending)},
		OrderBy: "due_date",
	})
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	due := make([]models.FollowUp, 0, len(pending))
	for _, f := range pending {
		if !f.DueDate.After(before) {
			due = append(due, f)
		}
	}
	return due, nil
}

func (s *FollowUpService) Update(ctx context.Context, id string, upd FollowUpUpdate) (*models.FollowUp, error) {
	f, err := s.store.FollowUps.Get(ctx, id)
	if err != nil {
		return nil, notFound("follow-up", id, err)
	}
	if upd.Note != nil {
		note := strings.TrimSpace(*upd.Note)
		if note == "" {
			return nil, invalid("note", "is required")
		}
		f.Note = note
	}
	if upd.DueDate != nil {
		f.DueDate = *upd.DueDate
	}
	if upd.Status != nil {
		if *upd.Status != models.FollowUpPending && *upd.Status != models.FollowUpDone {
			return nil, invalid("status", "must be pending or done")
		}
		f.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		f.AssignedTo = *upd.AssignedTo
	}
	f.UpdatedAt = s.now()
	if err := s.store.FollowUps.Save(ctx, f); err != nil {
		return nil, fmt.Errorf("save follow-up: %w", err)
	}
	return f, nil
}

func (s *FollowUpService) Delete(ctx context.Context, id string) error {
	if err := s.store.FollowUps.Delete(ctx, id); err != nil {
		return notFound("follow-up", id, err)
	}
	return nil
}

type digestItem struct {
	Client string
	What   string
	Due    string
}

type digest struct {
	Name      string
	FollowUps []digestItem
	Steps     []digestItem
}

var digestTemplate = template.Must(template.New("digest").Parse(`<p>Hello {{.Name}},</p>
{{if .FollowUps}}<p>Follow-ups due:</p>
<ul>{{range .FollowUps}}<li><b>{{.Client}}</b>: {{.What}} (due {{.Due}})</li>{{end}}</ul>{{end}}
{{if .Steps}}<p>Overdue workflow steps:</p>
<ul>{{range .Steps}}<li><b>{{.Client}}</b>: {{.What}} (due {{.Due}})</li>{{end}}</ul>{{end}}
<p>Solar Workflow</p>`))

// SendReminders e-mails each assignee one digest of their due follow-ups and
// overdue steps. Work without an assignee or without an e-mail address is
// skipped.
func (s *FollowUpService) SendReminders(ctx context.Context, now time.Time) (*ReminderReport, error) {
	followUps, err := s.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}
	steps, err := s.store.Steps.Find(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	clients, err := s.store.Clients.Find(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	byID := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	report := &ReminderReport{}
	digests := map[string]*digest{}
	get := func(userID string) *digest {
		d, ok := digests[userID]
		if !ok {
			d = &digest{}
			digests[userID] = d
		}
		return d
	}
	for _, f := range followUps {
		client := byID[f.ClientID]
		assignee := f.AssignedTo
		if assignee == "" {
			assignee = client.AssignedTo
		}
		if assignee == "" {
			report.Skipped++
			continue
		}
		report.FollowUps++
		d := get(assignee)
		d.FollowUps = append(d.FollowUps, digestItem{Client: client.Name, What: f.Note, Due: utils.FormatDate(f.DueDate)})
	}
	for _, st := range steps {
		if !IsOverdue(st.DueDate, st.Status, now) {
			continue
		}
		client, ok := byID[st.ClientID]
		if !ok || client.Status == models.ClientStatusCancelled {
			continue
		}
		assignee := st.AssignedTo
		if assignee == "" {
			assignee = client.AssignedTo
		}
		if assignee == "" {
			report.Skipped++
			continue
		}
		report.OverdueSteps++
		d := get(assignee)
		d.Steps = append(d.Steps, digestItem{
			Client: client.Name,
			What:   fmt.Sprintf("Step %d %s", st.StepNumber, st.StepName),
			Due:    utils.FormatDatePtr(st.DueDate),
		})
	}

	userIDs := make([]string, 0, len(digests))
	for id := range digests {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	report.Assignees = len(userIDs)

	for _, id := range userIDs {
		logger := s.log.WithField("user_id", id)
		user, err := s.store.Users.Get(ctx, id)
		if err != nil || strings.TrimSpace(user.Email) == "" {
			report.Skipped++
			logger.Warn("reminder skipped: assignee has no e-mail address")
			continue
		}
		d := digests[id]
		d.Name = user.Name
		var buf bytes.Buffer
		if err := digestTemplate.Execute(&buf, d); err != nil {
			return report, fmt.Errorf("render digest: %w", err)
		}
		subject := fmt.Sprintf("Solar workflow reminders: %d follow-ups, %d overdue steps", len(d.FollowUps), len(d.Steps))
		if err := s.mailer.SendMail([]string{user.Email}, subject, buf.String()); err != nil {
			report.Failed++
			logger.WithError(err).Error("failed to send reminder digest")
			continue
		}
		report.Sent++
	}
	return report, nil
}
