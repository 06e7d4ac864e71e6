package services

import (
	"context"
	"fmt"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StepUpdate carries the optional fields of a step or sub-step update.
type StepUpdate struct {
	Status       *string    `json:"status"`
	AssignedTo   *string    `json:"assigned_to"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Notes        *string    `json:"notes"`
}

// SubStepInput creates a sub-step.
type SubStepInput struct {
	Name       string     `json:"name" binding:"required,max=128"`
	Order      int        `json:"sort_order"`
	Status     string     `json:"status"`
	AssignedTo string     `json:"assigned_to"`
	DueDate    *time.Time `json:"due_date"`
}

// SubStepView is a sub-step with its derived fields.
type SubStepView struct {
	models.ClientSubStep
	Overdue         bool   `json:"overdue"`
	EffectiveStatus string `json:"effective_status"`
}

// StepView is a step with its derived fields and sub-steps.
type StepView struct {
	models.ClientStep
	Overdue         bool          `json:"overdue"`
	EffectiveStatus string        `json:"effective_status"`
	SubSteps        []SubStepView `json:"sub_steps"`
}

type StepService struct {
	store *store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewStepService(st *store.Store, log logrus.FieldLogger) *StepService {
	return &StepService{store: st, log: log, now: time.Now}
}

// ListSteps returns the client's steps ordered by step number with sub-steps.
func (s *StepService) ListSteps(ctx context.Context, clientID string) ([]StepView, error) {
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	steps, err := s.store.Steps.Find(ctx, store.Query{
		Filters: []store.Filter{store.Eq("client_id", clientID)},
		OrderBy: "step_number",
	})
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	subs, err := s.store.SubSteps.Find(ctx, store.Where(store.Eq("client_id", clientID)))
	if err != nil {
		return nil, fmt.Errorf("list sub-steps: %w", err)
	}
	return buildStepViews(steps, subs, s.now()), nil
}

func buildStepViews(steps []models.ClientStep, subs []models.ClientSubStep, now time.Time) []StepView {
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Order < subs[j].Order })

	byStep := make(map[string][]SubStepView, len(steps))
	for _, sub := range subs {
		byStep[sub.StepID] = append(byStep[sub.StepID], subStepView(sub, now))
	}
	views := make([]StepView, 0, len(steps))
	for _, step := range steps {
		v := stepView(step, now)
		v.SubSteps = byStep[step.ID]
		if v.SubSteps == nil {
			v.SubSteps = []SubStepView{}
		}
		views = append(views, v)
	}
	return views
}

func stepView(step models.ClientStep, now time.Time) StepView {
	return StepView{
		ClientStep:      step,
		Overdue:         IsOverdue(step.DueDate, step.Status, now),
		EffectiveStatus: EffectiveStatus(step.Status, step.DueDate, now),
	}
}

func subStepView(sub models.ClientSubStep, now time.Time) SubStepView {
	return SubStepView{
		ClientSubStep:   sub,
		Overdue:         IsOverdue(sub.DueDate, sub.Status, now),
		EffectiveStatus: EffectiveStatus(sub.Status, sub.DueDate, now),
	}
}

func validateStepStatus(status string) error {
	if status == models.StepStatusOverdue {
		return invalid("status", "overdue is derived from the due date and cannot be set")
	}
	if !models.IsStepStatusWritable(status) {
		return invalid("status", "must be one of %s", strings.Join(models.ValidStepStatuses(), ", "))
	}
	return nil
}

// UpdateStep applies an update to a step, maintains completed_at and
// recomputes the client's current step.
func (s *StepService) UpdateStep(ctx context.Context, stepID string, upd StepUpdate) (*StepView, error) {
	step, err := s.store.Steps.Get(ctx, stepID)
	if err != nil {
		return nil, notFound("step", stepID, err)
	}
	now := s.now()
	if upd.Status != nil {
		if err := validateStepStatus(*upd.Status); err != nil {
			return nil, err
		}
		step.CompletedAt = completedAtFor(step.Status, *upd.Status, step.CompletedAt, now)
		step.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		step.AssignedTo = *upd.AssignedTo
	}
	if upd.ClearDueDate {
		step.DueDate = nil
	} else if upd.DueDate != nil {
		step.DueDate = upd.DueDate
	}
	if upd.Notes != nil {
		step.Notes = *upd.Notes
	}
	step.UpdatedAt = now
	if err := s.store.Steps.Save(ctx, step); err != nil {
		return nil, fmt.Errorf("save step: %w", err)
	}

	if upd.Status != nil {
		if err := s.refreshCurrentStep(ctx, step.ClientID); err != nil {
			return nil, err
		}
	}
	v := stepView(*step, now)
	return &v, nil
}

func (s *StepService) refreshCurrentStep(ctx context.Context, clientID string) error {
	steps, err := s.store.Steps.Find(ctx, store.Where(store.Eq("client_id", clientID)))
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}
	client, err := s.store.Clients.Get(ctx, clientID)
	if err != nil {
		return notFound("client", clientID, err)
	}
	current := CurrentStepFor(steps)
	if client.CurrentStep == current {
		return nil
	}
	s.log.WithFields(logrus.Fields{
		"client_id": clientID,
		"from":      client.CurrentStep,
		"to":        current,
	}).Info("client current step changed")
	client.CurrentStep = current
	client.UpdatedAt = s.now()
	if err := s.store.Clients.Save(ctx, client); err != nil {
		return fmt.Errorf("save client: %w", err)
	}
	return nil
}

// CreateSubStep appends a sub-step to any existing step.
func (s *StepService) CreateSubStep(ctx context.Context, stepID string, in SubStepInput) (*SubStepView, error) {
	step, err := s.store.Steps.Get(ctx, stepID)
	if err != nil {
		return nil, notFound("step", stepID, err)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	status := in.Status
	if status == "" {
		status = models.StepStatusPending
	}
	if err := validateStepStatus(status); err != nil {
		return nil, err
	}
	order := in.Order
	if order <= 0 {
		existing, err := s.store.SubSteps.Find(ctx, store.Where(store.Eq("step_id", stepID)))
		if err != nil {
			return nil, fmt.Errorf("list sub-steps: %w", err)
		}
		for _, sub := range existing {
			if sub.Order > order {
				order = sub.Order
			}
		}
		order++
	}
	now := s.now()
	sub := &models.ClientSubStep{
		ID:          uuid.NewString(),
		StepID:      step.ID,
		ClientID:    step.ClientID,
		Name:        strings.TrimSpace(in.Name),
		Order:       order,
		Status:      status,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		CompletedAt: completedAtFor("", status, nil, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SubSteps.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create sub-step: %w", err)
	}
	v := subStepView(*sub, now)
	return &v, nil
}

// UpdateSubStep applies an update to a sub-step. The client's current step is
// driven by steps only.
func (s *StepService) UpdateSubStep(ctx context.Context, subStepID string, upd StepUpdate) (*SubStepView, error) {
	sub, err := s.store.SubSteps.Get(ctx, subStepID)
	if err != nil {
		return nil, notFound("sub-step", subStepID, err)
	}
	now := s.now()
	if upd.Status != nil {
		if err := validateStepStatus(*upd.Status); err != nil {
			return nil, err
		}
		sub.CompletedAt = completedAtFor(sub.Status, *upd.Status, sub.CompletedAt, now)
		sub.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		sub.AssignedTo = *upd.AssignedTo
	}
	if upd.ClearDueDate {
		sub.DueDate = nil
	} else if upd.DueDate != nil {
		sub.DueDate = upd.DueDate
	}
	sub.UpdatedAt = now
	if err := s.store.SubSteps.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save sub-step: %w", err)
	}
	v := subStepView(*sub, now)
	return &v, nil
}

// DeleteSubStep removes one sub-step.
func (s *StepService) DeleteSubStep(ctx context.Context, subStepID string) error {
	if err := s.store.SubSteps.Delete(ctx, subStepID); err != nil {
		return notFound("sub-step", subStepID, err)
	}
	return nil
}
