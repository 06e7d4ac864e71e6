package services

import (
	"context"
	"errors"
	"fmt"
	"solar-workflow-api/models"
	"solar-workflow-api/storage"
	"solar-workflow-api/store"
	"solar-workflow-api/utils"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClientInput creates a client.
type ClientInput struct {
	Name       string `json:"name" binding:"required,max=255"`
	Mobile     string `json:"mobile" binding:"required"`
	Email      string `json:"email" binding:"omitempty,email"`
	Address    string `json:"address" binding:"max=512"`
	City       string `json:"city" binding:"max=128"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to"`
}

// ClientUpdate changes the provided client fields.
type ClientUpdate struct {
	Name       *string `json:"name" binding:"omitempty,max=255"`
	Mobile     *string `json:"mobile"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	Status     *string `json:"status"`
	AssignedTo *string `json:"assigned_to"`
}

// ClientFilter narrows ListClients.
type ClientFilter struct {
	Status      string `form:"status"`
	AssignedTo  string `form:"assigned_to"`
	CurrentStep int    `form:"current_step"`
	Search      string `form:"search"`
	OverdueOnly bool   `form:"overdue"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// ClientDetail is a client with its steps.
type ClientDetail struct {
	models.Client
	Steps []StepView `json:"steps"`
}

// DeleteResult reports what a client deletion removed.
type DeleteResult struct {
	ClientID string           `json:"client_id"`
	Removed  map[string]int64 `json:"removed"`
	Failures int              `json:"failures"`
}

type ClientService struct {
	store       *store.Store
	objects     storage.ObjectStorage
	log         logrus.FieldLogger
	phoneRegion string
	now         func() time.Time
}

func NewClientService(st *store.Store, objects storage.ObjectStorage, log logrus.FieldLogger, phoneRegion string) *ClientService {
	return &ClientService{store: st, objects: objects, log: log, phoneRegion: phoneRegion, now: time.Now}
}

func validateEmail(field, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if !utils.ValidateEmail(email) {
		return invalid(field, "%q is not an e-mail address", email)
	}
	return nil
}

// CreateClient registers a client and instantiates its five steps and the
// dispatch sub-steps.
func (s *ClientService) CreateClient(ctx context.Context, in ClientInput, createdBy string) (*ClientDetail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	mobile, err := NormalizePhone(in.Mobile, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	if err := validateEmail("email", in.Email); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = models.ClientStatusActive
	}
	if !models.IsClientStatusValid(status) {
		return nil, invalid("status", "must be one of %s", strings.Join(models.ValidClientStatuses(), ", "))
	}

	now := s.now()
	client := &models.Client{
		ID:          uuid.NewString(),
		Name:        name,
		Mobile:      mobile,
		Email:       strings.TrimSpace(in.Email),
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		Status:      status,
		CurrentStep: stepTemplates[0].Number,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Clients.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	steps, subs := newClientSteps(client, now)
	if err := s.createSteps(ctx, steps, subs); err != nil {
		s.rollbackClient(ctx, client.ID)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"client_id": client.ID, "created_by": createdBy}).Info("client created")
	return &ClientDetail{Client: *client, Steps: buildStepViews(steps, subs, now)}, nil
}

func newClientSteps(client *models.Client, now time.Time) ([]models.ClientStep, []models.ClientSubStep) {
	steps := make([]models.ClientStep, 0, len(stepTemplates))
	var subs []models.ClientSubStep
	for i, t := range stepTemplates {
		status := models.StepStatusPending
		if i == 0 {
			status = models.StepStatusInProgress
		}
		step := models.ClientStep{
			ID:         uuid.NewString(),
			ClientID:   client.ID,
			StepNumber: t.Number,
			StepName:   t.Name,
			Status:     status,
			AssignedTo: client.AssignedTo,
			DueDate:    dueDateFor(now, t.Number),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		steps = append(steps, step)
		if t.Number != DispatchStep {
			continue
		}
		for j, name := range dispatchSubSteps {
			subs = append(subs, models.ClientSubStep{
				ID:         uuid.NewString(),
				StepID:     step.ID,
				ClientID:   client.ID,
				Name:       name,
				Order:      j + 1,
				Status:     models.StepStatusPending,
				AssignedTo: client.AssignedTo,
				DueDate:    step.DueDate,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
	return steps, subs
}

func (s *ClientService) createSteps(ctx context.Context, steps []models.ClientStep, subs []models.ClientSubStep) error {
	stepPtrs := make([]*models.ClientStep, len(steps))
	for i := range steps {
		stepPtrs[i] = &steps[i]
	}
	if err := errors.Join(s.store.Steps.CreateMany(ctx, stepPtrs)...); err != nil {
		return fmt.Errorf("create steps: %w", err)
	}
	subPtrs := make([]*models.ClientSubStep, len(subs))
	for i := range subs {
		subPtrs[i] = &subs[i]
	}
	if err := errors.Join(s.store.SubSteps.CreateMany(ctx, subPtrs)...); err != nil {
		return fmt.Errorf("create sub-steps: %w", err)
	}
	return nil
}

func (s *ClientService) rollbackClient(ctx context.Context, clientID string) {
	ctx = persistentContext(ctx)
	_, err1 := s.store.SubSteps.DeleteWhere(ctx, store.Eq("client_id", clientID))
	_, err2 := s.store.Steps.DeleteWhere(ctx, store.Eq("client_id", clientID))
	err3 := s.store.Clients.Delete(ctx, clientID)
	if err := errors.Join(err1, err2, err3); err != nil {
		s.log.WithError(err).WithField("client_id", clientID).Error("failed to roll back partially created client")
	}
}

// GetClient returns a client with its steps.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (*ClientDetail, error) {
	client, err := s.store.Clients.Get(ctx, clientID)
	if err != nil {
		return nil, notFound("client", clientID, err)
	}
	steps, err := s.store.Steps.Find(ctx, store.Where(store.Eq("client_id", clientID)))
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	subs, err := s.store.SubSteps.Find(ctx, store.Where(store.Eq("client_id", clientID)))
	if err != nil {
		return nil, fmt.Errorf("list sub-steps: %w", err)
	}
	return &ClientDetail{Client: *client, Steps: buildStepViews(steps, subs, s.now())}, nil
}

// ListClients returns one page of clients ordered by last update, newest
// first, and the total number of matches.
func (s *ClientService) ListClients(ctx context.Context, f ClientFilter) ([]models.Client, int64, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	var filters []store.Filter
	if f.Status != "" {
		filters = append(filters, store.Eq("status", f.Status))
	}
	if f.AssignedTo != "" {
		filters = append(filters, store.Eq("assigned_to", f.AssignedTo))
	}
	if f.CurrentStep > 0 {
		filters = append(filters, store.Eq("current_step", f.CurrentStep))
	}
	q := store.Query{Filters: filters, OrderBy: "updated_at", Desc: true}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" && !f.OverdueOnly {
		total, err := s.store.Clients.Count(ctx, filters...)
		if err != nil {
			return nil, 0, fmt.Errorf("count clients: %w", err)
		}
		q.Limit, q.Offset = f.Limit, f.Offset
		clients, err := s.store.Clients.Find(ctx, q)
		if err != nil {
			return nil, 0, fmt.Errorf("list clients: %w", err)
		}
		return clients, total, nil
	}

	all, err := s.store.Clients.Find(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	var overdue map[string]bool
	if f.OverdueOnly {
		if overdue, err = s.clientsWithOverdueSteps(ctx); err != nil {
			return nil, 0, err
		}
	}
	matched := make([]models.Client, 0, len(all))
	for _, c := range all {
		if search != "" && !clientMatches(c, search) {
			continue
		}
		if f.OverdueOnly && !overdue[c.ID] {
			continue
		}
		matched = append(matched, c)
	}
	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []models.Client{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}

func clientMatches(c models.Client, search string) bool {
	for _, field := range []string{c.Name, c.Mobile, c.Email, c.City, c.Address} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (s *ClientService) clientsWithOverdueSteps(ctx context.Context) (map[string]bool, error) {
	steps, err := s.store.Steps.Find(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	now := s.now()
	out := map[string]bool{}
	for _, st := range steps {
		if IsOverdue(st.DueDate, st.Status, now) {
			out[st.ClientID] = true
		}
	}
	return out, nil
}

// UpdateClient applies the provided fields.
func (s *ClientService) UpdateClient(ctx context.Context, clientID string, upd ClientUpdate) (*models.Client, error) {
	client, err := s.store.Clients.Get(ctx, clientID)
	if err != nil {
		return nil, notFound("client", clientID, err)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, invalid("name", "is required")
		}
		client.Name = name
	}
	if upd.Mobile != nil {
		mobile, err := NormalizePhone(*upd.Mobile, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		client.Mobile = mobile
	}
	if upd.Email != nil {
		if err := validateEmail("email", *upd.Email); err != nil {
			return nil, err
		}
		client.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Address != nil {
		client.Address = strings.TrimSpace(*upd.Address)
	}
	if upd.City != nil {
		client.City = strings.TrimSpace(*upd.City)
	}
	if upd.Status != nil {
		if !models.IsClientStatusValid(*upd.Status) {
			return nil, invalid("status", "must be one of %s", strings.Join(models.ValidClientStatuses(), ", "))
		}
		client.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		client.AssignedTo = *upd.AssignedTo
	}
	client.UpdatedAt = s.now()
	if err := s.store.Clients.Save(ctx, client); err != nil {
		return nil, fmt.Errorf("save client: %w", err)
	}
	return client, nil
}

// DeleteClient removes a client and everything it owns. Failures in the
// cascade are counted and logged; the client record is removed last.
func (s *ClientService) DeleteClient(ctx context.Context, clientID string) (*DeleteResult, error) {
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	res := &DeleteResult{ClientID: clientID, Removed: map[string]int64{}}
	logger := s.log.WithField("client_id", clientID)
	owner := store.Eq("client_id", clientID)

	var keys []string
	if docs, err := s.store.Documents.Find(ctx, store.Where(owner)); err != nil {
		res.Failures++
		logger.WithError(err).Error("list documents for cascade")
	} else {
		for _, d := range docs {
			keys = append(keys, d.StorageKey)
		}
	}
	if images, err := s.store.GpsImages.Find(ctx, store.Where(owner)); err != nil {
		res.Failures++
		logger.WithError(err).Error("list gps images for cascade")
	} else {
		for _, img := range images {
			keys = append(keys, img.StorageKey, img.ThumbnailKey)
		}
	}
	if expenses, err := s.store.Expenses.Find(ctx, store.Where(owner)); err != nil {
		res.Failures++
		logger.WithError(err).Error("list expenses for cascade")
	} else {
		for _, e := range expenses {
			keys = append(keys, e.Documents...)
		}
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			res.Failures++
			logger.WithError(err).WithField("key", key).Error("delete object for cascade")
			continue
		}
		res.Removed["objects"]++
	}

	cascade := []struct {
		name string
		del  func() (int64, error)
	}{
		{"documents", func() (int64, error) { return s.store.Documents.DeleteWhere(ctx, owner) }},
		{"gps_images", func() (int64, error) { return s.store.GpsImages.DeleteWhere(ctx, owner) }},
		{"sub_steps", func() (int64, error) { return s.store.SubSteps.DeleteWhere(ctx, owner) }},
		{"steps", func() (int64, error) { return s.store.Steps.DeleteWhere(ctx, owner) }},
		{"payment_logs", func() (int64, error) { return s.store.Payments.DeleteWhere(ctx, owner) }},
		{"expenses", func() (int64, error) { return s.store.Expenses.DeleteWhere(ctx, owner) }},
		{"step1_data", func() (int64, error) { return s.store.Step1.DeleteWhere(ctx, owner) }},
		{"step2_data", func() (int64, error) { return s.store.Step2.DeleteWhere(ctx, owner) }},
		{"step3_data", func() (int64, error) { return s.store.Step3.DeleteWhere(ctx, owner) }},
		{"step4_data", func() (int64, error) { return s.store.Step4.DeleteWhere(ctx, owner) }},
		{"step5_data", func() (int64, error) { return s.store.Step5.DeleteWhere(ctx, owner) }},
		{"follow_ups", func() (int64, error) { return s.store.FollowUps.DeleteWhere(ctx, owner) }},
	}
	for _, c := range cascade {
		n, err := c.del()
		if err != nil {
			res.Failures++
			logger.WithError(err).WithField("collection", c.name).Error("cascade delete failed")
		}
		if n > 0 {
			res.Removed[c.name] = n
		}
	}

	if err := s.store.Clients.Delete(ctx, clientID); err != nil {
		return res, notFound("client", clientID, err)
	}
	res.Removed["clients"] = 1
	logger.WithFields(logrus.Fields{"failures": res.Failures}).Info("client deleted")
	return res, nil
}
