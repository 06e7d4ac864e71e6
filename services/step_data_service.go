package services

import (
	"context"
	"fmt"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"solar-workflow-api/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type StepDataService struct {
	store    *store.Store
	log      logrus.FieldLogger
	validate *validator.Validate
	now      func() time.Time
}

func NewStepDataService(st *store.Store, log logrus.FieldLogger) *StepDataService {
	return &StepDataService{store: st, log: log, validate: utils.NewValidator(), now: time.Now}
}

// NewStepPayload returns an empty payload of the type stored for step.
func NewStepPayload(step int) (models.StepPayload, error) {
	switch step {
	case 1:
		return &models.Step1Data{}, nil
	case 2:
		return &models.Step2Data{}, nil
	case 3:
		return &models.Step3Data{}, nil
	case 4:
		return &models.Step4Data{}, nil
	case 5:
		return &models.Step5Data{}, nil
	}
	return nil, invalid("step", "must be between 1 and %d", LastStep())
}

type payloadPtr[T any] interface {
	*T
	models.StepPayload
}

func findStepData[T any, PT payloadPtr[T]](ctx context.Context, repo store.Repository[T], clientID string) (PT, error) {
	items, err := repo.Find(ctx, store.Query{Filters: []store.Filter{store.Eq("client_id", clientID)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return PT(&items[0]), nil
}

func saveStepData[T any, PT payloadPtr[T]](ctx context.Context, repo store.Repository[T], clientID string, payload PT, updatedBy string, now time.Time) (PT, error) {
	existing, err := findStepData[T, PT](ctx, repo, clientID)
	if err != nil {
		return nil, err
	}
	base := payload.Base()
	if existing != nil {
		base.ID = existing.Base().ID
		base.CreatedAt = existing.Base().CreatedAt
	} else {
		base.ID = uuid.NewString()
		base.CreatedAt = now
	}
	base.ClientID = clientID
	base.UpdatedBy = updatedBy
	base.UpdatedAt = now
	if err := repo.Save(ctx, (*T)(payload)); err != nil {
		return nil, err
	}
	return payload, nil
}

// GetStepData returns the stored payload of a step, or an empty payload for
// the client when nothing has been saved yet.
func (s *StepDataService) GetStepData(ctx context.Context, clientID string, step int) (models.StepPayload, error) {
	empty, err := NewStepPayload(step)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	var found models.StepPayload
	switch step {
	case 1:
		p, ferr := findStepData[models.Step1Data](ctx, s.store.Step1, clientID)
		found, err = nilPayload(p), ferr
	case 2:
		p, ferr := findStepData[models.Step2Data](ctx, s.store.Step2, clientID)
		found, err = nilPayload(p), ferr
	case 3:
		p, ferr := findStepData[models.Step3Data](ctx, s.store.Step3, clientID)
		found, err = nilPayload(p), ferr
	case 4:
		p, ferr := findStepData[models.Step4Data](ctx, s.store.Step4, clientID)
		found, err = nilPayload(p), ferr
	case 5:
		p, ferr := findStepData[models.Step5Data](ctx, s.store.Step5, clientID)
		found, err = nilPayload(p), ferr
	}
	if err != nil {
		return nil, fmt.Errorf("load step %d data: %w", step, err)
	}
	if found == nil {
		empty.Base().ClientID = clientID
		return empty, nil
	}
	return found, nil
}

// nilPayload keeps a typed nil pointer from turning into a non-nil interface.
func nilPayload[PT interface {
	comparable
	models.StepPayload
}](p PT) models.StepPayload {
	var zero PT
	if p == zero {
		return nil
	}
	return p
}

// SaveStepData validates and upserts the payload of a step for a client.
func (s *StepDataService) SaveStepData(ctx context.Context, clientID string, payload models.StepPayload, updatedBy string) (models.StepPayload, error) {
	if err := s.check(payload); err != nil {
		return nil, err
	}
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	now := s.now()
	var (
		saved models.StepPayload
		err   error
	)
	switch p := payload.(type) {
	case *models.Step1Data:
		saved, err = saveStepData(ctx, s.store.Step1, clientID, p, updatedBy, now)
	case *models.Step2Data:
		saved, err = saveStepData(ctx, s.store.Step2, clientID, p, updatedBy, now)
	case *models.Step3Data:
		saved, err = saveStepData(ctx, s.store.Step3, clientID, p, updatedBy, now)
	case *models.Step4Data:
		saved, err = saveStepData(ctx, s.store.Step4, clientID, p, updatedBy, now)
	case *models.Step5Data:
		saved, err = saveStepData(ctx, s.store.Step5, clientID, p, updatedBy, now)
	default:
		return nil, invalid("step", "unsupported payload %T", payload)
	}
	if err != nil {
		return nil, fmt.Errorf("save step %d data: %w", payload.StepNumber(), err)
	}
	s.log.WithFields(logrus.Fields{"client_id": clientID, "step": payload.StepNumber()}).Info("step data saved")
	return saved, nil
}

func (s *StepDataService) check(payload models.StepPayload) error {
	if err := s.validate.Struct(payload); err != nil {
		for field, msg := range utils.ValidationMessages(err) {
			return invalid(field, "%s", msg)
		}
		return err
	}
	switch p := payload.(type) {
	case *models.Step1Data:
		if p.PriceFinalized.IsNegative() {
			return invalid("price_finalized", "must not be negative")
		}
		if p.LoanAmount.IsNegative() {
			return invalid("loan_amount", "must not be negative")
		}
	case *models.Step5Data:
		if p.SubsidyAmount.IsNegative() {
			return invalid("subsidy_amount", "must not be negative")
		}
	}
	return nil
}
