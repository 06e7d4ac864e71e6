// Package store persists the workflow records behind one generic repository
// interface with a SQL (gorm) backend and a Firestore backend.
package store

import (
	"context"
	"errors"
	"solar-workflow-api/models"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed is returned by UpdateIf when the record exists but
	// does not match the condition.
	ErrConditionFailed = errors.New("update condition not met")
)

// Filter is an equality match on one stored field (snake_case name).
type Filter struct {
	Field string
	Value any
}

// Eq builds a Filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects records by equality filters with optional ordering and paging.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Where starts a Query from filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Repository is the per-record-type persistence contract. Records are keyed
// by their string id; every method is a single round trip except CreateMany
// and DeleteWhere, which may touch several records without a transaction.
type Repository[T any] interface {
	Create(ctx context.Context, item *T) error
	Get(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, item *T) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, filters ...Filter) (int64, error)
	// UpdateIf applies updates only when the stored field cond.Field equals
	// cond.Value.
	UpdateIf(ctx context.Context, id string, cond Filter, updates map[string]any) error
	// CreateMany writes every item independently and returns one error slot
	// per item (nil on success).
	CreateMany(ctx context.Context, items []*T) []error
	// DeleteWhere removes every record matching all filters and reports how
	// many were removed.
	DeleteWhere(ctx context.Context, filters ...Filter) (int64, error)
}

// Store groups the repositories of every record type.
type Store struct {
	Users        Repository[models.User]
	Clients      Repository[models.Client]
	Steps        Repository[models.ClientStep]
	SubSteps     Repository[models.ClientSubStep]
	Documents    Repository[models.DocumentFile]
	GpsImages    Repository[models.GpsImage]
	Payments     Repository[models.PaymentLog]
	Expenses     Repository[models.Expense]
	Step1        Repository[models.Step1Data]
	Step2        Repository[models.Step2Data]
	Step3        Repository[models.Step3Data]
	Step4        Repository[models.Step4Data]
	Step5        Repository[models.Step5Data]
	FollowUps    Repository[models.FollowUp]
	PhoneNumbers Repository[models.PhoneNumber]
}

// AllModels lists one zero value per stored record type, parents first.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Client{},
		&models.ClientStep{},
		&models.ClientSubStep{},
		&models.DocumentFile{},
		&models.GpsImage{},
		&models.PaymentLog{},
		&models.Expense{},
		&models.Step1Data{},
		&models.Step2Data{},
		&models.Step3Data{},
		&models.Step4Data{},
		&models.Step5Data{},
		&models.FollowUp{},
		&models.PhoneNumber{},
	}
}

type tabler interface {
	TableName() string
}

func tableNameOf[T any]() string {
	var zero T
	if t, ok := any(zero).(tabler); ok {
		return t.TableName()
	}
	if t, ok := any(&zero).(tabler); ok {
		return t.TableName()
	}
	return ""
}
