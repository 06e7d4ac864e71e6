package store

import (
	"context"
	"errors"
	"fmt"
	"solar-workflow-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository stores T in the SQL table named by T's TableName.
type GormRepository[T any] struct {
	db *gorm.DB
}

func NewGormRepository[T any](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db}
}

// NewGormStore wires every repository onto one gorm connection.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:        NewGormRepository[models.User](db),
		Clients:      NewGormRepository[models.Client](db),
		Steps:        NewGormRepository[models.ClientStep](db),
		SubSteps:     NewGormRepository[models.ClientSubStep](db),
		Documents:    NewGormRepository[models.DocumentFile](db),
		GpsImages:    NewGormRepository[models.GpsImage](db),
		Payments:     NewGormRepository[models.PaymentLog](db),
		Expenses:     NewGormRepository[models.Expense](db),
		Step1:        NewGormRepository[models.Step1Data](db),
		Step2:        NewGormRepository[models.Step2Data](db),
		Step3:        NewGormRepository[models.Step3Data](db),
		Step4:        NewGormRepository[models.Step4Data](db),
		Step5:        NewGormRepository[models.Step5Data](db),
		FollowUps:    NewGormRepository[models.FollowUp](db),
		PhoneNumbers: NewGormRepository[models.PhoneNumber](db),
	}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DropAll drops every table, children first.
func DropAll(db *gorm.DB) error {
	all := AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return nil
}

func (r *GormRepository[T]) Create(ctx context.Context, item *T) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	var item T
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *GormRepository[T]) Save(ctx context.Context, item *T) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *GormRepository[T]) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository[T]) Find(ctx context.Context, q Query) ([]T, error) {
	tx := applyFilters(r.db.WithContext(ctx).Model(new(T)), q.Filters)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	var items []T
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepository[T]) Count(ctx context.Context, filters ...Filter) (int64, error) {
	var n int64
	err := applyFilters(r.db.WithContext(ctx).Model(new(T)), filters).Count(&n).Error
	return n, err
}

func (r *GormRepository[T]) UpdateIf(ctx context.Context, id string, cond Filter, updates map[string]any) error {
	result := r.db.WithContext(ctx).Model(new(T)).
		Where("id = ?", id).
		Where(clause.Eq{Column: clause.Column{Name: cond.Field}, Value: cond.Value}).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConditionFailed
}

func (r *GormRepository[T]) CreateMany(ctx context.Context, items []*T) []error {
	errs := make([]error, len(items))
	for i, item := range items {
		errs[i] = r.db.WithContext(ctx).Create(item).Error
	}
	return errs
}

func (r *GormRepository[T]) DeleteWhere(ctx context.Context, filters ...Filter) (int64, error) {
	tx := r.db.WithContext(ctx)
	if len(filters) == 0 {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	result := applyFilters(tx, filters).Delete(new(T))
	return result.RowsAffected, result.Error
}

func applyFilters(tx *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: f.Field}, Value: f.Value})
	}
	return tx
}
