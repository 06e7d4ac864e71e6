package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"solar-workflow-api/models"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreRepository stores T as documents of the collection named by T's
// TableName. Records go through their JSON form so field names match the SQL
// columns; fields hidden from JSON but carrying a gorm column (password
// hashes) are copied under that column. Fields named *_at, *_date and
// timestamp are stored as timestamps.
type FirestoreRepository[T any] struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreRepository[T any](client *firestore.Client) *FirestoreRepository[T] {
	return &FirestoreRepository[T]{client: client, collection: tableNameOf[T]()}
}

// NewFirestoreStore wires every repository onto one Firestore client.
func NewFirestoreStore(client *firestore.Client) *Store {
	return &Store{
		Users:        NewFirestoreRepository[models.User](client),
		Clients:      NewFirestoreRepository[models.Client](client),
		Steps:        NewFirestoreRepository[models.ClientStep](client),
		SubSteps:     NewFirestoreRepository[models.ClientSubStep](client),
		Documents:    NewFirestoreRepository[models.DocumentFile](client),
		GpsImages:    NewFirestoreRepository[models.GpsImage](client),
		Payments:     NewFirestoreRepository[models.PaymentLog](client),
		Expenses:     NewFirestoreRepository[models.Expense](client),
		Step1:        NewFirestoreRepository[models.Step1Data](client),
		Step2:        NewFirestoreRepository[models.Step2Data](client),
		Step3:        NewFirestoreRepository[models.Step3Data](client),
		Step4:        NewFirestoreRepository[models.Step4Data](client),
		Step5:        NewFirestoreRepository[models.Step5Data](client),
		FollowUps:    NewFirestoreRepository[models.FollowUp](client),
		PhoneNumbers: NewFirestoreRepository[models.PhoneNumber](client),
	}
}

// NewFirestoreClient creates a Firestore client for the given project.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

func (r *FirestoreRepository[T]) coll() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *FirestoreRepository[T]) Create(ctx context.Context, item *T) error {
	id, data, err := encodeDocument(item)
	if err != nil {
		return err
	}
	_, err = r.coll().Doc(id).Create(ctx, data)
	return err
}

func (r *FirestoreRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	snap, err := r.coll().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	return decodeDocument[T](snap.Data())
}

func (r *FirestoreRepository[T]) Save(ctx context.Context, item *T) error {
	id, data, err := encodeDocument(item)
	if err != nil {
		return err
	}
	_, err = r.coll().Doc(id).Set(ctx, data)
	return err
}

func (r *FirestoreRepository[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	_, err := r.coll().Doc(id).Delete(ctx, firestore.Exists)
	return mapFirestoreError(err)
}

func (r *FirestoreRepository[T]) query(filters []Filter) firestore.Query {
	q := r.coll().Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}
	return q
}

func (r *FirestoreRepository[T]) Find(ctx context.Context, q Query) ([]T, error) {
	fq := r.query(q.Filters)
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Offset > 0 {
		fq = fq.Offset(q.Offset)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.collection, err)
	}
	items := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		item, err := decodeDocument[T](snap.Data())
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (r *FirestoreRepository[T]) Count(ctx context.Context, filters ...Filter) (int64, error) {
	fq := r.query(filters)
	res, err := fq.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.collection, err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected aggregation result", r.collection)
	}
	return v.GetIntegerValue(), nil
}

func (r *FirestoreRepository[T]) UpdateIf(ctx context.Context, id string, cond Filter, updates map[string]any) error {
	doc := r.coll().Doc(id)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			return mapFirestoreError(err)
		}
		current, err := snap.DataAt(cond.Field)
		if err != nil {
			current = nil
		}
		if !sameValue(current, cond.Value) {
			return ErrConditionFailed
		}
		changes := make([]firestore.Update, 0, len(updates))
		for field, value := range updates {
			changes = append(changes, firestore.Update{Path: field, Value: storedValue(field, value)})
		}
		return tx.Update(doc, changes)
	})
}

func (r *FirestoreRepository[T]) CreateMany(ctx context.Context, items []*T) []error {
	errs := make([]error, len(items))
	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, len(items))
	for i, item := range items {
		id, data, err := encodeDocument(item)
		if err != nil {
			errs[i] = err
			continue
		}
		jobs[i], errs[i] = bw.Create(r.coll().Doc(id), data)
	}
	bw.End()
	for i, job := range jobs {
		if job == nil {
			continue
		}
		if _, err := job.Results(); err != nil {
			errs[i] = err
		}
	}
	return errs
}

func (r *FirestoreRepository[T]) DeleteWhere(ctx context.Context, filters ...Filter) (int64, error) {
	snaps, err := r.query(filters).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", r.collection, err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}
	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	var firstErr error
	for _, snap := range snaps {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()
	var deleted int64
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}

func mapFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func encodeDocument(item any) (string, map[string]any, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return "", nil, fmt.Errorf("encode document: %w", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", nil, fmt.Errorf("encode document: %w", err)
	}
	id, _ := data["id"].(string)
	if id == "" {
		return "", nil, errors.New("encode document: missing id")
	}
	rv := reflect.Indirect(reflect.ValueOf(item))
	for _, hf := range hiddenColumns(rv.Type()) {
		data[hf.column] = rv.Field(hf.index).Interface()
	}
	for field, value := range data {
		data[field] = storedValue(field, value)
	}
	return id, data, nil
}

func decodeDocument[T any](data map[string]any) (*T, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	rv := reflect.ValueOf(&item).Elem()
	for _, hf := range hiddenColumns(rv.Type()) {
		v, ok := data[hf.column]
		if !ok || v == nil {
			continue
		}
		val := reflect.ValueOf(v)
		field := rv.Field(hf.index)
		if !val.Type().ConvertibleTo(field.Type()) {
			return nil, fmt.Errorf("decode document: field %s has type %T", hf.column, v)
		}
		field.Set(val.Convert(field.Type()))
	}
	return &item, nil
}

type hiddenColumn struct {
	index  int
	column string
}

// hiddenColumns lists the fields tagged json:"-" that still map to a gorm
// column.
func hiddenColumns(t reflect.Type) []hiddenColumn {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []hiddenColumn
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("json") != "-" || !f.IsExported() {
			continue
		}
		for _, part := range strings.Split(f.Tag.Get("gorm"), ";") {
			if col, ok := strings.CutPrefix(part, "column:"); ok && col != "" {
				out = append(out, hiddenColumn{index: i, column: col})
			}
		}
	}
	return out
}

func isTimeField(field string) bool {
	return field == "timestamp" || strings.HasSuffix(field, "_at") || strings.HasSuffix(field, "_date")
}

// storedValue converts a value into the form Firestore keeps for field.
func storedValue(field string, value any) any {
	switch v := value.(type) {
	case nil, bool, int, int64, float64, time.Time:
		return v
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	case string:
		if isTimeField(field) {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t
			}
		}
		return v
	case map[string]any, []any:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && (b == nil || b == "")
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
