package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// PhoneImportBatchSize is the number of numbers written per batch.
const PhoneImportBatchSize = 25

const phoneImportLockKey = "locks:phone-import"

// PhoneImportItem is one number to import.
type PhoneImportItem struct {
	Number string `json:"number" binding:"required"`
	Name   string `json:"name"`
}

// ItemError explains why one input item was not created.
type ItemError struct {
	Index  int    `json:"index"`
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// BatchResult counts the outcome of a bulk import. Every input item is
// counted exactly once in Created, Duplicates, Invalid or Failed.
type BatchResult struct {
	Total      int         `json:"total"`
	Created    int         `json:"created"`
	Duplicates int         `json:"duplicates"`
	Invalid    int         `json:"invalid"`
	Failed     int         `json:"failed"`
	Batches    int         `json:"batches"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// Err returns ErrBatchPartialFailure when any write failed.
func (r *BatchResult) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d items failed: %w", r.Failed, r.Total, ErrBatchPartialFailure)
}

type PhoneImportService struct {
	store      *store.Store
	locker     Locker
	log        logrus.FieldLogger
	region     string
	batchDelay time.Duration
	lockTTL    time.Duration
	now        func() time.Time
}

func NewPhoneImportService(st *store.Store, locker Locker, log logrus.FieldLogger, region string, batchDelay time.Duration) *PhoneImportService {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &PhoneImportService{
		store:      st,
		locker:     locker,
		log:        log,
		region:     region,
		batchDelay: batchDelay,
		lockTTL:    10 * time.Minute,
		now:        time.Now,
	}
}

// Import writes the items in sequential batches of PhoneImportBatchSize.
// Cancellation is honoured between batches only; batches already written
// stay and the partial result is returned with the error.
func (s *PhoneImportService) Import(ctx context.Context, items []PhoneImportItem, source, createdBy string) (*BatchResult, error) {
	unlock, err := s.locker.Lock(ctx, phoneImportLockKey, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.store.PhoneNumbers.Find(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("load phone numbers: %w", err)
	}
	seen := make(map[string]bool, len(existing)+len(items))
	for _, p := range existing {
		seen[p.Number] = true
	}

	res := &BatchResult{Total: len(items)}
	logger := s.log.WithFields(logrus.Fields{"total": len(items), "source": source})
	for start := 0; start < len(items); start += PhoneImportBatchSize {
		if start > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.batchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			logger.WithField("batches", res.Batches).Warn("phone import cancelled")
			return res, fmt.Errorf("import cancelled after %d batches: %w", res.Batches, err)
		}
		end := start + PhoneImportBatchSize
		if end > len(items) {
			end = len(items)
		}
		s.importBatch(ctx, items[start:end], start, seen, source, createdBy, res)
		res.Batches++
	}
	logger.WithFields(logrus.Fields{
		"created":    res.Created,
		"duplicates": res.Duplicates,
		"invalid":    res.Invalid,
		"failed":     res.Failed,
		"batches":    res.Batches,
	}).Info("phone import finished")
	return res, res.Err()
}

func (s *PhoneImportService) importBatch(ctx context.Context, batch []PhoneImportItem, offset int, seen map[string]bool, source, createdBy string, res *BatchResult) {
	now := s.now()
	var (
		fresh   []*models.PhoneNumber
		indexes []int
	)
	// numbers are only marked seen once stored, so a failed write does not
	// turn a later repeat into a duplicate
	pending := map[string]bool{}
	for i, item := range batch {
		idx := offset + i
		number, err := NormalizePhone(item.Number, s.region)
		if err != nil {
			res.Invalid++
			res.Errors = append(res.Errors, ItemError{Index: idx, Number: item.Number, Reason: "invalid number"})
			continue
		}
		if seen[number] || pending[number] {
			res.Duplicates++
			continue
		}
		pending[number] = true
		fresh = append(fresh, &models.PhoneNumber{
			ID:        uuid.NewString(),
			Number:    number,
			Raw:       strings.TrimSpace(item.Number),
			Name:      strings.TrimSpace(item.Name),
			Source:    source,
			CreatedBy: createdBy,
			CreatedAt: now,
		})
		indexes = append(indexes, idx)
	}
	if len(fresh) == 0 {
		return
	}
	for i, err := range s.store.PhoneNumbers.CreateMany(ctx, fresh) {
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemError{Index: indexes[i], Number: fresh[i].Number, Reason: err.Error()})
			continue
		}
		seen[fresh[i].Number] = true
		res.Created++
	}
}

// ParsePhoneSheet reads numbers from the first column (and names from the
// second) of the first sheet. A first row without digits is a header.
func ParsePhoneSheet(r io.Reader) ([]PhoneImportItem, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, invalid("file", "not a readable xlsx workbook")
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	var items []PhoneImportItem
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if i == 0 && !strings.ContainsFunc(row[0], unicode.IsDigit) {
			continue
		}
		item := PhoneImportItem{Number: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			item.Name = strings.TrimSpace(row[1])
		}
		items = append(items, item)
	}
	return items, nil
}

// List returns one page of phone numbers, newest first, and the total.
func (s *PhoneImportService) List(ctx context.Context, limit, offset int) ([]models.PhoneNumber, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	total, err := s.store.PhoneNumbers.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count phone numbers: %w", err)
	}
	items, err := s.store.PhoneNumbers.Find(ctx, store.Query{OrderBy: "created_at", Desc: true, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, fmt.Errorf("list phone numbers: %w", err)
	}
	return items, total, nil
}

func (s *PhoneImportService) Delete(ctx context.Context, id string) error {
	if err := s.store.PhoneNumbers.Delete(ctx, id); err != nil {
		return notFound("phone number", id, err)
	}
	return nil
}

// IsPartialFailure reports whether err is a partial batch failure.
func IsPartialFailure(err error) bool {
	return errors.Is(err, ErrBatchPartialFailure)
}
