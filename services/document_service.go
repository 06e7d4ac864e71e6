package services

import (
	"context"
	"fmt"
	"io"
	"solar-workflow-api/models"
	"solar-workflow-api/storage"
	"solar-workflow-api/store"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StepDocuments is the category overview of one step.
type StepDocuments struct {
	ClientID             string                `json:"client_id"`
	Step                 int                   `json:"step"`
	Categories           []CategoryState       `json:"categories"`
	CompletionPercentage int                   `json:"completion_percentage"`
	Files                []models.DocumentFile `json:"files"`
}

// SignedURL is a time-limited download link.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DocumentService struct {
	store    *store.Store
	objects  storage.ObjectStorage
	catalog  *Catalog
	log      logrus.FieldLogger
	maxBytes int64
	urlTTL   time.Duration
	now      func() time.Time
}

func NewDocumentService(st *store.Store, objects storage.ObjectStorage, catalog *Catalog, log logrus.FieldLogger, maxBytes int64, urlTTL time.Duration) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &DocumentService{store: st, objects: objects, catalog: catalog, log: log, maxBytes: maxBytes, urlTTL: urlTTL, now: time.Now}
}

// ListCategoryState reports every category of a step with its file count.
func (s *DocumentService) ListCategoryState(ctx context.Context, clientID string, step int) (*StepDocuments, error) {
	cats, err := s.catalog.Categories(step)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	files, err := s.store.Documents.Find(ctx, store.Query{
		Filters: []store.Filter{store.Eq("client_id", clientID), store.Eq("step", step)},
		OrderBy: "uploaded_at",
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	counts := make(map[string]int, len(cats))
	for _, f := range files {
		counts[f.Category]++
	}
	if step == DispatchStep {
		images, err := s.store.GpsImages.Find(ctx, store.Where(store.Eq("client_id", clientID)))
		if err != nil {
			return nil, fmt.Errorf("list gps images: %w", err)
		}
		for _, img := range images {
			counts[img.Category]++
		}
	}
	states, pct := CategoryStates(cats, counts)
	if files == nil {
		files = []models.DocumentFile{}
	}
	return &StepDocuments{ClientID: clientID, Step: step, Categories: states, CompletionPercentage: pct, Files: files}, nil
}

// UploadToCategory stores files in a category. The category cap is checked
// for the whole request before anything is written.
func (s *DocumentService) UploadToCategory(ctx context.Context, clientID string, step int, category string, files []FileUpload, uploadedBy string) ([]models.DocumentFile, error) {
	cat, err := s.catalog.Lookup(step, category)
	if err != nil {
		return nil, err
	}
	if cat.GPS {
		return nil, invalid("category", "%s takes GPS images, upload through the gps-images endpoint", cat.Name)
	}
	if len(files) == 0 {
		return nil, invalid("files", "at least one file is required")
	}
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}

	pages := make([]int, len(files))
	for i, f := range files {
		if err := checkUpload(f, s.maxBytes, documentExtensions); err != nil {
			return nil, err
		}
		if f.ext() == ".pdf" {
			n, err := pdfPageCount(f.Content)
			if err != nil {
				return nil, invalid("file", "%s is not a readable PDF", f.Name)
			}
			pages[i] = n
		}
	}

	existing, err := s.store.Documents.Count(ctx,
		store.Eq("client_id", clientID), store.Eq("step", step), store.Eq("category", cat.Name))
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if int(existing)+len(files) > cat.MaxFiles {
		return nil, &CapacityError{Category: cat.Name, Existing: int(existing), Incoming: len(files), Max: cat.MaxFiles}
	}

	saved := make([]models.DocumentFile, 0, len(files))
	for i, f := range files {
		doc := models.DocumentFile{
			ID:           uuid.NewString(),
			ClientID:     clientID,
			Step:         step,
			Category:     cat.Name,
			OriginalName: f.Name,
			StorageKey:   storage.ObjectKey(clientID, step, cat.Name, f.Name),
			Size:         f.Size,
			MimeType:     f.contentType(),
			PageCount:    pages[i],
			UploadedBy:   uploadedBy,
			UploadedAt:   s.now(),
		}
		if err := s.putObject(ctx, doc.StorageKey, f.Content, doc.MimeType); err != nil {
			return saved, err
		}
		if err := s.store.Documents.Create(ctx, &doc); err != nil {
			s.discardObject(ctx, doc.StorageKey)
			return saved, fmt.Errorf("record document: %w", err)
		}
		s.log.WithFields(logrus.Fields{
			"client_id": clientID,
			"step":      step,
			"category":  cat.Name,
			"key":       doc.StorageKey,
		}).Info("document uploaded")
		saved = append(saved, doc)
	}
	return saved, nil
}

func (s *DocumentService) putObject(ctx context.Context, key string, r io.ReadSeeker, contentType string) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	if err := s.objects.Put(ctx, key, r, contentType); err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *DocumentService) discardObject(ctx context.Context, key string) {
	if err := s.objects.Delete(persistentContext(ctx), key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to remove orphaned object")
	}
}

// DeleteDocument removes the stored object and then the record.
func (s *DocumentService) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := s.store.Documents.Get(ctx, documentID)
	if err != nil {
		return notFound("document", documentID, err)
	}
	if err := s.objects.Delete(ctx, doc.StorageKey); err != nil {
		return &StorageError{Op: "delete", Key: doc.StorageKey, Err: err}
	}
	if err := s.store.Documents.Delete(ctx, documentID); err != nil {
		return notFound("document", documentID, err)
	}
	return nil
}

// DocumentURL returns a fresh signed download URL.
func (s *DocumentService) DocumentURL(ctx context.Context, documentID string) (*SignedURL, error) {
	doc, err := s.store.Documents.Get(ctx, documentID)
	if err != nil {
		return nil, notFound("document", documentID, err)
	}
	return s.sign(ctx, doc.StorageKey)
}

func (s *DocumentService) sign(ctx context.Context, key string) (*SignedURL, error) {
	url, err := s.objects.SignedURL(ctx, key, s.urlTTL)
	if err != nil {
		return nil, &StorageError{Op: "sign", Key: key, Err: err}
	}
	return &SignedURL{URL: url, ExpiresAt: s.now().Add(s.urlTTL)}, nil
}
