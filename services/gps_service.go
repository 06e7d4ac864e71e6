package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"solar-workflow-api/models"
	"solar-workflow-api/storage"
	"solar-workflow-api/store"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// ThumbnailWidth is the width of generated GPS image thumbnails.
const ThumbnailWidth = 320

// GpsHint carries the coordinates the browser supplied alongside the photo.
// They are used when the image has no EXIF GPS block.
type GpsHint struct {
	Latitude   *float64   `form:"latitude" json:"latitude"`
	Longitude  *float64   `form:"longitude" json:"longitude"`
	Accuracy   *float64   `form:"accuracy" json:"accuracy"`
	Address    string     `form:"address" json:"address"`
	CapturedAt *time.Time `form:"captured_at" time_format:"2006-01-02T15:04:05Z07:00" json:"captured_at"`
}

// GpsImageURLs are signed links to an image and its thumbnail.
type GpsImageURLs struct {
	Image     SignedURL  `json:"image"`
	Thumbnail *SignedURL `json:"thumbnail,omitempty"`
}

type GpsImageService struct {
	docs    *DocumentService
	store   *store.Store
	objects storage.ObjectStorage
	catalog *Catalog
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewGpsImageService(docs *DocumentService) *GpsImageService {
	return &GpsImageService{
		docs:    docs,
		store:   docs.store,
		objects: docs.objects,
		catalog: docs.catalog,
		log:     docs.log,
		now:     time.Now,
	}
}

// ValidCoordinates reports whether a coordinate pair is usable: in range and
// not the (0,0) placeholder some cameras write.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return !(lat == 0 && lon == 0)
}

// Categories lists the GPS categories with their current counts.
func (s *GpsImageService) Categories(ctx context.Context, clientID string) ([]CategoryState, error) {
	images, err := s.ListGpsImages(ctx, clientID, "")
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, img := range images {
		counts[img.Category]++
	}
	states, _ := CategoryStates(s.catalog.GpsCategories(), counts)
	return states, nil
}

// ListGpsImages returns a client's GPS images, optionally for one category.
func (s *GpsImageService) ListGpsImages(ctx context.Context, clientID, category string) ([]models.GpsImage, error) {
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	filters := []store.Filter{store.Eq("client_id", clientID)}
	if category != "" {
		cat, err := s.gpsCategory(category)
		if err != nil {
			return nil, err
		}
		filters = append(filters, store.Eq("category", cat.Name))
	}
	images, err := s.store.GpsImages.Find(ctx, store.Query{Filters: filters, OrderBy: "uploaded_at"})
	if err != nil {
		return nil, fmt.Errorf("list gps images: %w", err)
	}
	if images == nil {
		images = []models.GpsImage{}
	}
	return images, nil
}

func (s *GpsImageService) gpsCategory(name string) (DocumentCategory, error) {
	cat, err := s.catalog.Lookup(DispatchStep, name)
	if err != nil {
		return DocumentCategory{}, err
	}
	if !cat.GPS {
		return DocumentCategory{}, invalid("category", "%s is not a GPS photo category", cat.Name)
	}
	return cat, nil
}

// UploadGpsImage stores one photo, its thumbnail and its coordinates.
func (s *GpsImageService) UploadGpsImage(ctx context.Context, clientID, category string, f FileUpload, hint GpsHint, uploadedBy string) (*models.GpsImage, error) {
	cat, err := s.gpsCategory(category)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Clients.Get(ctx, clientID); err != nil {
		return nil, notFound("client", clientID, err)
	}
	if err := checkUpload(f, s.docs.maxBytes, imageExtensions); err != nil {
		return nil, err
	}
	existing, err := s.store.GpsImages.Count(ctx, store.Eq("client_id", clientID), store.Eq("category", cat.Name))
	if err != nil {
		return nil, fmt.Errorf("count gps images: %w", err)
	}
	if int(existing)+1 > cat.MaxFiles {
		return nil, &CapacityError{Category: cat.Name, Existing: int(existing), Incoming: 1, Max: cat.MaxFiles}
	}

	data, err := readAllFrom(f.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	thumb, err := makeThumbnail(data)
	if err != nil {
		return nil, invalid("file", "%s is not a readable image", f.Name)
	}

	img := &models.GpsImage{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		Step:         DispatchStep,
		Category:     cat.Name,
		OriginalName: f.Name,
		Size:         int64(len(data)),
		MimeType:     f.contentType(),
		Address:      hint.Address,
		Accuracy:     hint.Accuracy,
		UploadedBy:   uploadedBy,
		UploadedAt:   s.now(),
	}
	applyCoordinates(img, data, hint)
	img.StorageKey = storage.ObjectKey(clientID, DispatchStep, cat.Name, f.Name)
	img.ThumbnailKey = storage.ThumbnailKey(img.StorageKey)

	if err := s.objects.Put(ctx, img.StorageKey, bytes.NewReader(data), img.MimeType); err != nil {
		return nil, &StorageError{Op: "put", Key: img.StorageKey, Err: err}
	}
	if err := s.objects.Put(ctx, img.ThumbnailKey, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		s.docs.discardObject(ctx, img.StorageKey)
		return nil, &StorageError{Op: "put", Key: img.ThumbnailKey, Err: err}
	}
	if err := s.store.GpsImages.Create(ctx, img); err != nil {
		s.docs.discardObject(ctx, img.StorageKey)
		s.docs.discardObject(ctx, img.ThumbnailKey)
		return nil, fmt.Errorf("record gps image: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"client_id":     clientID,
		"category":      cat.Name,
		"has_valid_gps": img.HasValidGPS,
	}).Info("gps image uploaded")
	return img, nil
}

// applyCoordinates prefers EXIF GPS data and falls back to the hint.
func applyCoordinates(img *models.GpsImage, data []byte, hint GpsHint) {
	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		if lat, lon, err := x.LatLong(); err == nil && ValidCoordinates(lat, lon) {
			img.Latitude, img.Longitude = &lat, &lon
			img.HasValidGPS = true
		}
		if taken, err := x.DateTime(); err == nil {
			img.CapturedAt = &taken
		}
	}
	// out-of-range or (0,0) hints are dropped rather than stored
	if !img.HasValidGPS && hint.Latitude != nil && hint.Longitude != nil && ValidCoordinates(*hint.Latitude, *hint.Longitude) {
		img.Latitude, img.Longitude = hint.Latitude, hint.Longitude
		img.HasValidGPS = true
	}
	if img.CapturedAt == nil {
		img.CapturedAt = hint.CapturedAt
	}
}

func makeThumbnail(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(src, ThumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeleteGpsImage removes the image, its thumbnail and the record.
func (s *GpsImageService) DeleteGpsImage(ctx context.Context, imageID string) error {
	img, err := s.store.GpsImages.Get(ctx, imageID)
	if err != nil {
		return notFound("gps image", imageID, err)
	}
	for _, key := range []string{img.StorageKey, img.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			return &StorageError{Op: "delete", Key: key, Err: err}
		}
	}
	if err := s.store.GpsImages.Delete(ctx, imageID); err != nil {
		return notFound("gps image", imageID, err)
	}
	return nil
}

// GpsImageURL returns signed links to the image and its thumbnail.
func (s *GpsImageService) GpsImageURL(ctx context.Context, imageID string) (*GpsImageURLs, error) {
	img, err := s.store.GpsImages.Get(ctx, imageID)
	if err != nil {
		return nil, notFound("gps image", imageID, err)
	}
	full, err := s.docs.sign(ctx, img.StorageKey)
	if err != nil {
		return nil, err
	}
	out := &GpsImageURLs{Image: *full}
	if img.ThumbnailKey != "" {
		thumb, err := s.docs.sign(ctx, img.ThumbnailKey)
		if err != nil {
			return nil, err
		}
		out.Thumbnail = thumb
	}
	return out, nil
}
