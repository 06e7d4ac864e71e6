package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"solar-workflow-api/storage"
	"solar-workflow-api/store"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db      *gorm.DB
	store   *store.Store
	objects *storage.Local
	root    string
	log     *logrus.Logger
	hook    *logtest.Hook
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	root := t.TempDir()
	objects, err := storage.NewLocal(root, "http://localhost:8080/api/v1/files", "test-secret")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	log, hook := logtest.NewNullLogger()
	return &testEnv{db: db, store: store.NewGormStore(db), objects: objects, root: root, log: log, hook: hook}
}

func fixedClock() time.Time { return testNow }

func (e *testEnv) clients() *ClientService {
	s := NewClientService(e.store, e.objects, e.log, DefaultPhoneRegion)
	s.now = fixedClock
	return s
}

func (e *testEnv) steps() *StepService {
	s := NewStepService(e.store, e.log)
	s.now = fixedClock
	return s
}

func (e *testEnv) documents(gpsMax int) *DocumentService {
	s := NewDocumentService(e.store, e.objects, NewCatalog(gpsMax), e.log, 0, time.Minute)
	s.now = fixedClock
	return s
}

func (e *testEnv) finance() *FinanceService {
	s := NewFinanceService(e.store, e.objects, e.log, DefaultPaymentWindow)
	s.now = fixedClock
	return s
}

func (e *testEnv) createClient(t *testing.T, name, mobile string) *ClientDetail {
	t.Helper()
	c, err := e.clients().CreateClient(context.Background(), ClientInput{Name: name, Mobile: mobile, City: "Pune"}, "admin")
	if err != nil {
		t.Fatalf("create client %s: %v", name, err)
	}
	return c
}

func stepByNumber(t *testing.T, c *ClientDetail, n int) StepView {
	t.Helper()
	for _, s := range c.Steps {
		if s.StepNumber == n {
			return s
		}
	}
	t.Fatalf("client %s has no step %d", c.ID, n)
	return StepView{}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func upload(name string, data []byte) FileUpload {
	return FileUpload{Name: name, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func countOf[T any](t *testing.T, repo store.Repository[T], filters ...store.Filter) int64 {
	t.Helper()
	n, err := repo.Count(context.Background(), filters...)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
