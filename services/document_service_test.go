package services

import (
	"context"
	"errors"
	"net/url"
	"path"
	"solar-workflow-api/store"
	"strings"
	"testing"
)

func categoryByName(t *testing.T, states []CategoryState, name string) CategoryState {
	t.Helper()
	for _, st := range states {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("category %q not listed", name)
	return CategoryState{}
}

func TestCategoryStates(t *testing.T) {
	cats := []DocumentCategory{
		{Name: "A", Required: true, MaxFiles: 2},
		{Name: "B", Required: true, MaxFiles: 1},
		{Name: "C", MaxFiles: 3},
	}
	cases := []struct {
		counts map[string]int
		want   int
	}{
		{map[string]int{}, 33},
		{map[string]int{"A": 1}, 66},
		{map[string]int{"A": 1, "B": 1}, 100},
		{map[string]int{"A": 2, "B": 1, "C": 3}, 100},
		{map[string]int{"C": 1}, 33},
	}
	for _, tc := range cases {
		states, pct := CategoryStates(cats, tc.counts)
		if pct != tc.want {
			t.Fatalf("counts %v: expected %d%% got %d%%", tc.counts, tc.want, pct)
		}
		if pct < 0 || pct > 100 {
			t.Fatalf("percentage out of bounds: %d", pct)
		}
		allRequired := true
		for _, st := range states {
			if st.Required && st.Count == 0 {
				allRequired = false
			}
		}
		if (pct == 100) != allRequired {
			t.Fatalf("counts %v: 100%% must hold exactly when every required category has a file", tc.counts)
		}
	}
	if _, pct := CategoryStates(nil, nil); pct != 100 {
		t.Fatalf("expected 100%% without categories got %d", pct)
	}
}

func TestCategoryStateOf(t *testing.T) {
	if CategoryStateOf(true, 0) != CategoryMissing {
		t.Fatalf("required and empty should be missing")
	}
	if CategoryStateOf(true, 2) != CategoryComplete || CategoryStateOf(false, 1) != CategoryComplete {
		t.Fatalf("any file should be complete")
	}
	if CategoryStateOf(false, 0) != CategoryOptional {
		t.Fatalf("optional and empty should be optional")
	}
}

func TestCatalogLookup(t *testing.T) {
	catalog := NewCatalog(7)
	cat, err := catalog.Lookup(1, "  pan card ")
	if err != nil || cat.Name != "PAN Card" {
		t.Fatalf("expected case-insensitive match got %+v %v", cat, err)
	}
	var verr *ValidationError
	if _, err := catalog.Lookup(1, "Horoscope"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown category got %v", err)
	}
	if _, err := catalog.Categories(9); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown step got %v", err)
	}
	for _, c := range catalog.GpsCategories() {
		if c.MaxFiles != 7 {
			t.Fatalf("gps category %s should take the configured cap, got %d", c.Name, c.MaxFiles)
		}
	}
}

func TestUploadMovesCategoryFromMissingToComplete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	docs := env.documents(5)

	before, err := docs.ListCategoryState(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("list state: %v", err)
	}
	if st := categoryByName(t, before.Categories, "PAN Card"); st.State != CategoryMissing {
		t.Fatalf("expected PAN Card missing got %s", st.State)
	}

	saved, err := docs.UploadToCategory(ctx, c.ID, 1, "pan card", []FileUpload{upload("PAN.PNG", pngBytes(t, 8, 8))}, "admin")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(saved) != 1 || saved[0].Category != "PAN Card" || saved[0].MimeType != "image/png" {
		t.Fatalf("unexpected saved documents %+v", saved)
	}
	if !strings.HasSuffix(saved[0].StorageKey, ".png") || !strings.HasPrefix(saved[0].StorageKey, "clients/"+c.ID+"/step-1/") {
		t.Fatalf("unexpected storage key %q", saved[0].StorageKey)
	}

	after, err := docs.ListCategoryState(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("list state: %v", err)
	}
	st := categoryByName(t, after.Categories, "PAN Card")
	if st.State != CategoryComplete || st.Count != 1 {
		t.Fatalf("expected PAN Card complete with 1 file got %s/%d", st.State, st.Count)
	}
	if after.CompletionPercentage <= before.CompletionPercentage {
		t.Fatalf("expected completion to grow: %d -> %d", before.CompletionPercentage, after.CompletionPercentage)
	}
	if len(after.Files) != 1 {
		t.Fatalf("expected 1 listed file got %d", len(after.Files))
	}
}

func TestUploadOverCapacityWritesNothing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	docs := env.documents(5)
	img := pngBytes(t, 4, 4)

	_, err := docs.UploadToCategory(ctx, c.ID, 1, "PAN Card", []FileUpload{upload("a.png", img), upload("b.png", img)}, "admin")
	var capErr *CapacityError
	if !errors.As(err, &capErr) || !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity error got %v", err)
	}
	if capErr.Max != 1 || capErr.Incoming != 2 || capErr.Existing != 0 {
		t.Fatalf("unexpected capacity details %+v", capErr)
	}
	pan := []store.Filter{store.Eq("client_id", c.ID), store.Eq("category", "PAN Card")}
	if n := countOf(t, env.store.Documents, pan...); n != 0 {
		t.Fatalf("expected no documents after rejection got %d", n)
	}

	if _, err := docs.UploadToCategory(ctx, c.ID, 1, "PAN Card", []FileUpload{upload("a.png", img)}, "admin"); err != nil {
		t.Fatalf("upload within cap: %v", err)
	}
	if _, err := docs.UploadToCategory(ctx, c.ID, 1, "PAN Card", []FileUpload{upload("b.png", img)}, "admin"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity error on second file got %v", err)
	}
	if n := countOf(t, env.store.Documents, pan...); n != 1 {
		t.Fatalf("expected count to stay 1 got %d", n)
	}
}

func TestUploadValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	docs := env.documents(5)
	img := pngBytes(t, 4, 4)

	cases := []struct {
		name     string
		step     int
		category string
		files    []FileUpload
	}{
		{"unknown step", 8, "PAN Card", []FileUpload{upload("a.png", img)}},
		{"unknown category", 1, "Horoscope", []FileUpload{upload("a.png", img)}},
		{"gps category", 3, "Installation Photo", []FileUpload{upload("a.png", img)}},
		{"no files", 1, "PAN Card", nil},
		{"bad extension", 1, "PAN Card", []FileUpload{upload("run.exe", img)}},
		{"too large", 1, "PAN Card", []FileUpload{{Name: "a.png", Size: DefaultMaxUploadBytes + 1, Content: strings.NewReader("x")}}},
		{"unreadable pdf", 1, "PAN Card", []FileUpload{upload("pan.pdf", []byte("not a pdf at all"))}},
	}
	for _, tc := range cases {
		_, err := docs.UploadToCategory(ctx, c.ID, tc.step, tc.category, tc.files, "admin")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error got %v", tc.name, err)
		}
	}
	if _, err := docs.UploadToCategory(ctx, "missing", 1, "PAN Card", []FileUpload{upload("a.png", img)}, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown client got %v", err)
	}
	if n := countOf(t, env.store.Documents); n != 0 {
		t.Fatalf("expected no documents got %d", n)
	}
}

func TestDocumentURLAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	docs := env.documents(5)

	saved, err := docs.UploadToCategory(ctx, c.ID, 2, "Roof Layout", []FileUpload{upload("roof.png", pngBytes(t, 4, 4))}, "admin")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	signed, err := docs.DocumentURL(ctx, saved[0].ID)
	if err != nil {
		t.Fatalf("document url: %v", err)
	}
	u, err := url.Parse(signed.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	key := strings.TrimPrefix(u.Path, "/api/v1/files/")
	if key != saved[0].StorageKey || path.Ext(key) != ".png" {
		t.Fatalf("unexpected signed url path %q", u.Path)
	}
	f, err := env.objects.Open(key, u.Query().Get("expires"), u.Query().Get("signature"))
	if err != nil {
		t.Fatalf("open signed object: %v", err)
	}
	f.Close()

	if err := docs.DeleteDocument(ctx, saved[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := docs.DeleteDocument(ctx, saved[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete got %v", err)
	}
	if _, err := docs.DocumentURL(ctx, saved[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for deleted document got %v", err)
	}
}
