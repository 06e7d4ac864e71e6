package main

import (
	"context"
	"path/filepath"
	"solar-workflow-api/config"
	"strings"
	"testing"
)

// run executes solarctl against a SQLite file in dir.
func run(t *testing.T, dir string, args ...string) error {
	t.Helper()
	v := config.NewViper()
	v.Set("STORE_BACKEND", "sqlite")
	v.Set("SQLITE_PATH", filepath.Join(dir, "solar.db"))
	v.Set("STORAGE_BACKEND", "local")
	v.Set("STORAGE_DIR", filepath.Join(dir, "uploads"))
	v.Set("LOG_FILE", "")
	v.Set("LOG_LEVEL", "error")
	v.Set("ENVIRONMENT", "production")
	v.Set("JWT_SECRET", "cli-test-secret")
	v.Set("REDIS_ADDRESS", "")

	a := &app{v: v}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err != nil {
		a.close()
	}
	return err
}

func TestCreateTablesSeedAndFix(t *testing.T) {
	dir := t.TempDir()
	if err := run(t, dir, "create-tables"); err != nil {
		t.Fatalf("create-tables: %v", err)
	}
	seedArgs := []string{"seed", "--admin-email", "admin@example.com", "--admin-password", "password123", "--demo-clients", "2"}
	if err := run(t, dir, seedArgs...); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// A second run cleans up first and reuses the admin.
	if err := run(t, dir, seedArgs...); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if err := run(t, dir, "fix-legacy"); err != nil {
		t.Fatalf("fix-legacy: %v", err)
	}
	if err := run(t, dir, "create-tables", "--rollback"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}

func TestSeedRejectsConflictingFlags(t *testing.T) {
	dir := t.TempDir()
	if err := run(t, dir, "create-tables"); err != nil {
		t.Fatalf("create-tables: %v", err)
	}
	err := run(t, dir, "seed", "--cleanup-only", "--skip-cleanup")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected flag conflict error got %v", err)
	}
}

func TestFixAssignmentsNeedsKnownUser(t *testing.T) {
	dir := t.TempDir()
	if err := run(t, dir, "create-tables"); err != nil {
		t.Fatalf("create-tables: %v", err)
	}
	if err := run(t, dir, "fix-assignments", "--dry-run"); err == nil {
		t.Fatalf("expected error without a default user")
	}
	if err := run(t, dir, "fix-assignments", "--default-user", "nobody"); err == nil {
		t.Fatalf("expected error for an unknown user")
	}
}

func TestImportPhonesRequiresFile(t *testing.T) {
	if err := run(t, t.TempDir(), "import-phones"); err == nil {
		t.Fatalf("expected missing --file error")
	}
}
