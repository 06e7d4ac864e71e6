package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCreateClientInstantiatesEveryStepOnce(t *testing.T) {
	env := setupTestEnv(t)
	c := env.createClient(t, "Asha Rao", "98765 43210")

	if c.Mobile != "+919876543210" {
		t.Fatalf("expected E.164 mobile got %q", c.Mobile)
	}
	if c.CurrentStep != 1 || c.Status != models.ClientStatusActive {
		t.Fatalf("expected active client on step 1 got %s/%d", c.Status, c.CurrentStep)
	}
	if len(c.Steps) != len(StepTemplates()) {
		t.Fatalf("expected %d steps got %d", len(StepTemplates()), len(c.Steps))
	}
	seen := map[int]int{}
	for _, s := range c.Steps {
		seen[s.StepNumber]++
	}
	for _, tpl := range StepTemplates() {
		if seen[tpl.Number] != 1 {
			t.Fatalf("step %d present %d times", tpl.Number, seen[tpl.Number])
		}
	}
	if got := countOf(t, env.store.Steps, store.Eq("client_id", c.ID)); got != 5 {
		t.Fatalf("expected 5 stored steps got %d", got)
	}
	if s1 := stepByNumber(t, c, 1); s1.Status != models.StepStatusInProgress {
		t.Fatalf("expected step 1 in-progress got %s", s1.Status)
	}
	dispatch := stepByNumber(t, c, DispatchStep)
	if len(dispatch.SubSteps) != len(dispatchSubSteps) {
		t.Fatalf("expected %d dispatch sub-steps got %d", len(dispatchSubSteps), len(dispatch.SubSteps))
	}
	if dispatch.SubSteps[0].Order != 1 || dispatch.SubSteps[0].Name != dispatchSubSteps[0] {
		t.Fatalf("unexpected first sub-step %+v", dispatch.SubSteps[0].ClientSubStep)
	}
}

func TestCreateClientValidation(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.clients()
	ctx := context.Background()

	cases := []struct {
		name  string
		in    ClientInput
		field string
	}{
		{"missing name", ClientInput{Mobile: "9876543210"}, "name"},
		{"bad mobile", ClientInput{Name: "X", Mobile: "12345"}, "mobile"},
		{"bad email", ClientInput{Name: "X", Mobile: "9876543210", Email: "nope"}, "email"},
		{"bad status", ClientInput{Name: "X", Mobile: "9876543210", Status: "archived"}, "status"},
	}
	for _, tc := range cases {
		_, err := svc.CreateClient(ctx, tc.in, "admin")
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("%s: expected validation error on %s got %v", tc.name, tc.field, err)
		}
	}
	if n := countOf(t, env.store.Clients); n != 0 {
		t.Fatalf("expected no clients stored got %d", n)
	}
}

func TestCompletingStepOneMovesClientToStepTwo(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	steps := env.steps()
	step1 := stepByNumber(t, c, 1)

	completed := models.StepStatusCompleted
	view, err := steps.UpdateStep(ctx, step1.ID, StepUpdate{Status: &completed})
	if err != nil {
		t.Fatalf("update step: %v", err)
	}
	if view.CompletedAt == nil || !view.CompletedAt.Equal(testNow) {
		t.Fatalf("expected completed_at %v got %v", testNow, view.CompletedAt)
	}
	got, err := env.clients().GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.CurrentStep != 2 {
		t.Fatalf("expected current step 2 got %d", got.CurrentStep)
	}

	reopened := models.StepStatusInProgress
	view, err = steps.UpdateStep(ctx, step1.ID, StepUpdate{Status: &reopened})
	if err != nil {
		t.Fatalf("reopen step: %v", err)
	}
	if view.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared got %v", view.CompletedAt)
	}
	got, _ = env.clients().GetClient(ctx, c.ID)
	if got.CurrentStep != 1 {
		t.Fatalf("expected current step back to 1 got %d", got.CurrentStep)
	}
}

func TestCompletingEveryStepKeepsLastStepCurrent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	steps := env.steps()

	completed := models.StepStatusCompleted
	for i := len(c.Steps) - 1; i >= 0; i-- {
		if _, err := steps.UpdateStep(ctx, c.Steps[i].ID, StepUpdate{Status: &completed}); err != nil {
			t.Fatalf("complete step %d: %v", c.Steps[i].StepNumber, err)
		}
	}
	got, _ := env.clients().GetClient(ctx, c.ID)
	if got.CurrentStep != LastStep() {
		t.Fatalf("expected current step %d got %d", LastStep(), got.CurrentStep)
	}
}

func TestUpdateStepRejectsOverdueAndUnknownIDs(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	steps := env.steps()

	overdue := models.StepStatusOverdue
	_, err := steps.UpdateStep(ctx, c.Steps[0].ID, StepUpdate{Status: &overdue})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error writing overdue got %v", err)
	}
	if _, err := steps.UpdateStep(ctx, "missing", StepUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
	if _, err := steps.UpdateSubStep(ctx, "missing", StepUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for sub-step got %v", err)
	}
}

func TestSubStepLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	steps := env.steps()
	step2 := stepByNumber(t, c, 2)

	sub, err := steps.CreateSubStep(ctx, step2.ID, SubStepInput{Name: "Roof measurement"})
	if err != nil {
		t.Fatalf("create sub-step: %v", err)
	}
	if sub.Order != 1 || sub.ClientID != c.ID || sub.Status != models.StepStatusPending {
		t.Fatalf("unexpected sub-step %+v", sub.ClientSubStep)
	}
	next, err := steps.CreateSubStep(ctx, step2.ID, SubStepInput{Name: "Shadow check"})
	if err != nil {
		t.Fatalf("create second sub-step: %v", err)
	}
	if next.Order != 2 {
		t.Fatalf("expected order 2 got %d", next.Order)
	}

	completed := models.StepStatusCompleted
	updated, err := steps.UpdateSubStep(ctx, sub.ID, StepUpdate{Status: &completed})
	if err != nil {
		t.Fatalf("update sub-step: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatalf("expected completed_at on sub-step")
	}
	got, _ := env.clients().GetClient(ctx, c.ID)
	if got.CurrentStep != 1 {
		t.Fatalf("sub-steps must not move the current step, got %d", got.CurrentStep)
	}

	if err := steps.DeleteSubStep(ctx, next.ID); err != nil {
		t.Fatalf("delete sub-step: %v", err)
	}
	if _, err := steps.CreateSubStep(ctx, "missing", SubStepInput{Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown step got %v", err)
	}
}

func TestListStepsDerivesOverdue(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	steps := env.steps()

	past := testNow.Add(-24 * time.Hour)
	if _, err := steps.UpdateStep(ctx, c.Steps[0].ID, StepUpdate{DueDate: &past}); err != nil {
		t.Fatalf("set due date: %v", err)
	}
	views, err := steps.ListSteps(ctx, c.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if !views[0].Overdue || views[0].EffectiveStatus != models.StepStatusOverdue {
		t.Fatalf("expected step 1 overdue got %+v", views[0])
	}
	if views[0].Status != models.StepStatusInProgress {
		t.Fatalf("stored status must stay in-progress got %s", views[0].Status)
	}
	for _, v := range views[1:] {
		if v.Overdue {
			t.Fatalf("step %d should not be overdue", v.StepNumber)
		}
	}
}

func TestListClientsFilters(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createClient(t, "Asha Rao", "9876543210")
	env.createClient(t, "Bhavesh Shah", "9876543211")
	svc := env.clients()

	list, total, err := svc.ListClients(ctx, ClientFilter{})
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 clients got %d/%d (%v)", len(list), total, err)
	}

	list, total, _ = svc.ListClients(ctx, ClientFilter{Search: "bhav"})
	if total != 1 || list[0].Name != "Bhavesh Shah" {
		t.Fatalf("search: unexpected result %d %+v", total, list)
	}

	past := testNow.Add(-time.Hour)
	if _, err := env.steps().UpdateStep(ctx, a.Steps[1].ID, StepUpdate{DueDate: &past}); err != nil {
		t.Fatalf("set due date: %v", err)
	}
	list, total, _ = svc.ListClients(ctx, ClientFilter{OverdueOnly: true})
	if total != 1 || list[0].ID != a.ID {
		t.Fatalf("overdue: unexpected result %d %+v", total, list)
	}

	list, total, _ = svc.ListClients(ctx, ClientFilter{Limit: 1, Offset: 1})
	if total != 2 || len(list) != 1 {
		t.Fatalf("paging: expected 1 of 2 got %d of %d", len(list), total)
	}
}

func TestUpdateClient(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	svc := env.clients()

	status := models.ClientStatusOnHold
	mobile := "+91 98765 00000"
	got, err := svc.UpdateClient(ctx, c.ID, ClientUpdate{Status: &status, Mobile: &mobile})
	if err != nil {
		t.Fatalf("update client: %v", err)
	}
	if got.Status != status || got.Mobile != "+919876500000" {
		t.Fatalf("unexpected client %+v", got)
	}
	bad := "unknown"
	var verr *ValidationError
	if _, err := svc.UpdateClient(ctx, c.ID, ClientUpdate{Status: &bad}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, err := svc.UpdateClient(ctx, "missing", ClientUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestDeleteClientCascades(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	other := env.createClient(t, "Bhavesh Shah", "9876543211")

	docs, err := env.documents(5).UploadToCategory(ctx, c.ID, 1, "PAN Card", []FileUpload{upload("pan.png", pngBytes(t, 4, 4))}, "admin")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := env.finance().CreatePayment(ctx, c.ID, PaymentInput{Amount: decimal.NewFromInt(5000), Receiver: "office"}, "admin"); err != nil {
		t.Fatalf("payment: %v", err)
	}

	res, err := env.clients().DeleteClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if res.Failures != 0 {
		t.Fatalf("expected no cascade failures got %d", res.Failures)
	}
	if res.Removed["steps"] != 5 || res.Removed["payment_logs"] != 1 || res.Removed["documents"] != 1 {
		t.Fatalf("unexpected removal counts %v", res.Removed)
	}
	owner := store.Eq("client_id", c.ID)
	if countOf(t, env.store.Steps, owner)+countOf(t, env.store.SubSteps, owner)+countOf(t, env.store.Documents, owner) != 0 {
		t.Fatalf("expected owned records removed")
	}
	if _, err := os.Stat(filepath.Join(env.root, filepath.FromSlash(docs[0].StorageKey))); !os.IsNotExist(err) {
		t.Fatalf("expected stored object removed, stat err %v", err)
	}
	if countOf(t, env.store.Steps, store.Eq("client_id", other.ID)) != 5 {
		t.Fatalf("other client's steps must be untouched")
	}
	if _, err := env.clients().DeleteClient(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete got %v", err)
	}
}

func TestPersistentContextIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey("k"), "v"))
	cancel()
	p := persistentContext(ctx)
	if p.Err() != nil {
		t.Fatalf("expected no error from persistent context got %v", p.Err())
	}
	if p.Value(ctxKey("k")) != "v" {
		t.Fatalf("expected values to survive")
	}
}

type ctxKey string
