package services

import (
	"context"
	"errors"
	"solar-workflow-api/models"
	"testing"
	"time"
)

func TestStepDataUpsert(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	svc := NewStepDataService(env.store, env.log)
	svc.now = fixedClock

	empty, err := svc.GetStepData(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if empty.Base().ClientID != c.ID || empty.Base().ID != "" {
		t.Fatalf("expected empty payload for client got %+v", empty)
	}

	first, err := svc.SaveStepData(ctx, c.ID, &models.Step1Data{PriceFinalized: dec("185000"), LoanRequired: true, LoanStatus: "applied"}, "u1")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	id := first.Base().ID

	svc.now = func() time.Time { return testNow.Add(time.Hour) }
	second, err := svc.SaveStepData(ctx, c.ID, &models.Step1Data{PriceFinalized: dec("190000"), LoanStatus: "sanctioned"}, "u2")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Base().ID != id || !second.Base().CreatedAt.Equal(testNow) {
		t.Fatalf("upsert must keep id and created_at, got %+v", second.Base())
	}

	got, err := svc.GetStepData(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	step1, ok := got.(*models.Step1Data)
	if !ok {
		t.Fatalf("expected *Step1Data got %T", got)
	}
	if !step1.PriceFinalized.Equal(dec("190000")) || step1.LoanStatus != "sanctioned" || step1.UpdatedBy != "u2" {
		t.Fatalf("unexpected stored payload %+v", step1)
	}
	if n := countOf(t, env.store.Step1); n != 1 {
		t.Fatalf("expected one row per client got %d", n)
	}
}

func TestStepDataValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	c := env.createClient(t, "Asha Rao", "9876543210")
	svc := NewStepDataService(env.store, env.log)

	cases := []struct {
		name    string
		payload models.StepPayload
		field   string
	}{
		{"negative price", &models.Step1Data{PriceFinalized: dec("-1")}, "price_finalized"},
		{"unknown loan status", &models.Step1Data{LoanStatus: "pending"}, "loan_status"},
		{"bad roof type", &models.Step2Data{RoofType: "straw"}, "roof_type"},
		{"negative panels", &models.Step3Data{PanelCount: -2}, "panel_count"},
		{"short ifsc", &models.Step5Data{IFSC: "SBIN01"}, "ifsc"},
		{"letters in account", &models.Step5Data{AccountNumber: "12AB"}, "account_number"},
		{"negative subsidy", &models.Step5Data{SubsidyAmount: dec("-10")}, "subsidy_amount"},
	}
	for _, tc := range cases {
		_, err := svc.SaveStepData(ctx, c.ID, tc.payload, "u1")
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("%s: expected validation error on %s got %v", tc.name, tc.field, err)
		}
	}

	if _, err := svc.SaveStepData(ctx, c.ID, &models.Step5Data{IFSC: "SBIN0001234", AccountNumber: "0012345678", SubsidyStatus: "approved"}, "u1"); err != nil {
		t.Fatalf("valid step 5 payload rejected: %v", err)
	}
	if _, err := svc.GetStepData(ctx, c.ID, 6); err == nil {
		t.Fatalf("expected error for unknown step")
	}
	if _, err := svc.GetStepData(ctx, "missing", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
