package store

import (
	"reflect"
	"solar-workflow-api/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEncodeDocumentUsesColumnNames(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &models.PaymentLog{ID: "p1", ClientID: "c1", Amount: decimal.RequireFromString("1500.50"), Timestamp: ts}

	id, data, err := encodeDocument(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if id != "p1" {
		t.Fatalf("expected id p1 got %q", id)
	}
	if data["client_id"] != "c1" {
		t.Fatalf("expected client_id field got %v", data["client_id"])
	}
	if got, ok := data["timestamp"].(time.Time); !ok || !got.Equal(ts) {
		t.Fatalf("expected timestamp stored as time got %#v", data["timestamp"])
	}
	if data["amount"] != "1500.5" {
		t.Fatalf("expected amount kept as decimal string got %#v", data["amount"])
	}

	back, err := decodeDocument[models.PaymentLog](data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !back.Amount.Equal(p.Amount) || !back.Timestamp.Equal(ts) {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestEncodeDocumentRequiresID(t *testing.T) {
	if _, _, err := encodeDocument(&models.Client{Name: "x"}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestTableNameOf(t *testing.T) {
	if got := tableNameOf[models.Step3Data](); got != "step3_data" {
		t.Fatalf("expected step3_data got %q", got)
	}
}

func TestSameValue(t *testing.T) {
	if !sameValue(nil, "") {
		t.Fatalf("missing field should match empty string")
	}
	if !sameValue(int64(3), 3) {
		t.Fatalf("numbers should compare by value")
	}
	if sameValue("overdue", "completed") {
		t.Fatalf("different strings should not match")
	}
}

func TestEncodeDocumentKeepsPasswordHash(t *testing.T) {
	u := &models.User{ID: "u1", Email: "a@b.c", Password: "$2a$10$hash", Role: models.RoleAdmin}

	_, data, err := encodeDocument(u)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data["password"] != "$2a$10$hash" {
		t.Fatalf("expected password hash stored got %#v", data["password"])
	}

	back, err := decodeDocument[models.User](data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Password != u.Password || back.Email != u.Email {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestHiddenColumnsIgnoresUntaggedFields(t *testing.T) {
	if got := hiddenColumns(reflect.TypeOf(models.Client{})); len(got) != 0 {
		t.Fatalf("expected no hidden columns on Client got %v", got)
	}
}
