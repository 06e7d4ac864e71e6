package services

import (
	"bytes"
	"context"
	"errors"
	"solar-workflow-api/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func payment(amount string, at time.Time) models.PaymentLog {
	return models.PaymentLog{Amount: dec(amount), Timestamp: at}
}

func expense(amount string, at time.Time) models.Expense {
	return models.Expense{Amount: dec(amount), CreatedAt: at}
}

func TestComputeOverviewArithmetic(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }
	payments := []models.PaymentLog{payment("50000", day(1)), payment("25000.50", day(5)), payment("10000", day(8))}
	expenses := []models.Expense{expense("30000", day(2)), expense("4999.50", day(6))}

	ov := ComputeOverview(dec("150000"), payments, expenses, nil, testNow, DefaultPaymentWindow)
	if !ov.TotalPayments.Equal(dec("85000.50")) {
		t.Fatalf("total payments: got %s", ov.TotalPayments)
	}
	if !ov.TotalExpenses.Equal(dec("34999.50")) {
		t.Fatalf("total expenses: got %s", ov.TotalExpenses)
	}
	if !ov.OutstandingBalance.Equal(dec("64999.50")) {
		t.Fatalf("outstanding: got %s", ov.OutstandingBalance)
	}
	if !ov.NetProfitLoss.Equal(dec("50001")) {
		t.Fatalf("net: got %s", ov.NetProfitLoss)
	}
	if ov.PaymentCount != 3 || ov.ExpenseCount != 2 {
		t.Fatalf("counts: got %d/%d", ov.PaymentCount, ov.ExpenseCount)
	}
	if ov.LastPaymentAt == nil || !ov.LastPaymentAt.Equal(day(8)) {
		t.Fatalf("last payment: got %v", ov.LastPaymentAt)
	}
	if ov.PaymentStatus != PaymentStatusPartial {
		t.Fatalf("status: got %s", ov.PaymentStatus)
	}

	reversedP := []models.PaymentLog{payments[2], payments[1], payments[0]}
	reversedE := []models.Expense{expenses[1], expenses[0]}
	again := ComputeOverview(dec("150000"), reversedP, reversedE, nil, testNow, DefaultPaymentWindow)
	if !again.OutstandingBalance.Equal(ov.OutstandingBalance) || !again.NetProfitLoss.Equal(ov.NetProfitLoss) ||
		!again.LastPaymentAt.Equal(*ov.LastPaymentAt) || again.PaymentStatus != ov.PaymentStatus {
		t.Fatalf("overview depends on input order: %+v vs %+v", again, ov)
	}
}

func TestComputeOverviewTwoInstalmentsLeaveBalance(t *testing.T) {
	payments := []models.PaymentLog{
		payment("40000", testNow.Add(-10*24*time.Hour)),
		payment("30000", testNow.Add(-2*24*time.Hour)),
	}
	ov := ComputeOverview(dec("100000"), payments, nil, nil, testNow, DefaultPaymentWindow)
	if !ov.TotalPayments.Equal(dec("70000")) {
		t.Fatalf("total payments: got %s", ov.TotalPayments)
	}
	if !ov.OutstandingBalance.Equal(dec("30000")) {
		t.Fatalf("outstanding: got %s", ov.OutstandingBalance)
	}
	if !ov.NetProfitLoss.Equal(dec("70000")) {
		t.Fatalf("net: got %s", ov.NetProfitLoss)
	}
	if ov.PaymentStatus != PaymentStatusPartial {
		t.Fatalf("status: got %s", ov.PaymentStatus)
	}
}

func TestComputeOverviewRangeIsInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	payments := []models.PaymentLog{
		payment("100", start),
		payment("200", end),
		payment("400", start.Add(-time.Second)),
	}
	expenses := []models.Expense{expense("50", end), expense("70", end.Add(time.Second))}

	ov := ComputeOverview(dec("1000"), payments, expenses, &DateRange{Start: &start, End: &end}, testNow, DefaultPaymentWindow)
	if !ov.PaymentsInRange.Equal(dec("300")) {
		t.Fatalf("payments in range: got %s", ov.PaymentsInRange)
	}
	if !ov.ExpensesInRange.Equal(dec("50")) {
		t.Fatalf("expenses in range: got %s", ov.ExpensesInRange)
	}
	if !ov.NetCashFlowInRange.Equal(dec("250")) {
		t.Fatalf("net in range: got %s", ov.NetCashFlowInRange)
	}
	if !ov.TotalPayments.Equal(dec("700")) {
		t.Fatalf("totals ignore the range, got %s", ov.TotalPayments)
	}

	plain := ComputeOverview(dec("1000"), payments, expenses, nil, testNow, DefaultPaymentWindow)
	if plain.PaymentsInRange != nil || plain.Range != nil {
		t.Fatalf("range fields must be absent without a range")
	}
}

func TestClassifyPaymentPrecedence(t *testing.T) {
	recent := testNow.Add(-24 * time.Hour)
	old := testNow.Add(-45 * 24 * time.Hour)
	cases := []struct {
		name        string
		count       int
		outstanding string
		last        *time.Time
		want        string
	}{
		{"no payments even with balance", 0, "1000", nil, PaymentStatusNoPayments},
		{"paid exactly", 2, "0", &old, PaymentStatusFullyPaid},
		{"overpaid", 1, "-10", &old, PaymentStatusFullyPaid},
		{"stale balance", 1, "500", &old, PaymentStatusOverdue},
		{"recent balance", 1, "500", &recent, PaymentStatusPartial},
	}
	for _, tc := range cases {
		if got := ClassifyPayment(tc.count, dec(tc.outstanding), tc.last, testNow, DefaultPaymentWindow); got != tc.want {
			t.Fatalf("%s: expected %s got %s", tc.name, tc.want, got)
		}
	}
}

func TestFinanceServiceOverviews(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	fin := env.finance()
	stepData := NewStepDataService(env.store, env.log)
	stepData.now = fixedClock

	a := env.createClient(t, "Asha Rao", "9876543210")
	b := env.createClient(t, "Bhavesh Shah", "9876543211")
	z := env.createClient(t, "Zoya Khan", "9876543212")

	for id, price := range map[string]string{a.ID: "100000", b.ID: "250000"} {
		p := &models.Step1Data{PriceFinalized: dec(price)}
		if _, err := stepData.SaveStepData(ctx, id, p, "admin"); err != nil {
			t.Fatalf("save step 1: %v", err)
		}
	}
	if _, err := fin.CreatePayment(ctx, a.ID, PaymentInput{Amount: dec("100000")}, "admin"); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if _, err := fin.CreatePayment(ctx, b.ID, PaymentInput{Amount: dec("50000")}, "admin"); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if _, err := fin.CreateExpense(ctx, b.ID, ExpenseInput{Amount: dec("20000"), ExpenseType: models.ExpenseTypeMaterial}, "admin"); err != nil {
		t.Fatalf("expense: %v", err)
	}

	var verr *ValidationError
	if _, err := fin.CreatePayment(ctx, a.ID, PaymentInput{Amount: dec("0")}, "admin"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for zero amount got %v", err)
	}
	if _, err := fin.CreateExpense(ctx, a.ID, ExpenseInput{Amount: dec("-5"), ExpenseType: "other"}, "admin"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for negative amount got %v", err)
	}

	ov, err := fin.ComputeOverview(ctx, b.ID, nil)
	if err != nil {
		t.Fatalf("compute overview: %v", err)
	}
	if !ov.OutstandingBalance.Equal(dec("200000")) || !ov.NetProfitLoss.Equal(dec("30000")) {
		t.Fatalf("unexpected overview %+v", ov)
	}

	all, err := fin.ListOverviews(ctx, OverviewFilter{})
	if err != nil {
		t.Fatalf("list overviews: %v", err)
	}
	if len(all) != 3 || all[0].ClientID != b.ID {
		t.Fatalf("expected 3 overviews led by the largest balance, got %+v", all)
	}
	if all[1].ClientID != a.ID || all[2].ClientID != z.ID {
		t.Fatalf("equal balances should keep name order: %s, %s", all[1].ClientName, all[2].ClientName)
	}
	if all[1].PaymentStatus != PaymentStatusFullyPaid || all[2].PaymentStatus != PaymentStatusNoPayments {
		t.Fatalf("unexpected statuses %s/%s", all[1].PaymentStatus, all[2].PaymentStatus)
	}

	paid, err := fin.ListOverviews(ctx, OverviewFilter{PaymentStatus: PaymentStatusFullyPaid})
	if err != nil || len(paid) != 1 || paid[0].ClientID != a.ID {
		t.Fatalf("payment status filter: got %+v (%v)", paid, err)
	}

	if _, err := fin.ComputeOverview(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestPaymentAndExpenseUpdates(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	fin := env.finance()
	c := env.createClient(t, "Asha Rao", "9876543210")

	p, err := fin.CreatePayment(ctx, c.ID, PaymentInput{Amount: dec("1000"), Receiver: "office"}, "admin")
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	amount := dec("1500")
	updated, err := fin.UpdatePayment(ctx, p.ID, PaymentUpdate{Amount: &amount})
	if err != nil || !updated.Amount.Equal(amount) {
		t.Fatalf("update payment: %+v %v", updated, err)
	}
	zero := decimal.Zero
	var verr *ValidationError
	if _, err := fin.UpdatePayment(ctx, p.ID, PaymentUpdate{Amount: &zero}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	list, err := fin.ListPayments(ctx, c.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list payments: %d %v", len(list), err)
	}
	if err := fin.DeletePayment(ctx, p.ID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if err := fin.DeletePayment(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}

	e, err := fin.CreateExpense(ctx, c.ID, ExpenseInput{Amount: dec("300"), ExpenseType: models.ExpenseTypeTransport}, "admin")
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	withDoc, err := fin.AttachExpenseDocument(ctx, e.ID, upload("receipt.png", pngBytes(t, 4, 4)))
	if err != nil {
		t.Fatalf("attach document: %v", err)
	}
	if len(withDoc.Documents) != 1 {
		t.Fatalf("expected 1 attached document got %v", withDoc.Documents)
	}
	if err := fin.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
}

func TestExportOverviews(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	fin := env.finance()
	c := env.createClient(t, "Asha Rao", "9876543210")
	if _, err := fin.CreatePayment(ctx, c.ID, PaymentInput{Amount: dec("1200")}, "admin"); err != nil {
		t.Fatalf("payment: %v", err)
	}

	var buf bytes.Buffer
	if err := fin.ExportOverviews(ctx, OverviewFilter{}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Overview")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Client" || rows[1][0] != "Asha Rao" {
		t.Fatalf("unexpected sheet rows %v", rows)
	}
}
