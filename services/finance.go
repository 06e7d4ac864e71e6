package services

import (
	"solar-workflow-api/models"
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses
const (
	PaymentStatusNoPayments = "no_payments"
	PaymentStatusFullyPaid  = "fully_paid"
	PaymentStatusOverdue    = "overdue"
	PaymentStatusPartial    = "partial"
)

// DefaultPaymentWindow is how long after the latest payment an unpaid
// balance is reported as overdue.
const DefaultPaymentWindow = 30 * 24 * time.Hour

// DateRange bounds a report; both ends are inclusive and optional.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Contains reports whether t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// FinancialOverview summarises a client's money position.
type FinancialOverview struct {
	ClientID           string          `json:"client_id"`
	ClientName         string          `json:"client_name,omitempty"`
	PriceFinalized     decimal.Decimal `json:"price_finalized"`
	TotalPayments      decimal.Decimal `json:"total_payments"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	PaymentCount       int             `json:"payment_count"`
	ExpenseCount       int             `json:"expense_count"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	NetProfitLoss      decimal.Decimal `json:"net_profit_loss"`
	PaymentStatus      string          `json:"payment_status"`
	LastPaymentAt      *time.Time      `json:"last_payment_at,omitempty"`

	Range              *DateRange       `json:"range,omitempty"`
	PaymentsInRange    *decimal.Decimal `json:"payments_in_range,omitempty"`
	ExpensesInRange    *decimal.Decimal `json:"expenses_in_range,omitempty"`
	NetCashFlowInRange *decimal.Decimal `json:"net_cash_flow_in_range,omitempty"`
}

// ClassifyPayment derives the payment status. Precedence: no payments,
// fully paid, overdue (latest payment older than window), partial.
func ClassifyPayment(count int, outstanding decimal.Decimal, lastPayment *time.Time, now time.Time, window time.Duration) string {
	switch {
	case count == 0:
		return PaymentStatusNoPayments
	case !outstanding.IsPositive():
		return PaymentStatusFullyPaid
	case lastPayment != nil && now.Sub(*lastPayment) > window:
		return PaymentStatusOverdue
	default:
		return PaymentStatusPartial
	}
}

// ComputeOverview aggregates payments and expenses against the finalized
// price. The result does not depend on the order of the inputs.
func ComputeOverview(price decimal.Decimal, payments []models.PaymentLog, expenses []models.Expense, rng *DateRange, now time.Time, window time.Duration) FinancialOverview {
	if window <= 0 {
		window = DefaultPaymentWindow
	}
	ov := FinancialOverview{
		PriceFinalized: price,
		TotalPayments:  decimal.Zero,
		TotalExpenses:  decimal.Zero,
		PaymentCount:   len(payments),
		ExpenseCount:   len(expenses),
	}
	inRangePayments, inRangeExpenses := decimal.Zero, decimal.Zero
	for _, p := range payments {
		ov.TotalPayments = ov.TotalPayments.Add(p.Amount)
		if ov.LastPaymentAt == nil || p.Timestamp.After(*ov.LastPaymentAt) {
			ts := p.Timestamp
			ov.LastPaymentAt = &ts
		}
		if rng != nil && rng.Contains(p.Timestamp) {
			inRangePayments = inRangePayments.Add(p.Amount)
		}
	}
	for _, e := range expenses {
		ov.TotalExpenses = ov.TotalExpenses.Add(e.Amount)
		if rng != nil && rng.Contains(e.CreatedAt) {
			inRangeExpenses = inRangeExpenses.Add(e.Amount)
		}
	}
	ov.OutstandingBalance = price.Sub(ov.TotalPayments)
	ov.NetProfitLoss = ov.TotalPayments.Sub(ov.TotalExpenses)
	ov.PaymentStatus = ClassifyPayment(ov.PaymentCount, ov.OutstandingBalance, ov.LastPaymentAt, now, window)

	if rng != nil {
		net := inRangePayments.Sub(inRangeExpenses)
		ov.Range = rng
		ov.PaymentsInRange = &inRangePayments
		ov.ExpensesInRange = &inRangeExpenses
		ov.NetCashFlowInRange = &net
	}
	return ov
}
