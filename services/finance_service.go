package services

import (
	"context"
	"fmt"
	"io"
	"solar-workflow-api/models"
	"solar-workflow-api/storage"
	"solar-workflow-api/store"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// overviewConcurrency bounds the per-client reads of ListOverviews.
const overviewConcurrency = 8

// PaymentInput records a payment.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Receiver  string          `json:"receiver" binding:"max=128"`
	Mode      string          `json:"mode" binding:"max=32"`
	Notes     string          `json:"notes"`
	Timestamp *time.Time      `json:"timestamp"`
}

// PaymentUpdate changes the provided payment fields.
type PaymentUpdate struct {
	Amount    *decimal.Decimal `json:"amount"`
	Receiver  *string          `json:"receiver"`
	Mode      *string          `json:"mode"`
	Notes     *string          `json:"notes"`
	Timestamp *time.Time       `json:"timestamp"`
}

// ExpenseInput records an expense.
type ExpenseInput struct {
	Amount      decimal.Decimal `json:"amount"`
	ExpenseType string          `json:"expense_type" binding:"required,max=64"`
	Description string          `json:"description"`
	Documents   []string        `json:"documents"`
}

// ExpenseUpdate changes the provided expense fields.
type ExpenseUpdate struct {
	Amount      *decimal.Decimal `json:"amount"`
	ExpenseType *string          `json:"expense_type"`
	Description *string          `json:"description"`
}

// OverviewFilter narrows ListOverviews.
type OverviewFilter struct {
	ClientStatus  string `form:"status"`
	PaymentStatus string `form:"payment_status"`
}

type FinanceService struct {
	store         *store.Store
	objects       storage.ObjectStorage
	log           logrus.FieldLogger
	paymentWindow time.Duration
	maxBytes      int64
	now           func() time.Time
}

func NewFinanceService(st *store.Store, objects storage.ObjectStorage, log logrus.FieldLogger, paymentWindow time.Duration) *FinanceService {
	if paymentWindow <= 0 {
		paymentWindow = DefaultPaymentWindow
	}
	return &FinanceService{store: st, objects: objects, log: log, paymentWindow: paymentWindow, maxBytes: DefaultMaxUploadBytes, now: time.Now}
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	return nil
}

func (s *FinanceService) requireClient(ctx context.Context, clientID string) (*models.Client, error) {
	c, err := s.store.Clients.Get(ctx, clientID)
	if err != nil {
		return nil, notFound("client", clientID, err)
	}
	return c, nil
}

// CreatePayment records a payment for a client.
func (s *FinanceService) CreatePayment(ctx context.Context, clientID string, in PaymentInput, createdBy string) (*models.PaymentLog, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, err
	}
	if _, err := s.requireClient(ctx, clientID); err != nil {
		return nil, err
	}
	now := s.now()
	ts := now
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}
	p := &models.PaymentLog{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Amount:    in.Amount,
		Receiver:  strings.TrimSpace(in.Receiver),
		Mode:      strings.TrimSpace(in.Mode),
		Notes:     in.Notes,
		Timestamp: ts,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// ListPayments returns a client's payments, newest first.
func (s *FinanceService) ListPayments(ctx context.Context, clientID string) ([]models.PaymentLog, error) {
	if _, err := s.requireClient(ctx, clientID); err != nil {
		return nil, err
	}
	items, err := s.store.Payments.Find(ctx, store.Query{
		Filters: []store.Filter{store.Eq("client_id", clientID)},
		OrderBy: "timestamp",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return items, nil
}

func (s *FinanceService) UpdatePayment(ctx context.Context, paymentID string, upd PaymentUpdate) (*models.PaymentLog, error) {
	p, err := s.store.Payments.Get(ctx, paymentID)
	if err != nil {
		return nil, notFound("payment", paymentID, err)
	}
	if upd.Amount != nil {
		if err := checkAmount(*upd.Amount); err != nil {
			return nil, err
		}
		p.Amount = *upd.Amount
	}
	if upd.Receiver != nil {
		p.Receiver = strings.TrimSpace(*upd.Receiver)
	}
	if upd.Mode != nil {
		p.Mode = strings.TrimSpace(*upd.Mode)
	}
	if upd.Notes != nil {
		p.Notes = *upd.Notes
	}
	if upd.Timestamp != nil {
		p.Timestamp = *upd.Timestamp
	}
	p.UpdatedAt = s.now()
	if err := s.store.Payments.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	return p, nil
}

func (s *FinanceService) DeletePayment(ctx context.Context, paymentID string) error {
	if err := s.store.Payments.Delete(ctx, paymentID); err != nil {
		return notFound("payment", paymentID, err)
	}
	return nil
}

// CreateExpense records an expense for a client.
func (s *FinanceService) CreateExpense(ctx context.Context, clientID string, in ExpenseInput, createdBy string) (*models.Expense, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ExpenseType) == "" {
		return nil, invalid("expense_type", "is required")
	}
	if _, err := s.requireClient(ctx, clientID); err != nil {
		return nil, err
	}
	now := s.now()
	e := &models.Expense{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Amount:      in.Amount,
		ExpenseType: strings.ToLower(strings.TrimSpace(in.ExpenseType)),
		Description: in.Description,
		Documents:   in.Documents,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Documents == nil {
		e.Documents = []string{}
	}
	if err := s.store.Expenses.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns a client's expenses, newest first.
func (s *FinanceService) ListExpenses(ctx context.Context, clientID string) ([]models.Expense, error) {
	if _, err := s.requireClient(ctx, clientID); err != nil {
		return nil, err
	}
	items, err := s.store.Expenses.Find(ctx, store.Query{
		Filters: []store.Filter{store.Eq("client_id", clientID)},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

func (s *FinanceService) UpdateExpense(ctx context.Context, expenseID string, upd ExpenseUpdate) (*models.Expense, error) {
	e, err := s.store.Expenses.Get(ctx, expenseID)
	if err != nil {
		return nil, notFound("expense", expenseID, err)
	}
	if upd.Amount != nil {
		if err := checkAmount(*upd.Amount); err != nil {
			return nil, err
		}
		e.Amount = *upd.Amount
	}
	if upd.ExpenseType != nil {
		t := strings.ToLower(strings.TrimSpace(*upd.ExpenseType))
		if t == "" {
			return nil, invalid("expense_type", "is required")
		}
		e.ExpenseType = t
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	e.UpdatedAt = s.now()
	if err := s.store.Expenses.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}
	return e, nil
}

// DeleteExpense removes an expense and its receipts.
func (s *FinanceService) DeleteExpense(ctx context.Context, expenseID string) error {
	e, err := s.store.Expenses.Get(ctx, expenseID)
	if err != nil {
		return notFound("expense", expenseID, err)
	}
	for _, key := range e.Documents {
		if err := s.objects.Delete(ctx, key); err != nil {
			return &StorageError{Op: "delete", Key: key, Err: err}
		}
	}
	if err := s.store.Expenses.Delete(ctx, expenseID); err != nil {
		return notFound("expense", expenseID, err)
	}
	return nil
}

// AttachExpenseDocument stores a receipt and adds its key to the expense.
func (s *FinanceService) AttachExpenseDocument(ctx context.Context, expenseID string, f FileUpload) (*models.Expense, error) {
	e, err := s.store.Expenses.Get(ctx, expenseID)
	if err != nil {
		return nil, notFound("expense", expenseID, err)
	}
	if err := checkUpload(f, s.maxBytes, documentExtensions); err != nil {
		return nil, err
	}
	key := storage.ObjectKey(e.ClientID, 0, "expenses", f.Name)
	if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := s.objects.Put(ctx, key, f.Content, f.contentType()); err != nil {
		return nil, &StorageError{Op: "put", Key: key, Err: err}
	}
	e.Documents = append(e.Documents, key)
	e.UpdatedAt = s.now()
	if err := s.store.Expenses.Save(ctx, e); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			s.log.WithError(derr).WithField("key", key).Warn("failed to remove orphaned receipt")
		}
		return nil, fmt.Errorf("save expense: %w", err)
	}
	return e, nil
}

// ComputeOverview loads one client's records and aggregates them.
func (s *FinanceService) ComputeOverview(ctx context.Context, clientID string, rng *DateRange) (*FinancialOverview, error) {
	client, err := s.requireClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.overviewFor(ctx, client, rng)
}

func (s *FinanceService) overviewFor(ctx context.Context, client *models.Client, rng *DateRange) (*FinancialOverview, error) {
	owner := store.Where(store.Eq("client_id", client.ID))
	price := decimal.Zero
	step1, err := s.store.Step1.Find(ctx, store.Query{Filters: owner.Filters, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("load step 1 data: %w", err)
	}
	if len(step1) > 0 {
		price = step1[0].PriceFinalized
	}
	payments, err := s.store.Payments.Find(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	expenses, err := s.store.Expenses.Find(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	ov := ComputeOverview(price, payments, expenses, rng, s.now(), s.paymentWindow)
	ov.ClientID = client.ID
	ov.ClientName = client.Name
	return &ov, nil
}

// ListOverviews builds an overview per client and sorts them by outstanding
// balance, largest first. Clients with equal balances keep their listing order.
func (s *FinanceService) ListOverviews(ctx context.Context, f OverviewFilter) ([]FinancialOverview, error) {
	var filters []store.Filter
	if f.ClientStatus != "" {
		filters = append(filters, store.Eq("status", f.ClientStatus))
	}
	clients, err := s.store.Clients.Find(ctx, store.Query{Filters: filters, OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	results := make([]FinancialOverview, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i := range clients {
		i := i
		g.Go(func() error {
			ov, err := s.overviewFor(gctx, &clients[i], nil)
			if err != nil {
				return fmt.Errorf("client %s: %w", clients[i].ID, err)
			}
			results[i] = *ov
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, ov := range results {
		if f.PaymentStatus != "" && ov.PaymentStatus != f.PaymentStatus {
			continue
		}
		out = append(out, ov)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OutstandingBalance.GreaterThan(out[j].OutstandingBalance)
	})
	return out, nil
}

var overviewHeaders = []interface{}{
	"Client", "Price Finalized", "Total Payments", "Total Expenses", "Outstanding",
	"Net Profit/Loss", "Payment Status", "Payments", "Expenses", "Last Payment",
}

// ExportOverviews writes the portfolio as an xlsx workbook.
func (s *FinanceService) ExportOverviews(ctx context.Context, f OverviewFilter, w io.Writer) error {
	overviews, err := s.ListOverviews(ctx, f)
	if err != nil {
		return err
	}
	book := excelize.NewFile()
	defer book.Close()

	const sheet = "Overview"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := book.SetSheetRow(sheet, "A1", &overviewHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, ov := range overviews {
		last := ""
		if ov.LastPaymentAt != nil {
			last = ov.LastPaymentAt.Format("2006-01-02")
		}
		row := []interface{}{
			ov.ClientName,
			ov.PriceFinalized.InexactFloat64(),
			ov.TotalPayments.InexactFloat64(),
			ov.TotalExpenses.InexactFloat64(),
			ov.OutstandingBalance.InexactFloat64(),
			ov.NetProfitLoss.InexactFloat64(),
			ov.PaymentStatus,
			ov.PaymentCount,
			ov.ExpenseCount,
			last,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
