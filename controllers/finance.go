package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"solar-workflow-api/services"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp. A bare end
// date covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) ListPayments(c *gin.Context) {
	payments, err := h.Finance.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, payments, int64(len(payments)))
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req services.PaymentInput
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.Finance.CreatePayment(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, payment)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var req services.PaymentUpdate
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.Finance.UpdatePayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, payment)
}

func (h *Handler) DeletePayment(c *gin.Context) {
	if err := h.Finance.DeletePayment(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted"})
}

func (h *Handler) ListExpenses(c *gin.Context) {
	expenses, err := h.Finance.ListExpenses(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, expenses, int64(len(expenses)))
}

func (h *Handler) CreateExpense(c *gin.Context) {
	var req services.ExpenseInput
	if !bindJSON(c, &req) {
		return
	}
	expense, err := h.Finance.CreateExpense(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, expense)
}

func (h *Handler) UpdateExpense(c *gin.Context) {
	var req services.ExpenseUpdate
	if !bindJSON(c, &req) {
		return
	}
	expense, err := h.Finance.UpdateExpense(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, expense)
}

func (h *Handler) DeleteExpense(c *gin.Context) {
	if err := h.Finance.DeleteExpense(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted"})
}

// AttachExpenseDocument uploads a receipt and links it to the expense.
func (h *Handler) AttachExpenseDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer f.Close()

	expense, err := h.Finance.AttachExpenseDocument(c.Request.Context(), c.Param("id"), services.FileUpload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Content:     f,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, expense)
}

// GetFinancialOverview computes one client's overview, optionally with
// in-range totals for ?start= and ?end=.
func (h *Handler) GetFinancialOverview(c *gin.Context) {
	start, err := parseDate(c.Query("start"), false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start date", "field": "start"})
		return
	}
	end, err := parseDate(c.Query("end"), true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end date", "field": "end"})
		return
	}
	var rng *services.DateRange
	if start != nil || end != nil {
		rng = &services.DateRange{Start: start, End: end}
	}

	overview, err := h.Finance.ComputeOverview(c.Request.Context(), c.Param("id"), rng)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, overview)
}

func (h *Handler) ListFinancialOverviews(c *gin.Context) {
	var f services.OverviewFilter
	if !bindQuery(c, &f) {
		return
	}
	overviews, err := h.Finance.ListOverviews(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, overviews, int64(len(overviews)))
}

// ExportFinancialOverviews streams the portfolio as an xlsx workbook.
func (h *Handler) ExportFinancialOverviews(c *gin.Context) {
	var f services.OverviewFilter
	if !bindQuery(c, &f) {
		return
	}
	var buf bytes.Buffer
	if err := h.Finance.ExportOverviews(c.Request.Context(), f, &buf); err != nil {
		h.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("financial-overview-%s.xlsx", time.Now().Format(dateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
