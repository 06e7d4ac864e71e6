package controllers

import (
	"net/http"
	"solar-workflow-api/services"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListFollowUps(c *gin.Context) {
	items, err := h.FollowUps.ListForClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, items, int64(len(items)))
}

func (h *Handler) CreateFollowUp(c *gin.Context) {
	var req services.FollowUpInput
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.FollowUps.Create(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

func (h *Handler) UpdateFollowUp(c *gin.Context) {
	var req services.FollowUpUpdate
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.FollowUps.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *Handler) DeleteFollowUp(c *gin.Context) {
	if err := h.FollowUps.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Follow-up deleted"})
}

// ListDueFollowUps lists pending follow-ups due before ?before= (default now).
func (h *Handler) ListDueFollowUps(c *gin.Context) {
	before := time.Now()
	if raw := c.Query("before"); raw != "" {
		t, err := parseDate(raw, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid before date", "field": "before"})
			return
		}
		before = *t
	}
	items, err := h.FollowUps.ListDue(c.Request.Context(), before)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, items, int64(len(items)))
}

// SendReminders mails each assignee a digest of due follow-ups and overdue steps.
func (h *Handler) SendReminders(c *gin.Context) {
	report, err := h.FollowUps.SendReminders(c.Request.Context(), time.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, report)
}
