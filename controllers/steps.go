package controllers

import (
	"net/http"
	"solar-workflow-api/services"

	"github.com/gin-gonic/gin"
)

// ListSteps returns a client's steps with sub-steps and derived overdue flags.
func (h *Handler) ListSteps(c *gin.Context) {
	steps, err := h.Steps.ListSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, steps, int64(len(steps)))
}

// GetStepTemplates lists the fixed workflow stages.
func (h *Handler) GetStepTemplates(c *gin.Context) {
	templates := services.StepTemplates()
	respondList(c, templates, int64(len(templates)))
}

func (h *Handler) UpdateStep(c *gin.Context) {
	var req services.StepUpdate
	if !bindJSON(c, &req) {
		return
	}
	step, err := h.Steps.UpdateStep(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, step)
}

func (h *Handler) CreateSubStep(c *gin.Context) {
	var req services.SubStepInput
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.Steps.CreateSubStep(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, sub)
}

func (h *Handler) UpdateSubStep(c *gin.Context) {
	var req services.StepUpdate
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.Steps.UpdateSubStep(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, sub)
}

func (h *Handler) DeleteSubStep(c *gin.Context) {
	if err := h.Steps.DeleteSubStep(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sub-step deleted"})
}

func (h *Handler) GetStepData(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	data, err := h.StepData.GetStepData(c.Request.Context(), c.Param("id"), step)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, data)
}

// SaveStepData upserts the typed payload of one step.
func (h *Handler) SaveStepData(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	payload, err := services.NewStepPayload(step)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !bindJSON(c, payload) {
		return
	}
	saved, err := h.StepData.SaveStepData(c.Request.Context(), c.Param("id"), payload, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, saved)
}
