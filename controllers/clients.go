package controllers

import (
	"net/http"
	"solar-workflow-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListClients(c *gin.Context) {
	var f services.ClientFilter
	if !bindQuery(c, &f) {
		return
	}
	clients, total, err := h.Clients.ListClients(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, clients, total)
}

func (h *Handler) CreateClient(c *gin.Context) {
	var req services.ClientInput
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.Clients.CreateClient(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, client)
}

func (h *Handler) GetClient(c *gin.Context) {
	client, err := h.Clients.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, client)
}

func (h *Handler) UpdateClient(c *gin.Context) {
	var req services.ClientUpdate
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.Clients.UpdateClient(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, client)
}

// DeleteClient removes the client and everything it owns. Cascade failures
// are reported in the body rather than failing the request.
func (h *Handler) DeleteClient(c *gin.Context) {
	res, err := h.Clients.DeleteClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}
