package controllers

import (
	"net/http"
	"solar-workflow-api/services"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type phoneImportRequest struct {
	Items  []services.PhoneImportItem `json:"items" binding:"required,dive"`
	Source string                     `json:"source"`
}

func (h *Handler) ListPhoneNumbers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, total, err := h.Phones.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, items, total)
}

// ImportPhoneNumbers takes either a JSON item list or an xlsx upload in the
// "file" field. Partial failures still return the per-item result.
func (h *Handler) ImportPhoneNumbers(c *gin.Context) {
	var items []services.PhoneImportItem
	source := "api"
	if strings.HasPrefix(c.ContentType(), "multipart/") {
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
		items, err = services.ParsePhoneSheet(f)
		if err != nil {
			h.respondError(c, err)
			return
		}
		source = header.Filename
	} else {
		var req phoneImportRequest
		if !bindJSON(c, &req) {
			return
		}
		items = req.Items
		if req.Source != "" {
			source = req.Source
		}
	}

	res, err := h.Phones.Import(c.Request.Context(), items, source, currentUserID(c))
	switch {
	case err == nil:
		respond(c, http.StatusOK, res)
	case services.IsPartialFailure(err):
		c.JSON(http.StatusMultiStatus, gin.H{"data": res, "error": err.Error()})
	case res != nil:
		// cancelled between batches
		c.JSON(http.StatusServiceUnavailable, gin.H{"data": res, "error": err.Error()})
	default:
		h.respondError(c, err)
	}
}

func (h *Handler) DeletePhoneNumber(c *gin.Context) {
	if err := h.Phones.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Phone number deleted"})
}
