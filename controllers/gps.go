package controllers

import (
	"mime/multipart"
	"net/http"
	"solar-workflow-api/services"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetGpsCategories returns the GPS categories with their fill state.
func (h *Handler) GetGpsCategories(c *gin.Context) {
	cats, err := h.Gps.Categories(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, cats, int64(len(cats)))
}

func (h *Handler) ListGpsImages(c *gin.Context) {
	images, err := h.Gps.ListGpsImages(c.Request.Context(), c.Param("id"), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, images, int64(len(images)))
}

// UploadGpsImage stores one geotagged photo. Coordinates come from EXIF when
// present and from the form otherwise.
func (h *Handler) UploadGpsImage(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	var hint services.GpsHint
	if err := c.ShouldBind(&hint); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location fields: " + err.Error()})
		return
	}

	uploads, closeAll, err := openUploads([]*multipart.FileHeader{header})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer closeAll()

	img, err := h.Gps.UploadGpsImage(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.PostForm("category")), uploads[0], hint, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, img)
}

func (h *Handler) DeleteGpsImage(c *gin.Context) {
	if err := h.Gps.DeleteGpsImage(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "GPS image deleted"})
}

func (h *Handler) GetGpsImageURL(c *gin.Context) {
	urls, err := h.Gps.GpsImageURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, urls)
}
