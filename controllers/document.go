package controllers

import (
	"errors"
	"net/http"
	"os"
	"path"
	"solar-workflow-api/storage"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetStepDocuments returns per-category state and completion for a step.
func (h *Handler) GetStepDocuments(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	docs, err := h.Documents.ListCategoryState(c.Request.Context(), c.Param("id"), step)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, docs)
}

// UploadStepDocuments stores one or more files into a category.
func (h *Handler) UploadStepDocuments(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	category := strings.TrimSpace(c.PostForm("category"))
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	uploads, closeAll, err := openUploads(headers)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer closeAll()

	files, err := h.Documents.UploadToCategory(c.Request.Context(), c.Param("id"), step, category, uploads, currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, files, int64(len(files)))
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.Documents.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

func (h *Handler) GetDocumentURL(c *gin.Context) {
	url, err := h.Documents.DocumentURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, url)
}

// DownloadFile serves a locally stored object behind a signed URL. The route
// is public; the signature is the credential.
func (h *Handler) DownloadFile(c *gin.Context) {
	if h.Files == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	f, err := h.Files.Open(key, c.Query("expires"), c.Query("signature"))
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file path"})
		return
	case errors.Is(err, storage.ErrInvalidSignature):
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired link"})
		return
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	case err != nil:
		h.respondError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=\""+path.Base(key)+"\"")
	http.ServeContent(c.Writer, c.Request, path.Base(key), info.ModTime(), f)
}
