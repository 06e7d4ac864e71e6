package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"solar-workflow-api/config"
	"solar-workflow-api/middleware"
	"solar-workflow-api/monitor"
	"solar-workflow-api/services"
	"solar-workflow-api/storage"
	"solar-workflow-api/utils"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler carries the services the HTTP handlers call.
type Handler struct {
	Users     *services.UserService
	Clients   *services.ClientService
	Steps     *services.StepService
	StepData  *services.StepDataService
	Documents *services.DocumentService
	Gps       *services.GpsImageService
	Finance   *services.FinanceService
	FollowUps *services.FollowUpService
	Phones    *services.PhoneImportService
	// Files serves signed downloads when objects live on local disk; nil with GCS.
	Files *storage.Local
	// Monitor is optional; nil leaves the /monitor routes unmounted.
	Monitor *monitor.Monitor
	Log     logrus.FieldLogger
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}

func respondList(c *gin.Context, data interface{}, total int64) {
	c.JSON(http.StatusOK, gin.H{"data": data, "total": total})
}

// respondError maps service errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	var capErr *services.CapacityError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &capErr):
		c.JSON(http.StatusConflict, gin.H{"error": capErr.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrImportInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrExternalStorage):
		h.Log.WithError(err).WithField("path", c.FullPath()).Error("object storage failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "File storage is unavailable"})
	default:
		config.LogError(h.Log, "controllers", c.HandlerName(), c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// bindJSON decodes and validates the body. It writes the 400 reply itself.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if fields := utils.ValidationMessages(err); fields != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return false
	}
	return true
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

func stepParam(c *gin.Context) (int, bool) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid step number"})
		return 0, false
	}
	return step, true
}

// openUploads turns multipart file headers into service uploads. The caller
// closes the returned files.
func openUploads(headers []*multipart.FileHeader) ([]services.FileUpload, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, cl := range closers {
			cl.Close()
		}
	}
	uploads := make([]services.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, f)
		uploads = append(uploads, services.FileUpload{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}
