package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
	apierrors "github.com/yukikurage/maintenance-tracker/internal/errors"
	"github.com/yukikurage/maintenance-tracker/internal/middleware"
	"github.com/yukikurage/maintenance-tracker/internal/services"
)

// AdminHandler serves export, storage metrics and the destructive admin operations.
type AdminHandler struct {
	taskService   *services.TaskService
	reportService *services.ReportService
	adminService  *services.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(taskService *services.TaskService, reportService *services.ReportService, adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		taskService:   taskService,
		reportService: reportService,
		adminService:  adminService,
	}
}

// Export downloads the spreadsheet and every media file as one zip.
func (h *AdminHandler) Export(c *gin.Context) {
	_, archive, err := h.reportService.BuildReport(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNothingToExport) {
			apierrors.NotFound(c, err.Error())
			return
		}
		logrus.WithError(err).Error("export failed")
		apierrors.InternalError(c, "Failed to build export")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+constants.BackupFileName+`"`)
	c.Data(http.StatusOK, "application/zip", archive)
}

// StorageStats reports database and media disk usage.
func (h *AdminHandler) StorageStats(c *gin.Context) {
	stats, err := h.adminService.StorageStats()
	if err != nil {
		logrus.WithError(err).Error("storage stats failed")
		apierrors.InternalError(c, "Failed to measure storage")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SweepMedia removes media files no task references.
func (h *AdminHandler) SweepMedia(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	removed, err := h.taskService.SweepOrphans(session)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"count":   len(removed),
	})
}

// Wipe deletes every task and media file after the typed confirmation.
func (h *AdminHandler) Wipe(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	type WipeRequest struct {
		Confirmation string `json:"confirmation" binding:"required"`
	}

	var req WipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.taskService.WipeAll(session, req.Confirmation); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All tasks and media wiped"})
}
