package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/maintenance-tracker/internal/dto"
	apierrors "github.com/yukikurage/maintenance-tracker/internal/errors"
	"github.com/yukikurage/maintenance-tracker/internal/media"
	"github.com/yukikurage/maintenance-tracker/internal/middleware"
	"github.com/yukikurage/maintenance-tracker/internal/services"
	"github.com/yukikurage/maintenance-tracker/internal/utils"
)

// Multipart field names
const (
	formBeforePhotos = "before_photos"
	formAfterPhotos  = "after_photos"
	formPhotos       = "photos"
	formAudio        = "audio"
)

type TaskHandler struct {
	taskService    *services.TaskService
	maxUploadBytes int64
}

func NewTaskHandler(taskService *services.TaskService, maxUploadBytes int64) *TaskHandler {
	return &TaskHandler{
		taskService:    taskService,
		maxUploadBytes: maxUploadBytes,
	}
}

// ListTasks returns tasks newest first, optionally filtered by status and technician
func (h *TaskHandler) ListTasks(c *gin.Context) {
	session, exists := middleware.GetSession(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)

	tasks, total, err := h.taskService.ListTasks(services.ListTasksInput{
		Status:     c.Query("status"),
		Technician: c.Query("technician"),
		Pagination: params,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, session, params.Page, params.Limit, total))
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task, session))
}

// CreateTask creates a task from a multipart form. Any technician field in
// the form is ignored; the session's username is recorded.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	session, exists := middleware.GetSession(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	form, ok := h.parseMultipart(c)
	if !ok {
		return
	}

	files := newOpenedFiles()
	defer files.Close()

	before, err := files.open(form.File[formBeforePhotos])
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}
	after, err := files.open(form.File[formAfterPhotos])
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}
	audio, err := files.open(form.File[formAudio])
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}

	input := services.CreateTaskInput{
		Name:              c.PostForm("name"),
		Location:          c.PostForm("location"),
		Status:            c.PostForm("status"),
		Description:       c.PostForm("description"),
		TechnicianComment: c.PostForm("technician_comment"),
		StartTime:         c.PostForm("start_time"),
		EndTime:           c.PostForm("end_time"),
		BeforePhotos:      before,
		AfterPhotos:       after,
	}
	if len(audio) > 0 {
		input.Audio = &audio[0]
	}

	task, err := h.taskService.CreateTask(session, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task, session))
}

// UpdateField rewrites a single column of a task
func (h *TaskHandler) UpdateField(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type UpdateFieldRequest struct {
		Field string `json:"field" binding:"required"`
		Value string `json:"value"`
	}

	var req UpdateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.UpdateField(session, task.ID, req.Field, req.Value)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, session))
}

// AdvancedEdit rewrites name, location and status and appends photos to both
// lists from one multipart form. Omitted text fields keep their value.
func (h *TaskHandler) AdvancedEdit(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	form, ok := h.parseMultipart(c)
	if !ok {
		return
	}

	files := newOpenedFiles()
	defer files.Close()

	before, err := files.open(form.File[formBeforePhotos])
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}
	after, err := files.open(form.File[formAfterPhotos])
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}

	input := services.AdvancedEditInput{
		BeforePhotos: before,
		AfterPhotos:  after,
	}
	if v, ok := c.GetPostForm("name"); ok {
		input.Name = &v
	}
	if v, ok := c.GetPostForm("location"); ok {
		input.Location = &v
	}
	if v, ok := c.GetPostForm("status"); ok {
		input.Status = &v
	}

	updated, err := h.taskService.AdvancedEdit(session, task.ID, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, session))
}

// AppendPhotos appends uploaded photos to the before or after list
func (h *TaskHandler) AppendPhotos(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	form, ok := h.parseMultipart(c)
	if !ok {
		return
	}

	files := newOpenedFiles()
	defer files.Close()

	photos, err := files.open(form.File[formPhotos])
	if err != nil {
		apierrors.BadRequest(c, "Failed to read uploaded file")
		return
	}

	updated, err := h.taskService.AppendPhotos(session, task.ID, c.Param("category"), photos)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, session))
}

// RemovePhoto removes the photo at :index. The optional name query parameter
// guards against removing a photo that moved since the client last read.
func (h *TaskHandler) RemovePhoto(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid photo index")
		return
	}

	updated, err := h.taskService.RemovePhoto(session, task.ID, c.Param("category"), index, c.Query("name"))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, session))
}

// RateTask records the admin rating and feedback
func (h *TaskHandler) RateTask(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type RateTaskRequest struct {
		Rating   *int   `json:"rating" binding:"required"`
		Feedback string `json:"feedback"`
	}

	var req RateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.Rate(session, task.ID, *req.Rating, req.Feedback)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, session))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	task, exists := middleware.GetTask(c)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(session, task.ID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// DownloadMedia streams a stored photo or audio file
func (h *TaskHandler) DownloadMedia(c *gin.Context) {
	name := c.Param("name")

	f, err := h.taskService.OpenMedia(name)
	if err != nil {
		respondTaskError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		apierrors.InternalError(c, "Failed to read media file")
		return
	}

	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

// parseMultipart reads the multipart form within the upload limit. It writes
// the error response itself and reports whether parsing succeeded.
func (h *TaskHandler) parseMultipart(c *gin.Context) (*multipart.Form, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			apierrors.RespondWithError(c, http.StatusRequestEntityTooLarge,
				apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "Upload too large"))
			return nil, false
		}
		apierrors.BadRequest(c, "Invalid multipart form")
		return nil, false
	}
	return form, true
}

// openedFiles tracks uploaded parts opened for one request
type openedFiles struct {
	files []multipart.File
}

func newOpenedFiles() *openedFiles {
	return &openedFiles{}
}

func (o *openedFiles) open(headers []*multipart.FileHeader) ([]media.Upload, error) {
	uploads := make([]media.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		o.files = append(o.files, f)
		uploads = append(uploads, media.Upload{Filename: fh.Filename, Content: f})
	}
	return uploads, nil
}

func (o *openedFiles) Close() {
	for _, f := range o.files {
		_ = f.Close()
	}
}

func respondTaskError(c *gin.Context, err error) {
	var storageErr *services.StorageError

	switch {
	case errors.As(err, &storageErr):
		logrus.WithError(err).WithField("stage", storageErr.Stage).Error("storage failure")
		apierrors.StorageError(c, storageErr.Stage)
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrMediaNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		apierrors.Forbidden(c, "You do not have permission to modify this task")
	case errors.Is(err, services.ErrPhotoConflict):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrInvalidCategory),
		errors.Is(err, services.ErrPhotoIndexOutOfRange),
		errors.Is(err, services.ErrFieldNotEditable),
		errors.Is(err, services.ErrUnknownField),
		errors.Is(err, services.ErrNoFiles),
		errors.Is(err, services.ErrWipeNotConfirmed):
		apierrors.BadRequest(c, err.Error())
	default:
		logrus.WithError(err).Error("task operation failed")
		apierrors.InternalError(c, "Internal server error")
	}
}
