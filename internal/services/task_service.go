package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
	"github.com/yukikurage/maintenance-tracker/internal/media"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/repository"
	"github.com/yukikurage/maintenance-tracker/internal/utils"
)

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrMediaNotFound        = errors.New("media file not found")
	ErrNameRequired         = errors.New("task name is required")
	ErrInvalidStatus        = errors.New("invalid task status")
	ErrInvalidRating        = errors.New("rating must be between 0 and 10")
	ErrInvalidCategory      = errors.New("photo category must be before or after")
	ErrPhotoIndexOutOfRange = errors.New("photo index out of range")
	ErrPhotoConflict        = errors.New("photo list changed, reload and retry")
	ErrFieldNotEditable     = errors.New("field cannot be edited")
	ErrUnknownField         = errors.New("unknown field")
	ErrNoFiles              = errors.New("at least one file is required")
	ErrWipeNotConfirmed     = errors.New("wipe confirmation phrase does not match")
)

// Storage stages reported by StorageError.
const (
	StageFile = "file"
	StageRow  = "row"
)

// StorageError reports a failure to persist media files or the task row.
// Files written before the failure have already been removed.
type StorageError struct {
	Stage string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure (%s): %v", e.Stage, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Columns a task owner may rewrite one at a time.
var editableFields = map[string]struct{}{
	"name":               {},
	"location":           {},
	"status":             {},
	"description":        {},
	"technician_comment": {},
	"start_time":         {},
	"end_time":           {},
}

// Columns that exist but are never written through UpdateField.
var protectedFields = map[string]struct{}{
	"id":            {},
	"technician":    {},
	"rating":        {},
	"admin_comment": {},
	"audio_ref":     {},
	"before_photos": {},
	"after_photos":  {},
}

// TaskService handles task business logic
type TaskService struct {
	taskRepo repository.TaskRepository
	store    *media.Store
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, store *media.Store) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		store:    store,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status     string
	Technician string
	Pagination utils.PaginationParams
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Name              string
	Location          string
	Status            string
	Description       string
	TechnicianComment string
	StartTime         string
	EndTime           string
	BeforePhotos      []media.Upload
	AfterPhotos       []media.Upload
	Audio             *media.Upload
}

// AdvancedEditInput rewrites scalar fields and appends photos in one step.
// Nil fields keep their current value.
type AdvancedEditInput struct {
	Name         *string
	Location     *string
	Status       *string
	BeforePhotos []media.Upload
	AfterPhotos  []media.Upload
}

// ParseCategory validates a photo category path value.
func ParseCategory(s string) (models.PhotoCategory, error) {
	category := models.PhotoCategory(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := category.Column(); !ok {
		return "", ErrInvalidCategory
	}
	return category, nil
}

func parseStatus(s string) (models.TaskStatus, error) {
	if strings.TrimSpace(s) == "" {
		return models.TaskStatusInProgress, nil
	}
	status, ok := models.ParseTaskStatus(s)
	if !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// ListTasks returns tasks newest first
func (s *TaskService) ListTasks(input ListTasksInput) ([]models.Task, int64, error) {
	filter := repository.TaskFilter{Pagination: input.Pagination}

	if input.Status != "" {
		status, ok := models.ParseTaskStatus(input.Status)
		if !ok {
			return nil, 0, ErrInvalidStatus
		}
		filter.Status = &status
	}
	if input.Technician != "" {
		technician := input.Technician
		filter.Technician = &technician
	}

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTask returns a task by ID
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// CreateTask stores the uploaded media and inserts the task owned by the
// session. If anything fails the files written by this call are removed.
func (s *TaskService) CreateTask(session Session, input CreateTaskInput) (*models.Task, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	status, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	defer s.store.Share()()

	var written []string
	fail := func(stage string, err error) (*models.Task, error) {
		s.store.RemoveAll(written)
		logrus.WithError(err).WithFields(logrus.Fields{
			"user":  session.Username,
			"stage": stage,
		}).Error("task creation failed")
		return nil, &StorageError{Stage: stage, Err: err}
	}

	before, err := s.store.SaveAll("before", input.BeforePhotos)
	if err != nil {
		return fail(StageFile, err)
	}
	written = append(written, before...)

	after, err := s.store.SaveAll("after", input.AfterPhotos)
	if err != nil {
		return fail(StageFile, err)
	}
	written = append(written, after...)

	task := &models.Task{
		Name:              name,
		Location:          strings.TrimSpace(input.Location),
		Status:            status,
		Description:       input.Description,
		BeforePhotos:      before,
		AfterPhotos:       after,
		Technician:        session.Username,
		Rating:            constants.MinRating,
		TechnicianComment: input.TechnicianComment,
		StartTime:         input.StartTime,
		EndTime:           input.EndTime,
	}

	if input.Audio != nil {
		audio, err := s.store.Save("audio", *input.Audio)
		if err != nil {
			return fail(StageFile, err)
		}
		written = append(written, audio)
		task.AudioRef = &audio
	}

	if err := s.taskRepo.Create(task); err != nil {
		return fail(StageRow, err)
	}

	logrus.WithFields(logrus.Fields{
		"user":    session.Username,
		"task_id": task.ID,
		"files":   len(written),
	}).Info("task created")

	return task, nil
}

// UpdateField rewrites one column of a task the session may edit
func (s *TaskService) UpdateField(session Session, taskID uint64, field, value string) (*models.Task, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if _, ok := protectedFields[field]; ok {
		return nil, ErrFieldNotEditable
	}
	if _, ok := editableFields[field]; !ok {
		return nil, ErrUnknownField
	}

	var newValue interface{} = value
	switch field {
	case "name":
		name := strings.TrimSpace(value)
		if name == "" {
			return nil, ErrNameRequired
		}
		newValue = name
	case "status":
		status, ok := models.ParseTaskStatus(value)
		if !ok {
			return nil, ErrInvalidStatus
		}
		newValue = status
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !session.CanEdit(task) {
		return nil, ErrPermissionDenied
	}

	if err := s.taskRepo.UpdateColumns(taskID, map[string]interface{}{field: newValue}); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.GetTask(taskID)
}

// AdvancedEdit rewrites name, location and status and appends new photos to
// both lists in a single transaction
func (s *TaskService) AdvancedEdit(session Session, taskID uint64, input AdvancedEditInput) (*models.Task, error) {
	columns := make(map[string]interface{})
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		columns["name"] = name
	}
	if input.Location != nil {
		columns["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Status != nil {
		status, ok := models.ParseTaskStatus(*input.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		columns["status"] = status
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !session.CanEdit(task) {
		return nil, ErrPermissionDenied
	}

	defer s.store.Share()()

	before, err := s.store.SaveAll(fmt.Sprintf("extra_b_%d", taskID), input.BeforePhotos)
	if err != nil {
		return nil, &StorageError{Stage: StageFile, Err: err}
	}
	after, err := s.store.SaveAll(fmt.Sprintf("extra_a_%d", taskID), input.AfterPhotos)
	if err != nil {
		s.store.RemoveAll(before)
		return nil, &StorageError{Stage: StageFile, Err: err}
	}

	updated, err := s.taskRepo.Edit(taskID, columns, map[models.PhotoCategory][]string{
		models.PhotoCategoryBefore: before,
		models.PhotoCategoryAfter:  after,
	})
	if err != nil {
		s.store.RemoveAll(before)
		s.store.RemoveAll(after)
		if repository.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, &StorageError{Stage: StageRow, Err: err}
	}

	return updated, nil
}

// AppendPhotos stores new files and appends them to one photo list
func (s *TaskService) AppendPhotos(session Session, taskID uint64, category string, files []media.Upload) (*models.Task, error) {
	cat, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !session.CanEdit(task) {
		return nil, ErrPermissionDenied
	}

	prefix := fmt.Sprintf("extra_b_%d", taskID)
	if cat == models.PhotoCategoryAfter {
		prefix = fmt.Sprintf("extra_a_%d", taskID)
	}

	defer s.store.Share()()

	names, err := s.store.SaveAll(prefix, files)
	if err != nil {
		return nil, &StorageError{Stage: StageFile, Err: err}
	}

	updated, err := s.taskRepo.AppendPhotos(taskID, cat, names)
	if err != nil {
		s.store.RemoveAll(names)
		if repository.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, &StorageError{Stage: StageRow, Err: err}
	}

	return updated, nil
}

// RemovePhoto removes the photo at index from one list. When expected is set
// the removal only happens if that file is still at the index.
func (s *TaskService) RemovePhoto(session Session, taskID uint64, category string, index int, expected string) (*models.Task, error) {
	cat, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !session.CanEdit(task) {
		return nil, ErrPermissionDenied
	}

	removed, err := s.taskRepo.RemovePhoto(taskID, cat, index, expected)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			return nil, ErrTaskNotFound
		case errors.Is(err, repository.ErrPhotoIndexOutOfRange):
			return nil, ErrPhotoIndexOutOfRange
		case errors.Is(err, repository.ErrPhotoMismatch):
			return nil, ErrPhotoConflict
		default:
			return nil, fmt.Errorf("failed to remove photo: %w", err)
		}
	}

	s.collectOrphans([]string{removed})

	return s.GetTask(taskID)
}

// Rate records the admin rating and feedback for a task
func (s *TaskService) Rate(session Session, taskID uint64, rating int, feedback string) (*models.Task, error) {
	if !session.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if rating < constants.MinRating || rating > constants.MaxRating {
		return nil, ErrInvalidRating
	}

	if _, err := s.GetTask(taskID); err != nil {
		return nil, err
	}

	if err := s.taskRepo.UpdateColumns(taskID, map[string]interface{}{
		"rating":        rating,
		"admin_comment": feedback,
	}); err != nil {
		return nil, fmt.Errorf("failed to rate task: %w", err)
	}

	return s.GetTask(taskID)
}

// DeleteTask removes a task and the media files only it referenced
func (s *TaskService) DeleteTask(session Session, taskID uint64) error {
	if !session.IsAdmin() {
		return ErrPermissionDenied
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		if repository.IsNotFound(err) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	removed := s.collectOrphans(task.MediaRefs())
	logrus.WithFields(logrus.Fields{
		"user":          session.Username,
		"task_id":       taskID,
		"files_removed": removed,
	}).Info("task deleted")

	return nil
}

// WipeAll deletes every task and every media file. Accounts are kept.
func (s *TaskService) WipeAll(session Session, confirmation string) error {
	if !session.IsAdmin() {
		return ErrPermissionDenied
	}
	if confirmation != constants.WipeConfirmationPhrase {
		return ErrWipeNotConfirmed
	}

	defer s.store.Exclusive()()

	if err := s.taskRepo.DeleteAll(); err != nil {
		return &StorageError{Stage: StageRow, Err: err}
	}
	if err := s.store.Wipe(); err != nil {
		return &StorageError{Stage: StageFile, Err: err}
	}

	logrus.WithField("user", session.Username).Warn("all tasks and media wiped")
	return nil
}

// SweepOrphans removes every media file not referenced by any task and
// returns the removed names.
func (s *TaskService) SweepOrphans(session Session) ([]string, error) {
	if !session.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	defer s.store.Exclusive()()

	refs, err := s.taskRepo.ReferencedMedia()
	if err != nil {
		return nil, fmt.Errorf("failed to collect media references: %w", err)
	}
	files, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	removed := []string{}
	for _, f := range files {
		if _, ok := refs[f.Name]; ok {
			continue
		}
		if err := s.store.Remove(f.Name); err != nil {
			logrus.WithError(err).WithField("file", f.Name).Warn("failed to remove orphaned media")
			continue
		}
		removed = append(removed, f.Name)
	}

	logrus.WithFields(logrus.Fields{
		"user":          session.Username,
		"files_removed": len(removed),
	}).Info("media sweep finished")

	return removed, nil
}

// OpenMedia opens a stored media file for download
func (s *TaskService) OpenMedia(name string) (afero.File, error) {
	f, err := s.store.Open(name)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return f, nil
}

// collectOrphans removes the candidates no task references anymore and
// returns how many were removed. Failures are logged only.
func (s *TaskService) collectOrphans(candidates []string) int {
	if len(candidates) == 0 {
		return 0
	}

	defer s.store.Exclusive()()

	refs, err := s.taskRepo.ReferencedMedia()
	if err != nil {
		logrus.WithError(err).Warn("skipping media cleanup")
		return 0
	}

	var orphans []string
	for _, name := range candidates {
		if _, ok := refs[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	return s.store.RemoveAll(orphans)
}
