package dto

import (
	"time"

	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/services"
)

// UserDTO represents an account in API responses
type UserDTO struct {
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID                uint64            `json:"id"`
	Name              string            `json:"name"`
	Location          string            `json:"location"`
	Status            models.TaskStatus `json:"status"`
	StatusLabel       string            `json:"status_label"`
	Description       string            `json:"description"`
	AudioRef          *string           `json:"audio_ref"`
	BeforePhotos      []string          `json:"before_photos"`
	AfterPhotos       []string          `json:"after_photos"`
	Technician        string            `json:"technician"`
	Rating            int               `json:"rating"`
	TechnicianComment string            `json:"technician_comment"`
	AdminComment      string            `json:"admin_comment"`
	StartTime         string            `json:"start_time"`
	EndTime           string            `json:"end_time"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CanEdit           bool              `json:"can_edit"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO `json:"tasks"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	dto := UserDTO{
		Username: user.Username,
		Role:     user.Role,
	}
	if !user.CreatedAt.IsZero() {
		createdAt := user.CreatedAt
		dto.CreatedAt = &createdAt
	}
	return dto
}

// ToSessionDTO converts a Session to UserDTO
func ToSessionDTO(session services.Session) UserDTO {
	return UserDTO{
		Username: session.Username,
		Role:     session.Role,
	}
}

// ToTaskDTO converts a Task model to TaskDTO as seen by the session
func ToTaskDTO(task models.Task, session services.Session) TaskDTO {
	return TaskDTO{
		ID:                task.ID,
		Name:              task.Name,
		Location:          task.Location,
		Status:            task.Status,
		StatusLabel:       task.Status.Decorated(),
		Description:       task.Description,
		AudioRef:          task.AudioRef,
		BeforePhotos:      nonNil(task.BeforePhotos),
		AfterPhotos:       nonNil(task.AfterPhotos),
		Technician:        task.Technician,
		Rating:            task.Rating,
		TechnicianComment: task.TechnicianComment,
		AdminComment:      task.AdminComment,
		StartTime:         task.StartTime,
		EndTime:           task.EndTime,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
		CanEdit:           session.CanEdit(&task),
	}
}

// ToTaskListResponse converts a slice of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, session services.Session, page, pageSize int, totalCount int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task, session)
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int(totalCount) / pageSize
		if int(totalCount)%pageSize > 0 {
			totalPages++
		}
	}

	return TaskListResponse{
		Tasks:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
