package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskStatusInProgress    TaskStatus = "in_progress"
	TaskStatusAwaitingParts TaskStatus = "awaiting_parts"
	TaskStatusCompleted     TaskStatus = "completed"
)

var statusLabels = map[TaskStatus]string{
	TaskStatusInProgress:    "In Progress",
	TaskStatusAwaitingParts: "Awaiting Parts",
	TaskStatusCompleted:     "Completed",
}

var statusMarkers = map[TaskStatus]string{
	TaskStatusInProgress:    "🟡",
	TaskStatusAwaitingParts: "🟠",
	TaskStatusCompleted:     "🟢",
}

// Label returns the plain human-readable status.
func (s TaskStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Decorated returns the label prefixed with its colour marker.
func (s TaskStatus) Decorated() string {
	if m, ok := statusMarkers[s]; ok {
		return m + " " + s.Label()
	}
	return s.Label()
}

// ParseTaskStatus accepts the stored value, the plain label or the decorated label.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	v := strings.TrimSpace(s)
	for _, marker := range statusMarkers {
		if strings.HasPrefix(v, marker) {
			v = strings.TrimSpace(strings.TrimPrefix(v, marker))
			break
		}
	}
	norm := strings.ReplaceAll(strings.ToLower(v), " ", "_")
	switch TaskStatus(norm) {
	case TaskStatusInProgress, TaskStatusAwaitingParts, TaskStatusCompleted:
		return TaskStatus(norm), true
	}
	return "", false
}

type PhotoCategory string

const (
	PhotoCategoryBefore PhotoCategory = "before"
	PhotoCategoryAfter  PhotoCategory = "after"
)

// Column returns the tasks column holding the category's filename list.
func (c PhotoCategory) Column() (string, bool) {
	switch c {
	case PhotoCategoryBefore:
		return "before_photos", true
	case PhotoCategoryAfter:
		return "after_photos", true
	default:
		return "", false
	}
}

type Task struct {
	ID                uint64                      `gorm:"primarykey" json:"id"`
	Name              string                      `gorm:"type:varchar(255);not null" json:"name"`
	Location          string                      `gorm:"type:varchar(255)" json:"location"`
	Status            TaskStatus                  `gorm:"type:varchar(20);not null;default:'in_progress'" json:"status"`
	Description       string                      `gorm:"type:text" json:"description"`
	AudioRef          *string                     `gorm:"type:varchar(512)" json:"audio_ref"`
	BeforePhotos      datatypes.JSONSlice[string] `json:"before_photos"`
	AfterPhotos       datatypes.JSONSlice[string] `json:"after_photos"`
	Technician        string                      `gorm:"type:varchar(100);not null" json:"technician"`
	Rating            int                         `gorm:"not null;default:0" json:"rating"`
	TechnicianComment string                      `gorm:"type:text" json:"technician_comment"`
	AdminComment      string                      `gorm:"type:text" json:"admin_comment"`
	StartTime         string                      `gorm:"type:varchar(32)" json:"start_time"`
	EndTime           string                      `gorm:"type:varchar(32)" json:"end_time"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// Photos returns the filename list for a category.
func (t *Task) Photos(category PhotoCategory) []string {
	switch category {
	case PhotoCategoryBefore:
		return t.BeforePhotos
	case PhotoCategoryAfter:
		return t.AfterPhotos
	default:
		return nil
	}
}

// MediaRefs lists every media filename the task references.
func (t *Task) MediaRefs() []string {
	refs := make([]string, 0, len(t.BeforePhotos)+len(t.AfterPhotos)+1)
	refs = append(refs, t.BeforePhotos...)
	refs = append(refs, t.AfterPhotos...)
	if t.AudioRef != nil && *t.AudioRef != "" {
		refs = append(refs, *t.AudioRef)
	}
	return refs
}
