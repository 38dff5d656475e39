package repository

import (
	"errors"

	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/utils"
)

var (
	// ErrPhotoIndexOutOfRange is returned when a photo position does not exist in the list.
	ErrPhotoIndexOutOfRange = errors.New("task repository: photo index out of range")
	// ErrPhotoMismatch is returned when the photo at the position is not the one the caller expected.
	ErrPhotoMismatch = errors.New("task repository: photo at index does not match")
	// ErrUnknownPhotoCategory is returned for a category without a backing column.
	ErrUnknownPhotoCategory = errors.New("task repository: unknown photo category")
	// ErrUsernameConflict is returned when renaming onto an existing username.
	ErrUsernameConflict = errors.New("user repository: username already exists")
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create inserts a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID
	FindByID(id uint64) (*models.Task, error)

	// List retrieves tasks newest first with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// All retrieves every task in ID order
	All() ([]models.Task, error)

	// UpdateColumns writes the given columns of one task in a single statement
	UpdateColumns(id uint64, columns map[string]interface{}) error

	// Edit rewrites scalar columns and appends photos atomically
	Edit(id uint64, columns map[string]interface{}, appendPhotos map[models.PhotoCategory][]string) (*models.Task, error)

	// AppendPhotos appends filenames to a photo list atomically
	AppendPhotos(id uint64, category models.PhotoCategory, names []string) (*models.Task, error)

	// RemovePhoto removes one element of a photo list atomically and returns it
	RemovePhoto(id uint64, category models.PhotoCategory, index int, expected string) (string, error)

	// Delete removes a task row
	Delete(id uint64) error

	// DeleteAll removes every task and resets the ID sequence
	DeleteAll() error

	// ReferencedMedia returns every media filename referenced by any task
	ReferencedMedia() (map[string]struct{}, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Status     *models.TaskStatus
	Technician *string
	Pagination utils.PaginationParams
}

// UserRepository defines the interface for account data access
type UserRepository interface {
	// Create creates a new account
	Create(user *models.User) error

	// FindByUsername finds an account by username
	FindByUsername(username string) (*models.User, error)

	// List lists all accounts ordered by username
	List() ([]models.User, error)

	// Update rewrites an account in place, possibly renaming it
	Update(username string, columns map[string]interface{}) error

	// Delete removes an account
	Delete(username string) error

	// Count counts all accounts
	Count() (int64, error)

	// CountByRole counts accounts with the given role
	CountByRole(role models.Role) (int64, error)
}
