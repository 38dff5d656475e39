package repository

import (
	"fmt"
	"sync"

	"github.com/yukikurage/maintenance-tracker/internal/database"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB

	// serializes read-modify-write of photo lists within this process;
	// sqlite has no row locks to back SELECT ... FOR UPDATE
	mu sync.Mutex
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create inserts a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	if task.BeforePhotos == nil {
		task.BeforePhotos = datatypes.JSONSlice[string]{}
	}
	if task.AfterPhotos == nil {
		task.AfterPhotos = datatypes.JSONSlice[string]{}
	}
	return r.db.Create(task).Error
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(id uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks newest first with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	filtered := func() *gorm.DB {
		return r.db.Model(&models.Task{}).Scopes(
			database.WithStatus(filter.Status),
			database.WithTechnician(filter.Technician),
		)
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := filtered().Scopes(database.NewestFirst, database.Paginate(filter.Pagination))

	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// All retrieves every task in ID order
func (r *GormTaskRepository) All() ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateColumns writes the given columns of one task in a single statement
func (r *GormTaskRepository) UpdateColumns(id uint64, columns map[string]interface{}) error {
	return r.db.Model(&models.Task{}).Where("id = ?", id).Updates(columns).Error
}

// Edit rewrites scalar columns and appends photos atomically
func (r *GormTaskRepository) Edit(id uint64, columns map[string]interface{}, appendPhotos map[models.PhotoCategory][]string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var task models.Task
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockTask(tx, id, &task); err != nil {
			return err
		}

		updates := make(map[string]interface{}, len(columns)+len(appendPhotos))
		for k, v := range columns {
			updates[k] = v
		}
		for category, names := range appendPhotos {
			if len(names) == 0 {
				continue
			}
			column, ok := category.Column()
			if !ok {
				return ErrUnknownPhotoCategory
			}
			updates[column] = joinPhotos(task.Photos(category), names)
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&task, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// AppendPhotos appends filenames to a photo list atomically
func (r *GormTaskRepository) AppendPhotos(id uint64, category models.PhotoCategory, names []string) (*models.Task, error) {
	return r.Edit(id, nil, map[models.PhotoCategory][]string{category: names})
}

// RemovePhoto removes one element of a photo list atomically and returns it
func (r *GormTaskRepository) RemovePhoto(id uint64, category models.PhotoCategory, index int, expected string) (string, error) {
	column, ok := category.Column()
	if !ok {
		return "", ErrUnknownPhotoCategory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := lockTask(tx, id, &task); err != nil {
			return err
		}

		photos := task.Photos(category)
		if index < 0 || index >= len(photos) {
			return ErrPhotoIndexOutOfRange
		}
		if expected != "" && photos[index] != expected {
			return ErrPhotoMismatch
		}

		removed = photos[index]
		remaining := make(datatypes.JSONSlice[string], 0, len(photos)-1)
		remaining = append(remaining, photos[:index]...)
		remaining = append(remaining, photos[index+1:]...)

		return tx.Model(&models.Task{}).Where("id = ?", id).Update(column, remaining).Error
	})
	if err != nil {
		return "", err
	}
	return removed, nil
}

// Delete removes a task row
func (r *GormTaskRepository) Delete(id uint64) error {
	result := r.db.Delete(&models.Task{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAll removes every task and resets the ID sequence
func (r *GormTaskRepository) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		if err := resetTaskSequence(tx); err != nil {
			return fmt.Errorf("failed to reset task sequence: %w", err)
		}
		return nil
	})
}

// ReferencedMedia returns every media filename referenced by any task
func (r *GormTaskRepository) ReferencedMedia() (map[string]struct{}, error) {
	var tasks []models.Task
	if err := r.db.Select("id", "before_photos", "after_photos", "audio_ref").Find(&tasks).Error; err != nil {
		return nil, err
	}

	refs := make(map[string]struct{})
	for i := range tasks {
		for _, name := range tasks[i].MediaRefs() {
			refs[name] = struct{}{}
		}
	}
	return refs, nil
}

func lockTask(tx *gorm.DB, id uint64, task *models.Task) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(task, id).Error
}

func joinPhotos(existing, added []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(existing)+len(added))
	out = append(out, existing...)
	return append(out, added...)
}

func resetTaskSequence(tx *gorm.DB) error {
	switch tx.Dialector.Name() {
	case "sqlite":
		if !tx.Migrator().HasTable("sqlite_sequence") {
			return nil
		}
		return tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", "tasks").Error
	case "postgres":
		return tx.Exec("ALTER SEQUENCE tasks_id_seq RESTART WITH 1").Error
	case "mysql":
		return tx.Exec("ALTER TABLE tasks AUTO_INCREMENT = 1").Error
	default:
		return nil
	}
}
