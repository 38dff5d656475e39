package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/utils"
)

// Paginate applies pagination to a GORM query. Unbounded params leave the
// query untouched.
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if params.Unbounded() {
			return db
		}
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// WithStatus restricts a task query to one status
func WithStatus(status *models.TaskStatus) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == nil {
			return db
		}
		return db.Where("status = ?", *status)
	}
}

// WithTechnician restricts a task query to one technician
func WithTechnician(technician *string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if technician == nil {
			return db
		}
		return db.Where("technician = ?", *technician)
	}
}

// NewestFirst orders tasks by descending id
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("id DESC")
}
