package repository

import (
	"errors"
	"fmt"

	"github.com/yukikurage/maintenance-tracker/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new account
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// FindByUsername finds an account by username
func (r *GormUserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List lists all accounts ordered by username
func (r *GormUserRepository) List() ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update rewrites an account in place. When columns carries a new username the
// row is renamed, failing with ErrUsernameConflict if the name is taken.
func (r *GormUserRepository) Update(username string, columns map[string]interface{}) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var current models.User
		if err := tx.Where("username = ?", username).First(&current).Error; err != nil {
			return err
		}

		if newName, ok := columns["username"].(string); ok && newName != username {
			var taken int64
			if err := tx.Model(&models.User{}).Where("username = ?", newName).Count(&taken).Error; err != nil {
				return fmt.Errorf("failed to check username: %w", err)
			}
			if taken > 0 {
				return ErrUsernameConflict
			}
		}

		if len(columns) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("username = ?", username).Updates(columns).Error
	})
}

// Delete removes an account
func (r *GormUserRepository) Delete(username string) error {
	result := r.db.Where("username = ?", username).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count counts all accounts
func (r *GormUserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountByRole counts accounts with the given role
func (r *GormUserRepository) CountByRole(role models.Role) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

// IsNotFound reports whether err is GORM's record-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
