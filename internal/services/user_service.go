package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/repository"
)

var (
	ErrUsernameTaken    = errors.New("username already exists")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrInvalidRole      = errors.New("role must be technician or admin")
	ErrProtectedAccount = errors.New("account is protected")
)

// UserService manages accounts from the admin console.
type UserService struct {
	userRepo       repository.UserRepository
	bootstrapAdmin string

	// serializes admin-count checks with the writes that depend on them
	mu sync.Mutex
}

// NewUserService creates a new UserService. bootstrapAdmin names the seeded
// account that can never be deleted, renamed or demoted.
func NewUserService(userRepo repository.UserRepository, bootstrapAdmin string) *UserService {
	return &UserService{
		userRepo:       userRepo,
		bootstrapAdmin: bootstrapAdmin,
	}
}

// CreateUserInput holds a new account
type CreateUserInput struct {
	Username string
	Password string
	Role     string
}

// UpdateUserInput rewrites an account in place. Blank values keep the
// current username, password or role.
type UpdateUserInput struct {
	NewUsername string
	NewPassword string
	Role        string
}

// EnsureBootstrapAdmin seeds the initial admin when no account exists.
// It reports whether an account was created.
func (s *UserService) EnsureBootstrapAdmin(password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.userRepo.Count()
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if err := s.userRepo.Create(&models.User{
		Username:     s.bootstrapAdmin,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}); err != nil {
		return false, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	logrus.WithField("username", s.bootstrapAdmin).Warn("Seeded bootstrap admin account, change its password")
	return true, nil
}

// ListUsers lists every account
func (s *UserService) ListUsers(session Session) ([]models.User, error) {
	if !session.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	users, err := s.userRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateUser adds an account
func (s *UserService) CreateUser(session Session, input CreateUserInput) (*models.User, error) {
	if !session.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if input.Password == "" {
		return nil, ErrPasswordRequired
	}
	role := models.RoleTechnician
	if input.Role != "" {
		r, ok := models.ParseRole(input.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		role = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user":    session.Username,
		"account": username,
		"role":    role,
	}).Info("account created")

	return user, nil
}

// UpdateUser renames an account and/or changes its password or role in place.
// Tasks keep the technician name they were created with.
func (s *UserService) UpdateUser(session Session, username string, input UpdateUserInput) (*models.User, error) {
	if !session.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	columns := make(map[string]interface{})

	newUsername := strings.TrimSpace(input.NewUsername)
	if newUsername != "" && newUsername != username {
		if username == s.bootstrapAdmin {
			return nil, ErrProtectedAccount
		}
		columns["username"] = newUsername
	}

	if input.Role != "" {
		role, ok := models.ParseRole(input.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		if role != current.Role {
			if username == s.bootstrapAdmin {
				return nil, ErrProtectedAccount
			}
			if current.Role == models.RoleAdmin {
				if err := s.ensureOtherAdmin(); err != nil {
					return nil, err
				}
			}
			columns["role"] = role
		}
	}

	if input.NewPassword != "" {
		hash, err := HashPassword(input.NewPassword)
		if err != nil {
			return nil, err
		}
		columns["password_hash"] = hash
	}

	if len(columns) == 0 {
		return current, nil
	}

	if err := s.userRepo.Update(username, columns); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameConflict):
			return nil, ErrUsernameTaken
		case repository.IsNotFound(err):
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	finalName := username
	if name, ok := columns["username"].(string); ok {
		finalName = name
	}

	logrus.WithFields(logrus.Fields{
		"user":    session.Username,
		"account": username,
		"renamed": finalName != username,
	}).Info("account updated")

	return s.userRepo.FindByUsername(finalName)
}

// DeleteUser removes an account. The bootstrap admin and the last remaining
// admin cannot be deleted.
func (s *UserService) DeleteUser(session Session, username string) error {
	if !session.IsAdmin() {
		return ErrPermissionDenied
	}
	if username == s.bootstrapAdmin {
		return ErrProtectedAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user.Role == models.RoleAdmin {
		if err := s.ensureOtherAdmin(); err != nil {
			return err
		}
	}

	if err := s.userRepo.Delete(username); err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user":    session.Username,
		"account": username,
	}).Info("account deleted")

	return nil
}

// ensureOtherAdmin fails when at most one admin exists
func (s *UserService) ensureOtherAdmin() error {
	admins, err := s.userRepo.CountByRole(models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if admins <= 1 {
		return ErrProtectedAccount
	}
	return nil
}
