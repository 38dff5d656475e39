package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUserNotFound         = errors.New("user not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// Session identifies the account acting on a request. It is passed explicitly
// to every task and admin operation.
type Session struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// IsAdmin reports whether the session has the admin role.
func (s Session) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// CanEdit reports whether the session may modify the task: admins may edit
// anything, technicians only the tasks they created.
func (s Session) CanEdit(task *models.Task) bool {
	return s.IsAdmin() || (task != nil && task.Technician == s.Username)
}

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo repository.UserRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Username string
	Password string
}

// Authenticate verifies credentials and returns the session for the account.
func (s *AuthService) Authenticate(input LoginInput) (*Session, error) {
	user, err := s.userRepo.FindByUsername(input.Username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordDigest(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Session{Username: user.Username, Role: user.Role}, nil
}

// ResolveSession re-reads the account behind a stored session so that deleted
// accounts lose access and role changes apply on the next request.
func (s *AuthService) ResolveSession(username string) (*Session, error) {
	if username == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &Session{Username: user.Username, Role: user.Role}, nil
}

// HashPassword hashes a password of any length for storage.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(passwordDigest(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrFailedToHashPassword
	}
	return string(hashed), nil
}

// passwordDigest fits every password into bcrypt's 72 byte input limit.
func passwordDigest(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	digest := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(digest, sum[:])
	return digest
}
