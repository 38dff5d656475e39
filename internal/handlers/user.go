package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/maintenance-tracker/internal/dto"
	apierrors "github.com/yukikurage/maintenance-tracker/internal/errors"
	"github.com/yukikurage/maintenance-tracker/internal/middleware"
	"github.com/yukikurage/maintenance-tracker/internal/services"
)

// UserHandler serves account management for admins.
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers lists every account.
func (h *UserHandler) ListUsers(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	users, err := h.userService.ListUsers(session)
	if err != nil {
		respondUserError(c, err)
		return
	}

	items := make([]dto.UserDTO, len(users))
	for i, user := range users {
		items[i] = dto.ToUserDTO(user)
	}

	c.JSON(http.StatusOK, gin.H{"users": items})
}

// CreateUser adds an account.
func (h *UserHandler) CreateUser(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	type CreateUserRequest struct {
		Username string `json:"username" binding:"required,max=100"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.CreateUser(session, services.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// UpdateUser renames an account or changes its password or role in place.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	type UpdateUserRequest struct {
		NewUsername string `json:"new_username" binding:"max=100"`
		NewPassword string `json:"new_password"`
		Role        string `json:"role"`
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateUser(session, c.Param("username"), services.UpdateUserInput{
		NewUsername: req.NewUsername,
		NewPassword: req.NewPassword,
		Role:        req.Role,
	})
	if err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// DeleteUser removes an account.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	if err := h.userService.DeleteUser(session, c.Param("username")); err != nil {
		respondUserError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUsernameTaken):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrPermissionDenied),
		errors.Is(err, services.ErrProtectedAccount):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrUsernameRequired),
		errors.Is(err, services.ErrPasswordRequired),
		errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error())
	default:
		logrus.WithError(err).Error("account operation failed")
		apierrors.InternalError(c, "Internal server error")
	}
}
