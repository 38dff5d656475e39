package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/maintenance-tracker/internal/middleware"
	"github.com/yukikurage/maintenance-tracker/internal/services"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth           *services.AuthService
	Tasks          *services.TaskService
	Users          *services.UserService
	Reports        *services.ReportService
	Admin          *services.AdminService
	MaxUploadBytes int64
}

// RegisterRoutes mounts the API under /api. Session middleware must already
// be installed on r.
func RegisterRoutes(r gin.IRouter, svc Services) {
	authHandler := NewAuthHandler(svc.Auth)
	taskHandler := NewTaskHandler(svc.Tasks, svc.MaxUploadBytes)
	userHandler := NewUserHandler(svc.Users)
	adminHandler := NewAdminHandler(svc.Tasks, svc.Reports, svc.Admin)

	requireAuth := middleware.RequireAuth(svc.Auth)
	requireTask := middleware.RequireTaskAccess(svc.Tasks)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.GetCurrentUser)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/:id", requireTask, taskHandler.GetTask)
			tasks.PATCH("/:id/fields", requireTask, taskHandler.UpdateField)
			tasks.PUT("/:id", requireTask, taskHandler.AdvancedEdit)
			tasks.POST("/:id/photos/:category", requireTask, taskHandler.AppendPhotos)
			tasks.DELETE("/:id/photos/:category/:index", requireTask, taskHandler.RemovePhoto)
			tasks.POST("/:id/rating", requireTask, middleware.RequireAdmin(), taskHandler.RateTask)
			tasks.DELETE("/:id", requireTask, middleware.RequireAdmin(), taskHandler.DeleteTask)
		}

		api.GET("/media/:name", requireAuth, taskHandler.DownloadMedia)

		// Admin console (admin only)
		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.RequireAdmin())
		{
			admin.GET("/users", userHandler.ListUsers)
			admin.POST("/users", userHandler.CreateUser)
			admin.PUT("/users/:username", userHandler.UpdateUser)
			admin.DELETE("/users/:username", userHandler.DeleteUser)
			admin.GET("/storage", adminHandler.StorageStats)
			admin.POST("/media/sweep", adminHandler.SweepMedia)
			admin.POST("/wipe", adminHandler.Wipe)
			admin.GET("/export", adminHandler.Export)
		}
	}
}
