package constants

// Session and context keys
const (
	SessionCookieName  = "tracker_session"
	SessionKeyUsername = "username"
	ContextKeySession  = "session"
	ContextKeyTask     = "task"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Task rules
const (
	MinRating = 0
	MaxRating = 10

	// WipeConfirmationPhrase must be typed verbatim to clear all task data.
	WipeConfirmationPhrase = "WIPE"
)

// Media store
const (
	DefaultMediaDir = "task_assets"
	ArchiveMediaDir = "task_assets"
	ReportFileName  = "Maintenance_Log.xlsx"
	ReportSheetName = "Report"
	BackupFileName  = "Full_System_Backup.zip"
)

