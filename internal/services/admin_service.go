package services

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/yukikurage/maintenance-tracker/internal/media"
)

// StorageStats summarizes database and media disk usage.
type StorageStats struct {
	DatabaseBytes int64   `json:"database_bytes"`
	DatabaseSize  string  `json:"database_size"`
	MediaBytes    int64   `json:"media_bytes"`
	MediaSize     string  `json:"media_size"`
	MediaFiles    int     `json:"media_files"`
	DiskFreeBytes uint64  `json:"disk_free_bytes"`
	DiskFree      string  `json:"disk_free"`
	DiskUsedPct   float64 `json:"disk_used_percent"`
}

// AdminService reports storage usage for the admin console.
type AdminService struct {
	store *media.Store

	// dbFs and dbPath locate the sqlite file; dbPath is empty for server databases
	dbFs      afero.Fs
	dbPath    string
	diskUsage func(path string) (*disk.UsageStat, error)
}

// NewAdminService creates a new AdminService
func NewAdminService(store *media.Store, dbFs afero.Fs, dbPath string) *AdminService {
	return &AdminService{
		store:     store,
		dbFs:      dbFs,
		dbPath:    dbPath,
		diskUsage: disk.Usage,
	}
}

// StorageStats measures the database file, the media directory and the free
// space of the volume holding the media directory
func (s *AdminService) StorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	if s.dbPath != "" {
		info, err := s.dbFs.Stat(s.dbPath)
		if err == nil {
			stats.DatabaseBytes = info.Size()
		} else {
			logrus.WithError(err).Debug("database file not found")
		}
	}

	size, count, err := s.store.Usage()
	if err != nil {
		return nil, fmt.Errorf("failed to measure media: %w", err)
	}
	stats.MediaBytes = size
	stats.MediaFiles = count

	if usage, err := s.diskUsage(s.store.Dir()); err == nil {
		stats.DiskFreeBytes = usage.Free
		stats.DiskUsedPct = usage.UsedPercent
	} else {
		logrus.WithError(err).Debug("disk usage unavailable")
	}

	stats.DatabaseSize = FormatSize(stats.DatabaseBytes)
	stats.MediaSize = FormatSize(stats.MediaBytes)
	stats.DiskFree = FormatSize(int64(stats.DiskFreeBytes))

	return stats, nil
}

// FormatSize renders a byte count with a binary unit, e.g. "1.50KB".
func FormatSize(b int64) string {
	const factor = 1024.0
	v := float64(b)
	for _, unit := range []string{"", "K", "M", "G", "T"} {
		if v < factor {
			return fmt.Sprintf("%.2f%sB", v, unit)
		}
		v /= factor
	}
	return fmt.Sprintf("%.2fPB", v)
}
