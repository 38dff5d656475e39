package database

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the indexes used by task listing filters
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		name    string
		columns []string
	}{
		{"idx_tasks_status", []string{"status"}},
		{"idx_tasks_technician", []string{"technician"}},
		{"idx_tasks_created_at", []string{"created_at"}},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(&models.Task{}, idx.name) {
			logrus.Debugf("Index %s already exists, skipping", idx.name)
			continue
		}

		stmt := db.Exec(fmt.Sprintf("CREATE INDEX %s ON tasks (%s)", idx.name, strings.Join(idx.columns, ", ")))
		if err := stmt.Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logrus.Infof("Created index %s on tasks(%s)", idx.name, strings.Join(idx.columns, ", "))
	}

	return nil
}

// MigrateDatabase runs the post-AutoMigrate steps
func MigrateDatabase(db *gorm.DB) error {
	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
