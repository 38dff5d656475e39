package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strconv"

	"github.com/mholt/archives"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
	"github.com/yukikurage/maintenance-tracker/internal/media"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/repository"
)

var ErrNothingToExport = errors.New("no tasks to export")

var reportHeader = []interface{}{
	"ID",
	"Task Name",
	"Location",
	"Status",
	"Description",
	"Audio",
	"Before Photos",
	"After Photos",
	"Technician",
	"Rating",
	"Technician Comment",
	"Admin Comment",
	"Start Time",
	"End Time",
}

// 1-based spreadsheet columns holding photo links
const (
	beforePhotoCol = 7
	afterPhotoCol  = 8
)

// ReportService builds the spreadsheet log and the full backup archive.
type ReportService struct {
	taskRepo repository.TaskRepository
	store    *media.Store
}

// NewReportService creates a new ReportService
func NewReportService(taskRepo repository.TaskRepository, store *media.Store) *ReportService {
	return &ReportService{
		taskRepo: taskRepo,
		store:    store,
	}
}

// BuildReport returns the spreadsheet and a zip holding the spreadsheet plus
// every media file. It fails with ErrNothingToExport when there are no tasks.
func (s *ReportService) BuildReport(ctx context.Context) ([]byte, []byte, error) {
	// media removal waits until the archive has read every file
	defer s.store.Share()()

	tasks, err := s.taskRepo.All()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil, ErrNothingToExport
	}

	sheet, err := BuildSpreadsheet(tasks)
	if err != nil {
		return nil, nil, err
	}

	var archive bytes.Buffer
	if err := s.writeArchive(ctx, &archive, sheet); err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tasks": len(tasks),
		"bytes": archive.Len(),
	}).Info("report exported")

	return sheet, archive.Bytes(), nil
}

// BuildSpreadsheet renders one row per task. Photo cells link to the first
// file of the list under the archive media directory.
func BuildSpreadsheet(tasks []models.Task) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := constants.ReportSheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	linkStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "0000FF", Underline: "single"}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	header := reportHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(reportHeader), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i := range tasks {
		task := &tasks[i]
		row := i + 2

		audio := ""
		if task.AudioRef != nil {
			audio = *task.AudioRef
		}
		values := []interface{}{
			task.ID,
			task.Name,
			task.Location,
			task.Status.Label(),
			task.Description,
			audio,
			"",
			"",
			task.Technician,
			task.Rating,
			task.TechnicianComment,
			task.AdminComment,
			task.StartTime,
			task.EndTime,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return nil, fmt.Errorf("failed to write task %d: %w", task.ID, err)
		}

		for col, photos := range map[int][]string{
			beforePhotoCol: task.BeforePhotos,
			afterPhotoCol:  task.AfterPhotos,
		} {
			if len(photos) == 0 {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			if err := f.SetCellValue(sheet, cell, photoLinkText(len(photos))); err != nil {
				return nil, fmt.Errorf("failed to write photo cell: %w", err)
			}
			link := path.Join(constants.ArchiveMediaDir, photos[0])
			if err := f.SetCellHyperLink(sheet, cell, link, "External"); err != nil {
				return nil, fmt.Errorf("failed to link photo cell: %w", err)
			}
			if err := f.SetCellStyle(sheet, cell, cell, linkStyle); err != nil {
				return nil, fmt.Errorf("failed to style photo cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}

func photoLinkText(count int) string {
	if count <= 1 {
		return "View Image"
	}
	return "View Image (+" + strconv.Itoa(count-1) + " more)"
}

func (s *ReportService) writeArchive(ctx context.Context, w io.Writer, sheet []byte) error {
	scratch := afero.NewMemMapFs()
	if err := afero.WriteFile(scratch, constants.ReportFileName, sheet, 0o644); err != nil {
		return fmt.Errorf("failed to stage spreadsheet: %w", err)
	}

	sheetFile, err := archiveEntry(scratch, constants.ReportFileName, constants.ReportFileName)
	if err != nil {
		return err
	}
	files := []archives.FileInfo{sheetFile}

	stored, err := s.store.List()
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}
	for _, m := range stored {
		entry, err := archiveEntry(s.store.Fs(), filepath.Join(s.store.Dir(), m.Name), path.Join(constants.ArchiveMediaDir, m.Name))
		if err != nil {
			return err
		}
		files = append(files, entry)
	}

	format := archives.Zip{Compression: zip.Deflate}
	if err := format.Archive(ctx, w, files); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

func archiveEntry(fsys afero.Fs, name, nameInArchive string) (archives.FileInfo, error) {
	info, err := fsys.Stat(name)
	if err != nil {
		return archives.FileInfo{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return archives.FileInfo{
		FileInfo:      info,
		NameInArchive: nameInArchive,
		Open: func() (fs.File, error) {
			return fsys.Open(name)
		},
	}, nil
}
