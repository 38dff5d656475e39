package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/maintenance-tracker/internal/media"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/repository"
	"github.com/yukikurage/maintenance-tracker/internal/testutil"
	"gorm.io/gorm"
)

type failingCreateRepo struct {
	repository.TaskRepository
}

func (failingCreateRepo) Create(*models.Task) error {
	return errors.New("insert failed")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    repository.TaskRepository
	store   *media.Store
	service *TaskService
	admin   Session
	alice   Session
	bob     Session
}

func (suite *TaskServiceTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	suite.store = testutil.NewTestStore(suite.T())
	suite.repo = repository.NewTaskRepository(suite.db)
	suite.service = NewTaskService(suite.repo, suite.store)

	suite.admin = Session{Username: "admin", Role: models.RoleAdmin}
	suite.alice = Session{Username: "alice", Role: models.RoleTechnician}
	suite.bob = Session{Username: "bob", Role: models.RoleTechnician}
}

func upload(name, content string) media.Upload {
	return media.Upload{Filename: name, Content: strings.NewReader(content)}
}

func (suite *TaskServiceTestSuite) createTask(session Session, name string, before ...string) *models.Task {
	uploads := make([]media.Upload, 0, len(before))
	for _, b := range before {
		uploads = append(uploads, upload(b, b))
	}
	task, err := suite.service.CreateTask(session, CreateTaskInput{Name: name, BeforePhotos: uploads})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) mediaCount() int {
	files, err := suite.store.List()
	suite.Require().NoError(err)
	return len(files)
}

func (suite *TaskServiceTestSuite) TestCreateTask_RecordsSessionAsTechnician() {
	task, err := suite.service.CreateTask(suite.alice, CreateTaskInput{
		Name:         "  Belt Check ",
		Status:       "🟠 Awaiting Parts",
		BeforePhotos: []media.Upload{upload("belt.jpg", "x")},
		Audio:        &media.Upload{Filename: "note.m4a", Content: strings.NewReader("a")},
	})
	suite.Require().NoError(err)

	reloaded, err := suite.service.GetTask(task.ID)
	suite.Require().NoError(err)
	suite.Equal("Belt Check", reloaded.Name)
	suite.Equal("alice", reloaded.Technician)
	suite.Equal(models.TaskStatusAwaitingParts, reloaded.Status)
	suite.Equal(0, reloaded.Rating)
	suite.Len(reloaded.BeforePhotos, 1)
	suite.Empty(reloaded.AfterPhotos)
	suite.Require().NotNil(reloaded.AudioRef)
	suite.True(strings.HasPrefix(*reloaded.AudioRef, "audio_"))
	suite.Equal(2, suite.mediaCount())
}

func (suite *TaskServiceTestSuite) TestCreateTask_Validation() {
	_, err := suite.service.CreateTask(suite.alice, CreateTaskInput{Name: "   "})
	suite.ErrorIs(err, ErrNameRequired)

	_, err = suite.service.CreateTask(suite.alice, CreateTaskInput{Name: "Pump", Status: "exploded"})
	suite.ErrorIs(err, ErrInvalidStatus)

	suite.Zero(suite.mediaCount())
}

func (suite *TaskServiceTestSuite) TestCreateTask_RowFailureRemovesFiles() {
	service := NewTaskService(failingCreateRepo{suite.repo}, suite.store)

	_, err := service.CreateTask(suite.alice, CreateTaskInput{
		Name:         "Pump",
		BeforePhotos: []media.Upload{upload("a.jpg", "a"), upload("b.jpg", "b")},
		AfterPhotos:  []media.Upload{upload("c.jpg", "c")},
	})

	var storageErr *StorageError
	suite.Require().ErrorAs(err, &storageErr)
	suite.Equal(StageRow, storageErr.Stage)
	suite.Zero(suite.mediaCount())
}

func (suite *TaskServiceTestSuite) TestCreateTask_FileFailureRemovesFiles() {
	_, err := suite.service.CreateTask(suite.alice, CreateTaskInput{
		Name:         "Pump",
		BeforePhotos: []media.Upload{upload("a.jpg", "a")},
		AfterPhotos:  []media.Upload{{Filename: "b.jpg", Content: failingReader{}}},
	})

	var storageErr *StorageError
	suite.Require().ErrorAs(err, &storageErr)
	suite.Equal(StageFile, storageErr.Stage)
	suite.Zero(suite.mediaCount())

	tasks, total, err := suite.service.ListTasks(ListTasksInput{})
	suite.Require().NoError(err)
	suite.Empty(tasks)
	suite.Zero(total)
}

func (suite *TaskServiceTestSuite) TestUpdateField() {
	task := suite.createTask(suite.alice, "Pump")

	updated, err := suite.service.UpdateField(suite.alice, task.ID, "location", "Hall B")
	suite.Require().NoError(err)
	suite.Equal("Hall B", updated.Location)

	updated, err = suite.service.UpdateField(suite.admin, task.ID, "status", "Completed")
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusCompleted, updated.Status)

	_, err = suite.service.UpdateField(suite.bob, task.ID, "location", "Hall C")
	suite.ErrorIs(err, ErrPermissionDenied)

	_, err = suite.service.UpdateField(suite.alice, task.ID, "technician", "bob")
	suite.ErrorIs(err, ErrFieldNotEditable)

	_, err = suite.service.UpdateField(suite.alice, task.ID, "rating", "10")
	suite.ErrorIs(err, ErrFieldNotEditable)

	_, err = suite.service.UpdateField(suite.alice, task.ID, "colour", "red")
	suite.ErrorIs(err, ErrUnknownField)

	_, err = suite.service.UpdateField(suite.alice, task.ID, "name", " ")
	suite.ErrorIs(err, ErrNameRequired)

	_, err = suite.service.UpdateField(suite.alice, 999, "location", "x")
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestAppendPhotos_AppendsInOrder() {
	task := suite.createTask(suite.alice, "Pump", "a.jpg")

	first, err := suite.service.AppendPhotos(suite.alice, task.ID, "before", []media.Upload{upload("b.jpg", "b")})
	suite.Require().NoError(err)
	second, err := suite.service.AppendPhotos(suite.alice, task.ID, "before", []media.Upload{upload("c.jpg", "c"), upload("d.jpg", "d")})
	suite.Require().NoError(err)

	suite.Len(first.BeforePhotos, 2)
	suite.Require().Len(second.BeforePhotos, 4)
	suite.Equal(first.BeforePhotos[0], second.BeforePhotos[0])
	suite.Equal(first.BeforePhotos[1], second.BeforePhotos[1])
	suite.True(strings.HasSuffix(second.BeforePhotos[2], "_c.jpg"))
	suite.True(strings.HasSuffix(second.BeforePhotos[3], "_d.jpg"))
	suite.True(strings.HasPrefix(second.BeforePhotos[3], "extra_b_1_"))
}

func (suite *TaskServiceTestSuite) TestAppendPhotos_Errors() {
	task := suite.createTask(suite.alice, "Pump")

	_, err := suite.service.AppendPhotos(suite.alice, task.ID, "during", []media.Upload{upload("x.jpg", "x")})
	suite.ErrorIs(err, ErrInvalidCategory)

	_, err = suite.service.AppendPhotos(suite.alice, task.ID, "after", nil)
	suite.ErrorIs(err, ErrNoFiles)

	_, err = suite.service.AppendPhotos(suite.bob, task.ID, "after", []media.Upload{upload("x.jpg", "x")})
	suite.ErrorIs(err, ErrPermissionDenied)
	suite.Zero(suite.mediaCount())
}

func (suite *TaskServiceTestSuite) TestRemovePhoto() {
	task := suite.createTask(suite.alice, "Pump", "a.jpg", "b.jpg", "c.jpg")
	original := task.BeforePhotos

	updated, err := suite.service.RemovePhoto(suite.alice, task.ID, "before", 1, "")
	suite.Require().NoError(err)
	suite.Equal([]string{original[0], original[2]}, []string(updated.BeforePhotos))
	suite.Equal(2, suite.mediaCount())

	_, err = suite.service.RemovePhoto(suite.alice, task.ID, "before", 0, original[2])
	suite.ErrorIs(err, ErrPhotoConflict)

	_, err = suite.service.RemovePhoto(suite.alice, task.ID, "before", 7, "")
	suite.ErrorIs(err, ErrPhotoIndexOutOfRange)

	_, err = suite.service.RemovePhoto(suite.bob, task.ID, "before", 0, "")
	suite.ErrorIs(err, ErrPermissionDenied)

	_, err = suite.service.RemovePhoto(suite.alice, task.ID, "before", 0, original[0])
	suite.Require().NoError(err)
	updated, err = suite.service.RemovePhoto(suite.alice, task.ID, "before", 0, "")
	suite.Require().NoError(err)
	suite.NotNil(updated.BeforePhotos)
	suite.Empty(updated.BeforePhotos)
	suite.Zero(suite.mediaCount())
}

func (suite *TaskServiceTestSuite) TestAdvancedEdit() {
	task := suite.createTask(suite.alice, "Pump", "a.jpg")
	name := "Pump (rebuilt)"
	status := "completed"

	updated, err := suite.service.AdvancedEdit(suite.alice, task.ID, AdvancedEditInput{
		Name:        &name,
		Status:      &status,
		AfterPhotos: []media.Upload{upload("done.jpg", "d")},
	})
	suite.Require().NoError(err)
	suite.Equal(name, updated.Name)
	suite.Equal(models.TaskStatusCompleted, updated.Status)
	suite.Len(updated.BeforePhotos, 1)
	suite.Require().Len(updated.AfterPhotos, 1)
	suite.True(strings.HasPrefix(updated.AfterPhotos[0], "extra_a_1_"))

	empty := " "
	_, err = suite.service.AdvancedEdit(suite.alice, task.ID, AdvancedEditInput{Name: &empty})
	suite.ErrorIs(err, ErrNameRequired)

	_, err = suite.service.AdvancedEdit(suite.bob, task.ID, AdvancedEditInput{Name: &name})
	suite.ErrorIs(err, ErrPermissionDenied)
}

func (suite *TaskServiceTestSuite) TestRateAndDeleteAreAdminOnly() {
	task := suite.createTask(suite.alice, "Pump", "a.jpg")

	_, err := suite.service.Rate(suite.alice, task.ID, 9, "self review")
	suite.ErrorIs(err, ErrPermissionDenied)
	suite.ErrorIs(suite.service.DeleteTask(suite.alice, task.ID), ErrPermissionDenied)

	_, err = suite.service.Rate(suite.admin, task.ID, 11, "")
	suite.ErrorIs(err, ErrInvalidRating)
	_, err = suite.service.Rate(suite.admin, task.ID, -1, "")
	suite.ErrorIs(err, ErrInvalidRating)

	rated, err := suite.service.Rate(suite.admin, task.ID, 10, "spotless")
	suite.Require().NoError(err)
	suite.Equal(10, rated.Rating)
	suite.Equal("spotless", rated.AdminComment)

	suite.Require().NoError(suite.service.DeleteTask(suite.admin, task.ID))
	_, err = suite.service.GetTask(task.ID)
	suite.ErrorIs(err, ErrTaskNotFound)
	suite.Zero(suite.mediaCount())

	suite.ErrorIs(suite.service.DeleteTask(suite.admin, task.ID), ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestSweepOrphans_RemovesOnlyUnreferenced() {
	task := suite.createTask(suite.alice, "Pump", "a.jpg")
	orphan, err := suite.store.Save("stray", upload("x.jpg", "x"))
	suite.Require().NoError(err)

	_, err = suite.service.SweepOrphans(suite.alice)
	suite.ErrorIs(err, ErrPermissionDenied)

	removed, err := suite.service.SweepOrphans(suite.admin)
	suite.Require().NoError(err)
	suite.Equal([]string{orphan}, removed)

	files, err := suite.store.List()
	suite.Require().NoError(err)
	suite.Require().Len(files, 1)
	suite.Equal(task.BeforePhotos[0], files[0].Name)
}

func (suite *TaskServiceTestSuite) TestWipeAll() {
	suite.createTask(suite.alice, "one", "a.jpg")
	suite.createTask(suite.alice, "two", "b.jpg")

	suite.ErrorIs(suite.service.WipeAll(suite.alice, "WIPE"), ErrPermissionDenied)
	suite.ErrorIs(suite.service.WipeAll(suite.admin, "wipe"), ErrWipeNotConfirmed)

	suite.Require().NoError(suite.service.WipeAll(suite.admin, "WIPE"))

	tasks, total, err := suite.service.ListTasks(ListTasksInput{})
	suite.Require().NoError(err)
	suite.Zero(total)
	suite.Empty(tasks)
	suite.Zero(suite.mediaCount())

	fresh := suite.createTask(suite.alice, "fresh")
	suite.Equal(uint64(1), fresh.ID)
}

func (suite *TaskServiceTestSuite) TestListTasks_Filters() {
	suite.createTask(suite.alice, "one")
	suite.createTask(suite.bob, "two")

	tasks, total, err := suite.service.ListTasks(ListTasksInput{Technician: "bob"})
	suite.Require().NoError(err)
	suite.Equal(int64(1), total)
	suite.Equal("two", tasks[0].Name)

	_, _, err = suite.service.ListTasks(ListTasksInput{Status: "nope"})
	suite.ErrorIs(err, ErrInvalidStatus)
}

func (suite *TaskServiceTestSuite) TestOpenMedia() {
	task := suite.createTask(suite.alice, "Pump", "a.jpg")

	f, err := suite.service.OpenMedia(task.BeforePhotos[0])
	suite.Require().NoError(err)
	f.Close()

	_, err = suite.service.OpenMedia("missing.jpg")
	suite.ErrorIs(err, ErrMediaNotFound)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}

func TestSession_CanEdit(t *testing.T) {
	task := &models.Task{Technician: "alice"}

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{"owner", Session{Username: "alice", Role: models.RoleTechnician}, true},
		{"other technician", Session{Username: "bob", Role: models.RoleTechnician}, false},
		{"admin", Session{Username: "root", Role: models.RoleAdmin}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.CanEdit(task); got != tt.want {
				t.Errorf("CanEdit() = %v, want %v", got, tt.want)
			}
		})
	}
}
