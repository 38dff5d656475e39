package repository

import (
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/testutil"
	"github.com/yukikurage/maintenance-tracker/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TaskRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo TaskRepository
}

func (suite *TaskRepositoryTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	suite.repo = NewTaskRepository(suite.db)
}

func (suite *TaskRepositoryTestSuite) createTask(name, technician string, before ...string) *models.Task {
	task := &models.Task{
		Name:         name,
		Status:       models.TaskStatusInProgress,
		Technician:   technician,
		BeforePhotos: datatypes.JSONSlice[string](before),
	}
	suite.Require().NoError(suite.repo.Create(task))
	return task
}

func (suite *TaskRepositoryTestSuite) TestCreate_AssignsIncreasingIDs() {
	first := suite.createTask("Pump Replacement", "alice")
	second := suite.createTask("Belt Check", "alice")

	suite.Equal(uint64(1), first.ID)
	suite.Equal(uint64(2), second.ID)
	suite.NotNil(second.AfterPhotos)
}

func (suite *TaskRepositoryTestSuite) TestList_NewestFirstWithFilters() {
	suite.createTask("one", "alice")
	suite.createTask("two", "bob")
	third := suite.createTask("three", "alice")
	suite.Require().NoError(suite.repo.UpdateColumns(third.ID, map[string]interface{}{"status": models.TaskStatusCompleted}))

	tasks, total, err := suite.repo.List(TaskFilter{})
	suite.Require().NoError(err)
	suite.Equal(int64(3), total)
	suite.Equal([]string{"three", "two", "one"}, names(tasks))

	technician := "alice"
	tasks, total, err = suite.repo.List(TaskFilter{Technician: &technician})
	suite.Require().NoError(err)
	suite.Equal(int64(2), total)
	suite.Equal([]string{"three", "one"}, names(tasks))

	status := models.TaskStatusCompleted
	tasks, _, err = suite.repo.List(TaskFilter{Status: &status})
	suite.Require().NoError(err)
	suite.Equal([]string{"three"}, names(tasks))

	tasks, total, err = suite.repo.List(TaskFilter{Pagination: utils.PaginationParams{Page: 2, Limit: 2, Offset: 2}})
	suite.Require().NoError(err)
	suite.Equal(int64(3), total)
	suite.Equal([]string{"one"}, names(tasks))
}

func (suite *TaskRepositoryTestSuite) TestAppendPhotos_KeepsOrder() {
	task := suite.createTask("Pump", "alice", "a.jpg")

	updated, err := suite.repo.AppendPhotos(task.ID, models.PhotoCategoryBefore, []string{"b.jpg", "c.jpg"})
	suite.Require().NoError(err)
	suite.Equal([]string{"a.jpg", "b.jpg", "c.jpg"}, []string(updated.BeforePhotos))

	reloaded, err := suite.repo.FindByID(task.ID)
	suite.Require().NoError(err)
	suite.Equal([]string{"a.jpg", "b.jpg", "c.jpg"}, []string(reloaded.BeforePhotos))
	suite.Empty(reloaded.AfterPhotos)
}

func (suite *TaskRepositoryTestSuite) TestAppendPhotos_ConcurrentAppendsAreNotLost() {
	task := suite.createTask("Pump", "alice")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := suite.repo.AppendPhotos(task.ID, models.PhotoCategoryAfter, []string{string(rune('a'+i)) + ".jpg"})
			assert.NoError(suite.T(), err)
		}(i)
	}
	wg.Wait()

	reloaded, err := suite.repo.FindByID(task.ID)
	suite.Require().NoError(err)
	suite.Len(reloaded.AfterPhotos, 10)
}

func (suite *TaskRepositoryTestSuite) TestRemovePhoto() {
	task := suite.createTask("Pump", "alice", "a.jpg", "b.jpg", "c.jpg")

	removed, err := suite.repo.RemovePhoto(task.ID, models.PhotoCategoryBefore, 1, "")
	suite.Require().NoError(err)
	suite.Equal("b.jpg", removed)

	reloaded, err := suite.repo.FindByID(task.ID)
	suite.Require().NoError(err)
	suite.Equal([]string{"a.jpg", "c.jpg"}, []string(reloaded.BeforePhotos))

	_, err = suite.repo.RemovePhoto(task.ID, models.PhotoCategoryBefore, 5, "")
	suite.ErrorIs(err, ErrPhotoIndexOutOfRange)

	_, err = suite.repo.RemovePhoto(task.ID, models.PhotoCategoryBefore, 0, "c.jpg")
	suite.ErrorIs(err, ErrPhotoMismatch)

	_, err = suite.repo.RemovePhoto(999, models.PhotoCategoryBefore, 0, "")
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (suite *TaskRepositoryTestSuite) TestEdit_UpdatesColumnsAndAppends() {
	task := suite.createTask("Pump", "alice", "a.jpg")

	updated, err := suite.repo.Edit(task.ID,
		map[string]interface{}{"name": "Pump v2", "location": "Hall B"},
		map[models.PhotoCategory][]string{models.PhotoCategoryAfter: {"x.jpg"}},
	)
	suite.Require().NoError(err)
	suite.Equal("Pump v2", updated.Name)
	suite.Equal("Hall B", updated.Location)
	suite.Equal([]string{"a.jpg"}, []string(updated.BeforePhotos))
	suite.Equal([]string{"x.jpg"}, []string(updated.AfterPhotos))
	suite.Equal("alice", updated.Technician)
}

func (suite *TaskRepositoryTestSuite) TestDelete() {
	task := suite.createTask("Pump", "alice")

	suite.Require().NoError(suite.repo.Delete(task.ID))
	suite.ErrorIs(suite.repo.Delete(task.ID), gorm.ErrRecordNotFound)
}

func (suite *TaskRepositoryTestSuite) TestDeleteAll_ResetsSequence() {
	suite.createTask("one", "alice")
	suite.createTask("two", "alice")

	suite.Require().NoError(suite.repo.DeleteAll())

	tasks, total, err := suite.repo.List(TaskFilter{})
	suite.Require().NoError(err)
	suite.Zero(total)
	suite.Empty(tasks)

	next := suite.createTask("fresh", "alice")
	suite.Equal(uint64(1), next.ID)
}

func (suite *TaskRepositoryTestSuite) TestReferencedMedia() {
	audio := "audio_1.mp3"
	task := suite.createTask("Pump", "alice", "a.jpg")
	suite.Require().NoError(suite.repo.UpdateColumns(task.ID, map[string]interface{}{"audio_ref": audio}))
	_, err := suite.repo.AppendPhotos(task.ID, models.PhotoCategoryAfter, []string{"b.jpg"})
	suite.Require().NoError(err)

	refs, err := suite.repo.ReferencedMedia()
	suite.Require().NoError(err)
	suite.Len(refs, 3)
	suite.Contains(refs, "a.jpg")
	suite.Contains(refs, "b.jpg")
	suite.Contains(refs, audio)
}

func TestTaskRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TaskRepositoryTestSuite))
}

func names(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Name
	}
	return out
}

func TestDeleteAll_PostgresRestartsSequence(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "tasks"`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER SEQUENCE tasks_id_seq RESTART WITH 1`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, NewTaskRepository(db).DeleteAll())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAll_MySQLResetsAutoIncrement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `tasks`")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE tasks AUTO_INCREMENT = 1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, NewTaskRepository(db).DeleteAll())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAll_RollsBackWhenResetFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "tasks"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER SEQUENCE`)).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = NewTaskRepository(db).DeleteAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset task sequence")
	assert.NoError(t, mock.ExpectationsWereMet())
}
