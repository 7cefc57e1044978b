package tasks

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"collageapi/collage"
	"collageapi/dbhelper"
	"collageapi/models"
	"collageapi/services"
	"collageapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTaskTest(t *testing.T) (*gorm.DB, *services.StorageService, func()) {
	t.Helper()
	os.Setenv("STORAGE_PATH", t.TempDir())
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	storage := services.NewStorageService()
	require.NoError(t, storage.EnsureDirs())
	for _, file := range services.BackgroundTemplates {
		path := filepath.Join(storage.Root, "backgrounds", file)
		require.NoError(t, os.WriteFile(path, test.PNGBytes(64, 64, color.NRGBA{250, 218, 221, 255}), 0o644))
	}
	return db, storage, cleaner
}

func makeProcessableSession(t *testing.T, db *gorm.DB, storage *services.StorageService, slackUserID string) *models.CollageSession {
	t.Helper()
	session := &models.CollageSession{
		SlackUserID:    slackUserID,
		SlackChannelID: "C1",
		Status:         models.SessionProcessing,
	}
	require.NoError(t, db.Create(session).Error)

	img1 := fmt.Sprintf("inputs/%d_1.png", session.ID)
	img2 := fmt.Sprintf("inputs/%d_2.png", session.ID)
	require.NoError(t, os.WriteFile(storage.FullPath(img1), test.PNGBytes(80, 80, color.NRGBA{240, 240, 240, 255}), 0o644))
	require.NoError(t, os.WriteFile(storage.FullPath(img2), test.PNGBytes(80, 80, color.NRGBA{40, 60, 180, 255}), 0o644))
	session.Image1Path = &img1
	session.Image2Path = &img2
	require.NoError(t, db.Save(session).Error)
	return session
}

func TestHandleProcessCollageTaskCompletes(t *testing.T) {
	db, storage, cleaner := setupTaskTest(t)
	defer cleaner()
	session := makeProcessableSession(t, db, storage, "U100")

	// light cutout so the dark overlay gets picked
	removal := &test.RemovalServiceMock{Cutout: test.CutoutPNGBytes(120, 120, color.NRGBA{245, 245, 245, 255})}
	awsMock := &test.AWSProviderMock{}

	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)
	err = HandleProcessCollageTask(context.Background(), task, db, removal, awsMock, storage)
	require.NoError(t, err)

	var updated models.CollageSession
	require.NoError(t, db.First(&updated, session.ID).Error)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	require.NotNil(t, updated.OutputKey)
	assert.Equal(t, fmt.Sprintf("collages/%d.png", session.ID), *updated.OutputKey)
	require.NotNil(t, updated.OverlayColor)
	assert.Equal(t, "bottle_green", *updated.OverlayColor)
	assert.Nil(t, updated.ErrorMessage)
	assert.Equal(t, 1, removal.Calls)

	// output PNG is on disk with the exact canvas dimensions
	outBytes, err := os.ReadFile(storage.FullPath(fmt.Sprintf("outputs/%d.png", session.ID)))
	require.NoError(t, err)
	img, err := collage.DecodeImage(outBytes)
	require.NoError(t, err)
	assert.Equal(t, 1920, img.Bounds().Dx())
	assert.Equal(t, 1080, img.Bounds().Dy())

	// and was pushed through the presigned upload
	require.Len(t, awsMock.Uploaded, 1)
}

func TestHandleProcessCollageTaskEmptyForeground(t *testing.T) {
	db, storage, cleaner := setupTaskTest(t)
	defer cleaner()
	session := makeProcessableSession(t, db, storage, "U101")

	// fully transparent cutout: nothing opaque survived the removal
	removal := &test.RemovalServiceMock{Cutout: transparentPNG(60, 60)}

	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)
	err = HandleProcessCollageTask(context.Background(), task, db, removal, &test.AWSProviderMock{}, storage)
	// classified input failure, not worth a queue retry
	assert.NoError(t, err)

	var updated models.CollageSession
	require.NoError(t, db.First(&updated, session.ID).Error)
	assert.Equal(t, models.SessionFailed, updated.Status)
	require.NotNil(t, updated.ErrorMessage)
	assert.Contains(t, *updated.ErrorMessage, "No product found")
}

func TestHandleProcessCollageTaskRemovalErrorRetries(t *testing.T) {
	db, storage, cleaner := setupTaskTest(t)
	defer cleaner()
	session := makeProcessableSession(t, db, storage, "U102")

	removal := &test.RemovalServiceMock{Err: fmt.Errorf("replicate status 500: boom")}
	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)

	// first two attempts keep the session retryable
	for i := 0; i < 2; i++ {
		err = HandleProcessCollageTask(context.Background(), task, db, removal, &test.AWSProviderMock{}, storage)
		assert.Error(t, err)
		var updated models.CollageSession
		require.NoError(t, db.First(&updated, session.ID).Error)
		assert.Equal(t, models.SessionProcessing, updated.Status)
		assert.Equal(t, uint(i+1), updated.ProcessRetryTimes)
	}

	// the third strike fails the session for good
	err = HandleProcessCollageTask(context.Background(), task, db, removal, &test.AWSProviderMock{}, storage)
	assert.Error(t, err)
	var updated models.CollageSession
	require.NoError(t, db.First(&updated, session.ID).Error)
	assert.Equal(t, models.SessionFailed, updated.Status)
	require.NotNil(t, updated.ErrorMessage)
}

func TestHandleProcessCollageTaskMissingImages(t *testing.T) {
	db, _, cleaner := setupTaskTest(t)
	defer cleaner()
	session := &models.CollageSession{
		SlackUserID:    "U103",
		SlackChannelID: "C1",
		Status:         models.SessionProcessing,
	}
	require.NoError(t, db.Create(session).Error)

	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)
	storage := services.NewStorageService()
	err = HandleProcessCollageTask(context.Background(), task, db, &test.RemovalServiceMock{}, &test.AWSProviderMock{}, storage)
	assert.NoError(t, err)

	var updated models.CollageSession
	require.NoError(t, db.First(&updated, session.ID).Error)
	assert.Equal(t, models.SessionFailed, updated.Status)
}

func TestHandleProcessCollageTaskHonorsChosenBackground(t *testing.T) {
	db, storage, cleaner := setupTaskTest(t)
	defer cleaner()
	session := makeProcessableSession(t, db, storage, "U104")
	session.BackgroundName = test.NewRefString("mint_green")
	require.NoError(t, db.Save(session).Error)

	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)
	err = HandleProcessCollageTask(context.Background(), task, db, &test.RemovalServiceMock{}, &test.AWSProviderMock{}, storage)
	require.NoError(t, err)

	var updated models.CollageSession
	require.NoError(t, db.First(&updated, session.ID).Error)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	require.NotNil(t, updated.BackgroundName)
	assert.Equal(t, "mint_green", *updated.BackgroundName)
}

func TestHandleProcessCollageTaskFailedStaysFailed(t *testing.T) {
	db, storage, cleaner := setupTaskTest(t)
	defer cleaner()
	session := makeProcessableSession(t, db, storage, "U106")

	// exhaust the retry budget so the third attempt marks the session failed
	removal := &test.RemovalServiceMock{Err: fmt.Errorf("replicate status 500: boom")}
	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		err = HandleProcessCollageTask(context.Background(), task, db, removal, &test.AWSProviderMock{}, storage)
		assert.Error(t, err)
	}
	var updated models.CollageSession
	require.NoError(t, db.First(&updated, session.ID).Error)
	require.Equal(t, models.SessionFailed, updated.Status)

	// the queue redelivers once more; a now-healthy removal must not run and
	// the session must not come back from failed
	working := &test.RemovalServiceMock{}
	err = HandleProcessCollageTask(context.Background(), task, db, working, &test.AWSProviderMock{}, storage)
	assert.NoError(t, err)
	assert.Equal(t, 0, working.Calls)

	require.NoError(t, db.First(&updated, session.ID).Error)
	assert.Equal(t, models.SessionFailed, updated.Status)
}

func TestHandleProcessCollageTaskCompletedIsIdempotent(t *testing.T) {
	db, storage, cleaner := setupTaskTest(t)
	defer cleaner()
	session := makeProcessableSession(t, db, storage, "U105")
	session.Status = models.SessionCompleted
	require.NoError(t, db.Save(session).Error)

	removal := &test.RemovalServiceMock{}
	task, err := NewCollageProcessingTask(session.ID)
	require.NoError(t, err)
	err = HandleProcessCollageTask(context.Background(), task, db, removal, &test.AWSProviderMock{}, storage)
	assert.NoError(t, err)
	assert.Equal(t, 0, removal.Calls)
}

func transparentPNG(w, h int) []byte {
	return test.PNGBytes(w, h, color.NRGBA{})
}
