package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-file-collector/internal/model"
	"go-file-collector/internal/storage"
	"go-file-collector/pkg/apierror"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func activeTestTask(id string) model.Task {
	return model.Task{
		ID:         id,
		Name:       "collection " + id,
		Status:     model.TaskStatusActive,
		FolderPath: storage.TaskFolderPath(id),
	}
}

// seedUploaderFiles creates n regular files in the uploader's directory.
func seedUploaderFiles(t *testing.T, store *storage.Storage, task model.Task, uploader string, n int) {
	t.Helper()
	dir := storage.UploaderDirPath(task.FolderPath, uploader)
	require.NoError(t, store.MkdirAll(dir, 0o755))
	abs, err := store.Resolve(dir)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		name := filepath.Join(abs, "seed"+string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	}
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	apiErr, ok := err.(*apierror.APIError)
	require.True(t, ok, "expected *apierror.APIError, got %v", err)
	return apiErr.Code
}

func TestCheckBatchUnknownTask(t *testing.T) {
	store := newTestStorage(t)
	svc := NewAdmissionService(newFakeTaskStore(), newFakeSettingsStore(model.Settings{}), store)

	_, _, _, err := svc.CheckBatch(context.Background(), "missing", "alice", 1)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apiCode(t, err))
}

func TestCheckBatchClosedTask(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	task.Status = model.TaskStatusCompleted
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(model.Settings{}), store)

	_, _, _, err := svc.CheckBatch(context.Background(), "t1", "alice", 1)
	require.Error(t, err)
	assert.Equal(t, "INVALID_STATE", apiCode(t, err))
}

func TestCheckBatchWhitelistCaseInsensitive(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{UploadWhitelist: []string{" Alice ", "bob"}}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	_, _, _, err := svc.CheckBatch(context.Background(), "t1", "ALICE", 1)
	assert.NoError(t, err)

	_, _, _, err = svc.CheckBatch(context.Background(), "t1", "mallory", 1)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apiCode(t, err))
}

func TestCheckBatchPerUploadLimit(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{MaxFilesPerUpload: 2}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	_, _, _, err := svc.CheckBatch(context.Background(), "t1", "alice", 2)
	assert.NoError(t, err)

	_, _, _, err = svc.CheckBatch(context.Background(), "t1", "alice", 3)
	require.Error(t, err)
	assert.Equal(t, "LIMIT_EXCEEDED", apiCode(t, err))
}

func TestCheckBatchQuotaCountsExistingFiles(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{MaxUploadsPerUser: 3}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	seedUploaderFiles(t, store, task, "alice", 2)

	// 2 on disk + 1 incoming fits the quota of 3.
	_, _, current, err := svc.CheckBatch(context.Background(), "t1", "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, current)

	// 2 on disk + 2 incoming does not.
	_, _, _, err = svc.CheckBatch(context.Background(), "t1", "alice", 2)
	require.Error(t, err)
	assert.Equal(t, "LIMIT_EXCEEDED", apiCode(t, err))

	// Another uploader is unaffected by alice's files.
	_, _, _, err = svc.CheckBatch(context.Background(), "t1", "bob", 2)
	assert.NoError(t, err)
}

func TestCheckSaveSizeLimit(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{MaxFileSizeMB: 1}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	_, err := svc.CheckSave(context.Background(), "t1", "alice", "ok.bin", 1024*1024, 0)
	assert.NoError(t, err)

	_, err = svc.CheckSave(context.Background(), "t1", "alice", "big.bin", 1024*1024+1, 0)
	require.Error(t, err)
	assert.Equal(t, "LIMIT_EXCEEDED", apiCode(t, err))
}

func TestCheckSaveZeroMeansUnlimited(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(model.Settings{}), store)

	_, err := svc.CheckSave(context.Background(), "t1", "alice", "huge.bin", 50*1024*1024*1024, 1000)
	assert.NoError(t, err)
}

func TestPrecheckDenialIsAVerdict(t *testing.T) {
	store := newTestStorage(t)
	svc := NewAdmissionService(newFakeTaskStore(), newFakeSettingsStore(model.Settings{}), store)

	result, err := svc.Precheck(context.Background(), "missing", "alice", 1)
	require.NoError(t, err)
	assert.False(t, result.CanUpload)
	assert.NotEmpty(t, result.Reason)
}

func TestPrecheckAllowedEchoesLimits(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{MaxFileSizeMB: 10, MaxFilesPerUpload: 5, MaxUploadsPerUser: 7}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	seedUploaderFiles(t, store, task, "alice", 1)

	result, err := svc.Precheck(context.Background(), "t1", "alice", 2)
	require.NoError(t, err)
	assert.True(t, result.CanUpload)
	assert.Empty(t, result.Reason)
	assert.Equal(t, 10, result.MaxFileSizeMB)
	assert.Equal(t, 5, result.MaxFilesPerUpload)
	assert.Equal(t, 7, result.MaxUploadsPerUser)
	require.NotNil(t, result.CurrentUploadCount)
	assert.Equal(t, 1, *result.CurrentUploadCount)
}

func TestPrecheckQuotaDenied(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{MaxUploadsPerUser: 2}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	seedUploaderFiles(t, store, task, "alice", 2)

	result, err := svc.Precheck(context.Background(), "t1", "alice", 1)
	require.NoError(t, err)
	assert.False(t, result.CanUpload)
	assert.NotEmpty(t, result.Reason)
}

func TestCheckChunkQuotaOnlyOnFirstChunk(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{MaxUploadsPerUser: 1}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	seedUploaderFiles(t, store, task, "alice", 1)

	_, _, err := svc.CheckChunk(context.Background(), "t1", "alice", 0)
	require.Error(t, err)
	assert.Equal(t, "LIMIT_EXCEEDED", apiCode(t, err))

	// Later chunks of an already admitted file are not re-quota'd.
	_, _, err = svc.CheckChunk(context.Background(), "t1", "alice", 3)
	assert.NoError(t, err)
}

func TestWhitelistAllows(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	cfg := model.Settings{UploadWhitelist: []string{"alice"}}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	allowed, err := svc.WhitelistAllows(context.Background(), "t1", "Alice")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.WhitelistAllows(context.Background(), "t1", "bob")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestWhitelistAllowsClosedTask(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	task.Status = model.TaskStatusCompleted
	cfg := model.Settings{UploadWhitelist: []string{"alice"}}
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(cfg), store)

	_, err := svc.WhitelistAllows(context.Background(), "t1", "alice")
	require.Error(t, err)
	assert.Equal(t, "INVALID_STATE", apiCode(t, err))

	_, err = svc.WhitelistAllows(context.Background(), "missing", "alice")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apiCode(t, err))
}

func TestUploadCount(t *testing.T) {
	store := newTestStorage(t)
	task := activeTestTask("t1")
	svc := NewAdmissionService(newFakeTaskStore(task), newFakeSettingsStore(model.Settings{}), store)

	seedUploaderFiles(t, store, task, "alice", 3)

	count, err := svc.UploadCount(context.Background(), "t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = svc.UploadCount(context.Background(), "t1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
