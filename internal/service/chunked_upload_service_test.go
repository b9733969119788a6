package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-file-collector/internal/keylock"
	"go-file-collector/internal/model"
	"go-file-collector/internal/storage"
)

func newChunkFixture(t *testing.T, tasks *fakeTaskStore, cfg model.Settings) (*ChunkedUploadService, *storage.Storage) {
	t.Helper()
	store := newTestStorage(t)
	admission := NewAdmissionService(tasks, newFakeSettingsStore(cfg), store)
	return NewChunkedUploadService(admission, tasks, store, keylock.New()), store
}

func sendChunk(t *testing.T, svc *ChunkedUploadService, taskID string, index int, total int, content string) model.ChunkOutcome {
	t.Helper()
	outcome, err := svc.SaveChunk(context.Background(), taskID, "alice", "video.mp4", index, total, strings.NewReader(content))
	require.NoError(t, err)
	return outcome
}

func TestSaveChunkOutOfOrderAssembly(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, store := newChunkFixture(t, tasks, model.Settings{})

	out := sendChunk(t, svc, "t1", 2, 3, "CC")
	assert.False(t, out.Progress.Complete)
	assert.Equal(t, 1, out.Progress.ReceivedChunks)
	assert.Nil(t, out.File)

	out = sendChunk(t, svc, "t1", 0, 3, "AA")
	assert.False(t, out.Progress.Complete)
	assert.Equal(t, 2, out.Progress.ReceivedChunks)

	out = sendChunk(t, svc, "t1", 1, 3, "BB")
	require.True(t, out.Progress.Complete)
	require.NotNil(t, out.File)
	assert.Equal(t, int64(6), out.File.Size)

	assert.Equal(t, "AABBCC", readStored(t, store, out.File.Path))
	assert.Equal(t, 1, tasks.count("t1"))
}

func TestSaveChunkDuplicateReceivesAreHarmless(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, store := newChunkFixture(t, tasks, model.Settings{})

	sendChunk(t, svc, "t1", 0, 2, "AA")
	out := sendChunk(t, svc, "t1", 0, 2, "AA")
	assert.False(t, out.Progress.Complete)
	assert.Equal(t, 1, out.Progress.ReceivedChunks)

	out = sendChunk(t, svc, "t1", 1, 2, "BB")
	require.True(t, out.Progress.Complete)
	assert.Equal(t, "AABB", readStored(t, store, out.File.Path))
	assert.Equal(t, 1, tasks.count("t1"))
}

func TestSaveChunkCleansStagingDirectory(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, store := newChunkFixture(t, tasks, model.Settings{})

	sendChunk(t, svc, "t1", 0, 2, "AA")
	out := sendChunk(t, svc, "t1", 1, 2, "BB")
	require.True(t, out.Progress.Complete)

	partDir := storage.PartDirPath(storage.TaskFolderPath("t1"), "alice")
	_, err := store.Stat(partDir)
	assert.Error(t, err, "staging directory should be gone after assembly")
}

func TestSaveChunkSingleChunkFile(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, store := newChunkFixture(t, tasks, model.Settings{})

	out := sendChunk(t, svc, "t1", 0, 1, "whole file")
	require.True(t, out.Progress.Complete)
	assert.Equal(t, "whole file", readStored(t, store, out.File.Path))
}

func TestSaveChunkInvalidIndexes(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, _ := newChunkFixture(t, tasks, model.Settings{})

	_, err := svc.SaveChunk(context.Background(), "t1", "alice", "f.bin", 0, 0, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "BAD_REQUEST", apiCode(t, err))

	_, err = svc.SaveChunk(context.Background(), "t1", "alice", "f.bin", 3, 3, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "BAD_REQUEST", apiCode(t, err))

	_, err = svc.SaveChunk(context.Background(), "t1", "alice", "f.bin", -1, 3, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "BAD_REQUEST", apiCode(t, err))
}

func TestSaveChunkQuotaOnFirstChunk(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, store := newChunkFixture(t, tasks, model.Settings{MaxUploadsPerUser: 1})

	seedUploaderFiles(t, store, activeTestTask("t1"), "alice", 1)

	_, err := svc.SaveChunk(context.Background(), "t1", "alice", "f.bin", 0, 2, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "LIMIT_EXCEEDED", apiCode(t, err))
}

func TestSaveChunkClosedTaskRejected(t *testing.T) {
	task := activeTestTask("t1")
	task.Status = model.TaskStatusInactive
	tasks := newFakeTaskStore(task)
	svc, _ := newChunkFixture(t, tasks, model.Settings{})

	_, err := svc.SaveChunk(context.Background(), "t1", "alice", "f.bin", 0, 2, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "INVALID_STATE", apiCode(t, err))
}

func TestSaveChunkCompletedFileCollisionSuffixed(t *testing.T) {
	tasks := newFakeTaskStore(activeTestTask("t1"))
	svc, store := newChunkFixture(t, tasks, model.Settings{})

	first := sendChunk(t, svc, "t1", 0, 1, "v1")
	second := sendChunk(t, svc, "t1", 0, 1, "v2")
	third := sendChunk(t, svc, "t1", 0, 1, "v3")

	assert.NotEqual(t, first.File.Path, second.File.Path)
	assert.NotEqual(t, second.File.Path, third.File.Path)
	assert.NotEqual(t, first.File.Path, third.File.Path)
	assert.Equal(t, "v1", readStored(t, store, first.File.Path))
	assert.Equal(t, "v2", readStored(t, store, second.File.Path))
	assert.Equal(t, "v3", readStored(t, store, third.File.Path))
}
