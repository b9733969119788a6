package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"go-file-collector/internal/keylock"
	"go-file-collector/internal/model"
	"go-file-collector/internal/storage"
	"go-file-collector/internal/util"
	"go-file-collector/pkg/apierror"
)

// fallbackChunkBufferSize bounds the copy buffer when no chunk size is
// configured. It only bounds memory; it need not match the chunk size the
// client negotiated.
const fallbackChunkBufferSize = 16 * 1024 * 1024

// assemblingSuffix marks the staging file an assembly writes into before
// the atomic rename. A crash mid-assembly leaves only this file behind,
// never a truncated final file.
const assemblingSuffix = ".assembling"

// ChunkedUploadService receives numbered parts of large files and
// reassembles them once every part is on disk.
//
// A session has no token: its identity is the (task, uploader, filename)
// triple, and its state is inferred purely from which part files exist in
// the staging directory. That makes part receives idempotent under retries,
// and makes the per-key lock arena load-bearing: the completeness scan and
// the delete-after-append assembly loop must not interleave with another
// receive for the same key.
type ChunkedUploadService struct {
	admission *AdmissionService
	tasks     TaskStore
	store     *storage.Storage
	locks     *keylock.KeyLock
}

func NewChunkedUploadService(admission *AdmissionService, tasks TaskStore, store *storage.Storage, locks *keylock.KeyLock) *ChunkedUploadService {
	return &ChunkedUploadService{admission: admission, tasks: tasks, store: store, locks: locks}
}

// SaveChunk stores one part and, when it was the last missing part,
// assembles the final file. The outcome always carries progress; the call
// that completed assembly additionally carries the final file metadata.
func (s *ChunkedUploadService) SaveChunk(ctx context.Context, taskID string, uploaderName string, filename string, chunkIndex int, totalChunks int, reader io.Reader) (model.ChunkOutcome, error) {
	uploader, err := util.SanitizeUploaderName(uploaderName)
	if err != nil {
		return model.ChunkOutcome{}, err
	}

	safeName, err := util.SanitizeFilename(filename)
	if err != nil {
		return model.ChunkOutcome{}, err
	}

	if totalChunks <= 0 {
		return model.ChunkOutcome{}, apierror.New("BAD_REQUEST", "total_chunks must be positive", "", http.StatusBadRequest)
	}

	if chunkIndex < 0 || chunkIndex >= totalChunks {
		return model.ChunkOutcome{}, apierror.New("BAD_REQUEST",
			fmt.Sprintf("chunk_index must be between 0 and %d", totalChunks-1), "", http.StatusBadRequest)
	}

	task, cfg, err := s.admission.CheckChunk(ctx, taskID, uploader, chunkIndex)
	if err != nil {
		return model.ChunkOutcome{}, err
	}

	key := taskID + "|" + uploader + "|" + safeName
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	partDir := storage.PartDirPath(task.FolderPath, uploader)
	if err := s.store.MkdirAll(partDir, 0o755); err != nil {
		return model.ChunkOutcome{}, err
	}

	buf := make([]byte, chunkBufferSize(cfg))
	partPath := storage.PartFilePath(task.FolderPath, uploader, safeName, chunkIndex)
	if err := s.writePart(partPath, reader, buf); err != nil {
		return model.ChunkOutcome{}, err
	}

	received := s.receivedParts(task.FolderPath, uploader, safeName, totalChunks)
	progress := model.ChunkProgress{
		Filename:       safeName,
		ChunkIndex:     chunkIndex,
		TotalChunks:    totalChunks,
		ReceivedChunks: received,
	}

	if received < totalChunks {
		return model.ChunkOutcome{Progress: progress}, nil
	}

	result, err := s.assemble(ctx, task, uploader, safeName, totalChunks, buf)
	if err != nil {
		return model.ChunkOutcome{}, err
	}

	progress.Complete = true
	return model.ChunkOutcome{Progress: progress, File: &result}, nil
}

// writePart streams one part onto disk. Re-writing an already present part
// truncates and replaces it, which keeps duplicate receives harmless.
func (s *ChunkedUploadService) writePart(partPath string, reader io.Reader, buf []byte) error {
	writer, err := s.store.OpenForWrite(partPath)
	if err != nil {
		return apierror.New("IO_FAILURE", "failed to open part file", err.Error(), http.StatusInternalServerError)
	}

	_, copyErr := io.CopyBuffer(writer, reader, buf)
	closeErr := writer.Close()

	if copyErr != nil {
		return apierror.New("IO_FAILURE", "failed to write chunk", copyErr.Error(), http.StatusInternalServerError)
	}
	if closeErr != nil {
		return apierror.New("IO_FAILURE", "failed to write chunk", closeErr.Error(), http.StatusInternalServerError)
	}

	return nil
}

// receivedParts counts which of the part files 0..totalChunks-1 exist. The
// scan re-runs after every receive instead of keeping a counter, so the
// completeness test stays idempotent under duplicate and retried parts.
func (s *ChunkedUploadService) receivedParts(taskFolder string, uploader string, filename string, totalChunks int) int {
	received := 0
	for i := 0; i < totalChunks; i++ {
		if _, err := s.store.Stat(storage.PartFilePath(taskFolder, uploader, filename, i)); err == nil {
			received++
		}
	}
	return received
}

// assemble concatenates the parts in index order into the final file. The
// concatenation targets a staging file that is renamed into place only once
// every byte is written, so a failed assembly never exposes a truncated
// final file. Each part is deleted right after it is appended.
func (s *ChunkedUploadService) assemble(ctx context.Context, task model.Task, uploader string, filename string, totalChunks int, buf []byte) (model.FileUploadResult, error) {
	partDir := storage.PartDirPath(task.FolderPath, uploader)
	assemblingPath := path.Join(partDir, filename+assemblingSuffix)

	writer, err := s.store.OpenForWrite(assemblingPath)
	if err != nil {
		return model.FileUploadResult{}, apierror.New("IO_FAILURE", "failed to open assembly file", err.Error(), http.StatusInternalServerError)
	}

	var size int64
	for i := 0; i < totalChunks; i++ {
		partPath := storage.PartFilePath(task.FolderPath, uploader, filename, i)

		n, err := s.appendPart(writer, partPath, buf)
		if err != nil {
			_ = writer.Close()
			_ = s.store.Remove(assemblingPath)
			return model.FileUploadResult{}, err
		}
		size += n

		_ = s.store.Remove(partPath)
	}

	if err := writer.Close(); err != nil {
		_ = s.store.Remove(assemblingPath)
		return model.FileUploadResult{}, apierror.New("IO_FAILURE", "failed to finalize assembly", err.Error(), http.StatusInternalServerError)
	}

	uploaderDir := storage.UploaderDirPath(task.FolderPath, uploader)
	if err := s.store.MkdirAll(uploaderDir, 0o755); err != nil {
		_ = s.store.Remove(assemblingPath)
		return model.FileUploadResult{}, err
	}

	target, err := collisionFreeTarget(s.store, uploaderDir, filename)
	if err != nil {
		_ = s.store.Remove(assemblingPath)
		return model.FileUploadResult{}, err
	}

	if err := s.store.Rename(assemblingPath, target); err != nil {
		_ = s.store.Remove(assemblingPath)
		return model.FileUploadResult{}, apierror.New("IO_FAILURE", "failed to move assembled file", err.Error(), http.StatusInternalServerError)
	}

	// Best effort: the staging directory may hold parts of a concurrent
	// session for another filename, in which case removal simply fails.
	_ = s.store.Remove(partDir)

	if err := s.tasks.IncrementFileCount(ctx, task.ID); err != nil {
		slog.Error("file assembled but counter increment failed", "task_id", task.ID, "error", err)
	}

	slog.Info("chunked upload assembled", "task_id", task.ID, "uploader", uploader,
		"filename", path.Base(target), "chunks", totalChunks, "size", size)

	return model.FileUploadResult{
		Filename:     path.Base(target),
		Path:         target,
		Size:         size,
		UploadTime:   time.Now().UTC(),
		UploaderName: uploader,
	}, nil
}

func (s *ChunkedUploadService) appendPart(writer io.Writer, partPath string, buf []byte) (int64, error) {
	part, err := s.store.OpenForRead(partPath)
	if err != nil {
		return 0, apierror.New("IO_FAILURE", "failed to read part file", err.Error(), http.StatusInternalServerError)
	}
	defer part.Close()

	n, err := io.CopyBuffer(writer, part, buf)
	if err != nil {
		return 0, apierror.New("IO_FAILURE", "failed to append part", err.Error(), http.StatusInternalServerError)
	}

	return n, nil
}

func chunkBufferSize(cfg model.Settings) int {
	if cfg.ChunkSizeMB > 0 {
		return cfg.ChunkSizeMB * 1024 * 1024
	}
	return fallbackChunkBufferSize
}
