package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"go-file-collector/internal/keylock"
	"go-file-collector/internal/model"
	"go-file-collector/internal/storage"
	"go-file-collector/internal/util"
	"go-file-collector/pkg/apierror"
)

// saveBufferSize is the copy block for single-shot writes; large files are
// streamed through it rather than loaded whole.
const saveBufferSize = 32 * 1024

// IncomingFile is one named byte stream of an upload batch. Size is the
// client-declared length and may be zero when the transport does not carry
// per-file sizes; the observed length is enforced during the copy either way.
type IncomingFile struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// UploadService persists whole-file upload batches for one task/uploader,
// applying the admission policy per file and reporting partial success.
type UploadService struct {
	admission *AdmissionService
	tasks     TaskStore
	store     *storage.Storage
	locks     *keylock.KeyLock
}

func NewUploadService(admission *AdmissionService, tasks TaskStore, store *storage.Storage, locks *keylock.KeyLock) *UploadService {
	return &UploadService{admission: admission, tasks: tasks, store: store, locks: locks}
}

// SaveFiles stores a batch of files. Files fail independently; a failure is
// recorded and the batch continues unless the configured error budget is
// exceeded, which aborts the remainder. If every file failed the whole
// request fails with the failures aggregated; otherwise only the successes
// are returned.
func (s *UploadService) SaveFiles(ctx context.Context, taskID string, uploaderName string, files []IncomingFile) ([]model.FileUploadResult, error) {
	uploader, err := util.SanitizeUploaderName(uploaderName)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, apierror.New("BAD_REQUEST", "no files to upload", "", http.StatusBadRequest)
	}

	// Saves for one (task, uploader) run serialized so two concurrent
	// batches cannot both pass the quota scan against the same stale count.
	lockKey := taskID + "|" + uploader
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	task, cfg, currentCount, err := s.admission.CheckBatch(ctx, taskID, uploader, len(files))
	if err != nil {
		return nil, err
	}

	results := make([]model.FileUploadResult, 0, len(files))
	failures := make([]model.UploadFailure, 0)

	for _, file := range files {
		saved, saveErr := s.saveOne(ctx, task.ID, uploader, file, cfg, currentCount)
		if saveErr != nil {
			failures = append(failures, model.UploadFailure{Filename: file.Filename, Reason: saveErr.Error()})
			slog.Warn("file rejected", "task_id", taskID, "uploader", uploader,
				"filename", file.Filename, "reason", saveErr.Error())

			if cfg.MaxUploadErrors > 0 && len(failures) > cfg.MaxUploadErrors {
				return nil, apierror.New("LIMIT_EXCEEDED",
					fmt.Sprintf("upload aborted: error budget exceeded (%d errors allowed)", cfg.MaxUploadErrors),
					fmt.Sprintf("%d files failed", len(failures)), http.StatusBadRequest)
			}
			continue
		}

		results = append(results, saved)
		currentCount++
	}

	if len(results) == 0 && len(failures) > 0 {
		details := make([]string, 0, len(failures))
		for _, f := range failures {
			details = append(details, f.Filename+": "+f.Reason)
		}
		return nil, apierror.New("BAD_REQUEST", "all files failed to upload",
			strings.Join(details, "; "), http.StatusBadRequest)
	}

	slog.Info("upload batch stored", "task_id", taskID, "uploader", uploader,
		"stored", len(results), "failed", len(failures))

	return results, nil
}

// saveOne re-validates admission at save time and streams one file to the
// uploader's directory. currentCount includes files accepted earlier in the
// same batch.
func (s *UploadService) saveOne(ctx context.Context, taskID string, uploader string, file IncomingFile, cfg model.Settings, currentCount int) (model.FileUploadResult, error) {
	safeName, err := util.SanitizeFilename(file.Filename)
	if err != nil {
		return model.FileUploadResult{}, err
	}

	task, err := s.admission.CheckSave(ctx, taskID, uploader, safeName, file.Size, currentCount)
	if err != nil {
		return model.FileUploadResult{}, err
	}

	uploaderDir := storage.UploaderDirPath(task.FolderPath, uploader)
	if err := s.store.MkdirAll(uploaderDir, 0o755); err != nil {
		return model.FileUploadResult{}, err
	}

	target, err := s.collisionFreeTarget(uploaderDir, safeName)
	if err != nil {
		return model.FileUploadResult{}, err
	}

	written, err := s.streamToFile(target, file.Reader, cfg)
	if err != nil {
		return model.FileUploadResult{}, err
	}

	if err := s.tasks.IncrementFileCount(ctx, taskID); err != nil {
		slog.Error("file stored but counter increment failed", "task_id", taskID, "error", err)
	}

	return model.FileUploadResult{
		Filename:     path.Base(target),
		Path:         target,
		Size:         written,
		UploadTime:   time.Now().UTC(),
		UploaderName: uploader,
	}, nil
}

// streamToFile copies the stream in bounded blocks and enforces the
// configured per-file size limit against the observed byte count. Nothing
// over the limit is left on disk.
func (s *UploadService) streamToFile(target string, reader io.Reader, cfg model.Settings) (int64, error) {
	writer, err := s.store.OpenForWrite(target)
	if err != nil {
		return 0, apierror.New("IO_FAILURE", "failed to open destination", err.Error(), http.StatusInternalServerError)
	}

	limit := int64(-1)
	if cfg.MaxFileSizeMB > 0 {
		limit = int64(cfg.MaxFileSizeMB) * 1024 * 1024
	}

	source := reader
	if limit >= 0 {
		source = io.LimitReader(reader, limit+1)
	}

	written, copyErr := io.CopyBuffer(writer, source, make([]byte, saveBufferSize))
	closeErr := writer.Close()

	if copyErr != nil {
		_ = s.store.Remove(target)
		return 0, apierror.New("IO_FAILURE", "failed to store file", copyErr.Error(), http.StatusInternalServerError)
	}
	if closeErr != nil {
		_ = s.store.Remove(target)
		return 0, apierror.New("IO_FAILURE", "failed to store file", closeErr.Error(), http.StatusInternalServerError)
	}

	if limit >= 0 && written > limit {
		_ = s.store.Remove(target)
		return 0, apierror.New("LIMIT_EXCEEDED",
			fmt.Sprintf("file %s exceeds the size limit (%d MB)", path.Base(target), cfg.MaxFileSizeMB),
			path.Base(target), http.StatusBadRequest)
	}

	return written, nil
}

// collisionFreeTarget never overwrites: an existing destination gets a
// timestamp suffix appended before the extension.
func (s *UploadService) collisionFreeTarget(dir string, filename string) (string, error) {
	return collisionFreeTarget(s.store, dir, filename)
}

// collisionFreeTarget resolves a destination that does not exist yet. The
// first collision gets a timestamp suffix; further collisions within the
// same clock second get an increasing ordinal on top of it.
func collisionFreeTarget(store *storage.Storage, dir string, filename string) (string, error) {
	target := path.Join(dir, filename)
	if _, err := store.Stat(target); err != nil {
		return target, nil
	}

	stamped := timestampedName(filename, time.Now())
	target = path.Join(dir, stamped)
	if _, err := store.Stat(target); err != nil {
		return target, nil
	}

	ext := path.Ext(stamped)
	stem := strings.TrimSuffix(stamped, ext)
	for i := 2; ; i++ {
		target = path.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := store.Stat(target); err != nil {
			return target, nil
		}
	}
}

func timestampedName(filename string, now time.Time) string {
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return stem + "_" + now.Format("20060102_150405") + ext
}
