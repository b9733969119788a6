package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-file-collector/internal/model"
	"go-file-collector/internal/storage"
	"go-file-collector/internal/util"
	"go-file-collector/pkg/apierror"
)

// AdmissionService is the gatekeeper for every upload attempt. Checks run
// in a fixed order and the first failure wins: task existence, task status,
// whitelist, per-upload file count, per-user quota, per-file size.
//
// Quota accounting is a directory scan of the uploader's folder, not a
// ledger: the count self-corrects after manual folder edits, at the cost of
// an O(files) scan per check and a documented read-then-act race between
// concurrent uploads by the same uploader.
type AdmissionService struct {
	tasks    TaskStore
	settings SettingsStore
	store    *storage.Storage
}

func NewAdmissionService(tasks TaskStore, settings SettingsStore, store *storage.Storage) *AdmissionService {
	return &AdmissionService{tasks: tasks, settings: settings, store: store}
}

// Precheck runs the admission checks a client can evaluate before sending
// any bytes (everything except the per-file size check). The verdict is a
// value, not an error: a denied upload still answers 200 with the reason
// and the limits echoed back.
func (s *AdmissionService) Precheck(ctx context.Context, taskID string, uploaderName string, fileCount int) (model.PrecheckResult, error) {
	task, cfg, err := s.activeTask(ctx, taskID)
	if err != nil {
		if reason, denied := admissionReason(err); denied {
			return model.PrecheckResult{CanUpload: false, Reason: reason}, nil
		}
		return model.PrecheckResult{}, err
	}

	result := model.PrecheckResult{
		MaxFilesPerUpload: cfg.MaxFilesPerUpload,
		MaxFileSizeMB:     cfg.MaxFileSizeMB,
		MaxUploadsPerUser: cfg.MaxUploadsPerUser,
	}

	if !util.WhitelistContains(cfg.UploadWhitelist, uploaderName) {
		result.Reason = "you are not on the upload whitelist"
		return result, nil
	}

	if cfg.MaxFilesPerUpload > 0 && fileCount > cfg.MaxFilesPerUpload {
		result.Reason = fmt.Sprintf("file count exceeds the per-upload limit (%d files)", cfg.MaxFilesPerUpload)
		return result, nil
	}

	if cfg.MaxUploadsPerUser > 0 {
		current, err := s.uploaderFileCount(task, uploaderName)
		if err != nil {
			return model.PrecheckResult{}, err
		}
		result.CurrentUploadCount = &current

		if current+fileCount > cfg.MaxUploadsPerUser {
			result.Reason = fmt.Sprintf("upload would exceed your quota (%d files), %d already uploaded",
				cfg.MaxUploadsPerUser, current)
			return result, nil
		}
	}

	result.CanUpload = true
	return result, nil
}

// CheckBatch gates a whole single-shot batch before any file is persisted:
// checks 1-5, with the quota evaluated against fileCount upcoming files.
// It returns the task, the settings snapshot the batch should run under,
// and the uploader's pre-batch file count (zero when no quota is set).
func (s *AdmissionService) CheckBatch(ctx context.Context, taskID string, uploaderName string, fileCount int) (model.Task, model.Settings, int, error) {
	task, cfg, err := s.activeTask(ctx, taskID)
	if err != nil {
		return model.Task{}, model.Settings{}, 0, err
	}

	if err := checkWhitelist(cfg, uploaderName); err != nil {
		return model.Task{}, model.Settings{}, 0, err
	}

	if cfg.MaxFilesPerUpload > 0 && fileCount > cfg.MaxFilesPerUpload {
		return model.Task{}, model.Settings{}, 0, apierror.New("LIMIT_EXCEEDED",
			fmt.Sprintf("file count exceeds the per-upload limit (%d files)", cfg.MaxFilesPerUpload),
			fmt.Sprintf("%d requested", fileCount), http.StatusBadRequest)
	}

	current := 0
	if cfg.MaxUploadsPerUser > 0 {
		current, err = s.uploaderFileCount(task, uploaderName)
		if err != nil {
			return model.Task{}, model.Settings{}, 0, err
		}

		if current+fileCount > cfg.MaxUploadsPerUser {
			return model.Task{}, model.Settings{}, 0, apierror.New("LIMIT_EXCEEDED",
				fmt.Sprintf("upload would exceed your quota (%d files), %d already uploaded",
					cfg.MaxUploadsPerUser, current),
				"", http.StatusBadRequest)
		}
	}

	return task, cfg, current, nil
}

// CheckSave re-validates a single file at save time: task state, whitelist,
// quota, and size may all have moved since the batch was admitted.
// currentCount is the caller's running count of files the uploader holds,
// including ones accepted earlier in the same batch; the per-upload count
// limit is the caller's responsibility here.
func (s *AdmissionService) CheckSave(ctx context.Context, taskID string, uploaderName string, filename string, size int64, currentCount int) (model.Task, error) {
	task, cfg, err := s.activeTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}

	if err := checkWhitelist(cfg, uploaderName); err != nil {
		return model.Task{}, err
	}

	if cfg.MaxUploadsPerUser > 0 && currentCount+1 > cfg.MaxUploadsPerUser {
		return model.Task{}, apierror.New("LIMIT_EXCEEDED",
			fmt.Sprintf("you have reached your upload quota (%d files)", cfg.MaxUploadsPerUser),
			"", http.StatusBadRequest)
	}

	if err := checkFileSize(cfg, filename, size); err != nil {
		return model.Task{}, err
	}

	return task, nil
}

// CheckChunk gates one part of a chunked upload. Task and whitelist checks
// run on every part; the quota scan runs only on the first chunk of a
// logical file, so a large upload does not pay total_chunks scans.
func (s *AdmissionService) CheckChunk(ctx context.Context, taskID string, uploaderName string, chunkIndex int) (model.Task, model.Settings, error) {
	task, cfg, err := s.activeTask(ctx, taskID)
	if err != nil {
		return model.Task{}, model.Settings{}, err
	}

	if err := checkWhitelist(cfg, uploaderName); err != nil {
		return model.Task{}, model.Settings{}, err
	}

	if chunkIndex == 0 && cfg.MaxUploadsPerUser > 0 {
		current, err := s.uploaderFileCount(task, uploaderName)
		if err != nil {
			return model.Task{}, model.Settings{}, err
		}

		if current+1 > cfg.MaxUploadsPerUser {
			return model.Task{}, model.Settings{}, apierror.New("LIMIT_EXCEEDED",
				fmt.Sprintf("you have reached your upload quota (%d files)", cfg.MaxUploadsPerUser),
				"", http.StatusBadRequest)
		}
	}

	return task, cfg, nil
}

// WhitelistAllows reports whether the uploader would pass the whitelist
// check for the task. Missing and closed tasks are rejected the same way
// an upload would be; the allow verdict is advisory and the authoritative
// check runs again on every upload.
func (s *AdmissionService) WhitelistAllows(ctx context.Context, taskID string, uploaderName string) (bool, error) {
	_, cfg, err := s.activeTask(ctx, taskID)
	if err != nil {
		return false, err
	}

	return util.WhitelistContains(cfg.UploadWhitelist, uploaderName), nil
}

// UploadCount reports how many files the uploader currently holds in the
// task folder, measured from disk.
func (s *AdmissionService) UploadCount(ctx context.Context, taskID string, uploaderName string) (int, error) {
	uploader, err := util.SanitizeUploaderName(uploaderName)
	if err != nil {
		return 0, err
	}

	task, err := s.tasks.Get(ctx, taskID)
	if errors.Is(err, model.ErrTaskNotFound) {
		return 0, apierror.New("NOT_FOUND", "task not found", taskID, http.StatusNotFound)
	}
	if err != nil {
		return 0, err
	}

	return s.uploaderFileCount(task, uploader)
}

func (s *AdmissionService) activeTask(ctx context.Context, taskID string) (model.Task, model.Settings, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if errors.Is(err, model.ErrTaskNotFound) {
		return model.Task{}, model.Settings{}, apierror.New("NOT_FOUND", "task not found", taskID, http.StatusNotFound)
	}
	if err != nil {
		return model.Task{}, model.Settings{}, err
	}

	if task.Status != model.TaskStatusActive {
		return model.Task{}, model.Settings{}, apierror.New("INVALID_STATE",
			"task is closed and no longer accepts uploads", string(task.Status), http.StatusConflict)
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return model.Task{}, model.Settings{}, err
	}

	return task, cfg, nil
}

func (s *AdmissionService) uploaderFileCount(task model.Task, uploaderName string) (int, error) {
	return s.store.CountFiles(storage.UploaderDirPath(task.FolderPath, uploaderName))
}

func checkWhitelist(cfg model.Settings, uploaderName string) error {
	if util.WhitelistContains(cfg.UploadWhitelist, uploaderName) {
		return nil
	}

	return apierror.New("FORBIDDEN", "you are not on the upload whitelist", "", http.StatusForbidden)
}

func checkFileSize(cfg model.Settings, filename string, size int64) error {
	if cfg.MaxFileSizeMB <= 0 {
		return nil
	}

	maxBytes := int64(cfg.MaxFileSizeMB) * 1024 * 1024
	if size > maxBytes {
		return apierror.New("LIMIT_EXCEEDED",
			fmt.Sprintf("file %s exceeds the size limit (%d MB)", filename, cfg.MaxFileSizeMB),
			filename, http.StatusBadRequest)
	}

	return nil
}

// admissionReason converts a typed admission rejection into a human-readable
// precheck reason. Infrastructure errors are not rejections and pass through.
func admissionReason(err error) (string, bool) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "NOT_FOUND", "INVALID_STATE", "FORBIDDEN", "LIMIT_EXCEEDED":
			return apiErr.Message, true
		}
	}

	return "", false
}
