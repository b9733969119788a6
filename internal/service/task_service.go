package service

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-file-collector/internal/model"
	"go-file-collector/internal/storage"
	"go-file-collector/pkg/apierror"
)

// TaskService manages collection task lifecycle and reporting.
type TaskService struct {
	tasks TaskStore
	store *storage.Storage
}

func NewTaskService(tasks TaskStore, store *storage.Storage) *TaskService {
	return &TaskService{tasks: tasks, store: store}
}

// Create registers a task and provisions its folder before the record is
// persisted, so a stored task always has a folder to receive uploads.
func (s *TaskService) Create(ctx context.Context, req model.TaskCreateRequest) (model.Task, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Task{}, apierror.New("BAD_REQUEST", "task name is required", "", http.StatusBadRequest)
	}

	task := model.Task{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      model.TaskStatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	task.FolderPath = storage.TaskFolderPath(task.ID)

	if err := s.store.MkdirAll(task.FolderPath, 0o755); err != nil {
		return model.Task{}, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return model.Task{}, err
	}

	slog.Info("task created", "task_id", task.ID, "name", task.Name)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, taskID string) (model.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	s.reconcileCount(&task)
	return task, nil
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		s.reconcileCount(&tasks[i])
	}
	return tasks, nil
}

func (s *TaskService) UpdateStatus(ctx context.Context, taskID string, status model.TaskStatus) (model.Task, error) {
	if !model.ValidTaskStatus(status) {
		return model.Task{}, apierror.New("BAD_REQUEST", "invalid task status", string(status), http.StatusBadRequest)
	}

	if err := s.tasks.UpdateStatus(ctx, taskID, status); err != nil {
		return model.Task{}, err
	}

	slog.Info("task status updated", "task_id", taskID, "status", status)
	return s.Get(ctx, taskID)
}

// Delete removes the task record only. Files already collected stay on
// disk so an accidental delete cannot destroy submissions.
func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	slog.Info("task deleted", "task_id", taskID)
	return nil
}

// Info returns the public description of an active task. Inactive and
// completed tasks answer with a conflict so uploaders learn the collection
// is closed rather than missing.
func (s *TaskService) Info(ctx context.Context, taskID string) (model.TaskInfo, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return model.TaskInfo{}, err
	}
	if task.Status != model.TaskStatusActive {
		return model.TaskInfo{}, apierror.New("INVALID_STATE", "task is not accepting uploads", string(task.Status), http.StatusConflict)
	}

	return model.TaskInfo{
		TaskID:      task.ID,
		TaskName:    task.Name,
		Description: task.Description,
		Status:      task.Status,
	}, nil
}

// ListFiles walks the task folder and reports every collected file grouped
// under its uploader, together with counts measured from disk. Staging
// directories are excluded.
func (s *TaskService) ListFiles(ctx context.Context, taskID string) (model.TaskFilesListing, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return model.TaskFilesListing{}, err
	}

	listing := model.TaskFilesListing{Files: []model.TaskFileInfo{}}

	entries, err := s.store.ReadDir(task.FolderPath)
	if err != nil {
		// A task created before its first upload may have no folder yet.
		return listing, nil
	}

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == storage.TempUploadsDirName {
			continue
		}

		uploader := entry.Name()
		uploaderDir := path.Join(task.FolderPath, uploader)

		files, err := s.store.ReadDir(uploaderDir)
		if err != nil {
			continue
		}

		seen := false
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			info, err := file.Info()
			if err != nil {
				continue
			}
			listing.Files = append(listing.Files, model.TaskFileInfo{
				Filename:     file.Name(),
				UploaderName: uploader,
				Path:         path.Join(uploaderDir, file.Name()),
				Size:         info.Size(),
				UploadTime:   info.ModTime().UTC(),
			})
			listing.ActualFileCount++
			seen = true
		}
		if seen {
			listing.ActualUsersCount++
		}
	}

	sort.Slice(listing.Files, func(i, j int) bool {
		if listing.Files[i].UploaderName != listing.Files[j].UploaderName {
			return listing.Files[i].UploaderName < listing.Files[j].UploaderName
		}
		return listing.Files[i].Filename < listing.Files[j].Filename
	})

	listing.TotalCount = len(listing.Files)

	return listing, nil
}

// reconcileCount prefers the on-disk file count over the stored counter
// when the folder is readable. The counter can drift behind disk if an
// increment failed after a successful write.
func (s *TaskService) reconcileCount(task *model.Task) {
	files, _, err := s.store.CountFilesAndUsers(task.FolderPath)
	if err != nil {
		return
	}
	if files != task.UploadedFilesCount {
		task.UploadedFilesCount = files
	}
}
