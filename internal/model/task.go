package model

import "time"

type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusInactive  TaskStatus = "inactive"
	TaskStatusCompleted TaskStatus = "completed"
)

// ValidTaskStatus reports whether s is one of the known lifecycle states.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusActive, TaskStatusInactive, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a file-collection campaign. FolderPath is the task's directory
// inside the uploads root, derived from the id at creation time and never
// changed afterwards. UploadedFilesCount is a cached counter; reads
// reconcile it against a recount of the folder tree.
type Task struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Status             TaskStatus `json:"status"`
	FolderPath         string     `json:"folder_path"`
	CreatedAt          time.Time  `json:"created_at"`
	UploadedFilesCount int        `json:"uploaded_files_count"`
}

type TaskCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type TaskStatusUpdateRequest struct {
	Status TaskStatus `json:"status"`
}

// TaskInfo is the public subset shown on the upload page.
type TaskInfo struct {
	TaskID      string     `json:"task_id"`
	TaskName    string     `json:"task_name"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
}
