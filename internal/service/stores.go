package service

import (
	"context"

	"go-file-collector/internal/model"
)

// TaskStore is the persistence surface the services need for task records.
// Implemented by repository.TaskRepository; tests use in-memory fakes.
type TaskStore interface {
	Create(ctx context.Context, task model.Task) error
	Get(ctx context.Context, id string) (model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus) error
	IncrementFileCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SettingsStore reads and writes the upload policy document.
type SettingsStore interface {
	Get(ctx context.Context) (model.Settings, error)
	Update(ctx context.Context, update model.SettingsUpdate) (model.Settings, error)
}

// AdminStore holds the admin identity used by login and password change.
type AdminStore interface {
	GetAdmin(ctx context.Context) (model.AdminCredentials, error)
	SeedAdmin(ctx context.Context, username string, passwordHash string) (bool, error)
	UpdateAdminPassword(ctx context.Context, passwordHash string) error
}
