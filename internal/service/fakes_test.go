package service

import (
	"context"
	"sync"

	"go-file-collector/internal/model"
)

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]model.Task
}

func newFakeTaskStore(tasks ...model.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[string]model.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeTaskStore) Create(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) Get(_ context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) List(_ context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeTaskStore) UpdateStatus(_ context.Context, id string, status model.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return model.ErrTaskNotFound
	}
	task.Status = status
	s.tasks[id] = task
	return nil
}

func (s *fakeTaskStore) IncrementFileCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return model.ErrTaskNotFound
	}
	task.UploadedFilesCount++
	s.tasks[id] = task
	return nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return model.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeTaskStore) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].UploadedFilesCount
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings model.Settings
}

func newFakeSettingsStore(settings model.Settings) *fakeSettingsStore {
	return &fakeSettingsStore{settings: settings}
}

func (s *fakeSettingsStore) Get(_ context.Context) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeSettingsStore) Update(_ context.Context, update model.SettingsUpdate) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.MaxFileSizeMB != nil {
		s.settings.MaxFileSizeMB = *update.MaxFileSizeMB
	}
	if update.MaxFilesPerUpload != nil {
		s.settings.MaxFilesPerUpload = *update.MaxFilesPerUpload
	}
	if update.MaxUploadErrors != nil {
		s.settings.MaxUploadErrors = *update.MaxUploadErrors
	}
	if update.MaxUploadsPerUser != nil {
		s.settings.MaxUploadsPerUser = *update.MaxUploadsPerUser
	}
	if update.ChunkSizeMB != nil {
		s.settings.ChunkSizeMB = *update.ChunkSizeMB
	}
	if update.UploadWhitelist != nil {
		s.settings.UploadWhitelist = *update.UploadWhitelist
	}
	return s.settings, nil
}

type fakeAdminStore struct {
	mu    sync.Mutex
	creds model.AdminCredentials
}

func (s *fakeAdminStore) GetAdmin(_ context.Context) (model.AdminCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

func (s *fakeAdminStore) SeedAdmin(_ context.Context, username string, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds.PasswordHash != "" {
		return false, nil
	}
	s.creds = model.AdminCredentials{Username: username, PasswordHash: passwordHash}
	return true, nil
}

func (s *fakeAdminStore) UpdateAdminPassword(_ context.Context, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.PasswordHash = passwordHash
	return nil
}
