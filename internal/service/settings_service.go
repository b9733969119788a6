package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"go-file-collector/internal/model"
	"go-file-collector/internal/util"
	"go-file-collector/pkg/apierror"
)

const bcryptCost = 12

// SettingsService manages the single operator-tunable limit set and the
// admin credential stored alongside it.
type SettingsService struct {
	settings SettingsStore
	admin    AdminStore
}

func NewSettingsService(settings SettingsStore, admin AdminStore) *SettingsService {
	return &SettingsService{settings: settings, admin: admin}
}

func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	return s.settings.Get(ctx)
}

// GetPublic returns the limits uploaders are allowed to see. The whitelist
// itself stays private; clients probe membership through the whitelist
// check endpoint instead.
func (s *SettingsService) GetPublic(ctx context.Context) (model.PublicSettings, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return model.PublicSettings{}, err
	}
	return model.PublicSettings{
		MaxFileSizeMB:     cfg.MaxFileSizeMB,
		MaxFilesPerUpload: cfg.MaxFilesPerUpload,
		MaxUploadErrors:   cfg.MaxUploadErrors,
		MaxUploadsPerUser: cfg.MaxUploadsPerUser,
		ChunkSizeMB:       cfg.ChunkSizeMB,
	}, nil
}

func (s *SettingsService) Update(ctx context.Context, update model.SettingsUpdate) (model.Settings, error) {
	if err := validateLimits(update); err != nil {
		return model.Settings{}, err
	}

	cfg, err := s.settings.Update(ctx, update)
	if err != nil {
		return model.Settings{}, err
	}

	slog.Info("settings updated")
	return cfg, nil
}

// ImportWhitelist replaces the whitelist with names parsed from an
// uploaded text file. Parsing is lenient about separators and dedupes
// case-insensitively while keeping first-seen order.
func (s *SettingsService) ImportWhitelist(ctx context.Context, r io.Reader) (model.WhitelistImportResult, error) {
	names, skipped, err := util.ParseWhitelist(r)
	if err != nil {
		return model.WhitelistImportResult{}, apierror.New("BAD_REQUEST", "failed to read whitelist file", err.Error(), http.StatusBadRequest)
	}

	if _, err := s.settings.Update(ctx, model.SettingsUpdate{UploadWhitelist: &names}); err != nil {
		return model.WhitelistImportResult{}, err
	}

	slog.Info("whitelist imported", "imported", len(names), "skipped", skipped)
	return model.WhitelistImportResult{Imported: len(names), Skipped: skipped, Names: names}, nil
}

// ChangePassword verifies the current admin password before storing a new
// bcrypt hash. A wrong current password is a bad request, not an auth
// failure; the caller already holds a valid admin token.
func (s *SettingsService) ChangePassword(ctx context.Context, req model.PasswordChangeRequest) error {
	if len(req.NewPassword) < 8 {
		return apierror.New("BAD_REQUEST", "new password must be at least 8 characters", "", http.StatusBadRequest)
	}

	creds, err := s.admin.GetAdmin(ctx)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return apierror.New("BAD_REQUEST", "current password is incorrect", "", http.StatusBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return apierror.New("IO_FAILURE", "failed to hash password", err.Error(), http.StatusInternalServerError)
	}

	if err := s.admin.UpdateAdminPassword(ctx, string(hash)); err != nil {
		return err
	}

	slog.Info("admin password changed")
	return nil
}

func validateLimits(update model.SettingsUpdate) error {
	for name, v := range map[string]*int{
		"max_file_size_mb":     update.MaxFileSizeMB,
		"max_files_per_upload": update.MaxFilesPerUpload,
		"max_upload_errors":    update.MaxUploadErrors,
		"max_uploads_per_user": update.MaxUploadsPerUser,
		"chunk_size_mb":        update.ChunkSizeMB,
	} {
		if v != nil && *v < 0 {
			return apierror.New("BAD_REQUEST", name+" must not be negative", "", http.StatusBadRequest)
		}
	}
	return nil
}
