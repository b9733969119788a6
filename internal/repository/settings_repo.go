package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-file-collector/internal/model"
)

// SettingsRepository reads and writes the single-row policy document.
// Reads are frequent (every admission check), writes are rare admin
// actions; last writer wins.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) Get(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(max_file_size_mb, 0), COALESCE(max_files_per_upload, 0),
		        COALESCE(max_upload_errors, 0), COALESCE(max_uploads_per_user, 0),
		        COALESCE(chunk_size_mb, 0), upload_whitelist
		 FROM settings WHERE id = 1`).
		Scan(&s.MaxFileSizeMB, &s.MaxFilesPerUpload, &s.MaxUploadErrors,
			&s.MaxUploadsPerUser, &s.ChunkSizeMB, &s.UploadWhitelist)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Settings{}, model.ErrSettingsNotFound
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	return s, nil
}

// Update applies a partial update: nil fields keep their stored value.
func (r *SettingsRepository) Update(ctx context.Context, update model.SettingsUpdate) (model.Settings, error) {
	var whitelist []string
	if update.UploadWhitelist != nil {
		whitelist = *update.UploadWhitelist
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE settings SET
		   max_file_size_mb     = COALESCE($1, max_file_size_mb),
		   max_files_per_upload = COALESCE($2, max_files_per_upload),
		   max_upload_errors    = COALESCE($3, max_upload_errors),
		   max_uploads_per_user = COALESCE($4, max_uploads_per_user),
		   chunk_size_mb        = COALESCE($5, chunk_size_mb),
		   upload_whitelist     = CASE WHEN $6 THEN $7::text[] ELSE upload_whitelist END,
		   updated_at           = now()
		 WHERE id = 1`,
		update.MaxFileSizeMB, update.MaxFilesPerUpload, update.MaxUploadErrors,
		update.MaxUploadsPerUser, update.ChunkSizeMB,
		update.UploadWhitelist != nil, whitelist)
	if err != nil {
		return model.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	return r.Get(ctx)
}

func (r *SettingsRepository) GetAdmin(ctx context.Context) (model.AdminCredentials, error) {
	var creds model.AdminCredentials
	var username, hash *string
	err := r.pool.QueryRow(ctx,
		`SELECT admin_username, admin_password_hash FROM settings WHERE id = 1`).
		Scan(&username, &hash)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.AdminCredentials{}, model.ErrSettingsNotFound
	}
	if err != nil {
		return model.AdminCredentials{}, fmt.Errorf("get admin credentials: %w", err)
	}

	if username != nil {
		creds.Username = *username
	}
	if hash != nil {
		creds.PasswordHash = *hash
	}
	return creds, nil
}

// SeedAdmin writes the admin identity only when none is stored yet, so a
// password changed through the API survives restarts with older env values.
func (r *SettingsRepository) SeedAdmin(ctx context.Context, username string, passwordHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE settings SET admin_username = $1, admin_password_hash = $2, updated_at = now()
		 WHERE id = 1 AND admin_password_hash IS NULL`,
		username, passwordHash)
	if err != nil {
		return false, fmt.Errorf("seed admin credentials: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SettingsRepository) UpdateAdminPassword(ctx context.Context, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE settings SET admin_password_hash = $1, updated_at = now() WHERE id = 1`,
		passwordHash)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrSettingsNotFound
	}
	return nil
}
