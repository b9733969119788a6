package model

// Settings is the service-wide upload policy document. Numeric limits use
// zero to mean "unlimited"; an empty whitelist means everyone may upload.
// Sizes are expressed in megabytes, matching the admin UI.
type Settings struct {
	MaxFileSizeMB     int      `json:"max_file_size"`
	MaxFilesPerUpload int      `json:"max_files_per_upload"`
	MaxUploadErrors   int      `json:"max_upload_errors"`
	MaxUploadsPerUser int      `json:"max_uploads_per_user"`
	ChunkSizeMB       int      `json:"chunk_size"`
	UploadWhitelist   []string `json:"upload_whitelist"`
}

// SettingsUpdate is a partial update: nil fields are left untouched, so an
// admin can set a single limit (including explicitly setting it to zero)
// without resending the whole document.
type SettingsUpdate struct {
	MaxFileSizeMB     *int      `json:"max_file_size,omitempty"`
	MaxFilesPerUpload *int      `json:"max_files_per_upload,omitempty"`
	MaxUploadErrors   *int      `json:"max_upload_errors,omitempty"`
	MaxUploadsPerUser *int      `json:"max_uploads_per_user,omitempty"`
	ChunkSizeMB       *int      `json:"chunk_size,omitempty"`
	UploadWhitelist   *[]string `json:"upload_whitelist,omitempty"`
}

// PublicSettings is the subset exposed to uploaders so the upload page can
// show the limits in effect. The whitelist itself is never exposed.
type PublicSettings struct {
	MaxFileSizeMB     int `json:"max_file_size"`
	MaxFilesPerUpload int `json:"max_files_per_upload"`
	MaxUploadErrors   int `json:"max_upload_errors"`
	MaxUploadsPerUser int `json:"max_uploads_per_user"`
	ChunkSizeMB       int `json:"chunk_size"`
}

// AdminCredentials is the stored admin identity: a username and a bcrypt
// password hash, kept alongside the settings document.
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type WhitelistImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Names    []string `json:"names"`
}
