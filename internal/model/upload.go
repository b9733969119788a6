package model

import "time"

// FileUploadResult describes one successfully stored file.
type FileUploadResult struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	UploadTime   time.Time `json:"upload_time"`
	UploaderName string    `json:"uploader_name"`
}

type UploadFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// PrecheckResult echoes the limits in effect alongside the verdict.
// CurrentUploadCount is only populated when a per-user quota is configured,
// since computing it costs a directory scan.
type PrecheckResult struct {
	CanUpload          bool   `json:"can_upload"`
	Reason             string `json:"reason,omitempty"`
	MaxFilesPerUpload  int    `json:"max_files_per_upload,omitempty"`
	MaxFileSizeMB      int    `json:"max_file_size,omitempty"`
	MaxUploadsPerUser  int    `json:"max_uploads_per_user,omitempty"`
	CurrentUploadCount *int   `json:"current_upload_count,omitempty"`
}

// ChunkProgress acknowledges one received part of a chunked upload.
type ChunkProgress struct {
	Filename       string `json:"filename"`
	ChunkIndex     int    `json:"chunk_index"`
	TotalChunks    int    `json:"total_chunks"`
	ReceivedChunks int    `json:"received_chunks"`
	Complete       bool   `json:"complete"`
}

// ChunkOutcome is the response of a part receive: every call carries a
// progress acknowledgment, and exactly the call that completed assembly
// additionally carries the final file metadata.
type ChunkOutcome struct {
	Progress ChunkProgress     `json:"progress"`
	File     *FileUploadResult `json:"file,omitempty"`
}

// TaskFileInfo is one stored file in a task listing.
type TaskFileInfo struct {
	Filename     string    `json:"filename"`
	UploaderName string    `json:"uploader_name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	UploadTime   time.Time `json:"upload_time"`
}

// TaskFilesListing pairs the listed files with counts recomputed from the
// folder tree, so drift in the cached task counter is visible.
type TaskFilesListing struct {
	Files            []TaskFileInfo `json:"files"`
	TotalCount       int            `json:"total_count"`
	ActualFileCount  int            `json:"actual_file_count"`
	ActualUsersCount int            `json:"actual_users_count"`
}
