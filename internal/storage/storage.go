package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
)

// TempUploadsDirName is the staging directory inside each task folder that
// holds chunked-upload part files until assembly.
const TempUploadsDirName = "temp_uploads"

// Storage is the filesystem layer for task folders. All paths are client
// paths relative to the uploads root ("/<task_id>/<uploader>/<filename>")
// and are jailed by the validator before touching the disk.
type Storage struct {
	validator *PathValidator
}

func New(root string) (*Storage, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create uploads root: %w", err)
	}

	return &Storage{validator: validator}, nil
}

func (s *Storage) RootAbs() string {
	return s.validator.RootAbs()
}

func (s *Storage) Resolve(clientPath string) (string, error) {
	return s.validator.ResolvePath(clientPath)
}

func (s *Storage) MkdirAll(clientPath string, perm fs.FileMode) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(resolved, perm); err != nil {
		return fmt.Errorf("mkdir %q: %w", clientPath, err)
	}

	return nil
}

func (s *Storage) Stat(clientPath string) (fs.FileInfo, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	return os.Stat(resolved)
}

func (s *Storage) ReadDir(clientPath string) ([]fs.DirEntry, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	return os.ReadDir(resolved)
}

// Remove deletes a single file or an empty directory.
func (s *Storage) Remove(clientPath string) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil {
		return fmt.Errorf("remove %q: %w", clientPath, err)
	}

	return nil
}

func (s *Storage) RemoveAll(clientPath string) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(resolved); err != nil {
		return fmt.Errorf("remove %q: %w", clientPath, err)
	}

	return nil
}

func (s *Storage) Rename(oldPath string, newPath string) error {
	oldResolved, err := s.Resolve(oldPath)
	if err != nil {
		return err
	}

	newResolved, err := s.Resolve(newPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(newResolved), 0o755); err != nil {
		return fmt.Errorf("prepare destination %q: %w", newPath, err)
	}

	if err := os.Rename(oldResolved, newResolved); err != nil {
		return fmt.Errorf("rename %q to %q: %w", oldPath, newPath, err)
	}

	return nil
}

func (s *Storage) OpenForRead(clientPath string) (*os.File, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	return os.Open(resolved)
}

func (s *Storage) OpenForWrite(clientPath string) (*os.File, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}

	return os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// CountFiles returns the number of regular files directly inside clientPath.
// A missing directory counts as zero: uploaders who have not uploaded yet
// simply have no folder.
func (s *Storage) CountFiles(clientPath string) (int, error) {
	entries, err := s.ReadDir(clientPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			count++
		}
	}

	return count, nil
}

// CountFilesAndUsers recomputes the authoritative counts for a task folder:
// how many files were collected and from how many distinct uploaders. The
// chunk staging directory is not a user and its part files are not counted.
func (s *Storage) CountFilesAndUsers(taskFolder string) (int, int, error) {
	entries, err := s.ReadDir(taskFolder)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	fileCount := 0
	userCount := 0
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == TempUploadsDirName {
			continue
		}

		userCount++
		files, err := s.CountFiles(path.Join(taskFolder, entry.Name()))
		if err != nil {
			return 0, 0, err
		}
		fileCount += files
	}

	return fileCount, userCount, nil
}

// TaskFolderPath derives the immutable client path of a task's directory.
func TaskFolderPath(taskID string) string {
	return "/" + taskID
}

func UploaderDirPath(taskFolder string, uploaderName string) string {
	return path.Join(taskFolder, uploaderName)
}

func PartDirPath(taskFolder string, uploaderName string) string {
	return path.Join(taskFolder, TempUploadsDirName, uploaderName)
}

func PartFilePath(taskFolder string, uploaderName string, filename string, index int) string {
	return path.Join(PartDirPath(taskFolder, uploaderName), filename+".part"+strconv.Itoa(index))
}
