package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, s *Storage, clientPath string, content string) {
	t.Helper()
	f, err := s.OpenForWrite(clientPath)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestResolveJailsPaths(t *testing.T) {
	s := newStorage(t)

	abs, err := s.Resolve("/t1/alice/file.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
	assert.Contains(t, abs, s.RootAbs())

	_, err = s.Resolve("/t1/../../etc/passwd")
	assert.Error(t, err)

	_, err = s.Resolve("..")
	assert.Error(t, err)

	_, err = s.Resolve("/t1/\x00evil")
	assert.Error(t, err)
}

func TestOpenForWriteCreatesParents(t *testing.T) {
	s := newStorage(t)

	writeFile(t, s, "/t1/alice/deep.txt", "hello")

	info, err := s.Stat("/t1/alice/deep.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
}

func TestRenameCreatesDestinationDir(t *testing.T) {
	s := newStorage(t)

	writeFile(t, s, "/t1/temp_uploads/alice/staged.bin", "data")
	require.NoError(t, s.Rename("/t1/temp_uploads/alice/staged.bin", "/t1/alice/final.bin"))

	_, err := s.Stat("/t1/alice/final.bin")
	assert.NoError(t, err)
	_, err = s.Stat("/t1/temp_uploads/alice/staged.bin")
	assert.Error(t, err)
}

func TestCountFiles(t *testing.T) {
	s := newStorage(t)

	count, err := s.CountFiles("/t1/alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "missing directory counts as zero")

	writeFile(t, s, "/t1/alice/a.txt", "a")
	writeFile(t, s, "/t1/alice/b.txt", "b")
	require.NoError(t, s.MkdirAll("/t1/alice/subdir", 0o755))

	count, err = s.CountFiles("/t1/alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "subdirectories are not files")
}

func TestCountFilesAndUsers(t *testing.T) {
	s := newStorage(t)

	files, users, err := s.CountFilesAndUsers("/t1")
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, users)

	writeFile(t, s, "/t1/alice/a.txt", "a")
	writeFile(t, s, "/t1/alice/b.txt", "b")
	writeFile(t, s, "/t1/bob/c.txt", "c")
	writeFile(t, s, "/t1/temp_uploads/carol/d.part0", "d")

	files, users, err = s.CountFilesAndUsers("/t1")
	require.NoError(t, err)
	assert.Equal(t, 3, files, "staged parts are not collected files")
	assert.Equal(t, 2, users, "the staging directory is not a user")
}

func TestRemoveOnlyEmptiesDirectories(t *testing.T) {
	s := newStorage(t)

	writeFile(t, s, "/t1/alice/a.txt", "a")

	assert.Error(t, s.Remove("/t1/alice"), "non-empty directory")
	require.NoError(t, s.Remove("/t1/alice/a.txt"))
	assert.NoError(t, s.Remove("/t1/alice"))
}

func TestPartFilePathLayout(t *testing.T) {
	assert.Equal(t, "/t1", TaskFolderPath("t1"))
	assert.Equal(t, "/t1/alice", UploaderDirPath("/t1", "alice"))
	assert.Equal(t, "/t1/temp_uploads/alice", PartDirPath("/t1", "alice"))
	assert.Equal(t, "/t1/temp_uploads/alice/video.mp4.part7", PartFilePath("/t1", "alice", "video.mp4", 7))
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "uploads")
	s, err := New(root)
	require.NoError(t, err)

	info, err := os.Stat(s.RootAbs())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
