package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_Missing(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), "docingest.yaml"))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	backup, err := BackupFile(path)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(backup), "docingest.yaml.bak.")

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	var made []string
	for range MaxBackups + 2 {
		b, err := BackupFile(path)
		require.NoError(t, err)
		made = append(made, b)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, made[len(made)-1], backups[0], "newest first")
	for _, old := range made[:2] {
		assert.NoFileExists(t, old)
	}
}

func TestListBackups_NoDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "missing", "docingest.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backups)
}
