package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, ".symgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestBackupConfig_NoConfigReturnsEmptyPath(t *testing.T) {
	dir := t.TempDir()

	path, err := BackupConfig(dir)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupConfig_CreatesTimestampedCopy(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "version: 1\n")

	backupPath, err := BackupConfig(dir)
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestListConfigBackups_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "version: 1\n")

	first, err := BackupConfig(dir)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond) // distinct second-resolution timestamp suffix
	writeConfigFile(t, dir, "version: 2\n")
	second, err := BackupConfig(dir)
	require.NoError(t, err)

	backups, err := ListConfigBackups(dir)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, second, backups[0])
	assert.Equal(t, first, backups[1])
}

func TestBackupConfig_KeepsOnlyMaxBackups(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "version: 1\n")

	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupConfig(dir)
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)
	}

	backups, err := ListConfigBackups(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
}

func TestRestoreConfig_WritesBackupContents(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "version: 1\n")

	backupPath, err := BackupConfig(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0644))
	require.NoError(t, RestoreConfig(dir, backupPath))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestRestoreConfig_MissingBackupReturnsError(t *testing.T) {
	dir := t.TempDir()
	err := RestoreConfig(dir, filepath.Join(dir, "nonexistent.bak"))
	assert.Error(t, err)
}
