package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the maximum number of config backups to keep per project.
	MaxBackups = 3

	// BackupSuffix is the file extension for backup files.
	BackupSuffix = ".bak"
)

// configFilePath returns the .symgraph.yaml path for dir, preferring an
// existing .yml file if that's the one actually present.
func configFilePath(dir string) string {
	for _, path := range fileCandidates(dir) {
		if fileExists(path) {
			return path
		}
	}
	return fileCandidates(dir)[0]
}

// BackupConfig creates a timestamped backup of the project config file in
// dir. Returns the backup file path, or "" if no config file exists yet.
func BackupConfig(dir string) (string, error) {
	configPath := configFilePath(dir)
	if !fileExists(configPath) {
		return "", nil
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", configPath, BackupSuffix, timestamp)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config for backup: %w", err)
	}
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	if err := cleanupOldBackups(configPath); err != nil {
		return backupPath, fmt.Errorf("backup written but cleanup failed: %w", err)
	}

	return backupPath, nil
}

// ListConfigBackups returns all backup files for dir's config file, newest
// first.
func ListConfigBackups(dir string) ([]string, error) {
	configPath := configFilePath(dir)
	configDir := filepath.Dir(configPath)
	configBase := filepath.Base(configPath)

	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list config directory: %w", err)
	}

	var backups []string
	prefix := configBase + BackupSuffix + "."
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(configDir, entry.Name()))
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		infoI, errI := os.Stat(backups[i])
		infoJ, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return false
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return backups, nil
}

// cleanupOldBackups removes backups beyond MaxBackups, keeping the newest.
func cleanupOldBackups(configPath string) error {
	backups, err := ListConfigBackups(filepath.Dir(configPath))
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}

	for _, backup := range backups[MaxBackups:] {
		if err := os.Remove(backup); err != nil {
			continue
		}
	}
	return nil
}

// RestoreConfig restores dir's project config from a backup file, backing
// up the current config first if one exists.
func RestoreConfig(dir, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}

	configPath := configFilePath(dir)
	if fileExists(configPath) {
		if _, err := BackupConfig(dir); err != nil {
			return fmt.Errorf("backup current config before restore: %w", err)
		}
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write restored config: %w", err)
	}
	return nil
}
