package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
)

// DirCheckResult is what CheckDirStatus found out about a config dir
type DirCheckResult struct {
	Exists   bool
	Writable bool
	Error    error
}

// FileExists reports whether path can be stat'ed
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dirPath and its parents
func EnsureDir(dirPath string) error {
	return os.MkdirAll(dirPath, 0755)
}

// SaveTOMLFile saves a struct to a TOML file.
// A sibling .lock file serializes writers across processes.
func SaveTOMLFile(data any, filePath string) error {
	lock := flock.New(filePath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", filePath, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warnf("Failed to release lock on %s: %v", filePath, err)
		}
	}()

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", filePath, err)
	}
	if err := encodeTOML(file, data); err != nil {
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	return nil
}

// encodeTOML writes data and closes w. A failed close is reported, since that is
// where a write to disk can fail.
func encodeTOML(w io.WriteCloser, data any) error {
	if err := toml.NewEncoder(w).Encode(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// GetAbsolutePath resolves a relative config path against the working dir
func GetAbsolutePath(configPath string) string {
	switch {
	case configPath == "":
		return "unknown"
	case filepath.IsAbs(configPath):
		return configPath
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		return abs
	}
	return configPath
}

// writable probes dirPath with a throwaway temp file
func writable(dirPath string) bool {
	probe, err := os.CreateTemp(dirPath, ".ordsok-probe-*")
	if err != nil {
		log.Debugf("Config dir %s is not writable: %v", dirPath, err)
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}

// GetExecutableDir returns the dir holding the running binary, the last config fallback.
func GetExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(execPath), nil
}

// CheckDirStatus creates dirPath when missing and reports whether config can be written there.
func CheckDirStatus(dirPath string) DirCheckResult {
	_, statErr := os.Stat(dirPath)
	if statErr != nil {
		if err := EnsureDir(dirPath); err != nil {
			log.Debugf("Cannot create config dir %s: %v", dirPath, err)
			return DirCheckResult{Error: err}
		}
	}
	return DirCheckResult{Exists: true, Writable: writable(dirPath)}
}
