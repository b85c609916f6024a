package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Startup states written to the status file.
const (
	StateReady = "ready"
	StateError = "error"
)

// StatusFile tells the process that launched srmd whether startup worked.
type StatusFile struct {
	Status    string    `json:"status"`
	PID       int       `json:"pid,omitempty"`
	Socket    string    `json:"socket,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// WriteStatusReady writes a ready status file.
func WriteStatusReady(path, socket string) error {
	return writeStatus(path, &StatusFile{
		Status:    StateReady,
		PID:       os.Getpid(),
		Socket:    socket,
		StartedAt: time.Now(),
	})
}

// WriteStatusError writes an error status file.
func WriteStatusError(path string, err error) error {
	return writeStatus(path, &StatusFile{Status: StateError, Error: err.Error()})
}

func writeStatus(path string, status *StatusFile) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadStatus reads a status file.
func ReadStatus(path string) (*StatusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var status StatusFile
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RemoveStatus removes the status file.
func RemoveStatus(path string) error {
	return os.Remove(path)
}
