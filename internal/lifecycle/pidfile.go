// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

var (
	// ErrPIDFileLocked is returned when another process holds the PID file lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")
)

// PIDFileManager owns a PID file for the lifetime of the daemon.
// The file stays open under an exclusive advisory lock until Remove.
type PIDFileManager struct {
	path string

	mu       sync.Mutex
	lockFile *os.File
}

// NewPIDFileManager creates a new PID file manager for the given path.
func NewPIDFileManager(path string) *PIDFileManager {
	return &PIDFileManager{
		path: path,
	}
}

// Path returns the managed path.
func (m *PIDFileManager) Path() string {
	return m.path
}

// Write records pid in the file, replacing any previous content.
// The parent directory must already exist.
func (m *PIDFileManager) Write(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockFile != nil {
		return fmt.Errorf("PID file %s already written by this process", m.path)
	}

	f, err := m.openLocked()
	if err != nil {
		return err
	}

	if err := f.Truncate(0); err != nil {
		unlockFile(f)
		f.Close()
		return unifyderrors.Wrap(err, "failed to truncate PID file")
	}

	if _, err := f.WriteAt([]byte(strconv.Itoa(pid)), 0); err != nil {
		os.Remove(m.path)
		unlockFile(f)
		f.Close()
		return unifyderrors.Wrap(err, "failed to write PID")
	}

	if err := f.Sync(); err != nil {
		os.Remove(m.path)
		unlockFile(f)
		f.Close()
		return unifyderrors.Wrap(err, "failed to sync PID file")
	}

	m.lockFile = f
	return nil
}

// openLocked opens and locks the file at m.path. A lock won on an inode that
// a previous owner has since unlinked is dropped and the open retried.
func (m *PIDFileManager) openLocked() (*os.File, error) {
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, err
		}
		if err := lockFile(f); err != nil {
			f.Close()
			return nil, err
		}

		held, herr := f.Stat()
		onDisk, derr := os.Stat(m.path)
		if herr == nil && derr == nil && os.SameFile(held, onDisk) {
			return f, nil
		}
		unlockFile(f)
		f.Close()
		if attempt >= 3 {
			return nil, ErrPIDFileLocked
		}
	}
}

// Read reads the PID from the file.
// Returns ErrInvalidPID if the file contains non-numeric data.
func (m *PIDFileManager) Read() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, unifyderrors.Wrap(err, "failed to read PID file")
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, pidStr)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}

	return pid, nil
}

// Remove deletes the PID file and then releases the lock, so no other
// process can take the lock on a path that is about to be unlinked.
// A file that is already gone is not an error.
func (m *PIDFileManager) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.path)

	if m.lockFile != nil {
		unlockFile(m.lockFile)
		m.lockFile.Close()
		m.lockFile = nil
		if err != nil && !os.IsNotExist(err) {
			// Windows refuses to unlink a file that is still open.
			err = os.Remove(m.path)
		}
	}

	if err != nil && !os.IsNotExist(err) {
		return unifyderrors.Wrapf(err, "failed to remove PID file %s", m.path)
	}
	return nil
}

// Exists returns true if the PID file exists.
func (m *PIDFileManager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// WritePIDFile writes the current process ID to path and returns the
// function that removes it. The returned function is safe to call more than
// once and is a no-op when path is empty or the write failed.
//
// Failures are logged and otherwise ignored: the daemon runs without a
// PID file rather than not at all.
func WritePIDFile(path string, logger *slog.Logger) (release func()) {
	if path == "" {
		return func() {}
	}

	pid := os.Getpid()
	m := NewPIDFileManager(path)
	if err := m.Write(pid); err != nil {
		logger.Error("Failed to write PID file", slog.Any("error", &unifyderrors.PIDFileError{Path: path, Op: "write", Cause: err}))
		return func() {}
	}
	logger.Info("PID written", slog.Int("pid", pid), slog.String("path", path))

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := m.Remove(); err != nil {
				logger.Warn("Failed to remove PID file", slog.Any("error", &unifyderrors.PIDFileError{Path: path, Op: "remove", Cause: err}))
			}
		})
	}
}
