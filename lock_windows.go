//go:build windows

package modelfetch

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// processLock is a cross-process lock backed by LockFileEx().
// It guards a manifest's status record and temp artifacts against a second
// downloader process.
type processLock struct {
	// file is the lock file handle; nil once released.
	file *os.File
}

// acquireLock takes an exclusive lock on the file at path, creating it if
// needed. It polls with backoff until the lock is held or timeout expires.
func acquireLock(path string, timeout time.Duration) (*processLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	sleep := 10 * time.Millisecond
	for {
		ol := new(windows.Overlapped)
		err := windows.LockFileEx(
			windows.Handle(file.Fd()),
			windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
			0, 1, 0, ol,
		)
		if err == nil {
			return &processLock{file: file}, nil
		}
		if time.Now().After(deadline) {
			file.Close()
			return nil, fmt.Errorf("lock timeout after %v", timeout)
		}
		time.Sleep(sleep)
		if sleep < 100*time.Millisecond {
			sleep *= 2
		}
	}
}

// Release drops the lock and closes the handle. Safe to call twice.
func (l *processLock) Release() error {
	if l.file == nil {
		return nil
	}
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, ol)
	l.file.Close()
	l.file = nil
	return err
}
