//go:build !windows

package modelfetch

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// processLock is a cross-process advisory lock backed by flock().
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
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
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
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	return err
}
