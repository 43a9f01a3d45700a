package storage

import (
	"os"
	"sync"
	"syscall"
)

// FileLock serializes writers of one storage file. Within the process it is a
// mutex; with flock enabled it also holds an exclusive flock on <path>.lock so
// that other colorbook processes sharing the data directory wait as well.
// The .lock file is never removed: unlinking it would let a waiter hold a
// lock on a file that a newcomer no longer opens.
type FileLock struct {
	path  string
	flock bool
	file  *os.File
	mu    sync.Mutex
}

// NewFileLock creates a new file lock.
func NewFileLock(path string, flock bool) *FileLock {
	return &FileLock{path: path, flock: flock}
}

// Lock acquires an exclusive lock on the file.
func (l *FileLock) Lock() error {
	l.mu.Lock()
	if !l.flock {
		return nil
	}

	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		l.mu.Unlock()
		return err
	}

	l.file = f
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	if !l.flock {
		return true
	}

	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return false
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		l.mu.Unlock()
		return false
	}

	l.file = f
	return true
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if l.file != nil {
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		l.file = nil
	}
	l.mu.Unlock()
	return nil
}
