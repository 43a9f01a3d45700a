package connectivity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Status file contents.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ErrUnknownStatus is returned by ReadStatus for unrecognized file content.
var ErrUnknownStatus = errors.New("unknown connectivity status")

// FileSignal feeds a Monitor from a status file maintained by the host.
// The file holds "online" or "offline"; every change is pushed to the
// monitor as it happens.
type FileSignal struct {
	watcher *fsnotify.Watcher
	path    string
	monitor *Monitor
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// NewFileSignal watches path on behalf of monitor. The parent directory is
// created if needed; a missing file leaves the monitor unchanged until the
// file appears.
func NewFileSignal(path string, monitor *Monitor) (*FileSignal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory so that atomic replaces of the file are seen.
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("connectivity signal initialized")

	return &FileSignal{
		watcher: w,
		path:    path,
		monitor: monitor,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start applies the current file content and begins watching.
func (s *FileSignal) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.apply()
	go s.run()
}

func (s *FileSignal) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.apply()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("connectivity signal error")
		}
	}
}

func (s *FileSignal) apply() {
	online, err := ReadStatus(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("ignoring connectivity status")
		}
		return
	}
	s.monitor.Set(online)
}

// Stop stops the watcher.
func (s *FileSignal) Stop() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	if started {
		<-s.doneCh
	}

	return s.watcher.Close()
}

// ReadStatus reads a status file.
func ReadStatus(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(string(data))) {
	case StatusOnline:
		return true, nil
	case StatusOffline:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownStatus, strings.TrimSpace(string(data)))
	}
}

// WriteStatus is the host side of the signal: it replaces the status file
// atomically.
func WriteStatus(path string, online bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	status := StatusOffline
	if online {
		status = StatusOnline
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(status+"\n"), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
