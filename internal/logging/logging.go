// Package logging provides structured logging using zerolog.
//
// Every colorbook invocation may write its own JSON log file under the state
// directory; Init keeps only the newest Config.MaxFiles of them.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

const (
	filePrefix = "colorbook-"
	fileSuffix = ".log"

	// DefaultMaxFiles is how many log files are kept in LogDir.
	DefaultMaxFiles = 10
)

var (
	fileMu   sync.Mutex
	file     *os.File
	filePath string
)

// Level represents log levels.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logger configuration.
type Config struct {
	Level Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output on Output.
	Pretty     bool
	TimeFormat string

	// LogToFile additionally writes JSON logs to LogDir/colorbook-<time>.log.
	LogToFile bool
	LogDir    string
	// MaxFiles bounds the log files kept in LogDir, counting the new one.
	// Zero means DefaultMaxFiles; negative disables pruning.
	MaxFiles int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
		LogDir:     os.TempDir(),
		MaxFiles:   DefaultMaxFiles,
	}
}

// Init replaces the global logger. A log file opened by a previous Init is
// closed first.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.LogDir == "" {
		cfg.LogDir = os.TempDir()
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}

	Close()

	if cfg.LogToFile {
		f, err := openFile(cfg.LogDir, cfg.MaxFiles)
		if err != nil {
			fmt.Fprintf(cfg.Output, "logging: cannot open log file: %v\n", err)
		} else {
			out = zerolog.MultiLevelWriter(out, f)
		}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

func openFile(dir string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if maxFiles > 0 {
		prune(dir, maxFiles-1)
	}

	name := filePrefix + time.Now().Format("20060102-150405") + fileSuffix
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	fileMu.Lock()
	file, filePath = f, path
	fileMu.Unlock()
	return f, nil
}

// prune removes the oldest log files in dir until at most keep remain.
// File names sort by creation time.
func prune(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var logs []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			logs = append(logs, name)
		}
	}
	if len(logs) <= keep {
		return
	}
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-keep] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}

// FilePath returns the active log file, or "" when not logging to a file.
func FilePath() string {
	fileMu.Lock()
	defer fileMu.Unlock()
	return filePath
}

// Close closes the active log file, if any.
func Close() {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = nil
	filePath = ""
}

// ParseLevel parses a level name case-insensitively. "warning" is accepted;
// unknown names give InfoLevel.
func ParseLevel(level string) Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return WarnLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return InfoLevel
	}
	return l
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event { return Logger.Info() }
func Warn() *zerolog.Event { return Logger.Warn() }

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func init() {
	Init(DefaultConfig())
}
