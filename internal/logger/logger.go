package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photoreviver/internal/config"

	"github.com/rs/zerolog"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
// Files receive JSON lines, the console receives human readable output.
type Logger struct {
	zl     zerolog.Logger
	logDir string
	files  map[string]*os.File
}

// NewLogger creates a Logger from configuration and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return New(cfg.Logging.Directory, cfg.Logging.Level)
}

// New creates a Logger writing into dir at the given minimum level.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: dir, files: make(map[string]*os.File, 3)}
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files[name] = f
	}

	router := &levelRouter{
		stdout: zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime},
		stderr: zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime},
		info:   l.files[InfoFile],
		warn:   l.files[WarningFile],
		err:    l.files[ErrorFile],
	}

	l.zl = zerolog.New(router).Level(ParseLevel(level)).With().Timestamp().Logger()
	return l, nil
}

// ParseLevel maps a configuration level name to a zerolog level. Unknown
// names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Zerolog exposes the structured logger for middleware and supervisors.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Component returns a child logger tagged with a component field.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// FileForLevel maps info, warning or error to its log file name.
func FileForLevel(level string) (string, bool) {
	switch level {
	case "info":
		return InfoFile, true
	case "warning":
		return WarningFile, true
	case "error":
		return ErrorFile, true
	}
	return "", false
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if _, ok := l.files[fileName]; !ok {
		return fmt.Errorf("unknown log file %q", fileName)
	}
	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}
	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Close closes all log files.
func (l *Logger) Close() error {
	var first error
	for name, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(l.files, name)
	}
	return first
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop(), files: map[string]*os.File{}}
}

// levelRouter sends each entry to the console and to the file of its level.
type levelRouter struct {
	stdout io.Writer
	stderr io.Writer
	info   io.Writer
	warn   io.Writer
	err    io.Writer
}

func (r *levelRouter) Write(p []byte) (int, error) {
	return r.WriteLevel(zerolog.NoLevel, p)
}

func (r *levelRouter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	console, file := r.stdout, r.info
	switch {
	case level >= zerolog.ErrorLevel && level != zerolog.NoLevel:
		console, file = r.stderr, r.err
	case level == zerolog.WarnLevel:
		file = r.warn
	}
	// Console failures never drop the file entry.
	_, _ = console.Write(p)
	return file.Write(p)
}
