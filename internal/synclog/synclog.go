// Package synclog provides a per-run structured logger. Grounded on
// the teacher's own logging idiom: the teacher's entire codebase uses
// only the standard library "log" package (no third-party logging
// library appears anywhere in its go.mod or source), so this package
// follows suit rather than introducing one.
package synclog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Logger wraps a *log.Logger that writes either to a per-run file or,
// when no log directory is configured, to stderr.
type Logger struct {
	*log.Logger
	file *os.File
}

// Open creates a new timestamped log file under dir named after runID
// and returns a Logger writing to it. If dir is empty, the logger
// writes to stderr only.
func Open(dir, runID string) (*Logger, error) {
	if dir == "" {
		return &Logger{Logger: log.New(os.Stderr, "", log.LstdFlags)}, nil
	}

	name := fmt.Sprintf("%s-%s.log", time.Now().UTC().Format("20060102T150405Z"), runID)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("synclog: open %s: %w", path, err)
	}

	return &Logger{
		Logger: log.New(f, "", log.LstdFlags|log.Lmicroseconds),
		file:   f,
	}, nil
}

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
