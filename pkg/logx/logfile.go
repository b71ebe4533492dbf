package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const logFilePrefix = "pilot-"

//nolint:gochecknoglobals // single log file per process
var (
	logFile   *os.File
	logFileMu sync.Mutex
)

// InitializeLogFile opens a fresh timestamped log file in dir and routes all
// log output to it. Only the newest keep files are retained. With tee set,
// lines are also written to stderr.
func InitializeLogFile(dir string, keep int, tee bool) error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s%s.log", logFilePrefix, time.Now().UTC().Format("20060102-150405.000"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if err := pruneLogFiles(dir, keep); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to prune old log files: %v\n", err)
	}

	logFile = f
	var w io.Writer = f
	if tee {
		w = io.MultiWriter(f, os.Stderr)
	}
	SetOutput(w)
	return nil
}

// CloseLogFile restores stderr output and closes the current log file.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	SetOutput(nil)
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// pruneLogFiles removes all but the newest keep log files. The file just
// created counts toward keep.
func pruneLogFiles(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), logFilePrefix) && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}
