package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newRotatingWriter opens a size-rotated log file. Module outputs inherit the
// rotation limits of the main file output.
func newRotatingWriter(path string, limits *FileOutput) (*lumberjack.Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := ensureFileDirectory(path); err != nil {
		return nil, err
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    DefaultMaxSize,
		MaxAge:     DefaultMaxAge,
		MaxBackups: DefaultMaxRotatedFiles,
		LocalTime:  true,
	}
	if limits != nil {
		if limits.MaxSize > 0 {
			w.MaxSize = limits.MaxSize
		}
		w.MaxAge = limits.MaxAge
		w.MaxBackups = limits.MaxRotatedFiles
		w.Compress = limits.Compress
	}
	return w, nil
}

// ensureFileDirectory creates the directory for a file path if it doesn't exist
func ensureFileDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == filePath {
		return nil
	}

	const dirPermissions = 0o750
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
