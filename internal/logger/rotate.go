package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// RotatedSuffixLayout is the date layout appended to rotated log files.
const RotatedSuffixLayout = "2006-01-02"

// DailyFileWriter is a zapcore.WriteSyncer that renames the active file to
// <path>.YYYY-MM-DD on the first write of a new local day.
type DailyFileWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
	day  string
	now  func() time.Time
}

// NewDailyFileWriter opens (or creates) path for appending.
func NewDailyFileWriter(path string) (*DailyFileWriter, error) {
	return newDailyFileWriterWithClock(path, time.Now)
}

func newDailyFileWriterWithClock(path string, now func() time.Time) (*DailyFileWriter, error) {
	w := &DailyFileWriter{
		mu:   sync.Mutex{},
		path: path,
		file: nil,
		day:  "",
		now:  now,
	}

	if err := w.open(); err != nil {
		return nil, err
	}

	return w, nil
}

// Write implements io.Writer.
func (w *DailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, fmt.Errorf("log file %s is closed", w.path)
	}

	today := w.now().Format(RotatedSuffixLayout)
	if today != w.day {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

// Sync implements zapcore.WriteSyncer.
func (w *DailyFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	return w.file.Sync()
}

// Close closes the active file.
func (w *DailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil

	return err
}

// open appends to the active file; an existing file keeps the day of its last modification.
func (w *DailyFileWriter) open() error {
	w.day = w.now().Format(RotatedSuffixLayout)
	if info, err := os.Stat(w.path); err == nil && info.Size() > 0 {
		w.day = info.ModTime().Format(RotatedSuffixLayout)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w.file = file

	return nil
}

func (w *DailyFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	w.file = nil

	target := w.path + "." + w.day
	// an earlier rotation for the same day is replaced
	_ = os.Remove(target)

	if err := os.Rename(w.path, target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w.file = file
	w.day = w.now().Format(RotatedSuffixLayout)

	return nil
}
