// Package archive moves rotated daily log files into monthly zip archives and
// prunes archives past their retention.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultMonthsToKeep = 3
	DefaultLogBasename  = "xu_ml_bot.log"
)

var archiveNamePattern = regexp.MustCompile(`^(\d{4}-\d{2})\.zip$`)

// Options configures an Archiver. Zero values fall back to defaults.
type Options struct {
	LogsDir string
	// ArchiveDir defaults to LogsDir/archives.
	ArchiveDir   string
	MonthsToKeep int
	// LogBasename is the active log file name; rotated files are LogBasename.YYYY-MM-DD.
	LogBasename string
}

// Archiver sweeps rotated logs into ArchiveDir/YYYY-MM.zip.
type Archiver struct {
	logsDir      string
	archiveDir   string
	monthsToKeep int
	logBasename  string
	datedLog     *regexp.Regexp
	now          func() time.Time
	log          *logger.Logger
}

// ArchiveInfo describes one monthly archive.
type ArchiveInfo struct {
	Filename string  `json:"filename" yaml:"filename"`
	SizeMB   float64 `json:"size_mb" yaml:"size_mb"`
	Files    int     `json:"files" yaml:"files"`
}

// Stats summarizes the archive directory.
type Stats struct {
	TotalArchives int     `json:"total_archives" yaml:"total_archives"`
	TotalSizeMB   float64 `json:"total_size_mb" yaml:"total_size_mb"`
	// Archives are sorted newest month first.
	Archives []ArchiveInfo `json:"archives" yaml:"archives"`
}

// NewArchiver creates the archive directory and returns an archiver.
func NewArchiver(opts Options, log *logger.Logger) (*Archiver, error) {
	return NewArchiverWithClock(opts, log, time.Now)
}

// NewArchiverWithClock is NewArchiver with an injected clock.
func NewArchiverWithClock(opts Options, log *logger.Logger, now func() time.Time) (*Archiver, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if opts.LogsDir == "" {
		opts.LogsDir = "logs"
	}

	if opts.ArchiveDir == "" {
		opts.ArchiveDir = filepath.Join(opts.LogsDir, "archives")
	}

	if opts.MonthsToKeep <= 0 {
		opts.MonthsToKeep = DefaultMonthsToKeep
	}

	basename := filepath.Base(opts.LogBasename)
	if opts.LogBasename == "" {
		basename = DefaultLogBasename
	}

	if err := os.MkdirAll(opts.ArchiveDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveFailed, "failed to create archive directory", err)
	}

	return &Archiver{
		logsDir:      opts.LogsDir,
		archiveDir:   opts.ArchiveDir,
		monthsToKeep: opts.MonthsToKeep,
		logBasename:  basename,
		datedLog:     regexp.MustCompile(`^` + regexp.QuoteMeta(basename) + `\.(\d{4}-\d{2}-\d{2})$`),
		now:          now,
		log:          log,
	}, nil
}

// ArchiveDir returns where monthly zips are written.
func (a *Archiver) ArchiveDir() string {
	return a.archiveDir
}

// ArchiveOldLogs moves every rotated log at least one day old into its
// monthly zip, then prunes expired archives. It returns how many log files
// were archived or dropped as duplicates. Failures on one file are logged and
// the sweep continues.
func (a *Archiver) ArchiveOldLogs() (int, error) {
	entries, err := os.ReadDir(a.logsDir)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeArchiveFailed, "failed to read logs directory", err)
	}

	now := a.now()
	archived := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := a.datedLog.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		logDate, err := time.ParseInLocation("2006-01-02", matches[1], now.Location())
		if err != nil {
			continue
		}

		if now.Sub(logDate) < 24*time.Hour {
			continue
		}

		path := filepath.Join(a.logsDir, entry.Name())
		zipPath := filepath.Join(a.archiveDir, logDate.Format("2006-01")+".zip")

		added, err := addToZip(zipPath, path)
		if err != nil {
			a.log.Error("Failed to archive log", zap.String("file", path), zap.Error(err))

			continue
		}

		if err := os.Remove(path); err != nil {
			a.log.Error("Failed to remove archived log", zap.String("file", path), zap.Error(err))

			continue
		}

		if added {
			a.log.Info("Archived log", zap.String("file", entry.Name()), zap.String("archive", filepath.Base(zipPath)))
		} else {
			a.log.Info("Removed duplicate log", zap.String("file", entry.Name()))
		}

		archived++
	}

	if archived > 0 {
		a.log.Info("Log archiving finished", zap.Int("archived", archived))
	}

	a.pruneArchives(now)

	return archived, nil
}

// Stats lists the monthly archives.
func (a *Archiver) Stats() (Stats, error) {
	stats := Stats{TotalArchives: 0, TotalSizeMB: 0, Archives: []ArchiveInfo{}}

	entries, err := os.ReadDir(a.archiveDir)
	if err != nil {
		return stats, errors.Wrap(errors.ErrCodeArchiveFailed, "failed to read archive directory", err)
	}

	var totalBytes int64

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}

		path := filepath.Join(a.archiveDir, entry.Name())

		info, err := os.Stat(path)
		if err != nil {
			return stats, errors.Wrap(errors.ErrCodeArchiveFailed, "failed to stat archive", err)
		}

		reader, err := zip.OpenReader(path)
		if err != nil {
			return stats, errors.Wrapf(errors.ErrCodeArchiveFailed, err, "failed to open archive %s", entry.Name())
		}

		files := len(reader.File)
		reader.Close()

		totalBytes += info.Size()
		stats.Archives = append(stats.Archives, ArchiveInfo{
			Filename: entry.Name(),
			SizeMB:   bytesToMB(info.Size()),
			Files:    files,
		})
	}

	sort.Slice(stats.Archives, func(i, j int) bool {
		return stats.Archives[i].Filename > stats.Archives[j].Filename
	})

	stats.TotalArchives = len(stats.Archives)
	stats.TotalSizeMB = bytesToMB(totalBytes)

	return stats, nil
}

// pruneArchives removes archives whose month began before the retention cutoff.
func (a *Archiver) pruneArchives(now time.Time) {
	entries, err := os.ReadDir(a.archiveDir)
	if err != nil {
		a.log.Error("Failed to read archive directory", zap.Error(err))

		return
	}

	cutoff := now.AddDate(0, 0, -a.monthsToKeep*30)
	removed := 0

	for _, entry := range entries {
		matches := archiveNamePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || len(matches) != 2 {
			continue
		}

		monthStart, err := time.ParseInLocation("2006-01", matches[1], now.Location())
		if err != nil || !monthStart.Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(a.archiveDir, entry.Name())); err != nil {
			a.log.Error("Failed to remove old archive", zap.String("archive", entry.Name()), zap.Error(err))

			continue
		}

		a.log.Info("Removed old archive", zap.String("archive", entry.Name()))
		removed++
	}

	if removed > 0 {
		a.log.Info("Archive cleanup finished", zap.Int("removed", removed))
	}
}

// addToZip rewrites zipPath with src appended. It reports false when an entry
// with the same name already exists, leaving the archive untouched.
func addToZip(zipPath, src string) (bool, error) {
	name := filepath.Base(src)

	var existing []*zip.File

	if reader, err := zip.OpenReader(zipPath); err == nil {
		defer reader.Close()

		for _, f := range reader.File {
			if f.Name == name {
				return false, nil
			}
		}

		existing = reader.File
	} else if !os.IsNotExist(err) {
		return false, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(zipPath), filepath.Base(zipPath)+".*.tmp")
	if err != nil {
		return false, err
	}

	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeZip(tmp, existing, src, name); err != nil {
		tmp.Close()

		return false, err
	}

	if err := tmp.Close(); err != nil {
		return false, err
	}

	return true, os.Rename(tmpPath, zipPath)
}

func writeZip(out io.Writer, existing []*zip.File, src, name string) error {
	writer := zip.NewWriter(out)

	for _, f := range existing {
		if err := writer.Copy(f); err != nil {
			return err
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Deflate

	entry, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}

	if _, err := io.Copy(entry, in); err != nil {
		return err
	}

	return writer.Close()
}

func bytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
