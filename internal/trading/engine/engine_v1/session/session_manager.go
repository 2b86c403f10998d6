package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var runPattern = regexp.MustCompile(`^run_(\d+)$`)

// Manager owns the output folder of one bot process:
//
//	{dataDir}/{YYYY-MM-DD}/run_N/
//
// The run number is picked once at startup. Crossing midnight creates a
// folder with the same run number under the new date.
type Manager struct {
	dataDir      string
	sessionID    string
	runID        string
	runNumber    int
	sessionStart time.Time
	currentDate  string
	runPath      string
	now          func() time.Time
	mu           sync.Mutex
	log          *logger.Logger
}

// NewManager creates a session manager using the wall clock.
func NewManager(log *logger.Logger) *Manager {
	return NewManagerWithClock(log, time.Now)
}

// NewManagerWithClock creates a session manager with an injected clock.
func NewManagerWithClock(log *logger.Logger, now func() time.Time) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{
		dataDir:      "",
		sessionID:    "",
		runID:        "",
		runNumber:    0,
		sessionStart: time.Time{},
		currentDate:  "",
		runPath:      "",
		now:          now,
		mu:           sync.Mutex{},
		log:          log,
	}
}

// Initialize picks the next run number for today and creates its folder.
func (m *Manager) Initialize(dataDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dataDir == "" {
		return errors.New(errors.ErrCodeMissingParameter, "data directory is required")
	}

	m.dataDir = dataDir
	m.sessionStart = m.now()
	m.currentDate = m.sessionStart.Format(dateLayout)
	m.sessionID = uuid.NewString()

	runNumber, err := nextRunNumber(filepath.Join(dataDir, m.currentDate))
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to determine run number", err)
	}

	m.runNumber = runNumber
	m.runID = fmt.Sprintf("run_%d", runNumber)

	if err := m.ensureRunPath(); err != nil {
		return err
	}

	m.log.Info("Session initialized",
		zap.String("session_id", m.sessionID),
		zap.String("run_id", m.runID),
		zap.String("path", m.runPath),
	)

	return nil
}

// HandleDateBoundary moves the run folder to the date of timestamp. It
// returns true when the date changed.
func (m *Manager) HandleDateBoundary(timestamp time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	date := timestamp.Format(dateLayout)
	if date == m.currentDate {
		return false, nil
	}

	previous := m.currentDate
	m.currentDate = date

	if err := m.ensureRunPath(); err != nil {
		return false, err
	}

	m.log.Info("Date boundary crossed",
		zap.String("old_date", previous),
		zap.String("new_date", date),
		zap.String("path", m.runPath),
	)

	return true, nil
}

// SessionID is a random id unique to this process run.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessionID
}

// RunID returns the folder name of the run, e.g. run_2.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.runID
}

// RunNumber returns N of run_N.
func (m *Manager) RunNumber() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.runNumber
}

// SessionStart returns when Initialize ran.
func (m *Manager) SessionStart() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessionStart
}

// CurrentDate returns the folder date in YYYY-MM-DD form.
func (m *Manager) CurrentDate() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.currentDate
}

// RunPath returns the current run folder.
func (m *Manager) RunPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.runPath
}

// FilePath joins filename onto the current run folder.
func (m *Manager) FilePath(filename string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return filepath.Join(m.runPath, filename)
}

// ListRuns returns the run folders recorded under date, in run order.
func (m *Manager) ListRuns(date string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.dataDir, date))
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read date directory", err)
	}

	type run struct {
		name   string
		number int
	}

	runs := make([]run, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		number, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		runs = append(runs, run{name: entry.Name(), number: number})
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].number < runs[j].number })

	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.name
	}

	return names, nil
}

func (m *Manager) ensureRunPath() error {
	m.runPath = filepath.Join(m.dataDir, m.currentDate, m.runID)

	if err := os.MkdirAll(m.runPath, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create run folder", err)
	}

	return nil
}

// nextRunNumber returns one past the highest run_N under datePath.
func nextRunNumber(datePath string) (int, error) {
	entries, err := os.ReadDir(datePath)
	if os.IsNotExist(err) {
		return 1, nil
	}

	if err != nil {
		return 0, err
	}

	highest := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		if number, err := strconv.Atoi(matches[1]); err == nil && number > highest {
			highest = number
		}
	}

	return highest + 1, nil
}
