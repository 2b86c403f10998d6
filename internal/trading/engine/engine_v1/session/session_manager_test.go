package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SessionManagerTestSuite struct {
	suite.Suite
	tempDir string
	now     time.Time
}

func (s *SessionManagerTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.now = time.Date(2025, 3, 14, 10, 30, 0, 0, time.Local)
}

func TestSessionManagerTestSuite(t *testing.T) {
	suite.Run(t, new(SessionManagerTestSuite))
}

func (s *SessionManagerTestSuite) newManager() *Manager {
	return NewManagerWithClock(logger.NewNopLogger(), func() time.Time { return s.now })
}

func (s *SessionManagerTestSuite) TestInitialize_FirstRun() {
	m := s.newManager()
	s.Require().NoError(m.Initialize(s.tempDir))

	s.Equal("run_1", m.RunID())
	s.Equal(1, m.RunNumber())
	s.Equal("2025-03-14", m.CurrentDate())
	s.Equal(s.now, m.SessionStart())
	s.NotEmpty(m.SessionID())

	expected := filepath.Join(s.tempDir, "2025-03-14", "run_1")
	s.Equal(expected, m.RunPath())
	s.DirExists(expected)
}

func (s *SessionManagerTestSuite) TestInitialize_PicksNextRunNumber() {
	for _, name := range []string{"run_1", "run_2", "run_7", "notes", "run_x"} {
		s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, "2025-03-14", name), 0755))
	}

	m := s.newManager()
	s.Require().NoError(m.Initialize(s.tempDir))

	s.Equal("run_8", m.RunID())
	s.Equal(8, m.RunNumber())
}

func (s *SessionManagerTestSuite) TestInitialize_UniqueSessionIDs() {
	first := s.newManager()
	s.Require().NoError(first.Initialize(s.tempDir))

	second := s.newManager()
	s.Require().NoError(second.Initialize(s.tempDir))

	s.NotEqual(first.SessionID(), second.SessionID())
	s.Equal("run_2", second.RunID())
}

func (s *SessionManagerTestSuite) TestInitialize_MissingDataDir() {
	err := s.newManager().Initialize("")
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (s *SessionManagerTestSuite) TestHandleDateBoundary() {
	m := s.newManager()
	s.Require().NoError(m.Initialize(s.tempDir))

	changed, err := m.HandleDateBoundary(s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.False(changed)

	changed, err = m.HandleDateBoundary(s.now.Add(24 * time.Hour))
	s.Require().NoError(err)
	s.True(changed)

	s.Equal("2025-03-15", m.CurrentDate())
	s.Equal("run_1", m.RunID())
	s.DirExists(filepath.Join(s.tempDir, "2025-03-15", "run_1"))
}

func (s *SessionManagerTestSuite) TestFilePath() {
	m := s.newManager()
	s.Require().NoError(m.Initialize(s.tempDir))

	s.Equal(filepath.Join(s.tempDir, "2025-03-14", "run_1", "stats.yaml"), m.FilePath("stats.yaml"))
}

func (s *SessionManagerTestSuite) TestListRuns() {
	for _, name := range []string{"run_10", "run_2", "run_1"} {
		s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, "2025-03-14", name), 0755))
	}

	s.Require().NoError(os.WriteFile(filepath.Join(s.tempDir, "2025-03-14", "run_3"), []byte("file"), 0644))

	m := s.newManager()
	s.Require().NoError(m.Initialize(s.tempDir))

	runs, err := m.ListRuns("2025-03-14")
	s.Require().NoError(err)
	s.Equal([]string{"run_1", "run_2", "run_10", "run_11"}, runs)

	runs, err = m.ListRuns("2024-01-01")
	s.Require().NoError(err)
	s.Empty(runs)
}

func (s *SessionManagerTestSuite) TestConcurrentAccess() {
	m := s.newManager()
	s.Require().NoError(m.Initialize(s.tempDir))

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = m.RunPath()
			_ = m.FilePath("basket_actions.parquet")
			_, _ = m.HandleDateBoundary(s.now)
		}()
	}

	wg.Wait()
	s.Equal("run_1", m.RunID())
}
