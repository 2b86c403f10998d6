// Package writers journals runner output into parquet files. Each writer keeps
// an in-memory DuckDB table and re-exports it after every write, so the file
// on disk is always complete.
package writers

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// parquetTable is the DuckDB table shared by the journal writers.
type parquetTable struct {
	name       string
	ddl        string
	orderBy    string
	outputPath string
	db         *sql.DB
	mu         sync.Mutex
	log        *logger.Logger
}

func newParquetTable(name, ddl, orderBy, outputPath string, log *logger.Logger) *parquetTable {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &parquetTable{
		name:       name,
		ddl:        ddl,
		orderBy:    orderBy,
		outputPath: outputPath,
		db:         nil,
		mu:         sync.Mutex{},
		log:        log,
	}
}

// initialize opens the database, creates the table and reloads rows from an
// existing parquet file. Columns are matched by name so journals written
// before a column was added still load. A file that cannot be read is
// logged and left to be overwritten by the next export.
func (t *parquetTable) initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.outputPath), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to create journal directory", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriterNotReady, "failed to open DuckDB connection", err)
	}

	if _, err := db.Exec(t.ddl); err != nil {
		db.Close()

		return errors.Wrapf(errors.ErrCodeWriterNotReady, err, "failed to create %s table", t.name)
	}

	if _, err := os.Stat(t.outputPath); err == nil {
		query := fmt.Sprintf("INSERT INTO %s BY NAME SELECT * FROM read_parquet('%s')", t.name, t.outputPath)
		if _, err := db.Exec(query); err != nil {
			t.log.Warn("Existing journal could not be reloaded, it will be overwritten",
				zap.String("table", t.name),
				zap.String("path", t.outputPath),
				zap.Error(err),
			)
		}
	}

	t.db = db

	return nil
}

// insert runs the builder and re-exports the table.
func (t *parquetTable) insert(builder sq.InsertBuilder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return errors.Newf(errors.ErrCodeWriterNotReady, "%s writer not initialized", t.name)
	}

	if _, err := builder.RunWith(t.db).Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to insert into %s", t.name)
	}

	return t.export()
}

func (t *parquetTable) flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return errors.Newf(errors.ErrCodeWriterNotReady, "%s writer not initialized", t.name)
	}

	return t.export()
}

// queryFloat scans a single nullable aggregate. NULL reads as 0.
func (t *parquetTable) queryFloat(builder sq.SelectBuilder) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return 0, errors.Newf(errors.ErrCodeWriterNotReady, "%s writer not initialized", t.name)
	}

	var value sql.NullFloat64
	if err := builder.RunWith(t.db).QueryRow().Scan(&value); err != nil {
		return 0, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query %s", t.name)
	}

	if !value.Valid {
		return 0, nil
	}

	return value.Float64, nil
}

func (t *parquetTable) count(where sq.Sqlizer) (int, error) {
	builder := sq.Select("COUNT(*)").From(t.name)
	if where != nil {
		builder = builder.Where(where)
	}

	value, err := t.queryFloat(builder)
	if err != nil {
		return 0, err
	}

	return int(value), nil
}

func (t *parquetTable) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return nil
	}

	err := t.db.Close()
	t.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to close database", err)
	}

	return nil
}

func (t *parquetTable) export() error {
	query := fmt.Sprintf("COPY (SELECT * FROM %s ORDER BY %s ASC) TO '%s' (FORMAT PARQUET)", t.name, t.orderBy, t.outputPath)
	if _, err := t.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to export %s to parquet", t.name)
	}

	return nil
}
