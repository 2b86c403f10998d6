package writers

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

const basketActionsDDL = `
	CREATE TABLE IF NOT EXISTS basket_actions (
		time TIMESTAMP,
		symbol TEXT,
		action TEXT,
		direction TEXT,
		price DOUBLE,
		volume DOUBLE,
		basket_size INTEGER,
		total_volume DOUBLE,
		profit DOUBLE,
		reason TEXT,
		order_id TEXT,
		released BOOLEAN
	)
`

// BasketActionsWriter journals every open, add and close of a basket.
type BasketActionsWriter struct {
	table  *parquetTable
	symbol string
}

// NewBasketActionsWriter creates a writer for symbol exporting to outputPath.
func NewBasketActionsWriter(outputPath, symbol string, log *logger.Logger) *BasketActionsWriter {
	return &BasketActionsWriter{
		table:  newParquetTable("basket_actions", basketActionsDDL, "time", outputPath, log),
		symbol: symbol,
	}
}

// Initialize opens the journal, keeping rows from an earlier run of the same day.
func (w *BasketActionsWriter) Initialize() error {
	return w.table.initialize()
}

// Write appends one action.
func (w *BasketActionsWriter) Write(action types.BasketAction) error {
	return w.table.insert(sq.Insert("basket_actions").
		Columns("time", "symbol", "action", "direction", "price", "volume",
			"basket_size", "total_volume", "profit", "reason", "order_id", "released").
		Values(action.Time, w.symbol, string(action.Action), string(action.Direction), action.Price, action.Volume,
			action.BasketSize, action.TotalVolume, action.Profit, string(action.Reason), action.OrderID, action.Released))
}

// Flush re-exports the parquet file.
func (w *BasketActionsWriter) Flush() error {
	return w.table.flush()
}

// OutputPath returns the parquet path.
func (w *BasketActionsWriter) OutputPath() string {
	return w.table.outputPath
}

// Close releases the database.
func (w *BasketActionsWriter) Close() error {
	return w.table.close()
}

// ActionCount returns how many rows carry action. An empty action counts all rows.
func (w *BasketActionsWriter) ActionCount(action types.ActionType) (int, error) {
	if action == "" {
		return w.table.count(nil)
	}

	return w.table.count(sq.Eq{"action": string(action)})
}

// RealizedPnL sums the profit of closes that ended a basket, including a
// failed close that released a basket the broker no longer held.
func (w *BasketActionsWriter) RealizedPnL() (float64, error) {
	return w.table.queryFloat(sq.Select("SUM(profit)").
		From("basket_actions").
		Where(sq.Eq{"action": string(types.ActionClose), "released": true}))
}
