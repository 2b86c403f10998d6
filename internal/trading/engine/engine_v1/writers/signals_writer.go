package writers

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

const signalsDDL = `
	CREATE TABLE IF NOT EXISTS signals (
		time TIMESTAMP,
		symbol TEXT,
		direction TEXT,
		buy_probability DOUBLE,
		sell_probability DOUBLE
	)
`

// SignalsWriter journals signal evaluations made while no basket was open.
type SignalsWriter struct {
	table  *parquetTable
	symbol string
}

func NewSignalsWriter(outputPath, symbol string, log *logger.Logger) *SignalsWriter {
	return &SignalsWriter{
		table:  newParquetTable("signals", signalsDDL, "time", outputPath, log),
		symbol: symbol,
	}
}

func (w *SignalsWriter) Initialize() error {
	return w.table.initialize()
}

func (w *SignalsWriter) Write(result types.SignalResult) error {
	return w.table.insert(sq.Insert("signals").
		Columns("time", "symbol", "direction", "buy_probability", "sell_probability").
		Values(result.Time, w.symbol, string(result.Signal), result.BuyProbability, result.SellProbability))
}

func (w *SignalsWriter) Flush() error {
	return w.table.flush()
}

func (w *SignalsWriter) OutputPath() string {
	return w.table.outputPath
}

func (w *SignalsWriter) Close() error {
	return w.table.close()
}

// DirectionalCount returns how many evaluations produced a BUY or SELL.
func (w *SignalsWriter) DirectionalCount() (int, error) {
	return w.table.count(sq.NotEq{"direction": ""})
}
