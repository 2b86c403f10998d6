package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/marketdata"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// progressSteps is the resolution of the download progress bar.
const progressSteps = 1000

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical bars into a parquet file for replay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Provider ticker, e.g. C:XAUUSD on polygon or XAUUSDT on binance",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s or %s)", marketdata.ProviderPolygon, marketdata.ProviderBinance),
				Value:   string(marketdata.ProviderPolygon),
			},
			&cli.StringFlag{
				Name:  "timeframe",
				Usage: "Bar timeframe (1m, 5m, 15m, 30m, 1h, 4h, 1d)",
				Value: "1m",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output `DIR`",
				Value:   "data/market",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	if err := loadDotEnvOnly(); err != nil {
		return err
	}

	timeframe, err := marketdata.ParseTimeframe(cmd.String("timeframe"))
	if err != nil {
		return err
	}

	ticker := cmd.String("ticker")
	providerFlag := marketdata.ProviderType(cmd.String("provider"))
	zlog := logger.NewNopLogger()

	var source marketdata.RangeSource

	switch providerFlag {
	case marketdata.ProviderPolygon:
		apiKey := os.Getenv("POLYGON_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("POLYGON_API_KEY is not set")
		}

		feed, err := marketdata.NewPolygonFeed(apiKey, ticker, timeframe, 0, zlog)
		if err != nil {
			return err
		}

		source = feed
	case marketdata.ProviderBinance:
		source = marketdata.NewBinanceFeed(ticker, timeframe, false, zlog)
	default:
		return fmt.Errorf("unsupported download provider: %s", providerFlag)
	}

	params := marketdata.DownloadParams{
		Ticker:    ticker,
		Timeframe: timeframe,
		StartDate: cmd.Timestamp("start"),
		EndDate:   cmd.Timestamp("end"),
		DataPath:  cmd.String("data"),
	}

	log.Printf("Starting download for %s from %s to %s using %s...",
		ticker, params.StartDate.Format("2006-01-02"), params.EndDate.Format("2006-01-02"), providerFlag)

	bar := progressbar.NewOptions(progressSteps,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", ticker)),
		progressbar.OptionSetWriter(os.Stderr),
	)

	path, err := marketdata.Download(ctx, source, params, func(current, total float64, _ string) {
		if total > 0 {
			_ = bar.Set(int(current / total * progressSteps))
		}
	}, zlog)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	_ = bar.Finish()

	log.Printf("Downloaded data to %s", path)

	return nil
}
