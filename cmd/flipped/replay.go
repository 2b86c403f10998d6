package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rxtech-lab/flipped-trading/internal/marketdata"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine"
	tradingprovider "github.com/rxtech-lab/flipped-trading/internal/trading/provider"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Run the strategy over recorded bars with a paper broker",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Parquet or CSV `FILE` of bars to replay",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Sessions `DIR` for the replay journal (defaults to data_dir)",
			},
			&cli.FloatFlag{
				Name:  "balance",
				Usage: "Paper account starting balance",
				Value: 10000,
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide the progress bar",
			},
		},
		Action: replayAction,
	}
}

func replayAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	cfg.MarketData.Provider = marketdata.ProviderReplay
	cfg.MarketData.Path = cmd.String("data")
	cfg.Broker.Provider = tradingprovider.ProviderPaper
	cfg.Broker.InitialBalance = cmd.Float("balance")
	cfg.Server.Enabled = false

	if output := cmd.String("output"); output != "" {
		cfg.DataDir = output
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// replay output goes to the log file only
	cfg.Logging.Console = false

	zlog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer zlog.Close()

	a, err := buildApp(cfg, zlog, false)
	if err != nil {
		return fmt.Errorf("failed to start replay: %w", err)
	}

	replay, ok := a.feed.(*marketdata.ReplayFeed)
	if !ok {
		return fmt.Errorf("replay requires a replay feed, got %T", a.feed)
	}

	_, total := replay.Progress()

	var callbacks engine.Callbacks

	if !cmd.Bool("quiet") {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetDescription(fmt.Sprintf("Replaying %s", cfg.Symbol)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
		)

		onTick := engine.OnTickCallback(func(engine.Status) error {
			current, _ := replay.Progress()

			return bar.Set(current)
		})
		onStop := engine.OnEngineStopCallback(func(error) {
			_ = bar.Finish()
		})

		callbacks.OnTick = &onTick
		callbacks.OnEngineStop = &onStop
	}

	if err := a.runner.Run(ctx, callbacks); err != nil {
		return err
	}

	out, err := yaml.Marshal(a.runner.Stats())
	if err != nil {
		return err
	}

	fmt.Printf("\n%s", out)

	return nil
}
