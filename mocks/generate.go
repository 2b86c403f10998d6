package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/flipped-trading/internal/trading/provider Broker
//go:generate mockgen -destination=./mock_feed.go -package=mocks github.com/rxtech-lab/flipped-trading/internal/marketdata Feed
//go:generate mockgen -destination=./mock_signal_source.go -package=mocks github.com/rxtech-lab/flipped-trading/internal/signal Source
