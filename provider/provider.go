// Package provider connects the exposure engine to a brokerage backend.
// Three backends are supported: the Interactive Brokers Client Portal
// gateway, Binance spot balances, and a scripted paper account file.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"exposureflow/config"
	"exposureflow/internal/feed"
	"exposureflow/models"
)

var (
	// ErrUpstreamUnavailable marks a backend that could not serve the request
	// at all. The running pass is abandoned and the previous report retained.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNoQuote marks an instrument the backend has no market data for. The
	// caller records a miss and lets the price fallback chain handle it.
	ErrNoQuote = errors.New("no quote available")
	// ErrNotSupported marks optional capabilities a backend does not offer.
	ErrNotSupported = errors.New("not supported by backend")
)

// Provider serves the upstream reads of an exposure pass.
type Provider interface {
	// Name returns the backend identifier used in logs and metrics.
	Name() string
	// ListPositions returns every open position of the account.
	ListPositions(ctx context.Context) ([]models.Position, error)
	// GetQuote returns the current market data snapshot for one instrument.
	GetQuote(ctx context.Context, inst models.Instrument) (models.QuoteSnapshot, error)
	// AccountTotals returns the account level values behind the leverage ratios.
	AccountTotals(ctx context.Context) (models.AccountTotals, error)
}

// HealthChecker is implemented by backends with a session that must be kept
// alive between passes.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ChainSource is implemented by backends that can describe option chains.
type ChainSource interface {
	// ChainParams returns the expirations and strike ladder of an underlying.
	ChainParams(ctx context.Context, symbol string) (models.ChainParams, error)
	// OptionContract resolves one strike of the chain into a quotable instrument.
	OptionContract(ctx context.Context, params models.ChainParams, expiry string, strike decimal.Decimal, right models.Right) (models.Instrument, error)
}

// Streamer is implemented by backends that push quote updates between passes.
type Streamer interface {
	StartStream(ctx context.Context, updates *feed.Updates, instruments []models.Instrument) error
	StopStream()
}

// New constructs the backend selected by provider.backend.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.Provider.Backend {
	case config.BackendIbgw:
		return NewIbgw(cfg), nil
	case config.BackendBinance:
		return NewBinance(cfg), nil
	case config.BackendPaper:
		return NewPaper(cfg)
	default:
		return nil, fmt.Errorf("unknown provider backend '%s'", cfg.Provider.Backend)
	}
}
