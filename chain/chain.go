// Package chain assembles the option chain view for one underlying: a
// window of strikes centered on the spot price, with quoted prices, resolved
// prices and greeks for the call and put of every strike. It reuses the
// engine's resolution chains, so the columns degrade the same way the
// exposure table does when market data is missing.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"exposureflow/config"
	"exposureflow/engine"
	"exposureflow/logger"
	"exposureflow/models"
	"exposureflow/provider"
)

var hundred = decimal.NewFromInt(100)

// Browser fetches and assembles chain views through a provider that exposes
// chain parameters. Quote requests run under the same rate limit as the
// exposure pass.
type Browser struct {
	provider   provider.Provider
	source     provider.ChainSource
	limiter    *rate.Limiter
	maxStrikes int
	log        *logger.Log
}

// NewBrowser wires a browser to the given backend. Backends without chain
// support are rejected with ErrNotSupported.
func NewBrowser(cfg *config.Config, prov provider.Provider) (*Browser, error) {
	source, ok := prov.(provider.ChainSource)
	if !ok {
		return nil, fmt.Errorf("backend %s has no option chain data: %w", prov.Name(), provider.ErrNotSupported)
	}

	rps := cfg.Refresh.QuoteRateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Refresh.QuoteRateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	maxStrikes := cfg.Chain.MaxStrikes
	if maxStrikes <= 0 {
		maxStrikes = 10
	}

	return &Browser{
		provider:   prov,
		source:     source,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxStrikes: maxStrikes,
		log:        logger.GetLogger(),
	}, nil
}

// Expirations returns the chain parameters of an underlying: its tradeable
// expirations and the full strike ladder.
func (b *Browser) Expirations(ctx context.Context, symbol string) (models.ChainParams, error) {
	return b.source.ChainParams(ctx, symbol)
}

// View builds the chain view for one symbol and expiry: spot price, then a
// call and put row per windowed strike. Strikes with no resolvable contract
// are skipped; strikes with no market data resolve through the fallback
// tiers like any option leg.
func (b *Browser) View(ctx context.Context, symbol, expiry string) (*models.ChainView, error) {
	params, err := b.source.ChainParams(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("chain parameters for %s unavailable: %w", symbol, err)
	}
	if !containsExpiry(params.Expirations, expiry) {
		return nil, fmt.Errorf("expiry %s is not listed for %s", expiry, symbol)
	}

	spot := b.resolveSpot(ctx, symbol, params.ConID)
	strikes := windowStrikes(params.Strikes, spot.Price, b.maxStrikes)

	b.log.WithComponent("chain").WithFields(logger.Fields{
		"symbol":  symbol,
		"expiry":  expiry,
		"spot":    spot.Price.String(),
		"strikes": len(strikes),
	}).Info("fetching chain window")

	view := &models.ChainView{
		Symbol:    symbol,
		Expiry:    expiry,
		Spot:      spot.Price,
		SpotBasis: spot.Source,
		Calls:     make([]models.ChainRow, 0, len(strikes)),
		Puts:      make([]models.ChainRow, 0, len(strikes)),
		Timestamp: time.Now().UTC(),
	}

	for _, strike := range strikes {
		for _, right := range []models.Right{models.RightCall, models.RightPut} {
			row, err := b.buildRow(ctx, params, expiry, strike, right, spot.Price)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				b.log.WithComponent("chain").WithError(err).WithFields(logger.Fields{
					"symbol": symbol,
					"strike": strike.String(),
					"right":  string(right),
				}).Warn("strike skipped")
				continue
			}
			if right == models.RightCall {
				view.Calls = append(view.Calls, row)
			} else {
				view.Puts = append(view.Puts, row)
			}
		}
	}

	return view, nil
}

// resolveSpot quotes the underlying equity and runs the price chain over it.
// A symbol with no quote at all yields a zero spot with source "none"; the
// window then centers on the ladder's middle strike.
func (b *Browser) resolveSpot(ctx context.Context, symbol string, conID int64) engine.ResolvedPrice {
	und := models.Stock(symbol, "")
	und.ConID = conID

	var snapshot models.QuoteSnapshot
	if err := b.limiter.Wait(ctx); err == nil {
		q, err := b.provider.GetQuote(ctx, und)
		if err != nil && !errors.Is(err, provider.ErrNoQuote) {
			b.log.WithComponent("chain").WithError(err).WithFields(logger.Fields{
				"symbol": symbol,
			}).Warn("spot quote failed")
		} else if err == nil {
			snapshot = q
		}
	}

	return engine.ResolvePrice(snapshot, und, decimal.Zero)
}

func (b *Browser) buildRow(ctx context.Context, params models.ChainParams, expiry string, strike decimal.Decimal, right models.Right, spot decimal.Decimal) (models.ChainRow, error) {
	inst, err := b.source.OptionContract(ctx, params, expiry, strike, right)
	if err != nil {
		return models.ChainRow{}, fmt.Errorf("contract resolution failed: %w", err)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return models.ChainRow{}, err
	}

	var snapshot models.QuoteSnapshot
	q, err := b.provider.GetQuote(ctx, inst)
	if err != nil && !errors.Is(err, provider.ErrNoQuote) {
		return models.ChainRow{}, err
	} else if err == nil {
		snapshot = q
	}

	price := engine.ResolvePrice(snapshot, inst, decimal.Zero)
	greeks := engine.ResolveGreeks(snapshot, right, strike, spot)

	row := models.ChainRow{
		Strike:      strike,
		Right:       right,
		Bid:         snapshot.Bid,
		Ask:         snapshot.Ask,
		Last:        snapshot.Last,
		Price:       price.Price,
		PriceSource: price.Source,
		Delta:       greeks.Delta,
		Gamma:       greeks.Gamma,
		Heuristic:   greeks.Heuristic,
	}

	if spot.IsPositive() {
		row.PctOfStock = price.Price.Div(spot).Mul(hundred)
	}
	row.DiffFromStock = price.Price.Sub(intrinsicValue(right, strike, spot))

	return row, nil
}

// intrinsicValue is the option's exercise value at the current spot, floored
// at zero. Subtracting it from the resolved price gives the premium over
// intrinsic shown in the chain table.
func intrinsicValue(right models.Right, strike, spot decimal.Decimal) decimal.Decimal {
	var value decimal.Decimal
	if right == models.RightPut {
		value = strike.Sub(spot)
	} else {
		value = spot.Sub(strike)
	}
	return decimal.Max(value, decimal.Zero)
}

// windowStrikes narrows the full strike ladder to at most max strikes around
// the spot price. The first strike at or above the spot anchors the middle
// of the window; with no positive spot the ladder's middle strike does.
func windowStrikes(strikes []decimal.Decimal, spot decimal.Decimal, max int) []decimal.Decimal {
	sorted := make([]decimal.Decimal, len(strikes))
	copy(sorted, strikes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	if len(sorted) <= max {
		return sorted
	}

	middle := len(sorted) / 2
	if spot.IsPositive() {
		middle = len(sorted)
		for i, s := range sorted {
			if s.GreaterThanOrEqual(spot) {
				middle = i
				break
			}
		}
	}

	start := middle - max/2
	if start < 0 {
		start = 0
	}
	end := start + max
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end]
}

func containsExpiry(expirations []string, expiry string) bool {
	for _, e := range expirations {
		if e == expiry {
			return true
		}
	}
	return false
}
