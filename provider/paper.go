package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"exposureflow/config"
	"exposureflow/logger"
	"exposureflow/models"
)

// Paper serves positions, quotes and account totals from a scripted account
// file. It backs local development and demos without a live gateway session.
type Paper struct {
	account *config.PaperAccount
	quotes  map[string]models.QuoteSnapshot
	chains  map[string]models.ChainParams
	log     *logger.Log
}

// NewPaper loads the account file referenced by provider.paper.file.
func NewPaper(cfg *config.Config) (*Paper, error) {
	log := logger.GetLogger()

	account, err := config.LoadPaperAccount(cfg.Provider.Paper.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper account: %w", err)
	}

	p := &Paper{
		account: account,
		quotes:  make(map[string]models.QuoteSnapshot, len(account.Quotes)),
		chains:  make(map[string]models.ChainParams, len(account.Chains)),
		log:     log,
	}

	for _, q := range account.Quotes {
		inst := paperInstrument(q.Symbol, q.SecType, q.Expiry, q.Strike, q.Right, 0)
		snapshot := models.QuoteSnapshot{
			Last:      decimal.NewFromFloat(q.Last),
			Bid:       decimal.NewFromFloat(q.Bid),
			Ask:       decimal.NewFromFloat(q.Ask),
			Mark:      decimal.NewFromFloat(q.Mark),
			Timestamp: time.Now().UTC(),
		}
		if q.Delta != nil || q.Gamma != nil {
			greeks := &models.Greeks{}
			if q.Delta != nil {
				greeks.Delta = decimal.NewFromFloat(*q.Delta)
			}
			if q.Gamma != nil {
				greeks.Gamma = decimal.NewFromFloat(*q.Gamma)
			}
			snapshot.Greeks = greeks
		}
		p.quotes[inst.Key()] = snapshot
	}

	for _, c := range account.Chains {
		params := models.ChainParams{
			Symbol:      c.Symbol,
			Expirations: c.Expirations,
			Multiplier:  c.Multiplier,
		}
		for _, s := range c.Strikes {
			params.Strikes = append(params.Strikes, decimal.NewFromFloat(s))
		}
		p.chains[c.Symbol] = params
	}

	log.WithComponent("paper_provider").WithFields(logger.Fields{
		"file":      cfg.Provider.Paper.File,
		"account":   account.Account.ID,
		"positions": len(account.Positions),
		"quotes":    len(p.quotes),
		"chains":    len(p.chains),
	}).Info("paper account loaded")

	return p, nil
}

func (p *Paper) Name() string {
	return config.BackendPaper
}

// ListPositions converts every scripted row into a position.
func (p *Paper) ListPositions(ctx context.Context) ([]models.Position, error) {
	positions := make([]models.Position, 0, len(p.account.Positions))
	for _, row := range p.account.Positions {
		inst := paperInstrument(row.Symbol, row.SecType, row.Expiry, row.Strike, row.Right, row.Multiplier)
		positions = append(positions, models.Position{
			Instrument: inst,
			Quantity:   decimal.NewFromFloat(row.Quantity),
			AvgCost:    decimal.NewFromFloat(row.AvgCost),
			Account:    p.account.Account.ID,
		})
	}
	logger.IncrementPositionRead(len(positions))
	return positions, nil
}

// GetQuote returns the scripted snapshot for the instrument. Instruments
// without a scripted quote report ErrNoQuote, which exercises the same
// fallback path a live backend would.
func (p *Paper) GetQuote(ctx context.Context, inst models.Instrument) (models.QuoteSnapshot, error) {
	snapshot, ok := p.quotes[inst.Key()]
	if !ok {
		return models.QuoteSnapshot{}, fmt.Errorf("%s: %w", inst.Key(), ErrNoQuote)
	}
	logger.IncrementQuoteRead(1)
	return snapshot, nil
}

// AccountTotals returns the scripted account level values.
func (p *Paper) AccountTotals(ctx context.Context) (models.AccountTotals, error) {
	currency := p.account.Account.Currency
	if currency == "" {
		currency = "USD"
	}
	return models.AccountTotals{
		Account:          p.account.Account.ID,
		NetLiquidation:   decimal.NewFromFloat(p.account.Account.NetLiquidation),
		GrossPositionVal: decimal.NewFromFloat(p.account.Account.GrossPositionVal),
		Currency:         currency,
	}, nil
}

// ChainParams returns the scripted chain for the symbol.
func (p *Paper) ChainParams(ctx context.Context, symbol string) (models.ChainParams, error) {
	params, ok := p.chains[symbol]
	if !ok {
		return models.ChainParams{}, fmt.Errorf("no chain scripted for %s: %w", symbol, ErrNotSupported)
	}
	return params, nil
}

// OptionContract builds the option instrument directly; scripted quotes are
// keyed by the instrument itself, so no upstream resolution is needed.
func (p *Paper) OptionContract(ctx context.Context, params models.ChainParams, expiry string, strike decimal.Decimal, right models.Right) (models.Instrument, error) {
	multiplier := params.Multiplier
	if multiplier <= 0 {
		multiplier = models.DefaultMultiplier
	}
	return models.Option(params.Symbol, expiry, strike, right, multiplier, "USD"), nil
}

func paperInstrument(symbol, secType, expiry string, strike float64, right string, multiplier int) models.Instrument {
	if secType == string(models.SecTypeOption) {
		return models.Option(symbol, expiry, decimal.NewFromFloat(strike), models.Right(right), multiplier, "USD")
	}
	return models.Stock(symbol, "USD")
}
