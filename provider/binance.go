package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"exposureflow/config"
	"exposureflow/logger"
	"exposureflow/models"
)

// Binance maps a spot account onto the position model: every non-zero asset
// balance becomes an equity position priced in the configured quote asset, so
// the exposure engine treats crypto holdings like stock. There are no options
// on spot, so greeks and chains never apply.
type Binance struct {
	config *config.Config
	client *binance.Client
	log    *logger.Log
}

// NewBinance creates a spot client with the configured credentials.
func NewBinance(cfg *config.Config) *Binance {
	client := binance.NewClient(cfg.Provider.Binance.APIKey, cfg.Provider.Binance.APISecret)
	log := logger.GetLogger()

	log.WithComponent("binance_provider").WithFields(logger.Fields{
		"quote_asset": cfg.Provider.Binance.QuoteAsset,
	}).Info("binance provider initialized")

	return &Binance{config: cfg, client: client, log: log}
}

func (b *Binance) Name() string {
	return config.BackendBinance
}

// symbol joins an asset with the quote asset, e.g. BTC -> BTCUSDT.
func (b *Binance) symbol(asset string) string {
	return asset + b.config.Provider.Binance.QuoteAsset
}

// ListPositions converts every non-zero spot balance into an equity position.
// The quote asset itself is skipped; it is cash, not exposure.
func (b *Binance) ListPositions(ctx context.Context) ([]models.Position, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance account request: %v: %w", err, ErrUpstreamUnavailable)
	}

	quoteAsset := b.config.Provider.Binance.QuoteAsset
	var positions []models.Position
	for _, balance := range account.Balances {
		free, err := decimal.NewFromString(balance.Free)
		if err != nil {
			continue
		}
		locked, _ := decimal.NewFromString(balance.Locked)
		quantity := free.Add(locked)
		if quantity.IsZero() || balance.Asset == quoteAsset {
			continue
		}

		positions = append(positions, models.Position{
			Instrument: models.Stock(b.symbol(balance.Asset), quoteAsset),
			Quantity:   quantity,
		})
	}

	logger.IncrementPositionRead(len(positions))
	logger.LogDataFlowEntry(b.log.WithComponent("binance_provider"), "binance", "poller", len(positions), "positions")

	return positions, nil
}

// GetQuote combines the book ticker with the last trade price.
func (b *Binance) GetQuote(ctx context.Context, inst models.Instrument) (models.QuoteSnapshot, error) {
	books, err := b.client.NewListBookTickersService().Symbol(inst.Symbol).Do(ctx)
	if err != nil {
		return models.QuoteSnapshot{}, fmt.Errorf("binance book ticker %s: %v: %w", inst.Symbol, err, ErrNoQuote)
	}
	prices, err := b.client.NewListPricesService().Symbol(inst.Symbol).Do(ctx)
	if err != nil {
		return models.QuoteSnapshot{}, fmt.Errorf("binance price %s: %v: %w", inst.Symbol, err, ErrNoQuote)
	}

	snapshot := models.QuoteSnapshot{Timestamp: time.Now().UTC()}
	if len(books) > 0 {
		snapshot.Bid, _ = decimal.NewFromString(books[0].BidPrice)
		snapshot.Ask, _ = decimal.NewFromString(books[0].AskPrice)
	}
	if len(prices) > 0 {
		snapshot.Last, _ = decimal.NewFromString(prices[0].Price)
	}

	logger.IncrementQuoteRead(1)
	return snapshot, nil
}

// AccountTotals values every balance at its last price in one pass over the
// full price list. The quote asset counts toward net liquidation as cash but
// not toward gross position value.
func (b *Binance) AccountTotals(ctx context.Context) (models.AccountTotals, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return models.AccountTotals{}, fmt.Errorf("binance account request: %v: %w", err, ErrUpstreamUnavailable)
	}
	prices, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return models.AccountTotals{}, fmt.Errorf("binance price request: %v: %w", err, ErrUpstreamUnavailable)
	}

	priceBySymbol := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		if d, err := decimal.NewFromString(p.Price); err == nil {
			priceBySymbol[p.Symbol] = d
		}
	}

	quoteAsset := b.config.Provider.Binance.QuoteAsset
	netLiq := decimal.Zero
	gross := decimal.Zero
	for _, balance := range account.Balances {
		free, err := decimal.NewFromString(balance.Free)
		if err != nil {
			continue
		}
		locked, _ := decimal.NewFromString(balance.Locked)
		quantity := free.Add(locked)
		if quantity.IsZero() {
			continue
		}

		if balance.Asset == quoteAsset {
			netLiq = netLiq.Add(quantity)
			continue
		}

		price, ok := priceBySymbol[b.symbol(balance.Asset)]
		if !ok {
			continue
		}
		value := quantity.Mul(price)
		netLiq = netLiq.Add(value)
		gross = gross.Add(value.Abs())
	}

	return models.AccountTotals{
		NetLiquidation:   netLiq,
		GrossPositionVal: gross,
		Currency:         quoteAsset,
	}, nil
}

// Ping checks exchange connectivity.
func (b *Binance) Ping(ctx context.Context) error {
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("binance ping: %v: %w", err, ErrUpstreamUnavailable)
	}
	return nil
}
