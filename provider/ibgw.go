package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exposureflow/config"
	"exposureflow/logger"
	"exposureflow/models"
)

// positionsPageSize is the fixed page size of the gateway positions endpoint.
const positionsPageSize = 100

// Ibgw reads the account through the IB Client Portal gateway REST API. The
// local gateway terminates TLS with a self-signed certificate, so certificate
// verification stays off unless provider.ibgw.verify_tls is set.
type Ibgw struct {
	config    *config.Config
	client    *http.Client
	baseURL   string
	log       *logger.Log
	mu        sync.RWMutex
	accountID string
	stream    *ibgwStream
}

// NewIbgw creates a gateway client with a connection pool sized from the
// configuration.
func NewIbgw(cfg *config.Config) *Ibgw {
	log := logger.GetLogger()

	pool := cfg.Provider.Ibgw.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     time.Duration(pool.IdleConnTimeoutMs) * time.Millisecond,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.Provider.Ibgw.VerifyTLS},
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.Provider.Ibgw.TimeoutMs) * time.Millisecond,
	}

	g := &Ibgw{
		config:    cfg,
		client:    client,
		baseURL:   strings.TrimRight(cfg.Provider.Ibgw.BaseURL, "/"),
		log:       log,
		accountID: cfg.Provider.Ibgw.AccountID,
	}

	log.WithComponent("ibgw_provider").WithFields(logger.Fields{
		"base_url":           g.baseURL,
		"max_idle_conns":     pool.MaxIdleConns,
		"max_conns_per_host": pool.MaxConnsPerHost,
		"timeout_ms":         cfg.Provider.Ibgw.TimeoutMs,
		"verify_tls":         cfg.Provider.Ibgw.VerifyTLS,
	}).Info("ibgw provider initialized")

	return g
}

func (g *Ibgw) Name() string {
	return config.BackendIbgw
}

// getJSON issues a GET against the gateway and decodes the response body.
// Transport failures and non-200 statuses map to ErrUpstreamUnavailable so
// the caller abandons the pass instead of degrading single instruments.
func (g *Ibgw) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s: %v: %w", path, err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(g.log.WithComponent("ibgw_provider"), "ibgw_provider", "api_request",
		time.Since(start), logger.Fields{"path": path, "status": resp.StatusCode})

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("gateway session expired on %s: %w", path, ErrUpstreamUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d for %s: %w", resp.StatusCode, path, ErrUpstreamUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// account returns the cached account id, empty until resolved.
func (g *Ibgw) account() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.accountID
}

// resolveAccount returns the configured account id, asking the gateway for
// the first available account when none is configured. The resolution is
// cached for the life of the provider.
func (g *Ibgw) resolveAccount(ctx context.Context) (string, error) {
	if id := g.account(); id != "" {
		return id, nil
	}

	var accounts []ibAccount
	if err := g.getJSON(ctx, "/portfolio/accounts", &accounts); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("gateway reported no accounts: %w", ErrUpstreamUnavailable)
	}

	id := accounts[0].AccountID
	if id == "" {
		id = accounts[0].ID
	}

	g.mu.Lock()
	g.accountID = id
	g.mu.Unlock()

	g.log.WithComponent("ibgw_provider").WithFields(logger.Fields{
		"account": id,
	}).Info("resolved gateway account")

	return id, nil
}

// ListPositions walks the paged positions endpoint until a short page.
func (g *Ibgw) ListPositions(ctx context.Context) ([]models.Position, error) {
	account, err := g.resolveAccount(ctx)
	if err != nil {
		return nil, err
	}

	var positions []models.Position
	for page := 0; ; page++ {
		var rows []ibPosition
		path := fmt.Sprintf("/portfolio/%s/positions/%d", account, page)
		if err := g.getJSON(ctx, path, &rows); err != nil {
			return nil, err
		}

		for _, row := range rows {
			position, ok := row.toPosition()
			if !ok {
				g.log.WithComponent("ibgw_provider").WithFields(logger.Fields{
					"conid":       row.ConID,
					"asset_class": row.AssetClass,
				}).Debug("skipping unsupported asset class")
				continue
			}
			positions = append(positions, position)
		}

		if len(rows) < positionsPageSize {
			break
		}
	}

	logger.IncrementPositionRead(len(positions))
	logger.LogDataFlowEntry(g.log.WithComponent("ibgw_provider"), "ibgw", "poller", len(positions), "positions")

	return positions, nil
}

// GetQuote fetches a market data snapshot for one instrument. Greek fields
// are requested only for options.
func (g *Ibgw) GetQuote(ctx context.Context, inst models.Instrument) (models.QuoteSnapshot, error) {
	if inst.ConID == 0 {
		return models.QuoteSnapshot{}, fmt.Errorf("%s has no contract id: %w", inst.Key(), ErrNoQuote)
	}

	fields := fieldLast + "," + fieldBid + "," + fieldAsk + "," + fieldMark
	if inst.IsOption() {
		fields += "," + fieldDelta + "," + fieldGamma
	}

	path := fmt.Sprintf("/iserver/marketdata/snapshot?conids=%d&fields=%s", inst.ConID, fields)
	var rows []ibSnapshot
	if err := g.getJSON(ctx, path, &rows); err != nil {
		return models.QuoteSnapshot{}, err
	}
	if len(rows) == 0 {
		return models.QuoteSnapshot{}, fmt.Errorf("empty snapshot for %s: %w", inst.Key(), ErrNoQuote)
	}

	logger.IncrementQuoteRead(1)
	return rows[0].toSnapshot(inst.IsOption()), nil
}

// AccountTotals reads net liquidation and gross position value from the
// account summary.
func (g *Ibgw) AccountTotals(ctx context.Context) (models.AccountTotals, error) {
	account, err := g.resolveAccount(ctx)
	if err != nil {
		return models.AccountTotals{}, err
	}

	var summary map[string]ibSummaryValue
	if err := g.getJSON(ctx, "/portfolio/"+account+"/summary", &summary); err != nil {
		return models.AccountTotals{}, err
	}

	totals := models.AccountTotals{Account: account}
	if v, ok := summary["netliquidation"]; ok {
		totals.NetLiquidation = decimal.NewFromFloat(v.Amount)
		totals.Currency = v.Currency
	}
	if v, ok := summary["grosspositionvalue"]; ok {
		totals.GrossPositionVal = decimal.NewFromFloat(v.Amount)
	}
	return totals, nil
}

// Ping keeps the gateway session alive. The session expires after a few
// minutes without traffic, so the poller tickles it between passes.
func (g *Ibgw) Ping(ctx context.Context) error {
	_, err := g.tickle(ctx)
	return err
}

// tickle posts the keepalive and returns the session token the websocket
// passes along as a cookie.
func (g *Ibgw) tickle(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/tickle", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create tickle request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tickle: %v: %w", err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tickle returned status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	}

	var body struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode tickle response: %w", err)
	}
	return body.Session, nil
}

// ChainParams resolves the underlying via symbol search and loads the strike
// ladder of the nearest expiration month.
func (g *Ibgw) ChainParams(ctx context.Context, symbol string) (models.ChainParams, error) {
	var results []ibSearchResult
	if err := g.getJSON(ctx, "/iserver/secdef/search?symbol="+url.QueryEscape(symbol), &results); err != nil {
		return models.ChainParams{}, err
	}

	var months []string
	var conid int64
	for _, result := range results {
		if !strings.EqualFold(result.Symbol, symbol) {
			continue
		}
		for _, section := range result.Sections {
			if section.SecType == string(models.SecTypeOption) && section.Months != "" {
				months = strings.Split(section.Months, ";")
				conid = int64(result.ConID)
				break
			}
		}
		if conid != 0 {
			break
		}
	}
	if conid == 0 || len(months) == 0 {
		return models.ChainParams{}, fmt.Errorf("no option chain for %s: %w", symbol, ErrNoQuote)
	}

	params := models.ChainParams{
		Symbol:      symbol,
		ConID:       conid,
		Expirations: months,
		Multiplier:  models.DefaultMultiplier,
	}

	var strikes ibStrikes
	path := fmt.Sprintf("/iserver/secdef/strikes?conid=%d&sectype=OPT&month=%s", conid, url.QueryEscape(months[0]))
	if err := g.getJSON(ctx, path, &strikes); err != nil {
		return models.ChainParams{}, err
	}
	for _, s := range strikes.Call {
		params.Strikes = append(params.Strikes, decimal.NewFromFloat(s))
	}

	g.log.WithComponent("ibgw_provider").WithFields(logger.Fields{
		"symbol":      symbol,
		"conid":       conid,
		"expirations": len(params.Expirations),
		"strikes":     len(params.Strikes),
	}).Debug("resolved option chain parameters")

	return params, nil
}

// OptionContract resolves one strike into a quotable contract via secdef/info.
func (g *Ibgw) OptionContract(ctx context.Context, params models.ChainParams, expiry string, strike decimal.Decimal, right models.Right) (models.Instrument, error) {
	var contracts []ibContract
	path := fmt.Sprintf("/iserver/secdef/info?conid=%d&sectype=OPT&month=%s&strike=%s&right=%s",
		params.ConID, url.QueryEscape(expiry), strike.String(), right)
	if err := g.getJSON(ctx, path, &contracts); err != nil {
		return models.Instrument{}, err
	}
	if len(contracts) == 0 {
		return models.Instrument{}, fmt.Errorf("no contract for %s %s %s%s: %w", params.Symbol, expiry, strike.String(), right, ErrNoQuote)
	}

	contract := contracts[0]
	multiplier := int(contract.Multiplier)
	if multiplier <= 0 {
		multiplier = models.DefaultMultiplier
	}

	inst := models.Option(params.Symbol, contract.MaturityDate, strike, right, multiplier, "")
	inst.ConID = contract.ConID
	inst.UndConID = params.ConID
	if inst.UndConID == 0 {
		inst.UndConID = contract.UnderConID
	}
	return inst, nil
}
