// Package poller drives periodic aggregation passes: it reads positions and
// account totals from the provider, collects quotes under a rate limit,
// runs the engine, and publishes the resulting report atomically. A failed
// pass keeps the previously published report.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"exposureflow/config"
	"exposureflow/engine"
	"exposureflow/internal/feed"
	"exposureflow/internal/metrics"
	"exposureflow/logger"
	"exposureflow/models"
	"exposureflow/provider"
)

// Poller owns the pass loop and the published report.
type Poller struct {
	config   *config.Config
	provider provider.Provider
	updates  *feed.Updates
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	interval  time.Duration
	keepalive time.Duration
	limiter   *rate.Limiter

	report  atomic.Pointer[models.ExposureReport]
	account string

	cacheMu sync.RWMutex
	cache   map[string]models.QuoteSnapshot

	streamEnabled bool
	streaming     bool
	streamKeys    map[string]bool
}

// NewPoller creates a poller for the given backend. The quote rate limiter
// paces snapshot requests so the gateway is never hammered.
func NewPoller(cfg *config.Config, prov provider.Provider, updates *feed.Updates) *Poller {
	log := logger.GetLogger()

	interval := time.Duration(cfg.Refresh.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}

	rps := cfg.Refresh.QuoteRateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Refresh.QuoteRateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}

	p := &Poller{
		config:        cfg,
		provider:      prov,
		updates:       updates,
		wg:            &sync.WaitGroup{},
		log:           log,
		interval:      interval,
		keepalive:     time.Duration(cfg.Refresh.KeepaliveIntervalMs) * time.Millisecond,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		cache:         make(map[string]models.QuoteSnapshot),
		streamEnabled: cfg.Provider.Backend == config.BackendIbgw && cfg.Provider.Ibgw.Stream.Enabled,
	}

	log.WithComponent("poller").WithFields(logger.Fields{
		"backend":     prov.Name(),
		"interval_ms": interval.Milliseconds(),
		"quote_rps":   rps,
		"quote_burst": burst,
		"stream":      p.streamEnabled,
	}).Info("poller initialized")

	return p
}

// Start launches the pass worker and, for session based backends, the
// keepalive worker.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	log := p.log.WithComponent("poller").WithFields(logger.Fields{"operation": "start"})

	p.wg.Add(1)
	go p.run()

	if checker, ok := p.provider.(provider.HealthChecker); ok && p.keepalive > 0 {
		p.wg.Add(1)
		go p.keepaliveWorker(checker)
	}

	log.Info("poller started successfully")
	return nil
}

// Stop signals all workers to stop and waits for completion.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.log.WithComponent("poller").Info("stopping poller")
	if streamer, ok := p.provider.(provider.Streamer); ok {
		streamer.StopStream()
	}
	p.wg.Wait()
	p.log.WithComponent("poller").Info("poller stopped")
}

// Report returns the last published report, nil before the first successful
// pass.
func (p *Poller) Report() *models.ExposureReport {
	return p.report.Load()
}

// run executes the first pass immediately, then aligns subsequent passes to
// the refresh interval.
func (p *Poller) run() {
	defer p.wg.Done()

	log := p.log.WithComponent("poller").WithFields(logger.Fields{"worker": "pass_runner"})
	log.Info("starting pass worker")

	p.pass()

	now := time.Now()
	nextTick := now.Truncate(p.interval).Add(p.interval)
	timer := time.NewTimer(nextTick.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			p.pass()
			duration := time.Since(start)

			if duration > p.interval {
				log.WithFields(logger.Fields{
					"duration": duration.Milliseconds(),
					"interval": p.interval.Milliseconds(),
				}).Warn("pass took longer than interval")
			}

			nextTick = start.Truncate(p.interval).Add(p.interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// pass runs one aggregation pass and absorbs its failure. The previous
// report stays published when a pass is abandoned.
func (p *Poller) pass() {
	if _, err := p.RunOnce(p.ctx); err != nil {
		if p.ctx.Err() != nil {
			return
		}
		metrics.IncrementPassError(p.accountLabel())
		p.log.WithComponent("poller").WithError(err).Warn("pass abandoned, previous report retained")
	}
}

// RunOnce executes a single aggregation pass and publishes the report on
// success. All pass state is local; only the finished report is shared.
func (p *Poller) RunOnce(ctx context.Context) (*models.ExposureReport, error) {
	start := time.Now()

	p.drainUpdates()

	positions, err := p.provider.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("position read failed: %w", err)
	}
	if len(positions) == 0 {
		return nil, engine.ErrNoPositions
	}

	totals, err := p.provider.AccountTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("account totals read failed: %w", err)
	}

	instruments := passInstruments(positions)
	quotes, fetched, err := p.collectQuotes(ctx, instruments)
	if err != nil {
		return nil, fmt.Errorf("quote collection failed: %w", err)
	}

	report, err := engine.Compute(positions, func(inst models.Instrument) (models.QuoteSnapshot, bool) {
		snapshot, ok := quotes[inst.Key()]
		return snapshot, ok
	}, totals)
	if err != nil {
		return nil, err
	}

	report.Stats.QuotesFetched = fetched
	report.Stats.Duration = time.Since(start)

	p.publish(report)
	p.syncStream(instruments)
	return report, nil
}

// collectQuotes gathers a pass-local quote set for the given instruments.
// With an active stream, cache entries younger than two intervals stand in
// for REST snapshots; everything else is fetched under the rate limit. A
// missing quote is recorded by the engine's lookup miss, an unavailable
// upstream aborts the pass.
func (p *Poller) collectQuotes(ctx context.Context, instruments []models.Instrument) (map[string]models.QuoteSnapshot, int, error) {
	quotes := make(map[string]models.QuoteSnapshot, len(instruments))
	fetched := 0
	staleAfter := 2 * p.interval

	for _, inst := range instruments {
		key := inst.Key()

		if p.streamActive() {
			if cached, ok := p.cacheGet(key); ok && time.Since(cached.Timestamp) < staleAfter {
				quotes[key] = cached
				fetched++
				continue
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		snapshot, err := p.provider.GetQuote(ctx, inst)
		if err != nil {
			if errors.Is(err, provider.ErrNoQuote) {
				p.log.WithComponent("poller").WithFields(logger.Fields{
					"instrument": inst.Describe(),
				}).Debug("no quote available, fallback chain will resolve")
				continue
			}
			return nil, 0, err
		}

		quotes[key] = snapshot
		p.cacheSet(key, snapshot)
		fetched++
	}

	return quotes, fetched, nil
}

// publish stores the report and emits the pass telemetry.
func (p *Poller) publish(report *models.ExposureReport) {
	p.report.Store(report)
	if report.Account != "" {
		p.mu.Lock()
		p.account = report.Account
		p.mu.Unlock()
	}

	logger.IncrementPassRun()
	logger.IncrementReportWritten()

	account := p.accountLabel()
	metrics.IncrementPassSuccess(account)
	metrics.AddQuotesFetched(p.provider.Name(), report.Stats.QuotesFetched)
	metrics.SetPassDuration(account, float64(report.Stats.Duration.Milliseconds()))
	notional, _ := report.Metrics.TotalNotional.Float64()
	metrics.SetTotalNotional(account, notional)
	metrics.ReportPass(p.log, "poller", account, report.Stats)

	p.log.WithComponent("poller").WithFields(logger.Fields{
		"pass_id":        report.PassID,
		"account":        report.Account,
		"underlyings":    len(report.Exposures),
		"total_notional": report.Metrics.TotalNotional.String(),
		"nlr":            report.Metrics.NotionalLeverage.String(),
		"duration_ms":    report.Stats.Duration.Milliseconds(),
	}).Info("exposure report published")
}

func (p *Poller) accountLabel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.account != "" {
		return p.account
	}
	return p.provider.Name()
}

// drainUpdates folds pending streamed quote revisions into the cache.
// Partial frames merge field-wise onto the previous snapshot.
func (p *Poller) drainUpdates() {
	if p.updates == nil {
		return
	}
	for {
		select {
		case update := <-p.updates.Quotes:
			p.cacheMu.Lock()
			p.cache[update.Key] = mergeSnapshot(p.cache[update.Key], update.Snapshot)
			p.cacheMu.Unlock()
		default:
			return
		}
	}
}

func (p *Poller) cacheGet(key string) (models.QuoteSnapshot, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	snapshot, ok := p.cache[key]
	return snapshot, ok
}

func (p *Poller) cacheSet(key string, snapshot models.QuoteSnapshot) {
	p.cacheMu.Lock()
	p.cache[key] = snapshot
	p.cacheMu.Unlock()
}

func (p *Poller) streamActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.streamEnabled && p.streaming
}

// syncStream keeps the websocket subscription aligned with the contract set
// of the last pass. Runs only inside a started poller; one-shot passes do
// not open streams.
func (p *Poller) syncStream(instruments []models.Instrument) {
	if !p.streamEnabled {
		return
	}
	streamer, ok := p.provider.(provider.Streamer)
	if !ok {
		return
	}

	p.mu.Lock()
	ctx := p.ctx
	keys := subscriptionKeys(instruments)
	same := p.streaming && sameKeys(p.streamKeys, keys)
	if !same {
		p.streamKeys = keys
	}
	p.mu.Unlock()

	if ctx == nil || same || len(keys) == 0 {
		return
	}

	streamer.StopStream()
	if err := streamer.StartStream(ctx, p.updates, instruments); err != nil {
		p.log.WithComponent("poller").WithError(err).Warn("failed to start quote stream")
		p.mu.Lock()
		p.streaming = false
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.streaming = true
	p.mu.Unlock()
}

// keepaliveWorker tickles the backend session between passes.
func (p *Poller) keepaliveWorker(checker provider.HealthChecker) {
	defer p.wg.Done()

	log := p.log.WithComponent("poller").WithFields(logger.Fields{"worker": "keepalive"})
	log.WithFields(logger.Fields{"interval_ms": p.keepalive.Milliseconds()}).Info("starting keepalive worker")

	ticker := time.NewTicker(p.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-ticker.C:
			if err := checker.Ping(p.ctx); err != nil {
				log.WithError(err).Warn("keepalive ping failed")
			}
		}
	}
}

// passInstruments returns the deduplicated instruments a pass must quote:
// every position plus the synthesized equity underlying of every option.
func passInstruments(positions []models.Position) []models.Instrument {
	seen := make(map[string]bool, len(positions)*2)
	instruments := make([]models.Instrument, 0, len(positions)*2)

	add := func(inst models.Instrument) {
		key := inst.Key()
		if !seen[key] {
			seen[key] = true
			instruments = append(instruments, inst)
		}
	}

	for _, position := range positions {
		add(position.Instrument)
		add(position.Instrument.Underlying())
	}
	return instruments
}

// mergeSnapshot overlays the non-zero fields of update onto base.
func mergeSnapshot(base, update models.QuoteSnapshot) models.QuoteSnapshot {
	merged := base
	if !update.Last.IsZero() {
		merged.Last = update.Last
	}
	if !update.Bid.IsZero() {
		merged.Bid = update.Bid
	}
	if !update.Ask.IsZero() {
		merged.Ask = update.Ask
	}
	if !update.Mark.IsZero() {
		merged.Mark = update.Mark
	}
	if update.Greeks != nil {
		merged.Greeks = update.Greeks
	}
	merged.Timestamp = update.Timestamp
	return merged
}

// subscriptionKeys is the set of stream-subscribable instruments.
func subscriptionKeys(instruments []models.Instrument) map[string]bool {
	keys := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		if inst.ConID != 0 {
			keys[inst.Key()] = true
		}
	}
	return keys
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
