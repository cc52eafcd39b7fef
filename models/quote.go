package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Greeks carries the model computed option risk figures supplied by the
// market data feed. It is attached to a QuoteSnapshot only when the upstream
// model produced values.
type Greeks struct {
	Delta decimal.Decimal `json:"delta"`
	Gamma decimal.Decimal `json:"gamma"`
}

// QuoteSnapshot is the market data observed for one instrument at one point
// in time. Any price field may be absent; absent or non-positive prices are
// skipped by the resolution chain. Mark is the feed's computed mid-market
// price. Greeks is nil when no model computation succeeded.
type QuoteSnapshot struct {
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Mark      decimal.Decimal `json:"mark"`
	Greeks    *Greeks         `json:"greeks,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// QuoteUpdate is a streamed quote revision for one instrument, pushed by a
// streaming provider into the feed channel between aggregation passes.
type QuoteUpdate struct {
	Key      string        `json:"key"`
	Snapshot QuoteSnapshot `json:"snapshot"`
}
