package provider

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exposureflow/models"
)

// Market data field ids of the Client Portal snapshot endpoint.
const (
	fieldLast  = "31"
	fieldBid   = "84"
	fieldAsk   = "86"
	fieldMark  = "7635"
	fieldDelta = "7308"
	fieldGamma = "7309"
)

// ibNumber decodes values the gateway serves inconsistently as either a JSON
// number or a quoted string. Empty and null decode to zero.
type ibNumber float64

func (n *ibNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = ibNumber(v)
	return nil
}

// ibAccount is one entry of /portfolio/accounts.
type ibAccount struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Currency  string `json:"currency"`
}

// ibPosition is one row of /portfolio/{accountId}/positions/{page}.
type ibPosition struct {
	AcctID       string   `json:"acctId"`
	ConID        int64    `json:"conid"`
	ContractDesc string   `json:"contractDesc"`
	Position     float64  `json:"position"`
	AvgCost      float64  `json:"avgCost"`
	Currency     string   `json:"currency"`
	AssetClass   string   `json:"assetClass"`
	Ticker       string   `json:"ticker"`
	UndConID     int64    `json:"undConid"`
	Multiplier   ibNumber `json:"multiplier"`
	Strike       ibNumber `json:"strike"`
	Expiry       string   `json:"expiry"`
	PutOrCall    string   `json:"putOrCall"`
}

// toPosition maps the row onto the position model. Asset classes other than
// stock and option are reported as unsupported.
func (r ibPosition) toPosition() (models.Position, bool) {
	var inst models.Instrument
	switch r.AssetClass {
	case string(models.SecTypeStock):
		inst = models.Stock(r.symbol(), r.Currency)
		inst.ConID = r.ConID
	case string(models.SecTypeOption):
		inst = models.Option(r.symbol(), r.Expiry, decimal.NewFromFloat(float64(r.Strike)), models.Right(r.PutOrCall), int(r.Multiplier), r.Currency)
		inst.ConID = r.ConID
		inst.UndConID = r.UndConID
		inst.LocalSymbol = r.ContractDesc
	default:
		return models.Position{}, false
	}

	return models.Position{
		Instrument: inst,
		Quantity:   decimal.NewFromFloat(r.Position),
		AvgCost:    decimal.NewFromFloat(r.AvgCost),
		Account:    r.AcctID,
	}, true
}

func (r ibPosition) symbol() string {
	if r.Ticker != "" {
		return r.Ticker
	}
	// contractDesc leads with the ticker, e.g. "XYZ JAN1626 40 C"
	if i := strings.IndexByte(r.ContractDesc, ' '); i > 0 {
		return r.ContractDesc[:i]
	}
	return r.ContractDesc
}

// ibSummaryValue is one entry of the /portfolio/{accountId}/summary map.
type ibSummaryValue struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ibSnapshot is one row of /iserver/marketdata/snapshot and one websocket
// smd frame: a conid plus numeric field ids keyed as strings.
type ibSnapshot map[string]json.RawMessage

// rawField returns the string form of a field regardless of whether the
// gateway sent it as a string or a number.
func (s ibSnapshot) rawField(id string) (string, bool) {
	raw, ok := s[id]
	if !ok {
		return "", false
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, true
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return strconv.FormatFloat(num, 'f', -1, 64), true
	}
	return "", false
}

// priceField parses a price field, stripping the close and halted markers
// the gateway prepends ("C12.34", "H12.34"). Unparseable fields read as zero
// so the resolution chain skips them.
func (s ibSnapshot) priceField(id string) decimal.Decimal {
	str, ok := s.rawField(id)
	if !ok {
		return decimal.Zero
	}
	str = strings.TrimSpace(strings.TrimLeft(str, "CH"))
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// greekField parses a model greek, reporting whether a value was present.
func (s ibSnapshot) greekField(id string) (decimal.Decimal, bool) {
	str, ok := s.rawField(id)
	if !ok || str == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(str))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (s ibSnapshot) conID() int64 {
	str, ok := s.rawField("conid")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// toSnapshot assembles the market data snapshot. Greeks are attached only
// when the feed delivered a delta; a gamma alone is meaningless.
func (s ibSnapshot) toSnapshot(withGreeks bool) models.QuoteSnapshot {
	snapshot := models.QuoteSnapshot{
		Last:      s.priceField(fieldLast),
		Bid:       s.priceField(fieldBid),
		Ask:       s.priceField(fieldAsk),
		Mark:      s.priceField(fieldMark),
		Timestamp: time.Now().UTC(),
	}
	if withGreeks {
		if delta, ok := s.greekField(fieldDelta); ok {
			gamma, _ := s.greekField(fieldGamma)
			snapshot.Greeks = &models.Greeks{Delta: delta, Gamma: gamma}
		}
	}
	return snapshot
}

// ibSearchResult is one entry of /iserver/secdef/search.
type ibSearchResult struct {
	ConID       ibNumber    `json:"conid"`
	Symbol      string      `json:"symbol"`
	Description string      `json:"description"`
	Sections    []ibSection `json:"sections"`
}

type ibSection struct {
	SecType string `json:"secType"`
	Months  string `json:"months"`
}

// ibStrikes is the /iserver/secdef/strikes response.
type ibStrikes struct {
	Call []float64 `json:"call"`
	Put  []float64 `json:"put"`
}

// ibContract is one entry of /iserver/secdef/info.
type ibContract struct {
	ConID        int64    `json:"conid"`
	Symbol       string   `json:"symbol"`
	Strike       ibNumber `json:"strike"`
	Right        string   `json:"right"`
	MaturityDate string   `json:"maturityDate"`
	Multiplier   ibNumber `json:"multiplier"`
	UnderConID   int64    `json:"underlyingConid"`
	TradingClass string   `json:"tradingClass"`
}
