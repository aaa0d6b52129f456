package hyperliquid

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"hypersync/src/analysis"
	"hypersync/src/helpers"
	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// InfoClient talks to the exchange info endpoint. Every call is a JSON POST
// with a "type" discriminator; numeric fields come back as decimal strings.
// -----------------------------------------------------------------------------

type InfoClient struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewInfoClient(cfg *models.MConfig, nm interfaces.INetworkManager, log *logger.Logger) *InfoClient {
	return &InfoClient{
		Config:  cfg,
		Network: nm,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (ic *InfoClient) post(ctx context.Context, body interface{}) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ic.Config.Exchange.RequestTimeout)*time.Second)
		defer cancel()
	}
	data, err := ic.Network.PostJSON(ctx, ic.Config.Exchange.InfoURL, body)
	return data, helpers.WrapTimeout("info request", err)
}

// -----------------------------------------------------------------------------
// clearinghouseState
// -----------------------------------------------------------------------------

type rawLeverage struct {
	Value json.Number `json:"value"`
}

type rawPositionInner struct {
	Coin          string      `json:"coin"`
	Szi           string      `json:"szi"`
	EntryPx       *string     `json:"entryPx"`
	PositionValue string      `json:"positionValue"`
	UnrealizedPnl *string     `json:"unrealizedPnl"`
	LiquidationPx *string     `json:"liquidationPx"`
	Leverage      rawLeverage `json:"leverage"`
	MarginUsed    string      `json:"marginUsed"`
}

type rawAssetPosition struct {
	Position rawPositionInner `json:"position"`
}

type rawMarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

type rawClearinghouseState struct {
	MarginSummary  rawMarginSummary   `json:"marginSummary"`
	AssetPositions []rawAssetPosition `json:"assetPositions"`
}

// -----------------------------------------------------------------------------

// ClearinghouseState fetches the live margin summary and open positions.
func (ic *InfoClient) ClearinghouseState(ctx context.Context, user string) (*models.MRawAccount, error) {
	data, err := ic.post(ctx, map[string]interface{}{
		"type": "clearinghouseState",
		"user": user,
	})
	if err != nil {
		return nil, err
	}

	var raw rawClearinghouseState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &helpers.ValidationError{SyncError: helpers.SyncError{
			Message: "malformed clearinghouseState response",
			Cause:   err,
		}}
	}

	account := &models.MRawAccount{
		AccountValue:    parseDecimalOr(raw.MarginSummary.AccountValue, 0),
		TotalNotional:   parseDecimalOr(raw.MarginSummary.TotalNtlPos, 0),
		TotalMarginUsed: parseDecimalOr(raw.MarginSummary.TotalMarginUsed, 0),
	}

	for _, ap := range raw.AssetPositions {
		p := ap.Position
		size := parseDecimalOr(p.Szi, 0)
		if size == 0 {
			continue // flat entries carry no useful state
		}
		account.Positions = append(account.Positions, models.MRawPosition{
			Coin:             p.Coin,
			Size:             size,
			EntryPrice:       parseDecimalPtr(p.EntryPx),
			PositionValue:    parseDecimalOr(p.PositionValue, 0),
			UnrealizedPnl:    parseDecimalPtr(p.UnrealizedPnl),
			Leverage:         numberOr(p.Leverage.Value, 1),
			MarginUsed:       parseDecimalOr(p.MarginUsed, 0),
			LiquidationPrice: parseDecimalPtr(p.LiquidationPx),
		})
	}

	return account, nil
}

// -----------------------------------------------------------------------------
// portfolio
// -----------------------------------------------------------------------------

type rawPortfolioWindow struct {
	AccountValueHistory [][2]json.RawMessage `json:"accountValueHistory"`
}

// -----------------------------------------------------------------------------

// Portfolio fetches historical equity per timeframe window. The response is
// an array of [name, window] pairs; it is returned keyed by window name.
func (ic *InfoClient) Portfolio(ctx context.Context, user string) (map[string][]models.MEquityPoint, error) {
	data, err := ic.post(ctx, map[string]interface{}{
		"type": "portfolio",
		"user": user,
	})
	if err != nil {
		return nil, err
	}

	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, &helpers.ValidationError{SyncError: helpers.SyncError{
			Message: "malformed portfolio response",
			Cause:   err,
		}}
	}

	windows := make(map[string][]models.MEquityPoint, len(pairs))
	for _, pair := range pairs {
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			continue
		}
		var window rawPortfolioWindow
		if err := json.Unmarshal(pair[1], &window); err != nil {
			ic.Logger.Warning("Skipping malformed portfolio window '%s': %v", name, err)
			continue
		}

		points := make([]models.MEquityPoint, 0, len(window.AccountValueHistory))
		for _, entry := range window.AccountValueHistory {
			var ts json.Number
			var val string
			if err := json.Unmarshal(entry[0], &ts); err != nil {
				continue
			}
			if err := json.Unmarshal(entry[1], &val); err != nil {
				continue
			}
			ms := analysis.CoerceTimestampMillis(ts.String())
			if ms == nil {
				continue
			}
			v, err := strconv.ParseFloat(val, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			points = append(points, models.MEquityPoint{Timestamp: *ms, Value: v})
		}
		windows[name] = points
	}

	return windows, nil
}

// -----------------------------------------------------------------------------
// candleSnapshot
// -----------------------------------------------------------------------------

type rawCandle struct {
	T json.Number `json:"t"` // open time
	C json.Number `json:"T"` // close time; upper-case key on the wire
	O string      `json:"o"`
	H string      `json:"h"`
	L string      `json:"l"`
	X string      `json:"c"`
	V string      `json:"v"`
}

// -----------------------------------------------------------------------------

// CandleSnapshot fetches OHLC candles for one coin and interval starting at
// startTime (epoch millis).
func (ic *InfoClient) CandleSnapshot(ctx context.Context, coin, interval string, startTime int64) ([]models.MCandle, error) {
	data, err := ic.post(ctx, map[string]interface{}{
		"type": "candleSnapshot",
		"req": map[string]interface{}{
			"coin":      coin,
			"interval":  interval,
			"startTime": startTime,
		},
	})
	if err != nil {
		return nil, err
	}

	var raws []rawCandle
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &helpers.ValidationError{SyncError: helpers.SyncError{
			Message: "malformed candleSnapshot response",
			Cause:   err,
		}}
	}

	candles := make([]models.MCandle, 0, len(raws))
	for _, r := range raws {
		openTime := analysis.CoerceTimestampMillis(r.T.String())
		closeTime := analysis.CoerceTimestampMillis(r.C.String())
		if openTime == nil || closeTime == nil {
			continue
		}
		candles = append(candles, models.MCandle{
			Coin:      coin,
			Interval:  interval,
			OpenTime:  *openTime,
			CloseTime: *closeTime,
			Open:      parseDecimalOr(r.O, 0),
			High:      parseDecimalOr(r.H, 0),
			Low:       parseDecimalOr(r.L, 0),
			Close:     parseDecimalOr(r.X, 0),
			Volume:    parseDecimalOr(r.V, 0),
		})
	}

	return candles, nil
}

// -----------------------------------------------------------------------------
// Decimal-string parsing helpers
// -----------------------------------------------------------------------------

// parseDecimalPtr parses a decimal string into a float pointer. Nil input,
// unparseable text, and non-finite values all collapse to nil.
func parseDecimalPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseDecimalOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func numberOr(n json.Number, fallback float64) float64 {
	v, err := n.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
