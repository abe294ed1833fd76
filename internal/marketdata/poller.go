// Package marketdata polls spot prices for the instruments shown during
// onboarding. Quotes are cached in memory; the rest of the service keeps
// working when the upstream feed is down.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BitFund-Trading/onboarding_layer/internal/errors"
	"github.com/BitFund-Trading/onboarding_layer/internal/httputil"
	"github.com/BitFund-Trading/onboarding_layer/internal/logging"
)

const defaultFeedURL = "https://api.coingecko.com/api/v3"

// Quote is one instrument's latest price.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change24h"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Candle is one OHLC bar from the upstream feed.
type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// marketsRow is the upstream /coins/markets response shape.
type marketsRow struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	Change24h    float64 `json:"price_change_percentage_24h"`
}

// PollerConfig holds poller configuration.
type PollerConfig struct {
	// FeedURL overrides the upstream base URL, mainly for tests.
	FeedURL string

	// Instruments are upstream coin ids (bitcoin, ethereum, ...).
	Instruments []string

	Interval time.Duration
	Log      *logging.Logger
}

// Poller fetches quotes on a fixed interval with backoff on failure.
type Poller struct {
	mu sync.RWMutex

	feedURL     string
	instruments []string
	interval    time.Duration
	log         *logging.Logger
	client      *http.Client

	quotes   map[string]Quote
	failures int
	running  bool
	done     chan struct{}
}

// NewPoller creates a poller. It does not start polling.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.FeedURL == "" {
		cfg.FeedURL = defaultFeedURL
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}
	if len(cfg.Instruments) == 0 {
		cfg.Instruments = []string{"bitcoin", "ethereum"}
	}
	return &Poller{
		feedURL:     strings.TrimRight(cfg.FeedURL, "/"),
		instruments: cfg.Instruments,
		interval:    cfg.Interval,
		log:         cfg.Log,
		client:      &http.Client{Timeout: 10 * time.Second},
		quotes:      make(map[string]Quote),
		done:        make(chan struct{}),
	}
}

// Start begins polling until the context is canceled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
	return nil
}

// Stop halts polling. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.done)
}

// IsRunning reports whether the loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context) {
	p.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-time.After(p.delay()):
			p.Refresh(ctx)
		}
	}
}

// delay stretches the interval after consecutive failures, capped at
// eight intervals.
func (p *Poller) delay() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	backoff := p.failures
	if backoff > 3 {
		backoff = 3
	}
	return p.interval << backoff
}

// Refresh fetches quotes once and updates the cache.
func (p *Poller) Refresh(ctx context.Context) {
	rows, err := p.fetch(ctx)
	if err != nil {
		p.mu.Lock()
		p.failures++
		failures := p.failures
		p.mu.Unlock()
		p.log.WithContext(ctx).WithError(err).
			WithField("consecutive_failures", failures).
			Warn("market data refresh failed")
		return
	}

	now := time.Now().UTC()
	p.mu.Lock()
	p.failures = 0
	for _, row := range rows {
		p.quotes[row.ID] = Quote{
			Symbol:    strings.ToUpper(row.Symbol),
			Name:      row.Name,
			Price:     row.CurrentPrice,
			Change24h: row.Change24h,
			UpdatedAt: now,
		}
	}
	p.mu.Unlock()
}

func (p *Poller) fetch(ctx context.Context) ([]marketsRow, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(p.instruments, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.feedURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 1<<20)
	if err != nil {
		return nil, err
	}
	var rows []marketsRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return rows, nil
}

// Candles fetches OHLC bars for one instrument over the last days. The
// upstream returns rows of [timestamp_ms, open, high, low, close]. Bars
// are fetched on demand rather than polled; charts are only rendered on
// the plan selection step.
func (p *Poller) Candles(ctx context.Context, instrument string, days int) ([]Candle, error) {
	if days <= 0 {
		days = 1
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.feedURL+"/coins/"+url.PathEscape(instrument)+"/ohlc?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound("unknown instrument " + instrument)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 1<<20)
	if err != nil {
		return nil, err
	}
	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ohlc response: %w", err)
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, Candle{
			Time:  time.UnixMilli(int64(row[0])).UTC(),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	return candles, nil
}

// Quotes returns a copy of the cached quotes.
func (p *Poller) Quotes() map[string]Quote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Quote, len(p.quotes))
	for k, v := range p.quotes {
		out[k] = v
	}
	return out
}
