package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefresh_CachesQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("vs_currency"); got != "usd" {
			t.Errorf("vs_currency = %s", got)
		}
		w.Write([]byte(`[
			{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 64000.5, "price_change_percentage_24h": -1.2},
			{"id": "ethereum", "symbol": "eth", "name": "Ethereum", "current_price": 2600, "price_change_percentage_24h": 3.4}
		]`))
	}))
	defer srv.Close()

	p := NewPoller(PollerConfig{FeedURL: srv.URL, Instruments: []string{"bitcoin", "ethereum"}})
	p.Refresh(context.Background())

	quotes := p.Quotes()
	if len(quotes) != 2 {
		t.Fatalf("quotes = %v", quotes)
	}
	btc := quotes["bitcoin"]
	if btc.Symbol != "BTC" || btc.Price != 64000.5 {
		t.Errorf("btc = %+v", btc)
	}
}

func TestRefresh_FailureKeepsLastQuotesAndBacksOff(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 64000, "price_change_percentage_24h": 0}]`))
	}))
	defer srv.Close()

	p := NewPoller(PollerConfig{FeedURL: srv.URL, Interval: time.Second})
	p.Refresh(context.Background())
	if len(p.Quotes()) != 1 {
		t.Fatal("initial refresh failed")
	}
	if p.delay() != time.Second {
		t.Errorf("delay = %v, want 1s", p.delay())
	}

	failing.Store(true)
	p.Refresh(context.Background())
	p.Refresh(context.Background())

	if len(p.Quotes()) != 1 {
		t.Error("failed refresh dropped cached quotes")
	}
	if p.delay() != 4*time.Second {
		t.Errorf("delay = %v, want 4s after two failures", p.delay())
	}

	failing.Store(false)
	p.Refresh(context.Background())
	if p.delay() != time.Second {
		t.Errorf("delay = %v, want reset to 1s", p.delay())
	}
}

func TestCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/ohlc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "7" {
			t.Errorf("days = %s", got)
		}
		w.Write([]byte(`[
			[1700000000000, 64000, 64500, 63800, 64200],
			[1700001800000, 64200, 64300, 64000, 64100]
		]`))
	}))
	defer srv.Close()

	p := NewPoller(PollerConfig{FeedURL: srv.URL})
	candles, err := p.Candles(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %v", candles)
	}
	first := candles[0]
	if first.Open != 64000 || first.High != 64500 || first.Low != 63800 || first.Close != 64200 {
		t.Errorf("first candle = %+v", first)
	}
	if !first.Time.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("first candle time = %v", first.Time)
	}
}

func TestCandles_UnknownInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewPoller(PollerConfig{FeedURL: srv.URL})
	if _, err := p.Candles(context.Background(), "nope", 1); err == nil {
		t.Fatal("expected error for unknown instrument")
	}
}

func TestStartStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := NewPoller(PollerConfig{FeedURL: srv.URL, Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}
	if !p.IsRunning() {
		t.Error("poller not running")
	}

	p.Stop()
	p.Stop()
	if p.IsRunning() {
		t.Error("poller still running after Stop")
	}
}
