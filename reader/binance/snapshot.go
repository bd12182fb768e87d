package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spreadwatch/config"
	"spreadwatch/logger"
	"spreadwatch/models"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

const exchangeName = "binance"

// Snapshotter fetches spot order book snapshots through the go-binance REST
// client. Requests are paced by a token bucket and retried on failure.
type Snapshotter struct {
	client      *binance.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	log         *logger.Log
}

// NewSnapshotter builds a snapshotter from the reader and source sections of
// cfg.
func NewSnapshotter(cfg *config.Config) *Snapshotter {
	log := logger.GetLogger()

	transport := &weightTransport{
		base: &http.Transport{
			MaxIdleConns:       2,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
		},
		log: log,
	}

	client := binance.NewClient(cfg.Source.Binance.APIKey, cfg.Source.Binance.APISecret)
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.Reader.Timeout,
	}

	if parsed, err := url.Parse(cfg.Source.Binance.Snapshot.URL); err == nil && parsed.Host != "" {
		client.BaseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	rps := cfg.Reader.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Reader.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	attempts := cfg.Reader.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	log.WithComponent("snapshot_reader").WithFields(logger.Fields{
		"base_url":     client.BaseURL,
		"timeout":      cfg.Reader.Timeout,
		"rps":          rps,
		"max_attempts": attempts,
	}).Info("snapshot reader initialized")

	return &Snapshotter{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		maxAttempts: attempts,
		backoff:     500 * time.Millisecond,
		log:         log,
	}
}

// FetchSnapshot downloads up to limit levels per side for symbol.
func (s *Snapshotter) FetchSnapshot(ctx context.Context, symbol string, limit int) (*models.Snapshot, error) {
	log := s.log.WithComponent("snapshot_reader").WithFields(logger.Fields{
		"symbol":    symbol,
		"operation": "fetch_snapshot",
	})

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		start := time.Now()
		res, err := s.client.NewDepthService().
			Symbol(strings.ToUpper(symbol)).
			Limit(limit).
			Do(ctx)
		if err == nil {
			logger.LogPerformanceEntry(log, "snapshot_reader", "api_request", time.Since(start), logger.Fields{
				"symbol":  symbol,
				"attempt": attempt,
			})
			snap := convertDepth(symbol, res)
			logger.LogDataFlowEntry(log, "binance_api", "order_book", len(snap.Bids)+len(snap.Asks), "snapshot_levels")
			logger.IncrementSnapshotRead(len(snap.Bids) + len(snap.Asks))
			return snap, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).WithField("attempt", attempt).Warn("failed to fetch snapshot")

		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("fetch snapshot for %s after %d attempts: %w", symbol, s.maxAttempts, lastErr)
}

func convertDepth(symbol string, res *binance.DepthResponse) *models.Snapshot {
	snap := &models.Snapshot{
		Exchange:     exchangeName,
		Symbol:       strings.ToUpper(symbol),
		LastUpdateID: res.LastUpdateID,
		Bids:         make([]models.LevelUpdate, 0, len(res.Bids)),
		Asks:         make([]models.LevelUpdate, 0, len(res.Asks)),
		Timestamp:    time.Now().UTC(),
	}
	for _, b := range res.Bids {
		snap.Bids = append(snap.Bids, models.LevelUpdate{Price: b.Price, Quantity: b.Quantity})
	}
	for _, a := range res.Asks {
		snap.Asks = append(snap.Asks, models.LevelUpdate{Price: a.Price, Quantity: a.Quantity})
	}
	return snap
}
