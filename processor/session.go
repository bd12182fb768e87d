package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"spreadwatch/config"
	"spreadwatch/internal/analysis"
	"spreadwatch/internal/orderbook"
	"spreadwatch/logger"
	"spreadwatch/models"
)

var (
	ErrMalformedMessage = errors.New("malformed depth message")
	ErrNoDataCollected  = errors.New("no data collected")
	ErrStreamClosed     = errors.New("depth stream closed")
)

// Option customises a Session.
type Option func(*Session)

// WithAnalyzer replaces the threshold analyzer built from the configuration.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Session) { s.analyzer = a }
}

// WithSinks registers the sinks that receive the finished result.
func WithSinks(sinks ...Sink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sinks...) }
}

// WithClock sets the time source used to stamp spread samples.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session captures one symbol for one window: seed from a snapshot, apply the
// live stream, then run the analytics and hand the result to the sinks.
type Session struct {
	cfg           config.SessionConfig
	snapshotLimit int
	snapshotter   Snapshotter
	subscriber    Subscriber
	analyzer      Analyzer
	sinks         []Sink
	now           func() time.Time
	log           *logger.Log

	mu      sync.Mutex
	running bool
}

func NewSession(cfg *config.Config, snapshotter Snapshotter, subscriber Subscriber, opts ...Option) *Session {
	s := &Session{
		cfg:           cfg.Session,
		snapshotLimit: cfg.Source.Binance.Snapshot.Limit,
		snapshotter:   snapshotter,
		subscriber:    subscriber,
		analyzer:      NewAnalyzer(cfg.Session),
		now:           time.Now,
		log:           logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// capture holds the state mutated by the single consumer goroutine.
type capture struct {
	book       *orderbook.Book
	series     *analysis.SpreadSeries
	counters   Counters
	alertAbove decimal.Decimal
	log        *logger.Entry
	now        func() time.Time
}

// Run executes the session. Only a snapshot failure or an invalid snapshot is
// returned as an error; transport failures end the window early and are
// reported on the Result.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("session already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	sessionID := uuid.NewString()
	symbol := s.cfg.Symbol
	log := s.log.WithComponent("session").WithFields(logger.Fields{
		"session_id": sessionID,
		"symbol":     symbol,
	})

	result := &Result{
		SessionID:            sessionID,
		Symbol:               symbol,
		StartedAt:            s.now(),
		SpreadAlertThreshold: s.cfg.SpreadAlertThreshold,
	}

	c := &capture{
		book:       orderbook.New(s.cfg.MaxDepth),
		series:     analysis.NewSpreadSeries(0),
		alertAbove: decimal.NewFromFloat(s.cfg.SpreadAlertThreshold),
		log:        log,
		now:        s.now,
	}

	if err := s.seed(ctx, c, symbol); err != nil {
		log.WithError(err).Error("failed to seed order book")
		return nil, err
	}

	if streamErr := s.stream(ctx, c, symbol); streamErr != nil {
		log.WithError(streamErr).Warn("capture window ended by transport failure")
		result.StreamFailed = true
		result.StreamErr = streamErr
	}
	result.Interrupted = ctx.Err() != nil
	result.EndedAt = s.now()
	result.Counters = c.counters

	s.finish(result, c.series, c.book)
	s.emitMetrics(log, result)
	s.publish(ctx, log, result)

	return result, nil
}

func (s *Session) seed(ctx context.Context, c *capture, symbol string) error {
	start := time.Now()
	snap, err := s.snapshotter.FetchSnapshot(ctx, symbol, s.snapshotLimit)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	bids, err := orderbook.ParseLevels(snap.Bids)
	if err != nil {
		return fmt.Errorf("%w: %v", orderbook.ErrInvalidSnapshot, err)
	}
	asks, err := orderbook.ParseLevels(snap.Asks)
	if err != nil {
		return fmt.Errorf("%w: %v", orderbook.ErrInvalidSnapshot, err)
	}
	if err := c.book.Seed(bids, asks, snap.LastUpdateID); err != nil {
		return err
	}

	nb, na := c.book.Depth()
	logger.LogPerformanceEntry(c.log, "session", "seed_book", time.Since(start), logger.Fields{
		"bid_levels":     nb,
		"ask_levels":     na,
		"last_update_id": snap.LastUpdateID,
	})

	c.recordSample()
	return nil
}

// stream runs the capture window and returns the transport failure, if any.
// The window ends on timeout, parent cancellation or a transport failure.
// When stream returns the consumer has drained every accepted message and no
// goroutine touches the book any more.
func (s *Session) stream(ctx context.Context, c *capture, symbol string) error {
	windowCtx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	buffer := s.cfg.UpdateBuffer
	if buffer <= 0 {
		buffer = 1
	}
	updates := make(chan models.DepthMessage, buffer)
	closing := make(chan struct{})
	failed := make(chan error, 1)

	handler := func(msg models.DepthMessage) {
		select {
		case <-closing:
			return
		default:
		}
		select {
		case updates <- msg:
			logger.RecordChannelMessage("depth_updates", len(msg.Bids)+len(msg.Asks))
		case <-closing:
		}
	}
	errHandler := func(err error) {
		select {
		case failed <- err:
		default:
		}
		cancel()
	}

	// The consumer runs before Subscribe so transports that deliver from
	// inside Subscribe cannot fill the buffer and block.
	g := new(errgroup.Group)
	g.Go(func() error {
		for msg := range updates {
			c.handle(msg)
		}
		return nil
	})

	doneC, stopC, err := s.subscriber.Subscribe(symbol, handler, errHandler)
	if err != nil {
		close(closing)
		close(updates)
		g.Wait()
		return fmt.Errorf("%w: subscribe %s: %v", ErrStreamClosed, symbol, err)
	}
	c.log.WithField("window", s.cfg.Duration.String()).Info("capture window opened")

	var streamErr error
	select {
	case <-windowCtx.Done():
	case <-doneC:
		streamErr = ErrStreamClosed
	}

	// Stop the transport first, then wait for its last callback before the
	// channel is closed and drained.
	close(stopC)
	close(closing)
	<-doneC
	close(updates)
	if err := g.Wait(); err != nil {
		return err
	}

	select {
	case err := <-failed:
		streamErr = fmt.Errorf("%w: %v", ErrStreamClosed, err)
	default:
	}

	c.log.WithFields(logger.Fields{
		"samples":  c.series.Len(),
		"received": c.counters.Received,
	}).Info("capture window closed")
	return streamErr
}

// handle applies one message. It is only ever called from the consumer
// goroutine.
func (c *capture) handle(msg models.DepthMessage) {
	c.counters.Received++

	if msg.DecodeErr != nil {
		c.counters.Malformed++
		c.log.WithError(fmt.Errorf("%w: %v", ErrMalformedMessage, msg.DecodeErr)).Warn("ignoring message")
		return
	}
	if !msg.IsDepthUpdate() {
		c.counters.Ignored++
		return
	}

	bids, err := orderbook.ParseLevels(msg.Bids)
	if err == nil {
		var asks []models.Level
		asks, err = orderbook.ParseLevels(msg.Asks)
		if err == nil {
			c.apply(msg, bids, asks)
			return
		}
	}
	c.counters.Malformed++
	c.log.WithError(fmt.Errorf("%w: %v", ErrMalformedMessage, err)).WithField("update_id", msg.LastUpdateID).Warn("ignoring message")
}

func (c *capture) apply(msg models.DepthMessage, bids, asks []models.Level) {
	if msg.LastUpdateID != 0 && msg.LastUpdateID <= c.book.LastUpdateID() {
		c.counters.StaleUpdates++
	}
	if err := c.book.Apply(bids, asks, msg.LastUpdateID); err != nil {
		c.counters.Malformed++
		c.log.WithError(err).Warn("failed to apply update")
		return
	}
	c.recordSample()
}

func (c *capture) recordSample() {
	spread, err := c.book.Spread()
	if err != nil {
		if errors.Is(err, orderbook.ErrEmptyBook) {
			c.counters.EmptyBook++
			c.log.Debug("book side empty, skipping sample")
			return
		}
		c.log.WithError(err).Warn("failed to compute spread")
		return
	}

	sample := c.series.Record(c.now(), spread)
	if spread.Abs().GreaterThan(c.alertAbove) {
		c.counters.SpreadAlerts++
		logger.IncrementSpreadAlert()
		c.log.WithFields(logger.Fields{
			"spread":    spread.String(),
			"threshold": c.alertAbove.String(),
			"at":        sample.Timestamp,
		}).Warn("spread above alert threshold")
	}
}

// finish runs the analytics over the captured data, or marks the result as
// having no data when nothing was recorded. Run always records the snapshot
// spread first, so the no-data branch only guards against an empty series.
func (s *Session) finish(result *Result, series *analysis.SpreadSeries, book *orderbook.Book) {
	log := s.log.WithComponent("session").WithField("session_id", result.SessionID)
	result.Book = book

	if series.Len() == 0 {
		result.NoData = true
		result.Reason = ErrNoDataCollected
		log.Warn("no spread samples collected, skipping analytics")
		return
	}

	start := time.Now()
	spreads := series.Spreads()
	timestamps := series.Timestamps()

	flags := s.analyzer.Widening(spreads)
	events, err := s.analyzer.Recovery(timestamps, spreads, flags)
	if err != nil {
		log.WithError(err).Error("recovery scan failed")
	}
	walls := s.analyzer.Walls(book)

	result.Samples = series.Values()
	result.Flags = flags
	result.Events = events
	result.Walls = walls
	result.Summary = analysis.Summarize(spreads, flags, events, walls, book)
	result.DepthCurves = analysis.DepthCurve(book)

	logger.LogPerformanceEntry(log, "session", "analytics", time.Since(start), logger.Fields{
		"samples":         len(spreads),
		"widening_events": result.Summary.WideningEvents,
		"recovery_events": len(events),
		"fake_walls":      len(walls),
	})
}

func (s *Session) emitMetrics(log *logger.Entry, r *Result) {
	fields := func() logger.Fields { return logger.Fields{"symbol": r.Symbol} }
	log.LogMetric("session", "messages_received", r.Counters.Received, "counter", fields())
	log.LogMetric("session", "messages_ignored", r.Counters.Ignored, "counter", fields())
	log.LogMetric("session", "messages_malformed", r.Counters.Malformed, "counter", fields())
	log.LogMetric("session", "empty_book_skips", r.Counters.EmptyBook, "counter", fields())
	log.LogMetric("session", "stale_updates", r.Counters.StaleUpdates, "counter", fields())
	log.LogMetric("session", "spread_alerts", r.Counters.SpreadAlerts, "counter", fields())
	if r.NoData {
		return
	}
	log.LogMetric("session", "spread_samples", len(r.Samples), "counter", fields())
	log.LogMetric("session", "widening_events", r.Summary.WideningEvents, "counter", fields())
	log.LogMetric("session", "recovery_events", len(r.Events), "counter", fields())
	log.LogMetric("session", "fake_walls", len(r.Walls), "counter", fields())
	log.LogMetric("session", "mean_recovery_seconds", r.Summary.MeanRecoverySeconds, "seconds", fields())
}

// publish hands the result to every sink. A failing sink is logged and does
// not stop the ones after it.
func (s *Session) publish(ctx context.Context, log *logger.Entry, result *Result) {
	for _, sink := range s.sinks {
		start := time.Now()
		if err := sink.Publish(ctx, result); err != nil {
			log.WithError(err).WithField("sink", sink.Name()).Error("sink failed")
			continue
		}
		logger.LogPerformanceEntry(log, "session", "publish", time.Since(start), logger.Fields{
			"sink": sink.Name(),
		})
	}
}
