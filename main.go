package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spreadwatch/config"
	"spreadwatch/logger"
	"spreadwatch/processor"
	"spreadwatch/reader/binance"
	wsreader "spreadwatch/reader/websocket"
	"spreadwatch/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file (empty for built-in defaults)")
	symbol := flag.String("symbol", "", "Symbol to capture, overrides session.symbol")
	duration := flag.Duration("duration", 0, "Capture window, overrides session.duration")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Session.Symbol = config.NormalizeSymbol(*symbol)
	}
	if *duration > 0 {
		cfg.Session.Duration = *duration
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Spreadwatch.Name,
		"version":     cfg.Spreadwatch.Version,
		"environment": config.AppEnvironment(),
		"symbol":      cfg.Session.Symbol,
		"window":      cfg.Session.Duration.String(),
	}).Info("starting spreadwatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received, closing capture window")
			cancel()
		case <-ctx.Done():
		}
	}()

	var subscriber processor.Subscriber
	switch cfg.Source.Binance.Stream.Transport {
	case config.TransportWebsocket:
		subscriber = wsreader.NewSubscriber(cfg)
	default:
		subscriber = binance.NewSubscriber(cfg)
	}

	var sinks []processor.Sink
	if cfg.Writer.Report.Enabled {
		sinks = append(sinks, writer.NewReportWriter(cfg))
	}
	if cfg.Writer.ChartData.Enabled {
		sinks = append(sinks, writer.NewChartDataWriter(cfg))
	}
	if cfg.Writer.Archive.Enabled {
		archive, err := writer.NewArchiveWriter(ctx, cfg)
		if err != nil {
			log.WithError(err).Error("failed to create archive writer")
			os.Exit(1)
		}
		sinks = append(sinks, archive)
	}

	session := processor.NewSession(cfg, binance.NewSnapshotter(cfg), subscriber, processor.WithSinks(sinks...))

	result, err := session.Run(ctx)
	if err != nil {
		log.WithError(err).Error("session failed")
		os.Exit(1)
	}

	fields := logger.Fields{
		"session_id":    result.SessionID,
		"samples":       len(result.Samples),
		"spread_alerts": result.Counters.SpreadAlerts,
		"stream_failed": result.StreamFailed,
		"interrupted":   result.Interrupted,
	}
	if result.NoData {
		log.WithFields(fields).Warn("session finished without data")
	} else {
		fields["widening_events"] = result.Summary.WideningEvents
		fields["recovery_events"] = len(result.Events)
		fields["fake_walls"] = len(result.Walls)
		log.WithFields(fields).Info("session finished")
	}

	log.Info("spreadwatch stopped")
	if result.StreamFailed {
		os.Exit(2)
	}
}
