package writer

import (
	"context"
	"fmt"
	"strings"

	"spreadwatch/config"
	"spreadwatch/logger"
	"spreadwatch/processor"
)

// ReportWriter renders the plain text analysis report.
type ReportWriter struct {
	dir      string
	filename string
	log      *logger.Log
}

func NewReportWriter(cfg *config.Config) *ReportWriter {
	return &ReportWriter{
		dir:      cfg.Writer.OutputDir,
		filename: cfg.Writer.Report.Filename,
		log:      logger.GetLogger(),
	}
}

func (w *ReportWriter) Name() string { return "report" }

func (w *ReportWriter) Publish(ctx context.Context, result *processor.Result) error {
	text := FormatReport(result)
	path, err := writeFile(w.dir, w.filename, []byte(text))
	if err != nil {
		return err
	}
	w.log.WithComponent("report_writer").WithFields(logger.Fields{
		"session_id": result.SessionID,
		"path":       path,
		"bytes":      len(text),
	}).Info("analysis report written")
	return nil
}

// FormatReport builds the report text for a finished session.
func FormatReport(r *processor.Result) string {
	var b strings.Builder
	b.WriteString("Order Book Analysis Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Symbol:  %s\n", r.Symbol)
	fmt.Fprintf(&b, "Session: %s\n", r.SessionID)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Window:  %s - %s\n", r.StartedAt.UTC().Format("2006-01-02 15:04:05"), r.EndedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if r.StreamFailed {
		fmt.Fprintf(&b, "Note:    capture ended early (%v)\n", r.StreamErr)
	}

	if r.NoData {
		b.WriteString("\nNo data collected during the capture window.\n")
		return b.String()
	}

	s := r.Summary
	b.WriteString("\nSpread Analysis:\n")
	fmt.Fprintf(&b, "Samples:         %d\n", s.Samples)
	fmt.Fprintf(&b, "Average Spread:  %8.3f\n", s.MeanSpread)
	fmt.Fprintf(&b, "Maximum Spread:  %8.3f\n", s.MaxSpread)
	fmt.Fprintf(&b, "Minimum Spread:  %8.3f\n", s.MinSpread)
	fmt.Fprintf(&b, "Widening Events: %d\n", s.WideningEvents)
	fmt.Fprintf(&b, "Spread Alerts:   %d\n", r.Counters.SpreadAlerts)

	if len(r.Events) > 0 {
		b.WriteString("\nRecovery-time Analysis:\n")
		fmt.Fprintf(&b, "Average recovery: %.2f s  across %d events\n", s.MeanRecoverySeconds, len(r.Events))
	}

	if len(r.Walls) > 0 {
		b.WriteString("\nFake-wall Detection:\n")
		for _, w := range r.Walls {
			fmt.Fprintf(&b, " - %-4s | %10s | %10s\n", w.Side, w.Price.StringFixed(2), w.Quantity.StringFixed(3))
		}
	}

	b.WriteString("\nDepth:\n")
	fmt.Fprintf(&b, "Best Bid:  %s\n", s.BestBid.String())
	fmt.Fprintf(&b, "Best Ask:  %s\n", s.BestAsk.String())
	fmt.Fprintf(&b, "Mid Price: %s\n", s.MidPrice.String())
	fmt.Fprintf(&b, "Bid Side:  %d levels, %s total\n", s.BidLevels, s.BidQuantity.String())
	fmt.Fprintf(&b, "Ask Side:  %d levels, %s total\n", s.AskLevels, s.AskQuantity.String())
	fmt.Fprintf(&b, "Imbalance: %+.4f\n", s.Imbalance)

	c := r.Counters
	b.WriteString("\nMessages:\n")
	fmt.Fprintf(&b, "Received: %d  Ignored: %d  Malformed: %d  Empty book: %d  Stale: %d\n",
		c.Received, c.Ignored, c.Malformed, c.EmptyBook, c.StaleUpdates)

	return b.String()
}
