package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"spreadwatch/config"
	"spreadwatch/logger"
	"spreadwatch/models"

	binance "github.com/adshao/go-binance/v2"
	"github.com/sirupsen/logrus"
)

// ErrEmptySymbol is returned by Subscribe when no symbol is provided.
var ErrEmptySymbol = errors.New("symbol is required")

// serveFunc matches the go-binance depth stream entry points.
type serveFunc func(symbol string, handler binance.WsDepthHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error)

// Subscriber streams diff depth events through the go-binance websocket
// helpers and hands them over as models.DepthMessage values.
type Subscriber struct {
	serve    serveFunc
	interval time.Duration
	log      *logger.Log
}

// NewSubscriber selects the 100ms stream when interval_ms is 100 and the
// default 1s stream otherwise.
func NewSubscriber(cfg *config.Config) *Subscriber {
	interval := time.Duration(cfg.Source.Binance.Stream.IntervalMs) * time.Millisecond
	serve := serveFunc(binance.WsDepthServe)
	if interval == 100*time.Millisecond {
		serve = binance.WsDepthServe100Ms
	}
	return &Subscriber{
		serve:    serve,
		interval: interval,
		log:      logger.GetLogger(),
	}
}

// Subscribe opens the depth stream for symbol. Closing stopC ends the
// subscription; doneC is closed once the connection has been torn down and
// no further handler calls will happen.
func (s *Subscriber) Subscribe(symbol string, handler func(models.DepthMessage), errHandler func(error)) (doneC, stopC chan struct{}, err error) {
	if symbol == "" {
		return nil, nil, ErrEmptySymbol
	}

	log := s.log.WithComponent("depth_stream").WithFields(logger.Fields{
		"symbol":    symbol,
		"transport": config.TransportSDK,
		"interval":  s.interval.String(),
	})

	wsHandler := func(event *binance.WsDepthEvent) {
		msg := convertDepthEvent(event)
		logger.IncrementStreamMessage(len(msg.Bids) + len(msg.Asks))
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			logger.LogDataFlowEntry(log, "binance_ws", "session", len(msg.Bids)+len(msg.Asks), "depth_levels")
		}
		handler(msg)
	}

	// go-binance reports a frame it cannot parse through the same callback as
	// a dead connection, but keeps reading after the former.
	wsErrHandler := func(err error) {
		if err == nil {
			return
		}
		if isDecodeError(err) {
			logger.IncrementStreamMessage(0)
			handler(models.DepthMessage{
				DecodeErr:  fmt.Errorf("decode depth message: %w", err),
				ReceivedAt: time.Now(),
			})
			return
		}
		log.WithError(err).Warn("websocket error")
		errHandler(err)
	}

	doneC, stopC, err = s.serve(strings.ToLower(symbol), wsHandler, wsErrHandler)
	if err != nil {
		log.WithError(err).Error("failed to subscribe to depth stream")
		return nil, nil, err
	}

	log.Info("depth stream subscribed")
	return doneC, stopC, nil
}

// isDecodeError reports whether err came from parsing a single frame rather
// than from the connection.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

func convertDepthEvent(event *binance.WsDepthEvent) models.DepthMessage {
	msg := models.DepthMessage{
		EventType:     event.Event,
		EventTime:     event.Time,
		Symbol:        event.Symbol,
		FirstUpdateID: event.FirstUpdateID,
		LastUpdateID:  event.LastUpdateID,
		Bids:          make([]models.LevelUpdate, 0, len(event.Bids)),
		Asks:          make([]models.LevelUpdate, 0, len(event.Asks)),
		ReceivedAt:    time.Now(),
	}
	for _, b := range event.Bids {
		msg.Bids = append(msg.Bids, models.LevelUpdate{Price: b.Price, Quantity: b.Quantity})
	}
	for _, a := range event.Asks {
		msg.Asks = append(msg.Asks, models.LevelUpdate{Price: a.Price, Quantity: a.Quantity})
	}
	return msg
}
