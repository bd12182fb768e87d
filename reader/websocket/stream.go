package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"spreadwatch/config"
	"spreadwatch/logger"
	"spreadwatch/models"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// ErrEmptySymbol is returned by Subscribe when no symbol is provided.
var ErrEmptySymbol = errors.New("symbol is required")

// Subscriber reads a Binance style diff depth stream over a plain gorilla
// websocket connection. It serves endpoints the SDK does not know about, such
// as regional mirrors or a local replay server.
type Subscriber struct {
	baseURL  string
	interval time.Duration
	dialer   *websocket.Dialer
	log      *logger.Log
}

func NewSubscriber(cfg *config.Config) *Subscriber {
	return &Subscriber{
		baseURL:  strings.TrimRight(cfg.Source.Binance.Stream.URL, "/"),
		interval: time.Duration(cfg.Source.Binance.Stream.IntervalMs) * time.Millisecond,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		log: logger.GetLogger(),
	}
}

// streamURL builds <base>/<symbol>@depth, with the @100ms suffix for the fast
// stream.
func (s *Subscriber) streamURL(symbol string) string {
	stream := strings.ToLower(symbol) + "@depth"
	if s.interval == 100*time.Millisecond {
		stream += "@100ms"
	}
	return fmt.Sprintf("%s/%s", s.baseURL, stream)
}

// Subscribe dials the stream and starts the read loop. Closing stopC closes
// the connection; doneC is closed when the read loop has returned. A read
// error that was not caused by stopC is passed to errHandler before doneC is
// closed.
func (s *Subscriber) Subscribe(symbol string, handler func(models.DepthMessage), errHandler func(error)) (doneC, stopC chan struct{}, err error) {
	if symbol == "" {
		return nil, nil, ErrEmptySymbol
	}

	url := s.streamURL(symbol)
	log := s.log.WithComponent("depth_stream").WithFields(logger.Fields{
		"symbol":    symbol,
		"transport": config.TransportWebsocket,
		"url":       url,
	})

	conn, _, err := s.dialer.Dial(url, nil)
	if err != nil {
		log.WithError(err).Error("websocket dial failed")
		return nil, nil, fmt.Errorf("dial %s: %w", url, err)
	}
	log.Info("websocket connection established")

	doneC = make(chan struct{})
	stopC = make(chan struct{})

	var (
		mu      sync.Mutex
		stopped bool
	)

	go func() {
		<-stopC
		mu.Lock()
		stopped = true
		mu.Unlock()
		conn.Close()
	}()

	go func() {
		defer close(doneC)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				mu.Lock()
				silent := stopped
				mu.Unlock()
				if !silent {
					log.WithError(err).Warn("websocket read loop ended")
					errHandler(err)
				}
				conn.Close()
				return
			}

			msg := decode(payload)
			logger.IncrementStreamMessage(len(msg.Bids) + len(msg.Asks))
			handler(msg)
		}
	}()

	return doneC, stopC, nil
}

func decode(payload []byte) models.DepthMessage {
	var msg models.DepthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		msg = models.DepthMessage{DecodeErr: fmt.Errorf("decode depth message: %w", err)}
	}
	msg.ReceivedAt = time.Now()
	return msg
}
