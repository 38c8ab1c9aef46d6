package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
)

// ErrStreamFatal is surfaced once the reconnect budget is exhausted.
var ErrStreamFatal = errors.New("marketdata: exchange stream lost, reconnect attempts exhausted")

// Decoder demultiplexes one raw WS frame into either a confirmed candle or
// a mark-price update, implemented by the exchange package against the
// concrete wire format (the donor hand-parses Binance JSON inline in each
// per-exchange Start loop; here that parsing is pushed behind this
// interface so ExchangeStream itself stays exchange-agnostic).
type Decoder interface {
	// DecodeCandle returns ok=true only for a *confirmed* (closed) candle
	// event — in-progress bar updates must return ok=false here and be
	// surfaced only via DecodeMarkPrice, or ignored.
	DecodeCandle(raw []byte) (c Candle, ok bool)
	// DecodeMarkPrice returns ok=true for a mark-price tick.
	DecodeMarkPrice(raw []byte) (symbol string, price float64, ok bool)
}

// URLBuilder produces the combined-stream dial URL for a subscription set.
type URLBuilder func(symbols []string, timeframes []string) string

// ExchangeStream maintains one outbound streaming session with subscription
// management, exponential-backoff reconnect, heartbeat, and channel
// demultiplexing.
type ExchangeStream struct {
	log zerolog.Logger
	buildURL URLBuilder
	decoder Decoder
	agg *CandleAggregator
	marks *MarkPrices

	mu sync.Mutex
	symbols []string
	timeframes []string
	connected bool
	shutdown bool

	fatal chan error
}

// NewExchangeStream constructs a stream that writes confirmed candles into
// agg and mark-price ticks into marks.
func NewExchangeStream(log zerolog.Logger, buildURL URLBuilder, decoder Decoder, agg *CandleAggregator, marks *MarkPrices) *ExchangeStream {
	return &ExchangeStream{
		log:      log,
		buildURL: buildURL,
		decoder:  decoder,
		agg:      agg,
		marks:    marks,
		fatal:    make(chan error, 1),
	}
}

// Subscribe records the desired subscription set; it does not start or
// restart the connect loop. Safe to call before Run, or to change
// subscriptions while running — the next (re)connect picks up the new set.
func (s *ExchangeStream) Subscribe(symbols, timeframes []string) {
	s.mu.Lock()
	s.symbols = append([]string(nil), symbols...)
	s.timeframes = append([]string(nil), timeframes...)
	s.mu.Unlock()
}

// UnsubscribeAll clears the subscription set.
func (s *ExchangeStream) UnsubscribeAll() {
	s.mu.Lock()
	s.symbols = nil
	s.timeframes = nil
	s.mu.Unlock()
}

// IsConnected reports whether the session currently has a live socket.
func (s *ExchangeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Fatal returns a channel that receives ErrStreamFatal once the reconnect
// budget is exhausted; the control plane selects on it to move to DEGRADED.
func (s *ExchangeStream) Fatal() <-chan error {
	return s.fatal
}

// Run drives the connect/read/reconnect loop until ctx is canceled or
// Shutdown is called. It never returns on ordinary disconnects — only on
// shutdown or a fatal reconnect exhaustion.
func (s *ExchangeStream) Run(ctx context.Context) {
	b := &backoff.Backoff{
		Min:    1 * time.Second,
		Max:    16 * time.Second,
		Factor: 2,
	}
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		shuttingDown := s.shutdown
		s.mu.Unlock()
		if shuttingDown {
			return
		}

		err := s.connectAndRead(ctx)
		if err == nil {
			// Clean shutdown requested mid-read.
			return
		}

		attempts++
		s.log.Warn().Err(err).Int("attempt", attempts).Msg("stream disconnected, scheduling reconnect")

		if attempts > 5 {
			s.log.Error().Msg("reconnect attempts exhausted, surfacing fatal stream event")
			select {
			case s.fatal <- ErrStreamFatal:
			default:
			}
			return
		}

		wait := b.Duration()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Shutdown requests the run loop to stop and not reconnect.
func (s *ExchangeStream) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

func (s *ExchangeStream) connectAndRead(ctx context.Context) error {
	s.mu.Lock()
	symbols := append([]string(nil), s.symbols...)
	timeframes := append([]string(nil), s.timeframes...)
	s.mu.Unlock()

	if len(symbols) == 0 {
		return errors.New("marketdata: no subscriptions set")
	}

	url := s.buildURL(symbols, timeframes)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(45 * time.Second))
	})
	_ = conn.SetReadDeadline(time.Now().Add(45 * time.Second))

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	msgCh := make(chan []byte, 256)
	errCh := make(chan error, 1)

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- raw:
			default:
				// Drop on backpressure rather than block the reader;
				// indicator staleness is preferable to a stuck socket.
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case err := <-errCh:
			return err
		case raw := <-msgCh:
			s.handleMessage(raw)

			s.mu.Lock()
			shuttingDown := s.shutdown
			s.mu.Unlock()
			if shuttingDown {
				return nil
			}
		}
	}
}

func (s *ExchangeStream) handleMessage(raw []byte) {
	if c, ok := s.decoder.DecodeCandle(raw); ok {
		s.agg.OnCandleClose(c)
		return
	}
	if symbol, price, ok := s.decoder.DecodeMarkPrice(raw); ok {
		s.marks.Set(symbol, price)
		return
	}
	// Unknown channel/subscription-ack: silently ignored.
}
