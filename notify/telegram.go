// Package notify implements an optional Telegram sink for FATAL/degraded
// stream-loss events and position open/close notices, adapted from the
// donor's notification_service.go (NewNotificationService/Notify), trimmed
// to the one-way broadcast this core needs — the donor's interactive
// approve/discard keyboard and command listener belong to the front-end
// push-socket collaborator this spec scopes out.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/yjx-labs/swapscalp/order"
)

// Telegram is a best-effort, fire-and-forget outbound sink. A Telegram with
// a nil bot (no token configured) is valid and every method becomes a
// no-op, mirroring the donor's ns == nil guard in Notify.
type Telegram struct {
	log    zerolog.Logger
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram constructs a sink. If token is empty, it returns a disabled
// Telegram whose methods are no-ops rather than a nil pointer, so callers
// never need a separate "is configured" check.
func NewTelegram(log zerolog.Logger, token string, chatID int64) *Telegram {
	if token == "" {
		return &Telegram{log: log}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Msg("telegram bot init failed, notifications disabled")
		return &Telegram{log: log}
	}
	return &Telegram{log: log, bot: bot, chatID: chatID}
}

func (t *Telegram) enabled() bool { return t.bot != nil && t.chatID != 0 }

// Notify sends msg as a fire-and-forget message, matching the donor's
// Notify's async send-and-log-on-failure shape.
func (t *Telegram) Notify(msg string) {
	if !t.enabled() {
		return
	}
	go func() {
		cfg := tgbotapi.NewMessage(t.chatID, msg)
		if _, err := t.bot.Send(cfg); err != nil {
			t.log.Warn().Err(err).Msg("telegram send failed")
		}
	}()
}

// NotifyFatal sends the stream-lost / DEGRADED-state alert.
func (t *Telegram) NotifyFatal(reason string) {
	t.Notify(fmt.Sprintf("FATAL: exchange stream lost (%s). Core status is now DEGRADED.", reason))
}

// Consume ranges over a Coordinator's event channel, forwarding notable
// lifecycle transitions (new position, closed position) until the channel
// closes. Intended to run in its own goroutine alongside AuditStore's own
// consumption of the same events via Coordinator's audit sink.
func (t *Telegram) Consume(events <-chan order.Event) {
	for e := range events {
		switch e.Kind {
		case order.EventPositionKind:
			t.notifyPosition(e.Position)
		case order.EventSignalKind:
			// Signal-level noise (SKIPPED/CANCELED) is not worth a push;
			// only position transitions are notification-worthy.
		}
	}
}

func (t *Telegram) notifyPosition(p *order.PositionEvent) {
	if p == nil {
		return
	}
	switch p.Status {
	case "OPEN":
		t.Notify(fmt.Sprintf("Position opened: %s %s qty=%.6g entry=%.6g tp=%.6g sl=%.6g", p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.TPPrice, p.SLPrice))
	case "CLOSED":
		t.Notify(fmt.Sprintf("Position closed: %s %s reason=%s pnl=%.4f%%", p.Symbol, p.Side, p.CloseReason, p.PnlPct*100))
	}
}
