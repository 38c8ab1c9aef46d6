package notify

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/yjx-labs/swapscalp/order"
)

func TestDisabledTelegramIsNoOp(t *testing.T) {
	tg := NewTelegram(zerolog.Nop(), "", 0)
	// None of these should panic or block on a nil bot.
	tg.Notify("hello")
	tg.NotifyFatal("reconnect attempts exhausted")
	tg.notifyPosition(&order.PositionEvent{Symbol: "BTCUSDT", Status: "OPEN"})
}

func TestConsumeDrainsUntilClosed(t *testing.T) {
	tg := NewTelegram(zerolog.Nop(), "", 0)
	events := make(chan order.Event, 2)
	events <- order.Event{Kind: order.EventPositionKind, Position: &order.PositionEvent{Symbol: "ETHUSDT", Status: "CLOSED", CloseReason: "TP2_HIT"}}
	close(events)
	tg.Consume(events) // must return once the channel closes
}
