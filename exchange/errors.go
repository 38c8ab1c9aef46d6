package exchange

import (
	"errors"
	"strings"

	"github.com/yjx-labs/swapscalp/marketdata"
)

// Sentinel errors the rest of the codebase checks with errors.Is, instead
// of string-matching exchange error codes the way the donor's inline
// `strings.Contains(err.Error(), "-1121")` checks do. classifyError is the
// one place that idiom survives.
var (
	ErrNoPosition   = errors.New("exchange: no open position")
	ErrRateLimited  = errors.New("exchange: rate limited")
	ErrInvalid      = errors.New("exchange: invalid request")
	ErrNoSuchSymbol = marketdata.ErrNoSuchInstrument
)

// classifyError maps a raw Binance API error into a sentinel where one
// applies, so callers never need to inspect error-code strings themselves.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "-2019"), strings.Contains(msg, "-2022"), strings.Contains(msg, "-4164"):
		return ErrNoPosition
	case strings.Contains(msg, "-1003"), strings.Contains(msg, "Too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "-1121"):
		return ErrNoSuchSymbol
	case strings.Contains(msg, "-1013"), strings.Contains(msg, "-2010"), strings.Contains(msg, "-4003"):
		return ErrInvalid
	default:
		return err
	}
}
