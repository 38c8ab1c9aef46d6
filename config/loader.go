// Package config loads every tunable from the
// environment, generalizing the donor's config/loader.go pattern
// (godotenv + os.Getenv + strconv with defaults) to the full tunable set.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime tunable. Load always fills in the documented
// defaults for anything unset in the environment.
type Config struct {
	// Exchange credentials / connectivity.
	BinanceAPIKey string
	BinanceAPISecret string
	IsTestnet bool

	// Watchlist (normally produced by the external symbol-selection
	// service; falls back to a small fixed list so the core runs standalone).
	Watchlist []string

	// Risk.
	MaxPositions int
	MaxSameDirection int
	MaxDailyLoss float64 // fraction, e.g. 0.05 = 5%
	ConsecutiveLossLimit int
	CooldownMinutes int
	FixedMarginUSDT float64
	Leverage int

	// Filters.
	MaxSpreadPct float64
	FundingMaxLong float64
	FundingMinShort float64
	FundingExtremeHi float64
	FundingExtremeLo float64
	TrendBars int
	MomentumBars int
	BodyExhausted float64
	BodyMomentum float64
	VolumeDecrease float64
	MinCvdRatio float64
	CvdBars int

	// Order sizing / targets.
	ATRPeriod int
	EntryOffsetATR float64
	TPAtr float64
	TP1Atr float64
	TP2Atr float64
	SLAtr float64
	MinAtrPct float64
	MinTpSlPct float64
	FeePct float64
	SlippagePct float64
	UnfillTimeoutSec int

	// Position lifecycle.
	TpReduceTimeSec int
	TpReduceRatio float64
	BreakevenTimeSec int
	BreakevenMinProfit float64
	MaxHoldTimeSec int

	// Scheduling.
	AuxPollInterval time.Duration
	SignalScanInterval time.Duration
	SignalScanOffset time.Duration
	OrderTickInterval time.Duration
	WatchdogInterval time.Duration
	RebuildCooldown time.Duration

	// Notifications.
	TelegramBotToken string
	TelegramChatID int64

	// Persistence.
	AuditDBPath string
}

// Load reads .env (if present) then the process environment, filling in
// defaults for anything unset. It never fails on a missing .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		BinanceAPIKey: os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		IsTestnet: getEnvBool("BINANCE_TESTNET", true),

		Watchlist: getEnvList("WATCHLIST", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}),

		MaxPositions: getEnvInt("MAX_POSITIONS", 3),
		MaxSameDirection: getEnvInt("MAX_SAME_DIRECTION", 2),
		MaxDailyLoss: getEnvFloat("MAX_DAILY_LOSS", 0.05),
		ConsecutiveLossLimit: getEnvInt("CONSECUTIVE_LOSS_LIMIT", 3),
		CooldownMinutes: getEnvInt("COOLDOWN_MINUTES", 30),
		FixedMarginUSDT: getEnvFloat("FIXED_MARGIN_USDT", 50.0),
		Leverage: getEnvInt("LEVERAGE", 10),

		MaxSpreadPct: getEnvFloat("MAX_SPREAD_PCT", 0.0005),
		FundingMaxLong: getEnvFloat("FUNDING_MAX_LONG", 0.0010),
		FundingMinShort: getEnvFloat("FUNDING_MIN_SHORT", -0.0010),
		FundingExtremeHi: getEnvFloat("FUNDING_EXTREME_HIGH", 0.0030),
		FundingExtremeLo: getEnvFloat("FUNDING_EXTREME_LOW", -0.0030),
		TrendBars: getEnvInt("TREND_BARS", 4),
		MomentumBars: getEnvInt("MOMENTUM_BARS", 5),
		BodyExhausted: getEnvFloat("BODY_EXHAUSTED", 0.5),
		BodyMomentum: getEnvFloat("BODY_MOMENTUM", 1.2),
		VolumeDecrease: getEnvFloat("VOLUME_DECREASE", 0.8),
		MinCvdRatio: getEnvFloat("MIN_CVD_RATIO", 0.15),
		CvdBars: getEnvInt("CVD_BARS", 3),

		ATRPeriod: getEnvInt("ATR_PERIOD", 14),
		EntryOffsetATR: getEnvFloat("ENTRY_OFFSET_ATR", 0.1),
		TPAtr: getEnvFloat("TP_ATR", 3.0),
		TP1Atr: getEnvFloat("TP1_ATR", 1.5),
		TP2Atr: getEnvFloat("TP2_ATR", 3.0),
		SLAtr: getEnvFloat("SL_ATR", 1.2),
		MinAtrPct: getEnvFloat("MIN_ATR_PCT", 0.0015),
		MinTpSlPct: getEnvFloat("MIN_TP_SL_PCT", 0.002),
		FeePct: getEnvFloat("FEE_PCT", 0.0004),
		SlippagePct: getEnvFloat("SLIPPAGE_PCT", 0.0003),
		UnfillTimeoutSec: getEnvInt("UNFILL_TIMEOUT_SEC", 90),

		TpReduceTimeSec: getEnvInt("TP_REDUCE_TIME_SEC", 900),
		TpReduceRatio: getEnvFloat("TP_REDUCE_RATIO", 0.5),
		BreakevenTimeSec: getEnvInt("BREAKEVEN_TIME_SEC", 1800),
		BreakevenMinProfit: getEnvFloat("BREAKEVEN_MIN_PROFIT", 0.0),
		MaxHoldTimeSec: getEnvInt("MAX_HOLD_TIME_SEC", 7200),

		AuxPollInterval: time.Minute,
		SignalScanInterval: time.Minute,
		SignalScanOffset: 30 * time.Second,
		OrderTickInterval: 10 * time.Second,
		WatchdogInterval: 15 * time.Second,
		RebuildCooldown: 15 * time.Second,

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),

		AuditDBPath: getEnvString("AUDIT_DB_PATH", "swapscalp_audit.db"),
	}

	return c, nil
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
