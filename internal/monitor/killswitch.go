package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/metrics"
)

// Default exit thresholds.
const (
	DefaultExitAbsFloor  = 6500
	DefaultExitPeakRatio = 0.1
	DefaultExitSustain   = 180 * time.Second

	alertTimeout = 10 * time.Second
)

// ExitThresholds configures the sustained-drawdown kill-switch.
type ExitThresholds struct {
	AbsFloor  float64
	PeakRatio float64
	Sustain   time.Duration
}

// DefaultExitThresholds returns the stock kill-switch policy.
func DefaultExitThresholds() ExitThresholds {
	return ExitThresholds{
		AbsFloor:  DefaultExitAbsFloor,
		PeakRatio: DefaultExitPeakRatio,
		Sustain:   DefaultExitSustain,
	}
}

// ExitMonitor terminates the process once the market cap has stayed low
// for the sustain window. It is driven from the scheduler goroutine only.
type ExitMonitor struct {
	th     ExitThresholds
	logger *slog.Logger
	alert  AlertFunc
	dedup  Deduper
	exit   func(code int)

	pair     string
	peak     float64
	lowSince time.Time
}

// NewExitMonitor builds a monitor that calls os.Exit. alert and dedup may
// be nil.
func NewExitMonitor(th ExitThresholds, logger *slog.Logger, alert AlertFunc, dedup Deduper) *ExitMonitor {
	return &ExitMonitor{
		th:     th,
		logger: logger,
		alert:  alert,
		dedup:  dedup,
		exit:   os.Exit,
	}
}

// Reset forgets the peak and any running low episode, e.g. after the pair
// changed.
func (m *ExitMonitor) Reset(pair string) {
	m.pair = pair
	m.peak = 0
	m.lowSince = time.Time{}
	metrics.ExitPeakMarketCap.Set(0)
	metrics.ExitLowActive.Set(0)
}

// Peak returns the highest market cap observed since the last Reset.
func (m *ExitMonitor) Peak() float64 { return m.peak }

// LowSince returns when the current low episode began, or the zero time.
func (m *ExitMonitor) LowSince() time.Time { return m.lowSince }

func (m *ExitMonitor) isLow(mc float64) bool {
	return mc < m.th.AbsFloor || (m.peak > 0 && mc < m.th.PeakRatio*m.peak)
}

// Observe feeds one market cap reading. It reports whether the kill-switch
// fired; with the default exit hook it never returns in that case.
func (m *ExitMonitor) Observe(ctx context.Context, mc float64, now time.Time) bool {
	if mc > m.peak {
		m.peak = mc
		metrics.ExitPeakMarketCap.Set(mc)
	}

	if !m.isLow(mc) {
		if !m.lowSince.IsZero() {
			m.logger.Info("market cap recovered", "pair", m.pair, "market_cap", mc, "peak", m.peak)
			if m.dedup != nil {
				m.dedup.Clear(ctx, m.dedupKey())
			}
		}
		m.lowSince = time.Time{}
		metrics.ExitLowActive.Set(0)
		return false
	}

	if m.lowSince.IsZero() {
		m.lowSince = now
		metrics.ExitLowActive.Set(1)
		m.logger.Warn("market cap low", "pair", m.pair, "market_cap", mc, "peak", m.peak)
		m.warn(ctx, mc)
	}
	if now.Sub(m.lowSince) < m.th.Sustain {
		return false
	}

	msg := fmt.Sprintf("❌ %s market cap below threshold for %s. Exiting.\n\nCurrent: $%s\nPeak:    $%s",
		m.pair, m.th.Sustain, formatNum(mc), formatNum(m.peak))
	m.logger.Error("exit condition met", "pair", m.pair, "market_cap", mc, "peak", m.peak,
		"low_since", m.lowSince.Format(time.RFC3339))
	m.send(ctx, "exit", msg)
	m.exit(1)
	return true
}

func (m *ExitMonitor) dedupKey() string {
	return "exit_low:" + m.pair
}

func (m *ExitMonitor) warn(ctx context.Context, mc float64) {
	if m.dedup != nil {
		key := m.dedupKey()
		if m.dedup.AlreadySent(ctx, key) {
			metrics.AlertsDeduplicatedTotal.WithLabelValues("exit_warning").Inc()
			return
		}
		defer m.dedup.Record(ctx, key)
	}
	msg := fmt.Sprintf("⚠️ %s market cap low\n\nCurrent: $%s\nPeak:    $%s\nExit in %s unless it recovers.",
		m.pair, formatNum(mc), formatNum(m.peak), m.th.Sustain)
	m.send(ctx, "exit_warning", msg)
}

func (m *ExitMonitor) send(ctx context.Context, kind, msg string) {
	if m.alert == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	if err := m.alert(ctx, msg); err != nil {
		metrics.AlertsFailedTotal.WithLabelValues(kind).Inc()
		m.logger.Error("send alert failed", "type", kind, "error", err)
		return
	}
	metrics.AlertsSentTotal.WithLabelValues(kind).Inc()
}
