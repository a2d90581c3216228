// Package health tracks exchange connectivity as a small state machine and
// triggers the outage flatten once a venue stays dark too long.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnderhillForge/PiTrader/config"
)

type State string

const (
	Healthy    State = "healthy"
	Degraded   State = "degraded"
	Outage     State = "outage"
	Recovering State = "recovering"
)

// SafetyActions is what the monitor may do to the rest of the engine when
// an outage persists. The app wires the ledger and portfolio in here.
type SafetyActions interface {
	ForceCloseAll(ctx context.Context, reason string) int
	RestInBase(ctx context.Context) error
	Park(reason string) error
}

// Monitor ingests per-operation success/failure signals and derives the
// venue health state. All methods are safe for concurrent use.
type Monitor struct {
	cfg config.HealthConfig
	log zerolog.Logger

	mu            sync.Mutex
	state         State
	failures      int
	successStreak int
	lastFailureOp string
	outageSince   time.Time
	flattened     bool
}

func NewMonitor(cfg config.HealthConfig, log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:   cfg,
		log:   log.With().Str("component", "health").Logger(),
		state: Healthy,
	}
}

// Failure records a failed exchange operation.
func (m *Monitor) Failure(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	m.successStreak = 0
	m.lastFailureOp = op

	prev := m.state
	switch {
	case m.state == Recovering:
		// A relapse during recovery goes straight back to outage.
		m.enterOutageLocked()
	case m.failures >= m.cfg.OutageFailures:
		m.enterOutageLocked()
	case m.failures >= m.cfg.DegradedFailures && m.state != Outage:
		m.state = Degraded
	}

	if m.state != prev {
		m.log.Warn().Str("from", string(prev)).Str("to", string(m.state)).
			Str("op", op).Int("failures", m.failures).Msg("health state changed")
	}
}

// Success records a successful exchange operation.
func (m *Monitor) Success() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures = 0
	m.successStreak++

	prev := m.state
	switch m.state {
	case Outage:
		m.state = Recovering
		m.successStreak = 1
	case Recovering, Degraded:
		if m.successStreak >= m.cfg.RecoverStreak {
			m.state = Healthy
			m.outageSince = time.Time{}
			m.flattened = false
		}
	}

	if m.state != prev {
		m.log.Info().Str("from", string(prev)).Str("to", string(m.state)).
			Int("streak", m.successStreak).Msg("health state changed")
	}
}

func (m *Monitor) enterOutageLocked() {
	if m.state != Outage {
		m.outageSince = time.Now().UTC()
		m.flattened = false
	}
	m.state = Outage
}

// State returns the current health state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EntriesBlocked reports whether new positions may be opened. Exits are
// always allowed, and a degraded venue still accepts entries.
func (m *Monitor) EntriesBlocked() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Outage:
		return true, "health_outage"
	case Recovering:
		if m.cfg.BlockRecovering {
			return true, "health_recovering"
		}
	}
	return false, ""
}

// CheckOutage runs the outage watchdog step: once the venue has been in
// outage longer than the configured window, flatten everything, move to
// base currency and park. Fires at most once per outage episode.
func (m *Monitor) CheckOutage(ctx context.Context, actions SafetyActions) {
	m.mu.Lock()
	var outageFor time.Duration
	if !m.outageSince.IsZero() {
		outageFor = time.Since(m.outageSince)
	}
	due := m.state == Outage && !m.flattened &&
		outageFor >= m.cfg.OutageFlatten.Std() && outageFor > 0
	if due {
		m.flattened = true
	}
	m.mu.Unlock()

	if !due || actions == nil {
		return
	}

	m.log.Error().Dur("outage_for", outageFor).
		Msg("outage persists, flattening all positions")

	closed := actions.ForceCloseAll(ctx, "outage_flatten")
	if err := actions.RestInBase(ctx); err != nil {
		m.log.Error().Err(err).Msg("rest in base failed")
	}
	if err := actions.Park("outage_flatten"); err != nil {
		m.log.Error().Err(err).Msg("park failed")
	}
	m.log.Warn().Int("closed", closed).Msg("outage flatten complete")
}

// LastFailureOp returns the operation name of the most recent failure.
func (m *Monitor) LastFailureOp() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFailureOp
}
