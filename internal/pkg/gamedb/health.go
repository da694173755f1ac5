package gamedb

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/pkg/metrics"
)

// HealthConfig holds breaker and probe tuning.
type HealthConfig struct {
	CheckCooldown        time.Duration // negative probe result is cached for this long
	ResetCooldown        time.Duration // minimum gap between two pool resets
	ErrorWindow          time.Duration // sliding window for consecutive overload errors
	MaxConsecutiveErrors int
}

// State is a snapshot of the connection health, exposed for logging and metrics.
type State struct {
	LastProbeOK       bool
	LastProbeAt       time.Time
	ConsecutiveErrors int
	WindowStart       time.Time
	LastPoolResetAt   time.Time
}

// Health tracks probe results and overload errors for the game database.
// It is process-wide, in-memory state owned by the composition root and
// injected into the Gateway; all mutation goes through its methods so tests
// can drive it with a fake clock.
type Health struct {
	cfg HealthConfig
	now func() time.Time

	mu                sync.Mutex
	lastProbeOK       bool
	lastProbeAt       time.Time
	consecutiveErrors int
	windowStart       time.Time
	lastPoolResetAt   time.Time
}

func NewHealth(cfg HealthConfig) *Health {
	return &Health{cfg: cfg, now: time.Now}
}

// RecordSuccess resets the consecutive-error counter after a successful operation.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveErrors = 0
}

// RecordOverload registers one overload signal and reports whether the caller
// must dispose the pool now. Pool resets are expensive and amplify overload if
// triggered on every error, so a reset happens only when the counter reaches
// the threshold inside one error window and the reset cooldown has elapsed.
func (h *Health) RecordOverload() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.windowStart) > h.cfg.ErrorWindow {
		h.windowStart = now
		h.consecutiveErrors = 1
	} else {
		h.consecutiveErrors++
	}

	if since := now.Sub(h.lastPoolResetAt); since < h.cfg.ResetCooldown {
		log.Warn().
			Int("consecutive_errors", h.consecutiveErrors).
			Dur("cooldown_remaining", h.cfg.ResetCooldown-since).
			Msg("game db overload inside reset cooldown, pool kept")
		return false
	}

	if h.consecutiveErrors >= h.cfg.MaxConsecutiveErrors {
		h.lastPoolResetAt = now
		count := h.consecutiveErrors
		h.consecutiveErrors = 0
		metrics.GameDBPoolResets.Inc()
		log.Warn().Int("consecutive_errors", count).Msg("game db overload threshold reached, pool reset")
		return true
	}

	log.Warn().
		Int("consecutive_errors", h.consecutiveErrors).
		Int("max", h.cfg.MaxConsecutiveErrors).
		Msg("game db overload recorded")
	return false
}

// Open reports whether the breaker should fail fast: the error threshold was
// re-reached while a pool reset is still forbidden by the cooldown.
func (h *Health) Open() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.windowStart) > h.cfg.ErrorWindow {
		return false
	}
	return h.consecutiveErrors >= h.cfg.MaxConsecutiveErrors &&
		now.Sub(h.lastPoolResetAt) < h.cfg.ResetCooldown
}

// SkipProbe reports whether a new probe should be suppressed because the last
// one failed within the check cooldown. Prevents probe storms against a
// struggling server.
func (h *Health) SkipProbe() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.lastProbeOK && h.now().Sub(h.lastProbeAt) < h.cfg.CheckCooldown
}

// RecordProbe stores the latest probe result.
func (h *Health) RecordProbe(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastProbeOK = ok
	h.lastProbeAt = h.now()
}

// LastProbe returns the cached probe result and whether it is still fresh.
func (h *Health) LastProbe() (ok bool, fresh bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastProbeOK, h.now().Sub(h.lastProbeAt) < h.cfg.CheckCooldown
}

// Snapshot returns the current state for diagnostics.
func (h *Health) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return State{
		LastProbeOK:       h.lastProbeOK,
		LastProbeAt:       h.lastProbeAt,
		ConsecutiveErrors: h.consecutiveErrors,
		WindowStart:       h.windowStart,
		LastPoolResetAt:   h.lastPoolResetAt,
	}
}
