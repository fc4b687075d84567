// Package health tracks per-backend dispatch outcomes and network
// connectivity. The tracker keeps a rolling success rate per backend and
// drives the blacklist/recovery transitions the selection pipeline consults;
// the prober maintains the process-wide online flag.
package health

import (
	"sort"
	"sync"
	"time"

	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/metrics"
)

// RateLimit records a backend-reported quota window. A backend with
// Remaining == 0 is skipped by selection until ResetAt passes.
type RateLimit struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// ProviderStatus is the health record for one backend. One record per known
// backend, updated after every dispatch attempt.
type ProviderStatus struct {
	Provider       string     `json:"provider"`
	IsAvailable    bool       `json:"isAvailable"`
	IsLocal        bool       `json:"isLocal"`
	ResponseTimeMs int64      `json:"responseTimeMs,omitempty"`
	SuccessRate    float64    `json:"successRate"`
	LastError      string     `json:"lastError,omitempty"`
	LastUsed       time.Time  `json:"lastUsed,omitempty"`
	RateLimit      *RateLimit `json:"rateLimit,omitempty"`
}

// Tracker maintains the health table. Success and failure move the rolling
// rate by the decay rule only; when the rate falls below the blacklist
// threshold the backend is excluded and a recovery timer re-admits it after
// the grace period at the configured recovery rate.
type Tracker struct {
	mu       sync.Mutex
	decay    float64
	within   float64 // 1 - decay, the weight of the newest observation
	minRate  float64 // blacklist threshold
	recovery float64 // rate restored after the grace period
	grace    time.Duration

	statuses map[string]*ProviderStatus
	timers   map[string]*time.Timer
	closed   bool
}

// NewTracker creates a tracker from the health tunables. Zero fields fall
// back to the documented defaults.
func NewTracker(cfg config.HealthConfig, grace time.Duration) *Tracker {
	decay := cfg.SuccessDecay
	if decay <= 0 || decay >= 1 {
		decay = 0.9
	}
	threshold := cfg.BlacklistThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.3
	}
	recovery := cfg.RecoveryRate
	if recovery <= 0 || recovery > 1 {
		recovery = 0.5
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Tracker{
		decay:    decay,
		within:   1 - decay,
		minRate:  threshold,
		recovery: recovery,
		grace:    grace,
		statuses: make(map[string]*ProviderStatus),
		timers:   make(map[string]*time.Timer),
	}
}

// Register seeds the record for a backend. Records start Available with a
// success rate of 1.0.
func (t *Tracker) Register(provider string, isLocal bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.ensureLocked(provider)
	st.IsLocal = isLocal
	if st.IsAvailable {
		metrics.ProviderAvailable.WithLabelValues(provider).Set(1)
	}
	metrics.ProviderSuccessRate.WithLabelValues(provider).Set(st.SuccessRate)
}

func (t *Tracker) ensureLocked(provider string) *ProviderStatus {
	st, ok := t.statuses[provider]
	if !ok {
		st = &ProviderStatus{
			Provider:    provider,
			IsAvailable: true,
			SuccessRate: 1.0,
		}
		t.statuses[provider] = st
	}
	return st
}

// RecordSuccess folds a successful dispatch into the rolling rate and stamps
// the response time.
func (t *Tracker) RecordSuccess(provider string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	st := t.ensureLocked(provider)
	st.SuccessRate = min(1, st.SuccessRate*t.decay+t.within)
	st.ResponseTimeMs = latency.Milliseconds()
	st.LastError = ""
	st.LastUsed = time.Now()
	metrics.ProviderSuccessRate.WithLabelValues(provider).Set(st.SuccessRate)
	logging.HealthDebug("[Tracker] %s success: rate=%.3f latency=%dms", provider, st.SuccessRate, st.ResponseTimeMs)
}

// RecordFailure folds a failed dispatch into the rolling rate. Crossing the
// blacklist threshold excludes the backend and schedules its recovery.
func (t *Tracker) RecordFailure(provider string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	st := t.ensureLocked(provider)
	st.SuccessRate = max(0, st.SuccessRate*t.decay)
	if err != nil {
		st.LastError = err.Error()
	}
	st.LastUsed = time.Now()
	metrics.ProviderSuccessRate.WithLabelValues(provider).Set(st.SuccessRate)
	logging.HealthDebug("[Tracker] %s failure: rate=%.3f err=%v", provider, st.SuccessRate, err)

	if st.IsAvailable && st.SuccessRate < t.minRate {
		t.blacklistLocked(st)
	}
}

// blacklistLocked excludes the backend and arms its recovery timer.
func (t *Tracker) blacklistLocked(st *ProviderStatus) {
	st.IsAvailable = false
	provider := st.Provider
	metrics.ProviderAvailable.WithLabelValues(provider).Set(0)
	metrics.BlacklistCount.WithLabelValues(provider).Inc()
	logging.HealthWarn("[Tracker] %s blacklisted: rate=%.3f, recovery in %v", provider, st.SuccessRate, t.grace)
	logging.Audit().Blacklisted(provider, st.SuccessRate)

	if old, ok := t.timers[provider]; ok {
		old.Stop()
	}
	t.timers[provider] = time.AfterFunc(t.grace, func() {
		t.recover(provider)
	})
}

// recover re-admits a blacklisted backend after its grace period.
func (t *Tracker) recover(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	delete(t.timers, provider)
	st, ok := t.statuses[provider]
	if !ok || st.IsAvailable {
		return
	}
	st.IsAvailable = true
	st.SuccessRate = t.recovery
	metrics.ProviderAvailable.WithLabelValues(provider).Set(1)
	metrics.ProviderSuccessRate.WithLabelValues(provider).Set(st.SuccessRate)
	logging.Health("[Tracker] %s recovered: rate=%.3f", provider, st.SuccessRate)
	logging.Audit().Recovered(provider)
}

// SetRateLimit records a backend-reported quota window.
func (t *Tracker) SetRateLimit(provider string, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.ensureLocked(provider)
	st.RateLimit = &RateLimit{Remaining: remaining, ResetAt: resetAt}
}

// IsAvailable reports whether a backend may be selected. Unknown backends
// are treated as fresh, available records.
func (t *Tracker) IsAvailable(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statuses[provider]
	if !ok {
		return true
	}
	return st.IsAvailable
}

// RateLimitExhausted reports whether a backend's quota window is spent and
// has not reset yet.
func (t *Tracker) RateLimitExhausted(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statuses[provider]
	if !ok || st.RateLimit == nil {
		return false
	}
	if st.RateLimit.Remaining > 0 {
		return false
	}
	return time.Now().Before(st.RateLimit.ResetAt)
}

// SuccessRate returns the current rolling rate for a backend (1.0 when
// unknown).
func (t *Tracker) SuccessRate(provider string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statuses[provider]
	if !ok {
		return 1.0
	}
	return st.SuccessRate
}

// Status returns a copy of one backend's record.
func (t *Tracker) Status(provider string) (ProviderStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statuses[provider]
	if !ok {
		return ProviderStatus{}, false
	}
	return copyStatus(st), true
}

// Statuses returns copies of every record, sorted by backend name.
func (t *Tracker) Statuses() []ProviderStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ProviderStatus, 0, len(t.statuses))
	for _, st := range t.statuses {
		out = append(out, copyStatus(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func copyStatus(st *ProviderStatus) ProviderStatus {
	out := *st
	if st.RateLimit != nil {
		rl := *st.RateLimit
		out.RateLimit = &rl
	}
	return out
}

// Close stops every pending recovery timer. Records stay readable but no
// further transitions occur.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for provider, timer := range t.timers {
		timer.Stop()
		delete(t.timers, provider)
	}
	logging.HealthDebug("[Tracker] closed")
}
