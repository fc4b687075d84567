package health

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/metrics"
)

// Prober maintains the process-wide online flag with a scheduled TCP dial
// probe set. The flag is the single input to selection's network-requirement
// filter; staleness up to one probe interval is accepted.
type Prober struct {
	cron    *cron.Cron
	targets []string
	timeout time.Duration

	mu        sync.RWMutex
	online    bool
	lastProbe time.Time
}

// NewProber creates a prober over the configured dial targets. Zero values
// fall back to the documented defaults. The probe job is scheduled here;
// Start arms it.
func NewProber(cfg config.HealthConfig, interval, timeout time.Duration) (*Prober, error) {
	targets := cfg.ProbeTargets
	if len(targets) == 0 {
		targets = []string{"1.1.1.1:443", "8.8.8.8:53"}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	p := &Prober{
		cron:    cron.New(),
		targets: targets,
		timeout: timeout,
	}
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), p.probe); err != nil {
		return nil, fmt.Errorf("failed to schedule probe: %w", err)
	}
	return p, nil
}

// Start seeds the flag with one synchronous probe, then runs the schedule.
func (p *Prober) Start() {
	p.probe()
	p.cron.Start()
}

// Stop halts the schedule and waits for a running probe to finish.
func (p *Prober) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	logging.NetworkDebug("[Prober] stopped")
}

// Online reports the last probed connectivity state.
func (p *Prober) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// LastProbe returns when the flag was last refreshed.
func (p *Prober) LastProbe() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastProbe
}

// probe dials every target in parallel; one reachable target means online.
func (p *Prober) probe() {
	var wg sync.WaitGroup
	var reachable atomic.Bool
	for _, target := range p.targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", target, p.timeout)
			if err != nil {
				logging.NetworkDebug("[Prober] %s unreachable: %v", target, err)
				return
			}
			conn.Close()
			reachable.Store(true)
		}(target)
	}
	wg.Wait()

	online := reachable.Load()
	p.mu.Lock()
	changed := online != p.online
	p.online = online
	p.lastProbe = time.Now()
	p.mu.Unlock()

	if online {
		metrics.NetworkOnline.Set(1)
	} else {
		metrics.NetworkOnline.Set(0)
	}
	if changed {
		logging.Network("[Prober] online=%v (targets=%v)", online, p.targets)
	} else {
		logging.NetworkDebug("[Prober] online=%v", online)
	}
}
