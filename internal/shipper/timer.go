// internal/shipper/timer.go

package shipper

import (
	"fmt"
	"sync"
	"time"

	"github.com/orgoj/hecship/internal/config"
)

// flushTimer owns at most one recurring ticker per shipper. On every tick
// it invokes fire, which is expected to flush only a non-empty queue.
type flushTimer struct {
	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	fire     func()
}

func newFlushTimer(fire func()) *flushTimer {
	return &flushTimer{fire: fire}
}

// start launches the ticker with the given interval. If a ticker is already
// running it is stopped first and a fresh one started, recording the new
// interval so later reconfiguration can detect drift.
func (t *flushTimer) start(interval time.Duration) error {
	if interval <= 0 {
		return &config.ConfigError{Field: "batch_interval", Reason: fmt.Sprintf("timer interval must be positive, got %s", interval)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()

	t.interval = interval
	stop := make(chan struct{})
	t.stop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.fire()
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// stopTimer halts the ticker. Idempotent.
func (t *flushTimer) stopTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *flushTimer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.interval = 0
}

func (t *flushTimer) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *flushTimer) currentInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// sync reconciles the timer with a freshly resolved settings snapshot.
// Settings resolution is the sole place that changes batching policy, so
// every resolution result passes through here: a timer is started when the
// snapshot calls for one, restarted when the interval drifted, and stopped
// when autoFlush turned off or the interval became non-positive.
func (t *flushTimer) sync(st config.Settings) error {
	if st.AutoFlush && st.BatchInterval > 0 {
		if !t.running() || t.currentInterval() != st.BatchInterval {
			return t.start(st.BatchInterval)
		}
		return nil
	}
	t.stopTimer()
	return nil
}
