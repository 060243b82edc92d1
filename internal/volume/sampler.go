package volume

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultInterval is the sampling cadence, close to a 30 Hz display refresh.
const DefaultInterval = 33 * time.Millisecond

// ErrSamplerRunning is returned by Start on a sampler that was already started.
var ErrSamplerRunning = errors.New("volume sampler already started")

// Sampler periodically publishes the mean bin magnitude of an Analyzer.
type Sampler struct {
	clock    clock.Clock
	interval time.Duration

	mu       sync.Mutex
	started  bool
	stopped  bool
	analyzer Analyzer
	stop     chan struct{}
	done     chan struct{}
}

// NewSampler creates a sampler ticking every interval on clk.
func NewSampler(clk clock.Clock, interval time.Duration) *Sampler {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		clock:    clk,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start samples analyzer immediately and then on every tick, passing the
// mean magnitude to publish. A sampler runs once; it cannot be restarted.
func (s *Sampler) Start(analyzer Analyzer, publish func(level float64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return ErrSamplerRunning
	}
	s.started = true
	s.analyzer = analyzer

	ticker := s.clock.Ticker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()

		data := make([]byte, analyzer.FrequencyBinCount())
		sample := func() {
			analyzer.ByteFrequencyData(data)
			publish(Mean(data))
		}

		sample()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				select {
				case <-s.stop:
					return
				default:
				}
				sample()
			}
		}
	}()
	return nil
}

// Stop halts sampling and closes the analyzer. When Stop returns, publish
// will not be called again. Safe to call repeatedly and before Start.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	analyzer := s.analyzer
	close(s.stop)
	s.mu.Unlock()

	if !started {
		return
	}
	<-s.done
	_ = analyzer.Close()
}

// Mean returns the average of data, or 0 for an empty slice.
func Mean(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum int
	for _, v := range data {
		sum += int(v)
	}
	return float64(sum) / float64(len(data))
}
