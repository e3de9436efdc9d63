package worker

import (
	"sync"
	"time"

	"sensorhub/internal/bridge"
	"sensorhub/internal/logger"
)

// StatsSource is anything that can report forwarder counters.
type StatsSource interface {
	Stats() bridge.Snapshot
}

// StatsWorker logs the bridge counters on a fixed interval and once more on stop.
type StatsWorker struct {
	source   StatsSource
	interval time.Duration
	log      *logger.Logger
	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewStatsWorker(source StatsSource, interval time.Duration, log *logger.Logger) *StatsWorker {
	return &StatsWorker{
		source:   source,
		interval: interval,
		log:      log.WithComponent("stats_worker"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *StatsWorker) Name() string { return "stats" }

// Start blocks until Stop is called.
func (w *StatsWorker) Start() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.report("bridge stats")
		case <-w.stopChan:
			w.report("bridge final stats")
			return
		}
	}
}

func (w *StatsWorker) Stop() {
	w.once.Do(func() { close(w.stopChan) })
}

func (w *StatsWorker) report(msg string) {
	s := w.source.Stats()
	w.log.Logger.Info().
		Int64("accepted", s.Accepted).
		Int64("dropped", s.Dropped).
		Int64("failed", s.Failed).
		Msg(msg)
}
