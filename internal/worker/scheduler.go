package worker

import (
	"sync"
	"time"

	"sensorhub/internal/logger"
)

type Worker interface {
	Name() string
	Start()
	Stop()
}

// Scheduler starts a fixed set of workers and stops them together.
type Scheduler struct {
	workers     []Worker
	wg          sync.WaitGroup
	stopped     bool
	mu          sync.RWMutex
	stopTimeout time.Duration
	log         *logger.Logger
}

func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		workers:     make([]Worker, 0),
		stopTimeout: 10 * time.Second,
		log:         log.WithComponent("scheduler"),
	}
}

func (s *Scheduler) AddWorker(worker Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.log.Logger.Info().Int("workers", len(s.workers)).Msg("starting scheduler")

	for _, worker := range s.workers {
		s.wg.Add(1)
		go func(w Worker) {
			defer s.wg.Done()
			w.Start()
		}(worker)
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	workers := s.workers
	s.mu.Unlock()

	s.log.Info("stopping scheduler")

	for _, worker := range workers {
		worker.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped gracefully")
	case <-time.After(s.stopTimeout):
		s.log.Warn("scheduler stop timeout")
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.stopped
}
