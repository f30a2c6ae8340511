package mailsync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Syncer runs one synchronization pass
type Syncer interface {
	SyncInbox(ctx context.Context) (Result, error)
}

// SchedulerConfig holds configuration for the periodic sync job
type SchedulerConfig struct {
	// Interval is the pause between runs
	Interval time.Duration
	// Timeout bounds a single run
	Timeout time.Duration
}

// Scheduler triggers SyncInbox periodically
type Scheduler struct {
	syncer  Syncer
	config  SchedulerConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewScheduler creates a new periodic sync job
func NewScheduler(syncer Syncer, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		syncer: syncer,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background job; the first run happens immediately
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("sync scheduler started",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("timeout", s.config.Timeout))
}

// Stop cancels the current run and waits for the job to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

// IsRunning returns whether the job is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	s.runOnce()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	// Stop interrupts a run in progress
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := s.syncer.SyncInbox(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", slog.Any("error", err))
		return
	}

	s.logger.Debug("scheduled sync finished",
		slog.Int("processed", result.Processed),
		slog.Int("errors", result.Errors))
}
