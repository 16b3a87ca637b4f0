package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"surveysync/internal/model"
	"surveysync/internal/storage"
)

// ErrSyncInProgress is returned by RunNow while another cycle is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// Sync triggers recorded on each run.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
)

// SchedulerConfig holds configuration for the sync scheduler.
type SchedulerConfig struct {
	// Interval is how often a sync runs. Zero disables periodic runs; RunNow still works.
	Interval time.Duration

	// Timeout bounds one cycle.
	// Default: 30 minutes
	Timeout time.Duration

	// RunOnStart runs a cycle as soon as the scheduler starts.
	RunOnStart bool
}

// SyncScheduler runs sync cycles periodically and on demand, never more than
// one at a time against the same storage.
type SyncScheduler struct {
	svc    *SyncService
	store  storage.Storage
	opts   SyncOptions
	config SchedulerConfig

	inFlight sync.Mutex

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	lastRun   *model.SyncRun
}

// NewSyncScheduler creates a scheduler for svc writing to store.
func NewSyncScheduler(svc *SyncService, store storage.Storage, opts SyncOptions, config SchedulerConfig) *SyncScheduler {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Minute
	}

	return &SyncScheduler{
		svc:    svc,
		store:  store,
		opts:   opts,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic syncing.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	if s.config.Interval > 0 {
		s.ticker = time.NewTicker(s.config.Interval)
	}
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Started - Form: %s, Interval: %v, Timeout: %v",
		s.svc.FormID(), s.config.Interval, s.config.Timeout)

	if s.config.RunOnStart {
		go s.runScheduled(TriggerStartup)
	}
	if s.ticker != nil {
		go s.run()
	}
}

// run is the main scheduling loop.
func (s *SyncScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runScheduled(TriggerSchedule)
		case <-s.stopCh:
			log.Printf("[SyncScheduler] Stopped")
			return
		}
	}
}

func (s *SyncScheduler) runScheduled(trigger string) {
	_, err := s.RunNow(context.Background(), trigger)
	if errors.Is(err, ErrSyncInProgress) {
		log.Printf("[SyncScheduler] Skipping %s run: previous sync still running", trigger)
	}
}

// Stop stops periodic syncing. A cycle already running finishes on its own.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow runs one cycle immediately, bounded by the configured timeout.
// It returns ErrSyncInProgress without waiting if a cycle is already running.
// A failed cycle is still recorded and returned alongside its error.
func (s *SyncScheduler) RunNow(ctx context.Context, trigger string) (*model.SyncRun, error) {
	if !s.inFlight.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.inFlight.Unlock()

	return s.runLocked(ctx, trigger)
}

// RunAsync starts a cycle in the background. The in-flight slot is taken
// before it returns, so ErrSyncInProgress is reported to the caller rather
// than lost in the background goroutine.
func (s *SyncScheduler) RunAsync(trigger string) error {
	if !s.inFlight.TryLock() {
		return ErrSyncInProgress
	}

	go func() {
		defer s.inFlight.Unlock()
		s.runLocked(context.Background(), trigger)
	}()
	return nil
}

// runLocked runs one cycle; the caller holds inFlight.
func (s *SyncScheduler) runLocked(ctx context.Context, trigger string) (*model.SyncRun, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	run := &model.SyncRun{Trigger: trigger, StartedAt: time.Now().UTC()}
	log.Printf("[SyncScheduler] Running %s sync for %s", trigger, s.svc.FormID())

	ids, err := s.svc.Sync(ctx, s.store, s.opts)
	run.FinishedAt = time.Now().UTC()
	run.Submissions = ids
	if run.Submissions == nil {
		run.Submissions = []string{}
	}
	if err != nil {
		run.Error = err.Error()
		log.Printf("[SyncScheduler] Sync failed after %d submissions: %v", len(ids), err)
	} else {
		log.Printf("[SyncScheduler] Sync finished: %d submissions in %v",
			len(ids), run.FinishedAt.Sub(run.StartedAt))
	}

	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()

	return run, err
}

// LastRun returns a copy of the most recent cycle, or nil before the first one.
func (s *SyncScheduler) LastRun() *model.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	run.Submissions = make([]string, len(s.lastRun.Submissions))
	copy(run.Submissions, s.lastRun.Submissions)
	return &run
}

// InProgress reports whether a cycle is running right now.
func (s *SyncScheduler) InProgress() bool {
	if s.inFlight.TryLock() {
		s.inFlight.Unlock()
		return false
	}
	return true
}
