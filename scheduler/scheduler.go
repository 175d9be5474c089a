// Package scheduler runs the engine's maintenance jobs: notification pruning
// and leaderboard rebuilds. Gameplay state never depends on it.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks. ctx is cancelled
// when the scheduler stops.
type TaskFn func(ctx context.Context)

// Scheduler manages interval and cron tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	cron    *cron.Cron
	crons   map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	stop    sync.Once
	wg      sync.WaitGroup
	logger  *zap.Logger
}

type tickerEntry struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates a new Scheduler. Cron specs are evaluated in loc (UTC if nil)
// and accept five fields or descriptors such as "@hourly".
func New(logger *zap.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
	)
	c.Start()
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		cron:    c,
		crons:   make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

func (s *Scheduler) run(name string, fn TaskFn) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
			return
		}
		s.logger.Debug("scheduler task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	}()
	fn(s.ctx)
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)

	entry := &tickerEntry{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	s.tickers[name] = entry

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer entry.ticker.Stop()
		for {
			select {
			case <-entry.ticker.C:
				s.run(name, fn)
			case <-entry.stopCh:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddCron registers a task on a cron schedule, replacing a task with the
// same name.
func (s *Scheduler) AddCron(name, spec string, fn TaskFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return err
	}
	s.removeLocked(name)
	s.crons[name] = id
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.String("cron", spec))
	return nil
}

// Remove stops and removes a task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

func (s *Scheduler) removeLocked(name string) {
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if id, ok := s.crons[name]; ok {
		s.cron.Remove(id)
		delete(s.crons, name)
	}
}

// Stop stops all tasks and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.stop.Do(func() {
		s.cancel()
		<-s.cron.Stop().Done()
		s.wg.Wait()
	})
}

// ListTasks returns the names of all registered tasks, sorted.
func (s *Scheduler) ListTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers)+len(s.crons))
	for name := range s.tickers {
		names = append(names, name)
	}
	for name := range s.crons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
