// Package audit records player commands that change reward or storyline
// state: claims, chain starts and branch choices.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/textrpg/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded by the API.
const (
	ActionQuestClaim       = "quest.claim"
	ActionQuestRefresh     = "quest.refresh"
	ActionAchievementClaim = "achievement.claim"
	ActionChainStart       = "chain.start"
	ActionChainChoose      = "chain.choose"
	ActionChainClaim       = "chain.claim"
	ActionSessionIssue     = "admin.session"
	ActionQuestAssign      = "admin.quest_assign"
)

// AuditEntry holds one audit event to be logged.
type AuditEntry struct {
	TraceID  string
	PlayerID int64
	Action   string
	Target   string
	Request  interface{}
	Response interface{}
	Err      error
	Duration time.Duration
}

// Options tunes batching. Zero values take the defaults.
type Options struct {
	Buffer        int           // queued entries before Log drops, default 1024
	BatchSize     int           // entries per insert, default 100
	FlushInterval time.Duration // default 2s
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db      *gorm.DB
	ch      chan *model.AuditLog
	stopCh  chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	opts    Options
	dropped atomic.Int64
	logger  *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, opts.Buffer),
		stopCh: make(chan struct{}),
		opts:   opts,
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write. It never blocks; entries
// are dropped when the queue is full.
func (svc *Service) Log(entry AuditEntry) {
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		PlayerID:   entry.PlayerID,
		Action:     entry.Action,
		Target:     entry.Target,
		Request:    marshal(entry.Request),
		Response:   marshal(entry.Response),
		DurationMs: int(entry.Duration.Milliseconds()),
	}
	if entry.Err != nil {
		record.Error = entry.Err.Error()
	}
	select {
	case svc.ch <- record:
	default:
		svc.dropped.Add(1)
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action), zap.Int64("player_id", entry.PlayerID))
	}
}

func marshal(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Dropped returns how many entries were discarded because the queue was full.
func (svc *Service) Dropped() int64 {
	return svc.dropped.Load()
}

// Recent returns the newest entries, optionally for one player.
func (svc *Service) Recent(ctx context.Context, playerID int64, limit int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := svc.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if playerID != 0 {
		q = q.Where("player_id = ?", playerID)
	}
	var out []model.AuditLog
	return out, q.Find(&out).Error
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stop.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, svc.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= svc.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
