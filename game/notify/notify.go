// Package notify persists player notifications and fans them out over
// pub/sub. Delivery is fire-and-forget: failures are logged, never returned
// to the command that caused them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasuganosora/textrpg/cache"
	"github.com/kasuganosora/textrpg/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Category groups notifications for clients.
type Category string

const (
	CategoryQuest       Category = "quest"
	CategoryAchievement Category = "achievement"
	CategoryChain       Category = "chain"
	CategorySystem      Category = "system"
)

// Notification is an outbound message to one player.
type Notification struct {
	PlayerID int64          `json:"player_id"`
	Category Category       `json:"category"`
	Kind     string         `json:"kind"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Channel is the pub/sub channel carrying a player's notifications.
func Channel(playerID int64) string {
	return fmt.Sprintf("notify:%d", playerID)
}

// Envelope is the payload published on a player's channel.
type Envelope struct {
	ID        int64 `json:"id"`
	CreatedAt int64 `json:"created_at"`
	Notification
}

// Service stores notifications and publishes them.
type Service struct {
	db     *gorm.DB
	ps     cache.PubSub
	logger *zap.Logger
}

// NewService creates a notification Service.
func NewService(db *gorm.DB, ps cache.PubSub, logger *zap.Logger) *Service {
	return &Service{db: db, ps: ps, logger: logger}
}

// Notify persists n and publishes it to the player's channel.
func (s *Service) Notify(ctx context.Context, n Notification) {
	row := &model.Notification{
		PlayerID: n.PlayerID,
		Category: string(n.Category),
		Kind:     n.Kind,
		Title:    n.Title,
		Body:     n.Body,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.logger.Warn("persist notification failed",
			zap.Int64("player_id", n.PlayerID), zap.String("kind", n.Kind), zap.Error(err))
	}
	if s.ps == nil {
		return
	}
	payload, err := json.Marshal(Envelope{ID: row.ID, CreatedAt: row.CreatedAt.UnixMilli(), Notification: n})
	if err != nil {
		s.logger.Warn("encode notification failed", zap.Error(err))
		return
	}
	if err := s.ps.Publish(ctx, Channel(n.PlayerID), string(payload)); err != nil {
		s.logger.Warn("publish notification failed",
			zap.Int64("player_id", n.PlayerID), zap.String("kind", n.Kind), zap.Error(err))
	}
}

// List returns the player's newest notifications first.
func (s *Service) List(ctx context.Context, playerID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("player_id = ?", playerID)
	if unreadOnly {
		q = q.Where("`read` = ?", false)
	}
	var out []model.Notification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// MarkRead marks the given notifications read, or all of them when ids is
// empty. It returns how many rows changed.
func (s *Service) MarkRead(ctx context.Context, playerID int64, ids []int64) (int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("player_id = ? AND `read` = ?", playerID, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read", true)
	return res.RowsAffected, res.Error
}

// Prune deletes notifications created before cutoff.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}
