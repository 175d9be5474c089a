// Package hook lets plugins observe progression milestones. Hooks run after
// the command that raised them has committed.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type HookFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type hookEntry struct {
	priority int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu    sync.RWMutex
	hooks map[string][]*hookEntry
}

// NewHookCenter creates a new HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// Register adds a HookFn for the given event with the given priority (lower runs first).
// name is used for Unregister.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := hc.hooks[event]
	entries = append(entries, &hookEntry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (hc *HookCenter) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
	}
}

func without(entries []*hookEntry, name string) []*hookEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification. ErrInterrupt
// stops the chain; other handler errors and panics are collected and
// returned once every handler has run.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		out, err := call(ctx, e, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", e.name, err))
			continue
		}
		data = out
	}
	return data, errors.Join(errs...)
}

func call(ctx context.Context, e *hookEntry, event string, data interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = data, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.fn(ctx, event, data)
}

// ---- Hook events ----

const (
	// OnQuestComplete carries a QuestEvent once a quest's last requirement is met.
	OnQuestComplete = "on_quest_complete"
	// OnQuestClaimed carries a QuestEvent once a quest reward has been granted.
	OnQuestClaimed = "on_quest_claimed"
	// OnAchievementUnlock carries an AchievementEvent per tier reached.
	OnAchievementUnlock = "on_achievement_unlock"
	// OnAchievementClaimed carries an AchievementEvent after a claim.
	OnAchievementClaimed = "on_achievement_claimed"
	// OnChainAdvance carries a ChainEvent when a chain moves to a new step.
	OnChainAdvance = "on_chain_advance"
	// OnChainComplete carries a ChainEvent when a chain's last step is done.
	OnChainComplete = "on_chain_complete"
	// OnPlayerLevelUp carries a LevelUpEvent.
	OnPlayerLevelUp = "on_player_level_up"
)

// QuestEvent describes a quest milestone.
type QuestEvent struct {
	PlayerID int64
	QuestID  string
}

// AchievementEvent describes an achievement milestone.
type AchievementEvent struct {
	PlayerID      int64
	AchievementID string
	Tier          int
}

// ChainEvent describes a chain milestone.
type ChainEvent struct {
	PlayerID int64
	ChainID  string
	Step     int
	QuestID  string
}

// LevelUpEvent describes a level gained from rewards.
type LevelUpEvent struct {
	PlayerID int64
	From     int
	To       int
}
