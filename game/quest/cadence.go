package quest

import (
	"fmt"
	"time"

	"github.com/kasuganosora/textrpg/game/catalog"
	"github.com/robfig/cron/v3"
)

// Schedule computes when daily and weekly quests reset.
type Schedule struct {
	daily  cron.Schedule
	weekly cron.Schedule
	loc    *time.Location
}

// NewSchedule parses five-field cron expressions evaluated in the named
// time zone.
func NewSchedule(dailyExpr, weeklyExpr, tz string) (*Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	daily, err := parser.Parse(dailyExpr)
	if err != nil {
		return nil, fmt.Errorf("daily reset %q: %w", dailyExpr, err)
	}
	weekly, err := parser.Parse(weeklyExpr)
	if err != nil {
		return nil, fmt.Errorf("weekly reset %q: %w", weeklyExpr, err)
	}
	loc := time.UTC
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("reset timezone %q: %w", tz, err)
		}
	}
	return &Schedule{daily: daily, weekly: weekly, loc: loc}, nil
}

// DefaultSchedule resets dailies at midnight UTC and weeklies on Monday.
func DefaultSchedule() *Schedule {
	s, _ := NewSchedule("0 0 * * *", "0 0 * * 1", "UTC")
	return s
}

// Location is the zone resets are evaluated in.
func (s *Schedule) Location() *time.Location { return s.loc }

// NextReset returns the first reset of the quest type after t, or the zero
// time for types without a cadence.
func (s *Schedule) NextReset(t catalog.QuestType, after time.Time) time.Time {
	switch t {
	case catalog.QuestDaily:
		return s.daily.Next(after.In(s.loc))
	case catalog.QuestWeekly:
		return s.weekly.Next(after.In(s.loc))
	}
	return time.Time{}
}

// ExpiresAt returns when a quest accepted at start stops accepting progress,
// or nil if it never does. Cadence quests end at the earlier of the next
// reset and their own time limit.
func (s *Schedule) ExpiresAt(def *catalog.QuestDef, start time.Time) *time.Time {
	var end time.Time
	if def.TimeLimitHours > 0 {
		end = start.Add(def.TimeLimit())
	}
	switch def.Type {
	case catalog.QuestDaily, catalog.QuestWeekly:
		next := s.NextReset(def.Type, start)
		if end.IsZero() || next.Before(end) {
			end = next
		}
	case catalog.QuestStory:
		return nil
	}
	if end.IsZero() {
		return nil
	}
	end = end.UTC()
	return &end
}
