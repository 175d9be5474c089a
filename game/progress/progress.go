// Package progress is the generic saturating accumulator shared by quests
// and achievements. It performs no I/O.
package progress

import (
	"math"
	"time"

	"github.com/kasuganosora/textrpg/game/catalog"
)

// Event is one gameplay occurrence.
type Event struct {
	Kind     catalog.EventKind
	Target   string
	Quantity int
}

// Counter is the accumulated value of one requirement.
type Counter struct {
	Index     int
	Current   int
	Completed bool
}

// Add returns current+qty capped at threshold. Non-positive quantities are
// ignored and the sum never wraps.
func Add(current, qty, threshold int) int {
	if qty <= 0 {
		return min(current, threshold)
	}
	if current >= threshold {
		return threshold
	}
	if qty > math.MaxInt-current {
		return threshold
	}
	return min(current+qty, threshold)
}

// NewCounters returns zeroed counters for the requirements.
func NewCounters(reqs []catalog.Requirement) []Counter {
	out := make([]Counter, len(reqs))
	for i := range reqs {
		out[i] = Counter{Index: i}
	}
	return out
}

// Result describes the effect of one event on a goal.
type Result struct {
	Changed       bool
	Completed     bool
	JustCompleted bool
}

// Apply feeds ev into counters in place. Counters missing for a requirement
// are created. JustCompleted is set only when this call completed the last
// outstanding requirement.
func Apply(reqs []catalog.Requirement, counters []Counter, ev Event) ([]Counter, Result) {
	counters = align(reqs, counters)
	was := allDone(counters)
	var res Result
	if !was && ev.Quantity > 0 {
		for i, r := range reqs {
			c := &counters[i]
			if c.Completed || !r.Matches(ev.Kind, ev.Target) {
				continue
			}
			next := Add(c.Current, ev.Quantity, r.Threshold)
			if next != c.Current {
				c.Current = next
				res.Changed = true
			}
			if c.Current >= r.Threshold {
				c.Completed = true
				res.Changed = true
			}
		}
	}
	res.Completed = allDone(counters)
	res.JustCompleted = !was && res.Completed
	return counters, res
}

func align(reqs []catalog.Requirement, counters []Counter) []Counter {
	if len(counters) == len(reqs) {
		return counters
	}
	out := NewCounters(reqs)
	for _, c := range counters {
		if c.Index >= 0 && c.Index < len(out) {
			out[c.Index] = c
		}
	}
	return out
}

func allDone(counters []Counter) bool {
	if len(counters) == 0 {
		return false
	}
	for _, c := range counters {
		if !c.Completed {
			return false
		}
	}
	return true
}

// Goal is anything the tracker can advance.
type Goal interface {
	Requirements() []catalog.Requirement
	Counters() []Counter
	SetCounters([]Counter)
	IsCompleted() bool
	MarkCompleted(at time.Time)
}

// Tracker applies events to many goals at once.
type Tracker struct{}

// ApplyAll applies ev to every not-yet-completed goal and returns exactly
// the goals that completed because of it. Goals whose counters changed are
// updated in place; the caller decides what to persist.
func (Tracker) ApplyAll(goals []Goal, ev Event, now time.Time) (changed, completed []Goal) {
	for _, g := range goals {
		if g.IsCompleted() {
			continue
		}
		counters, res := Apply(g.Requirements(), g.Counters(), ev)
		if !res.Changed {
			continue
		}
		g.SetCounters(counters)
		changed = append(changed, g)
		if res.JustCompleted {
			g.MarkCompleted(now)
			completed = append(completed, g)
		}
	}
	return changed, completed
}
