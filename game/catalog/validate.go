package catalog

import (
	"errors"
	"fmt"
	"strings"
)

func validate(quests []QuestDef, achievements []AchievementDef, chains []ChainDef) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	questIDs := make(map[string]bool, len(quests))
	questDefs := make(map[string]*QuestDef, len(quests))
	for i, q := range quests {
		if q.ID == "" {
			fail("quest with empty id")
			continue
		}
		if questIDs[q.ID] {
			fail("quest %s: duplicate id", q.ID)
		}
		questIDs[q.ID] = true
		questDefs[q.ID] = &quests[i]
		switch q.Type {
		case QuestDaily, QuestWeekly, QuestStory, QuestEvent:
		default:
			fail("quest %s: unknown type %q", q.ID, q.Type)
		}
		if q.TimeLimitHours < 0 {
			fail("quest %s: negative time limit", q.ID)
		}
		if len(q.Requirements) == 0 {
			fail("quest %s: no requirements", q.ID)
		}
		for i, r := range q.Requirements {
			if err := validateRequirement(r); err != nil {
				fail("quest %s: requirement %d: %w", q.ID, i, err)
			}
		}
		if len(q.Rewards) == 0 {
			fail("quest %s: no rewards", q.ID)
		}
		for i, r := range q.Rewards {
			if err := validateReward(r); err != nil {
				fail("quest %s: reward %d: %w", q.ID, i, err)
			}
		}
	}

	achIDs := make(map[string]bool, len(achievements))
	for _, a := range achievements {
		if a.ID == "" {
			fail("achievement with empty id")
			continue
		}
		if achIDs[a.ID] {
			fail("achievement %s: duplicate id", a.ID)
		}
		achIDs[a.ID] = true
		req := a.Requirement
		if a.Tiered() {
			// tier thresholds drive completion
			req.Threshold = 1
		}
		if err := validateRequirement(req); err != nil {
			fail("achievement %s: %w", a.ID, err)
		}
		if !a.Tiered() {
			if err := validateReward(a.Reward); err != nil {
				fail("achievement %s: reward: %w", a.ID, err)
			}
		}
		prev := 0
		for i, t := range a.Tiers {
			if t.Index != i+1 {
				fail("achievement %s: tier %d has index %d", a.ID, i+1, t.Index)
			}
			if t.Threshold <= prev {
				fail("achievement %s: tier %d threshold %d not above %d", a.ID, t.Index, t.Threshold, prev)
			}
			prev = t.Threshold
			if err := validateReward(t.Reward); err != nil {
				fail("achievement %s: tier %d reward: %w", a.ID, t.Index, err)
			}
		}
	}

	chainIDs := make(map[string]bool, len(chains))
	for _, c := range chains {
		if c.ID != "" {
			if chainIDs[c.ID] {
				fail("chain %s: duplicate id", c.ID)
			}
			chainIDs[c.ID] = true
		}
	}
	for _, c := range chains {
		if c.ID == "" {
			fail("chain with empty id")
			continue
		}
		steps := make(map[int]bool, len(c.Steps))
		for _, s := range c.Steps {
			if s.Number < 1 {
				fail("chain %s: step number %d below 1", c.ID, s.Number)
			}
			if steps[s.Number] {
				fail("chain %s: duplicate step %d", c.ID, s.Number)
			}
			steps[s.Number] = true
			q, ok := questDefs[s.QuestID]
			switch {
			case !ok:
				fail("chain %s: step %d references unknown quest %q", c.ID, s.Number, s.QuestID)
			case q.Type != QuestStory:
				fail("chain %s: step %d quest %s is %s, steps must be story quests", c.ID, s.Number, q.ID, q.Type)
			case q.TimeLimitHours > 0:
				fail("chain %s: step %d quest %s has a time limit", c.ID, s.Number, q.ID)
			}
		}
		if !steps[1] {
			fail("chain %s: missing step 1", c.ID)
		}
		after := make(map[int]bool, len(c.Branches))
		for _, b := range c.Branches {
			if !steps[b.AfterStep] {
				fail("chain %s: branch after unknown step %d", c.ID, b.AfterStep)
			}
			if after[b.AfterStep] {
				fail("chain %s: two branches after step %d", c.ID, b.AfterStep)
			}
			after[b.AfterStep] = true
			if len(b.Choices) == 0 {
				fail("chain %s: branch after step %d has no choices", c.ID, b.AfterStep)
			}
			labels := make(map[string]bool, len(b.Choices))
			for _, ch := range b.Choices {
				key := strings.ToLower(ch.Label)
				if key == "" {
					fail("chain %s: branch after step %d has an empty label", c.ID, b.AfterStep)
				}
				if labels[key] {
					fail("chain %s: branch after step %d repeats label %q", c.ID, b.AfterStep, ch.Label)
				}
				labels[key] = true
				if !steps[ch.NextStep] {
					fail("chain %s: choice %q targets unknown step %d", c.ID, ch.Label, ch.NextStep)
				}
			}
		}
		for _, ref := range c.Prerequisites.Chains {
			if !chainIDs[ref] {
				fail("chain %s: prerequisite chain %q unknown", c.ID, ref)
			}
			if ref == c.ID {
				fail("chain %s: requires itself", c.ID)
			}
		}
		for _, ref := range c.Prerequisites.Quests {
			if !questIDs[ref] {
				fail("chain %s: prerequisite quest %q unknown", c.ID, ref)
			}
		}
		for _, s := range c.Prerequisites.Skills {
			if s.Skill == "" || s.Level < 1 {
				fail("chain %s: invalid skill prerequisite %+v", c.ID, s)
			}
		}
		for i, r := range c.Rewards.Rewards {
			if err := validateReward(r); err != nil {
				fail("chain %s: reward %d: %w", c.ID, i, err)
			}
		}
		for _, u := range c.Rewards.Unlocks {
			switch u.Kind {
			case UnlockZone, UnlockQuest, UnlockFeature, UnlockTitle:
			default:
				fail("chain %s: unknown unlock kind %q", c.ID, u.Kind)
			}
			if u.Value == "" {
				fail("chain %s: %s unlock without value", c.ID, u.Kind)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return nil
}

func validateRequirement(r Requirement) error {
	if !r.Kind.valid() {
		return fmt.Errorf("unknown event kind %q", r.Kind)
	}
	if r.Threshold < 1 {
		return fmt.Errorf("threshold %d below 1", r.Threshold)
	}
	return nil
}

func validateReward(r Reward) error {
	switch r.Kind {
	case RewardGold, RewardExperience:
		if r.Amount < 1 {
			return fmt.Errorf("%s reward amount %d below 1", r.Kind, r.Amount)
		}
	case RewardItem:
		if r.ItemID == "" {
			return errors.New("item reward without item_id")
		}
	case RewardTitle:
		if r.ItemID == "" {
			return errors.New("title reward without item_id")
		}
	default:
		return fmt.Errorf("unknown reward kind %q", r.Kind)
	}
	return nil
}
