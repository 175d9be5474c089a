package catalog

import "sort"

// Store is read-only access to the goal definitions.
type Store interface {
	Quest(id string) (*QuestDef, bool)
	Quests() []*QuestDef
	Achievement(id string) (*AchievementDef, bool)
	Achievements() []*AchievementDef
	Chain(id string) (*ChainDef, bool)
	Chains() []*ChainDef
	// ChainsWithQuest returns the chains that use the quest in any step.
	ChainsWithQuest(questID string) []*ChainDef
}

// Catalog is the in-memory Store. It is immutable after New returns and safe
// for concurrent use.
type Catalog struct {
	quests       map[string]*QuestDef
	questList    []*QuestDef
	achievements map[string]*AchievementDef
	achList      []*AchievementDef
	chains       map[string]*ChainDef
	chainList    []*ChainDef
	byQuest      map[string][]*ChainDef
}

// New validates the definitions and indexes them.
func New(quests []QuestDef, achievements []AchievementDef, chains []ChainDef) (*Catalog, error) {
	if err := validate(quests, achievements, chains); err != nil {
		return nil, err
	}
	c := &Catalog{
		quests:       make(map[string]*QuestDef, len(quests)),
		achievements: make(map[string]*AchievementDef, len(achievements)),
		chains:       make(map[string]*ChainDef, len(chains)),
		byQuest:      make(map[string][]*ChainDef),
	}
	for i := range quests {
		q := quests[i]
		c.quests[q.ID] = &q
		c.questList = append(c.questList, &q)
	}
	for i := range achievements {
		a := achievements[i]
		c.achievements[a.ID] = &a
		c.achList = append(c.achList, &a)
	}
	for i := range chains {
		ch := chains[i]
		ch.Steps = append([]Step(nil), ch.Steps...)
		sort.Slice(ch.Steps, func(a, b int) bool { return ch.Steps[a].Number < ch.Steps[b].Number })
		c.chains[ch.ID] = &ch
		c.chainList = append(c.chainList, &ch)
		seen := make(map[string]bool)
		for _, s := range ch.Steps {
			if !seen[s.QuestID] {
				seen[s.QuestID] = true
				c.byQuest[s.QuestID] = append(c.byQuest[s.QuestID], &ch)
			}
		}
	}
	sort.Slice(c.questList, func(a, b int) bool { return c.questList[a].ID < c.questList[b].ID })
	sort.Slice(c.achList, func(a, b int) bool { return c.achList[a].ID < c.achList[b].ID })
	sort.Slice(c.chainList, func(a, b int) bool { return c.chainList[a].ID < c.chainList[b].ID })
	return c, nil
}

func (c *Catalog) Quest(id string) (*QuestDef, bool) {
	q, ok := c.quests[id]
	return q, ok
}

// Quests returns every quest ordered by id. Callers must not modify the
// returned definitions.
func (c *Catalog) Quests() []*QuestDef {
	return c.questList
}

func (c *Catalog) Achievement(id string) (*AchievementDef, bool) {
	a, ok := c.achievements[id]
	return a, ok
}

func (c *Catalog) Achievements() []*AchievementDef {
	return c.achList
}

func (c *Catalog) Chain(id string) (*ChainDef, bool) {
	ch, ok := c.chains[id]
	return ch, ok
}

func (c *Catalog) Chains() []*ChainDef {
	return c.chainList
}

func (c *Catalog) ChainsWithQuest(questID string) []*ChainDef {
	return c.byQuest[questID]
}
