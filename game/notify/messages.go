package notify

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/textrpg/game/catalog"
)

// Notification kinds.
const (
	KindQuestCompleted      = "quest_completed"
	KindQuestClaimed        = "quest_claimed"
	KindAchievementUnlocked = "achievement_unlocked"
	KindChainStarted        = "chain_started"
	KindChainStep           = "chain_step"
	KindChainChoice         = "chain_choice"
	KindChainCompleted      = "chain_completed"
)

func QuestCompleted(playerID int64, q *catalog.QuestDef) Notification {
	return Notification{
		PlayerID: playerID,
		Category: CategoryQuest,
		Kind:     KindQuestCompleted,
		Title:    "Quest complete: " + q.Title,
		Body:     "Your reward is ready to claim.",
		Data:     map[string]any{"quest_id": q.ID},
	}
}

func AchievementUnlocked(playerID int64, a *catalog.AchievementDef, tier int) Notification {
	title := "Achievement unlocked: " + a.Name
	if tier > 0 {
		title = fmt.Sprintf("%s (tier %d)", title, tier)
	}
	return Notification{
		PlayerID: playerID,
		Category: CategoryAchievement,
		Kind:     KindAchievementUnlocked,
		Title:    title,
		Body:     a.Description,
		Data:     map[string]any{"achievement_id": a.ID, "tier": tier},
	}
}

func ChainStarted(playerID int64, c *catalog.ChainDef) Notification {
	return Notification{
		PlayerID: playerID,
		Category: CategoryChain,
		Kind:     KindChainStarted,
		Title:    "Storyline started: " + c.Title,
		Body:     c.Description,
		Data:     map[string]any{"chain_id": c.ID},
	}
}

func ChainStep(playerID int64, c *catalog.ChainDef, step int, questID string) Notification {
	return Notification{
		PlayerID: playerID,
		Category: CategoryChain,
		Kind:     KindChainStep,
		Title:    fmt.Sprintf("%s: step %d", c.Title, step),
		Body:     "A new quest has been added to your journal.",
		Data:     map[string]any{"chain_id": c.ID, "step": step, "quest_id": questID},
	}
}

func ChainChoice(playerID int64, c *catalog.ChainDef, labels []string) Notification {
	return Notification{
		PlayerID: playerID,
		Category: CategoryChain,
		Kind:     KindChainChoice,
		Title:    c.Title + ": a choice awaits",
		Body:     "Choose: " + strings.Join(labels, ", "),
		Data:     map[string]any{"chain_id": c.ID, "choices": labels},
	}
}

func ChainCompleted(playerID int64, c *catalog.ChainDef) Notification {
	return Notification{
		PlayerID: playerID,
		Category: CategoryChain,
		Kind:     KindChainCompleted,
		Title:    "Storyline complete: " + c.Title,
		Body:     "Your reward is ready to claim.",
		Data:     map[string]any{"chain_id": c.ID},
	}
}
