package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the layout of a catalog YAML document.
type File struct {
	Quests       []QuestDef       `yaml:"quests"`
	Achievements []AchievementDef `yaml:"achievements"`
	Chains       []ChainDef       `yaml:"chains"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse validates a catalog document held in memory.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return New(f.Quests, f.Achievements, f.Chains)
}

// Definitions are active unless the file says otherwise.

func (q *QuestDef) UnmarshalYAML(n *yaml.Node) error {
	type plain QuestDef
	p := plain{Active: true}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*q = QuestDef(p)
	return nil
}

func (a *AchievementDef) UnmarshalYAML(n *yaml.Node) error {
	type plain AchievementDef
	p := plain{Active: true}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*a = AchievementDef(p)
	return nil
}

func (c *ChainDef) UnmarshalYAML(n *yaml.Node) error {
	type plain ChainDef
	p := plain{Active: true}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = ChainDef(p)
	return nil
}

func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	type plain Step
	p := plain{Required: true}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	return nil
}
