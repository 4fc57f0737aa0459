// Package skills holds the static skill/action catalog: cooldowns, ranges,
// cast times and effects. Loaded once per server from a yaml pack; immutable
// afterwards.
package skills

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type EffectDef struct {
	Type            string  `yaml:"type"` // e.g. speed, mark
	SpeedMultiplier float64 `yaml:"speed_multiplier"`
	DurationMs      int64   `yaml:"duration_ms"`
}

type ActionDef struct {
	ID          string    `yaml:"id"`
	CooldownMs  int64     `yaml:"cooldown_ms"`
	Range       float64   `yaml:"range"` // world units; inclusive boundary
	CastTimeMs  int64     `yaml:"cast_time_ms"`
	TargetKinds []string  `yaml:"target_kinds"` // empty: any
	Effect      EffectDef `yaml:"effect"`
}

func (a ActionDef) AllowsTarget(kind string) bool {
	if len(a.TargetKinds) == 0 {
		return true
	}
	for _, k := range a.TargetKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type SkillDef struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	Actions []ActionDef `yaml:"actions"`
}

func (s SkillDef) Action(id string) (ActionDef, bool) {
	for _, a := range s.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return ActionDef{}, false
}

type Catalog struct {
	Skills []SkillDef `yaml:"skills"`
	byID   map[string]SkillDef
}

func (c *Catalog) Skill(id string) (SkillDef, bool) {
	s, ok := c.byID[id]
	return s, ok
}

func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("skills.yaml: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, fmt.Errorf("skills.yaml: %w", err)
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	c.byID = map[string]SkillDef{}
	for _, s := range c.Skills {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return fmt.Errorf("skill with empty id")
		}
		if _, dup := c.byID[id]; dup {
			return fmt.Errorf("duplicate skill id %q", id)
		}
		if len(s.Actions) == 0 {
			return fmt.Errorf("skill %q has no actions", id)
		}
		seen := map[string]bool{}
		for _, a := range s.Actions {
			if strings.TrimSpace(a.ID) == "" {
				return fmt.Errorf("skill %q: action with empty id", id)
			}
			if seen[a.ID] {
				return fmt.Errorf("skill %q: duplicate action id %q", id, a.ID)
			}
			seen[a.ID] = true
			if a.CooldownMs < 0 || a.CastTimeMs < 0 || a.Range < 0 {
				return fmt.Errorf("skill %q action %q: negative cooldown/cast/range", id, a.ID)
			}
		}
		c.byID[id] = s
	}
	return nil
}

// Defaults is the built-in catalog used when no pack is supplied (tests,
// probe bots, fresh installs).
func Defaults() *Catalog {
	c := &Catalog{
		Skills: []SkillDef{
			{
				ID:   "sprint",
				Name: "Sprint",
				Actions: []ActionDef{
					{
						ID:         "boost",
						CooldownMs: 5000,
						Range:      0,
						CastTimeMs: 0,
						Effect:     EffectDef{Type: "speed", SpeedMultiplier: 1.5, DurationMs: 4000},
					},
				},
			},
			{
				ID:   "hex",
				Name: "Hex",
				Actions: []ActionDef{
					{
						ID:          "slow",
						CooldownMs:  8000,
						Range:       100,
						CastTimeMs:  1000,
						TargetKinds: []string{"human", "agent", "npc"},
						Effect:      EffectDef{Type: "speed", SpeedMultiplier: 0.5, DurationMs: 3000},
					},
				},
			},
			{
				ID:   "inspect",
				Name: "Inspect",
				Actions: []ActionDef{
					{
						ID:         "examine",
						CooldownMs: 1000,
						Range:      64,
						CastTimeMs: 0,
						Effect:     EffectDef{Type: "mark", DurationMs: 1000},
					},
				},
			},
		},
	}
	if err := c.normalize(); err != nil {
		panic(err)
	}
	return c
}
