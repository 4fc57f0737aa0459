package room

import (
	"sort"
	"time"

	"tileworld.ai/internal/sim/grid"
)

type Kind string

const (
	KindHuman  Kind = "human"
	KindAgent  Kind = "agent"
	KindNPC    Kind = "npc"
	KindObject Kind = "object"
)

// ActiveEffect is a timed stat modifier attached by the skill engine and
// removed by the per-tick sweep. At most one effect per (type, source) pair
// lives on a target; a newer application replaces the older one.
type ActiveEffect struct {
	ID              string
	Type            string
	Source          string
	Target          string
	StartedAt       time.Time
	ExpiresAt       time.Time
	SpeedMultiplier float64
}

type effectKey struct {
	Type   string
	Source string
}

type cooldownKey struct {
	Skill  string
	Action string
}

type moveState struct {
	// Remaining waypoints; the last one is the requested destination.
	waypoints []grid.Tile
	finalTile grid.Tile
	mode      string
}

// Entity state is owned by the room loop. Identity never changes after
// join; fields are mutated in place.
type Entity struct {
	ID   string
	Name string
	Kind Kind

	X, Y   float64
	Tile   grid.Tile
	Speed  float64 // world units per second, before effects
	Facing string

	Skills map[string]bool

	effects   map[effectKey]*ActiveEffect
	cooldowns map[cooldownKey]time.Time

	move *moveState
}

func (e *Entity) initDefaults(baseSpeed float64) {
	if e.Kind == "" {
		e.Kind = KindAgent
	}
	if e.Speed == 0 && e.Kind != KindObject {
		e.Speed = baseSpeed
	}
	if e.Facing == "" {
		e.Facing = "down"
	}
	if e.Skills == nil {
		e.Skills = map[string]bool{}
	}
	if e.effects == nil {
		e.effects = map[effectKey]*ActiveEffect{}
	}
	if e.cooldowns == nil {
		e.cooldowns = map[cooldownKey]time.Time{}
	}
}

func (e *Entity) Moving() bool { return e.move != nil }

// EffectiveSpeed applies the latest-started active effect whose speed
// multiplier differs from 1.0. Multipliers do not stack.
func (e *Entity) EffectiveSpeed(now time.Time) float64 {
	speed := e.Speed
	var picked *ActiveEffect
	for _, eff := range e.effects {
		if eff.SpeedMultiplier == 0 || eff.SpeedMultiplier == 1.0 {
			continue
		}
		if now.Before(eff.StartedAt) || !now.Before(eff.ExpiresAt) {
			continue
		}
		if picked == nil || eff.StartedAt.After(picked.StartedAt) {
			picked = eff
		}
	}
	if picked != nil {
		speed *= picked.SpeedMultiplier
	}
	return speed
}

// EffectList returns active effects ordered by start time then id, for
// stable observation output.
func (e *Entity) EffectList() []*ActiveEffect {
	out := make([]*ActiveEffect, 0, len(e.effects))
	for _, eff := range e.effects {
		out = append(out, eff)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Entity) cooldownRemaining(skill, action string, cooldownMs int64, now time.Time) time.Duration {
	last, ok := e.cooldowns[cooldownKey{Skill: skill, Action: action}]
	if !ok {
		return 0
	}
	remaining := time.Duration(cooldownMs)*time.Millisecond - now.Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Entity) stampCooldown(skill, action string, now time.Time) {
	e.cooldowns[cooldownKey{Skill: skill, Action: action}] = now
}
