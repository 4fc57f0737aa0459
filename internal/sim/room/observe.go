package room

import (
	"sort"
	"time"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/grid"
)

const DefaultObserveRadius = 256.0

// BuildObserve snapshots the world around an actor. Nearby entities are
// ordered by distance then id; detail "full" adds per-entity affordances
// (actions the observer could invoke on them right now, ignoring cooldowns)
// and active effects.
func (r *Room) BuildObserve(actorID string, radius float64, detail string, now time.Time) (protocol.ObserveResult, *ReqError) {
	self := r.entities[actorID]
	if self == nil {
		return protocol.ObserveResult{}, reqErr(protocol.ErrNotInRoom, "actor %q not in room", actorID)
	}
	if radius <= 0 {
		radius = DefaultObserveRadius
	}
	full := detail == "full"

	result := protocol.ObserveResult{
		Self:       r.observedEntity(self, self, 0, full, now),
		Zone:       r.zones.ZoneOf(actorID),
		Map:        r.WorldParams(),
		ServerTick: r.tick.Load(),
	}

	nearby := make([]protocol.ObservedEntity, 0, len(r.entities)-1)
	for _, id := range r.sortedEntityIDs() {
		if id == actorID {
			continue
		}
		e := r.entities[id]
		d := grid.Dist(self.X, self.Y, e.X, e.Y)
		if d > radius {
			continue
		}
		nearby = append(nearby, r.observedEntity(e, self, d, full, now))
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].Distance != nearby[j].Distance {
			return nearby[i].Distance < nearby[j].Distance
		}
		return nearby[i].ID < nearby[j].ID
	})
	result.Nearby = nearby
	return result, nil
}

func (r *Room) observedEntity(e, viewer *Entity, dist float64, full bool, now time.Time) protocol.ObservedEntity {
	out := protocol.ObservedEntity{
		ID:       e.ID,
		Name:     e.Name,
		Kind:     string(e.Kind),
		Pos:      [2]float64{e.X, e.Y},
		Tile:     [2]int{e.Tile.X, e.Tile.Y},
		Zone:     r.zones.ZoneOf(e.ID),
		Facing:   e.Facing,
		Moving:   e.Moving(),
		Distance: dist,
	}
	if !full {
		return out
	}
	out.Actions = r.affordances(viewer, e, dist)
	for _, eff := range e.EffectList() {
		remaining := eff.ExpiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		out.Effects = append(out.Effects, protocol.ObservedEffect{
			Type:      eff.Type,
			Source:    eff.Source,
			Remaining: remaining.Milliseconds(),
			Speed:     eff.SpeedMultiplier,
		})
	}
	return out
}

// affordances lists "skill.action" strings the viewer could invoke on the
// entity given installed skills, target kind and range.
func (r *Room) affordances(viewer, target *Entity, dist float64) []string {
	var out []string
	skillIDs := make([]string, 0, len(viewer.Skills))
	for id := range viewer.Skills {
		skillIDs = append(skillIDs, id)
	}
	sort.Strings(skillIDs)
	for _, sid := range skillIDs {
		def, ok := r.catalog.Skill(sid)
		if !ok {
			continue
		}
		for _, action := range def.Actions {
			if !action.AllowsTarget(string(target.Kind)) {
				continue
			}
			if dist > action.Range {
				continue
			}
			out = append(out, sid+"."+action.ID)
		}
	}
	return out
}
