package room

import (
	"sort"
	"time"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/grid"
)

// step advances the room one tick. Order matters: movement first so zone
// and proximity transitions observe post-move positions, then cast and
// effect sweeps, then the tick counter.
func (r *Room) step(now time.Time, dt float64) {
	start := time.Now()

	r.advanceMovement(now, dt)
	for _, id := range r.sortedEntityIDs() {
		e := r.entities[id]
		r.zones.Update(id, e.X, e.Y, r.zoneEmit(now))
	}
	r.processPendingCasts(now)
	r.processEffectExpirations(now)
	r.updateProximity(now)

	r.metrics.TickObserved(time.Since(start).Seconds())
	r.metrics.PendingCasts(len(r.pending))
	r.tick.Add(1)
}

func (r *Room) sortedEntityIDs() []string {
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// pairKey identifies an unordered entity pair; A is always the smaller id.
type pairKey struct {
	A, B string
}

func makePair(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{A: a, B: b}
}

// updateProximity diffs pairwise distances against the tracked near set
// and emits proximity.enter / proximity.exit on transitions.
func (r *Room) updateProximity(now time.Time) {
	ids := r.sortedEntityIDs()
	current := make(map[pairKey]bool, len(r.nearPairs))
	for i := 0; i < len(ids); i++ {
		a := r.entities[ids[i]]
		for j := i + 1; j < len(ids); j++ {
			b := r.entities[ids[j]]
			if grid.Dist(a.X, a.Y, b.X, b.Y) <= r.cfg.ProximityRadius {
				current[makePair(a.ID, b.ID)] = true
			}
		}
	}

	for pair := range current {
		if !r.nearPairs[pair] {
			r.emit(protocol.EventProximityEnter, now, protocol.Payload{
				"entity_a": pair.A,
				"entity_b": pair.B,
			})
		}
	}
	for pair := range r.nearPairs {
		if !current[pair] {
			r.emit(protocol.EventProximityExit, now, protocol.Payload{
				"entity_a": pair.A,
				"entity_b": pair.B,
			})
		}
	}
	r.nearPairs = current
}

// dropProximityFor emits proximity.exit for every tracked pair involving
// the entity; used when an entity leaves between ticks.
func (r *Room) dropProximityFor(actorID string, now time.Time) {
	for pair := range r.nearPairs {
		if pair.A != actorID && pair.B != actorID {
			continue
		}
		r.emit(protocol.EventProximityExit, now, protocol.Payload{
			"entity_a": pair.A,
			"entity_b": pair.B,
		})
		delete(r.nearPairs, pair)
	}
}
