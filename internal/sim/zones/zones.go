// Package zones tracks rectangular zone residency and population counts.
// Bounds are loaded once per map and never change; residency is owned by
// the room loop.
package zones

import "tileworld.ai/internal/protocol"

// Bounds is an axis-aligned rectangle in world units. Max edges are
// exclusive so adjacent zones do not overlap along shared borders.
type Bounds struct {
	ID   string
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x < b.MaxX && y >= b.MinY && y < b.MaxY
}

// Emit receives zone transition events; the room wires it to the event log.
type Emit func(eventType string, payload protocol.Payload)

type Tracker struct {
	// Ordered: the first zone containing a point wins.
	zones      []Bounds
	residency  map[string]string
	population map[string]int
}

func NewTracker(ordered []Bounds) *Tracker {
	t := &Tracker{
		zones:      ordered,
		residency:  map[string]string{},
		population: map[string]int{},
	}
	for _, z := range ordered {
		t.population[z.ID] = 0
	}
	return t
}

// At returns the first configured zone containing the point, or "".
func (t *Tracker) At(x, y float64) string {
	for _, z := range t.zones {
		if z.Contains(x, y) {
			return z.ID
		}
	}
	return ""
}

func (t *Tracker) ZoneOf(entityID string) string { return t.residency[entityID] }

func (t *Tracker) Population(zoneID string) int { return t.population[zoneID] }

// Update recomputes the entity's zone from its position. On a transition the
// old population is decremented (floored at 0), the new one incremented,
// residency swapped and exit-then-enter emitted. Returns true on transition.
func (t *Tracker) Update(entityID string, x, y float64, emit Emit) bool {
	next := t.At(x, y)
	prev := t.residency[entityID]
	if next == prev {
		return false
	}

	if prev != "" {
		if t.population[prev] > 0 {
			t.population[prev]--
		}
	}
	if next != "" {
		t.population[next]++
		t.residency[entityID] = next
	} else {
		delete(t.residency, entityID)
	}

	if emit != nil {
		if prev != "" {
			emit(protocol.EventZoneExit, protocol.Payload{"entity_id": entityID, "zone": prev, "to": next})
		}
		if next != "" {
			emit(protocol.EventZoneEnter, protocol.Payload{"entity_id": entityID, "zone": next, "from": prev})
		}
	}
	return true
}

// Remove clears residency on disconnect: a final zone.exit with no
// destination, no population increment anywhere.
func (t *Tracker) Remove(entityID string, emit Emit) {
	prev := t.residency[entityID]
	if prev == "" {
		return
	}
	if t.population[prev] > 0 {
		t.population[prev]--
	}
	delete(t.residency, entityID)
	if emit != nil {
		emit(protocol.EventZoneExit, protocol.Payload{"entity_id": entityID, "zone": prev, "to": ""})
	}
}

// Zones returns the configured bounds in evaluation order.
func (t *Tracker) Zones() []Bounds { return t.zones }
