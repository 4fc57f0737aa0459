package room

import (
	"encoding/json"
	"math"
	"time"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/grid"
	"tileworld.ai/internal/sim/idempotency"
)

const (
	ModeWalk   = "walk"
	ModeDirect = "direct"

	// Arrival radius in world units: a destination closer than this is done.
	arriveEpsilon = 1.0
)

// ApplyMove validates and installs a destination for the actor. Outcomes:
// accepted, rejected (out of bounds, blocked, unreachable, immediate
// collision) or no_op (already heading to, or standing on, that tile).
func (r *Room) ApplyMove(actorID string, req protocol.MoveRequest, now time.Time) (protocol.MoveResult, *ReqError) {
	e := r.entities[actorID]
	if e == nil {
		return protocol.MoveResult{}, reqErr(protocol.ErrNotInRoom, "actor %q not in room", actorID)
	}
	body, _ := json.Marshal(req)
	switch status, stored := r.idem.Check(actorID, req.RequestID, body, now); status {
	case idempotency.Replay:
		return stored.(protocol.MoveResult), nil
	case idempotency.Conflict:
		return protocol.MoveResult{}, reqErr(protocol.ErrConflict, "request id %q reused with a different payload", req.RequestID)
	}

	result := r.setDestination(e, req, now)
	r.idem.Save(actorID, req.RequestID, body, result, now)
	return result, nil
}

func (r *Room) setDestination(e *Entity, req protocol.MoveRequest, now time.Time) protocol.MoveResult {
	g := r.worldMap.Grid
	dest := grid.Tile{X: req.To[0], Y: req.To[1]}
	mode := req.Mode
	if mode == "" {
		mode = ModeWalk
	}
	if mode != ModeWalk && mode != ModeDirect {
		return protocol.MoveResult{Outcome: protocol.OutcomeRejected, Reason: "unknown movement mode"}
	}

	if !g.InBounds(dest.X, dest.Y) {
		return protocol.MoveResult{Outcome: protocol.OutcomeRejected, Reason: "destination out of bounds"}
	}
	if g.Blocked(dest.X, dest.Y) {
		return protocol.MoveResult{Outcome: protocol.OutcomeRejected, Reason: "destination blocked"}
	}
	if e.move != nil && e.move.finalTile == dest {
		return protocol.MoveResult{Outcome: protocol.OutcomeNoOp}
	}
	if e.move == nil && e.Tile == dest {
		return protocol.MoveResult{Outcome: protocol.OutcomeNoOp}
	}

	var waypoints []grid.Tile
	switch mode {
	case ModeWalk:
		path := g.FindPath(e.Tile, dest, r.cfg.PathNodeBudget)
		if path == nil {
			return protocol.MoveResult{Outcome: protocol.OutcomeRejected, Reason: "no path to destination"}
		}
		if len(path) == 0 {
			return protocol.MoveResult{Outcome: protocol.OutcomeNoOp}
		}
		waypoints = path
	case ModeDirect:
		waypoints = []grid.Tile{dest}
	}

	// Simulate one tick of travel toward the first waypoint; a move that
	// would immediately collide is rejected rather than accepted-then-
	// silently-abandoned. Uses the same speed the tick step will.
	dt := 1.0 / float64(r.cfg.TickRateHz)
	tx, ty := g.TileToWorld(waypoints[0])
	nx, ny := stepToward(e.X, e.Y, tx, ty, e.EffectiveSpeed(now)*dt)
	first := g.WorldToTile(nx, ny)
	if g.Blocked(first.X, first.Y) {
		return protocol.MoveResult{Outcome: protocol.OutcomeRejected, Reason: "first step blocked"}
	}

	e.move = &moveState{waypoints: waypoints, finalTile: dest, mode: mode}

	result := protocol.MoveResult{Outcome: protocol.OutcomeAccepted}
	if mode == ModeWalk {
		result.Path = make([][2]int, len(waypoints))
		for i, t := range waypoints {
			result.Path[i] = [2]int{t.X, t.Y}
		}
	}
	return result
}

// advanceMovement moves every travelling entity by one tick. Displacement
// is capped at effectiveSpeed*dt; a landing tile that became blocked since
// acceptance abandons the destination silently.
func (r *Room) advanceMovement(now time.Time, dt float64) {
	g := r.worldMap.Grid
	for _, id := range r.sortedEntityIDs() {
		e := r.entities[id]
		if e.move == nil {
			continue
		}
		target := e.move.waypoints[0]
		tx, ty := g.TileToWorld(target)

		speed := e.EffectiveSpeed(now)
		nx, ny := stepToward(e.X, e.Y, tx, ty, speed*dt)

		landing := g.WorldToTile(nx, ny)
		if g.Blocked(landing.X, landing.Y) {
			e.move = nil
			continue
		}

		dx, dy := nx-e.X, ny-e.Y
		if dx != 0 || dy != 0 {
			e.Facing = facingOf(dx, dy)
		}
		e.X, e.Y = nx, ny
		e.Tile = landing

		if grid.Dist(e.X, e.Y, tx, ty) < arriveEpsilon {
			e.move.waypoints = e.move.waypoints[1:]
			if len(e.move.waypoints) == 0 {
				e.move = nil
			}
		}
	}
}

func stepToward(x, y, tx, ty, maxStep float64) (float64, float64) {
	dx, dy := tx-x, ty-y
	dist := math.Hypot(dx, dy)
	if dist == 0 || maxStep <= 0 {
		return x, y
	}
	if maxStep >= dist {
		return tx, ty
	}
	scale := maxStep / dist
	return x + dx*scale, y + dy*scale
}

// facingOf picks the dominant movement axis.
func facingOf(dx, dy float64) string {
	if math.Abs(dx) >= math.Abs(dy) {
		if dx > 0 {
			return "right"
		}
		return "left"
	}
	if dy > 0 {
		return "down"
	}
	return "up"
}
