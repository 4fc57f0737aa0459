package room

import (
	"encoding/json"
	"fmt"
	"time"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/grid"
	"tileworld.ai/internal/sim/idempotency"
	"tileworld.ai/internal/sim/skills"
)

// PendingCast is an accepted cast-time action waiting for its completion
// tick. Casts resolve in invocation order within a tick sweep.
type PendingCast struct {
	CastID    string
	Caster    string
	Skill     string
	Action    string
	Target    string
	Params    map[string]string
	RequestID string

	// Caster position at acceptance; displacement past CastMoveEpsilon
	// cancels the cast at completion.
	StartX, StartY float64

	CompleteAt time.Time
}

// ApplyInteract validates and either resolves an instant action or queues a
// pending cast. Validation order is fixed so a request failing several
// checks always reports the same outcome: definition, installation,
// cooldown, target existence, target kind, range, concurrent cast.
func (r *Room) ApplyInteract(actorID string, req protocol.InteractRequest, now time.Time) (protocol.InteractResult, *ReqError) {
	caster := r.entities[actorID]
	if caster == nil {
		return protocol.InteractResult{}, reqErr(protocol.ErrNotInRoom, "actor %q not in room", actorID)
	}
	body, _ := json.Marshal(req)
	switch status, stored := r.idem.Check(actorID, req.RequestID, body, now); status {
	case idempotency.Replay:
		return stored.(protocol.InteractResult), nil
	case idempotency.Conflict:
		return protocol.InteractResult{}, reqErr(protocol.ErrConflict, "request id %q reused with a different payload", req.RequestID)
	}

	result := r.resolveInteract(caster, req, now)
	r.idem.Save(actorID, req.RequestID, body, result, now)
	return result, nil
}

func (r *Room) resolveInteract(caster *Entity, req protocol.InteractRequest, now time.Time) protocol.InteractResult {
	skillDef, ok := r.catalog.Skill(req.Skill)
	if !ok {
		return protocol.InteractResult{Outcome: protocol.OutcomeInvalidAction, Reason: fmt.Sprintf("unknown skill %q", req.Skill)}
	}
	action, ok := skillDef.Action(req.Action)
	if !ok {
		return protocol.InteractResult{Outcome: protocol.OutcomeInvalidAction, Reason: fmt.Sprintf("skill %q has no action %q", req.Skill, req.Action)}
	}
	if !caster.Skills[req.Skill] {
		return protocol.InteractResult{Outcome: protocol.OutcomeNotInstalled, Reason: fmt.Sprintf("skill %q not installed", req.Skill)}
	}
	if remaining := caster.cooldownRemaining(req.Skill, req.Action, action.CooldownMs, now); remaining > 0 {
		return protocol.InteractResult{
			Outcome:   protocol.OutcomeCooldown,
			Reason:    "action on cooldown",
			ReadyInMs: remaining.Milliseconds(),
		}
	}

	target := caster
	if req.TargetID != "" && req.TargetID != caster.ID {
		target = r.entities[req.TargetID]
		if target == nil {
			return protocol.InteractResult{Outcome: protocol.OutcomeNotFound, Reason: fmt.Sprintf("target %q not in room", req.TargetID)}
		}
	}
	if !action.AllowsTarget(string(target.Kind)) {
		return protocol.InteractResult{Outcome: protocol.OutcomeInvalidAction, Reason: fmt.Sprintf("action %q cannot target kind %q", req.Action, target.Kind)}
	}
	// Range boundary is inclusive: a target at exactly Range is reachable.
	if d := grid.Dist(caster.X, caster.Y, target.X, target.Y); d > action.Range {
		return protocol.InteractResult{Outcome: protocol.OutcomeOutOfRange, Reason: fmt.Sprintf("target %.1f units away, range %.1f", d, action.Range)}
	}
	if r.casterHasPending(caster.ID) {
		return protocol.InteractResult{Outcome: protocol.OutcomeAlreadyCasting, Reason: "a cast is already in progress"}
	}

	if action.CastTimeMs <= 0 {
		caster.stampCooldown(req.Skill, req.Action, now)
		applied := r.applyEffect(caster, target, action.Effect, now)
		r.emitSkillState(now, protocol.Payload{
			"caster": caster.ID,
			"skill":  req.Skill,
			"action": req.Action,
			"target": target.ID,
			"state":  "completed",
		})
		if !applied {
			return protocol.InteractResult{Outcome: protocol.OutcomeNoEffect}
		}
		return protocol.InteractResult{Outcome: protocol.OutcomeOK}
	}

	cast := &PendingCast{
		CastID:     fmt.Sprintf("C%06d", r.nextCastNum.Add(1)),
		Caster:     caster.ID,
		Skill:      req.Skill,
		Action:     req.Action,
		Target:     target.ID,
		Params:     req.Params,
		RequestID:  req.RequestID,
		StartX:     caster.X,
		StartY:     caster.Y,
		CompleteAt: now.Add(time.Duration(action.CastTimeMs) * time.Millisecond),
	}
	r.pending = append(r.pending, cast)
	r.emitSkillState(now, protocol.Payload{
		"cast_id": cast.CastID,
		"caster":  caster.ID,
		"skill":   req.Skill,
		"action":  req.Action,
		"target":  target.ID,
		"state":   "casting",
	})
	return protocol.InteractResult{
		Outcome:    protocol.OutcomePending,
		CastID:     cast.CastID,
		CompleteMs: action.CastTimeMs,
	}
}

func (r *Room) casterHasPending(actorID string) bool {
	for _, c := range r.pending {
		if c.Caster == actorID {
			return true
		}
	}
	return false
}

// processPendingCasts resolves every cast whose completion time has
// arrived, preserving invocation order. A cast completes even if the
// target moved; only the caster is held still. Cancelled casts leave no
// cooldown and apply no effect.
func (r *Room) processPendingCasts(now time.Time) {
	if len(r.pending) == 0 {
		return
	}
	keep := r.pending[:0]
	for _, cast := range r.pending {
		if now.Before(cast.CompleteAt) {
			keep = append(keep, cast)
			continue
		}
		r.completeCast(cast, now)
	}
	r.pending = keep
}

func (r *Room) completeCast(cast *PendingCast, now time.Time) {
	caster := r.entities[cast.Caster]
	if caster == nil {
		r.cancelCast(cast, "caster left", now)
		return
	}
	if grid.Dist(cast.StartX, cast.StartY, caster.X, caster.Y) > r.cfg.CastMoveEpsilon {
		r.cancelCast(cast, "caster moved", now)
		return
	}
	target := r.entities[cast.Target]
	if target == nil {
		r.cancelCast(cast, "target left", now)
		return
	}

	skillDef, ok := r.catalog.Skill(cast.Skill)
	if !ok {
		r.cancelCast(cast, "skill removed", now)
		return
	}
	action, ok := skillDef.Action(cast.Action)
	if !ok {
		r.cancelCast(cast, "action removed", now)
		return
	}

	caster.stampCooldown(cast.Skill, cast.Action, now)
	r.applyEffect(caster, target, action.Effect, now)
	r.emitSkillState(now, protocol.Payload{
		"cast_id": cast.CastID,
		"caster":  cast.Caster,
		"skill":   cast.Skill,
		"action":  cast.Action,
		"target":  cast.Target,
		"state":   "completed",
	})
}

func (r *Room) cancelCast(cast *PendingCast, reason string, now time.Time) {
	r.emitSkillState(now, protocol.Payload{
		"cast_id": cast.CastID,
		"caster":  cast.Caster,
		"skill":   cast.Skill,
		"action":  cast.Action,
		"target":  cast.Target,
		"state":   "cancelled",
		"reason":  reason,
	})
}

func (r *Room) emitSkillState(now time.Time, payload protocol.Payload) {
	r.emit(protocol.EventSkillState, now, payload)
}

// applyEffect attaches the action's effect to the target, replacing any
// existing effect with the same (type, source) pair. Returns false when
// the action carries no effect.
func (r *Room) applyEffect(caster, target *Entity, def skills.EffectDef, now time.Time) bool {
	if def.Type == "" {
		return false
	}
	r.nextFxNum++
	eff := &ActiveEffect{
		ID:              fmt.Sprintf("fx-%d", r.nextFxNum),
		Type:            def.Type,
		Source:          caster.ID,
		Target:          target.ID,
		StartedAt:       now,
		ExpiresAt:       now.Add(time.Duration(def.DurationMs) * time.Millisecond),
		SpeedMultiplier: def.SpeedMultiplier,
	}
	target.effects[effectKey{Type: def.Type, Source: caster.ID}] = eff
	return true
}

// processEffectExpirations drops every effect at or past its expiry.
// Running it twice at the same instant is a no-op.
func (r *Room) processEffectExpirations(now time.Time) {
	for _, e := range r.entities {
		for k, eff := range e.effects {
			if !now.Before(eff.ExpiresAt) {
				delete(e.effects, k)
			}
		}
	}
}
