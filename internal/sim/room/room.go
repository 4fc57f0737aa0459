// Package room is the authoritative per-room simulation actor. All room
// state is owned by a single loop goroutine (Run); requests arrive over
// channels and are resolved between ticks, so no request ever races the
// tick step. Different rooms share nothing and run fully in parallel.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/eventlog"
	"tileworld.ai/internal/sim/idempotency"
	"tileworld.ai/internal/sim/mapload"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/zones"
)

type Config struct {
	ID         string
	TickRateHz int

	// World units per second before effects.
	BaseSpeed float64
	// Pairwise distance for proximity.enter/exit tracking.
	ProximityRadius float64
	// Caster displacement past this cancels a pending cast.
	CastMoveEpsilon float64
	// A* explored-node cap.
	PathNodeBudget int

	LogMaxCount int
	LogMaxAge   time.Duration
	IdemTTL     time.Duration

	// Skills granted to every joining human/agent.
	DefaultSkills []string
}

func (c *Config) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.BaseSpeed <= 0 {
		c.BaseSpeed = 128
	}
	if c.ProximityRadius <= 0 {
		c.ProximityRadius = 96
	}
	if c.CastMoveEpsilon <= 0 {
		c.CastMoveEpsilon = 0.5
	}
	if c.PathNodeBudget <= 0 {
		c.PathNodeBudget = 4096
	}
	if c.LogMaxCount <= 0 {
		c.LogMaxCount = eventlog.DefaultMaxCount
	}
	if c.LogMaxAge <= 0 {
		c.LogMaxAge = eventlog.DefaultMaxAge
	}
	if c.IdemTTL <= 0 {
		c.IdemTTL = idempotency.DefaultTTL
	}
	if c.DefaultSkills == nil {
		c.DefaultSkills = []string{"sprint", "hex", "inspect"}
	}
}

// ReqError is a boundary error with a protocol code. Domain outcomes
// (rejected, cooldown, out_of_range, ...) are results, not ReqErrors.
type ReqError struct {
	Code    string
	Message string
}

func (e *ReqError) Error() string { return e.Code + ": " + e.Message }

func reqErr(code, format string, args ...any) *ReqError {
	return &ReqError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Journal receives every appended envelope; wired to the zstd JSONL writer
// in cmd/server. May be nil.
type Journal interface {
	WriteEvent(protocol.Envelope) error
}

type Room struct {
	cfg      Config
	worldMap *mapload.Map
	catalog  *skills.Catalog

	tick atomic.Uint64

	entities map[string]*Entity
	zones    *zones.Tracker
	log      *eventlog.Log
	idem     *idempotency.Store

	pending   []*PendingCast
	nearPairs map[pairKey]bool

	nextActorNum atomic.Uint64
	nextCastNum  atomic.Uint64
	nextFxNum    uint64

	joinCh     chan joinReq
	leaveCh    chan leaveReq
	moveCh     chan moveReq
	interactCh chan interactReq
	sayCh      chan sayReq
	observeCh  chan observeReq
	stop       chan struct{}

	journal Journal
	metrics *Metrics
}

func New(cfg Config, m *mapload.Map, catalog *skills.Catalog) *Room {
	cfg.applyDefaults()
	if m == nil {
		m = mapload.Default()
	}
	if catalog == nil {
		catalog = skills.Defaults()
	}
	return &Room{
		cfg:       cfg,
		worldMap:  m,
		catalog:   catalog,
		entities:  map[string]*Entity{},
		zones:     zones.NewTracker(m.Zones),
		log:       eventlog.New(cfg.ID, cfg.LogMaxCount, cfg.LogMaxAge),
		idem:      idempotency.NewStore(cfg.IdemTTL),
		nearPairs: map[pairKey]bool{},

		joinCh:     make(chan joinReq, 64),
		leaveCh:    make(chan leaveReq, 64),
		moveCh:     make(chan moveReq, 256),
		interactCh: make(chan interactReq, 256),
		sayCh:      make(chan sayReq, 256),
		observeCh:  make(chan observeReq, 256),
		stop:       make(chan struct{}),

		metrics: noopMetrics(),
	}
}

func (r *Room) ID() string           { return r.cfg.ID }
func (r *Room) CurrentTick() uint64  { return r.tick.Load() }
func (r *Room) Log() *eventlog.Log   { return r.log }
func (r *Room) SetJournal(j Journal) { r.journal = j }

func (r *Room) SetMetrics(m *Metrics) {
	if m != nil {
		r.metrics = m
	}
}

func (r *Room) WorldParams() protocol.WorldParams {
	return protocol.WorldParams{
		TickRateHz: r.cfg.TickRateHz,
		TileSize:   r.worldMap.Grid.TileSize(),
		Width:      r.worldMap.Grid.Cols(),
		Height:     r.worldMap.Grid.Rows(),
		MapName:    r.worldMap.Name,
	}
}

// Run owns all room state until ctx is cancelled or Stop is called.
func (r *Room) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.joinCh:
			r.handleJoin(req, time.Now())
		case req := <-r.leaveCh:
			r.handleLeave(req, time.Now())
		case req := <-r.moveCh:
			r.handleMove(req, time.Now())
		case req := <-r.interactCh:
			r.handleInteract(req, time.Now())
		case req := <-r.sayCh:
			r.handleSay(req, time.Now())
		case req := <-r.observeCh:
			r.handleObserve(req, time.Now())
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			r.step(now, dt)
		}
	}
}

func (r *Room) Stop() { close(r.stop) }

// StepOnce advances one tick at a chosen instant with chosen dt, using the
// same ordering as Run. For deterministic tests and replays; must not be
// called while Run is active.
func (r *Room) StepOnce(now time.Time, dt float64) uint64 {
	tick := r.tick.Load()
	r.step(now, dt)
	return tick
}

// emit appends to the room log, mirrors into the journal and counts it.
func (r *Room) emit(eventType string, now time.Time, payload protocol.Payload) {
	env := r.log.Append(eventType, r.tick.Load(), now, payload)
	if r.journal != nil {
		_ = r.journal.WriteEvent(env)
	}
	r.metrics.EventAppended(eventType)
}

// ---- channel request plumbing -------------------------------------------

type joinReq struct {
	Req  protocol.JoinRequest
	Resp chan joinResp
}

type joinResp struct {
	Result protocol.JoinResult
	Err    *ReqError
}

type leaveReq struct {
	ActorID string
	Resp    chan *ReqError
}

type moveReq struct {
	ActorID string
	Req     protocol.MoveRequest
	Resp    chan moveResp
}

type moveResp struct {
	Result protocol.MoveResult
	Err    *ReqError
}

type interactReq struct {
	ActorID string
	Req     protocol.InteractRequest
	Resp    chan interactResp
}

type interactResp struct {
	Result protocol.InteractResult
	Err    *ReqError
}

type sayReq struct {
	ActorID string
	Req     protocol.SayRequest
	Resp    chan sayResp
}

type sayResp struct {
	Result protocol.SayResult
	Err    *ReqError
}

type observeReq struct {
	ActorID string
	Radius  float64
	Detail  string
	Resp    chan observeResp
}

type observeResp struct {
	Result protocol.ObserveResult
	Err    *ReqError
}

func (r *Room) RequestJoin(ctx context.Context, req protocol.JoinRequest) (protocol.JoinResult, error) {
	q := joinReq{Req: req, Resp: make(chan joinResp, 1)}
	select {
	case r.joinCh <- q:
	case <-ctx.Done():
		return protocol.JoinResult{}, ctx.Err()
	}
	select {
	case resp := <-q.Resp:
		if resp.Err != nil {
			return protocol.JoinResult{}, resp.Err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return protocol.JoinResult{}, ctx.Err()
	}
}

func (r *Room) RequestLeave(ctx context.Context, actorID string) error {
	q := leaveReq{ActorID: actorID, Resp: make(chan *ReqError, 1)}
	select {
	case r.leaveCh <- q:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-q.Resp:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) RequestMove(ctx context.Context, actorID string, req protocol.MoveRequest) (protocol.MoveResult, error) {
	q := moveReq{ActorID: actorID, Req: req, Resp: make(chan moveResp, 1)}
	select {
	case r.moveCh <- q:
	case <-ctx.Done():
		return protocol.MoveResult{}, ctx.Err()
	}
	select {
	case resp := <-q.Resp:
		if resp.Err != nil {
			return protocol.MoveResult{}, resp.Err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return protocol.MoveResult{}, ctx.Err()
	}
}

func (r *Room) RequestInteract(ctx context.Context, actorID string, req protocol.InteractRequest) (protocol.InteractResult, error) {
	q := interactReq{ActorID: actorID, Req: req, Resp: make(chan interactResp, 1)}
	select {
	case r.interactCh <- q:
	case <-ctx.Done():
		return protocol.InteractResult{}, ctx.Err()
	}
	select {
	case resp := <-q.Resp:
		if resp.Err != nil {
			return protocol.InteractResult{}, resp.Err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return protocol.InteractResult{}, ctx.Err()
	}
}

func (r *Room) RequestSay(ctx context.Context, actorID string, req protocol.SayRequest) (protocol.SayResult, error) {
	q := sayReq{ActorID: actorID, Req: req, Resp: make(chan sayResp, 1)}
	select {
	case r.sayCh <- q:
	case <-ctx.Done():
		return protocol.SayResult{}, ctx.Err()
	}
	select {
	case resp := <-q.Resp:
		if resp.Err != nil {
			return protocol.SayResult{}, resp.Err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return protocol.SayResult{}, ctx.Err()
	}
}

func (r *Room) RequestObserve(ctx context.Context, actorID string, radius float64, detail string) (protocol.ObserveResult, error) {
	q := observeReq{ActorID: actorID, Radius: radius, Detail: detail, Resp: make(chan observeResp, 1)}
	select {
	case r.observeCh <- q:
	case <-ctx.Done():
		return protocol.ObserveResult{}, ctx.Err()
	}
	select {
	case resp := <-q.Resp:
		if resp.Err != nil {
			return protocol.ObserveResult{}, resp.Err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return protocol.ObserveResult{}, ctx.Err()
	}
}

// ---- loop-side handlers --------------------------------------------------

func (r *Room) handleJoin(q joinReq, now time.Time) {
	result, err := r.ApplyJoin(q.Req, now)
	q.Resp <- joinResp{Result: result, Err: err}
}

func (r *Room) handleLeave(q leaveReq, now time.Time) {
	q.Resp <- r.ApplyLeave(q.ActorID, now)
}

func (r *Room) handleMove(q moveReq, now time.Time) {
	result, err := r.ApplyMove(q.ActorID, q.Req, now)
	q.Resp <- moveResp{Result: result, Err: err}
}

func (r *Room) handleInteract(q interactReq, now time.Time) {
	result, err := r.ApplyInteract(q.ActorID, q.Req, now)
	q.Resp <- interactResp{Result: result, Err: err}
}

func (r *Room) handleSay(q sayReq, now time.Time) {
	result, err := r.ApplySay(q.ActorID, q.Req, now)
	q.Resp <- sayResp{Result: result, Err: err}
}

func (r *Room) handleObserve(q observeReq, now time.Time) {
	result, err := r.BuildObserve(q.ActorID, q.Radius, q.Detail, now)
	q.Resp <- observeResp{Result: result, Err: err}
}

// ---- join / leave / say --------------------------------------------------

// ApplyJoin registers an actor. Exported alongside the other Apply methods
// for loop-off deterministic tests; Run routes channel requests here.
func (r *Room) ApplyJoin(req protocol.JoinRequest, now time.Time) (protocol.JoinResult, *ReqError) {
	idemActor := req.ActorID
	if idemActor == "" {
		idemActor = "join:" + req.Name
	}
	body, _ := json.Marshal(req)
	switch status, stored := r.idem.Check(idemActor, req.RequestID, body, now); status {
	case idempotency.Replay:
		return stored.(protocol.JoinResult), nil
	case idempotency.Conflict:
		return protocol.JoinResult{}, reqErr(protocol.ErrConflict, "request id %q reused with a different payload", req.RequestID)
	}

	actorID := req.ActorID
	if actorID == "" {
		actorID = fmt.Sprintf("A%d", r.nextActorNum.Add(1))
	}
	if _, exists := r.entities[actorID]; exists {
		return protocol.JoinResult{}, reqErr(protocol.ErrConflict, "actor %q already in room", actorID)
	}

	kind := Kind(req.Kind)
	switch kind {
	case KindHuman, KindAgent, KindNPC, KindObject:
	case "":
		kind = KindAgent
	default:
		return protocol.JoinResult{}, reqErr(protocol.ErrBadRequest, "unknown actor kind %q", req.Kind)
	}

	joinCursor := r.log.Latest()
	x, y := r.worldMap.Grid.TileToWorld(r.worldMap.Spawn)
	e := &Entity{
		ID:   actorID,
		Name: req.Name,
		Kind: kind,
		X:    x,
		Y:    y,
		Tile: r.worldMap.Spawn,
	}
	e.initDefaults(r.cfg.BaseSpeed)
	if kind == KindHuman || kind == KindAgent {
		for _, s := range r.cfg.DefaultSkills {
			e.Skills[s] = true
		}
	}
	r.entities[actorID] = e

	r.emit(protocol.EventPresenceJoin, now, protocol.Payload{
		"entity_id": actorID,
		"name":      req.Name,
		"kind":      string(kind),
	})
	r.zones.Update(actorID, e.X, e.Y, r.zoneEmit(now))

	result := protocol.JoinResult{
		ActorID: actorID,
		RoomID:  r.cfg.ID,
		Spawn:   [2]float64{e.X, e.Y},
		Cursor:  joinCursor,
		Params:  r.WorldParams(),
	}
	r.idem.Save(idemActor, req.RequestID, body, result, now)
	r.metrics.Entities(len(r.entities))
	return result, nil
}

func (r *Room) ApplyLeave(actorID string, now time.Time) *ReqError {
	e := r.entities[actorID]
	if e == nil {
		return reqErr(protocol.ErrNotInRoom, "actor %q not in room", actorID)
	}
	r.zones.Remove(actorID, r.zoneEmit(now))
	delete(r.entities, actorID)
	r.dropProximityFor(actorID, now)
	r.emit(protocol.EventPresenceLeave, now, protocol.Payload{"entity_id": actorID})
	r.metrics.Entities(len(r.entities))
	return nil
}

func (r *Room) ApplySay(actorID string, req protocol.SayRequest, now time.Time) (protocol.SayResult, *ReqError) {
	e := r.entities[actorID]
	if e == nil {
		return protocol.SayResult{}, reqErr(protocol.ErrNotInRoom, "actor %q not in room", actorID)
	}
	body, _ := json.Marshal(req)
	switch status, stored := r.idem.Check(actorID, req.RequestID, body, now); status {
	case idempotency.Replay:
		return stored.(protocol.SayResult), nil
	case idempotency.Conflict:
		return protocol.SayResult{}, reqErr(protocol.ErrConflict, "request id %q reused with a different payload", req.RequestID)
	}
	if req.Text == "" {
		return protocol.SayResult{}, reqErr(protocol.ErrBadRequest, "missing text")
	}

	r.emit(protocol.EventChatMessage, now, protocol.Payload{
		"entity_id": actorID,
		"name":      e.Name,
		"text":      req.Text,
		"zone":      r.zones.ZoneOf(actorID),
	})
	result := protocol.SayResult{Outcome: protocol.OutcomeOK}
	r.idem.Save(actorID, req.RequestID, body, result, now)
	return result, nil
}

func (r *Room) zoneEmit(now time.Time) zones.Emit {
	return func(eventType string, payload protocol.Payload) {
		r.emit(eventType, now, payload)
	}
}

// DebugSetPos teleports an entity; test/replay preconditioning only.
func (r *Room) DebugSetPos(actorID string, x, y float64) bool {
	e := r.entities[actorID]
	if e == nil {
		return false
	}
	e.X, e.Y = x, y
	e.Tile = r.worldMap.Grid.WorldToTile(x, y)
	e.move = nil
	return true
}

// DebugEntity exposes a read-only view for tests.
func (r *Room) DebugEntity(actorID string) (x, y float64, facing string, moving bool, ok bool) {
	e := r.entities[actorID]
	if e == nil {
		return 0, 0, "", false, false
	}
	return e.X, e.Y, e.Facing, e.move != nil, true
}

// DebugEffects lists active effects on an entity, for tests.
func (r *Room) DebugEffects(actorID string) []*ActiveEffect {
	e := r.entities[actorID]
	if e == nil {
		return nil
	}
	return e.EffectList()
}

func (r *Room) DebugZoneOf(actorID string) string { return r.zones.ZoneOf(actorID) }
func (r *Room) DebugPopulation(zone string) int   { return r.zones.Population(zone) }
func (r *Room) DebugPendingCasts() int            { return len(r.pending) }
