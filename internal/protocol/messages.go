package protocol

// CREATE ROOM (client -> server): the server mints the room id.
type CreateRoomResult struct {
	RoomID string      `json:"room_id"`
	Params WorldParams `json:"world_params"`
}

// JOIN (client -> server)
type JoinRequest struct {
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id,omitempty"` // empty: server assigns
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"` // human | agent (default agent)
}

type JoinResult struct {
	ActorID string      `json:"actor_id"`
	RoomID  string      `json:"room_id"`
	Spawn   [2]float64  `json:"spawn"`
	Cursor  uint64      `json:"cursor"` // log position at join; poll from here
	Params  WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	TileSize   float64 `json:"tile_size"`
	Width      int     `json:"width"`  // tiles
	Height     int     `json:"height"` // tiles
	MapName    string  `json:"map_name"`
}

// MOVE (client -> server)
type MoveRequest struct {
	RequestID string `json:"request_id"`
	To        [2]int `json:"to"` // destination tile
	Mode      string `json:"mode,omitempty"` // walk (default) | direct
}

type MoveResult struct {
	Outcome string   `json:"outcome"` // accepted | rejected | no_op
	Reason  string   `json:"reason,omitempty"`
	Path    [][2]int `json:"path,omitempty"` // walk mode: planned tiles
}

// INTERACT (client -> server): invoke a skill action.
type InteractRequest struct {
	RequestID string            `json:"request_id"`
	Skill     string            `json:"skill"`
	Action    string            `json:"action"`
	TargetID  string            `json:"target_id"`
	Params    map[string]string `json:"params,omitempty"`
}

type InteractResult struct {
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	CastID     string `json:"cast_id,omitempty"`      // pending casts
	ReadyInMs  int64  `json:"ready_in_ms,omitempty"`  // cooldown rejections
	CompleteMs int64  `json:"complete_in_ms,omitempty"`
}

// SAY (client -> server)
type SayRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

type SayResult struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// POLL EVENTS (client -> server)
type EventsResult struct {
	Events     []Envelope `json:"events"`
	NextCursor uint64     `json:"next_cursor"`
}

// OBSERVE (client -> server)
type ObserveResult struct {
	Self       ObservedEntity   `json:"self"`
	Zone       string           `json:"zone,omitempty"`
	Nearby     []ObservedEntity `json:"nearby"`
	Map        WorldParams      `json:"map"`
	ServerTick uint64           `json:"server_tick"`
}

type ObservedEntity struct {
	ID       string           `json:"id"`
	Name     string           `json:"name,omitempty"`
	Kind     string           `json:"kind"`
	Pos      [2]float64       `json:"pos"`
	Tile     [2]int           `json:"tile"`
	Zone     string           `json:"zone,omitempty"`
	Facing   string           `json:"facing,omitempty"`
	Moving   bool             `json:"moving,omitempty"`
	Distance float64          `json:"distance,omitempty"`
	Actions  []string         `json:"actions,omitempty"` // detail=full
	Effects  []ObservedEffect `json:"effects,omitempty"` // detail=full
}

type ObservedEffect struct {
	Type      string  `json:"type"`
	Source    string  `json:"source"`
	Remaining int64   `json:"remaining_ms"`
	Speed     float64 `json:"speed_multiplier,omitempty"`
}

// ErrorBody is the uniform error response of the HTTP surface.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}
