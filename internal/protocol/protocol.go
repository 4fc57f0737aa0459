package protocol

import "encoding/json"

const Version = "1.0"

// Event type names published to the room log.
const (
	EventPresenceJoin   = "presence.join"
	EventPresenceLeave  = "presence.leave"
	EventZoneEnter      = "zone.enter"
	EventZoneExit       = "zone.exit"
	EventProximityEnter = "proximity.enter"
	EventProximityExit  = "proximity.exit"
	EventChatMessage    = "chat.message"
	EventSkillState     = "skill.state"
)

// Payload is a type-specific event body. Kept schemaless so new event
// fields never require a protocol bump.
type Payload map[string]any

// Envelope is one entry of a room's append-only event log.
type Envelope struct {
	Cursor  uint64  `json:"cursor"`
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	Tick    uint64  `json:"tick"`
	TS      int64   `json:"ts"` // unix milliseconds
	Payload Payload `json:"payload,omitempty"`
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}
