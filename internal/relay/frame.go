package relay

import "github.com/clippy-oss/homie/callchat/internal/domain"

// Frame ops exchanged between the relay and call clients.
const (
	OpJoin     = "join"
	OpJoined   = "joined"
	OpEvent    = "event"
	OpAck      = "ack"
	OpLeave    = "leave"
	OpPresence = "presence"
	OpError    = "error"
)

// Frame is the JSON envelope of the relay protocol. Seq pairs an event a
// client sends with the ack it gets back.
type Frame struct {
	Op           string              `json:"op"`
	Seq          uint64              `json:"seq,omitempty"`
	CallID       string              `json:"callId,omitempty"`
	User         *domain.EventUser   `json:"user,omitempty"`
	Event        *domain.CustomEvent `json:"event,omitempty"`
	Participants int                 `json:"participants,omitempty"`
	Error        string              `json:"error,omitempty"`
}
