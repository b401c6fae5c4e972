package model

import "encoding/json"

// Inbound event types sent by clients.
const (
	EventJoin         = "join"
	EventQuit         = "quit"
	EventOffer        = "send_offer"
	EventAnswer       = "send_answer"
	EventICECandidate = "send_ice_candidate"
)

// Outbound event types sent by server.
// The "recieved" spelling is part of the wire protocol clients expect.
const (
	EventWelcome              = "welcome"
	EventJoined               = "joined"
	EventUserJoined           = "user_joined"
	EventUserLeft             = "user_left"
	EventOfferReceived        = "offer_sdp_recieved"
	EventAnswerReceived       = "answer_sdp_recieved"
	EventICECandidateReceived = "ice_candidate_recieved"
	EventError                = "error"
)

// Endpoint is a live connection handle as seen by the relay core.
type Endpoint interface {
	// ID is unique per connection and used for diagnostics only.
	ID() string
	// TrySend enqueues msg without blocking. It returns false
	// if the endpoint cannot accept data right now.
	TrySend(msg []byte) bool
}

// Envelope is the wire message unit.
type Envelope struct {
	Type string `json:"type"`
	Body any    `json:"body"`
}

// Request is a decoded inbound envelope.
type Request struct {
	Type        string
	ChannelName string
	UserID      string
	// Payload holds sdp or candidate for relay events, nil otherwise.
	Payload json.RawMessage
}

type (
	Message struct {
		Message string `json:"message"`
	}

	Joined struct {
		ChannelName string   `json:"channelName"`
		UserID      string   `json:"userId"`
		Users       []string `json:"users"`
		Message     string   `json:"message"`
	}

	Presence struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
)
