package _switch

import (
	"fmt"

	"github.com/adwski/webrtc-signal-relay/backend/codec"
	"github.com/adwski/webrtc-signal-relay/backend/metrics"
	"github.com/adwski/webrtc-signal-relay/backend/model"
	"github.com/adwski/webrtc-signal-relay/backend/storage/memory"
	"github.com/rs/zerolog"
)

// Validation messages sent back to relay event senders.
const (
	errMissingOfferSDP  = "Missing SDP in offer"
	errMissingAnswerSDP = "Missing SDP in answer"
	errMissingCandidate = "Missing candidate in ICE message"
)

type (
	Registry interface {
		Join(channelName, userID string, ep model.Endpoint) ([]string, []model.Endpoint)
		Leave(channelName, userID string) (bool, []model.Endpoint)
		RemoveHandle(ep model.Endpoint) []memory.Departure
		EachRecipient(channelName, userID string, fn func(model.Endpoint)) int
	}

	Switch struct {
		logger  zerolog.Logger
		reg     Registry
		metrics *metrics.Metrics
	}

	Config struct {
		Logger   *zerolog.Logger
		Registry Registry
		Metrics  *metrics.Metrics
	}

	relayRule struct {
		event      string
		missingErr string
	}
)

var relays = map[string]relayRule{
	model.EventOffer:        {event: model.EventOfferReceived, missingErr: errMissingOfferSDP},
	model.EventAnswer:       {event: model.EventAnswerReceived, missingErr: errMissingAnswerSDP},
	model.EventICECandidate: {event: model.EventICECandidateReceived, missingErr: errMissingCandidate},
}

func NewSwitch(cfg Config) *Switch {
	return &Switch{
		logger:  cfg.Logger.With().Str("component", "switch").Logger(),
		reg:     cfg.Registry,
		metrics: cfg.Metrics,
	}
}

// Route applies a decoded request coming from ep.
func (sw *Switch) Route(ep model.Endpoint, req model.Request) {
	logger := sw.logger.With().
		Str("connID", ep.ID()).
		Str("type", req.Type).
		Str("channel", req.ChannelName).
		Str("userID", req.UserID).
		Logger()

	switch req.Type {
	case model.EventJoin:
		sw.join(ep, req, &logger)
	case model.EventQuit:
		sw.quit(req, &logger)
	case model.EventOffer, model.EventAnswer, model.EventICECandidate:
		sw.relay(ep, req, &logger)
	default:
		sw.reject(ep, metrics.ReasonUnknownType, fmt.Sprintf("Unknown message type: %s", req.Type))
		logger.Debug().Msg("unknown message type")
	}
}

// Depart removes every binding of ep and announces it to remaining members.
func (sw *Switch) Depart(ep model.Endpoint) {
	for _, dep := range sw.reg.RemoveHandle(ep) {
		sw.logger.Debug().
			Str("connID", ep.ID()).
			Str("channel", dep.Channel).
			Str("userID", dep.UserID).
			Msg("member disconnected")
		sw.broadcast(dep.Remaining, model.EventUserLeft, leftPresence(dep.UserID))
	}
}

func (sw *Switch) join(ep model.Endpoint, req model.Request, logger *zerolog.Logger) {
	users, others := sw.reg.Join(req.ChannelName, req.UserID, ep)
	logger.Debug().Strs("users", users).Msg("member joined")

	sw.deliver(ep, model.EventJoined, model.Joined{
		ChannelName: req.ChannelName,
		UserID:      req.UserID,
		Users:       users,
		Message:     fmt.Sprintf("Joined channel %s", req.ChannelName),
	})
	sw.broadcast(others, model.EventUserJoined, model.Presence{
		UserID:  req.UserID,
		Message: fmt.Sprintf("User %s joined the channel", req.UserID),
	})
}

func (sw *Switch) quit(req model.Request, logger *zerolog.Logger) {
	removed, remaining := sw.reg.Leave(req.ChannelName, req.UserID)
	if !removed {
		logger.Debug().Msg("quit ignored, not a member")
		return
	}
	logger.Debug().Msg("member quit")
	sw.broadcast(remaining, model.EventUserLeft, leftPresence(req.UserID))
}

func (sw *Switch) relay(ep model.Endpoint, req model.Request, logger *zerolog.Logger) {
	r := relays[req.Type]
	if req.Payload == nil {
		sw.reject(ep, metrics.ReasonValidation, r.missingErr)
		logger.Debug().Msg("relay payload is missing")
		return
	}
	b, err := codec.Encode(r.event, req.Payload)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode relay")
		return
	}
	// fan out under registry lock, TrySend never blocks
	n := sw.reg.EachRecipient(req.ChannelName, req.UserID, func(dst model.Endpoint) {
		sw.send(dst, r.event, b)
	})
	if n == 0 {
		logger.Debug().Msg("relay did not reach anyone")
	}
}

func (sw *Switch) reject(ep model.Endpoint, reason, message string) {
	sw.metrics.Rejected.WithLabelValues(reason).Inc()
	sw.metrics.Delivered(model.EventError, ep.TrySend(codec.EncodeError(message)))
}

func (sw *Switch) broadcast(eps []model.Endpoint, event string, payload any) {
	if len(eps) == 0 {
		return
	}
	b, err := codec.Encode(event, payload)
	if err != nil {
		sw.logger.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	for _, ep := range eps {
		sw.send(ep, event, b)
	}
}

func (sw *Switch) deliver(ep model.Endpoint, event string, payload any) {
	b, err := codec.Encode(event, payload)
	if err != nil {
		sw.logger.Error().Err(err).Str("event", event).Msg("failed to encode message")
		return
	}
	sw.send(ep, event, b)
}

func (sw *Switch) send(ep model.Endpoint, event string, b []byte) {
	sent := ep.TrySend(b)
	sw.metrics.Delivered(event, sent)
	if !sent {
		sw.logger.Trace().
			Str("connID", ep.ID()).
			Str("event", event).
			Msg("endpoint is not writable, skipped")
	}
}

func leftPresence(userID string) model.Presence {
	return model.Presence{
		UserID:  userID,
		Message: fmt.Sprintf("User %s left the channel", userID),
	}
}
