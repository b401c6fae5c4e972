package service

import (
	"errors"
	"sync"

	"github.com/adwski/webrtc-signal-relay/backend/codec"
	"github.com/adwski/webrtc-signal-relay/backend/metrics"
	"github.com/adwski/webrtc-signal-relay/backend/model"
	"github.com/rs/zerolog"
)

const welcomeMessage = "Welcome to the signaling server"

type (
	Router interface {
		Route(ep model.Endpoint, req model.Request)
		Depart(ep model.Endpoint)
	}

	Service struct {
		router  Router
		metrics *metrics.Metrics
		logger  zerolog.Logger

		mx   *sync.Mutex
		open map[model.Endpoint]struct{}
	}

	Config struct {
		Router  Router
		Metrics *metrics.Metrics
		Logger  *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		router:  cfg.Router,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "service").Logger(),
		mx:      &sync.Mutex{},
		open:    make(map[model.Endpoint]struct{}),
	}
}

// Open registers new connection and greets it.
func (svc *Service) Open(ep model.Endpoint) {
	svc.mx.Lock()
	svc.open[ep] = struct{}{}
	svc.mx.Unlock()

	svc.metrics.ConnectionsActive.Inc()
	svc.logger.Debug().Str("connID", ep.ID()).Msg("signaling session opened")

	b, err := codec.Encode(model.EventWelcome, model.Message{Message: welcomeMessage})
	if err != nil {
		svc.logger.Error().Err(err).Msg("failed to encode welcome")
		return
	}
	svc.metrics.Delivered(model.EventWelcome, ep.TrySend(b))
}

// Receive handles single inbound frame. Frames of one connection
// must be passed sequentially in arrival order.
func (svc *Service) Receive(ep model.Endpoint, raw []byte) {
	req, err := codec.Decode(raw)
	if err != nil {
		var decErr *codec.DecodeError
		if !errors.As(err, &decErr) {
			svc.logger.Error().Err(err).Str("connID", ep.ID()).Msg("unexpected decode failure")
			return
		}
		svc.logger.Debug().Err(err).Str("connID", ep.ID()).Msg("rejected inbound message")
		svc.metrics.Rejected.WithLabelValues(metrics.ReasonDecode).Inc()
		svc.metrics.Delivered(model.EventError, ep.TrySend(codec.EncodeError(decErr.Reason)))
		return
	}
	svc.metrics.MessagesReceived.WithLabelValues(typeLabel(req.Type)).Inc()
	svc.router.Route(ep, req)
}

// Close performs disconnect cleanup. Subsequent calls for the same
// endpoint are no-op.
func (svc *Service) Close(ep model.Endpoint) {
	svc.mx.Lock()
	_, ok := svc.open[ep]
	delete(svc.open, ep)
	svc.mx.Unlock()
	if !ok {
		return
	}

	svc.router.Depart(ep)
	svc.metrics.ConnectionsActive.Dec()
	svc.logger.Debug().Str("connID", ep.ID()).Msg("signaling session closed")
}

// typeLabel keeps label cardinality bounded for client chosen types.
func typeLabel(t string) string {
	switch t {
	case model.EventJoin, model.EventQuit, model.EventOffer, model.EventAnswer, model.EventICECandidate:
		return t
	default:
		return "other"
	}
}
