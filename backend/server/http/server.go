package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type ChannelRegistry interface {
	MembersOf(channelName string) []string
	Channels() int
}

type ChannelResponse struct {
	ChannelName string   `json:"channelName"`
	Users       []string `json:"users"`
}

type ChannelsResponse struct {
	Channels int `json:"channels"`
}

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger zerolog.Logger
	reg    ChannelRegistry
	*http.Server
}

type Config struct {
	Logger         *zerolog.Logger
	Registry       ChannelRegistry
	MetricsHandler http.Handler
	ListenAddr     string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		reg:    cfg.Registry,
	}

	r := http.NewServeMux()
	r.HandleFunc("GET /healthz", srv.health)
	r.HandleFunc("GET /api/channels", srv.channels)
	r.HandleFunc("GET /api/channels/{channelName}", srv.channel)
	if cfg.MetricsHandler != nil {
		r.Handle("GET /metrics", cfg.MetricsHandler)
	}
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Message: "OK"})
}

func (srv *Server) channels(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, &GenericResponse{
		Data: ChannelsResponse{Channels: srv.reg.Channels()},
	})
}

func (srv *Server) channel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("channelName")
	users := srv.reg.MembersOf(name)

	srv.logger.Trace().Str("channel", name).Strs("users", users).Msg("channel lookup")

	if len(users) == 0 {
		srv.writeJSON(w, http.StatusNotFound, &GenericResponse{Error: "channel not found"})
		return
	}
	srv.writeJSON(w, http.StatusOK, &GenericResponse{
		Data: ChannelResponse{ChannelName: name, Users: users},
	})
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, resp *GenericResponse) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	b, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	srv.writeBytes(w, code, b)
}

func (srv *Server) writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		srv.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
