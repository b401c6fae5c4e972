package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/webrtc-signal-relay/backend/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 64 * 1024
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second
	defaultSendQueueSize               = 64

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	SignalingService interface {
		Open(ep model.Endpoint)
		Receive(ep model.Endpoint, raw []byte)
		Close(ep model.Endpoint)
	}

	Config struct {
		Logger           *zerolog.Logger
		SignalingService SignalingService
		ListenAddr       string
		SendQueueSize    int
		MaxMessageSize   int64
	}

	Server struct {
		svc SignalingService
		ws  *websocket.Upgrader
		*http.Server

		connCtx    context.Context
		connCancel context.CancelFunc
		conns      *sync.WaitGroup

		sendQueueSize  int
		maxMessageSize int64

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	connCtx, connCancel := context.WithCancel(context.Background())
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:    cfg.SignalingService,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		connCtx:        connCtx,
		connCancel:     connCancel,
		conns:          &sync.WaitGroup{},
		sendQueueSize:  cfg.SendQueueSize,
		maxMessageSize: cfg.MaxMessageSize,
	}
	if srv.sendQueueSize <= 0 {
		srv.sendQueueSize = defaultSendQueueSize
	}
	if srv.maxMessageSize <= 0 {
		srv.maxMessageSize = defaultWebSocketMaxMessageSize
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.signal)
	mux.HandleFunc("GET /ws", srv.signal)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
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
	srv.Stop()
}

// Stop terminates all active signaling connections and waits for their cleanup.
func (srv *Server) Stop() {
	srv.connCancel()
	srv.conns.Wait()
}

func (srv *Server) signal(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied with error status
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ep := newEndpoint(conn.RemoteAddr().String(), srv.sendQueueSize)
	logger := srv.logger.With().
		Str("connID", ep.ID()).
		Str("remote", ep.Remote()).
		Logger()
	logger.Debug().Msg("signaling connection accepted")

	ctx, cancel := context.WithCancel(srv.connCtx) // long-living connection context

	srv.conns.Add(1)
	srv.svc.Open(ep)
	go srv.handleWSConn(ctx, cancel, conn, ep, &logger)
}

func (srv *Server) handleWSConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	ep *endpoint,
	logger *zerolog.Logger,
) {
	defer srv.conns.Done()
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		srv.webSocketReceiver(ctx, wg, conn, ep, logger)
		cancel()
	}()
	go func() {
		webSocketSender(ctx, wg, conn, ep.tx, logger)
		cancel()
	}()
	go func() {
		// unblock pending read
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	wg.Wait()
	ep.close()
	webSocketCloser(conn, logger)
	srv.svc.Close(ep)
	logger.Debug().Msg("signaling connection ended")
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	tx <-chan []byte,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case msg := <-tx:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsW, wsErr := conn.NextWriter(websocket.TextMessage)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to get websocket text writer")
				break SendLoop
			}
			_, wsErr = wsW.Write(msg)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing message")
				break SendLoop
			}
			wsErr = wsW.Close()
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to close websocket writer")
				break SendLoop
			}
		}
	}
}

func (srv *Server) webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	ep *endpoint,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn.SetReadLimit(srv.maxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	err := readDeadLineFunc(defaultPongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			_, msg, wsErr := conn.ReadMessage()
			if wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Debug().Err(wsErr).Msg("connection closed")
				} else if ctx.Err() == nil {
					logger.Error().Err(wsErr).Msg("unexpected error during receive")
				}
				break RecvLoop
			}
			// any inbound frame proves the peer is alive
			if err = readDeadLineFunc(defaultPongWait); err != nil {
				logger.Error().Err(err).Msg("failed to set websocket read deadline")
				break RecvLoop
			}
			srv.svc.Receive(ep, msg)
		}
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil {
			logger.Debug().Err(wsErr).Msg("failed to send websocket close message")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}
