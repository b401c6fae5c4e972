package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// endpoint is a connection handle handed to signaling service.
// Outbound messages are queued and written by connection sender.
type endpoint struct {
	id     string
	remote string
	tx     chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newEndpoint(remote string, queueSize int) *endpoint {
	return &endpoint{
		id:     uuid.NewString(),
		remote: remote,
		tx:     make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

func (ep *endpoint) ID() string {
	return ep.id
}

func (ep *endpoint) Remote() string {
	return ep.remote
}

// TrySend never blocks. Message is dropped if the queue is full
// or the connection is closing.
func (ep *endpoint) TrySend(msg []byte) bool {
	select {
	case <-ep.done:
		return false
	default:
	}
	select {
	case ep.tx <- msg:
		return true
	default:
		return false
	}
}

func (ep *endpoint) close() {
	ep.closeOnce.Do(func() {
		close(ep.done)
	})
}
