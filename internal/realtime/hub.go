package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/lifecycle"
	"github.com/qa-dashboard/backend/internal/metrics"
)

// sendQueueSize bounds the frames buffered per viewer. A viewer whose queue is
// full is considered stalled and is dropped.
const sendQueueSize = 64

// Conn is one viewer channel. Implementations must be comparable (pointer types)
// since the hub keys membership by handle.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// peer is a registered connection with its own writer goroutine.
type peer struct {
	conn Conn
	send chan []byte
	done chan struct{}
}

// Hub is the connection registry: it tracks live viewers and fans lifecycle
// events out to them. Membership changes are serialized by mu; frames are
// written by one goroutine per viewer, never while mu is held. There is no
// upper bound on the number of viewers.
type Hub struct {
	mu     sync.Mutex
	peers  map[Conn]*peer
	logger *zap.Logger
}

// NewHub creates an empty connection registry.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		peers:  make(map[Conn]*peer),
		logger: logger,
	}
}

// Register adds a connection. Registering the same handle twice is a no-op.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	if _, ok := h.peers[conn]; ok {
		h.mu.Unlock()
		return
	}
	p := &peer{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	h.peers[conn] = p
	count := len(h.peers)
	metrics.ConnectedViewers.Set(float64(count))
	h.mu.Unlock()

	go h.writeLoop(p)
	h.logger.Debug("viewer registered", zap.Int("viewers", count))
}

// Unregister removes and closes a connection. Unknown handles are ignored.
func (h *Hub) Unregister(conn Conn) {
	if !h.detach(conn) {
		return
	}
	_ = conn.Close()
}

// detach removes conn from membership and stops its writer. It reports whether
// conn was registered. The connection itself is left open.
func (h *Hub) detach(conn Conn) bool {
	h.mu.Lock()
	p, ok := h.peers[conn]
	if ok {
		delete(h.peers, conn)
		metrics.ConnectedViewers.Set(float64(len(h.peers)))
	}
	count := len(h.peers)
	h.mu.Unlock()
	if !ok {
		return false
	}

	close(p.done)
	h.logger.Debug("viewer unregistered", zap.Int("viewers", count))
	return true
}

// Broadcast encodes ev once and queues it for every registered viewer.
// Viewers that cannot keep up are unregistered; the others are unaffected.
func (h *Hub) Broadcast(ev lifecycle.Event) {
	data, err := ev.Frame()
	if err != nil {
		h.logger.Error("encode event frame", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}
	h.broadcastFrame(data)
}

func (h *Hub) broadcastFrame(data []byte) {
	for _, p := range h.snapshot() {
		select {
		case p.send <- data:
		case <-p.done:
		default:
			metrics.BroadcastFrames.WithLabelValues("slow_consumer").Inc()
			h.logger.Warn("dropping stalled viewer")
			// Closing may wait on the stalled write; keep it off the broadcast path.
			if h.detach(p.conn) {
				go func(conn Conn) { _ = conn.Close() }(p.conn)
			}
		}
	}
}

// Count returns the number of registered viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close unregisters every viewer. Connections are closed in parallel so one
// stalled viewer does not hold up the rest.
func (h *Hub) Close() {
	var wg sync.WaitGroup
	for _, p := range h.snapshot() {
		if !h.detach(p.conn) {
			continue
		}
		wg.Add(1)
		go func(conn Conn) {
			defer wg.Done()
			_ = conn.Close()
		}(p.conn)
	}
	wg.Wait()
}

func (h *Hub) snapshot() []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	return peers
}

// writeLoop delivers queued frames in order until the peer is unregistered
// or a write fails.
func (h *Hub) writeLoop(p *peer) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.conn.WriteMessage(data); err != nil {
				metrics.BroadcastFrames.WithLabelValues("write_error").Inc()
				h.logger.Debug("viewer write failed", zap.Error(err))
				h.Unregister(p.conn)
				return
			}
			metrics.BroadcastFrames.WithLabelValues("sent").Inc()
		}
	}
}
