package realtime

import (
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/metrics"
)

// DefaultMaxConnectionsPerUser bounds the sockets one user may hold open.
const DefaultMaxConnectionsPerUser = 10

// Message is the JSON frame written to subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// EventReady is the first frame on every connection; Data lists the joined streams.
const EventReady = "ready"

type route struct {
	stream string
	userID string
}

// Hub routes messages to the open websocket clients of each user.
type Hub struct {
	mu      sync.RWMutex
	routes  map[route]map[*client]struct{}
	perUser map[string]int
	clients map[*client]struct{}

	maxPerUser int
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub builds a hub whose origin policy accepts same-host and loopback
// origins plus allowedOrigins.
func NewHub(allowedOrigins ...string) *Hub {
	return &Hub{
		routes:     make(map[route]map[*client]struct{}),
		perUser:    make(map[string]int),
		clients:    make(map[*client]struct{}),
		maxPerUser: DefaultMaxConnectionsPerUser,
		log:        logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     newOriginPolicy(allowedOrigins).allows,
		},
	}
}

// Serve upgrades the request and blocks until the client goes away. A user
// already at the connection limit is closed with a policy violation.
func (h *Hub) Serve(userID string, streams []string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	c := newClient(h, conn, userID)
	if !h.attach(c) {
		h.log.Warn("realtime connection limit reached", zap.String("user_id", userID), zap.Int("limit", h.maxPerUser))
		c.reject(websocket.ClosePolicyViolation, "too many connections")
		return
	}

	if len(streams) == 0 {
		streams = DefaultStreams()
	}
	joined := h.join(c, streams)
	c.push(Message{Event: EventReady, Data: map[string]any{"streams": joined}})

	go c.writePump()
	c.readPump()
}

// BroadcastToUser sends message to every connection userID has on stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	key := route{stream: normalizeStream(stream), userID: userID}
	if key.stream == "" || key.userID == "" {
		return
	}
	message.Stream = key.stream

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.routes[key] {
		c.push(message)
	}
}

// BroadcastToUsers calls BroadcastToUser for each id.
func (h *Hub) BroadcastToUsers(stream string, userIDs []string, message Message) {
	for _, userID := range userIDs {
		h.BroadcastToUser(stream, userID, message)
	}
}

// Subscribers counts userID's connections on stream.
func (h *Hub) Subscribers(stream, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.routes[route{stream: normalizeStream(stream), userID: userID}])
}

// ConnectedUsers lists users with at least one open connection, sorted.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	users := make([]string, 0, len(h.perUser))
	for userID := range h.perUser {
		users = append(users, userID)
	}
	h.mu.RUnlock()
	sort.Strings(users)
	return users
}

// Shutdown closes every open connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	open := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		open = append(open, c)
	}
	h.mu.RUnlock()

	for _, c := range open {
		c.close()
	}
}

func (h *Hub) attach(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxPerUser > 0 && h.perUser[c.userID] >= h.maxPerUser {
		return false
	}
	h.clients[c] = struct{}{}
	h.perUser[c.userID]++
	metrics.RealtimeConnections.Inc()
	return true
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range c.streams {
		h.leaveLocked(c, stream)
	}
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if h.perUser[c.userID]--; h.perUser[c.userID] <= 0 {
		delete(h.perUser, c.userID)
	}
	metrics.RealtimeConnections.Dec()
}

// join subscribes c to the known streams among names and returns every
// stream c is on afterwards.
func (h *Hub) join(c *client, names []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(names) {
		if !isKnownStream(stream) {
			h.log.Debug("ignoring unknown stream", zap.String("stream", stream), zap.String("user_id", c.userID))
			continue
		}
		key := route{stream: stream, userID: c.userID}
		if h.routes[key] == nil {
			h.routes[key] = make(map[*client]struct{})
		}
		h.routes[key][c] = struct{}{}
		c.streams[stream] = struct{}{}
	}

	joined := make([]string, 0, len(c.streams))
	for stream := range c.streams {
		joined = append(joined, stream)
	}
	sort.Strings(joined)
	return joined
}

func (h *Hub) leave(c *client, names []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, stream := range uniqueStreams(names) {
		h.leaveLocked(c, stream)
	}
}

func (h *Hub) leaveLocked(c *client, stream string) {
	delete(c.streams, stream)
	key := route{stream: stream, userID: c.userID}
	if set, ok := h.routes[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.routes, key)
		}
	}
}
