package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the notification event kinds.
type Type string

const (
	TypeConnected         Type = "connected"
	TypeHeartbeat         Type = "heartbeat"
	TypePermissionUpdated Type = "permission_updated"
	TypeRoleUpdated       Type = "role_updated"
	TypeUserUpdated       Type = "user_updated"
)

// Event is the JSON payload pushed to subscribed clients when permissions
// change. Delivery is best-effort: no acknowledgement, no replay, no
// ordering guarantee across connections.
type Event struct {
	Type            Type      `json:"type"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	UserID          string    `json:"userId,omitempty"`
	UserRole        string    `json:"userRole,omitempty"`
	AffectedRole    string    `json:"affectedRole,omitempty"`
	PermissionName  string    `json:"permissionName,omitempty"`
	Action          string    `json:"action,omitempty"`
	RequiresRefresh bool      `json:"requiresRefresh"`
}

// Publisher is the side of the bus mutation code depends on. Publishing is
// fire-and-forget relative to the mutation's success.
type Publisher interface {
	Publish(ev Event)
}

// connection is one subscribed client stream.
type connection struct {
	id           uuid.UUID
	userID       uuid.UUID
	userRole     string
	lastActivity time.Time
	send         chan Event
}

// Bus fans permission-change events out to active client connections. One
// connection per subscribed client; slow or broken subscribers are pruned
// rather than blocking the dispatch loop. The registry is process-local —
// a multi-instance deployment runs one independent bus per instance.
type Bus struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*connection

	register   chan *connection
	unregister chan *connection
	publish    chan Event
	done       chan struct{}
	closeOnce  sync.Once

	heartbeatEvery time.Duration
	staleAfter     time.Duration
	sweepEvery     time.Duration
	now            func() time.Time
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithHeartbeat overrides the heartbeat interval.
func WithHeartbeat(d time.Duration) BusOption {
	return func(b *Bus) { b.heartbeatEvery = d }
}

// WithStaleAfter overrides the inactivity threshold for the connection sweep.
func WithStaleAfter(d time.Duration) BusOption {
	return func(b *Bus) { b.staleAfter = d }
}

// WithSweepInterval overrides how often stale connections are reaped.
func WithSweepInterval(d time.Duration) BusOption {
	return func(b *Bus) { b.sweepEvery = d }
}

// WithNow overrides the bus clock.
func WithNow(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

// NewBus initializes a notification bus. Call Run in a goroutine to start
// dispatching.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		conns:          make(map[uuid.UUID]*connection),
		register:       make(chan *connection),
		unregister:     make(chan *connection),
		publish:        make(chan Event, 64),
		done:           make(chan struct{}),
		heartbeatEvery: 30 * time.Second,
		staleAfter:     10 * time.Minute,
		sweepEvery:     time.Minute,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run is the core dispatch loop. It owns registration, fan-out, heartbeats
// and the stale-connection sweep.
func (b *Bus) Run() {
	heartbeat := time.NewTicker(b.heartbeatEvery)
	defer heartbeat.Stop()
	sweep := time.NewTicker(b.sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case conn := <-b.register:
			b.mu.Lock()
			b.conns[conn.id] = conn
			b.mu.Unlock()
		case conn := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.conns[conn.id]; ok {
				delete(b.conns, conn.id)
				close(conn.send)
			}
			b.mu.Unlock()
		case ev := <-b.publish:
			b.fanout(ev)
		case <-heartbeat.C:
			b.fanout(Event{Type: TypeHeartbeat, Message: "heartbeat", Timestamp: b.now()})
		case <-sweep.C:
			b.reapStale()
		case <-b.done:
			b.mu.Lock()
			for id, conn := range b.conns {
				delete(b.conns, id)
				close(conn.send)
			}
			b.mu.Unlock()
			return
		}
	}
}

// Shutdown stops the dispatch loop and closes every open connection.
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Publish enqueues an event for fan-out. If the dispatch queue is full the
// event is dropped; clients reconcile via a later refresh.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}
	select {
	case b.publish <- ev:
	case <-b.done:
	default:
		log.Printf("events: dispatch queue full, dropping %s event", ev.Type)
	}
}

// Subscription is a live event stream handed to a transport (SSE or
// WebSocket). The transport must drain C and call Close when the client
// goes away.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Event

	bus  *Bus
	conn *connection
}

// Close removes the subscription from the registry. Safe to call more than
// once.
func (s *Subscription) Close() {
	select {
	case s.bus.unregister <- s.conn:
	case <-s.bus.done:
	}
}

// Subscribe registers a client connection and queues the initial
// "connected" event on its stream.
func (b *Bus) Subscribe(userID uuid.UUID, userRole string) *Subscription {
	conn := &connection{
		id:           uuid.New(),
		userID:       userID,
		userRole:     userRole,
		lastActivity: b.now(),
		send:         make(chan Event, 16),
	}
	conn.send <- Event{
		Type:      TypeConnected,
		Message:   "permission stream connected",
		Timestamp: b.now(),
		UserID:    userID.String(),
		UserRole:  userRole,
	}
	select {
	case b.register <- conn:
	case <-b.done:
	}
	return &Subscription{ID: conn.id, C: conn.send, bus: b, conn: conn}
}

// ConnectionCount returns the number of registered connections.
func (b *Bus) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// fanout delivers an event to every matching connection. Sends never block:
// a connection with a full buffer is treated as broken and pruned.
func (b *Bus) fanout(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.conns {
		if !matches(conn, ev) {
			continue
		}
		select {
		case conn.send <- ev:
			conn.lastActivity = b.now()
		default:
			delete(b.conns, id)
			close(conn.send)
			log.Printf("events: pruned unresponsive connection %s", id)
		}
	}
}

// matches computes the target audience of an event.
func matches(conn *connection, ev Event) bool {
	switch ev.Type {
	case TypeRoleUpdated:
		return conn.userRole == ev.AffectedRole
	case TypeUserUpdated:
		return conn.userID.String() == ev.UserID
	default:
		// connected is delivered directly at subscribe time; heartbeat and
		// permission_updated broadcast to everyone.
		return true
	}
}

func (b *Bus) reapStale() {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-b.staleAfter)
	for id, conn := range b.conns {
		if conn.lastActivity.Before(cutoff) {
			delete(b.conns, id)
			close(conn.send)
			log.Printf("events: reaped stale connection %s", id)
		}
	}
}
