// Package ws exposes a bus to out-of-process widget adapters over
// websockets. Adapters exchange small JSON frames: subscribe to a group
// variable to receive pushed updates, publish or clear to drive it. The hub
// is a plain subscriber/publisher on the bus; in-process adapters are
// unaffected by its presence.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/JohnCoene/crosstalk/pkg/bus"
)

// Frame is the JSON wire message between the hub and remote adapters.
//
// Inbound actions: "subscribe", "publish", "clear".
// Outbound actions: "update" (variable state push), "error".
type Frame struct {
	Action   string   `json:"action"`
	Group    string   `json:"group,omitempty"`
	Variable string   `json:"variable,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	Unset    bool     `json:"unset,omitempty"`
	Error    string   `json:"error,omitempty"`
}

const (
	ActionSubscribe = "subscribe"
	ActionPublish   = "publish"
	ActionClear     = "clear"
	ActionUpdate    = "update"
	ActionError     = "error"
)

// Hub bridges websocket clients to one Bus. It implements http.Handler;
// mount it on the path remote adapters dial.
type Hub struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub serving the given bus.
func NewHub(b *bus.Bus) *Hub {
	return &Hub{
		bus: b,
		upgrader: websocket.Upgrader{
			// Adapters are same-document by construction; the bus
			// carries only opaque keys, so any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and serves frames until the client
// disconnects. Each connection's subscriptions are removed on disconnect so
// a vanished adapter leaves no trace on the bus.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Frame, 16),
		subs: make(map[string]*bus.Subscription),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	h.readPump(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.shutdown()
}

// ClientCount returns the number of connected adapters.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) readPump(c *client) {
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		h.handle(c, f)
	}
}

func (h *Hub) handle(c *client, f Frame) {
	if f.Group == "" {
		c.trySend(Frame{Action: ActionError, Error: "group is required"})
		return
	}
	if f.Variable == "" {
		c.trySend(Frame{Action: ActionError, Error: "variable is required"})
		return
	}
	v := h.bus.Group(f.Group).Var(f.Variable)

	switch f.Action {
	case ActionSubscribe:
		c.subscribe(v, f.Group, f.Variable)
	case ActionPublish:
		keys := make([]bus.Key, len(f.Keys))
		for i, k := range f.Keys {
			keys[i] = bus.Key(k)
		}
		v.Set(bus.NewKeySet(keys...))
	case ActionClear:
		v.Set(nil)
	default:
		c.trySend(Frame{Action: ActionError, Error: "unknown action: " + f.Action})
	}
}

type client struct {
	conn *websocket.Conn
	send chan Frame

	mu     sync.Mutex
	closed bool
	subs   map[string]*bus.Subscription
}

func (c *client) subscribe(v *bus.Variable, group, variable string) {
	key := group + "\x00" + variable

	c.mu.Lock()
	if _, dup := c.subs[key]; dup {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	sub := v.Subscribe(func(value any) {
		c.trySend(updateFrame(group, variable, value))
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Close()
		return
	}
	c.subs[key] = sub
	c.mu.Unlock()

	// Snapshot so a late-joining adapter renders current state.
	c.trySend(updateFrame(group, variable, v.Get()))
}

// trySend queues a frame without blocking; a slow adapter drops frames and
// converges on the next update, matching last-write-wins semantics.
func (c *client) trySend(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	default:
	}
}

func (c *client) writePump() {
	for f := range c.send {
		if err := c.conn.WriteJSON(f); err != nil {
			break
		}
	}
	c.conn.Close()
}

func (c *client) shutdown() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	c.mu.Lock()
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	c.conn.Close()
}

func updateFrame(group, variable string, value any) Frame {
	f := Frame{Action: ActionUpdate, Group: group, Variable: variable}
	if ks, ok := value.(bus.KeySet); ok && ks != nil {
		f.Keys = ks.Strings()
	} else {
		f.Unset = true
	}
	return f
}
