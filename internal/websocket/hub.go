// Package websocket fans meeting and timezone events out to connected
// browser clients.
package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// outbound is a serialized message plus its audience. A non-nil users
// list limits delivery to those users; otherwise teamID scopes it ("" for
// everyone).
type outbound struct {
	teamID string
	users  []string
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

// NewHub creates a new hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("total", total).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("total", total).Msg("websocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.accepts(msg) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop it rather than block everyone.
					client.close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues data for every client.
func (h *Hub) Broadcast(data []byte) {
	h.BroadcastTeam("", data)
}

// BroadcastTeam queues data for clients following teamID, plus clients
// that follow no team at all.
func (h *Hub) BroadcastTeam(teamID string, data []byte) {
	select {
	case h.broadcast <- outbound{teamID: teamID, data: data}:
	default:
		log.Warn().Str("team_id", teamID).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastUsers queues data for the clients identified as one of
// userIDs. Anonymous clients never receive it.
func (h *Hub) BroadcastUsers(userIDs []string, data []byte) {
	if userIDs == nil {
		userIDs = []string{}
	}
	select {
	case h.broadcast <- outbound{users: userIDs, data: data}:
	default:
		log.Warn().Strs("user_ids", userIDs).Msg("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket connection as seen by the hub.
type Client struct {
	hub  *Hub
	send chan []byte

	mu     sync.RWMutex
	userID string
	teams  map[string]bool
	closed bool
}

// NewClient creates a client attached to hub.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:   hub,
		send:  make(chan []byte, 256),
		teams: make(map[string]bool),
	}
}

// Send returns the channel the write pump drains.
func (c *Client) Send() chan []byte {
	return c.send
}

// Reply queues data for this client alone. It reports false when the
// client is gone or its buffer is full.
func (c *Client) Reply(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SetUser records who is on the other end of the connection.
func (c *Client) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// UserID returns the identified user, or "" for anonymous clients.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Subscribe limits team-scoped events to the given teams.
func (c *Client) Subscribe(teamIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range teamIDs {
		if id != "" {
			c.teams[id] = true
		}
	}
}

// Unsubscribe stops following the given teams.
func (c *Client) Unsubscribe(teamIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range teamIDs {
		delete(c.teams, id)
	}
}

// Teams returns the followed team IDs.
func (c *Client) Teams() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.teams))
	for id := range c.teams {
		ids = append(ids, id)
	}
	return ids
}

// Wants reports whether a message scoped to teamID should reach the
// client. Unscoped messages and clients without subscriptions get
// everything.
func (c *Client) Wants(teamID string) bool {
	if teamID == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.teams) == 0 || c.teams[teamID]
}

func (c *Client) accepts(msg outbound) bool {
	if msg.users == nil {
		return c.Wants(msg.teamID)
	}
	id := c.UserID()
	if id == "" {
		return false
	}
	for _, u := range msg.users {
		if u == id {
			return true
		}
	}
	return false
}
