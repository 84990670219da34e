package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Define notification types
const (
	NotificationTypeConnected      = "connected"
	NotificationTypePayoutDraft    = "payout_draft"
	NotificationTypePayoutPaid     = "payout_paid"
	NotificationTypePayoutReversed = "payout_reversed"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client represents one connected WebSocket session of a sales representative
type Client struct {
	UserID primitive.ObjectID
	Conn   Conn
	mu     sync.Mutex
}

func (c *Client) send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.Conn.WriteJSON(n)
}

// Hub maintains the set of active clients. A representative may be connected
// from several devices at once.
type Hub struct {
	clients    map[primitive.ObjectID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.UserID]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			client.Conn.Close()
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					client.Conn.Close()
				}
			}
			h.clients = make(map[primitive.ObjectID]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) add(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Conn.Close()
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Stop closes every connection and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// Connected reports how many sessions userID has open.
func (h *Hub) Connected(userID primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// SendToUser sends a message to every session of a user. A user that is not
// connected is not an error.
func (h *Hub) SendToUser(userID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, client := range targets {
		if err := client.send(notification); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PayoutChanged pushes the payout's new state to its representative.
func (h *Hub) PayoutChanged(_ context.Context, rep *models.SalesRepresentative, payout *models.CommissionPayout) error {
	n := Notification{Data: payout, UserID: rep.ID.Hex()}
	switch payout.Status {
	case models.PayoutDraft:
		n.Type, n.Message = NotificationTypePayoutDraft, "A payout is being prepared for you"
	case models.PayoutPaid:
		n.Type, n.Message = NotificationTypePayoutPaid, "Your payout has been paid"
	default:
		n.Type, n.Message = NotificationTypePayoutReversed, "A payout has been reversed"
	}
	return h.SendToUser(rep.ID, n)
}
