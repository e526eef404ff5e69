package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is pushed to connected SPA clients when something they may be
// polling for has happened.
type Event struct {
	Type      string `json:"type"`
	Address   string `json:"address,omitempty"`
	InvoiceID string `json:"invoiceId,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
}

// Hub fans events out to websocket subscribers. A write failure drops the
// connection; clients are expected to reconnect and fall back to polling.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewHub(logger *log.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// Subscribe upgrades the request and keeps the connection until the peer
// closes it.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	// Drain inbound frames so pings and close frames are processed.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(evt); err != nil {
			h.logger.Printf("dropping event subscriber: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// ClaimConfirmed implements faucet.ConfirmationSink.
func (h *Hub) ClaimConfirmed(wallet, txHash string) {
	h.Publish(Event{Type: "claim_confirmed", Address: wallet, TxHash: txHash})
}

func (h *Hub) InvoicePaid(invoiceID, txHash string) {
	h.Publish(Event{Type: "invoice_paid", InvoiceID: invoiceID, TxHash: txHash})
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns[conn] {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	conn.Close()
}
