package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"perpion/internal/types"
)

// socketMessage is the envelope a connecting client sends once to
// identify itself before receiving the trade feed.
type socketMessage struct {
	Event string `json:"event"`
	JWT   string `json:"jwt"`
}

// tradeMessage is the JSON shape pushed to every subscriber on a fill.
type tradeMessage struct {
	LongID    string  `json:"long_id"`
	ShortID   string  `json:"short_id"`
	Amount    string  `json:"amount"`
	Price     string  `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

const socketSendBuffer = 1000

// Hub tracks every connected trade-feed subscriber behind a single
// mutex, mirroring the reference socket list's coarse locking: trade
// volume is low enough that contention here was never the bottleneck.
type Hub struct {
	mu      sync.Mutex
	sockets map[string]chan types.Trade
}

// NewHub constructs an empty subscriber set.
func NewHub() *Hub {
	return &Hub{sockets: make(map[string]chan types.Trade)}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	var identity string
	for identity == "" {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return
		}
		var msg socketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Event == "jwt" && msg.JWT != "" {
			identity = msg.JWT
		}
	}

	feed := make(chan types.Trade, socketSendBuffer)
	h.mu.Lock()
	h.sockets[identity] = feed
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.sockets, identity)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for trade := range feed {
		msg := tradeMessage{
			LongID: trade.LongID, ShortID: trade.ShortID,
			Amount: trade.Amount.String(), Price: trade.Price.String(),
			Timestamp: trade.Timestamp.Unix(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Error().Err(err).Msg("failed to write trade to socket")
			return
		}
	}
}

// Broadcast fans a matched trade out to every subscriber's feed.
// Subscribers whose feed is full are skipped rather than blocking the
// risk engine's actor loop.
func (h *Hub) Broadcast(trade types.Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, feed := range h.sockets {
		select {
		case feed <- trade:
		default:
			log.Warn().Str("subscriber", id).Msg("dropping trade, subscriber feed is full")
		}
	}
}
