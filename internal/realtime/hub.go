// Package realtime pushes price changes and admin events to websocket
// clients. Public clients only see PRICE_UPDATE; admin clients see every
// admin event as well.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/makkenzo/ledgerpro-license-api/internal/metrics"
	"github.com/makkenzo/ledgerpro-license-api/internal/pricing"
	"go.uber.org/zap"
)

type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceAdmin  Audience = "admin"
)

const (
	TypePriceUpdate        = "PRICE_UPDATE"
	TypeAdminUpdate        = "ADMIN_UPDATE"
	TypeCustomerRegistered = "CUSTOMER_REGISTERED"
	TypePaymentCaptured    = "PAYMENT_CAPTURED"
	TypePaymentFailed      = "PAYMENT_FAILED"
)

type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type PriceSource interface {
	Current() pricing.Prices
}

type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	SendBufferSize int
	// AllowedOrigins limits browser origins; empty or "*" allows any.
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 512,
		SendBufferSize: 64,
	}
}

type client struct {
	id       uuid.UUID
	audience Audience
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
}

type outbound struct {
	adminOnly bool
	payload   []byte
}

type Hub struct {
	config   Config
	prices   PriceSource
	logger   *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	clients   map[uuid.UUID]*client
	clientsMu sync.RWMutex

	broadcast  chan outbound
	register   chan *client
	unregister chan *client

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewHub(prices PriceSource, cfg Config, logger *zap.Logger) *Hub {
	h := &Hub{
		config:     cfg,
		prices:     prices,
		logger:     logger.Named("RealtimeHub"),
		now:        time.Now,
		clients:    make(map[uuid.UUID]*client),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
	h.logger.Info("Realtime hub started")
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.logger.Info("Realtime hub stopped")
	})
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(c *client) {
	h.clientsMu.Lock()
	h.clients[c.id] = c
	h.clientsMu.Unlock()

	metrics.RealtimeClients.WithLabelValues(string(c.audience)).Inc()
	h.logger.Debug("Client connected", zap.String("client_id", c.id.String()), zap.String("audience", string(c.audience)))
}

func (h *Hub) removeClient(c *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)

	metrics.RealtimeClients.WithLabelValues(string(c.audience)).Dec()
	h.logger.Debug("Client disconnected", zap.String("client_id", c.id.String()))
}

func (h *Hub) closeAllClients() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for _, c := range h.clients {
		close(c.send)
		metrics.RealtimeClients.WithLabelValues(string(c.audience)).Dec()
	}
	h.clients = make(map[uuid.UUID]*client)
}

func (h *Hub) fanOut(msg outbound) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, c := range h.clients {
		if msg.adminOnly && c.audience != AudienceAdmin {
			continue
		}
		select {
		case c.send <- msg.payload:
		default:
			h.logger.Warn("Client send buffer full, dropping message", zap.String("client_id", c.id.String()))
		}
	}
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast buffer full, dropping message")
	}
}

func (h *Hub) encode(msgType string, data any) ([]byte, bool) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: h.now().UTC()})
	if err != nil {
		h.logger.Error("Failed to encode realtime message", zap.String("type", msgType), zap.Error(err))
		return nil, false
	}
	return payload, true
}

// BroadcastPrices sends PRICE_UPDATE to every connected client. It has the
// pricing.Listener signature.
func (h *Hub) BroadcastPrices(p pricing.Prices) {
	if payload, ok := h.encode(TypePriceUpdate, p); ok {
		h.enqueue(outbound{payload: payload})
	}
}

// PublishAdmin sends an admin event to admin clients only.
func (h *Hub) PublishAdmin(eventType string, data any) {
	if payload, ok := h.encode(eventType, data); ok {
		h.enqueue(outbound{adminOnly: true, payload: payload})
	}
}

// ServeWS upgrades the request and attaches the connection to the hub. The
// caller has already decided the audience.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, audience Audience) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	c := &client{
		id:       uuid.New(),
		audience: audience,
		conn:     conn,
		send:     make(chan []byte, h.config.SendBufferSize),
		hub:      h,
	}

	if payload, ok := h.greeting(audience); ok {
		c.send <- payload
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) greeting(audience Audience) ([]byte, bool) {
	prices := h.prices.Current()
	if audience == AudienceAdmin {
		return h.encode(TypeAdminUpdate, map[string]any{
			"prices":    prices,
			"timestamp": h.now().UTC(),
		})
	}
	return h.encode(TypePriceUpdate, prices)
}

func (h *Hub) ClientCount(audience Audience) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	n := 0
	for _, c := range h.clients {
		if c.audience == audience {
			n++
		}
	}
	return n
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// readPump only drains control frames; clients never send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
