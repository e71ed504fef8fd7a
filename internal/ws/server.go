package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"dinepos-order-service/internal/auth"
	"dinepos-order-service/internal/config"
	"dinepos-order-service/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	ordersRealtime  *ordersRealtime
	kitchenRealtime *kitchenRealtime
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	srv.ordersRealtime = newOrdersRealtime(db, logger)
	srv.kitchenRealtime = newKitchenRealtime(db, logger)
	return srv
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

// hub keys are the outlet id as text, matching the pg_notify payload.
type hub struct {
	db      *pgxpool.Pool
	logger  *zap.Logger
	channel string

	started sync.Once
	mu      sync.RWMutex
	subs    map[string]map[*wsClient]struct{}

	onNotify func(ctx context.Context, h *hub, outletKey string)
}

func newHub(db *pgxpool.Pool, logger *zap.Logger, channel string, onNotify func(ctx context.Context, h *hub, outletKey string)) *hub {
	return &hub{
		db:       db,
		logger:   logger,
		channel:  channel,
		subs:     make(map[string]map[*wsClient]struct{}),
		onNotify: onNotify,
	}
}

func (h *hub) ensureStarted() {
	h.started.Do(func() {
		go h.listenLoop(context.Background())
	})
}

func (h *hub) subscribe(outletKey string, client *wsClient) (unsubscribe func()) {
	key := strings.TrimSpace(outletKey)
	if key == "" {
		return func() {}
	}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*wsClient]struct{})
	}
	h.subs[key][client] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		clients := h.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
}

func (h *hub) broadcast(outletKey string, message any) {
	key := strings.TrimSpace(outletKey)
	if key == "" {
		return
	}

	h.mu.RLock()
	clientsMap := h.subs[key]
	clients := make([]*wsClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			h.mu.Lock()
			if current := h.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *hub) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := h.db.Acquire(ctx)
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("LISTEN acquire failed", zap.String("channel", h.channel), zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		_, err = conn.Exec(ctx, `listen `+h.channel)
		if err != nil {
			conn.Release()
			if h.logger != nil {
				h.logger.Warn("LISTEN failed", zap.String("channel", h.channel), zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			outletKey := strings.TrimSpace(n.Payload)
			if outletKey == "" {
				continue
			}
			h.onNotify(ctx, h, outletKey)
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

type ordersRealtime struct {
	*hub
}

func newOrdersRealtime(db *pgxpool.Pool, logger *zap.Logger) *ordersRealtime {
	or := &ordersRealtime{}
	or.hub = newHub(db, logger, "pos_order_updates", func(ctx context.Context, h *hub, outletKey string) {
		outletID, err := parseInt64(outletKey)
		if err != nil {
			h.broadcast(outletKey, map[string]any{"type": "orders.refresh", "updatedAt": time.Now()})
			return
		}
		orders, fetchErr := fetchOpenOrders(ctx, h.db, outletID)
		if fetchErr != nil {
			h.broadcast(outletKey, map[string]any{"type": "orders.refresh", "updatedAt": time.Now()})
			return
		}
		h.broadcast(outletKey, map[string]any{"type": "orders.state", "data": orders})
	})
	return or
}

type kitchenRealtime struct {
	*hub
}

func newKitchenRealtime(db *pgxpool.Pool, logger *zap.Logger) *kitchenRealtime {
	kr := &kitchenRealtime{}
	kr.hub = newHub(db, logger, "pos_kitchen_updates", func(ctx context.Context, h *hub, outletKey string) {
		outletID, err := parseInt64(outletKey)
		if err != nil {
			h.broadcast(outletKey, map[string]any{"type": "kitchen.refresh", "updatedAt": time.Now()})
			return
		}
		tickets, fetchErr := fetchKitchenTickets(ctx, h.db, outletID)
		if fetchErr != nil {
			h.broadcast(outletKey, map[string]any{"type": "kitchen.refresh", "updatedAt": time.Now()})
			return
		}
		h.broadcast(outletKey, map[string]any{"type": "kitchen.state", "data": tickets})
	})
	return kr
}

type openOrderSnapshot struct {
	ID            int64     `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	OrderType     string    `json:"orderType"`
	TableNumber   *string   `json:"tableNumber"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalAmount   float64   `json:"totalAmount"`
	DueAmount     float64   `json:"dueAmount"`
	ItemCount     int64     `json:"itemCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func fetchOpenOrders(ctx context.Context, db *pgxpool.Pool, outletID int64) ([]openOrderSnapshot, error) {
	rows, err := db.Query(ctx, `
		select o.id, o.order_number, o.order_type, dt.table_number,
		       o.status, o.payment_status, o.total_amount, o.due_amount,
		       (select count(*) from order_items oi where oi.order_id = o.id and oi.status <> 'CANCELLED'),
		       o.updated_at
		from orders o
		left join dining_tables dt on dt.id = o.table_id
		where o.outlet_id = $1 and o.status = 'OPEN'
		order by o.created_at asc
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]openOrderSnapshot, 0)
	for rows.Next() {
		var (
			o           openOrderSnapshot
			tableNumber pgtype.Text
			total       pgtype.Numeric
			due         pgtype.Numeric
		)
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.OrderType, &tableNumber,
			&o.Status, &o.PaymentStatus, &total, &due, &o.ItemCount, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if tableNumber.Valid {
			o.TableNumber = &tableNumber.String
		}
		o.TotalAmount = utils.NumericToFloat64(total)
		o.DueAmount = utils.NumericToFloat64(due)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type kitchenTicketSnapshot struct {
	ItemID      int64     `json:"itemId"`
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	TableNumber *string   `json:"tableNumber"`
	MenuName    string    `json:"menuName"`
	Quantity    int32     `json:"quantity"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes"`
	QueuedAt    time.Time `json:"queuedAt"`
}

func fetchKitchenTickets(ctx context.Context, db *pgxpool.Pool, outletID int64) ([]kitchenTicketSnapshot, error) {
	rows, err := db.Query(ctx, `
		select oi.id, o.id, o.order_number, dt.table_number,
		       oi.menu_name, oi.quantity, oi.status, oi.notes, oi.created_at
		from order_items oi
		join orders o on o.id = oi.order_id
		left join dining_tables dt on dt.id = o.table_id
		where o.outlet_id = $1 and o.status = 'OPEN'
		  and oi.status in ('QUEUED', 'PREPARING', 'READY')
		order by oi.created_at asc
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]kitchenTicketSnapshot, 0)
	for rows.Next() {
		var (
			t           kitchenTicketSnapshot
			tableNumber pgtype.Text
			notes       pgtype.Text
		)
		if err := rows.Scan(&t.ItemID, &t.OrderID, &t.OrderNumber, &tableNumber,
			&t.MenuName, &t.Quantity, &t.Status, &notes, &t.QueuedAt); err != nil {
			return nil, err
		}
		if tableNumber.Valid {
			t.TableNumber = &tableNumber.String
		}
		if notes.Valid {
			t.Notes = &notes.String
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *Server) authorizeWS(conn *websocket.Conn, r *http.Request) (int64, bool) {
	token := strings.TrimSpace(strings.TrimPrefix(r.URL.Query().Get("token"), "Bearer "))
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil || claims.OutletID == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return 0, false
	}
	outletID, err := parseInt64(*claims.OutletID)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return 0, false
	}
	return outletID, true
}

// OrdersWS streams the outlet's open orders. A full snapshot goes out on
// connect, on every order change, and on a slow interval so displays
// recover from missed notifications.
func (s *Server) OrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outletID, ok := s.authorizeWS(conn, r)
	if !ok {
		return
	}

	s.ordersRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsClient{conn: conn}
	unsubscribe := s.ordersRealtime.subscribe(fmt.Sprint(outletID), client)
	defer unsubscribe()

	if orders, fetchErr := fetchOpenOrders(ctx, s.DB, outletID); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "orders.state", "data": orders})
	}

	s.serveClient(ctx, conn, client, s.Config.WSOrdersPollInterval, func() {
		if orders, fetchErr := fetchOpenOrders(ctx, s.DB, outletID); fetchErr == nil {
			_ = client.writeJSON(map[string]any{"type": "orders.state", "data": orders})
		}
	})
}

// KitchenWS streams the kitchen ticket queue for the outlet.
func (s *Server) KitchenWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outletID, ok := s.authorizeWS(conn, r)
	if !ok {
		return
	}

	s.kitchenRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsClient{conn: conn}
	unsubscribe := s.kitchenRealtime.subscribe(fmt.Sprint(outletID), client)
	defer unsubscribe()

	if tickets, fetchErr := fetchKitchenTickets(ctx, s.DB, outletID); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "kitchen.state", "data": tickets})
	}

	s.serveClient(ctx, conn, client, s.Config.WSKitchenPollInterval, func() {
		if tickets, fetchErr := fetchKitchenTickets(ctx, s.DB, outletID); fetchErr == nil {
			_ = client.writeJSON(map[string]any{"type": "kitchen.state", "data": tickets})
		}
	})
}

func (s *Server) serveClient(ctx context.Context, conn *websocket.Conn, client *wsClient, refreshEvery time.Duration, resend func()) {
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}
	refresh := time.NewTicker(refreshEvery)
	defer refresh.Stop()

	heartbeat := time.NewTicker(s.heartbeatInterval())
	defer heartbeat.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-refresh.C:
			resend()
		case <-heartbeat.C:
			if err := client.writeJSON(map[string]any{"type": "ping", "at": time.Now()}); err != nil {
				return
			}
		}
	}
}

func (s *Server) heartbeatInterval() time.Duration {
	if s.Config.WSHeartbeatInterval > 0 {
		return s.Config.WSHeartbeatInterval
	}
	return 25 * time.Second
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func parseInt64(value string) (int64, error) {
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}
