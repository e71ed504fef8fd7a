package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"dinepos-order-service/internal/config"
	"dinepos-order-service/internal/http/handlers"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/queue"
	"dinepos-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/pos", func(r chi.Router) {
		r.Use(middleware.OutletAuth(db, cfg.JWTSecret))

		r.Post("/orders", h.OrderCreate)
		r.Get("/orders", h.OrderList)
		r.Get("/orders/{orderId}", h.OrderGet)
		r.Put("/orders/{orderId}", h.OrderUpdate)
		r.Put("/orders/{orderId}/pay", h.OrderPay)
		r.Put("/orders/{orderId}/settle-due", h.OrderSettleDue)
		r.Post("/orders/{orderId}/cancel", h.OrderCancel)
		r.Post("/orders/{orderId}/refund", h.OrderRefund)
		r.Put("/orders/{orderId}/items/{itemId}/status", h.OrderItemStatus)
		r.Get("/orders/{orderId}/receipt", h.OrderReceipt)

		r.Post("/payments", h.PaymentCreate)
		r.Get("/payments", h.PaymentList)

		r.Get("/kitchen/queue", h.KitchenQueue)

		r.Get("/menu", h.MenuList)
		r.Post("/menu", h.MenuCreate)
		r.Put("/menu/{itemId}", h.MenuUpdate)
		r.Delete("/menu/{itemId}", h.MenuDelete)

		r.Get("/tables", h.TableList)
		r.Post("/tables", h.TableCreate)
		r.Put("/tables/{tableId}", h.TableUpdate)
		r.Delete("/tables/{tableId}", h.TableDelete)

		r.Get("/customers", h.CustomerList)
		r.Post("/customers", h.CustomerCreate)
		r.Get("/customers/{customerId}/advance", h.CustomerAdvance)
		r.Post("/customers/{customerId}/advance/apply", h.CustomerApplyAdvance)

		r.Get("/expenses", h.ExpenseList)
		r.Post("/expenses", h.ExpenseCreate)
		r.Delete("/expenses/{expenseId}", h.ExpenseDelete)

		r.Get("/reports/profit-loss", h.ProfitLoss)
	})

	if wsServer != nil {
		r.Get("/ws/pos/orders", wsServer.OrdersWS)
		r.Get("/ws/pos/kitchen", wsServer.KitchenWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
