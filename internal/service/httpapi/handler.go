package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

const (
	healthMessage   = "Order Service is running"
	maxRequestBytes = 1 << 20
)

// OrderService - операции над заказами, доступные через HTTP.
type OrderService interface {
	CreateOrder(ctx context.Context, candidate domain.Order) (domain.Order, error)
	GetByID(ctx context.Context, id int64) (domain.Order, error)
	GetAll(ctx context.Context) ([]domain.Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error)
}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics включает HTTP метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithAllowedOrigins задаёт список origin для CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) > 0 {
			h.allowedOrigins = origins
		}
	}
}

// Handler - HTTP API сервиса заказов.
type Handler struct {
	svc            OrderService
	logger         *log.Entry
	metrics        *metrics.OrderMetrics
	allowedOrigins []string
}

// NewHandler создаёт HTTP API поверх сервиса заказов.
func NewHandler(svc OrderService, options ...Option) *Handler {
	h := &Handler{
		svc:            svc,
		allowedOrigins: []string{"*"},
	}
	for _, option := range options {
		option(h)
	}
	if h.logger == nil {
		h.logger = log.WithField("component", "http")
	}
	return h
}

// Routes собирает chi router со всеми middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, "traceparent"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(traceRequests)
	r.Use(h.instrument)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/health", h.health)
		r.Get("/user/{userId}", h.listUserOrders)
		r.Get("/{id}", h.getOrder)
	})

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, messageValidationFailed, map[string]string{
			"body": "Malformed JSON request body",
		})
		return
	}
	if fields := req.validate(); len(fields) > 0 {
		writeError(w, http.StatusBadRequest, messageValidationFailed, fields)
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), req.toDomain())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Order ID must be a positive integer")
	if !ok {
		return
	}

	order, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.GetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", "User ID must be a positive integer")
	if !ok {
		return
	}

	orders, err := h.svc.GetByUserID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthMessage))
}

// pathID разбирает положительный идентификатор из пути; при ошибке сам пишет ответ 400.
func pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, message, nil)
		return 0, false
	}
	return id, true
}
