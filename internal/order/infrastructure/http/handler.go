package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/orderflow/internal/order/application"
	"github.com/dmehra2102/orderflow/internal/order/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/httpx"
	"github.com/dmehra2102/orderflow/pkg/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	dateLayout           = "2006-01-02"
)

type IdempotencyStore interface {
	Key(scope, subject, key string) string
	Claim(ctx context.Context, key, fingerprint string) ([]byte, bool, error)
	Complete(ctx context.Context, key, fingerprint string, response []byte) error
	Release(ctx context.Context, key string) error
}

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	verifier *auth.Verifier
	idem     IdempotencyStore
	tracer   trace.Tracer
}

// NewHandler wires the order API. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(log *slog.Logger, service *application.Service, verifier *auth.Verifier, idem IdempotencyStore) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		idem:     idem,
		tracer:   otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type lineItemResp struct {
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type orderResp struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customerId"`
	OrderDate   string          `json:"orderDate"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	LineItems   []lineItemResp  `json:"lineItems"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type productResp struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func toResp(o domain.Order) orderResp {
	items := make([]lineItemResp, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, lineItemResp{ProductID: li.ProductID, Price: li.Price, Quantity: li.Quantity})
	}
	return orderResp{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		OrderDate:   o.Date.Format(dateLayout),
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		LineItems:   items,
		CreatedAt:   o.CreatedAt,
	}
}

func toRespList(orders []domain.Order) []orderResp {
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResp(o))
	}
	return out
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.verifier))
		r.Get("/orders", h.listOrders)
		r.Get("/orders/admin", h.listAllOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders", h.createOrder)
		r.Get("/catalog", h.catalog)
	})
	return r
}

func caller(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("product.id", req.ProductID), attribute.Int("order.quantity", req.Quantity))

	p := caller(r)
	place := func() ([]byte, error) {
		o, err := h.service.CreateOrder(ctx, p, domain.PlaceOrder{ProductID: req.ProductID, Quantity: req.Quantity})
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.String("order.id", o.ID))
		return json.Marshal(toResp(o))
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" || h.idem == nil {
		body, err := place()
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		writeRaw(w, http.StatusCreated, body)
		return
	}

	idemKey := h.idem.Key("orders", p.ID, key)
	fp := idempotency.Fingerprint(req.ProductID, strconv.Itoa(req.Quantity))
	stored, claimed, err := h.idem.Claim(ctx, idemKey, fp)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if !claimed {
		w.Header().Set(ReplayedHeader, "true")
		writeRaw(w, http.StatusOK, stored)
		return
	}

	body, err := place()
	if err != nil {
		if rErr := h.idem.Release(context.WithoutCancel(ctx), idemKey); rErr != nil {
			h.log.Error("idempotency release failed", "key", idemKey, "err", rErr)
		}
		h.writeErr(w, r, err)
		return
	}
	if err := h.idem.Complete(context.WithoutCancel(ctx), idemKey, fp, body); err != nil {
		h.log.Error("idempotency complete failed", "key", idemKey, "err", err)
	}
	writeRaw(w, http.StatusCreated, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	orders, err := h.service.ListOrders(ctx, caller(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRespList(orders))
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListAllOrders")
	defer span.End()

	orders, err := h.service.ListAllOrders(ctx, caller(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRespList(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	o, err := h.service.GetOrder(ctx, caller(r), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Catalog")
	defer span.End()

	products, err := h.service.Catalog(ctx, caller(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, productResp{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: p.Quantity})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrMalformedBody), errors.Is(err, domain.ErrInvalidOrder):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.KindForbidden, "access denied")
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		httpx.WriteError(w, http.StatusConflict, httpx.KindInsufficientStock, err.Error())
	case errors.Is(err, idempotency.ErrInFlight):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "a request with this Idempotency-Key is still being processed")
	case errors.Is(err, idempotency.ErrMismatch):
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.KindConflict, "Idempotency-Key was already used with a different request")
	case errors.Is(err, domain.ErrRemoteUnavailable):
		h.log.Warn("inventory unavailable", "method", r.Method, "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, httpx.KindRemoteUnavailable, "inventory service unavailable")
	default:
		h.log.Error("order request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
