package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/orderflow/internal/product/application"
	"github.com/dmehra2102/orderflow/internal/product/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/httpx"
)

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	verifier *auth.Verifier
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, verifier *auth.Verifier) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		tracer:   otel.Tracer("product-http"),
	}
}

type productResp struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toResp(p domain.Product) productResp {
	return productResp{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  p.Quantity,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type createProductReq struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Absent and null fields decode to nil and are left unchanged.
type patchProductReq struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

type stockReq struct {
	Quantity int `json:"quantity"`
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
		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}", h.getProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/products/{id}/reserve", h.reserveStock)
		r.Post("/products/{id}/release", h.releaseStock)
	})
	return r
}

func caller(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.List(ctx, caller(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toResp(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "GetProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	p, err := h.service.Get(ctx, caller(r), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req createProductReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	p, err := h.service.Create(ctx, caller(r), domain.Product{
		ID:       req.ID,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResp(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	var req patchProductReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	p, err := h.service.Update(ctx, caller(r), id, domain.ProductPatch{
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := h.service.Delete(ctx, caller(r), id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, "ReserveStock", h.service.Reserve)
}

func (h *Handler) releaseStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, "ReleaseStock", h.service.Release)
}

type stockFunc func(ctx context.Context, caller auth.Principal, id string, qty int) error

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request, name string, fn stockFunc) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), name, trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	var req stockReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int("stock.quantity", req.Quantity))
	if err := fn(ctx, caller(r), id, req.Quantity); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrMalformedBody), errors.Is(err, domain.ErrInvalidProduct):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.KindForbidden, "access denied")
	case errors.Is(err, domain.ErrProductNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		httpx.WriteError(w, http.StatusConflict, httpx.KindInsufficientStock, err.Error())
	default:
		h.log.Error("product request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
