package products

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

// ServicePort is the product service contract used by the handler.
type ServicePort interface {
	Register(ctx context.Context, input RegisterInput) (RegisterResult, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	GetProductStock(ctx context.Context, id int64) (StockLevel, error)
}

// Handler wires HTTP endpoints for products.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs the products handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{id}", h.show)
	r.Get("/{id}/stock", h.stock)
}

type productView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AvgCost   string    `json:"avg_cost"`
	SalePrice string    `json:"sale_price"`
	Stock     int64     `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

func toView(p Product) productView {
	return productView{
		ID:        p.ID,
		Name:      p.Name,
		AvgCost:   money.Format(p.AvgCost),
		SalePrice: money.Format(p.SalePrice),
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	views := make([]productView, 0, len(items))
	for _, p := range items {
		views = append(views, toView(p))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Register(r.Context(), input)
	if err != nil {
		h.fail(w, "register product", err)
		return
	}
	message := "Product registered."
	if result.DefaultStockApplied {
		message += " Stock not provided: registered with default stock 1."
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": message,
		"data":    toView(result.Product),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(p))
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	level, err := h.service.GetProductStock(r.Context(), id)
	if err != nil {
		h.fail(w, "get product stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id": level.ProductID,
		"stock":      level.Stock,
		"avg_cost":   money.Format(level.AvgCost),
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
