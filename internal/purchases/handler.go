package purchases

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ServicePort is the purchase service contract used by the handler.
type ServicePort interface {
	Create(ctx context.Context, input CreateInput) (CreateResult, error)
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, filter ListFilter) (ListResult, error)
}

// Handler wires HTTP endpoints for purchases.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs the purchases handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(httpx.IdempotencyKey).Post("/", h.create)
	r.Get("/{id}", h.show)
}

type itemView struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type purchaseView struct {
	ID        int64      `json:"id"`
	Supplier  string     `json:"supplier"`
	Total     string     `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []itemView `json:"items,omitempty"`
}

type updatedProductView struct {
	ID      int64  `json:"id"`
	Stock   int64  `json:"stock"`
	AvgCost string `json:"avg_cost"`
}

func toView(p Purchase) purchaseView {
	view := purchaseView{ID: p.ID, Supplier: p.Supplier, Total: money.Format(p.Total), CreatedAt: p.CreatedAt}
	for _, it := range p.Items {
		view.Items = append(view.Items, itemView{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: money.Format(it.UnitPrice),
			Subtotal:  money.Format(it.Subtotal),
		})
	}
	return view
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create purchase", err)
		return
	}
	updated := make([]updatedProductView, 0, len(result.UpdatedProducts))
	for _, p := range result.UpdatedProducts {
		updated = append(updated, updatedProductView{ID: p.ID, Stock: p.Stock, AvgCost: money.Format(p.AvgCost)})
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":          "Purchase recorded.",
		"purchase":         toView(result.Purchase),
		"updated_products": updated,
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
		h.fail(w, "get purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.List(r.Context(), ListFilter{
		Supplier: r.URL.Query().Get("supplier"),
		Page:     shared.PageRequest{Page: httpx.QueryInt(r, "page"), PerPage: httpx.QueryInt(r, "per_page")},
	})
	if err != nil {
		h.fail(w, "list purchases", err)
		return
	}
	views := make([]purchaseView, 0, len(res.Items))
	for _, p := range res.Items {
		views = append(views, toView(p))
	}
	httpx.JSON(w, http.StatusOK, httpx.Page{Data: views, Pagination: res.Pagination})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
