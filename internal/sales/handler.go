package sales

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

// ServicePort is the sales service contract used by the handler.
type ServicePort interface {
	Create(ctx context.Context, input CreateInput) (Sale, error)
	Cancel(ctx context.Context, id int64) (Sale, error)
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) (ListResult, error)
}

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(httpx.IdempotencyKey).Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Post("/{id}/cancel", h.cancel)
}

type itemView struct {
	ProductID    int64  `json:"product_id"`
	Quantity     int64  `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	CostSnapshot string `json:"cost_snapshot"`
	Subtotal     string `json:"subtotal"`
	ItemProfit   string `json:"item_profit"`
}

type saleView struct {
	ID         int64      `json:"id"`
	Customer   string     `json:"customer"`
	Status     Status     `json:"status"`
	Total      string     `json:"total"`
	Profit     string     `json:"profit"`
	CanceledAt *time.Time `json:"canceled_at"`
	CreatedAt  time.Time  `json:"created_at"`
	Items      []itemView `json:"items,omitempty"`
}

func toView(s Sale) saleView {
	view := saleView{
		ID:         s.ID,
		Customer:   s.Customer,
		Status:     s.Status,
		Total:      money.Format(s.Total),
		Profit:     money.Format(s.Profit),
		CanceledAt: s.CanceledAt,
		CreatedAt:  s.CreatedAt,
	}
	for _, it := range s.Items {
		view.Items = append(view.Items, itemView{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			UnitPrice:    money.Format(it.UnitPrice),
			CostSnapshot: money.Format(it.CostSnapshot),
			Subtotal:     money.Format(it.Subtotal),
			ItemProfit:   money.Format(it.ItemProfit),
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
	sale, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Sale recorded.",
		"sale":    toView(sale),
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, "cancel sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Sale canceled and stock reverted.",
		"sale":    toView(sale),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(sale))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.service.List(r.Context(), ListFilter{
		Customer: q.Get("customer"),
		Status:   Status(q.Get("status")),
		Page:     shared.PageRequest{Page: httpx.QueryInt(r, "page"), PerPage: httpx.QueryInt(r, "per_page")},
	})
	if err != nil {
		h.fail(w, "list sales", err)
		return
	}
	views := make([]saleView, 0, len(res.Items))
	for _, s := range res.Items {
		views = append(views, toView(s))
	}
	httpx.JSON(w, http.StatusOK, httpx.Page{Data: views, Pagination: res.Pagination})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
