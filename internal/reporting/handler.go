package reporting

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

// OverviewService is the reporting contract used by the handler.
type OverviewService interface {
	Overview(ctx context.Context) (Overview, error)
}

// Handler serves the metrics overview.
type Handler struct {
	logger  *slog.Logger
	service OverviewService
}

// NewHandler constructs the reporting handler.
func NewHandler(logger *slog.Logger, service OverviewService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/overview", h.overview)
}

type overviewView struct {
	ProductsCount  int64  `json:"products_count"`
	PurchasesCount int64  `json:"purchases_count"`
	SalesCount     int64  `json:"sales_count"`
	RevenueMonth   string `json:"revenue_month"`
	ProfitMonth    string `json:"profit_month"`
	RevenueTotal   string `json:"revenue_total"`
	ProfitTotal    string `json:"profit_total"`
	LowStock       int64  `json:"low_stock"`
	MonthLabel     string `json:"month_label"`
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.Error("metrics overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overviewView{
		ProductsCount:  o.ProductsCount,
		PurchasesCount: o.PurchasesCount,
		SalesCount:     o.SalesCount,
		RevenueMonth:   money.Format(o.RevenueMonth),
		ProfitMonth:    money.Format(o.ProfitMonth),
		RevenueTotal:   money.Format(o.RevenueTotal),
		ProfitTotal:    money.Format(o.ProfitTotal),
		LowStock:       o.LowStock,
		MonthLabel:     o.MonthLabel,
	})
}
