package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/audit"
	"github.com/ariefcatur/go-custom-orders/internal/inventory"
	"github.com/ariefcatur/go-custom-orders/internal/logx"
)

// StockLedger is implemented by *inventory.Ledger.
type StockLedger interface {
	Reserve(ctx context.Context, lines []inventory.Line, op inventory.Op) (inventory.BatchResult, error)
	Complete(ctx context.Context, lines []inventory.Line, op inventory.Op) (inventory.BatchResult, error)
	Cancel(ctx context.Context, lines []inventory.Line, op inventory.Op) (inventory.BatchResult, error)
	Import(ctx context.Context, lines []inventory.Line, op inventory.Op) (inventory.BatchResult, error)
	Export(ctx context.Context, lines []inventory.Line, op inventory.Op) (inventory.BatchResult, error)
	CheckAvailability(ctx context.Context, lines []inventory.Line) (inventory.AvailabilityReport, error)
	Adjust(ctx context.Context, in inventory.AdjustInput) (inventory.Inventory, error)
	Get(ctx context.Context, productID int64, variantID *int64) (inventory.Inventory, error)
	History(ctx context.Context, inventoryID string, limit int) ([]audit.InventoryEntry, error)
}

type InventoryHandler struct {
	Ledger StockLedger
	Log    *zap.Logger
}

type batchReq struct {
	Items     []inventory.Line `json:"items"`
	Reference string           `json:"reference"`
	Note      string           `json:"note"`
}

type adjustReq struct {
	ProductID     int64  `json:"product_id"`
	VariantID     *int64 `json:"variant_id,omitempty"`
	CurrentStock  *int   `json:"current_stock"`
	ReservedStock *int   `json:"reserved_stock"`
	MinStockAlert *int   `json:"min_stock_alert,omitempty"`
	Note          string `json:"note"`
}

type batchFunc func(ctx context.Context, lines []inventory.Line, op inventory.Op) (inventory.BatchResult, error)

func (h *InventoryHandler) Register(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/{id}/history", h.history)
		r.Post("/check", h.check)

		r.Group(func(r chi.Router) {
			r.Use(requireActor)
			r.Post("/reserve", h.batch(h.Ledger.Reserve, "reserved"))
			r.Post("/complete", h.batch(h.Ledger.Complete, "completed"))
			r.Post("/cancel", h.batch(h.Ledger.Cancel, "cancelled"))
			r.Post("/import", h.batch(h.Ledger.Import, "imported"))
			r.Post("/export", h.batch(h.Ledger.Export, "exported"))
			r.Post("/adjust", h.adjust)
		})
	})
}

func (h *InventoryHandler) log() *zap.Logger { return logx.OrNop(h.Log) }

// batch serves the all-or-nothing endpoints; the response flag names what happened.
func (h *InventoryHandler) batch(run batchFunc, flag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.log(), err)
			return
		}
		res, err := run(r.Context(), req.Items, inventory.Op{
			ActorID:   actorFrom(r.Context()),
			Reference: req.Reference,
			Note:      req.Note,
		})
		if err != nil {
			writeError(w, r, h.log(), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{flag: true, "items": res.Lines})
	}
}

func (h *InventoryHandler) check(w http.ResponseWriter, r *http.Request) {
	var req batchReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	rep, err := h.Ledger.CheckAvailability(r.Context(), req.Items)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	if req.CurrentStock == nil || req.ReservedStock == nil {
		writeError(w, r, h.log(), apperr.Validation("current_stock and reserved_stock are required"))
		return
	}
	inv, err := h.Ledger.Adjust(r.Context(), inventory.AdjustInput{
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		NewCurrent:    *req.CurrentStock,
		NewReserved:   *req.ReservedStock,
		MinStockAlert: req.MinStockAlert,
		Note:          req.Note,
		ActorID:       actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, r, h.log(), apperr.Validation("product_id must be a positive integer"))
		return
	}
	var variantID *int64
	if v := q.Get("variant_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, h.log(), apperr.Validation("variant_id must be a positive integer"))
			return
		}
		variantID = &id
	}
	inv, err := h.Ledger.Get(r.Context(), productID, variantID)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, r, h.log(), apperr.NotFound("inventory %s not found", id))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Ledger.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	if entries == nil {
		entries = []audit.InventoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory_id": id, "entries": entries})
}
