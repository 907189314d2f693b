package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/logx"
	"github.com/ariefcatur/go-custom-orders/internal/orders"
)

// OrderService is implemented by *orders.Service.
type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateInput) (orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	AddItem(ctx context.Context, orderID string, in orders.ItemInput, actorID string) (orders.Order, error)
	UpdateItem(ctx context.Context, orderID, itemID string, upd orders.ItemUpdate, actorID string) (orders.Order, error)
	RemoveItem(ctx context.Context, orderID, itemID, actorID string) (orders.Order, error)
	AddItemVariant(ctx context.Context, orderID, itemID string, in orders.VariantInput, actorID string) (orders.Order, error)
	RemoveItemVariant(ctx context.Context, orderID, itemID, variantID, actorID string) (orders.Order, error)
	UpdateStatus(ctx context.Context, orderID, status, actorID string) (orders.Order, error)
}

// StatusCache is implemented by *redisx.StatusCache.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (string, bool)
	Set(ctx context.Context, orderID, status string) error
}

type OrdersHandler struct {
	Orders OrderService
	Cache  StatusCache // optional
	Log    *zap.Logger
}

type statusReq struct {
	Status string `json:"status"`
}

type statusResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Cached  bool   `json:"cached"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getStatus)

		r.Group(func(r chi.Router) {
			r.Use(requireActor)
			r.Post("/", h.createOrder)
			r.Patch("/{id}/status", h.updateStatus)
			r.Post("/{id}/items", h.addItem)
			r.Put("/{id}/items/{itemID}", h.updateItem)
			r.Delete("/{id}/items/{itemID}", h.removeItem)
			r.Post("/{id}/items/{itemID}/variants", h.addVariant)
			r.Delete("/{id}/items/{itemID}/variants/{variantID}", h.removeVariant)
		})
	})
}

func (h *OrdersHandler) log() *zap.Logger { return logx.OrNop(h.Log) }

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	req.ActorID = actorFrom(r.Context())

	o, err := h.Orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus reads through the cache; the database stays the source of truth.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.Cache != nil {
		if s, ok := h.Cache.Get(r.Context(), id); ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: s, Cached: true})
			return
		}
	}
	o, err := h.Orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: string(o.Status)})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req orders.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	o, err := h.Orders.AddItem(r.Context(), chi.URLParam(r, "id"), req, actorFrom(r.Context()))
	h.respondOrder(w, r, http.StatusCreated, o, err)
}

func (h *OrdersHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req orders.ItemUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	o, err := h.Orders.UpdateItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req, actorFrom(r.Context()))
	h.respondOrder(w, r, http.StatusOK, o, err)
}

func (h *OrdersHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), actorFrom(r.Context()))
	h.respondOrder(w, r, http.StatusOK, o, err)
}

func (h *OrdersHandler) addVariant(w http.ResponseWriter, r *http.Request) {
	var req orders.VariantInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	o, err := h.Orders.AddItemVariant(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req, actorFrom(r.Context()))
	h.respondOrder(w, r, http.StatusCreated, o, err)
}

func (h *OrdersHandler) removeVariant(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.RemoveItemVariant(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"),
		chi.URLParam(r, "variantID"), actorFrom(r.Context()))
	h.respondOrder(w, r, http.StatusOK, o, err)
}

func (h *OrdersHandler) respondOrder(w http.ResponseWriter, r *http.Request, code int, o orders.Order, err error) {
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, o.ID, string(o.Status)); err != nil {
		h.log().Warn("cache order status", zap.String("order_id", o.ID), zap.Error(err))
	}
}
