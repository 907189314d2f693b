package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/inventory"
)

const HeaderActor = "X-User-ID"

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation, apperr.KindInsufficientStock, apperr.KindInsufficientReservation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidStatus:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError maps the error taxonomy to a status. Unexpected errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	body := errorBody{RequestID: middleware.GetReqID(r.Context())}
	kind := apperr.KindOf(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		body.Code, body.Error = "timeout", "request timed out"
		writeJSON(w, http.StatusGatewayTimeout, body)
		return
	case kind == "":
		log.Error("request failed", zap.String("path", r.URL.Path), zap.String("request_id", body.RequestID), zap.Error(err))
		body.Code, body.Error = "internal", "internal error"
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	body.Code, body.Error = string(kind), err.Error()
	var se *inventory.StockError
	if errors.As(err, &se) {
		body.Details = se
	}
	writeJSON(w, statusFor(kind), body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid json: %v", err)
	}
	return nil
}

type actorKey struct{}

// requireActor rejects requests without an actor reference. Authentication happens upstream.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(HeaderActor))
		if actor == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:     HeaderActor + " header is required",
				Code:      "unauthorized",
				RequestID: middleware.GetReqID(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}
