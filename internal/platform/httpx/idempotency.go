package httpx

import (
	"net/http"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// IdempotencyHeader is the request header carrying a client generated UUID.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyKey validates the optional Idempotency-Key header and stores it in
// the request context for services to claim.
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdempotencyHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		key, err := shared.ParseIdempotencyKey(raw)
		if err != nil {
			RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdempotencyKey(r.Context(), key)))
	})
}

// Page is the JSON envelope of paginated listings.
type Page struct {
	Data any `json:"data"`
	shared.Pagination
}
