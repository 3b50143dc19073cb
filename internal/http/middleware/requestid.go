package middleware

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLength = 128
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// RequestID reuses an incoming X-Request-ID or generates a ULID, stores it in
// the request context and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = ulid.Make().String()
		}

		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
