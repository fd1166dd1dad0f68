package middleware

import (
	"context"
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxReqIDLen = 128

// RequestID 沿用上游帶來的 X-Request-Id（可見 ASCII 且不超過 128 字元），否則產生 UUID；
// 編號放進 chi 的 RequestIDKey 並回寫到回應標頭。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(chimid.RequestIDHeader)
		if !validReqID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(chimid.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimid.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}

func validReqID(id string) bool {
	if id == "" || len(id) > maxReqIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
