package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/httperr"
)

// Recover 攔截 handler panic，記錄堆疊並回 500 JSON。
// log 為 nil 時退回 chi 的 Recoverer。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		return chimid.Recoverer
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("http.panic",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("req_id", GetReqId(r)),
					slog.String("stack", string(debug.Stack())),
				)
				if r.Header.Get("Connection") != "Upgrade" {
					httperr.Errs(w, errs.Fatalf("internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
