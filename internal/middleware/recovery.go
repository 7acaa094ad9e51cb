package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"authgate/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				slog.ErrorContext(r.Context(), "panic recovered",
					"error", fmt.Sprintf("%v", recovered),
					"stack", string(debug.Stack()),
				)
				WriteError(w, r, apierror.New(apierror.KindInternalError))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
