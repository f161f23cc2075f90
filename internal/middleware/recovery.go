package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"hp-booking/internal/model"
	"hp-booking/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				slog.Error("panic recovered", "path", r.URL.Path, "error", fmt.Sprintf("%v", recovered), "stack", string(debug.Stack()))
				internal := apierror.Internal()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(internal.HTTPStatus)
				_ = jsonEncode(w, model.APIResponse{
					Success: false,
					Error: &model.APIError{
						Code:    internal.Code,
						Message: internal.Message,
					},
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
