package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"hp-booking/internal/model"
	"hp-booking/pkg/apierror"
)

// Timeout bounds JSON endpoints. The preset Content-Type only survives when
// the deadline fires; a completed handler's headers replace it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apierror.CodeRequestTimeout,
			Message: "Request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		limited := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			limited.ServeHTTP(w, r)
		})
	}
}
