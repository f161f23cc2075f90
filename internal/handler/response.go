package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"hp-booking/internal/middleware"
	"hp-booking/internal/model"
	"hp-booking/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, message string, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// writeError maps err onto the response taxonomy. Anything that is not an
// APIError or a known sentinel becomes a generic 500 and is logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		slog.Error("unhandled error in writeError",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func classifyError(err error) (int, *model.APIError) {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.HTTPStatus, &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
			Fields:  apiErr.Fields,
		}
	case errors.Is(err, model.ErrSessionMissing), errors.Is(err, model.ErrSessionInvalid), errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, &model.APIError{Code: apierror.CodeUnauthorized, Message: "Not authenticated"}
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, &model.APIError{Code: apierror.CodeUnauthorized, Message: "Invalid email or password"}
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, &model.APIError{Code: apierror.CodeForbidden, Message: "Access denied"}
	case errors.Is(err, model.ErrUserAlreadyExists):
		return http.StatusConflict, &model.APIError{Code: apierror.CodeConflict, Message: "Email already registered"}
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, &model.APIError{Code: apierror.CodeBadRequest, Message: "Invalid input"}
	default:
		internal := apierror.Internal()
		return internal.HTTPStatus, &model.APIError{Code: internal.Code, Message: internal.Message}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return apierror.New(apierror.CodeBadRequest, "Invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
