package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"authgate/internal/model"
	"authgate/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

// WriteJSON writes value as the whole response body.
func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, value)
}

// WriteError renders err as the public error envelope. Anything that maps to
// a 500 is reported with the generic internal message and no details.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.From(err)

	kind := apiErr.Kind
	status := kind.HTTPStatus()
	message := apiErr.Message
	details := apiErr.Details
	if status == http.StatusInternalServerError {
		kind = apierror.KindInternalError
		message = kind.DefaultMessage()
		details = nil
	}
	if message == "" {
		message = kind.DefaultMessage()
	}

	WriteJSON(w, status, model.ErrorResponse{
		StatusCode: status,
		Message:    message,
		Error:      string(kind),
		Details:    details,
		Timestamp:  time.Now().UTC(),
		Path:       r.URL.Path,
	})
}
