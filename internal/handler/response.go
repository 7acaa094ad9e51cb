package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"authgate/internal/middleware"
	"authgate/pkg/apierror"
)

const defaultMaxBodyBytes int64 = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any) {
	middleware.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, err)
}

const unknownFieldPrefix = "json: unknown field "

// decodeBody reads a single JSON object from the request body into dst.
// Properties that dst does not declare are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return apierror.Validation(map[string]string{"body": "request body too large"})
		case errors.Is(err, io.EOF):
			return apierror.Validation(map[string]string{"body": "request body is required"})
		case strings.HasPrefix(err.Error(), unknownFieldPrefix):
			field := strings.TrimPrefix(err.Error(), unknownFieldPrefix)
			return apierror.Validation(map[string]string{"body": "property " + field + " should not exist"})
		default:
			return apierror.Validation(map[string]string{"body": "invalid JSON body"})
		}
	}
	if decoder.More() {
		return apierror.Validation(map[string]string{"body": "request body must contain a single JSON object"})
	}
	return nil
}
