package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	apperrors "noqbot/pkg/errors"
	"strings"
)

// DecodeJSON decodes a request body into dst. Unknown fields are rejected so
// that only the fields a request type declares can ever reach the store.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("Request body cannot be empty")
		case errors.As(err, &syntaxErr):
			return apperrors.InvalidInput(fmt.Sprintf("Malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return apperrors.InvalidInput(fmt.Sprintf("Invalid type for field %q", typeErr.Field))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return apperrors.InvalidInput(fmt.Sprintf("Unknown field %s", field))
		default:
			return apperrors.InvalidInput("Invalid request body")
		}
	}

	if decoder.More() {
		return apperrors.InvalidInput("Request body must contain a single JSON object")
	}
	return nil
}

// QueryString returns the trimmed value of a query parameter.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
