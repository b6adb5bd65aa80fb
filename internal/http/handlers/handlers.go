package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/http/response"
)

const maxBodyBytes = 1 << 20

// decodeJSON writes the 400 itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, "Request body is required")
			return false
		}
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			response.FromError(w, r, ve, false)
			return false
		}
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func passthrough(next http.Handler) http.Handler { return next }
