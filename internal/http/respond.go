package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/inopsio/platform/internal/apperrors"
)

// errorBody is the wire shape of every error response: a single
// human-readable detail string. The machine-distinguishable kind lives in
// the status code and server logs, not in the body.
type errorBody struct {
	Detail string `json:"detail"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes an error response with an explicit status and message.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, errorBody{Detail: detail})
}

// WriteError maps err through the apperrors taxonomy onto a status code and
// detail body. Internal errors are logged with the correlation id and
// masked in the response.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	}
	WriteDetail(w, status, apperrors.Detail(err))
}
