package server

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/model"
	"github.com/sells-group/tallyconv/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeClientError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps pipeline failures to HTTP statuses. Domain failure kinds
// and missing records surface with their message; anything else is an
// internal error and the detail stays in the log.
func writeError(w http.ResponseWriter, err error) {
	if kind, ok := model.KindOf(err); ok {
		var de *model.DomainError
		eris.As(err, &de)
		writeJSON(w, statusForKind(kind), errorResponse{Error: de.Message, Kind: string(kind)})
		return
	}
	if eris.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	zap.L().Error("server: internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func statusForKind(kind model.FailureKind) int {
	switch kind {
	case model.FailureDecode:
		return http.StatusBadRequest
	case model.FailureConversion:
		return http.StatusUnprocessableEntity
	case model.FailureReference:
		return http.StatusNotFound
	case model.FailureUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
