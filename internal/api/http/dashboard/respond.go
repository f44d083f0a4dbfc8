package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oshokin/smart-office/internal/actuation"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

type problemResponse struct {
	Status  string `json:"status"`
	Problem string `json:"problem,omitempty"`
}

// respond writes data as JSON with the given status.
func respond(ctx context.Context, w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.WarnKV(ctx, "Failed to write response", "error", err)
	}
}

func respondOk(ctx context.Context, w http.ResponseWriter) {
	respond(ctx, w, http.StatusOK, problemResponse{Status: "OK"})
}

func respondProblem(ctx context.Context, w http.ResponseWriter, code int, problem string) {
	respond(ctx, w, code, problemResponse{Status: "ERROR", Problem: problem})
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		validationErr *office.ValidationError
		transportErr  *office.TransportError
		networkErr    *office.NetworkError
	)

	code := http.StatusInternalServerError

	switch {
	case errors.As(err, &validationErr):
		code = http.StatusBadRequest
	case errors.Is(err, actuation.ErrAttemptInProgress):
		code = http.StatusConflict
	case errors.As(err, &transportErr), errors.As(err, &networkErr):
		code = http.StatusBadGateway
	}

	if code == http.StatusInternalServerError {
		logger.ErrorKV(ctx, "Request failed", "error", err)
	}

	respondProblem(ctx, w, code, err.Error())
}
