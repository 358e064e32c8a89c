package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"dcaengine/src/engine"
)

type batchExecutor interface {
	ExecuteBatch(ctx context.Context, requests []engine.Request) ([]engine.SliceResult, error)
}

type batchPayload struct {
	Requests []engine.Request `json:"requests"`
}

type batchResponse struct {
	Results []engine.SliceResult `json:"results"`
}

// ExecuteBatchHandler runs an operator-submitted batch of slice
// executions. The response always carries one result per submitted
// request, failed or not; only a malformed request or a rejected
// re-entrant call aborts the whole call.
func ExecuteBatchHandler(eng batchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload batchPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid batch payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if len(payload.Requests) == 0 {
			http.Error(w, "empty batch", http.StatusBadRequest)
			return
		}

		results, err := eng.ExecuteBatch(r.Context(), payload.Requests)
		if err != nil {
			if errors.Is(err, engine.ErrReentrantCall) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			logger.WithError(err).Error("batch execution failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(batchResponse{Results: results}); err != nil {
			logger.WithError(err).Error("failed to encode batch response")
		}
	}
}
