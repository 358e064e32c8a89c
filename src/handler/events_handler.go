package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"dcaengine/src/model"
)

type eventReader interface {
	FindByOrderID(ctx context.Context, orderID uint) ([]model.OrderEvent, error)
}

// ListOrderEventsHandler returns the audit trail of one order, oldest
// first.
func ListOrderEventsHandler(events eventReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		results, err := events.FindByOrderID(r.Context(), orderID)
		if err != nil {
			logger.WithError(err).Error("failed to fetch order events")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if results == nil {
			results = []model.OrderEvent{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(results); err != nil {
			logger.WithError(err).Error("failed to encode order events response")
		}
	}
}
