package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"dcaengine/src/auth"
	"dcaengine/src/engine"
	"dcaengine/src/model"
	"dcaengine/src/orders"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*model.Order, error)
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, orderID uint, caller string) error
}

type orderReader interface {
	GetOrder(ctx context.Context, orderID uint) (*model.Order, error)
}

type orderLister interface {
	ListOrders(ctx context.Context, owner string, limit, offset int) (*orders.OrderPage, error)
}

// CreateOrderHandler registers a new recurring order for the
// authenticated caller, collecting the deposit into custody.
func CreateOrderHandler(svc orderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload orders.CreateOrderInput
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid create order payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		payload.Owner = user.Account

		order, err := svc.CreateOrder(r.Context(), payload)
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrInvalidAmount),
				errors.Is(err, orders.ErrInvalidAsset),
				errors.Is(err, orders.ErrIntervalTooShort):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, engine.ErrReentrantCall):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				logger.WithError(err).Error("failed to create order")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.WithError(err).Error("failed to encode create order response")
		}
	}
}

// CancelOrderHandler cancels one of the caller's active orders and
// triggers the refund of the remaining balance.
func CancelOrderHandler(svc orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		if err := svc.CancelOrder(r.Context(), orderID, user.Account); err != nil {
			switch {
			case errors.Is(err, orders.ErrOrderNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, orders.ErrUnauthorizedCancellation):
				http.Error(w, err.Error(), http.StatusForbidden)
			case errors.Is(err, orders.ErrOrderNotActive):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, engine.ErrReentrantCall):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				logger.WithError(err).Error("failed to cancel order")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// GetOrderHandler fetches a single order by id.
func GetOrderHandler(svc orderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			logger.WithError(err).Error("failed to fetch order")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.WithError(err).Error("failed to encode order response")
		}
	}
}

// ListOrdersHandler lists the authenticated caller's orders.
// Supports pagination; the response carries the page plus the total count.
func ListOrdersHandler(svc orderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		result, err := svc.ListOrders(r.Context(), user.Account, pageSize, offset)
		if err != nil {
			logger.WithError(err).Error("failed to list orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.WithError(err).Error("failed to encode order list response")
		}
	}
}

func parseOrderID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
