package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"dcaengine/src/asset"
	"dcaengine/src/model"
)

type venueWriter interface {
	Upsert(ctx context.Context, venue *model.Venue) error
	Remove(ctx context.Context, name string) error
}

type paramsStore interface {
	Current(ctx context.Context) (*model.EngineParams, error)
	Update(ctx context.Context, params *model.EngineParams) error
}

type liabilitySource interface {
	SumRemainingByAsset(ctx context.Context, inputAsset string) (decimal.Decimal, error)
}

type custodyAccess interface {
	BalanceOf(ctx context.Context, a asset.Asset) (decimal.Decimal, error)
	Pay(ctx context.Context, a asset.Asset, to string, amount decimal.Decimal) error
}

type venuePayload struct {
	Name     string `json:"name"`
	Account  string `json:"account"`
	Endpoint string `json:"endpoint"`
}

// AddVenueHandler whitelists a venue (or re-whitelists and updates an
// existing one).
func AddVenueHandler(venues venueWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload venuePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.Name == "" || payload.Account == "" || payload.Endpoint == "" {
			http.Error(w, "name, account and endpoint are required", http.StatusBadRequest)
			return
		}

		venue := &model.Venue{
			Name:        payload.Name,
			Account:     payload.Account,
			Endpoint:    payload.Endpoint,
			Whitelisted: true,
		}

		if err := venues.Upsert(r.Context(), venue); err != nil {
			logger.WithError(err).Error("failed to whitelist venue")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(venue); err != nil {
			logger.WithError(err).Error("failed to encode venue response")
		}
	}
}

// RemoveVenueHandler removes a venue from the allow-list.
func RemoveVenueHandler(venues venueWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			http.Error(w, "invalid venue name", http.StatusBadRequest)
			return
		}

		if err := venues.Remove(r.Context(), name); err != nil {
			logger.WithError(err).Error("failed to remove venue")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type paramsPayload struct {
	MinIntervalSeconds *int64  `json:"min_interval_seconds,omitempty"`
	FeeBps             *int64  `json:"fee_bps,omitempty"`
	FeeRecipient       *string `json:"fee_recipient,omitempty"`
	MaxSlices          *uint   `json:"max_slices,omitempty"`
}

// UpdateParamsHandler mutates the engine params. A fee above the cap or a
// negative interval rejects the whole call.
func UpdateParamsHandler(params paramsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paramsPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		current, err := params.Current(r.Context())
		if err != nil || current == nil {
			logger.WithError(err).Error("failed to load engine params")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if payload.MinIntervalSeconds != nil {
			if *payload.MinIntervalSeconds < 0 {
				http.Error(w, "min interval must not be negative", http.StatusBadRequest)
				return
			}
			current.MinIntervalSeconds = *payload.MinIntervalSeconds
		}

		if payload.FeeBps != nil {
			if *payload.FeeBps < 0 || *payload.FeeBps > model.MaxFeeBps {
				http.Error(w, "fee above cap", http.StatusBadRequest)
				return
			}
			current.FeeBps = *payload.FeeBps
		}

		if payload.FeeRecipient != nil {
			current.FeeRecipient = *payload.FeeRecipient
		}

		if payload.MaxSlices != nil {
			current.MaxSlices = *payload.MaxSlices
		}

		if err := params.Update(r.Context(), current); err != nil {
			logger.WithError(err).Error("failed to update engine params")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(current); err != nil {
			logger.WithError(err).Error("failed to encode params response")
		}
	}
}

type recoverPayload struct {
	Asset string `json:"asset"`
	To    string `json:"to"`
}

type recoverResponse struct {
	Asset     string          `json:"asset"`
	Recovered decimal.Decimal `json:"recovered"`
}

// RecoverHandler sweeps the non-custodial part of a token balance: the
// treasury balance minus the summed remaining amount of active orders in
// that asset. Custodial funds can never be swept this way.
func RecoverHandler(ledger liabilitySource, custody custodyAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload recoverPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		a, err := asset.Parse(payload.Asset)
		if err != nil || a.IsNative() || payload.To == "" {
			http.Error(w, "invalid recovery request", http.StatusBadRequest)
			return
		}

		balance, err := custody.BalanceOf(r.Context(), a)
		if err != nil {
			logger.WithError(err).Error("failed to read treasury balance")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		liability, err := ledger.SumRemainingByAsset(r.Context(), a.Symbol)
		if err != nil {
			logger.WithError(err).Error("failed to sum custodial liability")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		recoverable := balance.Sub(liability)
		if !recoverable.IsPositive() {
			http.Error(w, "nothing to recover", http.StatusConflict)
			return
		}

		if err := custody.Pay(r.Context(), a, payload.To, recoverable); err != nil {
			logger.WithError(err).Error("failed to pay out recovered balance")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.WithFields(map[string]interface{}{
			"asset":     a.Symbol,
			"to":        payload.To,
			"recovered": recoverable,
		}).Warn("non-custodial balance recovered")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(recoverResponse{Asset: a.Symbol, Recovered: recoverable}); err != nil {
			logger.WithError(err).Error("failed to encode recovery response")
		}
	}
}
