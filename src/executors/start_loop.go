package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"dcaengine/src/engine"
	"dcaengine/src/model"
	"dcaengine/src/notify"
	"dcaengine/src/repository"
	"dcaengine/src/treasury"
	"dcaengine/src/venue"
)

// StartLoop runs the operator agent: on every tick it collects the due
// slices of active orders, builds one execution request per order and
// submits them as a batch through the engine.
func StartLoop(ctx context.Context) error {
	config := GetConfig()

	if config.TargetVenue == "" {
		return errors.New("target_venue not set")
	}

	engineConfig := engine.GetConfig()

	orderRepo := repository.NewOrderRepository()
	eventRepo := repository.NewEventRepository()
	venueRepo := repository.NewVenueRepository()
	paramsRepo := repository.NewParamsRepository()

	custody := treasury.NewClientFromConfig()
	notifier := notify.Fanout{
		notify.NewLogNotifier(logger.WithField("component", "notifier")),
		notify.NewDBNotifier(eventRepo),
	}

	gateway := venue.NewGateway(venueRepo, custody, venue.NewHTTPInvoker(engineConfig.VenueTimeout), logger.WithField("component", "venue-gateway"))
	eng := engine.NewEngine(orderRepo, gateway, custody, paramsRepo, notifier, engine.NewGuard(), logger.WithField("component", "engine"))

	ticker := time.NewTicker(config.LoopPeriod) // Set up a ticker that fires periodically
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil

		case <-ticker.C:
			logger.Info("loop tick")

			requests, err := buildBatch(ctx, orderRepo, config)
			if err != nil {
				logger.WithError(err).Error("failed to build execution batch")
				return err
			}

			if len(requests) == 0 {
				logger.Debug("no due slices, skipping")
				continue
			}

			results, err := eng.ExecuteBatch(ctx, requests)
			if err != nil {
				logger.WithError(err).Error("batch submission rejected, will exit here")
				return err
			}

			succeeded := 0
			for _, result := range results {
				if result.Succeeded {
					succeeded++
				}
			}
			logger.WithFields(logger.Fields{
				"submitted": len(requests),
				"succeeded": succeeded,
			}).Info("batch processed")
		}
	}
}

type activeOrderSource interface {
	FindActive(ctx context.Context, limit int) ([]model.Order, error)
}

func buildBatch(ctx context.Context, orders activeOrderSource, config Config) ([]engine.Request, error) {
	active, err := orders.FindActive(ctx, config.BatchLimit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	requests := make([]engine.Request, 0, len(active))

	for i := range active {
		order := active[i]
		if !order.IntervalMet(now) {
			continue
		}

		amountIn := order.AmountPerSlice
		if amountIn.GreaterThan(order.RemainingAmount) {
			amountIn = order.RemainingAmount
		}
		if !amountIn.IsPositive() {
			continue
		}

		requests = append(requests, engine.Request{
			OrderID:      order.ID,
			AmountIn:     amountIn,
			MinAmountOut: order.MinAmountOut,
			Venue:        config.TargetVenue,
		})
	}

	return requests, nil
}
