package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"dcaengine/src/auth"
	"dcaengine/src/engine"
	"dcaengine/src/handler"
	"dcaengine/src/model"
	"dcaengine/src/notify"
	"dcaengine/src/orders"
	"dcaengine/src/repository"
	"dcaengine/src/treasury"
	"dcaengine/src/venue"
)

// StartServer wires the engine and serves the API until SIGINT/SIGTERM.
func StartServer(port string) {
	engineConfig := engine.GetConfig()

	orderRepo := repository.NewOrderRepository()
	eventRepo := repository.NewEventRepository()
	venueRepo := repository.NewVenueRepository()
	paramsRepo := repository.NewParamsRepository()
	userRepo := repository.NewUserRepository()

	if err := paramsRepo.Seed(context.Background(), &model.EngineParams{
		MinIntervalSeconds: engineConfig.MinIntervalSeconds,
		FeeBps:             engineConfig.FeeBps,
		FeeRecipient:       engineConfig.FeeRecipient,
		MaxSlices:          engineConfig.MaxSlices,
	}); err != nil {
		logger.WithError(err).Fatal("Failed to seed engine params")
	}

	custody := treasury.NewClientFromConfig()
	hub := notify.NewHub()
	notifier := notify.Fanout{
		notify.NewLogNotifier(logger.WithField("component", "notifier")),
		notify.NewDBNotifier(eventRepo),
		hub,
	}

	guard := engine.NewGuard()
	gateway := venue.NewGateway(venueRepo, custody, venue.NewHTTPInvoker(engineConfig.VenueTimeout), logger.WithField("component", "venue-gateway"))
	eng := engine.NewEngine(orderRepo, gateway, custody, paramsRepo, notifier, guard, logger.WithField("component", "engine"))
	orderService := orders.NewService(orderRepo, custody, paramsRepo, notifier, guard, logger.WithField("component", "orders"))

	// Router with middleware
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck error")
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(userRepo))

		r.Post("/orders", handler.CreateOrderHandler(orderService))
		r.Get("/orders", handler.ListOrdersHandler(orderService))
		r.Get("/orders/{orderID}", handler.GetOrderHandler(orderService))
		r.Post("/orders/{orderID}/cancel", handler.CancelOrderHandler(orderService))
		r.Get("/orders/{orderID}/events", handler.ListOrderEventsHandler(eventRepo))

		r.Get("/events/ws", hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(model.RoleOperator))
			r.Post("/executions/batch", handler.ExecuteBatchHandler(eng))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(model.RoleAdmin))
			r.Post("/admin/venues", handler.AddVenueHandler(venueRepo))
			r.Delete("/admin/venues/{name}", handler.RemoveVenueHandler(venueRepo))
			r.Put("/admin/params", handler.UpdateParamsHandler(paramsRepo))
			r.Post("/admin/recover", handler.RecoverHandler(orderRepo, custody))
		})
	})

	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
