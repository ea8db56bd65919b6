// Package handler is the serverless entry point. The platform calls Handler
// for every request; the router and its connections are built once per
// instance and reused across invocations. A failed build is retried on the
// next request.
package handler

import (
	"context"
	"net/http"
	"sync"

	"plantshop/internal/api"
	"plantshop/internal/api/handlers"
	"plantshop/internal/app"
	"plantshop/internal/config"
	"plantshop/internal/logger"
)

var (
	mu     sync.Mutex
	router http.Handler
	build  = buildRouter
)

func buildRouter() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize: %v", err)
		return nil, err
	}

	deps := api.Deps{
		Syncer:     a.Syncer,
		SyncLogs:   a.Store,
		Products:   a.Store,
		Dispatcher: a.Dispatcher,
		DB:         a.DB,
	}
	var publisher handlers.EventPublisher
	if a.Publisher != nil {
		publisher = a.Publisher
	}
	deps.Publisher = publisher

	return api.New(cfg, log, deps).Router(), nil
}

// currentRouter returns the built router, building it if no earlier attempt
// succeeded.
func currentRouter() (http.Handler, error) {
	mu.Lock()
	defer mu.Unlock()
	if router != nil {
		return router, nil
	}
	h, err := build()
	if err != nil {
		return nil, err
	}
	router = h
	return router, nil
}

func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := currentRouter()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Service unavailable"}`))
		return
	}
	h.ServeHTTP(w, r)
}
