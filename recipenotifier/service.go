// Package recipenotifier assembles the recipe notification service: a Pub/Sub
// pipeline of Firestore document events feeding the trigger handlers, and the
// device token API.
package recipenotifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-recipe-notifier/internal/api"
	"github.com/tinywideclouds/go-recipe-notifier/internal/dispatcher"
	"github.com/tinywideclouds/go-recipe-notifier/internal/pipeline"
	"github.com/tinywideclouds/go-recipe-notifier/internal/triggers"
	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-recipe-notifier/recipenotifier/config"
)

// Wrapper is the running service: the HTTP base server plus the event pipeline.
type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.DocumentEvent]
	dispatcher      *dispatcher.Dispatcher
	logger          *slog.Logger
}

// New assembles the service. All external handles are created by the caller,
// which owns their lifecycle.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	users dispatch.UserDirectory,
	posts dispatch.PostStore,
	messenger dispatch.Messenger,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Fan-out and triggers
	notifier := dispatcher.New(users, messenger, cfg.FCM.BatchSize, logger)
	handlers := triggers.NewHandlers(notifier, posts, users, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.DocumentEventTransformer,
		pipeline.NewProcessor(handlers, logger),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API (Token Registration)
	tokenAPI := api.NewTokenAPI(users, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}
	handle("PUT /api/v1/users/me/fcm-token", tokenAPI.PutToken)
	handle("DELETE /api/v1/users/me/fcm-token", tokenAPI.DeleteToken)

	// CORS preflight
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		dispatcher:      notifier,
		logger:          logger,
	}, nil
}

// Start runs the pipeline and then blocks serving HTTP.
func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

// Shutdown stops consuming, lets pending token cleanups finish, then stops
// the HTTP server.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}

	cleanupsDone := make(chan struct{})
	go func() {
		w.dispatcher.Wait()
		close(cleanupsDone)
	}()
	select {
	case <-cleanupsDone:
	case <-ctx.Done():
		w.logger.Warn("Token cleanups still running at shutdown deadline")
	}

	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
