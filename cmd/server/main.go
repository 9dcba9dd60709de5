package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"

	"chat-relay/auth"
	"chat-relay/httpapi"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close, worker
// shutdown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & metrics
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewCollector(promRegistry)

	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	conversationRepository := repositories.NewConversationRepository(db, log)
	userRepository := repositories.NewUserRepository(db, log)

	// 4. Runtime: presence, rooms, relays
	presence := runtime.NewPresenceRegistry(log, config.PresenceBufferSize)
	rooms := runtime.NewRoomMembership()
	typing := runtime.NewTypingRelay(log, rooms, metrics, config.SinkTimeout)
	fanout := runtime.NewFanout(log, presence, metrics, config.SinkTimeout)

	readState := services.NewReadStateTracker(log, messageRepository)
	chatService := services.NewChatService(log, messageRepository, conversationRepository, userRepository, fanout, readState)

	// 5. Supervision: the presence worker bridges registry transitions
	// to the store and to every live connection.
	supervisor := runtime.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(runtime.NewPresenceWorker(log, presence, userRepository, metrics, config.SinkTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go supervisor.Run(ctx)

	// 6. HTTP & websocket surface
	verifier := auth.NewVerifier(config.JWTSecret)
	wsHandler := ws.NewHandler(log, presence, rooms, typing, verifier, config.ConnectionBufferSize)
	router := httpapi.NewRouter(log, chatService, verifier, wsHandler, promRegistry)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	supervisor.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
