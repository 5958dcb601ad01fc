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
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/auth"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/server"
	"chat-relay/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle so every
// defer executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	censorRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Storage (BadgerDB) & Search (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 3. Live side: registry, dispatcher, supervised reaper
	registry := runtime.NewRegistry(log, config.ConnectionLifetime, config.ConnectionBufferSize)
	dispatcher := runtime.NewDispatcher(log, registry, config.DeliveryTimeout, config.SinkTimeout)

	index := search.NewIndex(writer, log, config.PageSize)
	dispatcher.Add(search.NewIndexSink(index, log))

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewConnectionReaper(registry, config.ReapInterval, log))

	// 4. Durable side: repositories and the chat service
	words, err := moderation.LoadCensoredWords()
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	sanitizer, err := moderation.NewSanitizer(words.Words, censorRune, log)
	if err != nil {
		return fmt.Errorf("sanitizer setup failed: %w", err)
	}

	directory := repositories.NewDirectory(db, log)
	messages := repositories.NewMessageRepository(db, log)
	service := services.NewChatService(log, directory, messages, sanitizer)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)
	defer sup.Stop()

	// 6. HTTP edge
	tokens := auth.NewTokenManager(config.TokenSecret, config.AuthTokenDuration)
	edge := server.New(log, service, registry, dispatcher, index, tokens, config.PageSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           edge.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
			rooms, connections := registry.Stats()
			return map[string]any{"rooms": rooms, "connections": connections}
		})
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not finish cleanly", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
