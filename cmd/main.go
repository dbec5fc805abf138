package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/infrastructure/admin"
	"chat-hub/infrastructure/ws"
	"chat-hub/internal"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/services"

	env "github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-hub terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, worker
// shutdown) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := config.Logger()

	// 2. Database (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	storage := repositories.NewStorage(db, logger, config.LimitMessages)
	for _, room := range config.Rooms() {
		if err := storage.CreateRoom(domain.RoomID(room), room); err != nil {
			return exitRuntime, fmt.Errorf("seeding room %q: %w", room, err)
		}
	}

	// 3. Coordinator assembly. Constructed once here and injected; nothing
	// reaches the presence or membership maps except through it.
	registry := runtime.NewRegistry()
	membership := runtime.NewMembership()
	dispatcher := runtime.NewDispatcher(logger, registry, membership)
	directory := auth.NewDirectory([]byte(config.JWTSecret))
	chatService := services.NewChatService(logger, storage, dispatcher)
	coordinator := runtime.NewCoordinator(logger, directory, storage, chatService,
		registry, membership, dispatcher)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewStorageGC(db, logger, config.BadgerGCInterval))
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 6. HTTP server: websocket endpoint plus the admin surface.
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(logger, coordinator,
		config.ConnectionBufferSize, rate.Limit(config.FramesPerSecond), config.FrameBurst))
	admin.NewHandler(logger, coordinator).Register(mux)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listening", "address", address)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced server close", "error", err)
	}
	sup.Stop()
	<-supervisorDone

	logger.Info("Bye", slog.Int("online_at_exit", coordinator.OnlineCount()))
	return exitOK, nil
}
