package main

import (
	"context"
	"errors"
	"fmt"
	"interest-chat/auth"
	"interest-chat/contract"
	"interest-chat/domain/chat"
	"interest-chat/infrastructure/http/server"
	"interest-chat/infrastructure/realtime"
	"interest-chat/infrastructure/relay"
	"interest-chat/infrastructure/storage"
	"interest-chat/internal"
	"interest-chat/moderation"
	"interest-chat/observability"
	"interest-chat/runtime"
	"interest-chat/runtime/workers"
	"interest-chat/services"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const debugInspectorPort = 8081

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a fatal error.
// Returning instead of exiting lets the deferred closes run.
func run() (int, error) {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return exitConfig, fmt.Errorf("failed to load .env: %w", err)
	}
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	readPolicy, err := services.ParseReadPolicy(config.ReadPolicy)
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", debugInspectorPort, endpoint))
		database.StartDebugServer(db, debugInspectorPort, endpoint, storage.InspectMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	interestRepository := storage.NewInterestRepository(db, logger)
	messageRepository := storage.NewMessageRepository(db, logger)
	userRepository := storage.NewUserRepository(db)
	contentRepository := storage.NewContentRepository(db, logger)
	messageIndex := storage.NewMessageIndex(blugeWriter, logger)

	// 3. Router, optionally relayed across replicas
	observability.MustRegister(prometheus.DefaultRegisterer)
	registry := runtime.NewRegistry(logger, config.DeliveryTimeout)
	var router contract.IRouter = registry
	var redisRelay *relay.RedisRelay
	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() { _ = client.Close() }()
		options := relay.DefaultOptions()
		options.Channel = config.RedisChannel
		redisRelay = relay.NewRedisRelay(registry, client, options, logger)
		router = redisRelay
		logger.Info("Cross replica relay enabled", "addr", config.RedisAddr, "channel", config.RedisChannel)
	}

	// 4. Services
	indexChan := make(chan chat.Message, config.IndexBufferSize)
	dispatch := services.NewDispatchService(
		interestRepository, interestRepository, messageRepository, userRepository, contentRepository, router, logger,
	).
		WithIndex(messageIndex, indexChan).
		WithReadPolicy(readPolicy).
		WithStoreTimeout(config.StoreTimeout).
		WithMaxPageSize(config.MaxPageSize)

	if config.ModerationEnabled {
		data, err := runtime.NewCensoredLoader(config.CensoredWordsDir).LoadAll()
		if err != nil {
			return exitConfig, fmt.Errorf("failed to load censored words: %w", err)
		}
		moderator, err := moderation.NewModerator(data.Words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("failed to build moderator: %w", err)
		}
		dispatch.WithCensor(moderator)
		logger.Info("Moderation enabled", "words", len(data.Words), "languages", data.Languages)
	}

	issuer := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	interestService := services.NewInterestService(interestRepository, interestRepository, userRepository, logger)
	authService := services.NewAuthService(userRepository, issuer)

	// 5. Supervised workers
	sup := workers.NewSupervisor(logger).WithRestartInterval(config.RestartInterval)
	sup.Add(
		workers.NewIndexWorker(messageIndex, indexChan, logger),
		workers.NewHealthMonitoringWorker(logger, config.MetricInterval, registry.Connections),
	)
	if redisRelay != nil {
		sup.Add(redisRelay)
	}
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		sup.Run(ctx)
	}()

	// 6. HTTP + websocket
	gatewayOptions := realtime.DefaultOptions()
	gatewayOptions.AllowedOrigins = config.AllowedOrigins()
	gatewayOptions.SendBuffer = config.ConnectionBuffer
	gateway := realtime.NewGateway(router, dispatch, gatewayOptions, logger)

	health, err := server.NewHealthReporter(registry.Connections)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to init health reporter: %w", err)
	}
	serverOptions := server.DefaultOptions()
	serverOptions.CORSAllowedOrigins = config.AllowedOrigins()
	serverOptions.SendRateLimit = config.SendRateLimit
	serverOptions.SendRateWindow = config.SendRateWindow
	api := server.NewServer(logger, dispatch, interestService, authService, contentRepository, issuer, gateway, health, serverOptions)

	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown leaves hijacked websockets alone
	httpServer.RegisterOnShutdown(gateway.Close)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", config.Address(), "read_policy", readPolicy, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful shutdown: stop accepting requests, drop the websockets, then let the workers drain.
	// Everything finishes before the deferred store closes run.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if err := gateway.Wait(shutdownCtx); err != nil {
		logger.Error("Websocket connections did not drain", "error", err)
	}
	stop()
	sup.Stop()
	<-workersDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
