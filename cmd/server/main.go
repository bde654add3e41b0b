package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/vedran77/decsecmsg/internal/config"
	"github.com/vedran77/decsecmsg/internal/database"
	"github.com/vedran77/decsecmsg/internal/keys"
	"github.com/vedran77/decsecmsg/internal/logging"
	"github.com/vedran77/decsecmsg/internal/presence"
	"github.com/vedran77/decsecmsg/internal/service"
	"github.com/vedran77/decsecmsg/internal/session"
	"github.com/vedran77/decsecmsg/internal/transport/http/handlers"
	"github.com/vedran77/decsecmsg/internal/transport/http/middleware"
	"github.com/vedran77/decsecmsg/internal/transport/ws"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	gw, err := database.OpenGateway(ctx, cfg, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := gw.Close(closeCtx); err != nil {
			logger.Error("closing store", zap.Error(err))
		}
	}()

	// Sessions
	var denylist session.Denylist = session.NewMemoryDenylist()
	if cfg.RedisURL != "" {
		rdb, err := database.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
		denylist = session.NewRedisDenylist(rdb)
		logger.Info("session denylist in redis")
	}
	sessions := session.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL, denylist)

	// Presence + real-time
	registry := presence.NewRegistry(gw.Users)
	hub := ws.NewHub(registry, logger.Named("ws"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Services
	identityService := service.NewIdentityService(gw.Users, gw.Contacts, gw.Messages, keys.AcceptAnyProof)
	messageService := service.NewMessageService(gw.Messages, gw.Contacts)
	messageService.SetNotifier(ws.NewHubNotifier(registry, logger.Named("notifier")))

	// Handlers
	httpLogger := logger.Named("http")
	userHandler := handlers.NewUserHandler(identityService, sessions, cfg.CookieSecure, httpLogger)
	contactHandler := handlers.NewContactHandler(identityService, httpLogger)
	messageHandler := handlers.NewMessageHandler(messageService, httpLogger)

	if cfg.AllowQueryUserID {
		logger.Warn("ALLOW_QUERY_USER_ID is on: ?userId= is trusted without a session")
	}
	auth := middleware.Auth(sessions, cfg.AllowQueryUserID, httpLogger)

	// Routes
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","online":%d}`, hub.Registry().Online())
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS(hub, cfg.CORSOrigins, logger.Named("ws"))).Methods(http.MethodGet)
	handlers.Mount(r, userHandler, contactHandler, messageHandler, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           middleware.RequestLogger(httpLogger)(middleware.CORS(cfg.CORSOrigins)(r)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
