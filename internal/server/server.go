package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ricardomussett/ms-server-gps-socket/internal/bridge"
	"github.com/ricardomussett/ms-server-gps-socket/internal/router"
	"github.com/ricardomussett/ms-server-gps-socket/internal/server/middleware"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/config"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state/registry"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/store"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/token"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    state.Registry
	eventRouter *router.EventRouter
	bridge      *bridge.Bridge
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	// Two Redis connections: rdb serves commands, sub holds the long-lived
	// subscription, so one cannot starve the other.
	rdb *redis.Client
	sub *redis.Client

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) (*App, error) {
	cipher, err := token.NewCipher(cfg.Auth.Key, cfg.Auth.IV)
	if err != nil {
		return nil, fmt.Errorf("building credential cipher: %w", err)
	}
	validator, err := token.NewValidator(cipher, cfg.Auth.Secret, logger)
	if err != nil {
		return nil, fmt.Errorf("building credential validator: %w", err)
	}
	policy, err := filter.ParsePolicy(cfg.Filter.Policy)
	if err != nil {
		return nil, err
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, DB: cfg.Redis.DB})
	sub := redis.NewClient(&redis.Options{Addr: redisAddr, DB: cfg.Redis.DB})

	matcher := filter.NewMatcher(policy)
	reg := registry.NewInMemory(logger)
	positions := store.New(rdb, cfg.Redis.KeyPrefix, matcher, cfg.Redis.OpTimeout, logger)
	eventRouter := router.NewEventRouter(logger, reg, positions, policy, cfg.Server.GeoJSON)
	posBridge := bridge.New(sub, reg, matcher, cfg.Redis.Channel, cfg.Server.GeoJSON, logger)

	app := &App{
		logger:      logger,
		registry:    reg,
		eventRouter: eventRouter,
		bridge:      posBridge,
		config:      cfg,
		rdb:         rdb,
		sub:         sub,
		ctx:         rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(logger, reg.CountByAddr, cfg.Server.ConnectionLimit),
			middleware.NewAPIKeyMiddleware(logger, validator, cfg.Auth.Header),
		),
	)

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app, nil
}

func (a *App) Run() error {
	go func() {
		if err := a.bridge.Run(a.ctx); err != nil {
			a.logger.Error("Pub/sub bridge stopped", slog.Any("error", err))
		}
	}()

	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler runs after the middleware chain has admitted the viewer:
// accept the websocket, register the session with no filter, and hand the
// connection its message and teardown hooks.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			PingInterval: a.config.Transport.PingInterval,
			PingTimeout:  a.config.Transport.PingTimeout,
			SendBuffer:   a.config.Transport.SendBuffer,
		},
		a.logger,
	)

	a.registry.Register(conn.ID(), conn, reqMeta.IP)
	conn.SetOnMessageHandler(a.eventRouter.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering session due to closure", slog.String("connID", id.String()))
		a.registry.Unregister(id)
	})

	connLogger.Info("Viewer connection established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful teardown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, sess := range a.registry.Snapshot() {
		sess.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()

	if err := a.sub.Close(); err != nil {
		a.logger.Warn("Closing subscriber connection", slog.Any("error", err))
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("Closing command connection", slog.Any("error", err))
	}

	a.logger.Info("Server shut down gracefully.")
	return nil
}
