// main.go
// In main.go we wire everything together: read the environment, build the logger
// and the manager, upgrade HTTP to WebSocket, give each client a UUID, register it
// with the manager and spin up the per-connection goroutines.
// ALLOWED_ORIGINS should be set in production; an empty list accepts any origin.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const greeting = "Socket server is running"

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return slices.Contains(allowed, r.Header.Get("Origin"))
		},
	}
}

func wsHandler(manager *ClientManager, cfg Config) http.HandlerFunc {
	upgrader := newUpgrader(cfg.AllowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			manager.log.Info("upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:      uuid.NewString(),
			socket:  conn,
			send:    make(chan []byte, cfg.SendBuffer),
			manager: manager,
		}
		select {
		case manager.register <- client:
		case <-manager.done:
			conn.Close()
			return
		}

		go client.read(cfg.MaxMessageBytes)
		go client.write()
	}
}

func newMux(manager *ClientManager, cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", wsHandler(manager, cfg))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(greeting))
	})
	return mux
}

func run(ctx context.Context, cfg Config, log *zap.Logger) error {
	manager := newManager(cfg, log)
	go manager.start(ctx)

	srv := &http.Server{
		Addr:              cfg.addr(),
		Handler:           newMux(manager, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting relay",
		zap.Int("port", cfg.Port),
		zap.String("presencePolicy", string(cfg.PresencePolicy)),
		zap.Int("historyLimit", cfg.HistoryLimit),
	)
	if err := run(ctx, cfg, log); err != nil {
		log.Error("relay stopped", zap.Error(err))
		stop()
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
