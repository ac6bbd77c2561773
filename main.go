// Command chorus runs the realtime chat and voice coordination server:
// a single binary serving the HTTP API, the websocket fabric, uploaded
// files and the embedded web client, backed by SQLite.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/pkg/crypto"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; stderr is all we have.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Server.Development()); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.L()

	aesKey, err := crypto.DeriveKey(cfg.Crypto.AESKeyHex)
	if err != nil {
		log.Fatal("invalid CRYPTO_AES_KEY", zap.Error(err))
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Fatal("upload dir", zap.Error(err))
	}

	repos := initRepositories(db.Conn, aesKey)

	hub := ws.NewHub(cfg.Limits.WSSendBuffer)
	svcs := initServices(cfg, repos, hub)
	defer svcs.Close()

	initCallbacks(hub, repos, svcs)
	go hub.Run()

	ready := &readyProvider{servers: repos.Server, mutes: repos.ServerMute}
	handlers := initHandlers(svcs, hub, ready)
	router := initRoutes(cfg, repos, svcs, handlers)

	// Background loops live until shutdown: expired session pruning and the
	// SFU metrics collector.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go svcs.Auth.StartSessionSweeper(bgCtx)
	go svcs.MetricsCollector.Start(bgCtx)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
		// No WriteTimeout: the websocket endpoint holds connections open
		// indefinitely and enforces its own per-write deadlines.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-done
	log.Info("shutting down")

	bgCancel()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("forced shutdown", zap.Error(err))
	}
	log.Info("stopped")
}
