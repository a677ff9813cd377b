package main

import (
	"context"
	"net/http"
	"os"

	"github.com/twoseat/arcade/internal/catalog"
	"github.com/twoseat/arcade/internal/config"
	"github.com/twoseat/arcade/internal/lobby"
	"github.com/twoseat/arcade/internal/logging"
	"github.com/twoseat/arcade/internal/monitor"
	"github.com/twoseat/arcade/internal/netutil"
)

func main() {
	logger := logging.Setup("lobby")

	cfg, err := config.LoadLobby(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	games, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load game catalog")
	}

	ctx, stop := netutil.ShutdownContext()
	defer stop()

	db, err := lobby.DialDBClient(cfg.StateIP, cfg.StatePort, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to state service")
	}
	go db.Run(ctx)
	go func() {
		<-db.Done()
		if ctx.Err() == nil {
			logger.Error("state service connection lost; shutting down")
			stop()
		}
	}()

	hub := monitor.NewHub()
	hubStop := make(chan struct{})
	go hub.Run(hubStop)

	srv := lobby.NewServer(db, logger, hub, lobby.Config{
		TokenSecret: cfg.TokenSecret,
		WebhookURL:  cfg.WebhookURL,
		Catalog:     games,
		MatchBindIP: cfg.BindIP,
	})

	ln, err := netutil.Listen(cfg.BindIP, cfg.Port)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind client port")
	}
	logger.WithField("addr", ln.Addr().String()).Info("listening for Lobby connections")

	adminLn, err := netutil.Listen(cfg.BindIP, cfg.AdminPort)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind admin port")
	}
	adminSrv := &http.Server{Handler: lobby.AdminRouter(srv)}
	go func() {
		logger.WithField("addr", adminLn.Addr().String()).Info("serving admin endpoints")
		if err := adminSrv.Serve(adminLn); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("admin server stopped unexpectedly")
		}
	}()

	done := make(chan struct{})
	go func() {
		srv.Run(ctx, ln)
		close(done)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	adminSrv.Shutdown(context.Background())
	close(hubStop)
	<-done
}
