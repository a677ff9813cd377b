package main

import (
	"context"
	"net/http"
	"os"

	"github.com/twoseat/arcade/internal/config"
	"github.com/twoseat/arcade/internal/logging"
	"github.com/twoseat/arcade/internal/netutil"
	"github.com/twoseat/arcade/internal/stateservice"
)

func main() {
	logger := logging.Setup("stateservice")

	cfg, err := config.LoadStateService(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	store := stateservice.NewStore()
	if err := stateservice.LoadSnapshot(store, cfg.StatePath); err != nil {
		logger.WithError(err).WithField("path", cfg.StatePath).Fatal("failed to load state snapshot")
	}

	ln, err := netutil.Listen(cfg.BindIP, cfg.Port)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind command port")
	}
	logger.WithField("addr", ln.Addr().String()).Info("listening for State Service commands")

	adminLn, err := netutil.Listen(cfg.BindIP, cfg.AdminPort)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind admin port")
	}
	adminSrv := &http.Server{Handler: stateservice.AdminRouter(store)}
	go func() {
		logger.WithField("addr", adminLn.Addr().String()).Info("serving admin endpoints")
		if err := adminSrv.Serve(adminLn); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("admin server stopped unexpectedly")
		}
	}()

	ctx, stop := netutil.ShutdownContext()
	defer stop()

	srv := stateservice.NewServer(store, logger)
	done := make(chan struct{})
	go func() {
		srv.Run(ctx, ln)
		close(done)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	adminSrv.Shutdown(context.Background())
	<-done

	if err := stateservice.SaveSnapshot(store, cfg.StatePath); err != nil {
		logger.WithError(err).WithField("path", cfg.StatePath).Error("failed to save state snapshot")
		return
	}
	logger.WithField("path", cfg.StatePath).Info("saved state snapshot")
}
