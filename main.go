package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mylesscott/portfolio/internal/config"
	"github.com/mylesscott/portfolio/internal/embeds"
	"github.com/mylesscott/portfolio/internal/logging"
	"github.com/mylesscott/portfolio/internal/metrics"
	"github.com/mylesscott/portfolio/internal/store"
	"github.com/mylesscott/portfolio/internal/viewport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel, cfg.Debug())
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabasePath, logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	embedMetrics := metrics.NewEmbeds(promReg)

	host := viewport.New(logger.Named("viewport"))
	registry := embeds.NewRegistry(host, cfg.EmbedTTL,
		embeds.WithRecorder(st),
		embeds.WithMetrics(embedMetrics),
		embeds.WithLogger(logger.Named("embeds")),
		embeds.WithLimit(cfg.MaxEmbeds),
	)

	reaped := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(reaped)
	}()

	srv := newServer(cfg, st, registry, promReg, logger)

	// Clean up old visitor data for privacy compliance
	go srv.cleanupOldVisitorData(ctx)

	httpSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpSrv.Addr), zap.String("mode", cfg.GinMode))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err = <-errc:
		stop()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = httpSrv.Shutdown(shutdownCtx)
	}

	host.Close()
	<-reaped
	logger.Info("stopped", zap.Int("live_observations", host.Live()))

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
