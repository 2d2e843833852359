package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-trademark-backend/internal/catalog"
	httpapi "github.com/tbourn/go-trademark-backend/internal/http"
	"github.com/tbourn/go-trademark-backend/internal/notify"
	"github.com/tbourn/go-trademark-backend/internal/observability"
	"github.com/tbourn/go-trademark-backend/internal/repo"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeEvery      = time.Hour
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	defer a.close()
	cfg := a.cfg
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			a.log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	kv, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	reg, err := a.openRegistry()
	if err != nil {
		return err
	}

	dispatcher, err := notify.NewDispatcher(db, notify.LogSink{Logger: &a.log}, cfg.NotifyCron)
	if err != nil {
		return err
	}
	if err := dispatcher.Start(); err != nil {
		return err
	}

	cat := catalog.Default()
	procs := services.NewProcessService(kv, reg, dispatcher, a.explainer())
	chats := services.NewMessagingService(kv, cat)
	chats.ReplyDelay = cfg.ReplyDelay
	chats.MaxMessageRunes = cfg.MaxMessageRunes
	accounts := services.NewAccountService(kv, cfg.VerifyCode)
	idem := repo.NewIdempotencyStore(db, cfg.IdempotencyTTL)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Processes:   procs,
		Chats:       chats,
		Accounts:    accounts,
		Catalog:     cat,
		Articles:    cat.ArticleIndex(),
		Idempotency: idem,
		Store:       kv,
	}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return a.log.WithContext(context.Background()) },
	}

	pctx, pcancel := context.WithCancel(ctx)
	defer pcancel()
	go a.purgeLoop(pctx, idem)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Backend).Str("registry", cfg.Registry.Backend).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			dispatcher.Stop(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}
	dispatcher.Stop(sctx)

	// Let in-flight specialist replies land before the store closes.
	done := make(chan struct{})
	go func() { chats.Wait(); close(done) }()
	select {
	case <-done:
	case <-sctx.Done():
		a.log.Warn().Msg("pending replies abandoned at shutdown")
	}
	return nil
}

// purgeLoop drops expired idempotency keys until ctx ends.
func (a *app) purgeLoop(ctx context.Context, idem *repo.IdempotencyStore) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		if n, err := idem.Purge(ctx, time.Now().UTC()); err != nil {
			if ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("idempotency purge failed")
			}
		} else if n > 0 {
			a.log.Info().Int64("purged", n).Msg("idempotency keys expired")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
