package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pizzaservice/internal/auth"
	"pizzaservice/internal/logging"
	"pizzaservice/internal/metrics"
	"pizzaservice/internal/server"
	"pizzaservice/internal/shared"
)

func main() {
	prog := filepath.Base(os.Args[0])
	cfg, err := shared.ParseServerArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, shared.ServerUsage(prog))
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("server stopped", zap.Error(err))
		logging.AtExit(log)
		os.Exit(1)
	}
	logging.AtExit(log)
}

func run(ctx context.Context, cfg *shared.ServerConfig, log *zap.Logger) error {
	km, err := shared.LoadKeyMaterial(cfg.PubKeyPath, cfg.PrivKeyPath)
	if err != nil {
		return err
	}
	authority, err := auth.NewAuthority(cfg.ServerName, km)
	if err != nil {
		return err
	}
	if err := authority.SelfTest(); err != nil {
		return err
	}

	db, err := server.OpenDB(cfg.DBPath)
	if err != nil {
		return errors.Wrapf(err, "open db %s", cfg.DBPath)
	}
	defer db.Close()
	if err := server.RunMigrations(db, log); err != nil {
		return errors.Wrap(err, "migrations failed")
	}

	static, err := server.OpenStaticRoot(cfg.StaticDir)
	if err != nil {
		return err
	}
	defer static.Close()

	collector := metrics.NewCollector("")
	api := &server.API{
		Store:            server.NewSQLiteStore(db),
		Auth:             authority,
		Static:           static,
		Responder:        server.Responder{ServerName: cfg.ServerName},
		Metrics:          collector,
		AllowDebugBypass: cfg.AllowDebugBypass,
	}
	if cfg.AllowDebugBypass {
		log.Warn("debug bypass enabled: /receipt?debug=true skips token checks")
	}

	srv := server.NewServer(server.NewRouter(api), api.Responder, log.Named("listener"), collector, server.Options{
		Deadline:    cfg.Deadline,
		AcceptRate:  cfg.AcceptRate,
		AcceptBurst: cfg.AcceptBurst,
	})

	log.Info("pizza-server starting",
		zap.String("addr", cfg.Addr()),
		zap.String("db", cfg.DBPath),
		zap.String("static", cfg.StaticDir),
		zap.String("issuer", cfg.ServerName),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Addr())
	})
	if cfg.MetricsAddr != "" {
		ms := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           collector.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(func() error {
			log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ms.Shutdown(sctx)
		})
	}
	return eg.Wait()
}
