package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"keyslookup/internal/adapters/csvref"
	httpadapter "keyslookup/internal/adapters/http"
	pg "keyslookup/internal/adapters/postgres"
	"keyslookup/internal/config"
	"keyslookup/internal/logging"
	"keyslookup/internal/ports"
	"keyslookup/internal/services/keys"
)

var configPath = flag.String("config", "./config/keys.yaml", "config file path")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.Name)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deriv, err := config.LoadDerivation(cfg.Model.DerivationFile)
	if err != nil {
		logger.Fatal("load derivation", zap.Error(err))
	}

	source, closeSource, err := referenceSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("reference source", zap.Error(err))
	}
	defer closeSource()

	svc := keys.New(source, deriv, cfg.Model.PerilPrecedence(), logger)
	var _ ports.Keys = svc
	if err := svc.Reload(ctx); err != nil {
		logger.Fatal("initial reference load", zap.Error(err))
	}

	srv := httpadapter.New(svc, logger, cfg.Server.MaxBodyBytes)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}
	httpSrv := &http.Server{
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()
	logger.Info("listening",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("model", cfg.Model.ID),
		zap.String("source", cfg.Model.Source),
		zap.Int("max_conns", cfg.Server.MaxConns))

	// graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		shutCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		logger.Fatal("server error", zap.Error(err))
	}
}

func referenceSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.ReferenceSource, func(), error) {
	if cfg.Model.Source != config.SourcePostgres {
		return csvref.New(cfg.Model.KeysDataPath, cfg.Model.ID), func() {}, nil
	}

	db, err := pg.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, db.SQL, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return pg.NewReferences(db.SQL, cfg.Model.ID), db.Close, nil
}
