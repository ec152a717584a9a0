package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crudgen/crudgen/pkg/crud"
	"github.com/crudgen/crudgen/pkg/httputil"
	mw "github.com/crudgen/crudgen/pkg/httputil/middleware"
	"github.com/crudgen/crudgen/pkg/metrics"
	pg "github.com/crudgen/crudgen/pkg/pgx"
	"github.com/crudgen/crudgen/pkg/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CRUD API server",
	Long:  `Starts an HTTP server exposing generated CRUD endpoints for the configured PostgreSQL tables`,
	Run:   runServer,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("pg.connString", "c", "", "PostgreSQL connection string")
	f.StringP("server.listenAddr", "l", "", "HTTP server listen address")
	f.String("server.baseURL", "", "Base URL for API endpoints")
	f.Bool("metrics.enabled", false, "Expose Prometheus metrics")

	viper.BindPFlags(f)
	rootCmd.AddCommand(serveCmd)
}

func newLogger(level string) *zap.Logger {
	if level == "none" {
		return zap.NewNop()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	return logger
}

func runServer(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	logger := newLogger(logLevel)
	defer logger.Sync()

	connString := cfg.PG.ConnString
	if s := viper.GetString("pg.connString"); s != "" {
		connString = s
	}
	if connString == "" {
		log.Fatal("PostgreSQL connection string required")
	}
	if addr := viper.GetString("server.listenAddr"); addr != "" {
		cfg.Server.ListenAddr = addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pm := pg.NewPoolManager()
	if err := pm.Add(ctx, pg.Pool{Name: "default", ConnString: connString}, true); err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pm.Close()

	pool, err := pm.Active()
	if err != nil {
		log.Fatalf("Failed to get connection pool: %v", err)
	}

	// database may still be starting; retry the first contact
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(b, ctx)); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}

	cache, err := schema.NewCache(ctx, pool, logger)
	if err != nil {
		log.Fatalf("Failed to create schema cache: %v", err)
	}
	if err := cache.Init(ctx); err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}
	defer cache.Close()

	router := httputil.NewRouter()
	router.Use(mw.RequestID, mw.CORSWithOptions(nil))

	if cfg.Auth.OIDC.Issuer != "" {
		router.Use(mw.VerifyOIDCToken(mw.OIDCProviderConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			Issuer:       cfg.Auth.OIDC.Issuer,
		}, len(cfg.Auth.BasicAuth) == 0))
	}
	if len(cfg.Auth.BasicAuth) > 0 {
		router.Use(mw.VerifyBasicAuth(&mw.BasicAuthConfig{Credentials: cfg.Auth.BasicAuth}, true))
	}
	if !cfg.Auth.Enabled() {
		router.Use(mw.AnonCaller("anonymous"))
	}

	router.Use(mw.Postgres(pool))
	if logLevel != "none" {
		router.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	}

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			httputil.Error(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		httputil.Text(w, http.StatusOK, "ok")
	})

	metricsEnabled := cfg.Metrics.Enabled || viper.GetBool("metrics.enabled")

	api := router
	if cfg.Server.BaseURL != "" {
		api = router.Group(cfg.Server.BaseURL)
	}

	for _, rc := range cfg.Resources {
		table, ok := cache.Get(qualify(rc.Table))
		if !ok {
			log.Fatalf("Table %s not found in database", rc.Table)
		}

		opts := []crud.Option{crud.WithLogger(logger)}
		if rc.Path != "" {
			opts = append(opts, crud.WithPath(rc.Path))
		}
		if len(rc.Actions) > 0 {
			actions, err := rc.ParseActions()
			if err != nil {
				log.Fatalf("Invalid resource config: %v", err)
			}
			opts = append(opts, crud.WithActions(actions...))
		}
		if rc.ExcludedColumns != nil {
			opts = append(opts, crud.WithExcludedColumns(rc.ExcludedColumns))
		}
		if metricsEnabled {
			opts = append(opts, crud.WithInstrumentation(metrics.Instrument))
		}

		resource := crud.NewResource(table, opts...)
		resource.Register(api)
		logger.Info("registered resource",
			zap.String("table", table.FullName()),
			zap.String("path", cfg.Server.BaseURL+resource.Path()),
			zap.Strings("filters", resource.FilterParams()),
		)
	}

	var wg sync.WaitGroup
	if metricsEnabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.ListenAddr))
		if err := router.ListenAndServe(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}

// qualify defaults unqualified table names to the public schema.
func qualify(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return "public." + name
}
