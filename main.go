package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	"github.com/stevemurr/plaindb/codec"
	"github.com/stevemurr/plaindb/config"
	"github.com/stevemurr/plaindb/docstore"
	"github.com/stevemurr/plaindb/handler"
	"github.com/stevemurr/plaindb/metrics"
	"github.com/stevemurr/plaindb/store"
)

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if o == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// openStore builds the backing store named by the configuration.
func openStore(cfg config.Config) (store.Store, error) {
	var opts []store.FileOption
	if cfg.Codec != "" {
		opts = append(opts, store.WithCodec(codec.MustByName(cfg.Codec)))
	}
	compression, err := store.ParseCompression(cfg.Compress)
	if err != nil {
		return nil, err
	}
	opts = append(opts, store.WithCompression(compression))
	return store.New(cfg.Backend, cfg.DataDir, opts...)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("create store (backend=%s): %w", cfg.Backend, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := docstore.Open(s,
		docstore.WithLogger(logger),
		docstore.WithMetrics(metrics.NewPrometheus(reg)),
		docstore.WithDefaultTable(cfg.DefaultTable),
	)
	if err != nil {
		s.Close()
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	h := handler.New(db, handler.WithLogger(logger), handler.WithMetrics(metrics.Handler(reg)))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           corsMiddleware(h, cfg.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("plaindb starting", "addr", cfg.Addr, "backend", cfg.Backend, "data_dir", cfg.DataDir, "compress", cfg.Compress)

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stdout, "Usage of plaindb:\n%s", config.Usage())
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "plaindb: %v\n", err)
		os.Exit(2)
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("plaindb stopped", "err", err)
		os.Exit(1)
	}
}
