package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"auction_monitor/config"
	"auction_monitor/httputil"
	"auction_monitor/logging"
	"auction_monitor/observability"
	"auction_monitor/scheduler"
	"auction_monitor/scraper"
	"auction_monitor/services"
	"auction_monitor/storage"
)

var (
	runOnce = flag.Bool("once", false, "Run every site once and exit")
	migrate = flag.Bool("migrate", false, "Create catalog and snapshot tables before starting (Postgres only)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting auction_monitor...")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s), %d sections", site.Name, id, len(site.Sections))
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", httputil.ProxyHost(&cfg.Proxy))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Operational data: run history, run logs, commands
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	var archiver *storage.S3Archiver
	if cfg.Archive.Enabled() {
		archiver, err = storage.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("set up run archive: %w", err)
		}
		log.Printf("Archiving run reports to %s", archiver.ObjectURL("runs/"))
	}

	reg := prometheus.NewRegistry()
	var metricsServer *http.Server

	sched := scheduler.New(cfg.Scheduler, sqliteStore)
	var monitors []*services.MonitorService
	var closers []func()

	ids := make([]string, 0, len(cfg.Sites))
	for id := range cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		site := cfg.Sites[id]

		store, closeStore, err := openStore(ctx, cfg, site, clients)
		if err != nil {
			return fmt.Errorf("open store for %s: %w", id, err)
		}
		closers = append(closers, closeStore)

		handler := scraper.NewHandler(site, scraper.NewFetcher(site, clients, &cfg.Proxy))
		closers = append(closers, func() {
			if err := handler.Close(); err != nil {
				log.Printf("Error closing fetcher for %s: %v", id, err)
			}
		})

		persister := services.NewPersister(store, store, services.PersisterOptions{
			ChunkSize:         cfg.Persist.ChunkSize,
			InsertConcurrency: cfg.Persist.InsertConcurrency,
			UpdateConcurrency: cfg.Persist.UpdateConcurrency,
		})

		monitor := services.NewMonitorService(site.ID, site.Source, store, handler, persister)
		monitor.SetRecorder(sqliteStore)
		if archiver != nil {
			monitor.SetArchiver(archiver)
		}
		if cfg.MetricsAddr != "" {
			monitor.SetObserver(observability.NewMetrics(reg, site.ID))
		}

		monitors = append(monitors, monitor)
		sched.Register(site.ID, monitor)
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	if *runOnce {
		failed := false
		for _, m := range monitors {
			summary, err := m.Run(ctx)
			if err != nil {
				log.Printf("Run failed: %v", err)
				failed = true
				continue
			}
			log.Printf("Run complete: %s", summary)
		}
		if failed {
			return errors.New("one or more runs failed")
		}
		return nil
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server error: %v", err)
			}
		}()
		log.Printf("Metrics on %s/metrics", cfg.MetricsAddr)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	if metricsServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		metricsServer.Shutdown(shutdownCtx)
	}
	log.Println("Goodbye!")
	return nil
}

// openStore connects to Postgres directly when DATABASE_URL is set and falls
// back to the Supabase REST interface otherwise.
func openStore(ctx context.Context, cfg *config.Config, site *config.SiteConfig, clients *httputil.Clients) (services.Store, func(), error) {
	tables := storage.Tables{
		Schema:    cfg.Supabase.Schema,
		Items:     site.ItemsTable,
		Snapshots: site.SnapshotsTable,
		LoadChunk: cfg.Persist.LoadChunk,
	}

	if cfg.Database.URL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.Database.URL, tables)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))
		if *migrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				pg.Close()
				return nil, nil, err
			}
			log.Println("Schema ensured")
		}
		return pg, pg.Close, nil
	}

	if *migrate {
		log.Println("Warning: -migrate needs DATABASE_URL, skipping")
	}
	log.Printf("Using Supabase REST: %s", cfg.Supabase.URL)
	return storage.NewPostgRESTStore(clients.API, cfg.Supabase.URL, cfg.Supabase.ServiceKey, tables), func() {}, nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
