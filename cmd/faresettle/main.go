package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fare-matrix/internal/batch"
	"fare-matrix/internal/config"
	"fare-matrix/internal/db"
	"fare-matrix/internal/input"
	"fare-matrix/internal/metrics"
	"fare-matrix/internal/publisher"
	"fare-matrix/internal/rules"
	"fare-matrix/internal/sink"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	os.Exit(run(cfg))
}

// run settles every configured region and returns the process exit code:
// 1 when any region, pair or sink failed.
func run(cfg *config.Config) int {
	runID, regions, err := cfg.Regions()
	if err != nil {
		log.Printf("run config error: %v", err)
		return 1
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Shared sinks; the CSV sink is added per region.
	shared := []sink.Sink{}
	if cfg.ResultsDatabaseURL != "" {
		pg, err := sink.NewPostgres(ctx, cfg.ResultsDatabaseURL)
		if err != nil {
			log.Printf("results db error: %v", err)
			return 1
		}
		defer pg.Close()
		shared = append(shared, pg)
	}
	if cfg.RedisAddr != "" {
		rd, err := sink.NewRedis(ctx, cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			log.Printf("redis error: %v", err)
			return 1
		}
		defer rd.Close()
		shared = append(shared, rd)
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.Verbose, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Printf("nats error: %v", err)
			return 1
		}
		defer pub.Close()
		shared = append(shared, pub)
	}

	failed := 0
	for _, rr := range regions {
		if ctx.Err() != nil {
			log.Printf("cancelled before region %q", rr.Key)
			failed++
			break
		}
		out := sink.NewFanout(mcol, sink.NewCSV(rr.Output))
		for _, s := range shared {
			out.Add(s)
		}
		rep, err := runRegion(ctx, cfg, runID, rr, mcol, out)
		if err != nil {
			log.Printf("region %q: %v", rr.Key, err)
			failed++
			continue
		}
		if len(rep.Failures) > 0 || rep.Skipped > 0 {
			failed++
		}
	}

	log.Println("shutdown complete")
	if failed > 0 {
		return 1
	}
	return 0
}

func runRegion(ctx context.Context, cfg *config.Config, runID string, rr config.RegionRun, mcol *metrics.Collector, out *sink.Fanout) (*batch.Report, error) {
	store, err := loadRules(ctx, cfg.DatabaseURL, rr, mcol)
	if err != nil {
		return nil, err
	}

	rows, rejected, err := input.ReadFile(rr.Itineraries, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("read itineraries: %w", err)
	}
	coll := batch.NewCollection(rows, cfg.MaxTravelMinutes)
	coll.Reject(rejected)
	log.Printf("region %q: %d rows, %d pairs, %d rejected pairs", rr.Key, len(rows), coll.Size(), len(rejected))

	runner := batch.NewRunner(store, cfg.Workers, cfg.Verbose, mcol)
	runner.RunID = runID
	rep := runner.Run(ctx, rr.Key, coll)

	if err := out.Write(ctx, rep); err != nil {
		return rep, fmt.Errorf("write results: %w", err)
	}
	return rep, nil
}

// loadRules opens the region's fare rules database, resolving the latest
// import on the cluster when the run names none, and loads it into memory.
func loadRules(ctx context.Context, baseDSN string, rr config.RegionRun, mcol *metrics.Collector) (*rules.Index, error) {
	finalDSN := baseDSN
	name := rr.RulesDatabase
	if name == "" && rr.Key != "" {
		// fare_imports lives on the cluster's 'postgres' database
		rootDSN, err := db.WithDBName(baseDSN, "postgres")
		if err != nil {
			return nil, fmt.Errorf("invalid base DSN: %w", err)
		}
		metaDB, err := db.Open(rootDSN)
		if err != nil {
			return nil, fmt.Errorf("db open (meta): %w", err)
		}
		defer metaDB.Close()
		if err := db.Ping(ctx, metaDB); err != nil {
			return nil, fmt.Errorf("db ping (meta): %w", err)
		}
		name, err = db.ResolveLatestFareDBName(ctx, metaDB, rr.Key)
		if err != nil {
			return nil, fmt.Errorf("resolve latest fare db for region %q: %w", rr.Key, err)
		}
	}
	if name != "" {
		var err error
		finalDSN, err = db.WithDBName(baseDSN, name)
		if err != nil {
			return nil, fmt.Errorf("compose DSN: %w", err)
		}
	}
	log.Printf("Using database %s for region %q", db.Redact(finalDSN), rr.Key)

	sqlDB, err := db.Open(finalDSN)
	if err != nil {
		return nil, fmt.Errorf("db open (rules): %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("db ping (rules): %w", err)
	}

	store, stats, err := db.LoadFareRules(ctx, sqlDB)
	if err != nil {
		return nil, err
	}
	for table, n := range stats {
		if mcol != nil {
			mcol.RulesLoaded.WithLabelValues(table).Set(float64(n))
		}
	}
	log.Printf("loaded fare rules for %d feeds (%d transfer rules)", store.Feeds(), stats["transfer"])
	return store, nil
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
