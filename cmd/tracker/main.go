package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/globe-tracker/core"
	"github.com/signalsfoundry/globe-tracker/internal/logging"
	"github.com/signalsfoundry/globe-tracker/internal/observability"
	"github.com/signalsfoundry/globe-tracker/model"
	"github.com/signalsfoundry/globe-tracker/store"
	"github.com/signalsfoundry/globe-tracker/timectrl"
)

// Built-in demo catalog, used when no -catalog file is given.
var demoCatalog = []model.ElementSet{
	{
		Name:  "ISS (ZARYA)",
		Line1: "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
		Line2: "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760",
	},
	{
		Name:  "HST",
		Line1: "1 20580U 90037B   21275.50000000  .00000500  00000-0  25000-4 0  9991",
		Line2: "2 20580  28.4699 288.8102 0002543 321.7771 171.5855 15.09299865521104",
	},
	{
		Name:  "NOAA 19",
		Line1: "1 33591U 09005A   21275.50000000  .00000100  00000-0  75000-4 0  9998",
		Line2: "2 33591  99.1940 300.1200 0014120 140.0000 220.2200 14.12501077652321",
	},
}

func main() {
	catalogPath := flag.String("catalog", "", "path to a JSON element-set catalog (default: built-in demo set)")
	refreshPeriod := flag.Duration("refresh", 10*time.Minute, "trajectory rebuild cadence")
	cycleTimeout := flag.Duration("cycle-timeout", 30*time.Second, "bound on a single rebuild cycle")
	sampleCount := flag.Int("samples", 181, "sample epochs per trajectory")
	sampleSpacing := flag.Duration("spacing", 30*time.Second, "spacing between sample epochs")
	multiplier := flag.Float64("multiplier", 1.0, "simulation playback rate (1.0 = real time)")
	tick := flag.Duration("tick", 2*time.Second, "display update interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "address for the Prometheus /metrics endpoint (empty disables)")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewPipelineCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	// ==== Element catalog ====

	elements := store.NewElementStore()
	collector.SetCatalogSize(0)

	sets := demoCatalog
	if *catalogPath != "" {
		f, err := os.Open(*catalogPath)
		if err != nil {
			log.Error(ctx, "open catalog failed", logging.String("path", *catalogPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
		sets, err = core.LoadCatalog(f)
		f.Close()
		if err != nil {
			log.Error(ctx, "load catalog failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// ==== Clock + pipeline ====

	clock := timectrl.NewSimClock(time.Now().UTC(), *multiplier)

	sampler := core.NewSampler(core.NewSGP4Propagator(),
		core.WithSamplerLogger(log),
		core.WithSamplerMetrics(collector),
	)
	refresher := core.NewRefreshService(core.RefreshConfig{
		Period:        *refreshPeriod,
		CycleTimeout:  *cycleTimeout,
		SampleCount:   *sampleCount,
		SampleSpacing: *sampleSpacing,
	}, &core.StoreSource{Store: elements}, sampler, clock,
		core.WithRefreshLogger(log),
		core.WithRefreshMetrics(collector),
	)

	// New catalog data kicks a rebuild outside the schedule.
	elements.Subscribe(func(ev store.Event) {
		collector.SetCatalogSize(ev.Count)
		refresher.TriggerRefresh()
	})
	elements.Replace(sets)

	go func() {
		if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "refresh loop exited", logging.String("error", err.Error()))
		}
	}()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
	}

	// ==== Demo render loop ====
	// Stands in for the external render surface: per tick it pulls the
	// published set and queries each trajectory at the clock's sim time.

	clock.AddListener(func(simTime time.Time) {
		set := refresher.Current()
		if set == nil {
			fmt.Printf("[%s] no trajectory set published yet\n", simTime.Format(time.RFC3339))
			return
		}
		staleMark := ""
		if refresher.Stale() {
			staleMark = " (stale)"
		}
		fmt.Printf("[%s] %d objects%s\n", simTime.Format(time.RFC3339), set.Len(), staleMark)
		for _, name := range set.Names() {
			tr, _ := set.Get(name)
			pos := tr.PositionAt(simTime)
			fmt.Printf("↳ %-16s @ (%11.0f, %11.0f, %11.0f) m\n", name, pos.X, pos.Y, pos.Z)
		}
	})

	fmt.Printf("Starting tracker: %d elements, refresh=%s, samples=%d, spacing=%s, multiplier=%.1f\n",
		elements.Len(), *refreshPeriod, *sampleCount, *sampleSpacing, *multiplier)
	done := clock.Start(ctx, *tick)
	<-done
	fmt.Println("Tracker stopped.")
}
