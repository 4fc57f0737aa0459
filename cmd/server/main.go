package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tileworld.ai/internal/persistence/indexdb"
	persistlog "tileworld.ai/internal/persistence/log"
	"tileworld.ai/internal/registry"
	"tileworld.ai/internal/sim/mapload"
	"tileworld.ai/internal/sim/room"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/transport/httpapi"
	"tileworld.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		mapPath    = flag.String("map", "", "map pack yaml (empty: built-in map)")
		skillsPath = flag.String("skills", "", "skills catalog yaml (empty: built-in catalog)")
		tickRate   = flag.Int("tick_rate", 20, "simulation ticks per second")
		baseSpeed  = flag.Float64("base_speed", 128, "base movement speed, world units/s")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")
		noJournal  = flag.Bool("disable_journal", false, "disable event journaling")
		pprofOn    = flag.Bool("pprof", false, "expose /debug/pprof")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldMap := mapload.Default()
	if strings.TrimSpace(*mapPath) != "" {
		m, err := mapload.Load(*mapPath)
		if err != nil {
			logger.Fatalf("load map: %v", err)
		}
		worldMap = m
	}

	catalog := skills.Defaults()
	if strings.TrimSpace(*skillsPath) != "" {
		c, err := skills.Load(*skillsPath)
		if err != nil {
			logger.Fatalf("load skills: %v", err)
		}
		catalog = c
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := room.NewMetrics(promReg)

	var idx *indexdb.Index
	if !*disableDB {
		var err error
		idx, err = indexdb.Open(*dataDir + "/index.db")
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	var journals registry.JournalFactory
	if !*noJournal || idx != nil {
		journals = func(roomID string) (room.Journal, error) {
			var sinks []room.Journal
			if !*noJournal {
				sinks = append(sinks, persistlog.NewEventJournal(*dataDir, roomID))
			}
			if idx != nil {
				sinks = append(sinks, idx)
			}
			return room.MultiJournal(sinks...), nil
		}
	}

	reg := registry.New(room.Config{
		TickRateHz: *tickRate,
		BaseSpeed:  *baseSpeed,
	}, worldMap, catalog,
		registry.WithMetrics(metrics),
		registry.WithJournals(journals),
		registry.WithLogger(logger),
	)
	defer reg.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	httpapi.NewServer(reg, logger).Register(mux)
	mux.HandleFunc("GET /v1/rooms/{room}/watch", ws.NewServer(reg, logger).WatchHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	if *pprofOn {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("map %s (%dx%d tiles), %d skills, listening on %s",
		worldMap.Name, worldMap.Grid.Cols(), worldMap.Grid.Rows(), len(catalog.Skills), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
