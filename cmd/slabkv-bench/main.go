// slabkv-bench drives a fixed read/write workload against a slabkv
// directory and reports throughput. It is a thin harness around
// pkg/kvstore, not part of the storage engine itself.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nainya/slabkv/internal/config"
	"github.com/nainya/slabkv/internal/logger"
	"github.com/nainya/slabkv/internal/metrics"
	"github.com/nainya/slabkv/pkg/kvstore"
)

var (
	dir         = flag.String("dir", "slabkv-bench.db", "slabkv directory path")
	numKeys     = flag.Int("keys", 100000, "number of distinct keys to write")
	valueSize   = flag.Int("value-size", 128, "value size in bytes")
	keySize     = flag.Int("key-size", 32, "key size in bytes (key_size, fixed for the directory's lifetime)")
	walFsync    = flag.Bool("wal-fsync", true, "fsync the WAL after every append")
	metricsPort = flag.Int("metrics-port", 9401, "port for the /metrics, /health, /ready observability endpoints")
)

func main() {
	flag.Parse()

	log := logger.NewLogger(logger.Config{Level: "info", Pretty: true})
	m := metrics.NewMetrics()

	obs := startObservabilityServer(*metricsPort, log)
	defer obs.Shutdown()

	opts := config.Default()
	opts.KeySize = *keySize
	opts.WalFsync = *walFsync
	if err := opts.Validate(); err != nil {
		log.Fatal("invalid options").Err(err).Send()
	}

	log.Info("opening slabkv directory").Str("dir", *dir).Send()
	store, err := kvstore.Open(*dir, opts, log.EngineLogger(), m)
	if err != nil {
		log.Fatal("failed to open slabkv directory").Err(err).Send()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down").Send()
		store.Close()
		os.Exit(0)
	}()

	runWorkload(store, log)

	if err := store.Close(); err != nil {
		log.Fatal("failed to close slabkv directory").Err(err).Send()
	}
}

func runWorkload(store *kvstore.KV, log *logger.Logger) {
	keys := make([][]byte, *numKeys)
	rng := rand.New(rand.NewSource(1))
	for i := range keys {
		k := make([]byte, *keySize)
		rng.Read(k)
		keys[i] = k
	}

	value := make([]byte, *valueSize)
	rng.Read(value)

	start := time.Now()
	for _, k := range keys {
		if err := store.Put(k, value); err != nil {
			log.Fatal("put failed").Err(err).Send()
		}
	}
	writeElapsed := time.Since(start)

	start = time.Now()
	hits := 0
	for _, k := range keys {
		if _, ok, err := store.Get(k); err != nil {
			log.Fatal("get failed").Err(err).Send()
		} else if ok {
			hits++
		}
	}
	readElapsed := time.Since(start)

	fmt.Printf("wrote %d keys in %s (%.0f ops/s)\n",
		len(keys), writeElapsed, float64(len(keys))/writeElapsed.Seconds())
	fmt.Printf("read  %d keys in %s (%.0f ops/s), %d hits\n",
		len(keys), readElapsed, float64(len(keys))/readElapsed.Seconds(), hits)
}

// observabilityServer exposes /metrics, /health, and /ready over HTTP
// for the duration of the benchmark run.
type observabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

func startObservabilityServer(port int, log *logger.Logger) *observabilityServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"slabkv"}`))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	obs := &observabilityServer{server: srv, log: log}
	go func() {
		log.Info("observability endpoints listening").Str("addr", srv.Addr).Send()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server failed").Err(err).Send()
		}
	}()
	return obs
}

func (o *observabilityServer) Shutdown() {
	o.server.Close()
}
