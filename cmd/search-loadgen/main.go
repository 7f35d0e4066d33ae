package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/httpclient"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/logger"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/postal"
)

type Config struct {
	TargetURL      string
	Service        string
	MaxDistanceKm  float64
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	Codes          int
	ShopsCSV       string
	OutputPrefix   string
	RequestTimeout time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8090/api/shops/search", "search endpoint URL")
	flag.StringVar(&cfg.Service, "service", "", "service filter sent with every request")
	flag.Float64Var(&cfg.MaxDistanceKm, "max-km", 0, "maxDistanceKm sent with every request (0 = server default)")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.Codes, "codes", 256, "distinct postal codes in the pool")
	flag.StringVar(&cfg.ShopsCSV, "shops-csv", "", "optional shop CSV whose postal codes seed the pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/search", "output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()
	return cfg
}

type sample struct {
	Timestamp  time.Time
	Latency    time.Duration
	Status     int
	Ranked     bool
	ErrorMsg   string
	PostalCode string
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	RankedCount   int64     `json:"ranked"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	Codes         int       `json:"codes"`
	TargetURL     string    `json:"target"`
}

type aggregate struct {
	total, success, ranked, errors int64
	latMs                          []float64
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := loadConfig()
	zl := logger.Build(logger.Config{Level: "info", Console: true, Component: "search-loadgen"}, os.Stderr)
	log := logger.NewSlog(&zl)

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Error("mkdir results", "err", err)
		return 1
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))

	seed := time.Now().UnixNano()
	pool, err := postalPool(log, cfg.ShopsCSV, cfg.Codes, rand.New(rand.NewSource(seed)))
	if err != nil {
		log.Error("build postal pool", "err", err)
		return 1
	}
	if len(pool) < 2 {
		log.Error("postal pool too small", "codes", len(pool))
		return 1
	}

	csvFile, err := os.Create(filepath.Clean(prefix + "_samples.csv"))
	if err != nil {
		log.Error("open csv", "err", err)
		return 1
	}
	defer func() { _ = csvFile.Close() }()

	client := httpclient.NewOutbound(cfg.RequestTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samples := make(chan sample, 4096)
	results := make(chan aggregate, 1)
	go collect(csv.NewWriter(csvFile), samples, results, log)

	start := time.Now()
	log.Info("loadgen start", "target", cfg.TargetURL, "duration", cfg.Duration,
		"concurrency", cfg.Concurrency, "codes", len(pool))

	var wg sync.WaitGroup
	for id := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, uint64(len(pool)-1))
			for ctx.Err() == nil {
				s := fire(ctx, client, cfg, pool[zipf.Uint64()])
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samples)
	}()

	agg := <-results
	end := time.Now()
	elapsed := end.Sub(start).Seconds()
	sort.Float64s(agg.latMs)

	out := summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		RankedCount:   agg.ranked,
		ErrorCount:    agg.errors,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		Codes:         len(pool),
		TargetURL:     cfg.TargetURL,
	}

	jsonPath := prefix + "_summary.json"
	if f, err := os.Create(filepath.Clean(jsonPath)); err == nil {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		_ = f.Close()
	}

	log.Info("loadgen done", "total", out.TotalRequests, "success", out.SuccessCount,
		"ranked", out.RankedCount, "errors", out.ErrorCount,
		"rps", out.ThroughputRPS, "p50_ms", out.P50Ms, "p95_ms", out.P95Ms, "p99_ms", out.P99Ms,
		"summary", jsonPath)
	return 0
}

func fire(ctx context.Context, client *http.Client, cfg Config, code string) sample {
	u, _ := url.Parse(cfg.TargetURL)
	q := u.Query()
	q.Set("postalCode", postal.Format(code))
	if cfg.Service != "" {
		q.Set("service", cfg.Service)
	}
	if cfg.MaxDistanceKm > 0 {
		q.Set("maxDistanceKm", strconv.FormatFloat(cfg.MaxDistanceKm, 'f', -1, 64))
	}
	u.RawQuery = q.Encode()

	s := sample{Timestamp: time.Now(), PostalCode: code}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	s.Latency = time.Since(s.Timestamp)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	s.Status = resp.StatusCode
	s.Ranked = resp.Header.Get("X-Search-Ranked") == "true"
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}

func collect(w *csv.Writer, in <-chan sample, out chan<- aggregate, log *slog.Logger) {
	_ = w.Write([]string{"timestamp", "latency_ms", "status", "ranked", "error", "postal_code"})
	agg := aggregate{latMs: make([]float64, 0, 1<<16)}
	for s := range in {
		agg.total++
		ms := float64(s.Latency.Microseconds()) / 1000.0
		if s.ErrorMsg == "" {
			agg.success++
			agg.latMs = append(agg.latMs, ms)
			if s.Ranked {
				agg.ranked++
			}
		} else {
			agg.errors++
		}
		_ = w.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.3f", ms),
			strconv.Itoa(s.Status),
			strconv.FormatBool(s.Ranked),
			s.ErrorMsg,
			s.PostalCode,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Warn("csv flush error", "err", err)
	}
	out <- agg
}
