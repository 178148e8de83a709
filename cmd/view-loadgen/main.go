// Command view-loadgen drives the derived-view endpoints of a running review
// server under concurrent load and records per-request samples plus a latency
// summary. View popularity follows a Zipf distribution so the hot views
// (heatmap, editing conditions) dominate, the way a review UI polls them.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	TargetURL       string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	Conditions      int
	SeedSession     bool
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
	TimestampFormat string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8084", "Review server base URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.Conditions, "conditions", 24, "Region conditions to seed into the session")
	flag.BoolVar(&cfg.SeedSession, "seed", true, "Seed the session with conditions before the run")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/views", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append timestamp to output prefix")
	flag.StringVar(&cfg.TimestampFormat, "ts-format", "iso", "Timestamp format: iso|unix|none")
	flag.Parse()
	return cfg
}

// viewTarget is one entry of the request pool. Zipf rank decides how often
// each entry is hit, so order the pool hottest-first.
type viewTarget struct {
	Name string
	Path string
}

func makeViewPool() []viewTarget {
	pool := []viewTarget{
		{Name: "heatmap", Path: "/api/views/heatmap"},
		{Name: "editing-conditions", Path: "/api/views/editing-conditions"},
		{Name: "selected-condition", Path: "/api/views/selected-condition"},
	}
	for res := 5; res <= 9; res++ {
		pool = append(pool, viewTarget{
			Name: fmt.Sprintf("region-cells-r%d", res),
			Path: fmt.Sprintf("/api/views/region-cells?res=%d", res),
		})
	}
	return pool
}

// makeRegions scatters square region geometries around the demo sites so the
// cell cover and geometry views have realistic, distinct footprints.
func makeRegions(count int, r *rand.Rand) []json.RawMessage {
	centers := [][2]float64{
		{-81.6557, 30.3322},  // Jacksonville
		{-117.2340, 32.8801}, // UCSD
	}
	regions := make([]json.RawMessage, 0, count)
	for i := range count {
		c := centers[i%len(centers)]
		dx, dy := (r.Float64()-0.5)*0.20, (r.Float64()-0.5)*0.20
		half := 0.01 + r.Float64()*0.04
		lon, lat := c[0]+dx, c[1]+dy
		geom := fmt.Sprintf(
			`{"type":"Polygon","coordinates":[[[%.5f,%.5f],[%.5f,%.5f],[%.5f,%.5f],[%.5f,%.5f],[%.5f,%.5f]]]}`,
			lon-half, lat-half, lon+half, lat-half, lon+half, lat+half, lon-half, lat+half, lon-half, lat-half,
		)
		regions = append(regions, json.RawMessage(geom))
	}
	return regions
}

// seedSession replaces the server's filter conditions and selects the first
// one, so selected-condition serves a body instead of 204 during the run.
func seedSession(ctx context.Context, client *http.Client, base string, count int, r *rand.Rand) error {
	type condition struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
	}
	conds := make([]condition, 0, count)
	for _, geom := range makeRegions(count, r) {
		conds = append(conds, condition{Type: "region", Geometry: geom})
	}
	body, err := json.Marshal(conds)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}

	put := func(path string, payload []byte) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusNoContent {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%s status %d: %s", path, resp.StatusCode, string(b))
		}
		return nil
	}

	if err := put("/api/session/conditions", body); err != nil {
		return err
	}

	// The server assigns condition IDs, so read the session back to select one
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/session", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get session status %d", resp.StatusCode)
	}
	var sess struct {
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if len(sess.Conditions) == 0 {
		return fmt.Errorf("session has no conditions after seeding")
	}
	return put("/api/session/condition", sess.Conditions[0])
}

// request result (one sample per request)
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	ViewIndex int
	ViewName  string
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Views         int       `json:"views"`
	Conditions    int       `json:"conditions"`
	TargetURL     string    `json:"target"`
}

type aggregatedResult struct {
	total   int64
	success int64
	errors  int64
	latMs   []float64
}

func main() {
	cfg := loadConfig()
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}

	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		switch strings.ToLower(cfg.TimestampFormat) {
		case "none":
		case "unix":
			prefix = fmt.Sprintf("%s_%d", prefix, time.Now().Unix())
		default: // "iso"
			prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
		}
	}

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	base := strings.TrimRight(cfg.TargetURL, "/")
	pool := makeViewPool()
	imax := uint64(len(pool)) - 1

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	if cfg.SeedSession {
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 15*time.Second)
		err := seedSession(seedCtx, httpClient, base, cfg.Conditions, r)
		cancelSeed()
		if err != nil {
			log.Fatalf("seed session: %v", err)
		}
		log.Printf("seeded session with %d region conditions", cfg.Conditions)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	// Prepare output files
	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Printf("open csv: %v", err)
		return
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	// Collects results asynchronously
	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "view_idx", "view"})
		var total, successCount, errorCount int64
		latencies := make([]float64, 0, 1<<20)
		for s := range samplesChan {
			total++
			if s.ErrorMsg == "" && s.Status >= 200 && s.Status < 300 {
				successCount++
				latencies = append(latencies, float64(s.Latency.Microseconds())/1000.0)
			} else {
				errorCount++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", float64(s.Latency.Microseconds())/1000.0),
				fmt.Sprintf("%d", s.Status),
				s.ErrorMsg,
				fmt.Sprintf("%d", s.ViewIndex),
				s.ViewName,
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- aggregatedResult{total: total, success: successCount, errors: errorCount, latMs: latencies}
	}()

	startTime := time.Now()
	log.Printf("view-loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) views=%d conditions=%d",
		base, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, len(pool), cfg.Conditions)

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)

	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()

			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipfDist := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				v := zipfDist.Uint64()
				if v > uint64(math.MaxInt) {
					continue
				}
				idx := int(v)
				if idx >= len(pool) {
					continue
				}
				view := pool[idx]

				startReq := time.Now()
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+view.Path, nil)
				req.Header.Set("Accept", "application/json")
				resp, err := httpClient.Do(req)
				latency := time.Since(startReq)

				result := sample{
					Timestamp: startReq,
					Latency:   latency,
					Status:    0,
					ErrorMsg:  "",
					ViewIndex: idx,
					ViewName:  view.Name,
				}

				if err != nil {
					result.ErrorMsg = err.Error()
				} else {
					result.Status = resp.StatusCode
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
					if resp.StatusCode < 200 || resp.StatusCode >= 300 {
						result.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
					}
				}

				select {
				case samplesChan <- result:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	// close samples channel
	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	aggResult := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(aggResult.latMs)
	p50 := percentile(aggResult.latMs, 50)
	p95 := percentile(aggResult.latMs, 95)
	p99 := percentile(aggResult.latMs, 99)

	runSummary := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: aggResult.total,
		SuccessCount:  aggResult.success,
		ErrorCount:    aggResult.errors,
		ThroughputRPS: float64(aggResult.total) / elapsed,
		P50Ms:         p50,
		P95Ms:         p95,
		P99Ms:         p99,
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Views:         len(pool),
		Conditions:    cfg.Conditions,
		TargetURL:     base,
	}

	jsonFile, err := os.Create(filepath.Clean(jsonPath))
	if err == nil {
		enc := json.NewEncoder(jsonFile)
		enc.SetIndent("", "  ")
		_ = enc.Encode(runSummary)
		_ = jsonFile.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		aggResult.total, aggResult.success, aggResult.errors, runSummary.ThroughputRPS, p50, p95, p99)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
