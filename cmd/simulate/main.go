package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// simulate drives the booking API over HTTP with a mix of citizen and staff
// traffic and prints latency metrics per operation. It needs a running
// api-server with a seeded municipality catalog.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	CreateRatio float64
	ReadRatio   float64
	CancelRatio float64
	// remainder of the ratio space is staff status updates
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 8),
		CreateRatio: getFloat("SIM_CREATE_RATIO", 0.4),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.15),
	}
	return cfg
}

// TokenPool collects tokens of created bookings so readers, cancellers and
// staff updates have something to hit.
type TokenPool struct {
	mu     sync.RWMutex
	tokens []string
}

func (tp *TokenPool) Add(token string) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.tokens = append(tp.tokens, token)
}

func (tp *TokenPool) Random() (string, bool) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	if len(tp.tokens) == 0 {
		return "", false
	}
	return tp.tokens[rand.Intn(len(tp.tokens))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64 // 4xx responses: business rules doing their job
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	p50 = latencies[len(latencies)*50/100%len(latencies)]
	p95 = latencies[len(latencies)*95/100%len(latencies)]
	return avg, p50, p95
}

type Metrics struct {
	Create      OperationMetrics
	Read        OperationMetrics
	Cancel      OperationMetrics
	StaffUpdate OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()
	log.Printf("simulate starting: url=%s duration=%s workers=%d", cfg.APIBaseURL, cfg.Duration, cfg.Workers)

	gofakeit.Seed(time.Now().UnixNano())

	municipalities, err := fetchMunicipalities(cfg.APIBaseURL)
	if err != nil {
		log.Fatalf("fetch municipalities: %v", err)
	}
	if len(municipalities) == 0 {
		log.Fatal("no municipalities available; seed the catalog first")
	}
	log.Printf("loaded %d municipalities", len(municipalities))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	pool := &TokenPool{}
	metrics := &Metrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, client, cfg, municipalities, pool, metrics)
		}()
	}
	wg.Wait()

	report("create", &metrics.Create)
	report("read", &metrics.Read)
	report("cancel", &metrics.Cancel)
	report("staff-update", &metrics.StaffUpdate)
}

func worker(ctx context.Context, client *http.Client, cfg SimConfig, municipalities []string, pool *TokenPool, m *Metrics) {
	statuses := []string{"RECEIVED", "ASSIGNED", "IN_PROGRESS", "COMPLETED", "CANCELLED"}

	for ctx.Err() == nil {
		roll := rand.Float64()
		switch {
		case roll < cfg.CreateRatio:
			doCreate(client, cfg.APIBaseURL, municipalities, pool, &m.Create)
		case roll < cfg.CreateRatio+cfg.ReadRatio:
			if token, ok := pool.Random(); ok {
				doTimed(client, http.MethodGet, cfg.APIBaseURL+"/api/bookings/"+token, nil, &m.Read)
			}
		case roll < cfg.CreateRatio+cfg.ReadRatio+cfg.CancelRatio:
			if token, ok := pool.Random(); ok {
				doTimed(client, http.MethodPut, cfg.APIBaseURL+"/api/bookings/"+token+"/cancel", nil, &m.Cancel)
			}
		default:
			if token, ok := pool.Random(); ok {
				status := statuses[rand.Intn(len(statuses))]
				url := fmt.Sprintf("%s/api/staff/bookings/%s/status?status=%s", cfg.APIBaseURL, token, status)
				doTimed(client, http.MethodPatch, url, nil, &m.StaffUpdate)
			}
		}
	}
}

func doCreate(client *http.Client, baseURL string, municipalities []string, pool *TokenPool, om *OperationMetrics) {
	slots := []string{"MORNING", "MIDDAY", "EVENING", "NIGHT", "ANYTIME"}

	date := time.Now().AddDate(0, 0, rand.Intn(30)+1)
	if date.Weekday() == time.Sunday {
		date = date.AddDate(0, 0, 1)
	}

	body, _ := json.Marshal(map[string]string{
		"municipalityName": municipalities[rand.Intn(len(municipalities))],
		"requestedDate":    date.Format("2006-01-02"),
		"timeSlot":         slots[rand.Intn(len(slots))],
		"description":      gofakeit.Sentence(5),
	})

	start := time.Now()
	resp, err := client.Post(baseURL+"/api/bookings", "application/json", bytes.NewReader(body))
	if err != nil {
		om.Record(time.Since(start), 0)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var created struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.Token != "" {
			pool.Add(created.Token)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	om.Record(time.Since(start), resp.StatusCode)
}

func doTimed(client *http.Client, method, url string, body io.Reader, om *OperationMetrics) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		om.Record(0, 0)
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		om.Record(time.Since(start), 0)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	om.Record(time.Since(start), resp.StatusCode)
}

func fetchMunicipalities(baseURL string) ([]string, error) {
	resp, err := http.Get(baseURL + "/api/bookings/municipalities")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, err
	}
	return names, nil
}

func report(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	log.Printf("%-12s total=%d success=%d rejected=%d error=%d avg=%s p50=%s p95=%s",
		name, om.Total, om.Success, om.Rejected, om.Error, avg, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
