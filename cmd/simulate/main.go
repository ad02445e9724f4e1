package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// The simulator drives full booking conversations against a running
// chat-server. All workers chase the same few doctors, so most dialogues
// race for the same provider-days and conflicts are expected.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	DoctorLimit int
	MaxTurns    int
	SlotSpread  int // workers pick slot numbers 1..SlotSpread
	RetryOnBusy int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Turns     OperationMetrics
	Dialogues OperationMetrics
}

type Simulator struct {
	config  SimConfig
	doctors []string
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d doctors=%d",
		cfg.Duration, cfg.Workers, cfg.DoctorLimit)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	doctors, err := sim.loadDoctors(ctx)
	cancel()
	if err != nil {
		log.Fatalf("load doctors: %v", err)
	}
	sim.doctors = doctors
	log.Printf("targeting %d doctors: %s", len(doctors), strings.Join(doctors, ", "))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		DoctorLimit: getInt("SIM_DOCTOR_LIMIT", 2),
		MaxTurns:    getInt("SIM_MAX_TURNS", 40),
		SlotSpread:  getInt("SIM_SLOT_SPREAD", 3),
		RetryOnBusy: getInt("SIM_RETRY_ON_BUSY", 3),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DoctorLimit <= 0 {
		return fmt.Errorf("SIM_DOCTOR_LIMIT must be > 0")
	}
	return nil
}

func (s *Simulator) loadDoctors(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/providers", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("providers returned %d", resp.StatusCode)
	}

	var providers []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&providers); err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers available, run the seed first")
	}

	limit := s.config.DoctorLimit
	if limit > len(providers) {
		limit = len(providers)
	}
	names := make([]string, 0, limit)
	for _, p := range providers[:limit] {
		names = append(names, p.Name)
	}
	return names, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.runDialogue(ctx, rng)
		}
	}
}

// runDialogue plays one booking conversation end to end, steering each turn
// off the previous reply. A lost slot race shows up as a fresh slot list,
// which the script simply answers again.
func (s *Simulator) runDialogue(ctx context.Context, rng *rand.Rand) {
	sessionID := uuid.New().String()
	doctor := s.doctors[rng.Intn(len(s.doctors))]

	name := gofakeit.Name()
	dob := fmt.Sprintf("%d-%02d-%02d", 1950+rng.Intn(50), 1+rng.Intn(12), 1+rng.Intn(28))
	phone := gofakeit.Numerify("##########")
	email := gofakeit.Email()
	carrier := gofakeit.RandomString([]string{"Blue Cross", "Aetna", "Cigna", "UnitedHealth"})
	memberID := gofakeit.Numerify("MBR########")
	groupID := gofakeit.Numerify("GRP#####")

	start := time.Now()
	conflicts := 0
	message := "hello"

	for turn := 0; turn < s.config.MaxTurns; turn++ {
		reply, err := s.sendTurn(ctx, sessionID, message)
		if err != nil {
			if ctx.Err() == nil {
				s.metrics.Dialogues.Record(time.Since(start), false, false)
			}
			return
		}

		switch {
		case strings.Contains(reply, "Appointment Confirmed"):
			s.metrics.Dialogues.Record(time.Since(start), true, conflicts > 0)
			return
		case strings.Contains(reply, "no available appointments"):
			// Schedule exhausted for this doctor; count as conflict outcome.
			s.metrics.Dialogues.Record(time.Since(start), false, true)
			return
		case strings.Contains(reply, "just taken"):
			conflicts++
			if conflicts > s.config.RetryOnBusy {
				s.metrics.Dialogues.Record(time.Since(start), false, true)
				return
			}
			message = strconv.Itoa(1 + rng.Intn(s.config.SlotSpread))
		case strings.Contains(reply, "full name"):
			message = name
		case strings.Contains(reply, "date of birth"):
			message = dob
		case strings.Contains(reply, "doctor"):
			message = doctor
		case strings.Contains(reply, "phone number"):
			message = phone
		case strings.Contains(reply, "email address"):
			message = email
		case strings.Contains(reply, "preferred slot"):
			message = strconv.Itoa(1 + rng.Intn(s.config.SlotSpread))
		case strings.Contains(reply, "insurance carrier"):
			message = carrier
		case strings.Contains(reply, "Member ID"):
			message = memberID
		case strings.Contains(reply, "Group ID"):
			message = groupID
		case strings.Contains(reply, "CONFIRM"):
			message = "CONFIRM"
		default:
			s.metrics.Dialogues.Record(time.Since(start), false, false)
			return
		}
	}

	s.metrics.Dialogues.Record(time.Since(start), false, false)
}

func (s *Simulator) sendTurn(ctx context.Context, sessionID, message string) (string, error) {
	body, _ := json.Marshal(map[string]string{"message": message})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/sessions/%s/messages", s.config.APIBaseURL, sessionID), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Turns.Record(latency, false, false)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.Turns.Record(latency, false, false)
		return "", fmt.Errorf("turn returned %d", resp.StatusCode)
	}

	var turnResp struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&turnResp); err != nil {
		s.metrics.Turns.Record(latency, false, false)
		return "", err
	}

	s.metrics.Turns.Record(latency, true, false)
	return turnResp.Reply, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Doctors targeted: %d\n", len(s.doctors))
	fmt.Println()

	printOperationReport("Turns", &s.metrics.Turns)
	printOperationReport("Dialogues (booked / lost race / failed)", &s.metrics.Dialogues)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failures := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failures > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failures, float64(failures)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
