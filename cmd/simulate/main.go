package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/cpf"
	"github.com/hackgods/clinic-chat-scheduling/internal/logger"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// SimConfig drives a run. BookingRatio is the share of iterations that run a
// full booking dialogue; the rest are reads. HotDate concentrates every
// booking on one day (empty means the next weekday) so patients race for the
// same slots, and Specialties limits bookings to the first N specialties.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	HotDate      string
	Specialties  int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, result outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch result {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
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
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking       OperationMetrics
	ListByPatient OperationMetrics
	Availability  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *chatClient
	log     *zap.Logger
	date    schedule.Date
	metrics Metrics

	mu      sync.RWMutex
	booked  []string // CPFs with at least one appointment
	created atomic.Int64
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(getEnv("LOG_LEVEL", "info"), "console")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	date, err := resolveDate(cfg.HotDate, time.Now())
	if err != nil {
		log.Fatal("invalid SIM_HOT_DATE", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking_ratio", cfg.BookingRatio),
		zap.String("date", date.BR()),
	)

	sim := &Simulator{
		config: cfg,
		client: &chatClient{baseURL: cfg.APIBaseURL, http: newHTTPClient()},
		log:    log,
		date:   date,
	}

	sim.Run()
	sim.PrintReport()

	if !sim.Verify(context.Background()) {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.7),
		HotDate:      os.Getenv("SIM_HOT_DATE"),
		Specialties:  getInt("SIM_SPECIALTIES", 2),
	}
	if cfg.Specialties < 1 || cfg.Specialties > len(appointment.Specialties) {
		cfg.Specialties = len(appointment.Specialties)
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.BookingRatio < 0 || cfg.BookingRatio > 1 {
		return fmt.Errorf("SIM_BOOKING_RATIO must be within [0, 1]")
	}
	return nil
}

// resolveDate parses raw as DD/MM/YYYY, or picks the first weekday after now.
func resolveDate(raw string, now time.Time) (schedule.Date, error) {
	if raw != "" {
		return schedule.ParseDate(raw)
	}
	d := schedule.DateOf(now).AddDays(1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDays(1)
	}
	return d, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if faker.Float64() < s.config.BookingRatio {
			s.doBooking(ctx, faker)
			continue
		}
		if faker.Bool() {
			s.doListByPatient(ctx, faker)
		} else {
			s.doAvailability(ctx, faker)
		}
	}
}

// doBooking runs one complete booking dialogue for a brand new patient, so
// no session state leaks between attempts.
func (s *Simulator) doBooking(ctx context.Context, faker *gofakeit.Faker) {
	patient := cpf.Generate(faker)
	specialty := faker.Number(1, s.config.Specialties)

	start := time.Now()
	result, err := s.bookDialogue(ctx, faker, patient, specialty)
	latency := time.Since(start)

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.log.Debug("booking dialogue failed", zap.String("patient", cpf.Format(patient)), zap.Error(err))
	}
	if result == outcomeSuccess {
		s.mu.Lock()
		s.booked = append(s.booked, patient)
		s.mu.Unlock()
		s.created.Add(1)
	}

	s.metrics.Booking.Record(latency, result)
}

func (s *Simulator) bookDialogue(ctx context.Context, faker *gofakeit.Faker, patient string, specialty int) (outcome, error) {
	steps := []string{"2", strconv.Itoa(specialty), s.date.BR()}

	var reply string
	for _, msg := range steps {
		var err error
		if reply, err = s.client.say(ctx, patient, msg); err != nil {
			return outcomeError, err
		}
	}

	times := offeredTimes(reply)
	if len(times) == 0 {
		// day already full for this specialty
		return outcomeConflict, nil
	}

	reply, err := s.client.say(ctx, patient, times[faker.Number(0, len(times)-1)])
	if err != nil {
		return outcomeError, err
	}
	return classify(reply), nil
}

func (s *Simulator) doListByPatient(ctx context.Context, faker *gofakeit.Faker) {
	s.mu.RLock()
	if len(s.booked) == 0 {
		s.mu.RUnlock()
		return
	}
	patient := s.booked[faker.Number(0, len(s.booked)-1)]
	s.mu.RUnlock()

	start := time.Now()
	appts, err := s.client.patientAppointments(ctx, patient)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	result := outcomeSuccess
	if err != nil || len(appts) == 0 {
		result = outcomeError
	}
	s.metrics.ListByPatient.Record(latency, result)
}

func (s *Simulator) doAvailability(ctx context.Context, faker *gofakeit.Faker) {
	specialty := appointment.Specialties[faker.Number(0, s.config.Specialties-1)]

	start := time.Now()
	_, err := s.client.availability(ctx, specialty, s.date.BR())
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	result := outcomeSuccess
	if err != nil {
		result = outcomeError
	}
	s.metrics.Availability.Record(latency, result)
}

// Verify checks the store never handed the same doctor two appointments at
// one date and time.
func (s *Simulator) Verify(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	appts, err := s.client.allAppointments(ctx)
	if err != nil {
		s.log.Error("could not list appointments for verification", zap.Error(err))
		return false
	}

	dup := doubleBookings(appts)
	for _, k := range dup {
		s.log.Error("double booking detected",
			zap.Int64("doctor_id", k.doctorID),
			zap.String("date", k.date),
			zap.String("time", k.time),
		)
	}

	fmt.Printf("Verification: %d appointments stored, %d created by this run, %d double bookings\n",
		len(appts), s.created.Load(), len(dup))
	return len(dup) == 0
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Date: %s\n", s.date.BR())
	fmt.Println()

	printOperationReport("Booking dialogue", &s.metrics.Booking)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
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

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
