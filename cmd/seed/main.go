package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/cpf"
	"github.com/hackgods/clinic-chat-scheduling/internal/db"
	"github.com/hackgods/clinic-chat-scheduling/internal/logger"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

func main() {
	patients := flag.Int("patients", 200, "number of fake patients to book for")
	days := flag.Int("days", 10, "how many weekdays ahead to spread bookings over")
	seed := flag.Uint64("seed", 0, "random seed (0 = time based)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatal("seed only runs against postgres", zap.String("store_backend", cfg.StoreBackend))
	}

	ctx := context.Background()

	if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate up failed", zap.Error(err))
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancel()
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := appointment.NewPgRepository(pool)
	roster := appointment.DefaultRoster()
	if err := repo.UpsertDoctors(ctx, roster); err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	log.Info("doctors seeded", zap.Int("count", len(roster)))

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	faker := gofakeit.New(*seed)

	svc := appointment.NewService(repo, repo, redisclient.NewLocalLocker(cfg.LockTTL), log.Named("appointment"))
	dates := upcomingWeekdays(schedule.Today(time.Now(), cfg.Location), *days)
	catalog := schedule.Catalog()

	var booked, conflicts int
	for i := 0; i < *patients; i++ {
		patientID := cpf.Generate(faker)
		specialty := appointment.Specialties[faker.Number(0, len(appointment.Specialties)-1)]
		date := dates[faker.Number(0, len(dates)-1)]
		at := catalog[faker.Number(0, len(catalog)-1)]

		_, err := svc.Book(ctx, patientID, specialty, date, at)
		switch {
		case err == nil:
			booked++
		case errors.Is(err, appointment.ErrConflict):
			conflicts++
		default:
			log.Fatal("seed appointment", zap.String("patient", cpf.Format(patientID)), zap.Error(err))
		}

		if (i+1)%50 == 0 {
			log.Info("seeding appointments", zap.Int("done", i+1), zap.Int("total", *patients))
		}
	}

	log.Info("seed complete", zap.Int("booked", booked), zap.Int("conflicts", conflicts))
}

// upcomingWeekdays returns the next n weekdays starting tomorrow.
func upcomingWeekdays(today schedule.Date, n int) []schedule.Date {
	if n < 1 {
		n = 1
	}
	out := make([]schedule.Date, 0, n)
	for d := today.AddDays(1); len(out) < n; d = d.AddDays(1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}
