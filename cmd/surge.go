package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hamzali/surge"
	"github.com/hamzali/surge/conf"
	"github.com/hamzali/surge/database"
	"github.com/hamzali/surge/metrics"
)

func main() {
	errLogger := log.New(os.Stderr, "", log.Lmsgprefix)
	infoLogger := log.New(os.Stdout, "", log.Lmsgprefix)

	config, err := conf.InitConfig(os.Args[0], os.Args[1:])
	if err != nil {
		errLogger.Fatalln(err)
	}

	err = config.Validate()
	if err != nil {
		errLogger.Fatalln(err)
	}

	// interrupts stop new requests and keep everything collected so far
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	selector, err := surge.NewSelector(config.Endpoints, rand.New(rand.NewSource(seed)))
	if err != nil {
		errLogger.Fatalln(err)
	}

	client := surge.NewClient(
		config.BaseURL,
		time.Duration(config.Timeout)*time.Second,
		config.Concurrency,
	)

	status, err := client.Probe(ctx, config.ProbePath)
	if err != nil {
		errLogger.Fatalln(err)
	}

	infoLogger.Printf("target %s reachable (http %d)\n", config.BaseURL, status)

	runner := surge.NewRunner(client, selector, surge.RunnerConfig{
		Duration: time.Duration(config.Duration) * time.Second,
		RampUp:   time.Duration(config.RampUp) * time.Second,
		Pause:    time.Duration(config.Pause) * time.Second,
		Pace: surge.Pacing{
			Base:   time.Duration(config.PaceBase) * time.Millisecond,
			Jitter: time.Duration(config.PaceJitter) * time.Millisecond,
		},
	})

	if config.Metrics.Enabled {
		collector := metrics.NewCollector()
		runner.OnResult = collector.Observe
		runner.OnLevel = collector.SetLevel

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: config.Metrics.Addr, Handler: mux}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errLogger.Println(err)
			}
		}()
		defer srv.Close()

		infoLogger.Printf("metrics on %s/metrics\n", config.Metrics.Addr)
	}

	run := &surge.Run{
		ID:        uuid.New(),
		BaseURL:   config.BaseURL,
		StartedAt: time.Now(),
	}

	if config.Staircase {
		infoLogger.Printf("staircase run up to %d workers, step %d...\n", config.Concurrency, config.Step)
		run.Levels = runner.RunStaircase(ctx, config.Concurrency, config.Step)
	} else {
		infoLogger.Printf("fixed run with %d workers...\n", config.Concurrency)
		run.Levels = []*surge.RunLevel{runner.RunFixed(ctx, config.Concurrency)}
	}

	run.FinishedAt = time.Now()

	if config.Postgres.Enabled {
		saveToDB(run, config, errLogger, infoLogger)
	}

	paths, err := surge.SaveReports(config.OutputDir, run)
	if err != nil {
		errLogger.Println(err)
	}

	for _, path := range paths {
		infoLogger.Printf("saved %s\n", path)
	}

	infoLogger.Print(surge.FormatReport(run))
}

// saveToDB never aborts the program, a lost database is not a lost run.
func saveToDB(run *surge.Run, config *conf.Config, errLogger, infoLogger *log.Logger) {
	db, err := database.New(
		config.Postgres.Host,
		config.Postgres.User,
		config.Postgres.Password,
		config.Postgres.Database,
		config.Postgres.Port,
		config.Postgres.SSL,
	)
	if err != nil {
		errLogger.Println(err)

		return
	}
	defer db.Close()

	if err := db.EnsureSchema(); err != nil {
		errLogger.Println(err)

		return
	}

	if err := db.SaveRun(run); err != nil {
		errLogger.Println(err)

		return
	}

	infoLogger.Printf("run %s stored\n", run.ID)
}
