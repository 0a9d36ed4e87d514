package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/ingest-api/internal/env"
	"github.com/yourorg/ingest-api/internal/ingest"
	"github.com/yourorg/ingest-api/internal/lock"
	"github.com/yourorg/ingest-api/internal/schedule"
	"github.com/yourorg/ingest-api/internal/store"
	"github.com/yourorg/ingest-api/zillow"
)

func main() {
	_ = godotenv.Load()

	apiKey := env.Must("RAPIDAPI_KEY")
	dsn := env.Must("PG_DSN")

	locations := env.GetList("INGEST_LOCATIONS")
	if len(locations) == 0 {
		log.Fatal(`INGEST_LOCATIONS must be provided, semicolon separated, e.g. "Oakland, CA; Denver, CO"`)
	}

	delay := env.GetDuration("INGEST_DELAY", 1250*time.Millisecond)
	intervalHours := env.GetInt("INGEST_INTERVAL_HOURS", 6)
	runOnce := env.GetBool("INGEST_RUN_ONCE", false)

	client := zillow.NewClient(apiKey, env.Get("RAPIDAPI_HOST", ""), delay)

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("store open error: %v", err)
	}
	defer st.DB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.Ping(ctx); err != nil {
		cancel()
		log.Fatalf("postgres ping error: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("postgres migrate error: %v", err)
	}
	cancel()

	job := &ingest.Job{
		Client: client,
		Store:  st,
		Config: ingest.Config{
			Locations: locations,
			PageSize:  env.GetInt("INGEST_PAGE_SIZE", 20),
			MaxPages:  env.GetInt("INGEST_MAX_PAGES", 5),
			Delay:     delay,
			Sort:      env.Get("INGEST_SORT", ""),
			MinPrice:  env.GetInt("INGEST_MIN_PRICE", 0),
			MaxPrice:  env.GetInt("INGEST_MAX_PRICE", 0),
		},
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLock := buildLock(rootCtx)
	token := uuid.NewString()
	if ok, err := runLock.Acquire(rootCtx, token); err != nil {
		log.Fatalf("run lock error: %v", err)
	} else if !ok {
		log.Fatal("another ingestion run holds the lock; exiting")
	}
	defer func() {
		if err := runLock.Release(context.Background(), token); err != nil {
			log.Printf("run lock release error: %v", err)
		}
	}()

	if runOnce {
		sum, err := job.RunOnce(rootCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("ingest run failed: %v", err)
		}
		if sum != nil {
			out, _ := json.MarshalIndent(sum, "", "  ")
			os.Stdout.Write(append(out, '\n'))
		}
		return
	}

	sched := schedule.New(job, intervalHours)
	if err := sched.Start(rootCtx); err != nil {
		log.Fatalf("scheduler start error: %v", err)
	}
	<-rootCtx.Done()
	sched.Stop()
}

func buildLock(ctx context.Context) *lock.Lock {
	redisURL := env.Get("REDIS_URL", "")
	if redisURL == "" {
		return lock.New(nil, "")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping error: %v", err)
	}
	return lock.New(rdb, "ingest:run-lock")
}
