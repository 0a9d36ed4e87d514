package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/ingest-api/internal/env"
	"github.com/yourorg/ingest-api/internal/events"
	"github.com/yourorg/ingest-api/internal/ingest"
	"github.com/yourorg/ingest-api/internal/lock"
	"github.com/yourorg/ingest-api/internal/refresh"
	"github.com/yourorg/ingest-api/internal/search"
	"github.com/yourorg/ingest-api/internal/store"
	"github.com/yourorg/ingest-api/zillow"
)

func main() {
	_ = godotenv.Load()

	port := env.GetInt("PORT", 4003)
	apiKey := env.Must("RAPIDAPI_KEY")
	dsn := env.Must("PG_DSN")

	client := zillow.NewClient(apiKey, env.Get("RAPIDAPI_HOST", ""), env.GetDuration("INGEST_DELAY", 0))

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

	var rdb *redis.Client
	if redisURL := env.Get("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb = redis.NewClient(opts)
	}

	pub := events.NewInMemory(256)
	job := &ingest.Job{
		Client: client,
		Store:  st,
		Pub:    pub,
		Config: ingest.Config{
			Locations: env.GetList("INGEST_LOCATIONS"),
			PageSize:  env.GetInt("INGEST_PAGE_SIZE", 20),
			MaxPages:  env.GetInt("INGEST_MAX_PAGES", 5),
			Delay:     env.GetDuration("INGEST_DELAY", 0),
			Sort:      env.Get("INGEST_SORT", ""),
			MinPrice:  env.GetInt("INGEST_MIN_PRICE", 0),
			MaxPrice:  env.GetInt("INGEST_MAX_PRICE", 0),
		},
	}

	indexer := &search.Indexer{Pub: pub}
	go indexer.Run(context.Background())

	refresher := refresh.New(64, 1, func(ctx context.Context, j refresh.Job) {
		if _, err := job.RunLocation(ctx, j.Location); err != nil {
			log.Printf("[refresh] location %q ingest error: %v", j.Location, err)
		}
	})

	router := BuildRouter(RouterDeps{
		Job:       job,
		Store:     st,
		Refresher: refresher,
		RunLock:   lock.New(rdb, "ingest:run-lock"),
	})

	log.Printf("ingest-api listening on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
		log.Fatal(err)
	}
}
