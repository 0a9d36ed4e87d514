package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/ingest-api/http"
	"github.com/yourorg/ingest-api/internal/ingest"
	"github.com/yourorg/ingest-api/internal/lock"
	"github.com/yourorg/ingest-api/internal/refresh"
	"github.com/yourorg/ingest-api/internal/store"
)

type RouterDeps struct {
	Job       *ingest.Job
	Store     *store.Store
	Refresher *refresh.Refresher
	RunLock   *lock.Lock
}

func BuildRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(100, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterIngest(r, httpapi.IngestDeps{
		Job:       deps.Job,
		Refresher: deps.Refresher,
		RunLock:   deps.RunLock,
	})
	httpapi.RegisterListings(r, httpapi.ListingsDeps{Store: deps.Store})

	return r
}
