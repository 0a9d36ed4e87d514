package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/yourorg/ingest-api/internal/ingest"
	"github.com/yourorg/ingest-api/internal/lock"
	"github.com/yourorg/ingest-api/internal/refresh"
)

type IngestDeps struct {
	Job       *ingest.Job
	Refresher *refresh.Refresher
	RunLock   *lock.Lock
}

func RegisterIngest(r chi.Router, d IngestDeps) {
	// Trigger a full run across the configured locations. The run happens
	// in the background; poll /ingest/summary for the result.
	r.Post("/ingest/run", func(w http.ResponseWriter, req *http.Request) {
		token := uuid.NewString()
		ok, err := d.RunLock.Acquire(req.Context(), token)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "lock_error", "detail": err.Error()})
			return
		}
		if !ok {
			render.Status(req, http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "run_in_progress"})
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			defer func() {
				if err := d.RunLock.Release(context.Background(), token); err != nil {
					log.Printf("[http] run lock release error: %v", err)
				}
			}()
			if _, err := d.Job.RunOnce(ctx); err != nil {
				log.Printf("[http] triggered ingest run error: %v", err)
			}
		}()

		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"ok": true, "token": token})
	})

	r.Get("/ingest/summary", func(w http.ResponseWriter, req *http.Request) {
		sum := d.Job.LastSummary()
		if sum == nil {
			render.Status(req, http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "no_completed_run"})
			return
		}
		render.JSON(w, req, sum)
	})

	// Enqueue a single location for on-demand ingestion.
	r.Post("/ingest/locations", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Location string `json:"location"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			render.Status(req, http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_json", "detail": err.Error()})
			return
		}
		if body.Location == "" {
			render.Status(req, http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "location_required"})
			return
		}
		if !d.Refresher.Enqueue(refresh.Job{Location: body.Location}) {
			render.Status(req, http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "already_queued"})
			return
		}
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"ok": true, "location": body.Location})
	})
}
