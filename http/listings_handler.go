package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/ingest-api/internal/store"
)

type ListingsDeps struct {
	Store *store.Store
}

// RegisterListings exposes a thin read surface over the ingested rows.
func RegisterListings(r chi.Router, d ListingsDeps) {
	r.Get("/listings", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit := 50
		if v := q.Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				limit = i
			}
		}
		listings, err := d.Store.RecentListings(req.Context(), q.Get("city"), q.Get("state"), limit)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "query_error", "detail": err.Error()})
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(listings), "listings": listings})
	})
}
