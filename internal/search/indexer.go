package search

import (
	"context"
	"log"

	"github.com/yourorg/ingest-api/internal/events"
)

// Indexer is a stub that consumes property.ingested events and logs them.
// Swap this with a real OpenSearch client later.
type Indexer struct {
	Pub events.Publisher
}

func (i *Indexer) Run(ctx context.Context) {
	sub := i.Pub.SubscribePropertyIngested()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			log.Printf("indexer: property.ingested id=%s city=%s state=%s", evt.ExternalID, evt.City, evt.State)
		}
	}
}
