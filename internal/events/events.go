package events

import (
	"context"
)

type PropertyIngested struct {
	ExternalID string
	City       string
	State      string
}

type Publisher interface {
	PublishPropertyIngested(ctx context.Context, evt PropertyIngested)
	SubscribePropertyIngested() <-chan PropertyIngested
}

type inMemory struct{ ch chan PropertyIngested }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan PropertyIngested, buffer)}
}

func (m *inMemory) PublishPropertyIngested(_ context.Context, evt PropertyIngested) {
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) SubscribePropertyIngested() <-chan PropertyIngested { return m.ch }
