package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmehra2102/volt-storefront/pkg/tracing"
)

// Publisher serialises domain events into the outbox.
type Publisher struct {
	store         Store
	aggregateType string
}

func NewPublisher(store Store, aggregateType string) *Publisher {
	return &Publisher{store: store, aggregateType: aggregateType}
}

func (p *Publisher) Publish(ctx context.Context, aggregateID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return p.store.Enqueue(ctx, Event{
		AggregateType: p.aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       raw,
		Headers:       map[string]string{"content_type": "application/json"},
		Traceparent:   tracing.Traceparent(ctx),
	})
}
