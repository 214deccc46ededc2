package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

// Event types carried in an Envelope.
const (
	TypeStatusChanged = "order.status_changed"
	TypeOrderCreated  = "order.created"
	TypeTracking      = "order.tracking"
	TypeNote          = "order.note"
)

// InvalidEventLabel is the metric label for events that were not dispatched.
const InvalidEventLabel = "invalid"

// EventLabel is the metric label for an event: its type once Dispatch accepted
// it, InvalidEventLabel otherwise, so arbitrary input never becomes a series.
func EventLabel(eventType string, dispatchErr error) string {
	if dispatchErr != nil {
		return InvalidEventLabel
	}
	return eventType
}

// Envelope is the queue message body once any SNS wrapper is removed.
type Envelope struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

type EventHandler interface {
	HandleStatusChange(ctx context.Context, ev model.LifecycleEvent) model.Outcome
	HandleNewOrder(ctx context.Context, order model.Order) model.Outcome
	HandleTrackingCode(ctx context.Context, ev model.TrackingEvent) model.Outcome
	HandleNote(ctx context.Context, note model.OrderNote) []model.Outcome
}

// Dispatch decodes the envelope payload and runs the matching handler.
// Errors only describe malformed input; handling results are outcomes.
func Dispatch(ctx context.Context, h EventHandler, env Envelope) ([]model.Outcome, error) {
	switch env.Type {
	case TypeStatusChanged:
		var ev model.LifecycleEvent
		if err := decode(env, &ev); err != nil {
			return nil, err
		}
		return []model.Outcome{h.HandleStatusChange(ctx, ev)}, nil

	case TypeOrderCreated:
		var o model.Order
		if err := decode(env, &o); err != nil {
			return nil, err
		}
		if o.ID == "" {
			return nil, fmt.Errorf("%s: order id is required", env.Type)
		}
		return []model.Outcome{h.HandleNewOrder(ctx, o)}, nil

	case TypeTracking:
		var ev model.TrackingEvent
		if err := decode(env, &ev); err != nil {
			return nil, err
		}
		return []model.Outcome{h.HandleTrackingCode(ctx, ev)}, nil

	case TypeNote:
		var note model.OrderNote
		if err := decode(env, &note); err != nil {
			return nil, err
		}
		return h.HandleNote(ctx, note), nil

	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func decode(env Envelope, v any) error {
	if len(env.Event) == 0 {
		return fmt.Errorf("%s: missing event payload", env.Type)
	}
	if err := json.Unmarshal(env.Event, v); err != nil {
		return fmt.Errorf("%s: decode event: %w", env.Type, err)
	}
	return nil
}
