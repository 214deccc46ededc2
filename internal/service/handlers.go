package service

import (
	"context"
	"strings"

	"github.com/LeventeLantos/order-notifier/internal/compose"
	"github.com/LeventeLantos/order-notifier/internal/dedupe"
	"github.com/LeventeLantos/order-notifier/internal/model"
	"github.com/LeventeLantos/order-notifier/internal/tracking"
)

func orderID(id string, o model.Order) string {
	if id != "" {
		return id
	}
	return o.ID
}

// HandleStatusChange notifies the customer that the order moved to a new status.
func (p *Pipeline) HandleStatusChange(ctx context.Context, ev model.LifecycleEvent) model.Outcome {
	id := orderID(ev.OrderID, ev.Order)

	if !p.gateway.Configured() {
		return p.skip(ctx, model.KindStatus, id, ReasonNotConfigured, ErrConfigurationMissing)
	}
	if IsDraft(ev.NewStatus) {
		return p.skip(ctx, model.KindStatus, id, ReasonDraftStatus, nil)
	}

	enabled, err := p.settings.EnabledStatuses(ctx)
	if err != nil {
		return p.finish(ctx, p.newOutcome(model.KindStatus, id), model.OutcomeFailed, ReasonInternal, err)
	}
	if !enabled[ev.NewStatus] {
		return p.skip(ctx, model.KindStatus, id, ReasonStatusDisabled, nil)
	}

	return p.dispatch(ctx, notification{
		kind:     model.KindStatus,
		orderID:  id,
		key:      dedupe.StatusKey(id, ev.NewStatus),
		template: ev.NewStatus,
		order:    ev.Order,
		values: func() compose.Values {
			return p.composer.OrderValues(ev.Order, ev.NewStatus)
		},
	})
}

// HandleNewOrder handles the creation hooks of an order. Several hooks fire
// for one new order; a short in-flight lock lets only the first through.
func (p *Pipeline) HandleNewOrder(ctx context.Context, order model.Order) model.Outcome {
	if !p.gateway.Configured() {
		return p.skip(ctx, model.KindStatus, order.ID, ReasonNotConfigured, ErrConfigurationMissing)
	}

	first, err := p.dedupe.TryMark(ctx, dedupe.ProcessingKey(order.ID), p.processingTTL)
	if err != nil {
		return p.finish(ctx, p.newOutcome(model.KindStatus, order.ID), model.OutcomeFailed, ReasonInternal, err)
	}
	if !first {
		return p.skip(ctx, model.KindStatus, order.ID, ReasonInFlight, nil)
	}

	return p.HandleStatusChange(ctx, model.LifecycleEvent{
		OrderID:        order.ID,
		PreviousStatus: "new",
		NewStatus:      order.Status,
		Timestamp:      p.now(),
		Order:          order,
	})
}

// HandleTrackingCode notifies the customer of a tracking code registered for
// the order.
func (p *Pipeline) HandleTrackingCode(ctx context.Context, ev model.TrackingEvent) model.Outcome {
	id := orderID(ev.OrderID, ev.Order)

	if !p.gateway.Configured() {
		return p.skip(ctx, model.KindTracking, id, ReasonNotConfigured, ErrConfigurationMissing)
	}

	code := strings.ToUpper(strings.TrimSpace(ev.Code))
	if code == "" {
		return p.skip(ctx, model.KindTracking, id, ReasonNoTrackingCode, nil)
	}

	url, carrier := p.resolveTracking(ev.CarrierSlug, code)

	return p.dispatch(ctx, notification{
		kind:     model.KindTracking,
		orderID:  id,
		key:      dedupe.TrackingKey(id, code),
		template: compose.TemplateTracking,
		order:    ev.Order,
		values: func() compose.Values {
			return p.composer.TrackingValues(ev.Order, code, url, carrier)
		},
	})
}

func (p *Pipeline) resolveTracking(slug, code string) (url, carrier string) {
	if slug != "" && p.carriers != nil {
		if c, ok := p.carriers.Lookup(slug); ok {
			return c.URL(code), c.Name
		}
	}
	return tracking.URL(code), ""
}

// HandleOrderNote scans any order note for a tracking code and, when one is
// found, sends a tracking notification for it.
func (p *Pipeline) HandleOrderNote(ctx context.Context, note model.OrderNote) model.Outcome {
	id := orderID(note.OrderID, note.Order)

	code, ok := tracking.Extract(note.Content)
	if !ok {
		return p.skip(ctx, model.KindTracking, id, ReasonNoTrackingCode, nil)
	}

	p.log.Debug("tracking code found in order note")
	return p.HandleTrackingCode(ctx, model.TrackingEvent{
		OrderID: id,
		Code:    code.Value,
		Order:   note.Order,
	})
}

// HandleCustomerNote forwards a customer-facing note. Notes carrying a
// tracking code are left to HandleOrderNote.
func (p *Pipeline) HandleCustomerNote(ctx context.Context, note model.OrderNote) model.Outcome {
	id := orderID(note.OrderID, note.Order)

	if strings.TrimSpace(note.Content) == "" {
		return p.skip(ctx, model.KindCustomerNote, id, ReasonEmptyNote, nil)
	}
	if !p.gateway.Configured() {
		return p.skip(ctx, model.KindCustomerNote, id, ReasonNotConfigured, ErrConfigurationMissing)
	}
	if _, ok := tracking.Extract(note.Content); ok {
		return p.skip(ctx, model.KindCustomerNote, id, ReasonTrackingNote, nil)
	}

	return p.dispatch(ctx, notification{
		kind:     model.KindCustomerNote,
		orderID:  id,
		key:      dedupe.NoteKey(id, note.Content),
		template: compose.TemplateCustomerNote,
		order:    note.Order,
		values: func() compose.Values {
			return p.composer.NoteValues(note.Order, note.Content)
		},
	})
}

// HandleNote runs the tracking scan for every note and the customer-note
// flow for customer-facing ones.
func (p *Pipeline) HandleNote(ctx context.Context, note model.OrderNote) []model.Outcome {
	outs := []model.Outcome{p.HandleOrderNote(ctx, note)}
	if note.CustomerFacing {
		outs = append(outs, p.HandleCustomerNote(ctx, note))
	}
	return outs
}
