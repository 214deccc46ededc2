package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeventeLantos/order-notifier/internal/compose"
	"github.com/LeventeLantos/order-notifier/internal/dedupe"
	"github.com/LeventeLantos/order-notifier/internal/gateway"
	"github.com/LeventeLantos/order-notifier/internal/metrics"
	"github.com/LeventeLantos/order-notifier/internal/model"
	"github.com/LeventeLantos/order-notifier/internal/phone"
	"github.com/LeventeLantos/order-notifier/internal/ratelimit"
	"github.com/LeventeLantos/order-notifier/internal/tracking"
)

var (
	ErrConfigurationMissing = errors.New("gateway not configured")
	ErrNoPhone              = errors.New("order has no billing phone")
	ErrEmptyMessage         = errors.New("rendered message is empty")
)

const (
	ReasonNotConfigured    = "not_configured"
	ReasonDraftStatus      = "draft_status"
	ReasonStatusDisabled   = "status_disabled"
	ReasonDuplicate        = "duplicate"
	ReasonInFlight         = "in_flight"
	ReasonNoPhone          = "no_phone"
	ReasonInvalidPhone     = "invalid_phone"
	ReasonEmptyMessage     = "empty_message"
	ReasonEmptyNote        = "empty_note"
	ReasonNoTrackingCode   = "no_tracking_code"
	ReasonTrackingNote     = "tracking_note"
	ReasonRateLimited      = "rate_limited"
	ReasonGatewayTransport = "gateway_transport"
	ReasonGatewayRejected  = "gateway_rejected"
	ReasonInternal         = "internal_error"
)

var draftStatuses = map[string]bool{
	"new":            true,
	"auto-draft":     true,
	"draft":          true,
	"checkout-draft": true,
}

// IsDraft reports whether status belongs to an order that is not placed yet.
func IsDraft(status string) bool {
	return draftStatuses[status]
}

type Gateway interface {
	Configured() bool
	Send(ctx context.Context, number, message string) (*gateway.Response, error)
}

type Limiter interface {
	Allow(ctx context.Context) error
}

type StatusSettings interface {
	EnabledStatuses(ctx context.Context) (map[string]bool, error)
}

type OutcomeRecorder interface {
	Record(ctx context.Context, o model.Outcome) error
}

type CarrierDirectory interface {
	Lookup(slug string) (tracking.Carrier, bool)
}

// Pipeline turns order lifecycle events into at most one gateway send per
// logical notification. Handlers never return errors: every result,
// including failures, is reported as a model.Outcome.
type Pipeline struct {
	gateway  Gateway
	dedupe   dedupe.Store
	limiter  Limiter
	composer *compose.Composer
	settings StatusSettings
	carriers CarrierDirectory
	recorder OutcomeRecorder
	log      *zap.Logger
	now      func() time.Time

	notificationTTL time.Duration
	processingTTL   time.Duration
}

func NewPipeline(
	gw Gateway,
	store dedupe.Store,
	limiter Limiter,
	composer *compose.Composer,
	settings StatusSettings,
	log *zap.Logger,
) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		gateway:         gw,
		dedupe:          store,
		limiter:         limiter,
		composer:        composer,
		settings:        settings,
		log:             log,
		now:             time.Now,
		notificationTTL: dedupe.NotificationTTL,
		processingTTL:   dedupe.ProcessingTTL,
	}
}

func (p *Pipeline) WithRecorder(r OutcomeRecorder) *Pipeline {
	p.recorder = r
	return p
}

func (p *Pipeline) WithCarriers(d CarrierDirectory) *Pipeline {
	p.carriers = d
	return p
}

// WithTTLs overrides the dedupe lifetimes; zero keeps the current value.
func (p *Pipeline) WithTTLs(notification, processing time.Duration) *Pipeline {
	if notification > 0 {
		p.notificationTTL = notification
	}
	if processing > 0 {
		p.processingTTL = processing
	}
	return p
}

type notification struct {
	kind     model.NotificationKind
	orderID  string
	key      string
	template string
	order    model.Order
	values   func() compose.Values
}

func (p *Pipeline) newOutcome(kind model.NotificationKind, orderID string) model.Outcome {
	return model.Outcome{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Kind:      kind,
		CreatedAt: p.now().UTC(),
	}
}

func (p *Pipeline) dispatch(ctx context.Context, n notification) model.Outcome {
	out := p.newOutcome(n.kind, n.orderID)

	first, err := p.dedupe.TryMark(ctx, n.key, p.notificationTTL)
	if err != nil {
		return p.finish(ctx, out, model.OutcomeFailed, ReasonInternal, err)
	}
	if !first {
		return p.finish(ctx, out, model.OutcomeSkipped, ReasonDuplicate, nil)
	}

	// The mark is taken; from here on the send runs to completion on its own
	// timeout even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if strings.TrimSpace(n.order.BillingPhone) == "" {
		return p.finish(ctx, out, model.OutcomeSkipped, ReasonNoPhone, ErrNoPhone)
	}
	number, err := phone.Normalize(n.order.BillingPhone)
	if err != nil {
		return p.finish(ctx, out, model.OutcomeFailed, ReasonInvalidPhone, err)
	}
	out.Phone = number

	msg, err := p.composer.Compose(ctx, n.template, n.values())
	if err != nil {
		return p.finish(ctx, out, model.OutcomeFailed, ReasonInternal, err)
	}
	if strings.TrimSpace(msg) == "" {
		return p.finish(ctx, out, model.OutcomeSkipped, ReasonEmptyMessage, ErrEmptyMessage)
	}
	out.Message = msg

	if err := p.limiter.Allow(ctx); err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			return p.finish(ctx, out, model.OutcomeFailed, ReasonRateLimited, err)
		}
		return p.finish(ctx, out, model.OutcomeFailed, ReasonInternal, err)
	}

	if _, err := p.gateway.Send(ctx, number, msg); err != nil {
		return p.finish(ctx, out, model.OutcomeFailed, sendFailureReason(err), err)
	}

	return p.finish(ctx, out, model.OutcomeSent, "", nil)
}

func sendFailureReason(err error) string {
	var rejected *gateway.RejectedError
	if errors.As(err, &rejected) {
		return ReasonGatewayRejected
	}
	var transport *gateway.TransportError
	if errors.As(err, &transport) {
		return ReasonGatewayTransport
	}
	if errors.Is(err, gateway.ErrNotConfigured) {
		return ReasonNotConfigured
	}
	return ReasonInternal
}

func (p *Pipeline) skip(ctx context.Context, kind model.NotificationKind, orderID, reason string, err error) model.Outcome {
	return p.finish(ctx, p.newOutcome(kind, orderID), model.OutcomeSkipped, reason, err)
}

func (p *Pipeline) finish(ctx context.Context, out model.Outcome, status model.OutcomeStatus, reason string, err error) model.Outcome {
	out.Status = status
	out.Reason = reason
	if err != nil && status == model.OutcomeFailed {
		out.Reason = reason + ": " + err.Error()
	}

	metrics.Notifications.WithLabelValues(string(out.Kind), string(status)).Inc()

	fields := []zap.Field{
		zap.String("order_id", out.OrderID),
		zap.String("kind", string(out.Kind)),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch {
	case status == model.OutcomeSent:
		p.log.Info("notification sent", append(fields, zap.String("phone", out.Phone))...)
	case status == model.OutcomeFailed:
		p.log.Error("notification failed", fields...)
	case reason == ReasonNotConfigured || reason == ReasonDuplicate || reason == ReasonInFlight:
		p.log.Debug("notification skipped", fields...)
		return out
	default:
		p.log.Info("notification skipped", fields...)
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, out); err != nil {
			p.log.Warn("failed to record notification outcome", zap.String("order_id", out.OrderID), zap.Error(err))
		}
	}
	return out
}
