package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/LeventeLantos/order-notifier/internal/compose"
	"github.com/LeventeLantos/order-notifier/internal/dedupe"
	"github.com/LeventeLantos/order-notifier/internal/gateway"
	"github.com/LeventeLantos/order-notifier/internal/model"
	"github.com/LeventeLantos/order-notifier/internal/ratelimit"
	"github.com/LeventeLantos/order-notifier/internal/settings"
	"github.com/LeventeLantos/order-notifier/internal/tracking"
)

type sentMessage struct {
	Number  string
	Message string
}

type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	err        error
	delay      time.Duration
	sent       []sentMessage
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) Send(ctx context.Context, number, message string) (*gateway.Response, error) {
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &gateway.TransportError{URL: "fake", Err: ctx.Err()}
		case <-time.After(g.delay):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.sent = append(g.sent, sentMessage{Number: number, Message: message})
	return &gateway.Response{StatusCode: http.StatusOK}, nil
}

func (g *fakeGateway) Sent() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

type fakeLimiter struct {
	err   error
	calls int
}

func (l *fakeLimiter) Allow(ctx context.Context) error {
	l.calls++
	return l.err
}

type staticStatuses map[string]bool

func (s staticStatuses) EnabledStatuses(ctx context.Context) (map[string]bool, error) {
	return s, nil
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []model.Outcome
}

func (r *memRecorder) Record(ctx context.Context, o model.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	gateway  *fakeGateway
	limiter  *fakeLimiter
	recorder *memRecorder
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	gw := &fakeGateway{configured: true}
	lim := &fakeLimiter{}
	rec := &memRecorder{}
	p := NewPipeline(
		gw,
		dedupe.NewMemoryStore(),
		lim,
		compose.New(nil, language.BrazilianPortuguese),
		staticStatuses{"processing": true, "completed": true},
		zap.NewNop(),
	).WithRecorder(rec).WithCarriers(tracking.DefaultDirectory())

	return &pipelineFixture{pipeline: p, gateway: gw, limiter: lim, recorder: rec}
}

func sampleOrder() model.Order {
	return model.Order{
		ID:                "1001",
		Number:            "1001",
		Status:            "processing",
		CustomerFirstName: "Ana",
		BillingPhone:      "(44) 99999-8888",
		Currency:          "BRL",
		Total:             150.5,
		ShippingTotal:     10,
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Items:             []model.OrderItem{{Name: "Mug", Quantity: 2, Total: 140.5}},
		ShippingLines:     []model.ShippingLine{{MethodTitle: "PAC"}},
	}
}

func statusEvent(status string) model.LifecycleEvent {
	o := sampleOrder()
	return model.LifecycleEvent{OrderID: o.ID, PreviousStatus: "pending", NewStatus: status, Order: o}
}

func TestHandleStatusChange_SendsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	out := f.pipeline.HandleStatusChange(ctx, statusEvent("processing"))
	assert.Equal(t, model.OutcomeSent, out.Status)
	assert.Equal(t, model.KindStatus, out.Kind)
	assert.Equal(t, "5544999998888", out.Phone)
	assert.NotEmpty(t, out.ID)

	sent := f.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "5544999998888", sent[0].Number)
	assert.Contains(t, sent[0].Message, "Ana")
	assert.Contains(t, sent[0].Message, "#1001")
	assert.Contains(t, sent[0].Message, "Mug (Qty: 2)")

	again := f.pipeline.HandleStatusChange(ctx, statusEvent("processing"))
	assert.Equal(t, model.OutcomeSkipped, again.Status)
	assert.Equal(t, ReasonDuplicate, again.Reason)
	assert.Len(t, f.gateway.Sent(), 1)
}

func TestHandleStatusChange_DifferentStatusesAreIndependent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.pipeline.HandleStatusChange(ctx, statusEvent("processing"))
	out := f.pipeline.HandleStatusChange(ctx, statusEvent("completed"))

	assert.Equal(t, model.OutcomeSent, out.Status)
	assert.Len(t, f.gateway.Sent(), 2)
}

func TestHandleStatusChange_Guards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured bool
		status     string
		reason     string
	}{
		{name: "not configured", configured: false, status: "processing", reason: ReasonNotConfigured},
		{name: "draft", configured: true, status: "checkout-draft", reason: ReasonDraftStatus},
		{name: "auto draft", configured: true, status: "auto-draft", reason: ReasonDraftStatus},
		{name: "disabled status", configured: true, status: "cancelled", reason: ReasonStatusDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.gateway.configured = tt.configured

			out := f.pipeline.HandleStatusChange(context.Background(), statusEvent(tt.status))
			assert.Equal(t, model.OutcomeSkipped, out.Status)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Empty(t, f.gateway.Sent())
			assert.Zero(t, f.limiter.calls)
		})
	}
}

func TestHandleStatusChange_NoPhone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := statusEvent("processing")
	ev.Order.BillingPhone = "  "

	out := f.pipeline.HandleStatusChange(context.Background(), ev)
	assert.Equal(t, model.OutcomeSkipped, out.Status)
	assert.Equal(t, ReasonNoPhone, out.Reason)
	assert.Empty(t, f.gateway.Sent())
}

func TestHandleStatusChange_InvalidPhone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := statusEvent("processing")
	ev.Order.BillingPhone = "12345"

	out := f.pipeline.HandleStatusChange(context.Background(), ev)
	assert.Equal(t, model.OutcomeFailed, out.Status)
	assert.True(t, strings.HasPrefix(out.Reason, ReasonInvalidPhone), out.Reason)
	assert.Empty(t, f.gateway.Sent())
}

func TestHandleStatusChange_StatusWithoutTemplate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.pipeline.settings = staticStatuses{"shipped": true}

	out := f.pipeline.HandleStatusChange(context.Background(), statusEvent("shipped"))
	assert.Equal(t, model.OutcomeSkipped, out.Status)
	assert.Equal(t, ReasonEmptyMessage, out.Reason)
	assert.Zero(t, f.limiter.calls)
}

func TestHandleStatusChange_RateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.limiter.err = &ratelimit.ExceededError{Max: 1, Window: time.Minute}

	out := f.pipeline.HandleStatusChange(context.Background(), statusEvent("processing"))
	assert.Equal(t, model.OutcomeFailed, out.Status)
	assert.Contains(t, out.Reason, ReasonRateLimited)
	assert.Contains(t, out.Reason, "rate limit exceeded: max 1 requests per 60 seconds")
	assert.Empty(t, f.gateway.Sent())

	// The mark stays: a retry of the same event is a duplicate.
	f.limiter.err = nil
	again := f.pipeline.HandleStatusChange(context.Background(), statusEvent("processing"))
	assert.Equal(t, ReasonDuplicate, again.Reason)
}

func TestHandleStatusChange_GatewayErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "rejected", err: &gateway.RejectedError{StatusCode: 401, Message: "invalid token"}, reason: ReasonGatewayRejected},
		{name: "transport", err: &gateway.TransportError{URL: "http://gw", Err: errors.New("connection refused")}, reason: ReasonGatewayTransport},
		{name: "unknown", err: errors.New("boom"), reason: ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.gateway.err = tt.err

			out := f.pipeline.HandleStatusChange(context.Background(), statusEvent("processing"))
			assert.Equal(t, model.OutcomeFailed, out.Status)
			assert.True(t, strings.HasPrefix(out.Reason, tt.reason), out.Reason)
		})
	}
}

func TestHandleStatusChange_CallerCancelDoesNotAbortSend(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gateway.delay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := f.pipeline.HandleStatusChange(ctx, statusEvent("processing"))
	assert.Equal(t, model.OutcomeSent, out.Status, out.Reason)
	assert.Len(t, f.gateway.Sent(), 1)

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	require.Len(t, f.recorder.outcomes, 1)
	assert.Equal(t, model.OutcomeSent, f.recorder.outcomes[0].Status)
}

func TestHandleNewOrder_InFlightLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first := f.pipeline.HandleNewOrder(ctx, sampleOrder())
	second := f.pipeline.HandleNewOrder(ctx, sampleOrder())

	assert.Equal(t, model.OutcomeSent, first.Status)
	assert.Equal(t, model.OutcomeSkipped, second.Status)
	assert.Equal(t, ReasonInFlight, second.Reason)
	assert.Len(t, f.gateway.Sent(), 1)
}

func TestHandleNewOrder_ConcurrentHooks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.pipeline.HandleNewOrder(ctx, sampleOrder())
		}()
	}
	wg.Wait()

	assert.Len(t, f.gateway.Sent(), 1)
}

func TestHandleTrackingCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := sampleOrder()

	out := f.pipeline.HandleTrackingCode(context.Background(), model.TrackingEvent{
		OrderID: o.ID,
		Code:    " qn756689320br ",
		Order:   o,
	})
	require.Equal(t, model.OutcomeSent, out.Status)

	sent := f.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Message, "QN756689320BR")
	assert.Contains(t, sent[0].Message, "?objetos=QN756689320BR")

	again := f.pipeline.HandleTrackingCode(context.Background(), model.TrackingEvent{OrderID: o.ID, Code: "QN756689320BR", Order: o})
	assert.Equal(t, ReasonDuplicate, again.Reason)
}

func TestHandleTrackingCode_EmptyCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out := f.pipeline.HandleTrackingCode(context.Background(), model.TrackingEvent{OrderID: "1", Code: "  "})

	assert.Equal(t, model.OutcomeSkipped, out.Status)
	assert.Equal(t, ReasonNoTrackingCode, out.Reason)
}

func TestResolveTracking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	url, carrier := f.pipeline.resolveTracking("Correios", "QN756689320BR")
	assert.Equal(t, tracking.CarrierName, carrier)
	assert.Contains(t, url, "objetos=QN756689320BR")

	url, carrier = f.pipeline.resolveTracking("unknown", "ABC123XYZ9")
	assert.Empty(t, carrier)
	assert.Equal(t, tracking.URL("ABC123XYZ9"), url)
}

func TestHandleNote(t *testing.T) {
	t.Parallel()

	o := sampleOrder()

	t.Run("tracking code in private note", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		outs := f.pipeline.HandleNote(context.Background(), model.OrderNote{
			OrderID: o.ID,
			Content: "Código de rastreio: QN756689320BR",
			Order:   o,
		})
		require.Len(t, outs, 1)
		assert.Equal(t, model.KindTracking, outs[0].Kind)
		assert.Equal(t, model.OutcomeSent, outs[0].Status)
		assert.Len(t, f.gateway.Sent(), 1)
	})

	t.Run("tracking code in customer note sends once", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		outs := f.pipeline.HandleNote(context.Background(), model.OrderNote{
			OrderID:        o.ID,
			Content:        "Your code: QN756689320BR",
			CustomerFacing: true,
			Order:          o,
		})
		require.Len(t, outs, 2)
		assert.Equal(t, model.OutcomeSent, outs[0].Status)
		assert.Equal(t, ReasonTrackingNote, outs[1].Reason)
		assert.Len(t, f.gateway.Sent(), 1)
	})

	t.Run("plain customer note", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		note := model.OrderNote{OrderID: o.ID, Content: "We added a gift to your box", CustomerFacing: true, Order: o}

		outs := f.pipeline.HandleNote(context.Background(), note)
		require.Len(t, outs, 2)
		assert.Equal(t, ReasonNoTrackingCode, outs[0].Reason)
		assert.Equal(t, model.KindCustomerNote, outs[1].Kind)
		assert.Equal(t, model.OutcomeSent, outs[1].Status)

		sent := f.gateway.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Message, "We added a gift to your box")

		again := f.pipeline.HandleCustomerNote(context.Background(), note)
		assert.Equal(t, ReasonDuplicate, again.Reason)
	})

	t.Run("empty customer note", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		out := f.pipeline.HandleCustomerNote(context.Background(), model.OrderNote{OrderID: o.ID, Content: " ", CustomerFacing: true})
		assert.Equal(t, ReasonEmptyNote, out.Reason)
	})
}

func TestFinish_RecordsOutcomes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.pipeline.HandleStatusChange(ctx, statusEvent("processing"))
	f.pipeline.HandleStatusChange(ctx, statusEvent("processing"))
	f.pipeline.HandleStatusChange(ctx, statusEvent("cancelled"))

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()

	// Duplicates are not recorded.
	require.Len(t, f.recorder.outcomes, 2)
	assert.Equal(t, model.OutcomeSent, f.recorder.outcomes[0].Status)
	assert.Equal(t, ReasonStatusDisabled, f.recorder.outcomes[1].Reason)
}

func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var got map[string]string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		assert.Equal(t, "/send/text", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	s := settings.New(settings.NewMemoryStore())
	require.NoError(t, s.SaveGateway(ctx, srv.URL, "secret", model.AuthBearer))
	require.NoError(t, s.SaveDiscovery(ctx, "/send/text", model.DefaultFieldMap))
	require.NoError(t, s.SetEnabledStatuses(ctx, []string{"processing"}))

	adapter := gateway.NewAdapter(s, srv.Client(), zap.NewNop())
	require.NoError(t, adapter.Reload(ctx))

	p := NewPipeline(
		adapter,
		dedupe.NewMemoryStore(),
		ratelimit.New(ratelimit.NewMemoryWindow(), 10, time.Minute),
		compose.New(s, language.BrazilianPortuguese),
		s,
		zap.NewNop(),
	)

	out := p.HandleStatusChange(ctx, statusEvent("processing"))
	require.Equal(t, model.OutcomeSent, out.Status, out.Reason)

	again := p.HandleStatusChange(ctx, statusEvent("processing"))
	assert.Equal(t, ReasonDuplicate, again.Reason)
	assert.Equal(t, int32(1), calls.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "5544999998888", got["number"])
	assert.Contains(t, got["body"], "is being processed")
}
