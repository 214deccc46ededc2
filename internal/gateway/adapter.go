// Package gateway talks to the upstream messaging gateway. The gateway's
// endpoint path and field names are not known up front; Discover searches for
// them and the adapter replays the result on every Send.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

// ProfileStore is where the gateway profile and discovery results live.
type ProfileStore interface {
	GatewayProfile(ctx context.Context) (model.GatewayProfile, error)
	SaveDiscovery(ctx context.Context, endpointPath string, fields model.FieldMap) error
}

type Adapter struct {
	store  ProfileStore
	client *http.Client
	log    *zap.Logger
	now    func() time.Time

	sendTimeout    time.Duration
	attemptTimeout time.Duration

	mu      sync.RWMutex
	profile model.GatewayProfile

	discovery singleflight.Group
}

func NewAdapter(store ProfileStore, client *http.Client, log *zap.Logger) *Adapter {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		store:          store,
		client:         client,
		log:            log,
		now:            time.Now,
		sendTimeout:    SendTimeout,
		attemptTimeout: AttemptTimeout,
	}
}

// Reload replaces the in-memory profile with the stored one.
func (a *Adapter) Reload(ctx context.Context) error {
	p, err := a.store.GatewayProfile(ctx)
	if err != nil {
		return fmt.Errorf("load gateway profile: %w", err)
	}

	a.mu.Lock()
	a.profile = p
	a.mu.Unlock()

	a.log.Info("gateway profile loaded",
		zap.String("base_url", p.BaseURL),
		zap.String("auth_style", string(p.AuthStyle)),
		zap.String("endpoint_path", p.EndpointPath),
		zap.String("number_field", p.Fields.Number),
		zap.String("message_field", p.Fields.Message),
	)
	return nil
}

func (a *Adapter) Profile() model.GatewayProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profile
}

func (a *Adapter) Configured() bool {
	return a.Profile().Configured()
}

// Send posts message to number using the cached endpoint and field names.
func (a *Adapter) Send(ctx context.Context, number, message string) (*Response, error) {
	p := a.Profile()
	return a.SendTo(ctx, Target{EndpointPath: p.EndpointPath, Fields: p.FieldsOrDefault()}, number, message)
}

// SendTo posts to an explicit target instead of the cached one.
func (a *Adapter) SendTo(ctx context.Context, t Target, number, message string) (*Response, error) {
	p := a.Profile()
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	if t.Fields.IsZero() {
		t.Fields = model.DefaultFieldMap
	}
	return a.post(ctx, p, t, number, message, a.sendTimeout)
}
