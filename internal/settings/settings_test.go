package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

func newRedisSettings(t *testing.T) (*Settings, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(NewRedisStore(rdb, "")), mr
}

func TestGatewayProfile_RoundTrip(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) *Settings{
		"memory": func(t *testing.T) *Settings { return New(NewMemoryStore()) },
		"redis": func(t *testing.T) *Settings {
			s, _ := newRedisSettings(t)
			return s
		},
	}

	for name, mk := range stores {
		mk := mk
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := mk(t)
			ctx := context.Background()

			p, err := s.GatewayProfile(ctx)
			if err != nil {
				t.Fatalf("GatewayProfile() error: %v", err)
			}
			if p.Configured() || p.AuthStyle != model.AuthBearer {
				t.Fatalf("expected empty profile with bearer default, got %+v", p)
			}

			if err := s.SaveGateway(ctx, " https://gw.example.com ", "tok", model.AuthAPIKey); err != nil {
				t.Fatalf("SaveGateway() error: %v", err)
			}
			fields := model.FieldMap{Number: "phone", Message: "message"}
			if err := s.SaveDiscovery(ctx, "/send-message", fields); err != nil {
				t.Fatalf("SaveDiscovery() error: %v", err)
			}

			p, err = s.GatewayProfile(ctx)
			if err != nil {
				t.Fatalf("GatewayProfile() error: %v", err)
			}
			want := model.GatewayProfile{
				BaseURL:      "https://gw.example.com",
				Token:        "tok",
				AuthStyle:    model.AuthAPIKey,
				EndpointPath: "/send-message",
				Fields:       fields,
			}
			if p != want {
				t.Fatalf("expected %+v, got %+v", want, p)
			}
		})
	}
}

func TestSaveGateway_NewURLClearsDiscovery(t *testing.T) {
	t.Parallel()

	s := New(NewMemoryStore())
	ctx := context.Background()

	_ = s.SaveGateway(ctx, "https://a.example.com", "t", model.AuthBearer)
	_ = s.SaveDiscovery(ctx, "/send", model.FieldMap{Number: "to", Message: "message"})

	// Same URL, new token: discovery survives.
	if err := s.SaveGateway(ctx, "https://a.example.com", "t2", model.AuthToken); err != nil {
		t.Fatalf("SaveGateway() error: %v", err)
	}
	p, _ := s.GatewayProfile(ctx)
	if p.EndpointPath != "/send" || p.Fields.IsZero() {
		t.Fatalf("expected discovery kept, got %+v", p)
	}

	if err := s.SaveGateway(ctx, "https://b.example.com", "t2", model.AuthToken); err != nil {
		t.Fatalf("SaveGateway() error: %v", err)
	}
	p, _ = s.GatewayProfile(ctx)
	if p.EndpointPath != "" || !p.Fields.IsZero() {
		t.Fatalf("expected discovery cleared, got %+v", p)
	}
}

func TestEnabledStatuses(t *testing.T) {
	t.Parallel()

	s, mr := newRedisSettings(t)
	ctx := context.Background()

	got, err := s.EnabledStatuses(ctx)
	if err != nil {
		t.Fatalf("EnabledStatuses() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing enabled by default, got %v", got)
	}

	if err := s.SetEnabledStatuses(ctx, []string{"processing", " completed ", ""}); err != nil {
		t.Fatalf("SetEnabledStatuses() error: %v", err)
	}
	if v := mr.HGet(DefaultRedisHash, KeyEnabledStatuses); v != "completed,processing" {
		t.Fatalf("unexpected stored value %q", v)
	}

	got, _ = s.EnabledStatuses(ctx)
	if !got["processing"] || !got["completed"] || len(got) != 2 {
		t.Fatalf("unexpected enabled set %v", got)
	}
}

func TestRateLimits(t *testing.T) {
	t.Parallel()

	s := New(NewMemoryStore())
	ctx := context.Background()

	max, window, err := s.RateLimits(ctx)
	if err != nil || max != 0 || window != 0 {
		t.Fatalf("expected unset limits, got %d %v %v", max, window, err)
	}

	_ = s.store.SetMany(ctx, map[string]string{KeyRateLimitMax: "20", KeyRateLimitWindow: "30"})
	max, window, err = s.RateLimits(ctx)
	if err != nil || max != 20 || window != 30*time.Second {
		t.Fatalf("expected 20/30s, got %d %v %v", max, window, err)
	}

	_ = s.store.SetMany(ctx, map[string]string{KeyRateLimitMax: "lots"})
	if _, _, err := s.RateLimits(ctx); err == nil {
		t.Fatalf("expected error for invalid max")
	}
}

func TestSeed_OnlyFillsMissing(t *testing.T) {
	t.Parallel()

	s := New(NewMemoryStore())
	ctx := context.Background()

	_ = s.store.SetMany(ctx, map[string]string{KeyGatewayURL: "https://kept.example.com"})

	err := s.Seed(ctx, map[string]string{
		KeyGatewayURL:   "https://env.example.com",
		KeyGatewayToken: "env-token",
		KeyRateLimitMax: "",
	})
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	p, _ := s.GatewayProfile(ctx)
	if p.BaseURL != "https://kept.example.com" || p.Token != "env-token" {
		t.Fatalf("unexpected profile after seed %+v", p)
	}
	if _, ok, _ := s.store.Get(ctx, KeyRateLimitMax); ok {
		t.Fatalf("expected empty seed values to be skipped")
	}
}

func TestTemplate(t *testing.T) {
	t.Parallel()

	s, mr := newRedisSettings(t)
	ctx := context.Background()

	if got, err := s.Template(ctx, "processing"); err != nil || got != "" {
		t.Fatalf("expected empty template, got %q %v", got, err)
	}

	mr.HSet(DefaultRedisHash, TemplateKey("processing"), "Hi {customer_name}")
	if got, _ := s.Template(ctx, "processing"); got != "Hi {customer_name}" {
		t.Fatalf("unexpected template %q", got)
	}
}

func TestRedisStore_ContextCanceled(t *testing.T) {
	t.Parallel()

	s, _ := newRedisSettings(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GatewayProfile(ctx); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
