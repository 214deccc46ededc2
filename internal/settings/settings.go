// Package settings is the runtime configuration surface of the notifier:
// gateway credentials, discovery results, enabled statuses, message templates
// and rate-limit overrides, kept in a flat key-value store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

const (
	KeyGatewayURL       = "gateway_url"
	KeyGatewayToken     = "gateway_token"
	KeyGatewayAuthStyle = "gateway_auth_style"
	KeyGatewayEndpoint  = "gateway_endpoint"
	KeyGatewayFields    = "gateway_fields"
	KeyEnabledStatuses  = "enabled_statuses"
	KeyRateLimitMax     = "rate_limit_max"
	KeyRateLimitWindow  = "rate_limit_window_seconds"

	templatePrefix = "message_"
)

// TemplateKey is the store key of the message template for a status or kind.
func TemplateKey(name string) string {
	return templatePrefix + name
}

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
}

type Settings struct {
	store Store
}

func New(store Store) *Settings {
	return &Settings{store: store}
}

func (s *Settings) get(ctx context.Context, key string) (string, error) {
	v, _, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("settings: get %s: %w", key, err)
	}
	return v, nil
}

func (s *Settings) GatewayProfile(ctx context.Context) (model.GatewayProfile, error) {
	var p model.GatewayProfile
	var err error

	if p.BaseURL, err = s.get(ctx, KeyGatewayURL); err != nil {
		return p, err
	}
	if p.Token, err = s.get(ctx, KeyGatewayToken); err != nil {
		return p, err
	}

	style, err := s.get(ctx, KeyGatewayAuthStyle)
	if err != nil {
		return p, err
	}
	if p.AuthStyle, err = model.ParseAuthStyle(style); err != nil {
		return p, fmt.Errorf("settings: %w", err)
	}

	if p.EndpointPath, err = s.get(ctx, KeyGatewayEndpoint); err != nil {
		return p, err
	}

	fields, err := s.get(ctx, KeyGatewayFields)
	if err != nil {
		return p, err
	}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &p.Fields); err != nil {
			return p, fmt.Errorf("settings: decode %s: %w", KeyGatewayFields, err)
		}
	}
	return p, nil
}

func (s *Settings) SaveDiscovery(ctx context.Context, endpointPath string, fields model.FieldMap) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return s.store.SetMany(ctx, map[string]string{
		KeyGatewayEndpoint: endpointPath,
		KeyGatewayFields:   string(b),
	})
}

// SaveGateway stores new credentials. A different base URL invalidates the
// previous discovery result.
func (s *Settings) SaveGateway(ctx context.Context, baseURL, token string, style model.AuthStyle) error {
	current, err := s.get(ctx, KeyGatewayURL)
	if err != nil {
		return err
	}

	values := map[string]string{
		KeyGatewayURL:       strings.TrimSpace(baseURL),
		KeyGatewayToken:     strings.TrimSpace(token),
		KeyGatewayAuthStyle: string(style),
	}
	if current != values[KeyGatewayURL] {
		values[KeyGatewayEndpoint] = ""
		values[KeyGatewayFields] = ""
	}
	return s.store.SetMany(ctx, values)
}

// EnabledStatuses is the set of statuses that trigger a notification. Nothing
// is enabled until configured.
func (s *Settings) EnabledStatuses(ctx context.Context) (map[string]bool, error) {
	raw, err := s.get(ctx, KeyEnabledStatuses)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, st := range strings.Split(raw, ",") {
		if st = strings.TrimSpace(st); st != "" {
			out[st] = true
		}
	}
	return out, nil
}

func (s *Settings) SetEnabledStatuses(ctx context.Context, statuses []string) error {
	clean := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if st = strings.TrimSpace(st); st != "" {
			clean = append(clean, st)
		}
	}
	sort.Strings(clean)
	return s.store.SetMany(ctx, map[string]string{KeyEnabledStatuses: strings.Join(clean, ",")})
}

// Template returns the configured template for name, or "" when none is set.
func (s *Settings) Template(ctx context.Context, name string) (string, error) {
	return s.get(ctx, TemplateKey(name))
}

// RateLimits returns the configured overrides; zero values mean unset.
func (s *Settings) RateLimits(ctx context.Context) (int, time.Duration, error) {
	maxRaw, err := s.get(ctx, KeyRateLimitMax)
	if err != nil {
		return 0, 0, err
	}
	windowRaw, err := s.get(ctx, KeyRateLimitWindow)
	if err != nil {
		return 0, 0, err
	}

	var max, window int
	if maxRaw != "" {
		if max, err = strconv.Atoi(maxRaw); err != nil {
			return 0, 0, fmt.Errorf("settings: invalid %s %q: %w", KeyRateLimitMax, maxRaw, err)
		}
	}
	if windowRaw != "" {
		if window, err = strconv.Atoi(windowRaw); err != nil {
			return 0, 0, fmt.Errorf("settings: invalid %s %q: %w", KeyRateLimitWindow, windowRaw, err)
		}
	}
	return max, time.Duration(window) * time.Second, nil
}

// Seed writes values for keys that have no value yet.
func (s *Settings) Seed(ctx context.Context, values map[string]string) error {
	missing := make(map[string]string)
	for k, v := range values {
		if v == "" {
			continue
		}
		cur, err := s.get(ctx, k)
		if err != nil {
			return err
		}
		if cur == "" {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return s.store.SetMany(ctx, missing)
}
