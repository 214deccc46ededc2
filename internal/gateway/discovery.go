package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/LeventeLantos/order-notifier/internal/metrics"
	"github.com/LeventeLantos/order-notifier/internal/model"
)

// DiscoveryNumber receives every discovery attempt.
const DiscoveryNumber = "5544999999999"

var ErrDiscoveryFailed = errors.New("gateway discovery failed: no working endpoint/field combination")

var candidatePaths = []string{
	"/send-message",
	"/messages/send",
	"/sendText",
	"/message/send",
	"/send",
	"/api/send",
	"/v1/send",
	"/whatsapp/send",
}

var candidateFields = []model.FieldMap{
	{Number: "number", Message: "body"},
	{Number: "phone", Message: "message"},
	{Number: "phoneNumber", Message: "text"},
	{Number: "to", Message: "message"},
	{Number: "recipient", Message: "body"},
}

// discoveryTargets lists the base URL itself first, then every path crossed
// with every field mapping.
func discoveryTargets() []Target {
	targets := make([]Target, 0, 1+len(candidatePaths)*len(candidateFields))
	targets = append(targets, Target{Fields: model.DefaultFieldMap})
	for _, path := range candidatePaths {
		for _, fields := range candidateFields {
			targets = append(targets, Target{EndpointPath: path, Fields: fields})
		}
	}
	return targets
}

type DiscoveryResult struct {
	Target
	URL string `json:"url"`
	// Confirmed is false when no attempt succeeded and the result is the first
	// endpoint that answered with a non-404 error.
	Confirmed  bool `json:"confirmed"`
	StatusCode int  `json:"status_code"`
	Response   any  `json:"response,omitempty"`
	Attempts   int  `json:"attempts"`
}

// Discover tries the gateway for a working endpoint and field mapping and
// stores what it finds. Concurrent calls share one discovery run.
func (a *Adapter) Discover(ctx context.Context) (*DiscoveryResult, error) {
	v, err, _ := a.discovery.Do("discover", func() (any, error) {
		return a.discover(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DiscoveryResult), nil
}

func (a *Adapter) discover(ctx context.Context) (*DiscoveryResult, error) {
	p := a.Profile()
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	message := "Connection test - " + a.now().Format("02/01/2006 15:04:05")

	var (
		candidate *DiscoveryResult
		lastErr   error
		attempts  int
	)

	for _, t := range discoveryTargets() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		url := EndpointURL(p.BaseURL, t.EndpointPath)
		resp, err := a.post(ctx, p, t, DiscoveryNumber, message, a.attemptTimeout)
		if err == nil {
			metrics.DiscoveryAttempts.WithLabelValues("ok").Inc()
			a.log.Debug("discovery attempt succeeded", zap.String("url", url), zap.Int("status", resp.StatusCode))
			return a.commit(ctx, &DiscoveryResult{
				Target:     t,
				URL:        url,
				Confirmed:  true,
				StatusCode: resp.StatusCode,
				Response:   resp.Body,
				Attempts:   attempts,
			})
		}

		lastErr = err
		var rejected *RejectedError
		if !errors.As(err, &rejected) || rejected.StatusCode == http.StatusNotFound {
			metrics.DiscoveryAttempts.WithLabelValues("miss").Inc()
			a.log.Debug("discovery attempt missed", zap.String("url", url), zap.Error(err))
			continue
		}

		metrics.DiscoveryAttempts.WithLabelValues("rejected").Inc()
		a.log.Debug("discovery attempt rejected", zap.String("url", url), zap.Int("status", rejected.StatusCode))
		if candidate == nil {
			candidate = &DiscoveryResult{
				Target:     t,
				URL:        url,
				StatusCode: rejected.StatusCode,
				Response:   rejected.Message,
			}
		}
	}

	if candidate != nil {
		candidate.Attempts = attempts
		return a.commit(ctx, candidate)
	}

	a.log.Warn("gateway discovery failed", zap.String("base_url", p.BaseURL), zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, fmt.Errorf("%w after %d attempts (last error: %v)", ErrDiscoveryFailed, attempts, lastErr)
}

func (a *Adapter) commit(ctx context.Context, res *DiscoveryResult) (*DiscoveryResult, error) {
	if err := a.store.SaveDiscovery(ctx, res.EndpointPath, res.Fields); err != nil {
		return nil, fmt.Errorf("save discovery: %w", err)
	}

	a.mu.Lock()
	a.profile.EndpointPath = res.EndpointPath
	a.profile.Fields = res.Fields
	a.mu.Unlock()

	a.log.Info("gateway discovery finished",
		zap.String("url", res.URL),
		zap.String("number_field", res.Fields.Number),
		zap.String("message_field", res.Fields.Message),
		zap.Bool("confirmed", res.Confirmed),
		zap.Int("attempts", res.Attempts),
	)
	return res, nil
}
