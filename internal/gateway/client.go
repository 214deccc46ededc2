package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LeventeLantos/order-notifier/internal/metrics"
	"github.com/LeventeLantos/order-notifier/internal/model"
)

const (
	SendTimeout    = 30 * time.Second
	AttemptTimeout = 10 * time.Second

	maxErrorBodyRunes = 200
)

var ErrNotConfigured = errors.New("gateway not configured: base url and token are required")

// TransportError means the gateway was never reached or the response could
// not be read: connection failures, timeouts, malformed URLs.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport error (%s): %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is a non-2xx answer from the gateway.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("api error: %d - %s", e.StatusCode, e.Message)
}

// Response is a successful gateway answer. Body holds the decoded JSON value
// when the gateway answered with JSON, the raw text otherwise.
type Response struct {
	StatusCode int `json:"status_code"`
	Body       any `json:"body"`
}

// Target is an endpoint path plus the field names to post to it.
type Target struct {
	EndpointPath string         `json:"endpoint_path"`
	Fields       model.FieldMap `json:"fields"`
}

// EndpointURL joins base and path. An empty path addresses base itself and a
// path that is already absolute is used as is.
func EndpointURL(base, path string) string {
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "http"):
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (a *Adapter) post(ctx context.Context, p model.GatewayProfile, t Target, number, message string, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := EndpointURL(p.BaseURL, t.EndpointPath)

	reqBody, err := json.Marshal(map[string]string{
		t.Fields.Number:  number,
		t.Fields.Message: message,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setAuth(req, p.AuthStyle, p.Token)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		metrics.ObserveGatewayRequest("transport_error", time.Since(start))
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGatewayRequest("transport_error", time.Since(start))
		return nil, &TransportError{URL: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveGatewayRequest("rejected", time.Since(start))
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	metrics.ObserveGatewayRequest("ok", time.Since(start))
	return &Response{StatusCode: resp.StatusCode, Body: decodeBody(body)}, nil
}

func setAuth(req *http.Request, style model.AuthStyle, token string) {
	switch style {
	case model.AuthToken:
		req.Header.Set("Authorization", "Token "+token)
	case model.AuthAPIKey:
		req.Header.Set("X-API-Key", token)
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func decodeBody(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func errorMessage(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
		if e, ok := obj["error"]; ok && e != nil {
			if s, ok := e.(string); ok {
				return s
			}
			if b, err := json.Marshal(e); err == nil {
				return string(b)
			}
		}
	}
	return truncate(string(body), maxErrorBodyRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
