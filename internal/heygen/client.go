package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ABHI-11949/avatar/internal/observability"
)

// Method is an HTTP verb accepted by the provider API.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
)

// Provider endpoints.
const (
	EndpointStreamingCreate = "streaming.create"
	EndpointStreamingTask   = "streaming.task"
	EndpointStreamingStop   = "streaming.stop"
	EndpointAvatarsList     = "avatars.list"
)

const maxResponseBytes = 4 << 20

// Provider performs one call against the avatar provider.
type Provider interface {
	Call(ctx context.Context, endpoint string, method Method, body any) (json.RawMessage, error)
}

// Config controls client construction.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the HeyGen API with the static API key.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewClient(cfg Config, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
		tracer:  otel.Tracer("github.com/ABHI-11949/avatar/internal/heygen"),
	}
}

// Call sends body to endpoint and returns the raw JSON response. Every failure
// is an *UpstreamError. An unsupported method panics.
func (c *Client) Call(ctx context.Context, endpoint string, method Method, body any) (json.RawMessage, error) {
	switch method {
	case MethodGet, MethodPost, MethodDelete:
	default:
		panic(fmt.Sprintf("heygen: unsupported method %q", method))
	}

	ctx, span := c.tracer.Start(ctx, "heygen."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", string(method)),
		attribute.String("heygen.endpoint", endpoint),
	)

	start := time.Now()
	raw, err := c.do(ctx, endpoint, method, body)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	c.metrics.ObserveProviderCall(endpoint, outcome, time.Since(start))
	return raw, err
}

func (c *Client) do(ctx context.Context, endpoint string, method Method, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil && method != MethodGet {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, transportError(fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, string(method), url, reader)
	if err != nil {
		return nil, transportError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Errorf("read response: %w", err))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &UpstreamError{Status: res.StatusCode, Detail: strings.TrimSpace(string(data))}
	}
	if !json.Valid(data) {
		return nil, transportError(fmt.Errorf("malformed response body from %s", endpoint))
	}
	return json.RawMessage(data), nil
}

func outcomeOf(err error) string {
	if ue, ok := AsUpstreamError(err); ok && !ue.Transport() {
		return "http_error"
	}
	return "transport_error"
}
