package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/outbound"
)

const (
	// ProxyUserAgent identifies endpoint-tester requests.
	ProxyUserAgent = "API-Marketplace-Test/1.0"
	// DefaultProxyTimeout bounds a forwarded request.
	DefaultProxyTimeout = 15 * time.Second
	// maxProxyResponseSize caps how much of a response is relayed.
	maxProxyResponseSize = 2 << 20
)

// ProxyService forwards endpoint-tester requests through the outbound guard.
type ProxyService struct {
	guard   *outbound.Guard
	client  *http.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewProxyService creates a new ProxyService. Redirects are returned to the
// caller, not followed.
func NewProxyService(guard *outbound.Guard, timeout time.Duration, logger *slog.Logger, recorder metrics.Recorder) *ProxyService {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ProxyService{
		guard:   guard,
		client:  guard.NewClient(timeout, 0),
		logger:  logger,
		metrics: recorder,
	}
}

// ProxyInput describes a request to forward. Body is raw JSON: a JSON
// string is sent as its text, anything else is sent re-encoded.
type ProxyInput struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    json.RawMessage
}

// ProxyResult mirrors the upstream response. Data holds parsed JSON when
// the body is valid JSON, the text otherwise, and nil for an empty body.
type ProxyResult struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Data       any
	OK         bool
}

// Forward performs the request and relays the response.
func (s *ProxyService) Forward(ctx context.Context, input ProxyInput) (*ProxyResult, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, ErrMissingURL
	}
	target, err := s.guard.ValidateURL(ctx, input.URL)
	if err != nil {
		s.metrics.IncProxyRequest("rejected")
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	method := strings.ToUpper(strings.TrimSpace(input.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !httpguts.ValidHeaderFieldName(method) {
		s.metrics.IncProxyRequest("rejected")
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, input.Method)
	}

	body, err := proxyBody(method, input.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", ProxyUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range input.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if outbound.IsGuardError(err) {
			s.metrics.IncProxyRequest("rejected")
			return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
		}
		s.metrics.IncProxyRequest(metrics.StatusFailed)
		s.logger.Warn("proxy_request_failed", "host", target.Host, "method", method, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrProxyRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyResponseSize))
	if err != nil {
		s.metrics.IncProxyRequest(metrics.StatusFailed)
		return nil, fmt.Errorf("%w: read body: %w", ErrProxyRequest, err)
	}
	s.metrics.IncProxyRequest(metrics.StatusSuccess)

	return &ProxyResult{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    flattenHeaders(resp.Header),
		Data:       decodeData(raw),
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
	}, nil
}

func proxyBody(method string, body json.RawMessage) (io.Reader, error) {
	if method == http.MethodGet || method == http.MethodHead {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("%w: encode body: %w", ErrProxyRequest, err)
		}
		return strings.NewReader(text), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: encode body: %w", ErrProxyRequest, err)
	}
	return &buf, nil
}

func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

func decodeData(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}
