package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultSignedURLEndpoint = "https://api.elevenlabs.io/v1/convai/conversation/get_signed_url"

// ErrUpstreamAuth reports that the signed-URL issuance endpoint rejected the
// request. The caller decides whether to retry; this client never does.
var ErrUpstreamAuth = errors.New("signed url issuance rejected")

// SignedURLClient fetches one-time authenticated connection URLs for agent
// sessions. It is stateless and safe for concurrent use.
type SignedURLClient struct {
	endpoint   string
	httpClient *http.Client
}

type SignedURLClientOption func(*SignedURLClient)

// WithSignedURLEndpoint overrides the issuance endpoint, primarily for tests.
func WithSignedURLEndpoint(endpoint string) SignedURLClientOption {
	return func(c *SignedURLClient) { c.endpoint = endpoint }
}

func NewSignedURLClient(opts ...SignedURLClientOption) *SignedURLClient {
	client := &SignedURLClient{
		endpoint: defaultSignedURLEndpoint,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FetchSignedURL performs a single authenticated request against the session
// issuance endpoint and returns the one-time connection URL. A non-success
// status surfaces as [ErrUpstreamAuth]; transport failures are wrapped as-is.
func (c *SignedURLClient) FetchSignedURL(ctx context.Context, agentID, apiKey string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch signed session url")
	defer span.End()
	span.SetAttributes(attribute.String("request.agent_id", agentID))

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid signed url endpoint: %w", err)
	}
	queryParams := endpoint.Query()
	queryParams.Set("agent_id", agentID)
	endpoint.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build signed url request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordedErr := fmt.Errorf("failed to reach signed url endpoint: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return "", recordedErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		recordedErr := fmt.Errorf("%w: status %d: %s", ErrUpstreamAuth, resp.StatusCode, string(body))
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return "", recordedErr
	}

	var parsedResp struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsedResp); err != nil {
		return "", fmt.Errorf("failed to decode signed url response: %w", err)
	}
	if parsedResp.SignedURL == "" {
		return "", fmt.Errorf("signed url response missing signed_url field")
	}

	return parsedResp.SignedURL, nil
}
