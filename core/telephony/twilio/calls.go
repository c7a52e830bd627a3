package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// CallClient places outbound calls through the telephony provider's REST
// API. It is stateless and safe for concurrent use.
type CallClient struct {
	accountSID string
	authToken  string
	from       string

	baseURL    string
	httpClient *http.Client
}

type CallClientOption func(*CallClient)

// WithAPIBaseURL overrides the provider API base URL, primarily for tests.
func WithAPIBaseURL(baseURL string) CallClientOption {
	return func(c *CallClient) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

func NewCallClient(accountSID, authToken, from string, opts ...CallClientOption) *CallClient {
	client := &CallClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultAPIBaseURL,
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

// PlaceCall creates an outbound call to the destination number whose answer
// callback points the provider at answerURL. Returns the provider-assigned
// call identifier.
func (c *CallClient) PlaceCall(ctx context.Context, to, answerURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "place outbound call")
	defer span.End()
	span.SetAttributes(attribute.String("request.to", to))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Url", answerURL)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordedErr := fmt.Errorf("failed to reach telephony api: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return "", recordedErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		recordedErr := fmt.Errorf("telephony api rejected call: status %d: %s", resp.StatusCode, string(body))
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return "", recordedErr
	}

	var parsedResp struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsedResp); err != nil {
		return "", fmt.Errorf("failed to decode call response: %w", err)
	}

	span.SetAttributes(attribute.String("response.call_sid", parsedResp.SID))
	return parsedResp.SID, nil
}
