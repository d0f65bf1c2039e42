package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultAPIBase = "https://api.twilio.com"

// RestClient places outbound calls through the Twilio REST API.
type RestClient struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// RestOption configures a RestClient.
type RestOption func(*RestClient)

// WithAPIBase overrides the Twilio API base URL.
func WithAPIBase(base string) RestOption {
	return func(c *RestClient) {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithRestHTTPClient overrides the HTTP client used for API requests.
func WithRestHTTPClient(hc *http.Client) RestOption {
	return func(c *RestClient) {
		c.httpClient = hc
	}
}

// NewRestClient creates a client authenticated with the account SID and
// auth token.
func NewRestClient(accountSID, authToken string, opts ...RestOption) *RestClient {
	c := &RestClient{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultAPIBase,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceCall starts an outbound call from the given number to the given
// number. Twilio fetches call instructions from twimlURL once the callee
// answers. Returns the call SID.
func (c *RestClient) PlaceCall(ctx context.Context, to, from, twimlURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Url", twimlURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: build call request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: place call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("twilio: read call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio: place call: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("twilio: decode call response: %w", err)
	}
	return out.SID, nil
}
