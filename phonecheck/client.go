// Package phonecheck verifies stored phone numbers against the TrestleIQ
// phone-intel API: line status, carrier, and litigator risk. Numbers that
// come back disconnected or litigator-flagged should not be dialed.
package phonecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ybbus/httpretry"
)

const defaultBaseURL = "https://api.trestleiq.com/3.0/phone_intel"

// disconnectedScore is the activity-score ceiling below which a line is
// treated as disconnected.
const disconnectedScore = 30

// Client calls the phone-intel endpoint. Transient HTTP failures are
// retried by the underlying client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	pause      time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPause sets the delay between calls in VerifyAll. The API rate-limits
// aggressive callers; default is 500ms.
func WithPause(d time.Duration) Option {
	return func(c *Client) { c.pause = d }
}

// New returns a Client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpretry.NewDefaultClient(),
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		pause:      500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Entry is one number to verify, with the contact name for the report.
type Entry struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone"`
}

// Result is the verification outcome for one number.
type Result struct {
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone"`
	IsValid        *bool  `json:"is_valid"`
	ActivityScore  *int   `json:"activity_score"`
	IsDisconnected bool   `json:"is_disconnected"`
	IsLitigator    bool   `json:"is_litigator"`
	LineType       string `json:"line_type,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	IsPrepaid      *bool  `json:"is_prepaid"`
	Err            string `json:"error,omitempty"`
}

// intelResponse mirrors the phone_intel payload we consume.
type intelResponse struct {
	IsValid       *bool  `json:"is_valid"`
	ActivityScore *int   `json:"activity_score"`
	LineType      string `json:"line_type"`
	Carrier       string `json:"carrier"`
	IsPrepaid     *bool  `json:"is_prepaid"`
	AddOns        struct {
		LitigatorChecks map[string]any `json:"litigator_checks"`
	} `json:"add_ons"`
}

// Check verifies a single number.
func (c *Client) Check(ctx context.Context, phone string) (Result, error) {
	result := Result{Phone: phone}

	u := fmt.Sprintf("%s?phone=%s&add_ons=litigator_checks", c.baseURL, url.QueryEscape(phone))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return result, err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("phone intel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("phone intel: unexpected status %d", resp.StatusCode)
	}

	var payload intelResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return result, fmt.Errorf("phone intel: decode response: %w", err)
	}

	result.IsValid = payload.IsValid
	result.ActivityScore = payload.ActivityScore
	result.LineType = payload.LineType
	result.Carrier = payload.Carrier
	result.IsPrepaid = payload.IsPrepaid
	result.IsDisconnected = payload.ActivityScore != nil && *payload.ActivityScore <= disconnectedScore
	if risk, ok := payload.AddOns.LitigatorChecks["phone.is_litigator_risk"].(bool); ok {
		result.IsLitigator = risk
	}
	return result, nil
}

// VerifyAll checks every entry, pausing between calls. Per-number failures
// are recorded on the result, never fatal; only context cancellation stops
// the sweep early.
func (c *Client) VerifyAll(ctx context.Context, entries []Entry) ([]Result, error) {
	results := make([]Result, 0, len(entries))
	for i, entry := range entries {
		result, err := c.Check(ctx, entry.Phone)
		result.Name = entry.Name
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			result.Err = err.Error()
		}
		results = append(results, result)

		if c.pause > 0 && i < len(entries)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(c.pause):
			}
		}
	}
	return results, nil
}

// Summary aggregates a verification sweep.
type Summary struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Disconnected int `json:"disconnected"`
	Litigators   int `json:"litigators"`
	Errors       int `json:"errors"`
}

// Summarize tallies results the way the follow-up report expects:
// active means not disconnected and not errored.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Err != "":
			s.Errors++
		case r.IsDisconnected:
			s.Disconnected++
		default:
			s.Active++
		}
		if r.IsLitigator {
			s.Litigators++
		}
	}
	return s
}
