package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/matzehuels/pdaviz/pkg/core/build"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/observability"
)

// DefaultTimeout bounds every matcher request.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 32 << 20

// Client talks to one matcher service.
type Client struct {
	http    *http.Client
	base    *url.URL
	timeout time.Duration
	headers map[string]string
}

// Option configures a [Client].
type Option func(*Client)

// WithTimeout sets the per-request timeout. Non-positive values keep
// [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeaders sets headers sent with every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// New creates a client for the matcher at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "matcher url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "matcher url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "matcher url %q has no host", baseURL)
	}

	c := &Client{
		http:    &http.Client{},
		base:    u,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the matcher address.
func (c *Client) BaseURL() string { return c.base.String() }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// =============================================================================
// Endpoints
// =============================================================================

// FetchGraph requests the graph payloads for role's source text. Payloads
// are decoded but not built; the result is ordered by label.
func (c *Client) FetchGraph(ctx context.Context, role replay.Role, code string) (payloads []*build.Payload, err error) {
	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, "graph")
	defer func() { observability.Pipeline().OnFetchComplete(ctx, "graph", time.Since(start), err) }()

	var resp graphResponse
	if err := c.post(ctx, role.String(), graphRequest{Code: code}, &resp); err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(resp.Graph))
	for label := range resp.Graph {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	payloads = make([]*build.Payload, 0, len(labels))
	for _, label := range labels {
		p, err := build.DecodePayload(label, resp.Graph[label])
		if err != nil {
			return nil, fmt.Errorf("%s graph: %w", role, err)
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

// Match starts a match of pattern against code.
func (c *Client) Match(ctx context.Context, code, pattern string) (result *MatchResult, err error) {
	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, "match")
	defer func() { observability.Pipeline().OnFetchComplete(ctx, "match", time.Since(start), err) }()

	var resp matchResponse
	if err := c.post(ctx, "match", matchRequest{Code: code, Pattern: pattern}, &resp); err != nil {
		return nil, err
	}
	if resp.NSteps < 0 {
		return nil, errors.New(errors.ErrCodeInvalidPayload, "match reported %d steps", resp.NSteps)
	}
	return &MatchResult{
		Initial:     resp.State.pair(),
		Steps:       resp.NSteps,
		MatchStates: resp.MatchStates,
	}, nil
}

// Step fetches step i of the current match trace.
func (c *Client) Step(ctx context.Context, i int) (step *Step, err error) {
	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, "step")
	defer func() { observability.Pipeline().OnFetchComplete(ctx, "step", time.Since(start), err) }()

	var resp stepResponse
	if err := c.post(ctx, "step", stepRequest{Step: i}, &resp); err != nil {
		return nil, err
	}
	return &Step{
		Index: i,
		State: replay.State{
			Current:           resp.State.pair(),
			Matched:           pairs(resp.CurrentMatchings),
			PreviouslyMatched: pairs(resp.PreviousMatchings),
		},
		CurrentStack:  resp.CurrentStack,
		PreviousStack: resp.PreviousStack,
		CodePos:       Span{Start: resp.CodePos[0], End: resp.CodePos[1] + 1},
	}, nil
}

// Validate checks text in lang. A syntax error is a result, not an error:
// err is only set when the request itself fails.
func (c *Client) Validate(ctx context.Context, text, lang string) (v *Validation, err error) {
	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, "validate")
	defer func() { observability.Pipeline().OnFetchComplete(ctx, "validate", time.Since(start), err) }()

	env, _, err := c.do(ctx, "validate", validateRequest{Code: text, Lang: lang})
	if err != nil {
		return nil, err
	}
	if env.Status == StatusError {
		return &Validation{Message: FormatValidationMessage(env.Message)}, nil
	}
	return &Validation{Valid: true}, nil
}

// =============================================================================
// Transport
// =============================================================================

// post sends body to endpoint, rejects error envelopes and decodes the
// response into out.
func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	env, data, err := c.do(ctx, endpoint, body)
	if err != nil {
		return err
	}
	if env.Status == StatusError {
		be := &errors.BackendError{Endpoint: "/api/" + endpoint, Message: messageText(env.Message)}
		return errors.Wrap(errors.ErrCodeBackend, be, "%s", endpoint)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPayload, err, "decode %s response", endpoint)
	}
	return nil
}

// do performs one request and returns the decoded status envelope with the
// raw body. It never retries.
func (c *Client) do(ctx context.Context, endpoint string, body any) (envelope, []byte, error) {
	var env envelope

	payload, err := json.Marshal(body)
	if err != nil {
		return env, nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base.JoinPath("api", endpoint)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return env, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build %s request", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
		return env, nil, c.transportError(ctx, reqCtx, endpoint, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(endpoint, resp.StatusCode); err != nil {
		return env, nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return env, nil, c.transportError(ctx, reqCtx, endpoint, err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "decode %s response", endpoint)
	}
	return env, data, nil
}

// transportError classifies a failed request. Cancellation by the caller is
// returned as the context error so that superseded requests can be told
// apart from real failures.
func (c *Client) transportError(ctx, reqCtx context.Context, endpoint string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if reqCtx.Err() == context.DeadlineExceeded {
		return errors.Wrap(errors.ErrCodeTimeout, err, "%s request exceeded %s", endpoint, c.timeout)
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, "%s request", endpoint)
}

func checkStatus(endpoint string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s: status %d", endpoint, code)
	default:
		return errors.New(errors.ErrCodeNetwork, "%s: status %d", endpoint, code)
	}
}
