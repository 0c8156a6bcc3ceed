package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// TokenStore persists the bearer credential between runs.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Reauthenticator obtains a fresh credential without any user interaction.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) (string, error)
}

// Envelope is the backend's response wrapper. Data is the only success payload.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous requests carry no bearer token and never trigger re-authentication.
	// The login calls use it.
	Anonymous bool
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPProxy  string
	Headers    map[string]string
	MaxReplays int
	Limiter    *rate.Limiter
}

type refreshResult struct {
	token string
	err   error
}

// Client is the single choke point for outbound backend requests.
type Client struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	headers    map[string]string
	maxReplays int
	limiter    *rate.Limiter
	tokens     TokenStore

	mu         sync.Mutex
	reauth     Reauthenticator
	refreshing bool
	waiters    []chan refreshResult
	refreshes  int
	cacheBust  string
}

// New creates a gateway client.
func New(opts Options, tokens TokenStore) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if opts.HTTPProxy != "" {
		proxyURL, err := url.Parse(opts.HTTPProxy)
		if err != nil {
			log.Warnf("Invalid proxy URL %q: %v. Gateway will not use a proxy.", opts.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxReplays <= 0 {
		opts.MaxReplays = 2
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       &http.Client{Transport: transport, Timeout: opts.Timeout},
		timeout:    opts.Timeout,
		headers:    opts.Headers,
		maxReplays: opts.MaxReplays,
		limiter:    opts.Limiter,
		tokens:     tokens,
	}
}

// SetReauthenticator installs the silent re-authentication used on 401.
func (c *Client) SetReauthenticator(r Reauthenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reauth = r
}

// SetCacheBuster appends _v=<value> to every GET so intermediaries cannot serve
// responses cached under an older build. An empty value disables it.
func (c *Client) SetCacheBuster(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheBust = value
}

// Refreshes returns how many silent re-authentications were started.
func (c *Client) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// Do performs req and decodes the envelope's data into out (which may be nil).
// A 401 is recovered transparently: one shared re-authentication, then the request
// is replayed with the fresh token at most maxReplays times.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Anonymous {
		return c.send(ctx, req, "", out)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		log.Warnf("Could not read stored credential: %v", err)
	}

	err = c.send(ctx, req, token, out)
	for replay := 0; replay < c.maxReplays && IsUnauthorized(err); replay++ {
		fresh, refreshErr := c.refresh(ctx, token)
		if refreshErr != nil {
			return err
		}
		token = fresh
		err = c.send(ctx, req, token, out)
	}
	return err
}

// refresh returns a credential newer than stale. Only one re-authentication runs at a
// time; callers arriving meanwhile queue up and share its outcome in arrival order.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	if c.reauth == nil {
		c.mu.Unlock()
		return "", errors.New("no reauthenticator configured")
	}
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	// Another caller already replaced the token this request was sent with.
	if current, err := c.tokens.Token(ctx); err == nil && current != "" && current != stale {
		c.mu.Unlock()
		return current, nil
	}
	c.refreshing = true
	c.refreshes++
	reauth := c.reauth
	c.mu.Unlock()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	token, err := reauth.Reauthenticate(rctx)
	if err == nil && token == "" {
		err = errors.New("re-authentication returned an empty token")
	}
	if err == nil {
		err = c.tokens.SetToken(rctx, token)
	}
	if err != nil {
		log.Warnf("Silent re-authentication failed, clearing stored credential: %v", err)
		if clearErr := c.tokens.ClearToken(rctx); clearErr != nil {
			log.Errorf("Failed to clear stored credential: %v", clearErr)
		}
		token = ""
	} else {
		log.Info("Silent re-authentication succeeded")
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, w := range waiters {
		w <- refreshResult{token: token, err: err}
	}
	return token, err
}

func (c *Client) send(ctx context.Context, req Request, token string, out any) error {
	httpReq, err := c.newHTTPRequest(ctx, req, token)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
		}
	}

	requestID := httpReq.Header.Get("X-Request-ID")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.WithField("request_id", requestID).Debugf("%s %s failed: %v", req.Method, req.Path, err)
		return transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	var env Envelope
	var decodeErr error
	if len(bytes.TrimSpace(body)) > 0 {
		decodeErr = json.Unmarshal(body, &env)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = defaultStatusMessage(resp.StatusCode)
		}
		log.WithField("request_id", requestID).Debugf("%s %s returned %d: %s", req.Method, req.Path, resp.StatusCode, msg)
		return &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Code: env.Code, Message: msg}
	}

	if decodeErr != nil {
		return &Error{Kind: KindDecode, Status: resp.StatusCode, Message: msgDecode, Err: decodeErr}
	}
	if env.Code != 0 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("请求失败 (code %d)", env.Code)
		}
		return &Error{Kind: KindApplication, Status: resp.StatusCode, Code: env.Code, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindDecode, Status: resp.StatusCode, Message: msgDecode, Err: err}
	}
	return nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	query := url.Values{}
	for k, v := range req.Query {
		query[k] = v
	}

	c.mu.Lock()
	bust := c.cacheBust
	c.mu.Unlock()
	if bust != "" && req.Method == http.MethodGet {
		query.Set("_v", bust)
	}

	target := c.baseURL + req.Path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Message: msgNetwork, Err: err}
}
