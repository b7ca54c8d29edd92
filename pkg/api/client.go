// Package api is the HTTP client for the brainstorm server's out-of-band
// endpoints: session creation, model listing, ending and exporting sessions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HTTPError is a non-2xx response. Detail is the server's `detail` field when present.
type HTTPError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l.With().Str("component", "api").Logger() }
}

// NewClient builds a client for baseURL, which includes the API prefix
// (e.g. http://localhost:8000/api).
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse api base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("api base url must be http(s), got %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(parts, "/")
	return u.String()
}

func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	var out ModelsResponse
	if _, err := c.do(ctx, "list models", http.MethodGet, c.endpoint("models"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	var out CreateSessionResponse
	if _, err := c.do(ctx, "create session", http.MethodPost, c.endpoint("sessions"), req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return nil, errors.New("create session: response has no session_id")
	}
	c.logger.Debug().Str("session_id", out.SessionID).Int("agents", len(out.Agents)).Msg("session created")
	return &out, nil
}

func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	var out EndSessionResponse
	_, err := c.do(ctx, "end session", http.MethodPost, c.endpoint("sessions", sessionID, "end"), nil, &out)
	return err
}

func (c *Client) ExportSession(ctx context.Context, sessionID string) (*Export, error) {
	var session SessionExport
	resp, err := c.do(ctx, "export session", http.MethodGet, c.endpoint("sessions", sessionID, "export"), nil, &session)
	if err != nil {
		return nil, err
	}
	name := filenameFromDisposition(resp.header.Get("Content-Disposition"))
	if name == "" {
		name = fmt.Sprintf("brainstorm_%s.json", sessionID)
	}
	return &Export{Filename: name, Raw: resp.body, Session: session}, nil
}

type response struct {
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, op, method, target string, in, out any) (*response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: encode request", op)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer func() { _ = res.Body.Close() }()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read body", op)
	}
	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", res.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPError{Op: op, StatusCode: res.StatusCode, Detail: detailOf(raw)}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, errors.Wrapf(err, "%s: decode response", op)
		}
	}
	return &response{header: res.Header, body: raw}, nil
}

// detailOf extracts FastAPI-style {"detail": ...} bodies.
func detailOf(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(raw))
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	// validation errors come as a list of objects
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return string(payload.Detail)
}

func filenameFromDisposition(v string) string {
	if v == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// StreamURL derives the websocket URL of a session stream from an http(s)
// server URL and a path template containing "{id}".
func StreamURL(serverURL, pathTemplate, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(serverURL), "/"))
	if err != nil {
		return "", errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if pathTemplate == "" {
		pathTemplate = "/ws/sessions/{id}"
	}
	p := strings.ReplaceAll(pathTemplate, "{id}", sessionID)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u.Path = strings.TrimRight(u.Path, "/") + p
	return u.String(), nil
}
