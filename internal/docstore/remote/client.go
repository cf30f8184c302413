package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/idilsaglam/todosync/internal/docstore"
)

// Client implements docstore.Backend against a remote Server. Live queries
// reconnect on their own; callers only hear about the first failure of
// each outage.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   *slog.Logger

	retryMin time.Duration
	retryMax time.Duration

	mu        sync.Mutex
	listeners map[*remoteListener]struct{}
	closed    bool
}

// ClientOption tunes a Client.
type ClientOption func(*Client)

func WithToken(token string) ClientOption { return func(c *Client) { c.token = token } }

func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.http = h } }

func WithClientLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.log = l } }

// WithRetry sets the reconnect backoff bounds for live queries.
func WithRetry(min, max time.Duration) ClientOption {
	return func(c *Client) { c.retryMin, c.retryMax = min, max }
}

// NewClient validates baseURL; no connection is made until the first call.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		retryMin:  500 * time.Millisecond,
		retryMax:  10 * time.Second,
		listeners: map[*remoteListener]struct{}{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Lookup(ctx context.Context, collection, id string) (docstore.Document, error) {
	var doc docstore.Document
	p := "/v1/collections/" + url.PathEscape(collection) + "/documents/" + url.PathEscape(id)
	err := c.do(ctx, http.MethodGet, p, nil, &doc)
	return doc, err
}

func (c *Client) RunQuery(ctx context.Context, q docstore.QuerySpec) ([]docstore.Document, error) {
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/query", q, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) Commit(ctx context.Context, writes []docstore.Write) (time.Time, error) {
	var resp commitResponse
	if writes == nil {
		writes = []docstore.Write{}
	}
	if err := c.do(ctx, http.MethodPost, "/v1/commit", commitRequest{Writes: writes}, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.CommitTime, nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/healthz"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	ls := make([]*remoteListener, 0, len(c.listeners))
	for l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()
	for _, l := range ls {
		l.stop()
	}
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) endpoint(p string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + p
	return u.String()
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, p string, body, out any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return docstore.ErrClosed
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p), rd)
	if err != nil {
		return err
	}
	req.Header = c.header()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&e)
		if sentinel := errorFor(e.Code); sentinel != nil {
			return fmt.Errorf("%s %s: %w", method, p, sentinel)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, p, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ------- live queries -------

type remoteListener struct {
	c       *Client
	q       docstore.QuerySpec
	onNext  func([]docstore.Document)
	onError func(error)

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// Listen dials once synchronously so an unreachable server is reported to
// the caller; later disconnects are retried in the background.
func (c *Client) Listen(q docstore.QuerySpec, onNext func([]docstore.Document), onError func(error)) (func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &remoteListener{c: c, q: q, onNext: onNext, onError: onError, ctx: ctx, cancel: cancel}
	c.listeners[l] = struct{}{}
	c.mu.Unlock()

	conn, err := l.dial()
	if err != nil {
		l.stop()
		return nil, err
	}
	go l.run(conn)
	return l.stop, nil
}

func (c *Client) listenURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/listen"
	return u.String()
}

func (l *remoteListener) dial() (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(l.ctx, l.c.listenURL(), l.c.header())
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("listen: %w", ErrUnauthenticated)
		}
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := conn.WriteJSON(l.q); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := l.attach(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// attach records conn so stop can close it. A listener stopped while dialing
// closes conn instead.
func (l *remoteListener) attach(conn *websocket.Conn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ctx.Err(); err != nil {
		_ = conn.Close()
		return err
	}
	l.conn = conn
	return nil
}

func (l *remoteListener) run(conn *websocket.Conn) {
	backoff := l.c.retryMin
	reported := false
	for {
		err := l.read(conn)
		if l.ctx.Err() != nil {
			return
		}
		if err != nil && !reported {
			l.c.log.Warn("live query disconnected", "collection", l.q.Collection, "error", err)
			if l.onError != nil {
				l.onError(err)
			}
			reported = true
		}
		for {
			select {
			case <-l.ctx.Done():
				return
			case <-time.After(backoff):
			}
			conn, err = l.dial()
			if err == nil {
				l.c.log.Info("live query reconnected", "collection", l.q.Collection)
				backoff = l.c.retryMin
				reported = false
				break
			}
			if l.ctx.Err() != nil {
				return
			}
			backoff *= 2
			if backoff > l.c.retryMax {
				backoff = l.c.retryMax
			}
		}
	}
}

// read delivers frames until the connection fails.
func (l *remoteListener) read(conn *websocket.Conn) error {
	defer conn.Close()
	for {
		var f listenFrame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		if l.ctx.Err() != nil {
			return nil
		}
		if f.Error != "" {
			if l.onError != nil {
				l.onError(errors.New(f.Error))
			}
			continue
		}
		if l.onNext != nil {
			l.onNext(f.Documents)
		}
	}
}

func (l *remoteListener) stop() {
	l.once.Do(func() {
		l.cancel()
		l.mu.Lock()
		if l.conn != nil {
			_ = l.conn.Close()
		}
		l.mu.Unlock()
		l.c.mu.Lock()
		delete(l.c.listeners, l)
		l.c.mu.Unlock()
	})
}
