// Package relay forwards accepted readings to a peer instance, best effort.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/relaybot/internal/requestid"
)

// ForwardedHeader marks a request as relayed by another instance.
const ForwardedHeader = "X-Relaybot-Forwarded"

const (
	ingestPath         = "/relaybot-data"
	defaultTimeout     = 2 * time.Second
	defaultMaxInFlight = 8
	maxDrainBody       = 4 << 10
)

// Options configures a Forwarder.
type Options struct {
	PeerURL     string
	Token       string        // optional bearer token sent to the peer
	Timeout     time.Duration // per attempt; defaults to 2s
	MaxInFlight int           // defaults to 8
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Stats counts forward outcomes since start.
type Stats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

// Forwarder posts raw payloads to the peer's ingest endpoint. Every attempt is
// fire-and-forget: failures are logged, never retried or reported to callers.
type Forwarder struct {
	endpoint   string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	group   errgroup.Group
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// New creates a Forwarder for opts.PeerURL, which must be an absolute http(s) URL.
func New(opts Options) (*Forwarder, error) {
	u, err := url.Parse(strings.TrimRight(opts.PeerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing peer url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("peer url %q must be an absolute http(s) url", opts.PeerURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := opts.MaxInFlight
	if limit <= 0 {
		limit = defaultMaxInFlight
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Forwarder{
		endpoint:   u.String() + ingestPath,
		token:      opts.Token,
		timeout:    timeout,
		httpClient: client,
		logger:     logger.With("component", "relay", "peer", u.Host),
	}
	f.group.SetLimit(limit)
	return f, nil
}

// Endpoint returns the peer URL readings are posted to.
func (f *Forwarder) Endpoint() string {
	return f.endpoint
}

// Forward relays payload in the background and returns immediately. The
// attempt outlives ctx cancellation but keeps its request id. When the
// in-flight limit is reached the payload is dropped.
func (f *Forwarder) Forward(ctx context.Context, payload []byte) {
	detached := context.WithoutCancel(ctx)
	started := f.group.TryGo(func() error {
		f.send(detached, payload)
		return nil
	})
	if !started {
		f.dropped.Add(1)
		f.logger.WarnContext(ctx, "forward dropped, too many in flight", "request_id", requestid.From(ctx))
	}
}

func (f *Forwarder) send(parent context.Context, payload []byte) {
	ctx, cancel := context.WithTimeout(parent, f.timeout)
	defer cancel()

	reqID := requestid.From(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		f.failed.Add(1)
		f.logger.Warn("forward failed", "request_id", reqID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ForwardedHeader, "1")
	if reqID != "" {
		req.Header.Set(requestid.Header, reqID)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.failed.Add(1)
		f.logger.Warn("forward failed", "request_id", reqID, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.failed.Add(1)
		f.logger.Warn("forward rejected by peer", "request_id", reqID, "status", resp.StatusCode)
		return
	}

	f.sent.Add(1)
	f.logger.Debug("forwarded reading", "request_id", reqID, "duration_ms", time.Since(start).Milliseconds())
}

// Stats returns a snapshot of forward outcomes.
func (f *Forwarder) Stats() Stats {
	return Stats{
		Sent:    f.sent.Load(),
		Failed:  f.failed.Load(),
		Dropped: f.dropped.Load(),
	}
}

// Close waits for in-flight forwards to finish or ctx to expire.
func (f *Forwarder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
