package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/counterbot/core/logger"
	"github.com/m3rciful/counterbot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 5 * time.Second
	headerTimeout    = 5 * time.Second
	requestSlack     = 20 * time.Second
	transportRetries = 3
	transportBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Its overall
// timeout leaves room for a long poll of pollTimeout.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   handshakeTimeout,
		ResponseHeaderTimeout: pollTimeout + headerTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   pollTimeout + requestSlack,
		Transport: &retryTransport{base: base, retries: transportRetries, backoff: transportBackoff},
	}
}

// retryTransport repeats requests that failed before reaching Telegram, such
// as refused dials and connect timeouts. Requests whose body cannot be
// replayed are tried once.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for n := 1; ; n++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || n > t.retries || !netutil.Retryable(err) {
			return resp, err
		}
		next, rewindErr := rewind(req)
		if rewindErr != nil || next == nil {
			return resp, err
		}
		req = next

		wait := t.backoff * time.Duration(n)
		logger.Debug(ctx, "tg.http", "retry",
			slog.Int("attempts", n),
			slog.Duration("backoff", wait),
			slog.String("err", err.Error()),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// rewind clones req with a fresh body. It returns nil when the body cannot be replayed.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body != nil && req.GetBody == nil {
		return nil, nil
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}
