package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"time"
)

// Client wraps http.Client with logging, default headers and bounded body reads.
// It never retries; retry policy belongs to the caller.
type Client struct {
	hc        *stdhttp.Client
	log       *slog.Logger
	userAgent string
	maxBody   int64
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the overall per-request timeout (0 disables it).
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithUserAgent sets the User-Agent sent when a request carries none.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithMaxBodySize limits how many response bytes Send reads (0 disables the limit).
func WithMaxBodySize(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// ErrBodyTooLarge indicates the response body exceeded the configured limit.
// The status and the truncated body are still returned with it.
var ErrBodyTooLarge = errors.New("http: response body too large")

// New creates configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxConnsPerHost = 100
	tr.MaxIdleConnsPerHost = 100
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second

	c := &Client{
		hc: &stdhttp.Client{
			Timeout:   30 * time.Second,
			Transport: tr,
		},
		log:       slog.Default(),
		userAgent: "jobrelay/1.0",
		maxBody:   1 << 20,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// logURL hides the password and query of u. Registration targets often carry
// session tokens in the query string.
func logURL(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Redacted()
	}
	cp := *u
	cp.RawQuery = "..."
	return cp.Redacted()
}

// drainAndClose drains up to 512KB from body and closes it.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, b, 512<<10)
	_ = b.Close()
}

// Do sends HTTP request with context and logging.
func (c *Client) Do(ctx context.Context, req *stdhttp.Request) (*stdhttp.Response, error) {
	r := req.Clone(ctx)
	if c.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.userAgent)
	}
	u := logURL(r.URL)
	st := time.Now()
	resp, err := c.hc.Do(r)
	dur := time.Since(st)
	if err != nil {
		c.log.Warn("http request error", slog.String("method", r.Method), slog.String("url", u), slog.Duration("dur", dur), slog.Any("error", err))
		return nil, err
	}
	c.log.Info("http request", slog.String("method", r.Method), slog.String("url", u), slog.Int("status", resp.StatusCode), slog.Duration("dur", dur))
	return resp, nil
}

// Send performs Do and reads the whole response body within the size limit.
// Any received status is returned without error; only transport and read
// failures are errors. A body over the limit yields its first maxBody bytes
// together with ErrBodyTooLarge.
func (c *Client) Send(ctx context.Context, req *stdhttp.Request) (int, []byte, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	defer drainAndClose(resp.Body)

	var body []byte
	if c.maxBody > 0 {
		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err == nil && int64(len(body)) > c.maxBody {
			return resp.StatusCode, body[:c.maxBody], fmt.Errorf("%s %s: %w", req.Method, logURL(req.URL), ErrBodyTooLarge)
		}
	} else {
		body, err = io.ReadAll(resp.Body)
	}
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}
