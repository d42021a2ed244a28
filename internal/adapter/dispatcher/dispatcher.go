// Package dispatcher performs a single outbound POST for a job request.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"jobrelay/internal/domain/job"
	"jobrelay/internal/platform/httpclient"
	"jobrelay/internal/shared"
)

// Sender executes a prepared request and returns the status and body.
type Sender interface {
	Send(ctx context.Context, req *http.Request) (int, []byte, error)
}

// Error is returned when no response was received.
type Error struct {
	URL   string
	Cause string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch %s: %s", e.URL, e.Cause)
}

func (e *Error) Unwrap() error { return e.Err }

// TruncatedMarker ends the text of a response cut at the body size limit.
const TruncatedMarker = "...[truncated]"

// Dispatcher sends job requests over HTTP.
type Dispatcher struct {
	client Sender
}

// New returns a Dispatcher using c. A nil c gets a default httpclient.Client.
func New(c Sender) *Dispatcher {
	if c == nil {
		c = httpclient.New()
	}
	return &Dispatcher{client: c}
}

// Dispatch issues POST req.URL with the request headers, cookies and body.
// Any answer from the server, whatever its status, is a response; only
// transport failures return an *Error. A body over the size limit comes back
// as a RawResponse ending in TruncatedMarker.
func (d *Dispatcher) Dispatch(ctx context.Context, req job.Request) (job.Response, error) {
	hr, err := build(ctx, req)
	if err != nil {
		return nil, err
	}
	status, body, err := d.client.Send(ctx, hr)
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return job.RawResponse{Status: status, Text: string(body) + TruncatedMarker}, nil
	}
	if err != nil {
		return nil, failure(req.URL, err)
	}
	return job.NewResponse(status, body), nil
}

func build(ctx context.Context, req job.Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{URL: req.URL, Cause: "invalid url", Err: shared.ErrValidation}
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(req.Body))
	if err != nil {
		return nil, &Error{URL: req.URL, Cause: err.Error(), Err: shared.MarkKind(err, shared.KindValidation)}
	}
	for k, v := range req.Headers {
		if !httpguts.ValidHeaderFieldName(k) || !httpguts.ValidHeaderFieldValue(v) {
			return nil, &Error{URL: req.URL, Cause: fmt.Sprintf("invalid header %q", k), Err: shared.ErrValidation}
		}
		hr.Header.Set(k, v)
	}
	if req.Cookies != "" {
		if !httpguts.ValidHeaderFieldValue(req.Cookies) {
			return nil, &Error{URL: req.URL, Cause: "invalid cookie value", Err: shared.ErrValidation}
		}
		hr.Header.Set("Cookie", req.Cookies)
	}
	return hr, nil
}

func failure(rawURL string, err error) *Error {
	kind := shared.KindDependencyFailure
	cause := err.Error()
	var ue *url.Error
	if errors.As(err, &ue) {
		cause = ue.Err.Error()
	}
	switch {
	case shared.IsCanceled(err):
		kind = shared.KindCanceled
		cause = "request canceled"
	case shared.IsTimeout(err):
		kind = shared.KindTimeout
		cause = "request timed out"
	}
	return &Error{URL: rawURL, Cause: cause, Err: shared.MarkKind(err, kind)}
}
