package ajax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const logPrefix = "ajax:dispatcher"

// DefaultTimeout bounds a single admin-ajax request.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// ErrRequestInFlight is returned when a dispatcher is asked to send while its previous request is outstanding.
var ErrRequestInFlight = errors.New("ajax: request already in flight")

// Options configures a Dispatcher. Zero values use defaults.
type Options struct {
	// Name identifies the control or panel this dispatcher serves (logging only).
	Name    string
	Timeout time.Duration
	Client  *http.Client
	// Cookie is sent verbatim as the Cookie header (the admin session).
	Cookie string
}

// Dispatcher sends one admin-ajax request at a time. Calls made while a request is
// outstanding are dropped, not queued.
type Dispatcher struct {
	name    string
	creds   Credentials
	client  *http.Client
	timeout time.Duration
	cookie  string

	inFlight atomic.Bool
}

// NewDispatcher creates a Dispatcher bound to the given credentials.
func NewDispatcher(creds Credentials, opts Options) *Dispatcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		name:    opts.Name,
		creds:   creds,
		client:  client,
		timeout: timeout,
		cookie:  opts.Cookie,
	}
}

// Name returns the dispatcher's control name.
func (d *Dispatcher) Name() string {
	return d.name
}

// Credentials returns the credential pair the dispatcher sends with.
func (d *Dispatcher) Credentials() Credentials {
	return d.creds
}

// Busy reports whether a request is outstanding.
func (d *Dispatcher) Busy() bool {
	return d.inFlight.Load()
}

// Dispatch posts action and payload to the endpoint. It returns ErrRequestInFlight without
// touching the network when a previous call has not completed. Transport and application
// failures are reported through the Outcome, not the error.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, payload Payload) (*Outcome, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		slog.Debug(fmt.Sprintf("%s - [%s] dropped %s: request in flight", logPrefix, d.name, action))
		return nil, ErrRequestInFlight
	}
	defer d.inFlight.Store(false)

	slog.Debug(fmt.Sprintf("%s - [%s] action=%s hasToken=%t", logPrefix, d.name, Sanitize(action), d.creds.HasToken()))

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	form := encodeForm(action, d.creds.Token, payload)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.creds.EndpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Fail(&Failure{Message: err.Error(), Transport: &TransportError{}}), nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if d.cookie != "" {
		req.Header.Set("Cookie", d.cookie)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		timeout := isTimeout(reqCtx, err)
		slog.Debug(fmt.Sprintf("%s - [%s] action=%s transport error timeout=%t: %v", logPrefix, d.name, action, timeout, err))
		return Fail(&Failure{Message: err.Error(), Transport: &TransportError{IsTimeout: timeout}}), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		timeout := isTimeout(reqCtx, err)
		return Fail(&Failure{Message: err.Error(), Transport: &TransportError{StatusCode: resp.StatusCode, IsTimeout: timeout}}), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug(fmt.Sprintf("%s - [%s] action=%s status=%d", logPrefix, d.name, action, resp.StatusCode))
		return Fail(&Failure{Message: http.StatusText(resp.StatusCode), Transport: &TransportError{StatusCode: resp.StatusCode}}), nil
	}

	return decodeBody(resp.StatusCode, body), nil
}

// Do dispatches and routes the outcome to exactly one of the handlers. A dropped call
// invokes neither and returns ErrRequestInFlight.
func (d *Dispatcher) Do(ctx context.Context, action string, payload Payload, h Handlers) error {
	out, err := d.Dispatch(ctx, action, payload)
	if err != nil {
		return err
	}
	Route(out, h)
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
