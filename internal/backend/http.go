package backend

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// #endregion

// #region timeouts

// Timeouts bounds every outbound HTTP call. All three are mandatory.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// Total is the whole-exchange bound used as the http.Client timeout.
func (t Timeouts) Total() time.Duration {
	return t.Connect + t.Write + t.Read
}

const (
	maxConns     = 100
	maxIdleConns = 20
)

// NewHTTPClient builds a pooled client with connect, write and read bounds.
// Write covers sending the request; read covers waiting for and reading the
// response headers.
func NewHTTPClient(t Timeouts) *http.Client {
	if t.Connect <= 0 {
		t.Connect = 3 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 10 * time.Second
	}
	if t.Read <= 0 {
		t.Read = 45 * time.Second
	}
	dialer := &net.Dialer{Timeout: t.Connect, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   t.Connect,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: t.Write + t.Read,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: t.Total()}
}

// #endregion

// #region status-error

// StatusError is a non-2xx response. Body holds at most a few KB for diagnosis.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.Status, e.Body)
}

// #endregion

// #region post-json

// PostJSON sends body as JSON and decodes a 2xx response into out.
// headers are set after the content headers.
func PostJSON(ctx context.Context, hc *http.Client, op, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if k == "" || v == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// JoinURL joins base and path with exactly one slash. A path that is already
// absolute is returned unchanged.
func JoinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// #endregion
